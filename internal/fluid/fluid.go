// Package fluid is the registry of IV fluid compositions used to resolve a
// fluid's electrolyte content from its name.
package fluid

import (
	"slices"
	"strings"

	"github.com/vetref/electrolyte-cli/internal/patient"
)

// Info is the composition of one crystalloid, in mEq/L (osmolarity in mOsm/L).
type Info struct {
	Name       string   `json:"name" yaml:"name"`
	Aliases    []string `json:"aliases,omitempty" yaml:"aliases"`
	Na         float64  `json:"na" yaml:"na"`
	Cl         float64  `json:"cl" yaml:"cl"`
	K          float64  `json:"k" yaml:"k"`
	Ca         float64  `json:"ca" yaml:"ca"`
	Mg         float64  `json:"mg" yaml:"mg"`
	DextroseGL float64  `json:"dextrose_g_l,omitempty" yaml:"dextrose_g_l"`
	Osmolarity float64  `json:"osmolarity" yaml:"osmolarity"`
}

// Registry resolves fluid names and aliases to compositions. It is read-only
// after construction and safe for concurrent use.
type Registry struct {
	byKey map[string]Info
	names []string
}

// NewRegistry indexes infos by folded name and alias. Later entries replace
// earlier ones with the same key.
func NewRegistry(infos []Info) *Registry {
	r := &Registry{byKey: make(map[string]Info, len(infos)*2)}
	seen := make(map[string]bool, len(infos))
	for _, info := range infos {
		r.byKey[key(info.Name)] = info
		for _, a := range info.Aliases {
			r.byKey[key(a)] = info
		}
		if !seen[info.Name] {
			seen[info.Name] = true
			r.names = append(r.names, info.Name)
		}
	}
	return r
}

// Lookup returns the composition for name, or false when unknown.
func (r *Registry) Lookup(name string) (Info, bool) {
	if r == nil {
		return Info{}, false
	}
	info, ok := r.byKey[key(name)]
	return info, ok
}

// Canonical returns the registry's display name for name.
func (r *Registry) Canonical(name string) (string, bool) {
	info, ok := r.Lookup(name)
	if !ok {
		return "", false
	}
	return info.Name, true
}

// Names lists the canonical names in insertion order.
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

// Merge returns a registry containing r's entries overridden by extra.
func (r *Registry) Merge(extra []Info) *Registry {
	base := make([]Info, 0, len(r.names)+len(extra))
	for _, n := range r.names {
		info, _ := r.Lookup(n)
		base = append(base, info)
	}
	return NewRegistry(append(base, extra...))
}

// key folds case, accents, whitespace and the "%" / decimal-comma variations
// people type: "NaCl 0,9 %" and "nacl 0.9%" both become "nacl0.9%".
func key(name string) string {
	k := patient.Fold(name)
	k = strings.ReplaceAll(k, ",", ".")
	return strings.Join(strings.Fields(k), "")
}

var defaults = []Info{
	{Name: "D5W", Aliases: []string{"Dextrose 5%", "Glicose 5%", "SG 5%"}, DextroseGL: 50, Osmolarity: 252},
	{Name: "NaCl 0.45%", Aliases: []string{"Half-strength saline", "Salina 0.45%"}, Na: 77, Cl: 77, Osmolarity: 154},
	{Name: "NaCl 0.45% + D2.5%", Aliases: []string{"Half-strength saline with dextrose"}, Na: 77, Cl: 77, DextroseGL: 25, Osmolarity: 280},
	{Name: "NaCl 0.9%", Aliases: []string{"Normal saline", "Saline", "SF 0.9%", "Salina 0.9%", "Soro fisiologico"}, Na: 154, Cl: 154, Osmolarity: 308},
	{Name: "NaCl 3%", Aliases: []string{"Hypertonic saline 3%", "Salina 3%"}, Na: 513, Cl: 513, Osmolarity: 1027},
	{Name: "NaCl 7.5%", Aliases: []string{"Hypertonic saline 7.5%", "Salina 7.5%"}, Na: 1283, Cl: 1283, Osmolarity: 2567},
	{Name: "Ringer Lactate", Aliases: []string{"LRS", "RL", "Lactated Ringer's", "Ringer Lactato", "Hartmann"}, Na: 130, Cl: 109, K: 4, Ca: 3, Osmolarity: 273},
	{Name: "Ringer", Aliases: []string{"Ringer's solution", "Ringer simples"}, Na: 147, Cl: 156, K: 4, Ca: 4.5, Osmolarity: 309},
	{Name: "Plasmalyte", Aliases: []string{"Plasma-Lyte A", "Plasma-Lyte 148", "Plasmalyte 148"}, Na: 140, Cl: 98, K: 5, Mg: 3, Osmolarity: 294},
	{Name: "Normosol-R", Aliases: []string{"Normosol"}, Na: 140, Cl: 98, K: 5, Mg: 3, Osmolarity: 294},
}

var defaultRegistry = NewRegistry(defaults)

// Default returns the built-in fluid catalog.
func Default() *Registry {
	return defaultRegistry
}

// Lookup resolves name against the built-in catalog.
func Lookup(name string) (Info, bool) {
	return defaultRegistry.Lookup(name)
}

// Catalog returns the built-in entries keyed by canonical name.
func Catalog() map[string]Info {
	out := make(map[string]Info, len(defaults))
	for _, info := range defaults {
		out[info.Name] = info
	}
	return out
}
