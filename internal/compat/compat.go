// Package compat answers whether an additive may be mixed into a base fluid.
package compat

import (
	_ "embed"
	"slices"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/vetref/electrolyte-cli/internal/fluid"
	"github.com/vetref/electrolyte-cli/internal/patient"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// Additive is one catalog entry. Notes are keyed by base fluid name.
type Additive struct {
	ID           string            `yaml:"id" json:"id"`
	Name         string            `yaml:"name" json:"name"`
	Aliases      []string          `yaml:"aliases" json:"aliases,omitempty"`
	Compatible   []string          `yaml:"compatible" json:"compatible"`
	Incompatible []string          `yaml:"incompatible" json:"incompatible"`
	Warnings     []string          `yaml:"warnings" json:"warnings,omitempty"`
	Notes        map[string]string `yaml:"notes" json:"notes,omitempty"`
}

// Result is the answer for one additive and base fluid. Compatible and
// Incompatible may both be true when the catalog lists the pair twice;
// Incompatible wins.
type Result struct {
	Additive     string `json:"additive"`
	Fluid        string `json:"fluid"`
	Compatible   bool   `json:"compatible"`
	Incompatible bool   `json:"incompatible"`
	// Note is the catalog's remark on this specific pair.
	Note     string   `json:"note,omitempty"`
	Warnings []string `json:"warnings"`
}

// Verdict is the single display outcome of a Result.
type Verdict string

// Verdicts, strongest first.
const (
	Incompatible Verdict = "incompatible"
	Caution      Verdict = "caution"
	Compatible   Verdict = "compatible"
	Unknown      Verdict = "unknown"
)

// Verdict collapses r. A nil result is Unknown.
func (r *Result) Verdict() Verdict {
	switch {
	case r == nil:
		return Unknown
	case r.Incompatible:
		return Incompatible
	case r.Compatible && r.Note != "":
		return Caution
	case r.Compatible:
		return Compatible
	}
	return Unknown
}

// Conflict is a pair the catalog lists as both compatible and incompatible.
type Conflict struct {
	Additive string `json:"additive"`
	Fluid    string `json:"fluid"`
}

type entry struct {
	Additive
	compatible   map[string]bool
	incompatible map[string]bool
	notes        map[string]string
}

// Catalog is a parsed compatibility matrix bound to a fluid registry.
type Catalog struct {
	fluids  *fluid.Registry
	entries []*entry
	byKey   map[string]*entry
}

// Parse decodes a catalog document and resolves every fluid it names
// through fluids.
func Parse(data []byte, fluids *fluid.Registry) (*Catalog, error) {
	var wrapper struct {
		Compatibility struct {
			Additives []Additive `yaml:"additives"`
		} `yaml:"compatibility"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "compat: parse catalog")
	}
	if fluids == nil {
		fluids = fluid.Default()
	}

	c := &Catalog{fluids: fluids, byKey: map[string]*entry{}}
	for _, a := range wrapper.Compatibility.Additives {
		if a.ID == "" {
			return nil, eris.New("compat: additive without id")
		}
		e := &entry{
			Additive:     a,
			compatible:   map[string]bool{},
			incompatible: map[string]bool{},
			notes:        map[string]string{},
		}
		for _, set := range []struct {
			names []string
			into  map[string]bool
		}{{a.Compatible, e.compatible}, {a.Incompatible, e.incompatible}} {
			for _, n := range set.names {
				name, ok := fluids.Canonical(n)
				if !ok {
					return nil, eris.Errorf("compat: %s lists unknown fluid %q", a.ID, n)
				}
				set.into[name] = true
			}
		}
		for n, note := range a.Notes {
			name, ok := fluids.Canonical(n)
			if !ok {
				return nil, eris.Errorf("compat: %s has a note for unknown fluid %q", a.ID, n)
			}
			e.notes[name] = note
		}

		for _, k := range append([]string{a.ID, a.Name}, a.Aliases...) {
			if k == "" {
				continue
			}
			key := patient.Fold(k)
			if prev, dup := c.byKey[key]; dup && prev.ID != a.ID {
				return nil, eris.Errorf("compat: %q names both %s and %s", k, prev.ID, a.ID)
			}
			c.byKey[key] = e
		}
		c.entries = append(c.entries, e)
	}
	return c, nil
}

// Load parses the embedded catalog against fluids.
func Load(fluids *fluid.Registry) (*Catalog, error) {
	return Parse(embeddedCatalog, fluids)
}

var defaultCatalog = sync.OnceValues(func() (*Catalog, error) {
	return Load(fluid.Default())
})

// Default is the embedded catalog against the built-in fluid registry.
func Default() (*Catalog, error) {
	return defaultCatalog()
}

// CheckCompatibility looks the pair up in the default catalog.
func CheckCompatibility(additive, baseFluid string) *Result {
	c, err := Default()
	if err != nil {
		return nil
	}
	return c.Check(additive, baseFluid)
}

// Additive returns the entry for an id, name or alias.
func (c *Catalog) Additive(name string) (Additive, bool) {
	e, ok := c.byKey[patient.Fold(name)]
	if !ok {
		return Additive{}, false
	}
	return e.Additive, true
}

// Additives lists every entry in catalog order.
func (c *Catalog) Additives() []Additive {
	out := make([]Additive, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.Additive)
	}
	return out
}

// Check returns nil when either name cannot be resolved.
func (c *Catalog) Check(additive, baseFluid string) *Result {
	e, ok := c.byKey[patient.Fold(additive)]
	if !ok {
		return nil
	}
	name, ok := c.fluids.Canonical(baseFluid)
	if !ok {
		return nil
	}

	r := &Result{
		Additive:     e.ID,
		Fluid:        name,
		Compatible:   e.compatible[name],
		Incompatible: e.incompatible[name],
		Warnings:     []string{},
	}
	if r.Compatible && r.Incompatible {
		r.Warnings = append(r.Warnings, "catalog lists "+e.ID+" with "+name+" as both compatible and incompatible; treat as incompatible")
	}
	if note, ok := e.notes[name]; ok {
		r.Note = note
		r.Warnings = append(r.Warnings, note)
	}
	if r.Compatible || r.Incompatible {
		r.Warnings = append(r.Warnings, e.Warnings...)
	}
	return r
}

// Verdict is Check collapsed to one outcome.
func (c *Catalog) Verdict(additive, baseFluid string) Verdict {
	return c.Check(additive, baseFluid).Verdict()
}

// Conflicts lists every pair present in both sets, sorted.
func (c *Catalog) Conflicts() []Conflict {
	var out []Conflict
	for _, e := range c.entries {
		for name := range e.compatible {
			if e.incompatible[name] {
				out = append(out, Conflict{Additive: e.ID, Fluid: name})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Additive != out[j].Additive {
			return out[i].Additive < out[j].Additive
		}
		return out[i].Fluid < out[j].Fluid
	})
	return out
}

// FluidsFor lists the base fluids listed as compatible and not incompatible
// with additive, in registry order.
func (c *Catalog) FluidsFor(additive string) []string {
	e, ok := c.byKey[patient.Fold(additive)]
	if !ok {
		return nil
	}
	return slices.DeleteFunc(c.fluids.Names(), func(n string) bool {
		return !e.compatible[n] || e.incompatible[n]
	})
}
