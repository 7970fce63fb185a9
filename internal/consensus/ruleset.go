// Package consensus loads the consensus ruleset (safety limits and
// patient-state modifiers) and combines it with a patient context into
// adjusted limits, fluid preferences and advisories.
package consensus

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/vetref/electrolyte-cli/internal/fluid"
	"github.com/vetref/electrolyte-cli/internal/numeric"
	"github.com/vetref/electrolyte-cli/internal/patient"
)

// ErrMalformedRuleset is wrapped by every parse and validation failure.
var ErrMalformedRuleset = eris.New("consensus: malformed ruleset")

// Ruleset is a parsed and validated consensus document. It is shared by
// every caller once loaded and must not be modified.
type Ruleset struct {
	Version   string               `json:"versao,omitempty" yaml:"versao"`
	Limits    Limits               `json:"limites" yaml:"limites"`
	Modifiers Modifiers            `json:"modificadores" yaml:"modificadores"`
	Fluids    map[string]FluidSpec `json:"fluidos,omitempty" yaml:"fluidos"`
	Stocks    Stocks               `json:"estoques" yaml:"estoques"`
	Refs      map[string]Ref       `json:"refs,omitempty" yaml:"refs"`

	checksum      string
	tbw           map[patient.Species]float64
	states        map[patient.PhysiologicalState]Modifier
	comorbidities map[patient.Comorbidity]Modifier
	potassium     numeric.TieredTable[PotassiumTier]
	registry      *fluid.Registry
}

// Limits groups the per-electrolyte sections.
type Limits struct {
	Sodium      *SodiumRules      `json:"sodio" yaml:"sodio"`
	Potassium   *PotassiumRules   `json:"potassio" yaml:"potassio"`
	Phosphorus  *PhosphorusRules  `json:"fosforo" yaml:"fosforo"`
	Bicarbonate *BicarbonateRules `json:"bicarbonato" yaml:"bicarbonato"`
	Glucose     *GlucoseRules     `json:"glicemia" yaml:"glicemia"`
	PH          *PHRules          `json:"ph" yaml:"ph"`
}

// SodiumRules are the sodium correction-speed limits. MaxHourly is optional
// and derived from the daily maximum when absent.
type SodiumRules struct {
	MaxDailyAcute   float64            `json:"max_mEqL_24h_aguda" yaml:"max_mEqL_24h_aguda"`
	MaxDailyChronic float64            `json:"max_mEqL_24h_cronica" yaml:"max_mEqL_24h_cronica"`
	MaxHourly       *float64           `json:"max_mEqL_h,omitempty" yaml:"max_mEqL_h"`
	TBWCoef         map[string]float64 `json:"tbw_coef" yaml:"tbw_coef"`
	Refs            []string           `json:"refs,omitempty" yaml:"refs"`
}

// PotassiumTier is one row of the ruleset's potassium table. A nil UpperK
// marks the open-ended last row.
type PotassiumTier struct {
	UpperK        *float64 `json:"k_ate,omitempty" yaml:"k_ate"`
	KClMEqL       float64  `json:"kcl_mEq_L" yaml:"kcl_mEq_L"`
	MaxFluidMlKgH float64  `json:"max_fluido_mL_kg_h" yaml:"max_fluido_mL_kg_h"`
}

// PotassiumRules are the potassium supplementation limits.
type PotassiumRules struct {
	MaxMEqKgH         float64         `json:"max_mEq_kg_h" yaml:"max_mEq_kg_h"`
	MaxPeripheralMEqL float64         `json:"max_periferica_mEq_L" yaml:"max_periferica_mEq_L"`
	MaxCentralMEqL    float64         `json:"max_central_mEq_L" yaml:"max_central_mEq_L"`
	Table             []PotassiumTier `json:"tabela" yaml:"tabela"`
	Refs              []string        `json:"refs,omitempty" yaml:"refs"`
}

// PhosphorusRules are the potassium phosphate dose range in mmol/kg/h.
type PhosphorusRules struct {
	DoseMin    float64  `json:"dose_min" yaml:"dose_min"`
	DoseMax    float64  `json:"dose_max" yaml:"dose_max"`
	DoseSevere float64  `json:"dose_grave" yaml:"dose_grave"`
	Hours      float64  `json:"horas,omitempty" yaml:"horas"`
	Refs       []string `json:"refs,omitempty" yaml:"refs"`
}

// BicarbonateRules configure sodium bicarbonate therapy.
type BicarbonateRules struct {
	Factor          float64  `json:"fator" yaml:"fator"`
	InitialFraction float64  `json:"fracao_inicial" yaml:"fracao_inicial"`
	TreatBelowHCO3  float64  `json:"hco3_min_tratar" yaml:"hco3_min_tratar"`
	TargetHCO3      float64  `json:"hco3_alvo,omitempty" yaml:"hco3_alvo"`
	Hours           float64  `json:"horas,omitempty" yaml:"horas"`
	Refs            []string `json:"refs,omitempty" yaml:"refs"`
}

// GlucoseRules configure dextrose and insulin dosing.
type GlucoseRules struct {
	BolusGPerKg   float64  `json:"bolus_g_kg" yaml:"bolus_g_kg"`
	InsulinUKgDog float64  `json:"insulina_U_kg_cao" yaml:"insulina_U_kg_cao"`
	InsulinUKgCat float64  `json:"insulina_U_kg_gato" yaml:"insulina_U_kg_gato"`
	InsulinBagMl  float64  `json:"bolsa_insulina_mL" yaml:"bolsa_insulina_mL"`
	Refs          []string `json:"refs,omitempty" yaml:"refs"`
}

// PHRules hold the pH below which alkali therapy is considered.
type PHRules struct {
	MinTreat float64  `json:"min_tratar" yaml:"min_tratar"`
	Refs     []string `json:"refs,omitempty" yaml:"refs"`
}

// Modifier adjusts limits for one physiological state or comorbidity.
type Modifier struct {
	RateReductionPercent   float64  `json:"reduzir_rate_percent,omitempty" yaml:"reduzir_rate_percent"`
	VolumeReductionPercent float64  `json:"reduzir_volume_percent,omitempty" yaml:"reduzir_volume_percent"`
	AvoidFluids            []string `json:"evitar_fluidos,omitempty" yaml:"evitar_fluidos"`
	PreferFluids           []string `json:"preferir_fluidos,omitempty" yaml:"preferir_fluidos"`
	Advisories             []string `json:"avisos,omitempty" yaml:"avisos"`
	Refs                   []string `json:"refs,omitempty" yaml:"refs"`
}

// Modifiers are keyed by state or comorbidity name; any alias accepted by
// the patient package may be used as a key.
type Modifiers struct {
	States        map[string]Modifier `json:"estados" yaml:"estados"`
	Comorbidities map[string]Modifier `json:"comorbidades" yaml:"comorbidades"`
}

// FluidSpec is a fluid composition carried by the ruleset.
type FluidSpec struct {
	Aliases    []string `json:"aliases,omitempty" yaml:"aliases"`
	Na         float64  `json:"na" yaml:"na"`
	Cl         float64  `json:"cl" yaml:"cl"`
	K          float64  `json:"k,omitempty" yaml:"k"`
	Ca         float64  `json:"ca,omitempty" yaml:"ca"`
	Mg         float64  `json:"mg,omitempty" yaml:"mg"`
	Osmolarity float64  `json:"osm" yaml:"osm"`
}

// Stocks are drug concentrations.
type Stocks struct {
	KClMEqPerMl      float64 `json:"kcl_mEq_mL" yaml:"kcl_mEq_mL"`
	MgSO4MEqPerMl    float64 `json:"mgso4_mEq_mL" yaml:"mgso4_mEq_mL"`
	KPhosMmolPerMl   float64 `json:"kphos_mmol_mL" yaml:"kphos_mmol_mL"`
	KPhosKMEqPerMl   float64 `json:"kphos_k_mEq_mL" yaml:"kphos_k_mEq_mL"`
	NaHCO3MEqPerMl   float64 `json:"nahco3_mEq_mL" yaml:"nahco3_mEq_mL"`
	Dextrose50GPerMl float64 `json:"dextrose50_g_mL" yaml:"dextrose50_g_mL"`
}

// Ref is a bibliographic citation.
type Ref struct {
	Source  string `json:"fonte" yaml:"fonte"`
	Chapter string `json:"cap,omitempty" yaml:"cap"`
	Page    string `json:"pag,omitempty" yaml:"pag"`
}

// String formats the citation as "source, chapter, page", skipping empty parts.
func (r Ref) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.Source, r.Chapter, r.Page} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// DecodeError is a ruleset document that could not be decoded. It matches
// ErrMalformedRuleset and keeps the decoder error in the chain.
type DecodeError struct {
	Format string
	Cause  error
}

func (e *DecodeError) Error() string {
	return ErrMalformedRuleset.Error() + ": decode " + e.Format + ": " + e.Cause.Error()
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrMalformedRuleset, e.Cause}
}

// Parse decodes a JSON or YAML ruleset document and validates it. The format
// is sniffed: documents starting with '{' are JSON.
func Parse(data []byte) (*Ruleset, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, eris.Wrap(ErrMalformedRuleset, "empty document")
	}

	rs := &Ruleset{}
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, rs); err != nil {
			return nil, &DecodeError{Format: "json", Cause: err}
		}
	} else {
		if err := yaml.Unmarshal(trimmed, rs); err != nil {
			return nil, &DecodeError{Format: "yaml", Cause: err}
		}
	}

	sum := sha256.Sum256(trimmed)
	rs.checksum = hex.EncodeToString(sum[:])

	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return rs, nil
}

// Checksum is the SHA-256 of the document the ruleset was parsed from.
func (rs *Ruleset) Checksum() string { return rs.checksum }

// Validate checks the document and builds the lookup indexes. It reports
// every problem found, not just the first.
func (rs *Ruleset) Validate() error {
	var problems []string
	bad := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	l := rs.Limits
	if l.Sodium == nil {
		bad("limites.sodio missing")
	}
	if l.Potassium == nil {
		bad("limites.potassio missing")
	}
	if l.Phosphorus == nil {
		bad("limites.fosforo missing")
	}
	if l.Bicarbonate == nil {
		bad("limites.bicarbonato missing")
	}
	if l.Glucose == nil {
		bad("limites.glicemia missing")
	}
	if l.PH == nil {
		bad("limites.ph missing")
	}

	rs.tbw = map[patient.Species]float64{}
	if s := l.Sodium; s != nil {
		if s.MaxDailyAcute < 1 || s.MaxDailyChronic < 1 {
			bad("limites.sodio: daily maxima must be >= 1 mEq/L")
		}
		if s.MaxHourly != nil && *s.MaxHourly < 0.05 {
			bad("limites.sodio.max_mEqL_h must be >= 0.05")
		}
		for k, v := range s.TBWCoef {
			sp, err := patient.ParseSpecies(k)
			if err != nil {
				bad("limites.sodio.tbw_coef: unknown species %q", k)
				continue
			}
			if v <= 0 || v > 1 {
				bad("limites.sodio.tbw_coef.%s must be in (0, 1]", k)
				continue
			}
			rs.tbw[sp] = v
		}
		for _, sp := range []patient.Species{patient.Dog, patient.Cat} {
			if _, ok := rs.tbw[sp]; !ok {
				bad("limites.sodio.tbw_coef: no coefficient for %s", sp)
			}
		}
	}

	rs.potassium = nil
	if k := l.Potassium; k != nil {
		if k.MaxMEqKgH <= 0 {
			bad("limites.potassio.max_mEq_kg_h must be positive")
		}
		if k.MaxPeripheralMEqL <= 0 || k.MaxCentralMEqL < k.MaxPeripheralMEqL {
			bad("limites.potassio: need 0 < max_periferica_mEq_L <= max_central_mEq_L")
		}
		if len(k.Table) == 0 {
			bad("limites.potassio.tabela is empty")
		}
		for i, row := range k.Table {
			upper := math.Inf(1)
			if row.UpperK != nil {
				upper = *row.UpperK
			} else if i != len(k.Table)-1 {
				bad("limites.potassio.tabela[%d]: only the last row may omit k_ate", i)
			}
			if row.KClMEqL < 0 || row.MaxFluidMlKgH < 0 {
				bad("limites.potassio.tabela[%d]: negative value", i)
			}
			rs.potassium = append(rs.potassium, numeric.Tier[PotassiumTier]{Upper: upper, Row: row})
		}
		if !rs.potassium.Ascending() {
			bad("limites.potassio.tabela: k_ate must be strictly ascending")
		}
	}

	if p := l.Phosphorus; p != nil && (p.DoseMin <= 0 || p.DoseMax < p.DoseMin || p.DoseSevere < p.DoseMax) {
		bad("limites.fosforo: need 0 < dose_min <= dose_max <= dose_grave")
	}
	if b := l.Bicarbonate; b != nil && (b.Factor <= 0 || b.InitialFraction <= 0 || b.InitialFraction > 1 || b.TreatBelowHCO3 <= 0) {
		bad("limites.bicarbonato: fator, fracao_inicial (0-1] and hco3_min_tratar must be positive")
	}
	if g := l.Glucose; g != nil && (g.BolusGPerKg <= 0 || g.InsulinUKgDog <= 0 || g.InsulinUKgCat <= 0 || g.InsulinBagMl <= 0) {
		bad("limites.glicemia: doses and bag volume must be positive")
	}
	if ph := l.PH; ph != nil && (ph.MinTreat < 6.5 || ph.MinTreat > 7.45) {
		bad("limites.ph.min_tratar out of range")
	}

	st := rs.Stocks
	for name, v := range map[string]float64{
		"kcl_mEq_mL":      st.KClMEqPerMl,
		"mgso4_mEq_mL":    st.MgSO4MEqPerMl,
		"kphos_mmol_mL":   st.KPhosMmolPerMl,
		"kphos_k_mEq_mL":  st.KPhosKMEqPerMl,
		"nahco3_mEq_mL":   st.NaHCO3MEqPerMl,
		"dextrose50_g_mL": st.Dextrose50GPerMl,
	} {
		if v <= 0 {
			bad("estoques.%s must be positive", name)
		}
	}

	rs.states = map[patient.PhysiologicalState]Modifier{}
	for k, m := range rs.Modifiers.States {
		s, err := patient.ParsePhysiologicalState(k)
		if err != nil {
			bad("modificadores.estados: unknown state %q", k)
			continue
		}
		checkPercents("modificadores.estados."+k, m, bad)
		rs.states[s] = m
	}
	rs.comorbidities = map[patient.Comorbidity]Modifier{}
	for k, m := range rs.Modifiers.Comorbidities {
		c, err := patient.ParseComorbidity(k)
		if err != nil || c == patient.NoComorbidity {
			bad("modificadores.comorbidades: unknown comorbidity %q", k)
			continue
		}
		checkPercents("modificadores.comorbidades."+k, m, bad)
		rs.comorbidities[c] = m
	}

	for _, ref := range rs.citedRefs() {
		if _, ok := rs.Refs[ref]; !ok {
			bad("unknown reference code %q", ref)
		}
	}

	extra := make([]fluid.Info, 0, len(rs.Fluids))
	for _, name := range sortedKeys(rs.Fluids) {
		f := rs.Fluids[name]
		extra = append(extra, fluid.Info{
			Name: name, Aliases: f.Aliases,
			Na: f.Na, Cl: f.Cl, K: f.K, Ca: f.Ca, Mg: f.Mg, Osmolarity: f.Osmolarity,
		})
	}
	rs.registry = fluid.Default().Merge(extra)

	if len(problems) > 0 {
		sort.Strings(problems)
		return eris.Wrap(ErrMalformedRuleset, strings.Join(problems, "; "))
	}
	return nil
}

// checkPercents rejects reductions outside [0, 100]. A negative reduction
// would raise a limit above its base.
func checkPercents(path string, m Modifier, bad func(string, ...any)) {
	for name, v := range map[string]float64{
		"reduzir_rate_percent":   m.RateReductionPercent,
		"reduzir_volume_percent": m.VolumeReductionPercent,
	} {
		if math.IsNaN(v) || v < 0 || v > 100 {
			bad("%s.%s must be in [0, 100], got %g", path, name, v)
		}
	}
}

// citedRefs lists every reference code used by a limit section or modifier.
func (rs *Ruleset) citedRefs() []string {
	var refs []string
	l := rs.Limits
	if l.Sodium != nil {
		refs = append(refs, l.Sodium.Refs...)
	}
	if l.Potassium != nil {
		refs = append(refs, l.Potassium.Refs...)
	}
	if l.Phosphorus != nil {
		refs = append(refs, l.Phosphorus.Refs...)
	}
	if l.Bicarbonate != nil {
		refs = append(refs, l.Bicarbonate.Refs...)
	}
	if l.Glucose != nil {
		refs = append(refs, l.Glucose.Refs...)
	}
	if l.PH != nil {
		refs = append(refs, l.PH.Refs...)
	}
	for _, m := range rs.Modifiers.States {
		refs = append(refs, m.Refs...)
	}
	for _, m := range rs.Modifiers.Comorbidities {
		refs = append(refs, m.Refs...)
	}
	return refs
}

// FluidRegistry resolves fluid names against the built-in catalog overlaid with the
// ruleset's own compositions.
func (rs *Ruleset) FluidRegistry() *fluid.Registry {
	if rs == nil || rs.registry == nil {
		return fluid.Default()
	}
	return rs.registry
}

// GetRefs formats the citations for keys, dropping unknown keys and
// duplicate formatted strings while keeping first-seen order.
func (rs *Ruleset) GetRefs(keys ...string) []string {
	out := []string{}
	if rs == nil {
		return out
	}
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		ref, ok := rs.Refs[k]
		if !ok {
			continue
		}
		s := ref.String()
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
