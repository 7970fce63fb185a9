package consensus

import (
	"slices"

	"github.com/rotisserie/eris"

	"github.com/vetref/electrolyte-cli/internal/calc"
	"github.com/vetref/electrolyte-cli/internal/numeric"
	"github.com/vetref/electrolyte-cli/internal/optional"
	"github.com/vetref/electrolyte-cli/internal/patient"
)

// Floors for reduced sodium correction speeds, in mEq/L.
const (
	minDailySodiumMEqL  = 1.0
	minHourlySodiumMEqL = 0.05
)

// Adjustment is the combined effect of every modifier that applies to a
// patient.
type Adjustment struct {
	RateReductionPercent   float64  `json:"rate_reduction_percent"`
	VolumeReductionPercent float64  `json:"volume_reduction_percent"`
	FluidsToAvoid          []string `json:"fluids_to_avoid"`
	FluidsToPrefer         []string `json:"fluids_to_prefer"`
	Advisories             []string `json:"advisories"`
	// Applied names the modifier entries that contributed, state first.
	Applied []string `json:"applied"`
	Refs    []string `json:"refs"`
}

// RateFactor is the multiplier the summed rate reduction implies.
func (a Adjustment) RateFactor() float64 {
	return numeric.ReductionFactor(a.RateReductionPercent)
}

// VolumeFactor is the multiplier the summed volume reduction implies.
func (a Adjustment) VolumeFactor() float64 {
	return numeric.ReductionFactor(a.VolumeReductionPercent)
}

func (rs *Ruleset) ready() error {
	if rs == nil || rs.states == nil || rs.potassium == nil {
		return eris.Wrap(ErrRulesUnavailable, "ruleset not loaded")
	}
	return nil
}

// ApplyModifiers sums the reductions of the modifier for the patient's
// physiological state and of every comorbidity's modifier. Fluid lists are
// unioned without duplicates and a fluid both avoided and preferred is only
// avoided. Advisories are concatenated in application order.
func (rs *Ruleset) ApplyModifiers(ctx patient.Context) (Adjustment, error) {
	if err := rs.ready(); err != nil {
		return Adjustment{}, err
	}

	adj := Adjustment{
		FluidsToAvoid:  []string{},
		FluidsToPrefer: []string{},
		Advisories:     []string{},
		Applied:        []string{},
		Refs:           []string{},
	}
	var refKeys []string
	apply := func(name string, m Modifier) {
		adj.Applied = append(adj.Applied, name)
		adj.RateReductionPercent += m.RateReductionPercent
		adj.VolumeReductionPercent += m.VolumeReductionPercent
		adj.FluidsToAvoid = rs.appendFluids(adj.FluidsToAvoid, m.AvoidFluids)
		adj.FluidsToPrefer = rs.appendFluids(adj.FluidsToPrefer, m.PreferFluids)
		adj.Advisories = append(adj.Advisories, m.Advisories...)
		refKeys = append(refKeys, m.Refs...)
	}

	if m, ok := rs.states[ctx.State()]; ok {
		apply(string(ctx.State()), m)
	}
	for _, c := range ctx.Comorbidities() {
		if c == patient.NoComorbidity {
			continue
		}
		if m, ok := rs.comorbidities[c]; ok {
			apply(string(c), m)
		}
	}

	adj.FluidsToPrefer = slices.DeleteFunc(adj.FluidsToPrefer, func(f string) bool {
		return slices.Contains(adj.FluidsToAvoid, f)
	})
	adj.Refs = rs.GetRefs(refKeys...)
	return adj, nil
}

// appendFluids adds names to list, canonicalizing known fluids so that
// aliases of the same fluid collapse to one entry.
func (rs *Ruleset) appendFluids(list, names []string) []string {
	reg := rs.FluidRegistry()
	for _, n := range names {
		if c, ok := reg.Canonical(n); ok {
			n = c
		}
		if !slices.Contains(list, n) {
			list = append(list, n)
		}
	}
	return list
}

// SodiumLimits are the correction-speed limits for one patient.
type SodiumLimits struct {
	Evolution            patient.Evolution `json:"evolution"`
	BaseDailyMEqL        float64           `json:"base_daily_mEq_l"`
	BaseHourlyMEqL       float64           `json:"base_hourly_mEq_l"`
	MaxDailyMEqL         float64           `json:"max_daily_mEq_l"`
	MaxHourlyMEqL        float64           `json:"max_hourly_mEq_l"`
	RateReductionPercent float64           `json:"rate_reduction_percent"`
	TBWCoef              float64           `json:"tbw_coef"`
	Refs                 []string          `json:"refs"`
}

// RateLimits converts l for calc.CheckSodiumRate.
func (l SodiumLimits) RateLimits() calc.SodiumRateLimits {
	return calc.SodiumRateLimits{MaxDailyMEqL: l.MaxDailyMEqL, MaxHourlyMEqL: l.MaxHourlyMEqL}
}

// SodiumLimits selects the acute or chronic daily maximum, reduces it by the
// patient's rate reduction and clamps it into [1, base]. The hourly maximum
// is the configured one (or daily/24), reduced and clamped into
// [0.05, base hourly].
func (rs *Ruleset) SodiumLimits(ctx patient.Context) (SodiumLimits, error) {
	if err := rs.ready(); err != nil {
		return SodiumLimits{}, err
	}
	adj, err := rs.ApplyModifiers(ctx)
	if err != nil {
		return SodiumLimits{}, err
	}
	s := rs.Limits.Sodium

	base := s.MaxDailyChronic
	if ctx.Evolution() == patient.Acute {
		base = s.MaxDailyAcute
	}
	baseHourly := base / 24
	if s.MaxHourly != nil {
		baseHourly = *s.MaxHourly
	}

	tbw, ok := rs.tbw[ctx.Species()]
	if !ok {
		return SodiumLimits{}, eris.Wrapf(ErrMalformedRuleset, "no tbw coefficient for %s", ctx.Species())
	}

	f := adj.RateFactor()
	return SodiumLimits{
		Evolution:            ctx.Evolution(),
		BaseDailyMEqL:        base,
		BaseHourlyMEqL:       baseHourly,
		MaxDailyMEqL:         numeric.Clamp(base*f, minDailySodiumMEqL, base),
		MaxHourlyMEqL:        numeric.Clamp(baseHourly*f, minHourlySodiumMEqL, max(baseHourly, minHourlySodiumMEqL)),
		RateReductionPercent: adj.RateReductionPercent,
		TBWCoef:              tbw,
		Refs:                 rs.GetRefs(s.Refs...),
	}, nil
}

// PotassiumGuidance is the potassium supplementation guidance for one
// patient and serum value.
type PotassiumGuidance struct {
	SerumK               float64  `json:"serum_k"`
	KClPerLiter          float64  `json:"kcl_per_liter"`
	BaseMaxFluidMlKgH    float64  `json:"base_max_fluid_ml_kg_h"`
	MaxFluidMlKgH        float64  `json:"max_fluid_ml_kg_h"`
	BaseMaxMEqKgH        float64  `json:"base_max_mEq_kg_h"`
	MaxMEqKgH            float64  `json:"max_mEq_kg_h"`
	MaxPeripheralMEqL    float64  `json:"max_peripheral_mEq_l"`
	MaxCentralMEqL       float64  `json:"max_central_mEq_l"`
	KClMEqPerMl          float64  `json:"kcl_mEq_per_ml"`
	RateReductionPercent float64  `json:"rate_reduction_percent"`
	Refs                 []string `json:"refs"`
}

// CalcInput builds the calculator input that enforces g's limits.
func (g PotassiumGuidance) CalcInput(weightKg, fluidRateMlH float64) calc.PotassiumInput {
	return calc.PotassiumInput{
		WeightKg:          weightKg,
		SerumK:            g.SerumK,
		FluidRateMlH:      fluidRateMlH,
		MaxMEqKgH:         optional.Of(g.MaxMEqKgH),
		MaxPeripheralMEqL: g.MaxPeripheralMEqL,
		KClMEqPerMl:       g.KClMEqPerMl,
		Row: &calc.PotassiumRow{
			KClPerLiter:       g.KClPerLiter,
			MaxFluidRateMlKgH: g.MaxFluidMlKgH,
		},
	}
}

// PotassiumGuidance selects the table row for serumK (values above every
// row fall back to the last one) and applies the patient's rate reduction
// to both the per-kg maximum and the row's maximum fluid rate.
func (rs *Ruleset) PotassiumGuidance(ctx patient.Context, serumK float64) (PotassiumGuidance, error) {
	if err := rs.ready(); err != nil {
		return PotassiumGuidance{}, err
	}
	adj, err := rs.ApplyModifiers(ctx)
	if err != nil {
		return PotassiumGuidance{}, err
	}
	k := rs.Limits.Potassium
	row, ok := rs.potassium.Lookup(serumK)
	if !ok {
		return PotassiumGuidance{}, eris.Wrap(ErrMalformedRuleset, "empty potassium table")
	}

	f := adj.RateFactor()
	return PotassiumGuidance{
		SerumK:               serumK,
		KClPerLiter:          row.KClMEqL,
		BaseMaxFluidMlKgH:    row.MaxFluidMlKgH,
		MaxFluidMlKgH:        row.MaxFluidMlKgH * f,
		BaseMaxMEqKgH:        k.MaxMEqKgH,
		MaxMEqKgH:            k.MaxMEqKgH * f,
		MaxPeripheralMEqL:    k.MaxPeripheralMEqL,
		MaxCentralMEqL:       k.MaxCentralMEqL,
		KClMEqPerMl:          rs.Stocks.KClMEqPerMl,
		RateReductionPercent: adj.RateReductionPercent,
		Refs:                 rs.GetRefs(k.Refs...),
	}, nil
}

// PhosphorusLimits converts the phosphorus section for the calculator.
func (rs *Ruleset) PhosphorusLimits() calc.PhosphorusLimits {
	if rs == nil || rs.Limits.Phosphorus == nil {
		return calc.DefaultPhosphorusLimits()
	}
	p := rs.Limits.Phosphorus
	return calc.PhosphorusLimits{
		DoseMinMmolKgH:    p.DoseMin,
		DoseMaxMmolKgH:    p.DoseMax,
		DoseSevereMmolKgH: p.DoseSevere,
		KPhosMmolPerMl:    rs.Stocks.KPhosMmolPerMl,
		KPhosKMEqPerMl:    rs.Stocks.KPhosKMEqPerMl,
		DefaultHours:      p.Hours,
	}
}

// BicarbonateLimits converts the bicarbonate and pH sections for the
// calculator.
func (rs *Ruleset) BicarbonateLimits() calc.BicarbonateLimits {
	if rs == nil || rs.Limits.Bicarbonate == nil {
		return calc.DefaultBicarbonateLimits()
	}
	b := rs.Limits.Bicarbonate
	l := calc.BicarbonateLimits{
		DistributionFactor: b.Factor,
		InitialFraction:    b.InitialFraction,
		TreatBelowHCO3:     b.TreatBelowHCO3,
		DefaultTargetHCO3:  b.TargetHCO3,
		DefaultHours:       b.Hours,
		NaHCO3MEqPerMl:     rs.Stocks.NaHCO3MEqPerMl,
	}
	if rs.Limits.PH != nil {
		l.TreatBelowPH = rs.Limits.PH.MinTreat
	}
	return l
}

// GlucoseLimits converts the glucose section for the calculator.
func (rs *Ruleset) GlucoseLimits() calc.GlucoseLimits {
	if rs == nil || rs.Limits.Glucose == nil {
		return calc.DefaultGlucoseLimits()
	}
	g := rs.Limits.Glucose
	return calc.GlucoseLimits{
		BolusGPerKg:      g.BolusGPerKg,
		Dextrose50GPerMl: rs.Stocks.Dextrose50GPerMl,
		InsulinUKgDog:    g.InsulinUKgDog,
		InsulinUKgCat:    g.InsulinUKgCat,
		InsulinBagMl:     g.InsulinBagMl,
	}
}

// MgSO4MEqPerMl is the configured magnesium sulfate stock.
func (rs *Ruleset) MgSO4MEqPerMl() float64 {
	if rs == nil || rs.Stocks.MgSO4MEqPerMl <= 0 {
		return calc.DefaultMgSO4MEqPerMl
	}
	return rs.Stocks.MgSO4MEqPerMl
}
