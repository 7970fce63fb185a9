package dosing

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vetref/electrolyte-cli/internal/calc"
	"github.com/vetref/electrolyte-cli/internal/consensus"
	"github.com/vetref/electrolyte-cli/internal/input"
	"github.com/vetref/electrolyte-cli/internal/numeric"
	"github.com/vetref/electrolyte-cli/internal/optional"
	"github.com/vetref/electrolyte-cli/internal/patient"
)

// DefaultSodiumFluid is used when a sodium request names no fluid.
const DefaultSodiumFluid = "NaCl 0.9%"

// RulesProvider supplies the consensus ruleset; *consensus.Loader is one.
type RulesProvider interface {
	Load(ctx context.Context) (*consensus.Ruleset, error)
}

// Options tune the engine.
type Options struct {
	// SodiumTBWCoef is the flat total-body-water fraction of the sodium
	// calculator. Zero means calc.DefaultSodiumTBWCoef.
	SodiumTBWCoef float64
	// UseRulesetTBW switches the sodium calculator to the ruleset's
	// per-species coefficient.
	UseRulesetTBW bool
}

// Result is one evaluated calculation.
type Result struct {
	ID             string                `json:"id"`
	Electrolyte    Electrolyte           `json:"electrolyte"`
	Patient        patient.Context       `json:"patient"`
	Classification *calc.Classification  `json:"classification,omitempty"`
	Summary        string                `json:"summary"`
	Plan           any                   `json:"plan"`
	Limits         any                   `json:"limits,omitempty"`
	Modifiers      *consensus.Adjustment `json:"modifiers,omitempty"`
	Warnings       []string              `json:"warnings"`
	Refs           []string              `json:"refs"`
	RulesetVersion string                `json:"ruleset_version,omitempty"`
}

// Engine evaluates requests against the current ruleset.
type Engine struct {
	rules RulesProvider
	opts  Options
}

// New returns an Engine reading rules from rp.
func New(rp RulesProvider, opts Options) *Engine {
	if opts.SodiumTBWCoef <= 0 {
		opts.SodiumTBWCoef = calc.DefaultSodiumTBWCoef
	}
	return &Engine{rules: rp, opts: opts}
}

type computeFunc func(rs *consensus.Ruleset, pc patient.Context, res *Result) error

// Evaluate validates req and runs its calculator. Validation failures are
// returned as *input.FieldErrors before any ruleset access. A calculator that
// needs the ruleset fails with consensus.ErrRulesUnavailable when it cannot
// be loaded; albumin and calcium run without modifiers in that case.
func (e *Engine) Evaluate(ctx context.Context, req Request) (*Result, error) {
	v := input.New()

	el, err := ParseElectrolyte(req.Electrolyte)
	if err != nil {
		v.Fail("electrolyte", req.Electrolyte, "unknown electrolyte")
	}
	pc := req.Patient.Context(v)

	var compute computeFunc
	if err == nil {
		compute = e.prepare(el, v, req.Values)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	rs, err := e.rules.Load(ctx)
	if err != nil {
		if el.NeedsRules() {
			return nil, eris.Wrapf(err, "dosing: %s", el)
		}
		zap.L().Warn("dosing: evaluating without ruleset",
			zap.String("electrolyte", string(el)), zap.Error(err))
	}

	res := &Result{
		ID:          uuid.NewString(),
		Electrolyte: el,
		Patient:     pc,
		Warnings:    []string{},
		Refs:        []string{},
	}
	if rs != nil {
		adj, err := rs.ApplyModifiers(pc)
		if err != nil {
			return nil, eris.Wrap(err, "dosing: apply modifiers")
		}
		res.Modifiers = &adj
		res.Refs = append(res.Refs, adj.Refs...)
		res.RulesetVersion = rs.Version
	}
	if err := compute(rs, pc, res); err != nil {
		return nil, eris.Wrapf(err, "dosing: %s", el)
	}
	res.Refs = dedupe(res.Refs)
	return res, nil
}

// prepare parses the electrolyte's values and returns the calculation to run
// once the ruleset is known.
func (e *Engine) prepare(el Electrolyte, v *input.Validator, vals Values) computeFunc {
	switch el {
	case Albumin:
		in := calc.AlbuminInput{
			CurrentGdL:     v.NonNegative("current_g_dl", vals.raw("current_g_dl")),
			TargetGdL:      v.Positive("target_g_dl", vals.raw("target_g_dl")),
			ProductPercent: v.OneOf("product_percent", vals.raw("product_percent"), 5, 10, 20, 25),
			InfusionHours:  v.Positive("hours", vals.raw("hours")),
		}
		return func(_ *consensus.Ruleset, pc patient.Context, res *Result) error {
			in.Species, in.WeightKg = pc.Species(), pc.WeightKg()
			plan := calc.ComputeAlbuminPlan(in)
			res.Plan = plan
			res.Warnings = append(res.Warnings, plan.Warnings...)
			res.Summary = fmt.Sprintf("%.1f g deficit: %.0f mL of %g%% albumin over %g h",
				plan.DeficitG, plan.TotalVolumeMl, in.ProductPercent, plan.SuggestedHours)
			return nil
		}

	case Potassium:
		serumK := v.Positive("serum_k", vals.raw("serum_k"))
		rate := v.Positive("fluid_rate_ml_h", vals.raw("fluid_rate_ml_h"))
		return func(rs *consensus.Ruleset, pc patient.Context, res *Result) error {
			g, err := rs.PotassiumGuidance(pc, serumK)
			if err != nil {
				return err
			}
			plan := calc.ComputePotassiumPlan(g.CalcInput(pc.WeightKg(), rate))
			res.Plan, res.Limits = plan, g
			res.Classification = &plan.Classification
			res.Warnings = append(res.Warnings, plan.Warnings...)
			res.Refs = append(res.Refs, g.Refs...)
			res.Summary = fmt.Sprintf("add %g mEq KCl/L (%.1f mL); %s mEq/kg/h at %g mL/h",
				plan.KClPerLiter, plan.KClMlPerLiter, fmt2(plan.InfusionRateMEqKgH), rate)
			return nil
		}

	case Sodium:
		currentNa := v.Positive("current_na", vals.raw("current_na"))
		targetNa := vals.optional(v, "target_na")
		fluidNa := vals.optional(v, "fluid_na")
		desired := vals.optional(v, "rate_meq_l_h")
		fluidName := vals.raw("fluid")
		defaulted := fluidName == ""
		if defaulted {
			fluidName = DefaultSodiumFluid
		}
		return func(rs *consensus.Ruleset, pc patient.Context, res *Result) error {
			lim, err := rs.SodiumLimits(pc)
			if err != nil {
				return err
			}
			label := fluidName
			na, ok := fluidNa.Get()
			if ok {
				label = fmt.Sprintf("fluid with %g mEq/L Na", na)
			} else {
				info, found := rs.FluidRegistry().Lookup(fluidName)
				if !found {
					return fieldError("fluid", fluidName, "unknown fluid")
				}
				na, label = info.Na, info.Name
				if res.Modifiers != nil && slices.Contains(res.Modifiers.FluidsToAvoid, info.Name) {
					msg := fmt.Sprintf("%s is on the fluids to avoid for this patient (%s)",
						info.Name, strings.Join(res.Modifiers.Applied, ", "))
					if defaulted {
						msg += "; it is the default fluid, name a preferred one with fluid"
					}
					res.Warnings = append(res.Warnings, msg)
				}
			}
			coef := e.opts.SodiumTBWCoef
			if e.opts.UseRulesetTBW {
				coef = lim.TBWCoef
			} else if coef != lim.TBWCoef {
				res.Warnings = append(res.Warnings, fmt.Sprintf(
					"flat TBW coefficient %.2f used; the ruleset gives %.2f for %s", coef, lim.TBWCoef, pc.Species()))
			}

			plan := calc.ComputeSodiumPlan(calc.SodiumInput{
				Species:          pc.Species(),
				WeightKg:         pc.WeightKg(),
				CurrentNa:        currentNa,
				TargetNa:         targetNa.Or(calc.NormalSodium(pc.Species())),
				FluidNa:          na,
				DesiredRateMEqLH: desired.Or(lim.MaxHourlyMEqL),
				TBWCoef:          coef,
			})
			res.Plan, res.Limits = plan, lim
			res.Classification = &plan.Classification
			res.Warnings = append(res.Warnings, plan.Warnings...)
			res.Warnings = append(res.Warnings, calc.CheckSodiumRate(plan, lim.RateLimits())...)
			res.Refs = append(res.Refs, lim.Refs...)
			res.Summary = fmt.Sprintf("%s at %s mL/h, %g mEq/L/h, %s h to target",
				label, fmt1(plan.InfusionRateMlH),
				numeric.Round(plan.DesiredRateMEqLH, 3), fmt1(plan.HoursToTarget))
			return nil
		}

	case Calcium:
		in := calc.CalciumInput{
			TotalCalcium:   vals.optional(v, "total_calcium"),
			Albumin:        vals.optional(v, "albumin"),
			IonizedCalcium: vals.optional(v, "ionized_calcium"),
			Phosphorus:     vals.optional(v, "phosphorus").Or(0),
			PhosphorusUnit: vals.unit(v, "phosphorus_unit"),
		}
		if !in.TotalCalcium.Computed() && !in.IonizedCalcium.Computed() {
			v.Fail("total_calcium", "", "total or ionized calcium is required")
		}
		return func(_ *consensus.Ruleset, pc patient.Context, res *Result) error {
			in.Species, in.WeightKg = pc.Species(), pc.WeightKg()
			plan := calc.ComputeCalciumPlan(in)
			res.Plan = plan
			res.Classification = &plan.Classification
			res.Warnings = append(res.Warnings, plan.Warnings...)
			res.Summary = fmt.Sprintf("%s (%s basis), Ca×P %s, bolus %s mL",
				plan.Condition, plan.Basis, fmt1(plan.CaPProduct), fmt1(plan.BolusDoseMl))
			return nil
		}

	case Magnesium:
		serum := v.Positive("serum_mg", vals.raw("serum_mg"))
		unit := vals.unit(v, "unit")
		return func(rs *consensus.Ruleset, pc patient.Context, res *Result) error {
			plan := calc.ComputeMagnesiumPlan(calc.MagnesiumInput{
				Species:         pc.Species(),
				WeightKg:        pc.WeightKg(),
				SerumMg:         serum,
				Unit:            unit,
				RenalImpairment: pc.Has(patient.Nephropathy),
				MgSO4MEqPerMl:   rs.MgSO4MEqPerMl(),
			})
			res.Plan = plan
			res.Classification = &plan.Classification
			res.Warnings = append(res.Warnings, plan.Warnings...)
			res.Summary = fmt.Sprintf("%s mEq/day (%s mEq/h), %s mL MgSO4/day",
				fmt2(plan.DailyDoseMEq), fmt2(plan.RateMEqH), fmt1(plan.MgSO4MlPerDay))
			return nil
		}

	case Phosphorus:
		serum := v.Positive("serum_p", vals.raw("serum_p"))
		unit := vals.unit(v, "unit")
		hours := vals.optional(v, "hours")
		return func(rs *consensus.Ruleset, pc patient.Context, res *Result) error {
			lim := rs.PhosphorusLimits()
			plan := calc.ComputePhosphorusPlan(calc.PhosphorusInput{
				Species:  pc.Species(),
				WeightKg: pc.WeightKg(),
				SerumP:   serum,
				Unit:     unit,
				Hours:    hours.Or(0),
				Limits:   lim,
			})
			res.Plan, res.Limits = plan, lim
			res.Classification = &plan.Classification
			res.Warnings = append(res.Warnings, plan.Warnings...)
			if rs.Limits.Phosphorus != nil {
				res.Refs = append(res.Refs, rs.GetRefs(rs.Limits.Phosphorus.Refs...)...)
			}
			res.Summary = fmt.Sprintf("%s mmol/kg/h, %s mL/h KPhos for %g h",
				fmt2(plan.DoseMmolKgH), fmt2(plan.KPhosMlH), plan.Hours)
			return nil
		}

	case Bicarbonate:
		hco3 := v.Positive("hco3", vals.raw("hco3"))
		target := vals.optional(v, "target_hco3")
		ph := vals.optional(v, "ph")
		hours := vals.optional(v, "hours")
		if p, ok := ph.Get(); ok {
			v.Check(p >= 6.5 && p <= 8, "ph", vals.raw("ph"), "must be between 6.5 and 8")
		}
		return func(rs *consensus.Ruleset, pc patient.Context, res *Result) error {
			lim := rs.BicarbonateLimits()
			plan := calc.ComputeBicarbonatePlan(calc.BicarbonateInput{
				WeightKg:    pc.WeightKg(),
				CurrentHCO3: hco3,
				TargetHCO3:  target.Or(0),
				PH:          ph,
				Hours:       hours.Or(0),
				Limits:      lim,
			})
			res.Plan, res.Limits = plan, lim
			res.Classification = &plan.Classification
			res.Warnings = append(res.Warnings, plan.Warnings...)
			if rs.Limits.Bicarbonate != nil {
				res.Refs = append(res.Refs, rs.GetRefs(rs.Limits.Bicarbonate.Refs...)...)
			}
			if !plan.Indicated {
				res.Summary = "bicarbonate therapy not indicated"
				return nil
			}
			res.Summary = fmt.Sprintf("%s mEq initial dose (%s mL NaHCO3) at %s mL/h",
				fmt1(plan.InitialDoseMEq), fmt1(plan.NaHCO3Ml), fmt1(plan.RateMlH))
			return nil
		}

	case Glucose:
		g := v.Positive("glucose", vals.raw("glucose"))
		unit := vals.unit(v, "unit")
		return func(rs *consensus.Ruleset, pc patient.Context, res *Result) error {
			lim := rs.GlucoseLimits()
			plan := calc.ComputeGlucosePlan(calc.GlucoseInput{
				Species:  pc.Species(),
				WeightKg: pc.WeightKg(),
				Glucose:  g,
				Unit:     unit,
				Limits:   lim,
			})
			res.Plan, res.Limits = plan, lim
			res.Classification = &plan.Classification
			res.Warnings = append(res.Warnings, plan.Warnings...)
			if rs.Limits.Glucose != nil {
				res.Refs = append(res.Refs, rs.GetRefs(rs.Limits.Glucose.Refs...)...)
			}
			switch {
			case plan.BolusG.Computed():
				res.Summary = fmt.Sprintf("dextrose bolus %s g (%s mL of 50%%)", fmt1(plan.BolusG), fmt1(plan.Dextrose50Ml))
			case plan.Insulin != nil:
				res.Summary = fmt.Sprintf("insulin CRI %g U in %g mL at %g mL/h",
					numeric.Round(plan.Insulin.UnitsInBag, 1), plan.Insulin.BagVolumeMl, plan.Insulin.Tier.BagRateMlH)
			default:
				res.Summary = plan.Condition
			}
			return nil
		}
	}
	return nil
}

func fieldError(field, value, reason string) error {
	return input.FieldErrors{{Field: field, Value: value, Reason: reason}}
}

func fmt1(o optional.Value) string { return format(o, 1) }
func fmt2(o optional.Value) string { return format(o, 2) }

func format(o optional.Value, places int) string {
	f, ok := o.Get()
	if !ok {
		return o.String()
	}
	return fmt.Sprintf("%.*f", places, f)
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
