package dosing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetref/electrolyte-cli/internal/calc"
	"github.com/vetref/electrolyte-cli/internal/consensus"
	"github.com/vetref/electrolyte-cli/internal/input"
)

type staticRules struct {
	rs  *consensus.Ruleset
	err error
}

func (s staticRules) Load(context.Context) (*consensus.Ruleset, error) {
	return s.rs, s.err
}

func newEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	rs, err := consensus.Embedded()
	require.NoError(t, err)
	return New(staticRules{rs: rs}, opts)
}

func dog10() PatientFields {
	return PatientFields{Species: "dog", WeightKg: "10"}
}

func TestEvaluate_Potassium(t *testing.T) {
	t.Parallel()

	e := newEngine(t, Options{})
	res, err := e.Evaluate(context.Background(), Request{
		Electrolyte: "potassio",
		Patient:     dog10(),
		Values:      Values{"serum_k": "2,8", "fluid_rate_ml_h": "100"},
	})
	require.NoError(t, err)

	assert.Equal(t, Potassium, res.Electrolyte)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "2024.2", res.RulesetVersion)
	plan, ok := res.Plan.(calc.PotassiumPlan)
	require.True(t, ok)
	assert.Equal(t, 40.0, plan.KClPerLiter)
	rate, _ := plan.InfusionRateMEqKgH.Get()
	assert.InDelta(t, 0.4, rate, 1e-9)
	assert.False(t, plan.Unsafe)
	assert.Equal(t, "add 40 mEq KCl/L (20.0 mL); 0.40 mEq/kg/h at 100 mL/h", res.Summary)
	require.NotNil(t, res.Classification)
	assert.Equal(t, calc.StatusLow, res.Classification.Status)
	assert.IsType(t, consensus.PotassiumGuidance{}, res.Limits)
	assert.NotEmpty(t, res.Refs)
}

func TestEvaluate_ModifiersReducePotassiumCeiling(t *testing.T) {
	t.Parallel()

	e := newEngine(t, Options{})
	res, err := e.Evaluate(context.Background(), Request{
		Electrolyte: "potassium",
		Patient: PatientFields{
			Species:       "cão",
			WeightKg:      "10",
			State:         "filhote",
			Comorbidities: []string{"cardiopata, nefropata"},
		},
		Values: Values{"serum_k": "2.8", "fluid_rate_ml_h": "100"},
	})
	require.NoError(t, err)

	require.NotNil(t, res.Modifiers)
	assert.Equal(t, 55.0, res.Modifiers.RateReductionPercent)
	g := res.Limits.(consensus.PotassiumGuidance)
	assert.InDelta(t, 0.225, g.MaxMEqKgH, 1e-9)
	assert.InDelta(t, 5.4, g.MaxFluidMlKgH, 1e-9)

	plan := res.Plan.(calc.PotassiumPlan)
	assert.True(t, plan.Unsafe)
	assert.InDelta(t, 0.225, plan.CeilingMEqKgH, 1e-9)
	assert.InDelta(t, 5.4, plan.MaxFluidRateMlKgH, 1e-9)
	assert.Len(t, res.Warnings, 2)
}

func TestEvaluate_Sodium(t *testing.T) {
	t.Parallel()

	e := newEngine(t, Options{})
	res, err := e.Evaluate(context.Background(), Request{
		Electrolyte: "sodium",
		Patient:     PatientFields{Species: "dog", WeightKg: "8"},
		Values:      Values{"current_na": "118", "fluid": "soro fisiologico", "rate_meq_l_h": "0.5"},
	})
	require.NoError(t, err)

	plan := res.Plan.(calc.SodiumPlan)
	rate, ok := plan.InfusionRateMlH.Get()
	require.True(t, ok)
	assert.InDelta(t, 80.6, rate, 0.1)
	assert.Equal(t, 0.6, plan.TBWCoef)

	lim := res.Limits.(consensus.SodiumLimits)
	assert.Equal(t, 8.0, lim.MaxDailyMEqL)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "daily limit")
	assert.Contains(t, res.Summary, "NaCl 0.9% at 80.6 mL/h")
}

func TestEvaluate_SodiumTBWDiscrepancy(t *testing.T) {
	t.Parallel()

	req := Request{
		Electrolyte: "na",
		Patient:     PatientFields{Species: "gato", WeightKg: "4", Evolution: "aguda"},
		Values:      Values{"current_na": "130", "fluid_na": "154"},
	}

	res, err := newEngine(t, Options{}).Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0.6, res.Plan.(calc.SodiumPlan).TBWCoef)
	assert.Contains(t, res.Warnings, "flat TBW coefficient 0.60 used; the ruleset gives 0.50 for cat")
	assert.Contains(t, res.Summary, "fluid with 154 mEq/L Na")

	res, err = newEngine(t, Options{UseRulesetTBW: true}).Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0.5, res.Plan.(calc.SodiumPlan).TBWCoef)
	assert.Empty(t, res.Warnings)
}

func TestEvaluate_SodiumAvoidedFluid(t *testing.T) {
	t.Parallel()

	cardiac := PatientFields{Species: "dog", WeightKg: "8", Comorbidities: []string{"cardiopata"}}
	tests := []struct {
		name        string
		values      Values
		wantWarning string
	}{
		{"default fluid", Values{"current_na": "118"}, "it is the default fluid"},
		{"named alias", Values{"current_na": "118", "fluid": "salina 0.9%"}, "NaCl 0.9% is on the fluids to avoid for this patient"},
		{"preferred fluid", Values{"current_na": "118", "fluid": "Ringer Lactato"}, ""},
		{"explicit sodium", Values{"current_na": "118", "fluid_na": "154"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := newEngine(t, Options{}).Evaluate(context.Background(), Request{
				Electrolyte: "sodium",
				Patient:     cardiac,
				Values:      tt.values,
			})
			require.NoError(t, err)
			require.NotNil(t, res.Modifiers)
			assert.Contains(t, res.Modifiers.FluidsToAvoid, "NaCl 0.9%")

			var avoided []string
			for _, w := range res.Warnings {
				if strings.Contains(w, "fluids to avoid") {
					avoided = append(avoided, w)
				}
			}
			if tt.wantWarning == "" {
				assert.Empty(t, avoided)
				return
			}
			require.Len(t, avoided, 1)
			assert.Contains(t, avoided[0], tt.wantWarning)
			assert.Contains(t, avoided[0], "cardiopathy")
		})
	}
}

func TestEvaluate_SodiumUnknownFluid(t *testing.T) {
	t.Parallel()

	_, err := newEngine(t, Options{}).Evaluate(context.Background(), Request{
		Electrolyte: "sodium",
		Patient:     dog10(),
		Values:      Values{"current_na": "120", "fluid": "Hetastarch"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, input.ErrInvalid))
}

func TestEvaluate_ValidationErrors(t *testing.T) {
	t.Parallel()

	e := newEngine(t, Options{})
	_, err := e.Evaluate(context.Background(), Request{
		Electrolyte: "potassium",
		Patient:     PatientFields{Species: "horse", WeightKg: "-1", Comorbidities: []string{"gout"}},
		Values:      Values{"serum_k": "abc"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, input.ErrInvalid))

	var fe input.FieldErrors
	require.True(t, errors.As(err, &fe))
	var names []string
	for _, f := range fe {
		names = append(names, f.Field)
	}
	assert.Equal(t, []string{"species", "weight_kg", "comorbidities", "serum_k", "fluid_rate_ml_h"}, names)
}

func TestEvaluate_UnknownElectrolyte(t *testing.T) {
	t.Parallel()

	_, err := newEngine(t, Options{}).Evaluate(context.Background(), Request{
		Electrolyte: "lithium",
		Patient:     dog10(),
	})
	var fe input.FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "electrolyte", fe[0].Field)
}

func TestEvaluate_RulesUnavailable(t *testing.T) {
	t.Parallel()

	offline := &consensus.UnavailableError{Cause: errors.New("offline")}
	e := New(staticRules{err: offline}, Options{})

	_, err := e.Evaluate(context.Background(), Request{
		Electrolyte: "glucose",
		Patient:     dog10(),
		Values:      Values{"glucose": "45"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, consensus.ErrRulesUnavailable))

	res, err := e.Evaluate(context.Background(), Request{
		Electrolyte: "albumin",
		Patient:     PatientFields{Species: "dog", WeightKg: "20"},
		Values:      Values{"current_g_dl": "1.5", "target_g_dl": "2.5", "product_percent": "10", "hours": "8"},
	})
	require.NoError(t, err)
	assert.Nil(t, res.Modifiers)
	assert.Empty(t, res.RulesetVersion)
	plan := res.Plan.(calc.AlbuminPlan)
	assert.Equal(t, 60.0, plan.DeficitG)
	assert.Equal(t, 18.0, plan.SuggestedHours)
	assert.Len(t, res.Warnings, 1)
}

func TestEvaluate_Calcium(t *testing.T) {
	t.Parallel()

	e := newEngine(t, Options{})
	res, err := e.Evaluate(context.Background(), Request{
		Electrolyte: "calcio",
		Patient:     dog10(),
		Values:      Values{"total_calcium": "7", "albumin": "1.5", "phosphorus": "8"},
	})
	require.NoError(t, err)
	plan := res.Plan.(calc.CalciumPlan)
	corrected, _ := plan.CorrectedCalcium.Get()
	assert.InDelta(t, 9.0, corrected, 1e-9)
	assert.True(t, plan.MineralizationRisk)

	_, err = e.Evaluate(context.Background(), Request{
		Electrolyte: "calcium",
		Patient:     dog10(),
		Values:      Values{"albumin": "2"},
	})
	assert.True(t, errors.Is(err, input.ErrInvalid))
}

func TestEvaluate_OtherCalculators(t *testing.T) {
	t.Parallel()

	e := newEngine(t, Options{})
	tests := []struct {
		name   string
		el     string
		values Values
		check  func(t *testing.T, res *Result)
	}{
		{"magnesium", "mg", Values{"serum_mg": "1.0"}, func(t *testing.T, res *Result) {
			assert.IsType(t, calc.MagnesiumPlan{}, res.Plan)
		}},
		{"phosphorus mmol", "fosforo", Values{"serum_p": "0.3", "unit": "mmol/L"}, func(t *testing.T, res *Result) {
			plan := res.Plan.(calc.PhosphorusPlan)
			assert.InDelta(t, 0.3/0.323, plan.SerumPMgDL, 1e-9)
			assert.Equal(t, 6.0, plan.Hours)
		}},
		{"bicarbonate not indicated", "hco3", Values{"hco3": "20"}, func(t *testing.T, res *Result) {
			assert.Equal(t, "bicarbonate therapy not indicated", res.Summary)
		}},
		{"bicarbonate indicated", "bicarbonato", Values{"hco3": "8", "ph": "7,05"}, func(t *testing.T, res *Result) {
			assert.True(t, res.Plan.(calc.BicarbonatePlan).Indicated)
		}},
		{"glucose", "glicemia", Values{"glucose": "45"}, func(t *testing.T, res *Result) {
			assert.Equal(t, calc.StatusLow, res.Classification.Status)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := e.Evaluate(context.Background(), Request{Electrolyte: tt.el, Patient: dog10(), Values: tt.values})
			require.NoError(t, err)
			assert.NotEmpty(t, res.Summary)
			tt.check(t, res)
		})
	}
}

func TestEvaluate_BadUnitAndPH(t *testing.T) {
	t.Parallel()

	e := newEngine(t, Options{})
	_, err := e.Evaluate(context.Background(), Request{
		Electrolyte: "glucose", Patient: dog10(), Values: Values{"glucose": "5", "unit": "furlongs"},
	})
	assert.True(t, errors.Is(err, input.ErrInvalid))

	_, err = e.Evaluate(context.Background(), Request{
		Electrolyte: "bicarbonate", Patient: dog10(), Values: Values{"hco3": "10", "ph": "9"},
	})
	assert.True(t, errors.Is(err, input.ErrInvalid))
}
