package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetref/electrolyte-cli/internal/numeric"
	"github.com/vetref/electrolyte-cli/internal/optional"
	"github.com/vetref/electrolyte-cli/internal/patient"
)

func TestComputeCalciumPlan_CorrectedNormal(t *testing.T) {
	t.Parallel()

	plan := ComputeCalciumPlan(CalciumInput{
		Species: patient.Dog, WeightKg: 10,
		TotalCalcium: optional.Of(7.0), Albumin: optional.Of(1.5),
		Phosphorus: 4, PhosphorusUnit: numeric.UnitMgDL,
	})

	corrected, ok := plan.CorrectedCalcium.Get()
	require.True(t, ok)
	assert.InDelta(t, 9.0, corrected, 1e-9)
	assert.Equal(t, BasisTotal, plan.Basis)
	assert.Equal(t, StatusNormal, plan.Status)
	assert.False(t, plan.BolusDoseMl.Computed())
	assert.False(t, plan.CRIDoseMg.Computed())
}

func TestComputeCalciumPlan_CaPProductRisk(t *testing.T) {
	t.Parallel()

	plan := ComputeCalciumPlan(CalciumInput{
		Species: patient.Dog, WeightKg: 10,
		TotalCalcium: optional.Of(7.0), Albumin: optional.Of(1.5),
		Phosphorus: 8, PhosphorusUnit: numeric.UnitMgDL,
	})

	product, ok := plan.CaPProduct.Get()
	require.True(t, ok)
	assert.InDelta(t, 72, product, 1e-9)
	assert.True(t, plan.MineralizationRisk)
	require.NotEmpty(t, plan.Warnings)
	assert.Contains(t, plan.Warnings[0], "72")
}

func TestComputeCalciumPlan_IonizedPreferred(t *testing.T) {
	t.Parallel()

	plan := ComputeCalciumPlan(CalciumInput{
		Species: patient.Cat, WeightKg: 4,
		TotalCalcium: optional.Of(10.0), Albumin: optional.Of(3.0),
		IonizedCalcium: optional.Of(0.9),
		Phosphorus:     2.0, PhosphorusUnit: numeric.UnitMmolL,
	})

	assert.Equal(t, BasisIonized, plan.Basis)
	assert.Equal(t, StatusLow, plan.Status)
	assert.Equal(t, SeverityModerate, plan.Severity)

	// 0.9 * 4 * (2.0 / 0.323)
	product, ok := plan.CaPProduct.Get()
	require.True(t, ok)
	assert.InDelta(t, 3.6*2.0/0.323, product, 1e-6)

	bolus, ok := plan.BolusDoseMl.Get()
	require.True(t, ok)
	assert.InDelta(t, 2.0, bolus, 1e-9)
	cri, ok := plan.CRIDoseMg.Get()
	require.True(t, ok)
	assert.InDelta(t, 240, cri, 1e-9)
	criMl, _ := plan.CRIDoseMl.Get()
	assert.InDelta(t, 2.4, criMl, 1e-9)
	assert.Equal(t, 6.0, plan.CRIHoursMin)
	assert.Equal(t, 8.0, plan.CRIHoursMax)
}

func TestComputeCalciumPlan_HypocalcemiaNoWeight(t *testing.T) {
	t.Parallel()

	plan := ComputeCalciumPlan(CalciumInput{
		Species: patient.Dog, IonizedCalcium: optional.Of(0.7),
	})
	assert.Equal(t, SeveritySevere, plan.Severity)
	assert.False(t, plan.BolusDoseMl.Computed())
	assert.False(t, plan.CaPProduct.Computed())
}

func TestComputeCalciumPlan_MissingAlbumin(t *testing.T) {
	t.Parallel()

	plan := ComputeCalciumPlan(CalciumInput{Species: patient.Dog, TotalCalcium: optional.Of(12.0)})
	assert.False(t, plan.CorrectedCalcium.Computed())
	assert.Equal(t, BasisTotal, plan.Basis)
	assert.Equal(t, StatusHigh, plan.Status)
	assert.Contains(t, plan.Warnings, "total calcium not albumin-corrected; provide albumin or ionized calcium")
}

func TestComputeCalciumPlan_NoCalcium(t *testing.T) {
	t.Parallel()

	plan := ComputeCalciumPlan(CalciumInput{Species: patient.Dog, WeightKg: 10, Phosphorus: 5})
	assert.Equal(t, BasisNone, plan.Basis)
	assert.Equal(t, "unknown", plan.Condition)
	assert.False(t, plan.CaPProduct.Computed())
}

func TestClassifyTotalCalcium(t *testing.T) {
	t.Parallel()

	tests := []struct {
		species  patient.Species
		total    float64
		status   Status
		severity Severity
	}{
		{patient.Dog, 6.5, StatusLow, SeveritySevere},
		{patient.Dog, 7.5, StatusLow, SeverityModerate},
		{patient.Dog, 8.2, StatusLow, SeverityMild},
		{patient.Cat, 8.2, StatusNormal, SeverityNone},
		{patient.Dog, 11.5, StatusNormal, SeverityNone},
		{patient.Dog, 12, StatusHigh, SeverityMild},
		{patient.Dog, 14, StatusHigh, SeverityModerate},
		{patient.Cat, 15.5, StatusHigh, SeveritySevere},
	}
	for _, tt := range tests {
		got := ClassifyTotalCalcium(tt.species, tt.total)
		assert.Equal(t, tt.status, got.Status, "%s %v", tt.species, tt.total)
		assert.Equal(t, tt.severity, got.Severity, "%s %v", tt.species, tt.total)
	}
}

func TestClassifyIonizedCalcium(t *testing.T) {
	t.Parallel()
	assert.Equal(t, SeverityMild, ClassifyIonizedCalcium(1.05).Severity)
	assert.Equal(t, StatusNormal, ClassifyIonizedCalcium(1.25).Status)
	assert.Equal(t, SeverityMild, ClassifyIonizedCalcium(1.5).Severity)
	assert.Equal(t, SeverityModerate, ClassifyIonizedCalcium(1.7).Severity)
	assert.Equal(t, SeveritySevere, ClassifyIonizedCalcium(1.9).Severity)
}
