package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetref/electrolyte-cli/internal/numeric"
	"github.com/vetref/electrolyte-cli/internal/patient"
)

func TestInsulinTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		glucose float64
		rate    float64
		dex     float64
		stop    bool
	}{
		{90, 0, 5, true},
		{100, 0, 5, true},
		{120, 5, 5, false},
		{180, 5, 2.5, false},
		{250, 7, 2.5, false},
		{420, 10, 0, false},
	}
	for _, tt := range tests {
		row, ok := InsulinTable.Lookup(tt.glucose)
		require.True(t, ok)
		assert.Equal(t, tt.rate, row.BagRateMlH, "glucose %v", tt.glucose)
		assert.Equal(t, tt.dex, row.DextrosePercent, "glucose %v", tt.glucose)
		assert.Equal(t, tt.stop, row.StopInsulin, "glucose %v", tt.glucose)
	}
}

func TestDextroseSupplement(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 100.0, DextroseSupplement(5).Dextrose50MlPerL)
	assert.Equal(t, 50.0, DextroseSupplement(2.5).Dextrose50MlPerL)
}

func TestComputeGlucosePlan_Hypoglycemia(t *testing.T) {
	t.Parallel()

	plan := ComputeGlucosePlan(GlucoseInput{Species: patient.Dog, WeightKg: 10, Glucose: 45})

	assert.Equal(t, SeverityModerate, plan.Severity)
	g, ok := plan.BolusG.Get()
	require.True(t, ok)
	assert.InDelta(t, 5, g, 1e-9)
	ml, _ := plan.Dextrose50Ml.Get()
	assert.InDelta(t, 10, ml, 1e-9)
	dil, _ := plan.DiluentMl.Get()
	assert.InDelta(t, 10, dil, 1e-9)
	require.NotNil(t, plan.Supplementation)
	assert.Equal(t, 5.0, plan.Supplementation.Percent)
	assert.Nil(t, plan.Insulin)
}

func TestComputeGlucosePlan_MildHypoglycemiaFromMmol(t *testing.T) {
	t.Parallel()

	// 3.5 mmol/L is about 63 mg/dL.
	plan := ComputeGlucosePlan(GlucoseInput{Species: patient.Cat, WeightKg: 4, Glucose: 3.5, Unit: numeric.UnitMmolL})
	assert.InDelta(t, 63.056, plan.GlucoseMgDL, 1e-3)
	assert.Equal(t, SeverityMild, plan.Severity)
	require.NotNil(t, plan.Supplementation)
	assert.Equal(t, 2.5, plan.Supplementation.Percent)
}

func TestComputeGlucosePlan_InsulinCRI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		species patient.Species
		weight  float64
		glucose float64
		units   float64
		perHour float64
	}{
		{"dog severe", patient.Dog, 10, 450, 22, 22.0 / 250 * 10},
		{"cat moderate", patient.Cat, 4, 300, 4.4, 4.4 / 250 * 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			plan := ComputeGlucosePlan(GlucoseInput{Species: tt.species, WeightKg: tt.weight, Glucose: tt.glucose})
			require.NotNil(t, plan.Insulin)
			assert.InDelta(t, tt.units, plan.Insulin.UnitsInBag, 1e-9)
			assert.Equal(t, 250.0, plan.Insulin.BagVolumeMl)
			assert.InDelta(t, tt.perHour, plan.Insulin.UnitsPerH, 1e-9)
			assert.False(t, plan.BolusG.Computed())
		})
	}
}

func TestComputeGlucosePlan_MildHyperglycemiaNoInsulin(t *testing.T) {
	t.Parallel()

	plan := ComputeGlucosePlan(GlucoseInput{Species: patient.Dog, WeightKg: 10, Glucose: 200})
	assert.Equal(t, StatusHigh, plan.Status)
	assert.Nil(t, plan.Insulin)
	assert.Empty(t, plan.Warnings)
}
