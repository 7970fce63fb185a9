package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetref/electrolyte-cli/internal/optional"
)

func TestClassifyPH(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ph       float64
		status   Status
		severity Severity
	}{
		{6.9, StatusLow, SeveritySevere},
		{7.1, StatusLow, SeverityModerate},
		{7.3, StatusLow, SeverityMild},
		{7.4, StatusNormal, SeverityNone},
		{7.48, StatusHigh, SeverityMild},
		{7.55, StatusHigh, SeverityModerate},
		{7.7, StatusHigh, SeveritySevere},
	}
	for _, tt := range tests {
		got := ClassifyPH(tt.ph)
		assert.Equal(t, tt.status, got.Status, "pH %v", tt.ph)
		assert.Equal(t, tt.severity, got.Severity, "pH %v", tt.ph)
	}
}

func TestComputeBicarbonatePlan_Indicated(t *testing.T) {
	t.Parallel()

	plan := ComputeBicarbonatePlan(BicarbonateInput{
		WeightKg: 20, CurrentHCO3: 8, PH: optional.Of(7.05),
	})

	require.True(t, plan.Indicated)
	assert.Equal(t, "acidemia", plan.Condition)
	// 0.3 * 20 * (15 - 8) = 42
	assert.InDelta(t, 42, plan.DeficitMEq, 1e-9)
	dose, ok := plan.InitialDoseMEq.Get()
	require.True(t, ok)
	assert.InDelta(t, 14, dose, 1e-9)
	ml, _ := plan.NaHCO3Ml.Get()
	assert.InDelta(t, 14, ml, 1e-9)
	rate, _ := plan.RateMlH.Get()
	assert.InDelta(t, 14.0/6, rate, 1e-9)
	assert.Equal(t, 6.0, plan.Hours)
}

func TestComputeBicarbonatePlan_IndicatedByHCO3WithoutPH(t *testing.T) {
	t.Parallel()

	plan := ComputeBicarbonatePlan(BicarbonateInput{
		WeightKg: 10, CurrentHCO3: 10, TargetHCO3: 16, Hours: 4,
	})
	assert.True(t, plan.Indicated)
	assert.Equal(t, "unknown", plan.Condition)
	assert.InDelta(t, 18, plan.DeficitMEq, 1e-9)
	rate, ok := plan.RateMlH.Get()
	require.True(t, ok)
	assert.InDelta(t, 1.5, rate, 1e-9)
}

func TestComputeBicarbonatePlan_NotIndicated(t *testing.T) {
	t.Parallel()

	plan := ComputeBicarbonatePlan(BicarbonateInput{
		WeightKg: 10, CurrentHCO3: 14, PH: optional.Of(7.2),
	})
	assert.False(t, plan.Indicated)
	assert.InDelta(t, 3, plan.DeficitMEq, 1e-9)
	assert.False(t, plan.InitialDoseMEq.Computed())
	require.Len(t, plan.Warnings, 1)
	assert.Contains(t, plan.Warnings[0], "not indicated")
}
