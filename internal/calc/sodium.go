package calc

import (
	"fmt"
	"math"

	"github.com/vetref/electrolyte-cli/internal/optional"
	"github.com/vetref/electrolyte-cli/internal/patient"
)

// DefaultSodiumTBWCoef is the flat total-body-water fraction this calculator
// uses for both species. The consensus ruleset carries per-species values;
// callers choose which one to pass.
const DefaultSodiumTBWCoef = 0.6

// NormalSodium returns the reference serum sodium for the species.
func NormalSodium(species patient.Species) float64 {
	if species == patient.Cat {
		return 155
	}
	return 145
}

// SodiumInput are the inputs of ComputeSodiumPlan.
type SodiumInput struct {
	Species          patient.Species `json:"species"`
	WeightKg         float64         `json:"weight_kg"`
	CurrentNa        float64         `json:"current_na"`
	TargetNa         float64         `json:"target_na"`
	FluidNa          float64         `json:"fluid_na"`
	DesiredRateMEqLH float64         `json:"desired_rate_mEq_l_h"`
	TBWCoef          float64         `json:"tbw_coef,omitempty"`
}

// SodiumPlan is the result of ComputeSodiumPlan.
type SodiumPlan struct {
	Classification
	TBWCoef            float64        `json:"tbw_coef"`
	TBWL               float64        `json:"tbw_l"`
	DeficitMEq         float64        `json:"deficit_mEq"`
	WaterDeficitL      float64        `json:"water_deficit_l"`
	InfusionRateMlH    optional.Value `json:"infusion_rate_ml_h"`
	HoursToTarget      optional.Value `json:"hours_to_target"`
	DesiredRateMEqLH   float64        `json:"desired_rate_mEq_l_h"`
	ProjectedChange24h float64        `json:"projected_change_24h"`
	Warnings           []string       `json:"warnings"`
}

// ClassifySodium grades serum sodium with species-specific thresholds.
func ClassifySodium(species patient.Species, na float64) Classification {
	if species == patient.Cat {
		switch {
		case na < 149:
			return low(SeveritySevere, "hyponatremia")
		case na < 150:
			return low(SeverityMild, "hyponatremia")
		case na > 165:
			return high(SeveritySevere, "hypernatremia")
		}
		return normal()
	}
	switch {
	case na < 140:
		return low(SeveritySevere, "hyponatremia")
	case na < 145:
		return low(SeverityMild, "hyponatremia")
	case na > 155:
		return high(SeveritySevere, "hypernatremia")
	}
	return normal()
}

// ComputeSodiumPlan computes the sodium deficit, free-water deficit and the
// infusion rate that moves serum sodium by DesiredRateMEqLH per hour using
// the Adrogué–Madias change-per-liter estimate (infusate − serum) / (TBW + 1).
//
// The rate is only defined when the fluid's sodium exceeds the patient's.
// Rate-limit enforcement is left to CheckSodiumRate.
func ComputeSodiumPlan(in SodiumInput) SodiumPlan {
	coef := in.TBWCoef
	if coef <= 0 {
		coef = DefaultSodiumTBWCoef
	}
	tbw := coef * math.Max(0, in.WeightKg)

	plan := SodiumPlan{
		Classification:   ClassifySodium(in.Species, in.CurrentNa),
		TBWCoef:          coef,
		TBWL:             tbw,
		DeficitMEq:       (in.TargetNa - in.CurrentNa) * tbw,
		WaterDeficitL:    (in.CurrentNa/NormalSodium(in.Species) - 1) * tbw,
		InfusionRateMlH:  optional.None(),
		HoursToTarget:    optional.None(),
		DesiredRateMEqLH: in.DesiredRateMEqLH,
		Warnings:         []string{},
	}

	if in.DesiredRateMEqLH > 0 {
		plan.ProjectedChange24h = in.DesiredRateMEqLH * 24
		if in.TargetNa != in.CurrentNa {
			plan.HoursToTarget = optional.Of(math.Abs(in.TargetNa-in.CurrentNa) / in.DesiredRateMEqLH)
		}
	}

	if tbw <= 0 {
		return plan
	}
	if in.FluidNa <= in.CurrentNa {
		plan.Warnings = append(plan.Warnings, fmt.Sprintf(
			"fluid sodium %.0f mEq/L does not exceed serum sodium %.0f mEq/L; infusion rate not computed",
			in.FluidNa, in.CurrentNa))
		return plan
	}
	if in.DesiredRateMEqLH <= 0 {
		return plan
	}

	rateLH := in.DesiredRateMEqLH * (tbw + 1) / (in.FluidNa - in.CurrentNa)
	plan.InfusionRateMlH = optional.Of(rateLH * 1000)
	return plan
}

// SodiumRateLimits are the correction-speed ceilings from the consensus engine.
type SodiumRateLimits struct {
	MaxDailyMEqL  float64 `json:"max_daily_mEq_l"`
	MaxHourlyMEqL float64 `json:"max_hourly_mEq_l"`
}

// CheckSodiumRate compares the plan's correction speed against limits and
// returns one warning per exceeded ceiling.
func CheckSodiumRate(plan SodiumPlan, limits SodiumRateLimits) []string {
	var warnings []string
	if limits.MaxHourlyMEqL > 0 && plan.DesiredRateMEqLH > limits.MaxHourlyMEqL {
		warnings = append(warnings, fmt.Sprintf(
			"correction rate %.2f mEq/L/h exceeds the %.2f mEq/L/h limit",
			plan.DesiredRateMEqLH, limits.MaxHourlyMEqL))
	}
	if limits.MaxDailyMEqL > 0 && plan.ProjectedChange24h > limits.MaxDailyMEqL {
		warnings = append(warnings, fmt.Sprintf(
			"projected change %.1f mEq/L in 24 h exceeds the %.1f mEq/L daily limit",
			plan.ProjectedChange24h, limits.MaxDailyMEqL))
	}
	return warnings
}
