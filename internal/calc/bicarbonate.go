package calc

import (
	"fmt"
	"math"

	"github.com/vetref/electrolyte-cli/internal/optional"
)

// BicarbonateLimits configure sodium bicarbonate therapy. Zero fields take
// DefaultBicarbonateLimits values.
type BicarbonateLimits struct {
	DistributionFactor float64 `json:"distribution_factor"`
	InitialFraction    float64 `json:"initial_fraction"`
	TreatBelowPH       float64 `json:"treat_below_ph"`
	TreatBelowHCO3     float64 `json:"treat_below_hco3"`
	DefaultTargetHCO3  float64 `json:"default_target_hco3"`
	DefaultHours       float64 `json:"default_hours"`
	NaHCO3MEqPerMl     float64 `json:"nahco3_mEq_per_ml"`
}

// DefaultBicarbonateLimits returns the built-in bicarbonate limits.
func DefaultBicarbonateLimits() BicarbonateLimits {
	return BicarbonateLimits{
		DistributionFactor: 0.3,
		InitialFraction:    1.0 / 3.0,
		TreatBelowPH:       7.1,
		TreatBelowHCO3:     12,
		DefaultTargetHCO3:  15,
		DefaultHours:       6,
		NaHCO3MEqPerMl:     1.0,
	}
}

func (l BicarbonateLimits) withDefaults() BicarbonateLimits {
	d := DefaultBicarbonateLimits()
	if l.DistributionFactor <= 0 {
		l.DistributionFactor = d.DistributionFactor
	}
	if l.InitialFraction <= 0 || l.InitialFraction > 1 {
		l.InitialFraction = d.InitialFraction
	}
	if l.TreatBelowPH <= 0 {
		l.TreatBelowPH = d.TreatBelowPH
	}
	if l.TreatBelowHCO3 <= 0 {
		l.TreatBelowHCO3 = d.TreatBelowHCO3
	}
	if l.DefaultTargetHCO3 <= 0 {
		l.DefaultTargetHCO3 = d.DefaultTargetHCO3
	}
	if l.DefaultHours <= 0 {
		l.DefaultHours = d.DefaultHours
	}
	if l.NaHCO3MEqPerMl <= 0 {
		l.NaHCO3MEqPerMl = d.NaHCO3MEqPerMl
	}
	return l
}

// BicarbonateInput are the inputs of ComputeBicarbonatePlan. PH is optional.
type BicarbonateInput struct {
	WeightKg    float64           `json:"weight_kg"`
	CurrentHCO3 float64           `json:"current_hco3"`
	TargetHCO3  float64           `json:"target_hco3,omitempty"`
	PH          optional.Value    `json:"ph"`
	Hours       float64           `json:"hours,omitempty"`
	Limits      BicarbonateLimits `json:"limits,omitempty"`
}

// BicarbonatePlan is the result of ComputeBicarbonatePlan.
type BicarbonatePlan struct {
	Classification
	Indicated      bool           `json:"indicated"`
	DeficitMEq     float64        `json:"deficit_mEq"`
	InitialDoseMEq optional.Value `json:"initial_dose_mEq"`
	NaHCO3Ml       optional.Value `json:"nahco3_ml"`
	RateMlH        optional.Value `json:"rate_ml_h"`
	Hours          float64        `json:"hours,omitempty"`
	Warnings       []string       `json:"warnings"`
}

// ClassifyPH grades blood pH as acidemia or alkalemia.
func ClassifyPH(ph float64) Classification {
	switch {
	case ph < 7.0:
		return low(SeveritySevere, "acidemia")
	case ph < 7.2:
		return low(SeverityModerate, "acidemia")
	case ph < 7.35:
		return low(SeverityMild, "acidemia")
	case ph > 7.6:
		return high(SeveritySevere, "alkalemia")
	case ph > 7.5:
		return high(SeverityModerate, "alkalemia")
	case ph > 7.45:
		return high(SeverityMild, "alkalemia")
	}
	return normal()
}

// ComputeBicarbonatePlan computes the bicarbonate deficit
// (factor × weight × (target − current)) and the conservative initial dose.
// The dose is only computed when pH or HCO3 is below the treatment threshold.
func ComputeBicarbonatePlan(in BicarbonateInput) BicarbonatePlan {
	lim := in.Limits.withDefaults()
	target := in.TargetHCO3
	if target <= 0 {
		target = lim.DefaultTargetHCO3
	}

	plan := BicarbonatePlan{
		Classification: normal(),
		InitialDoseMEq: optional.None(),
		NaHCO3Ml:       optional.None(),
		RateMlH:        optional.None(),
		Warnings:       []string{},
	}
	ph, hasPH := in.PH.Get()
	if hasPH && ph > 0 {
		plan.Classification = ClassifyPH(ph)
	} else {
		plan.Condition = "unknown"
	}

	plan.DeficitMEq = lim.DistributionFactor * math.Max(0, in.WeightKg) * math.Max(0, target-in.CurrentHCO3)

	plan.Indicated = (hasPH && ph > 0 && ph < lim.TreatBelowPH) || (in.CurrentHCO3 > 0 && in.CurrentHCO3 < lim.TreatBelowHCO3)
	if !plan.Indicated {
		plan.Warnings = append(plan.Warnings, fmt.Sprintf(
			"bicarbonate therapy not indicated: requires pH < %.2f or HCO3 < %.0f mEq/L; treat the underlying cause",
			lim.TreatBelowPH, lim.TreatBelowHCO3))
		return plan
	}
	if plan.DeficitMEq <= 0 {
		return plan
	}

	hours := in.Hours
	if hours <= 0 {
		hours = lim.DefaultHours
	}
	dose := plan.DeficitMEq * lim.InitialFraction
	ml := dose / lim.NaHCO3MEqPerMl

	plan.InitialDoseMEq = optional.Of(dose)
	plan.NaHCO3Ml = optional.Of(ml)
	plan.RateMlH = optional.Of(ml / hours)
	plan.Hours = hours
	plan.Warnings = append(plan.Warnings,
		"recheck blood gas before giving the remainder of the deficit",
		"bicarbonate can cause hypernatremia, hypokalemia and ionized hypocalcemia",
		"never mix sodium bicarbonate with calcium-containing solutions")
	return plan
}
