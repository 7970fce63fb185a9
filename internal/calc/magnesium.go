package calc

import (
	"github.com/vetref/electrolyte-cli/internal/numeric"
	"github.com/vetref/electrolyte-cli/internal/optional"
	"github.com/vetref/electrolyte-cli/internal/patient"
)

// DefaultMgSO4MEqPerMl is the magnesium content of MgSO4 50%.
const DefaultMgSO4MEqPerMl = 4.06

var (
	magnesiumBandDog = band{Min: 1.8, Max: 2.4}
	magnesiumBandCat = band{Min: 1.9, Max: 2.6}
)

// MagnesiumInput are the inputs of ComputeMagnesiumPlan.
type MagnesiumInput struct {
	Species         patient.Species `json:"species"`
	WeightKg        float64         `json:"weight_kg"`
	SerumMg         float64         `json:"serum_mg"`
	Unit            numeric.Unit    `json:"unit"`
	RenalImpairment bool            `json:"renal_impairment"`
	MgSO4MEqPerMl   float64         `json:"mgso4_mEq_per_ml,omitempty"`
}

// MagnesiumPlan is the result of ComputeMagnesiumPlan.
type MagnesiumPlan struct {
	Classification
	SerumMgDL            float64        `json:"serum_mg_dl"`
	DailyDoseMEq         optional.Value `json:"daily_dose_mEq"`
	RateMEqH             optional.Value `json:"rate_mEq_h"`
	MgSO4MlPerDay        optional.Value `json:"mgso4_ml_per_day"`
	MaintenanceMinMEqDay optional.Value `json:"maintenance_min_mEq_day"`
	MaintenanceMaxMEqDay optional.Value `json:"maintenance_max_mEq_day"`
	Warnings             []string       `json:"warnings"`
}

// ClassifyMagnesium grades total magnesium in mg/dL.
func ClassifyMagnesium(species patient.Species, mg float64) Classification {
	b := bandFor(species, magnesiumBandDog, magnesiumBandCat)
	switch {
	case mg < b.Min:
		switch {
		case mg < 1.2:
			return low(SeveritySevere, "hypomagnesemia")
		case mg < 1.5:
			return low(SeverityModerate, "hypomagnesemia")
		}
		return low(SeverityMild, "hypomagnesemia")
	case mg > b.Max:
		switch {
		case mg > 5.0:
			return high(SeveritySevere, "hypermagnesemia")
		case mg > 3.5:
			return high(SeverityModerate, "hypermagnesemia")
		}
		return high(SeverityMild, "hypermagnesemia")
	}
	return normal()
}

// ComputeMagnesiumPlan computes the MgSO4 replacement for hypomagnesemia:
// a rapid phase of 0.75-1.0 mEq/kg/day over 24 h followed by 0.3-0.5
// mEq/kg/day maintenance. Renal impairment halves both.
func ComputeMagnesiumPlan(in MagnesiumInput) MagnesiumPlan {
	mgdl := numeric.MagnesiumToMgDL(in.SerumMg, in.Unit)
	plan := MagnesiumPlan{
		Classification:       ClassifyMagnesium(in.Species, mgdl),
		SerumMgDL:            mgdl,
		DailyDoseMEq:         optional.None(),
		RateMEqH:             optional.None(),
		MgSO4MlPerDay:        optional.None(),
		MaintenanceMinMEqDay: optional.None(),
		MaintenanceMaxMEqDay: optional.None(),
		Warnings:             []string{},
	}

	if plan.Status == StatusHigh {
		plan.Warnings = append(plan.Warnings, "hypermagnesemia: stop magnesium-containing fluids; consider diuresis")
		return plan
	}
	if plan.Status != StatusLow || in.WeightKg <= 0 {
		return plan
	}

	perKg := 0.75
	if plan.Severity != SeverityMild {
		perKg = 1.0
	}
	factor := 1.0
	if in.RenalImpairment {
		factor = 0.5
		plan.Warnings = append(plan.Warnings, "renal impairment: magnesium doses reduced by 50%; monitor serum magnesium closely")
	}
	stock := in.MgSO4MEqPerMl
	if stock <= 0 {
		stock = DefaultMgSO4MEqPerMl
	}

	daily := in.WeightKg * perKg * factor
	plan.DailyDoseMEq = optional.Of(daily)
	plan.RateMEqH = optional.Of(daily / 24)
	plan.MgSO4MlPerDay = optional.Of(daily / stock)
	plan.MaintenanceMinMEqDay = optional.Of(in.WeightKg * 0.3 * factor)
	plan.MaintenanceMaxMEqDay = optional.Of(in.WeightKg * 0.5 * factor)
	plan.Warnings = append(plan.Warnings,
		"dilute MgSO4 to 20% or less in D5W or NaCl 0.9%; do not mix with calcium- or bicarbonate-containing solutions")
	return plan
}
