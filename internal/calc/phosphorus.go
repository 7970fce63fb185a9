package calc

import (
	"fmt"

	"github.com/vetref/electrolyte-cli/internal/numeric"
	"github.com/vetref/electrolyte-cli/internal/optional"
	"github.com/vetref/electrolyte-cli/internal/patient"
)

var (
	phosphorusBandDog = band{Min: 2.5, Max: 6.8}
	phosphorusBandCat = band{Min: 3.1, Max: 7.5}
)

// PhosphorusLimits configure potassium phosphate supplementation. Zero
// fields take DefaultPhosphorusLimits values.
type PhosphorusLimits struct {
	DoseMinMmolKgH    float64 `json:"dose_min_mmol_kg_h"`
	DoseMaxMmolKgH    float64 `json:"dose_max_mmol_kg_h"`
	DoseSevereMmolKgH float64 `json:"dose_severe_mmol_kg_h"`
	KPhosMmolPerMl    float64 `json:"kphos_mmol_per_ml"`
	KPhosKMEqPerMl    float64 `json:"kphos_k_mEq_per_ml"`
	DefaultHours      float64 `json:"default_hours"`
}

// DefaultPhosphorusLimits returns the built-in supplementation limits.
func DefaultPhosphorusLimits() PhosphorusLimits {
	return PhosphorusLimits{
		DoseMinMmolKgH:    0.01,
		DoseMaxMmolKgH:    0.03,
		DoseSevereMmolKgH: 0.06,
		KPhosMmolPerMl:    3.0,
		KPhosKMEqPerMl:    4.4,
		DefaultHours:      6,
	}
}

func (l PhosphorusLimits) withDefaults() PhosphorusLimits {
	d := DefaultPhosphorusLimits()
	if l.DoseMinMmolKgH <= 0 {
		l.DoseMinMmolKgH = d.DoseMinMmolKgH
	}
	if l.DoseMaxMmolKgH <= 0 {
		l.DoseMaxMmolKgH = d.DoseMaxMmolKgH
	}
	if l.DoseSevereMmolKgH <= 0 {
		l.DoseSevereMmolKgH = d.DoseSevereMmolKgH
	}
	if l.KPhosMmolPerMl <= 0 {
		l.KPhosMmolPerMl = d.KPhosMmolPerMl
	}
	if l.KPhosKMEqPerMl <= 0 {
		l.KPhosKMEqPerMl = d.KPhosKMEqPerMl
	}
	if l.DefaultHours <= 0 {
		l.DefaultHours = d.DefaultHours
	}
	return l
}

// PhosphorusInput are the inputs of ComputePhosphorusPlan.
type PhosphorusInput struct {
	Species  patient.Species  `json:"species"`
	WeightKg float64          `json:"weight_kg"`
	SerumP   float64          `json:"serum_p"`
	Unit     numeric.Unit     `json:"unit"`
	Hours    float64          `json:"hours,omitempty"`
	Limits   PhosphorusLimits `json:"limits,omitempty"`
}

// PhosphorusPlan is the result of ComputePhosphorusPlan.
type PhosphorusPlan struct {
	Classification
	SerumPMgDL      float64        `json:"serum_p_mg_dl"`
	DoseMmolKgH     optional.Value `json:"dose_mmol_kg_h"`
	DoseRangeMin    float64        `json:"dose_range_min_mmol_kg_h,omitempty"`
	DoseRangeMax    float64        `json:"dose_range_max_mmol_kg_h,omitempty"`
	RateMmolH       optional.Value `json:"rate_mmol_h"`
	KPhosMlH        optional.Value `json:"kphos_ml_h"`
	Hours           float64        `json:"hours,omitempty"`
	TotalMmol       optional.Value `json:"total_mmol"`
	PotassiumMEqKgH optional.Value `json:"potassium_mEq_kg_h"`
	Warnings        []string       `json:"warnings"`
}

// ClassifyPhosphorus grades serum phosphorus in mg/dL.
func ClassifyPhosphorus(species patient.Species, p float64) Classification {
	b := bandFor(species, phosphorusBandDog, phosphorusBandCat)
	moderateHigh := 8.5
	if species == patient.Cat {
		moderateHigh = 9.5
	}
	switch {
	case p < b.Min:
		switch {
		case p < 1.0:
			return low(SeveritySevere, "hypophosphatemia")
		case p < 1.5:
			return low(SeverityModerate, "hypophosphatemia")
		}
		return low(SeverityMild, "hypophosphatemia")
	case p > b.Max:
		switch {
		case p > 10:
			return high(SeveritySevere, "hyperphosphatemia")
		case p > moderateHigh:
			return high(SeverityModerate, "hyperphosphatemia")
		}
		return high(SeverityMild, "hyperphosphatemia")
	}
	return normal()
}

// ComputePhosphorusPlan computes the potassium phosphate CRI for
// hypophosphatemia. The potassium carried by the phosphate salt is reported
// and flagged against the 0.5 mEq/kg/h potassium ceiling.
func ComputePhosphorusPlan(in PhosphorusInput) PhosphorusPlan {
	lim := in.Limits.withDefaults()
	pmgdl := numeric.PhosphorusToMgDL(in.SerumP, in.Unit)

	plan := PhosphorusPlan{
		Classification:  ClassifyPhosphorus(in.Species, pmgdl),
		SerumPMgDL:      pmgdl,
		DoseMmolKgH:     optional.None(),
		RateMmolH:       optional.None(),
		KPhosMlH:        optional.None(),
		TotalMmol:       optional.None(),
		PotassiumMEqKgH: optional.None(),
		Warnings:        []string{},
	}

	if plan.Status == StatusHigh {
		plan.Warnings = append(plan.Warnings, "hyperphosphatemia: avoid phosphate-containing fluids; check the Ca×P product")
		return plan
	}
	if plan.Status != StatusLow || in.WeightKg <= 0 {
		return plan
	}

	plan.DoseRangeMin = lim.DoseMinMmolKgH
	plan.DoseRangeMax = lim.DoseMaxMmolKgH
	dose := lim.DoseMaxMmolKgH
	if plan.Severity == SeveritySevere {
		plan.DoseRangeMax = lim.DoseSevereMmolKgH
		dose = lim.DoseSevereMmolKgH
	}

	hours := in.Hours
	if hours <= 0 {
		hours = lim.DefaultHours
	}

	rate := dose * in.WeightKg
	mlh := rate / lim.KPhosMmolPerMl
	kLoad := mlh * lim.KPhosKMEqPerMl / in.WeightKg

	plan.DoseMmolKgH = optional.Of(dose)
	plan.RateMmolH = optional.Of(rate)
	plan.KPhosMlH = optional.Of(mlh)
	plan.Hours = hours
	plan.TotalMmol = optional.Of(rate * hours)
	plan.PotassiumMEqKgH = optional.Of(kLoad)

	if kLoad > PotassiumCeilingMEqKgH {
		plan.Warnings = append(plan.Warnings, fmt.Sprintf(
			"potassium from potassium phosphate %.2f mEq/kg/h exceeds the %.2f mEq/kg/h ceiling",
			kLoad, PotassiumCeilingMEqKgH))
	}
	plan.Warnings = append(plan.Warnings,
		"subtract the potassium delivered as potassium phosphate from KCl supplementation",
		"do not add phosphate to calcium-containing fluids (e.g. Ringer Lactate): precipitation risk",
		"recheck phosphorus every 6-12 h")
	return plan
}
