package calc

import (
	"fmt"
	"math"

	"github.com/vetref/electrolyte-cli/internal/numeric"
	"github.com/vetref/electrolyte-cli/internal/optional"
)

// PotassiumRow is one tier of the KCl supplementation table.
type PotassiumRow struct {
	KClPerLiter       float64 `json:"kcl_mEq_per_liter"`
	MaxFluidRateMlKgH float64 `json:"max_fluid_rate_ml_kg_h"`
}

// PotassiumTable maps serum potassium (mEq/L) to KCl per liter of fluid and
// the maximum fluid rate. Values above 5.0 resolve to the no-supplement row.
var PotassiumTable = numeric.TieredTable[PotassiumRow]{
	{Upper: 2.0, Row: PotassiumRow{KClPerLiter: 80, MaxFluidRateMlKgH: 6}},
	{Upper: 2.5, Row: PotassiumRow{KClPerLiter: 60, MaxFluidRateMlKgH: 8}},
	{Upper: 3.0, Row: PotassiumRow{KClPerLiter: 40, MaxFluidRateMlKgH: 12}},
	{Upper: 3.5, Row: PotassiumRow{KClPerLiter: 28, MaxFluidRateMlKgH: 18}},
	{Upper: 5.0, Row: PotassiumRow{KClPerLiter: 20, MaxFluidRateMlKgH: 25}},
	{Upper: math.Inf(1), Row: PotassiumRow{}},
}

// DefaultKClMEqPerMl is the usual KCl stock concentration (2 mEq/mL).
const DefaultKClMEqPerMl = 2.0

// PotassiumInput are the inputs of ComputePotassiumPlan. The optional limit
// fields come from the consensus engine; zero means "use the default".
// MaxMEqKgH is only honored when computed, and a computed zero forbids any
// delivery. Row replaces the PotassiumTable lookup when set.
type PotassiumInput struct {
	WeightKg          float64        `json:"weight_kg"`
	SerumK            float64        `json:"serum_k"`
	FluidRateMlH      float64        `json:"fluid_rate_ml_h"`
	MaxMEqKgH         optional.Value `json:"max_mEq_kg_h"`
	MaxPeripheralMEqL float64        `json:"max_peripheral_mEq_l,omitempty"`
	KClMEqPerMl       float64        `json:"kcl_mEq_per_ml,omitempty"`
	Row               *PotassiumRow  `json:"row,omitempty"`
}

// PotassiumPlan is the result of ComputePotassiumPlan.
type PotassiumPlan struct {
	Classification
	KClPerLiter         float64        `json:"kcl_per_liter"`
	KClMlPerLiter       float64        `json:"kcl_ml_per_liter"`
	MaxFluidRateMlKgH   float64        `json:"max_fluid_rate_ml_kg_h"`
	MaxSafeFluidRateMlH float64        `json:"max_safe_fluid_rate_ml_h"`
	InfusionRateMEqKgH  optional.Value `json:"infusion_rate_mEq_kg_h"`
	CeilingMEqKgH       float64        `json:"ceiling_mEq_kg_h"`
	Unsafe              bool           `json:"unsafe"`
	Warnings            []string       `json:"warnings"`
}

// ClassifyPotassium grades serum potassium. The bands are independent of the
// supplementation table.
func ClassifyPotassium(serumK float64) Classification {
	switch {
	case serumK < 2.5:
		return low(SeveritySevere, "hypokalemia")
	case serumK < 3.0:
		return low(SeverityModerate, "hypokalemia")
	case serumK < 3.5:
		return low(SeverityMild, "hypokalemia")
	case serumK > 8.0:
		return high(SeveritySevere, "hyperkalemia")
	case serumK >= 6.5:
		return high(SeverityModerate, "hyperkalemia")
	case serumK >= 5.5:
		return high(SeverityMild, "hyperkalemia")
	}
	return normal()
}

// ClassifyAndDose looks up the KCl tier for serumK and checks the resulting
// potassium delivery at fluidRateMlH against the 0.5 mEq/kg/h ceiling.
func ClassifyAndDose(weightKg, serumK, fluidRateMlH float64) PotassiumPlan {
	return ComputePotassiumPlan(PotassiumInput{WeightKg: weightKg, SerumK: serumK, FluidRateMlH: fluidRateMlH})
}

// ComputePotassiumPlan is ClassifyAndDose with caller-supplied limits.
func ComputePotassiumPlan(in PotassiumInput) PotassiumPlan {
	row, _ := PotassiumTable.Lookup(in.SerumK)
	if in.Row != nil {
		row = *in.Row
	}

	ceiling := PotassiumCeilingMEqKgH
	if v, ok := in.MaxMEqKgH.Get(); ok {
		ceiling = numeric.Clamp(v, 0, ceiling)
	}
	stock := in.KClMEqPerMl
	if stock <= 0 {
		stock = DefaultKClMEqPerMl
	}

	plan := PotassiumPlan{
		Classification:     ClassifyPotassium(in.SerumK),
		KClPerLiter:        row.KClPerLiter,
		KClMlPerLiter:      numeric.Round(row.KClPerLiter/stock, 1),
		MaxFluidRateMlKgH:  row.MaxFluidRateMlKgH,
		InfusionRateMEqKgH: optional.None(),
		CeilingMEqKgH:      ceiling,
		Warnings:           []string{},
	}

	if in.WeightKg > 0 {
		plan.MaxSafeFluidRateMlH = row.MaxFluidRateMlKgH * in.WeightKg

		kclPerHour := row.KClPerLiter * math.Max(0, in.FluidRateMlH) / 1000
		rate := kclPerHour / in.WeightKg
		plan.InfusionRateMEqKgH = optional.Of(rate)

		switch {
		case rate > 0 && ceiling == 0:
			plan.Unsafe = true
			plan.Warnings = append(plan.Warnings, fmt.Sprintf(
				"potassium delivery %.2f mEq/kg/h is not permitted: the adjusted ceiling for this patient is 0 mEq/kg/h",
				rate))
		case rate > ceiling:
			plan.Unsafe = true
			plan.Warnings = append(plan.Warnings, fmt.Sprintf(
				"potassium delivery %.2f mEq/kg/h exceeds the %.2f mEq/kg/h ceiling; reduce the fluid rate to at most %.0f mL/h",
				rate, ceiling, ceiling*in.WeightKg*1000/row.KClPerLiter))
		}
		if in.FluidRateMlH > plan.MaxSafeFluidRateMlH && row.KClPerLiter > 0 {
			plan.Warnings = append(plan.Warnings, fmt.Sprintf(
				"fluid rate %.0f mL/h is above the %.0f mL/h maximum for this supplementation tier",
				in.FluidRateMlH, plan.MaxSafeFluidRateMlH))
		}
	}

	if in.MaxPeripheralMEqL > 0 && row.KClPerLiter > in.MaxPeripheralMEqL {
		plan.Warnings = append(plan.Warnings, fmt.Sprintf(
			"%.0f mEq/L exceeds the %.0f mEq/L peripheral-vein limit; use a central line",
			row.KClPerLiter, in.MaxPeripheralMEqL))
	}
	if plan.Status == StatusHigh {
		plan.Warnings = append(plan.Warnings, "hyperkalemia: do not supplement potassium")
	}

	return plan
}
