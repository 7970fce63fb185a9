package calc

import (
	"math"

	"github.com/vetref/electrolyte-cli/internal/numeric"
	"github.com/vetref/electrolyte-cli/internal/optional"
	"github.com/vetref/electrolyte-cli/internal/patient"
)

var (
	glucoseBandDog = band{Min: 70, Max: 140}
	glucoseBandCat = band{Min: 70, Max: 160}
)

// InsulinRow is one tier of the regular-insulin CRI adjustment table.
type InsulinRow struct {
	BagRateMlH      float64 `json:"bag_rate_ml_h"`
	DextrosePercent float64 `json:"dextrose_percent"`
	StopInsulin     bool    `json:"stop_insulin"`
}

// InsulinTable maps blood glucose (mg/dL) to the insulin-bag rate and the
// dextrose supplementation of the maintenance fluid.
var InsulinTable = numeric.TieredTable[InsulinRow]{
	{Upper: 100, Row: InsulinRow{BagRateMlH: 0, DextrosePercent: 5, StopInsulin: true}},
	{Upper: 150, Row: InsulinRow{BagRateMlH: 5, DextrosePercent: 5}},
	{Upper: 200, Row: InsulinRow{BagRateMlH: 5, DextrosePercent: 2.5}},
	{Upper: 250, Row: InsulinRow{BagRateMlH: 7, DextrosePercent: 2.5}},
	{Upper: math.Inf(1), Row: InsulinRow{BagRateMlH: 10, DextrosePercent: 0}},
}

// GlucoseLimits configure dextrose and insulin dosing. Zero fields take
// DefaultGlucoseLimits values.
type GlucoseLimits struct {
	BolusGPerKg      float64 `json:"bolus_g_per_kg"`
	Dextrose50GPerMl float64 `json:"dextrose50_g_per_ml"`
	InsulinUKgDog    float64 `json:"insulin_u_kg_dog"`
	InsulinUKgCat    float64 `json:"insulin_u_kg_cat"`
	InsulinBagMl     float64 `json:"insulin_bag_ml"`
}

// DefaultGlucoseLimits returns the built-in glucose limits.
func DefaultGlucoseLimits() GlucoseLimits {
	return GlucoseLimits{
		BolusGPerKg:      0.5,
		Dextrose50GPerMl: 0.5,
		InsulinUKgDog:    2.2,
		InsulinUKgCat:    1.1,
		InsulinBagMl:     250,
	}
}

func (l GlucoseLimits) withDefaults() GlucoseLimits {
	d := DefaultGlucoseLimits()
	if l.BolusGPerKg <= 0 {
		l.BolusGPerKg = d.BolusGPerKg
	}
	if l.Dextrose50GPerMl <= 0 {
		l.Dextrose50GPerMl = d.Dextrose50GPerMl
	}
	if l.InsulinUKgDog <= 0 {
		l.InsulinUKgDog = d.InsulinUKgDog
	}
	if l.InsulinUKgCat <= 0 {
		l.InsulinUKgCat = d.InsulinUKgCat
	}
	if l.InsulinBagMl <= 0 {
		l.InsulinBagMl = d.InsulinBagMl
	}
	return l
}

// GlucoseInput are the inputs of ComputeGlucosePlan.
type GlucoseInput struct {
	Species  patient.Species `json:"species"`
	WeightKg float64         `json:"weight_kg"`
	Glucose  float64         `json:"glucose"`
	Unit     numeric.Unit    `json:"unit"`
	Limits   GlucoseLimits   `json:"limits,omitempty"`
}

// DextroseRecipe is how much 50% dextrose to add per liter of base fluid.
type DextroseRecipe struct {
	Percent          float64 `json:"percent"`
	Dextrose50MlPerL float64 `json:"dextrose50_ml_per_l"`
}

// InsulinCRI is the regular-insulin infusion for hyperglycemic crises.
type InsulinCRI struct {
	UnitsInBag  float64    `json:"units_in_bag"`
	BagVolumeMl float64    `json:"bag_volume_ml"`
	Tier        InsulinRow `json:"tier"`
	UnitsPerH   float64    `json:"units_per_h"`
}

// GlucosePlan is the result of ComputeGlucosePlan.
type GlucosePlan struct {
	Classification
	GlucoseMgDL     float64         `json:"glucose_mg_dl"`
	BolusG          optional.Value  `json:"bolus_g"`
	Dextrose50Ml    optional.Value  `json:"dextrose50_ml"`
	DiluentMl       optional.Value  `json:"diluent_ml"`
	Supplementation *DextroseRecipe `json:"supplementation,omitempty"`
	Insulin         *InsulinCRI     `json:"insulin,omitempty"`
	Warnings        []string        `json:"warnings"`
}

// ClassifyGlucose grades blood glucose in mg/dL.
func ClassifyGlucose(species patient.Species, g float64) Classification {
	b := bandFor(species, glucoseBandDog, glucoseBandCat)
	switch {
	case g < b.Min:
		switch {
		case g < 40:
			return low(SeveritySevere, "hypoglycemia")
		case g < 55:
			return low(SeverityModerate, "hypoglycemia")
		}
		return low(SeverityMild, "hypoglycemia")
	case g > b.Max:
		switch {
		case g > 400:
			return high(SeveritySevere, "hyperglycemia")
		case g > 250:
			return high(SeverityModerate, "hyperglycemia")
		}
		return high(SeverityMild, "hyperglycemia")
	}
	return normal()
}

// DextroseSupplement returns the 50% dextrose volume that brings one liter
// of base fluid to percent.
func DextroseSupplement(percent float64) DextroseRecipe {
	return DextroseRecipe{Percent: percent, Dextrose50MlPerL: percent / 50 * 1000}
}

// ComputeGlucosePlan computes a dextrose bolus and supplementation for
// hypoglycemia, or a regular-insulin CRI for moderate to severe
// hyperglycemia.
func ComputeGlucosePlan(in GlucoseInput) GlucosePlan {
	lim := in.Limits.withDefaults()
	g := numeric.GlucoseToMgDL(in.Glucose, in.Unit)

	plan := GlucosePlan{
		Classification: ClassifyGlucose(in.Species, g),
		GlucoseMgDL:    g,
		BolusG:         optional.None(),
		Dextrose50Ml:   optional.None(),
		DiluentMl:      optional.None(),
		Warnings:       []string{},
	}
	if in.WeightKg <= 0 {
		return plan
	}

	switch plan.Status {
	case StatusLow:
		grams := in.WeightKg * lim.BolusGPerKg
		ml := grams / lim.Dextrose50GPerMl
		plan.BolusG = optional.Of(grams)
		plan.Dextrose50Ml = optional.Of(ml)
		plan.DiluentMl = optional.Of(ml)
		pct := 5.0
		if plan.Severity == SeverityMild {
			pct = 2.5
		}
		recipe := DextroseSupplement(pct)
		plan.Supplementation = &recipe
		plan.Warnings = append(plan.Warnings,
			"dilute 50% dextrose 1:1 to 25% before IV bolus; give over 1-2 min",
			"recheck glucose in 15-30 min")
	case StatusHigh:
		if plan.Severity == SeverityMild {
			return plan
		}
		perKg := lim.InsulinUKgDog
		if in.Species == patient.Cat {
			perKg = lim.InsulinUKgCat
		}
		units := in.WeightKg * perKg
		tier, _ := InsulinTable.Lookup(g)
		plan.Insulin = &InsulinCRI{
			UnitsInBag:  units,
			BagVolumeMl: lim.InsulinBagMl,
			Tier:        tier,
			UnitsPerH:   units / lim.InsulinBagMl * tier.BagRateMlH,
		}
		plan.Warnings = append(plan.Warnings,
			"prime the insulin line with 50 mL before connecting; insulin adsorbs to tubing",
			"monitor glucose every 1-2 h and potassium/phosphorus every 4-6 h",
			"aim for a glucose decline of no more than 50-75 mg/dL/h")
	}
	return plan
}
