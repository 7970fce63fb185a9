package calc

import (
	"fmt"
	"math"

	"github.com/vetref/electrolyte-cli/internal/patient"
)

// Albumin distribution volume as a fraction of body weight.
const albuminDistributionFraction = 0.3

// Safe albumin infusion ceilings in mL/kg/h.
const (
	AlbuminMaxRateDog = 1.7
	AlbuminMaxRateCat = 2.0
)

// AlbuminInput are the inputs of ComputeAlbuminPlan. ProductPercent is the
// concentration of the albumin product (5, 10 or 25).
type AlbuminInput struct {
	Species        patient.Species `json:"species"`
	WeightKg       float64         `json:"weight_kg"`
	CurrentGdL     float64         `json:"current_g_dl"`
	TargetGdL      float64         `json:"target_g_dl"`
	ProductPercent float64         `json:"product_percent"`
	InfusionHours  float64         `json:"infusion_hours"`
}

// Dilution is a mixing recipe for an albumin product.
type Dilution struct {
	FromPercent float64 `json:"from_percent"`
	ToPercent   float64 `json:"to_percent"`
	ProductMl   float64 `json:"product_ml"`
	DiluentMl   float64 `json:"diluent_ml"`
	Text        string  `json:"text"`
}

// AlbuminPlan is the result of ComputeAlbuminPlan.
type AlbuminPlan struct {
	DeficitG       float64   `json:"deficit_g"`
	TotalVolumeMl  float64   `json:"total_volume_ml"`
	MlPerKgPerHour float64   `json:"ml_per_kg_per_hour"`
	MaxRateMlKgH   float64   `json:"max_rate_ml_kg_h"`
	SuggestedHours float64   `json:"suggested_hours"`
	Dilution       *Dilution `json:"dilution,omitempty"`
	Warnings       []string  `json:"warnings"`
}

var albuminDilutions = map[[2]float64]Dilution{
	{25, 5}:  {FromPercent: 25, ToPercent: 5, ProductMl: 1, DiluentMl: 4},
	{25, 10}: {FromPercent: 25, ToPercent: 10, ProductMl: 1, DiluentMl: 1.5},
	{10, 5}:  {FromPercent: 10, ToPercent: 5, ProductMl: 1, DiluentMl: 1},
}

// AlbuminDilution returns the mixing recipe from one product strength to
// another. Known recipes: 25→5, 25→10 and 10→5.
func AlbuminDilution(fromPercent, toPercent float64) (Dilution, bool) {
	d, ok := albuminDilutions[[2]float64{fromPercent, toPercent}]
	if !ok {
		return Dilution{}, false
	}
	d.Text = fmt.Sprintf("dilute %g%% to %g%%: %g mL product + %g mL diluent",
		d.FromPercent, d.ToPercent, d.ProductMl, d.DiluentMl)
	return d, true
}

// AlbuminMaxRate returns the safe infusion ceiling for the species.
func AlbuminMaxRate(species patient.Species) float64 {
	if species == patient.Cat {
		return AlbuminMaxRateCat
	}
	return AlbuminMaxRateDog
}

// ComputeAlbuminPlan computes the albumin deficit, the product volume that
// replaces it and the resulting infusion rate. When the rate exceeds the
// species ceiling a warning is attached and SuggestedHours is stretched so
// the ceiling holds.
func ComputeAlbuminPlan(in AlbuminInput) AlbuminPlan {
	plan := AlbuminPlan{
		MaxRateMlKgH: AlbuminMaxRate(in.Species),
		Warnings:     []string{},
	}

	weight := math.Max(0, in.WeightKg)
	plan.DeficitG = math.Max(0, in.TargetGdL-in.CurrentGdL) * 10 * (weight * albuminDistributionFraction)
	if plan.DeficitG <= 0 {
		plan.DeficitG = 0
		return plan
	}

	gPerMl := in.ProductPercent / 100
	if gPerMl <= 0 {
		return plan
	}
	plan.TotalVolumeMl = plan.DeficitG / gPerMl

	hours := math.Max(1, in.InfusionHours)
	plan.MlPerKgPerHour = plan.TotalVolumeMl / hours / math.Max(0.001, weight)
	plan.SuggestedHours = hours

	if plan.MlPerKgPerHour > plan.MaxRateMlKgH {
		plan.Warnings = append(plan.Warnings, fmt.Sprintf(
			"infusion rate %.2f mL/kg/h exceeds the safe ceiling of %.1f mL/kg/h for %s",
			plan.MlPerKgPerHour, plan.MaxRateMlKgH, speciesLabel(in.Species)))
		plan.SuggestedHours = math.Ceil(plan.TotalVolumeMl / (weight * plan.MaxRateMlKgH))
	}

	if in.ProductPercent == 25 {
		to := 10.0
		if in.Species == patient.Cat {
			to = 5
		}
		if d, ok := AlbuminDilution(25, to); ok {
			plan.Dilution = &d
		}
	}

	return plan
}
