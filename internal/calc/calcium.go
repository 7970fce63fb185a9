package calc

import (
	"fmt"

	"github.com/vetref/electrolyte-cli/internal/numeric"
	"github.com/vetref/electrolyte-cli/internal/optional"
	"github.com/vetref/electrolyte-cli/internal/patient"
)

// CaPRiskThreshold is the calcium × phosphorus product above which soft
// tissue mineralization is likely.
const CaPRiskThreshold = 70.0

// Calcium gluconate 10% dosing.
const (
	calciumBolusMlPerKg  = 0.5
	calciumCRIMgPerKg    = 60.0
	calciumGluconateMgMl = 100.0
	calciumCRIMinHours   = 6.0
	calciumCRIMaxHours   = 8.0
	albuminReferenceGdL  = 3.5
	ionizedToTotalFactor = 4.0
)

var (
	calciumBandDog = band{Min: 8.5, Max: 11.5}
	calciumBandCat = band{Min: 8.0, Max: 11.0}
)

// CalciumBasis says which measurement drove the classification.
type CalciumBasis string

// Bases.
const (
	BasisIonized CalciumBasis = "ionized"
	BasisTotal   CalciumBasis = "total"
	BasisNone    CalciumBasis = "none"
)

// CalciumInput are the inputs of ComputeCalciumPlan. Total calcium and
// albumin are mg/dL and g/dL; ionized calcium is mmol/L.
type CalciumInput struct {
	Species        patient.Species `json:"species"`
	WeightKg       float64         `json:"weight_kg"`
	TotalCalcium   optional.Value  `json:"total_calcium"`
	Albumin        optional.Value  `json:"albumin"`
	IonizedCalcium optional.Value  `json:"ionized_calcium"`
	Phosphorus     float64         `json:"phosphorus"`
	PhosphorusUnit numeric.Unit    `json:"phosphorus_unit"`
}

// CalciumPlan is the result of ComputeCalciumPlan.
type CalciumPlan struct {
	Classification
	Basis              CalciumBasis   `json:"basis"`
	CorrectedCalcium   optional.Value `json:"corrected_calcium"`
	PhosphorusMgDL     float64        `json:"phosphorus_mg_dl"`
	CaPProduct         optional.Value `json:"ca_p_product"`
	MineralizationRisk bool           `json:"mineralization_risk"`
	BolusDoseMl        optional.Value `json:"bolus_dose_ml"`
	CRIDoseMg          optional.Value `json:"cri_dose_mg"`
	CRIDoseMl          optional.Value `json:"cri_dose_ml"`
	CRIHoursMin        float64        `json:"cri_hours_min,omitempty"`
	CRIHoursMax        float64        `json:"cri_hours_max,omitempty"`
	Warnings           []string       `json:"warnings"`
}

// CorrectCalcium applies the albumin correction: total − albumin + 3.5. It
// is only computed when both inputs are positive.
func CorrectCalcium(total, albumin float64) optional.Value {
	if total <= 0 || albumin <= 0 {
		return optional.None()
	}
	return optional.Of(total - albumin + albuminReferenceGdL)
}

// ClassifyIonizedCalcium grades ionized calcium in mmol/L.
func ClassifyIonizedCalcium(ica float64) Classification {
	switch {
	case ica < 0.8:
		return low(SeveritySevere, "hypocalcemia")
	case ica < 1.0:
		return low(SeverityModerate, "hypocalcemia")
	case ica < 1.1:
		return low(SeverityMild, "hypocalcemia")
	case ica > 1.8:
		return high(SeveritySevere, "hypercalcemia")
	case ica > 1.6:
		return high(SeverityModerate, "hypercalcemia")
	case ica > 1.4:
		return high(SeverityMild, "hypercalcemia")
	}
	return normal()
}

// ClassifyTotalCalcium grades total (or albumin-corrected) calcium in mg/dL
// against the species band with absolute severity cutoffs.
func ClassifyTotalCalcium(species patient.Species, total float64) Classification {
	b := bandFor(species, calciumBandDog, calciumBandCat)
	switch {
	case total < b.Min:
		switch {
		case total < 7.0:
			return low(SeveritySevere, "hypocalcemia")
		case total < 8.0:
			return low(SeverityModerate, "hypocalcemia")
		}
		return low(SeverityMild, "hypocalcemia")
	case total > b.Max:
		switch {
		case total > 15.0:
			return high(SeveritySevere, "hypercalcemia")
		case total > 13.0:
			return high(SeverityModerate, "hypercalcemia")
		}
		return high(SeverityMild, "hypercalcemia")
	}
	return normal()
}

// ComputeCalciumPlan classifies calcium (ionized preferred), computes the
// Ca×P product and, for hypocalcemia, the calcium gluconate 10% doses.
func ComputeCalciumPlan(in CalciumInput) CalciumPlan {
	plan := CalciumPlan{
		Classification:   Classification{Status: StatusNormal, Severity: SeverityNone, Condition: "unknown"},
		Basis:            BasisNone,
		CorrectedCalcium: optional.None(),
		CaPProduct:       optional.None(),
		BolusDoseMl:      optional.None(),
		CRIDoseMg:        optional.None(),
		CRIDoseMl:        optional.None(),
		PhosphorusMgDL:   numeric.PhosphorusToMgDL(in.Phosphorus, in.PhosphorusUnit),
		Warnings:         []string{},
	}

	total, hasTotal := in.TotalCalcium.Get()
	albumin, _ := in.Albumin.Get()
	plan.CorrectedCalcium = CorrectCalcium(total, albumin)

	var caForProduct float64
	if ica, ok := in.IonizedCalcium.Get(); ok && ica > 0 {
		plan.Basis = BasisIonized
		plan.Classification = ClassifyIonizedCalcium(ica)
		caForProduct = ica * ionizedToTotalFactor
	} else if corrected, ok := plan.CorrectedCalcium.Get(); ok {
		plan.Basis = BasisTotal
		plan.Classification = ClassifyTotalCalcium(in.Species, corrected)
		caForProduct = corrected
	} else if hasTotal && total > 0 {
		plan.Basis = BasisTotal
		plan.Classification = ClassifyTotalCalcium(in.Species, total)
		caForProduct = total
		plan.Warnings = append(plan.Warnings, "total calcium not albumin-corrected; provide albumin or ionized calcium")
	} else {
		plan.Warnings = append(plan.Warnings, "no calcium value provided")
		return plan
	}

	if plan.PhosphorusMgDL > 0 {
		product := caForProduct * plan.PhosphorusMgDL
		plan.CaPProduct = optional.Of(product)
		if product > CaPRiskThreshold {
			plan.MineralizationRisk = true
			plan.Warnings = append(plan.Warnings, fmt.Sprintf(
				"Ca×P product %.0f exceeds %.0f: high risk of soft-tissue mineralization", product, CaPRiskThreshold))
		}
	}

	if plan.Status == StatusLow && in.WeightKg > 0 {
		mg := in.WeightKg * calciumCRIMgPerKg
		plan.BolusDoseMl = optional.Of(in.WeightKg * calciumBolusMlPerKg)
		plan.CRIDoseMg = optional.Of(mg)
		plan.CRIDoseMl = optional.Of(mg / calciumGluconateMgMl)
		plan.CRIHoursMin = calciumCRIMinHours
		plan.CRIHoursMax = calciumCRIMaxHours
		plan.Warnings = append(plan.Warnings,
			"give the calcium gluconate bolus slowly over 10-20 min with ECG monitoring; stop if bradycardia develops")
	}

	return plan
}
