// Package calc holds the per-electrolyte dosage and infusion calculators.
//
// Every calculator is a pure function from plain inputs to a freshly built
// plan. None of them return errors: impossible inputs (zero weight, zero
// hours, negative concentrations) degrade to zero or not-computed values, and
// safety-threshold violations are reported as warnings next to the numbers.
package calc

import "github.com/vetref/electrolyte-cli/internal/patient"

// Status is the direction of an abnormal value.
type Status string

// Statuses.
const (
	StatusLow    Status = "low"
	StatusNormal Status = "normal"
	StatusHigh   Status = "high"
)

// Severity grades an abnormal value.
type Severity string

// Severities.
const (
	SeverityNone     Severity = "none"
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// Classification is the tagged status of a lab value, e.g. moderate
// hypokalemia.
type Classification struct {
	Status    Status   `json:"status"`
	Severity  Severity `json:"severity"`
	Condition string   `json:"condition"`
}

// Abnormal reports whether the classification is outside the normal band.
func (c Classification) Abnormal() bool {
	return c.Status != StatusNormal
}

func normal() Classification {
	return Classification{Status: StatusNormal, Severity: SeverityNone, Condition: "normal"}
}

func low(sev Severity, condition string) Classification {
	return Classification{Status: StatusLow, Severity: sev, Condition: condition}
}

func high(sev Severity, condition string) Classification {
	return Classification{Status: StatusHigh, Severity: sev, Condition: condition}
}

// band is a species-specific reference interval.
type band struct {
	Min, Max float64
}

func bandFor(species patient.Species, dog, cat band) band {
	if species == patient.Cat {
		return cat
	}
	return dog
}

func speciesLabel(s patient.Species) string {
	if s == patient.Cat {
		return "cats"
	}
	return "dogs"
}

// PotassiumCeilingMEqKgH is the hard ceiling for potassium infusion. Plans
// above it are flagged, never clamped.
const PotassiumCeilingMEqKgH = 0.5
