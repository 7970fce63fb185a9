// Package numeric holds the small numeric helpers shared by every calculator:
// clamping, locale-tolerant parsing, tiered lookup tables and unit conversion.
package numeric

import "math"

// Clamp bounds value to [lo, hi]. NaN maps to lo. Callers must pass lo <= hi.
func Clamp(value, lo, hi float64) float64 {
	if math.IsNaN(value) {
		return lo
	}
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// Finite returns v, or 0 when v is NaN or infinite.
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// PercentToFraction converts 25 (percent) to 0.25.
func PercentToFraction(pct float64) float64 {
	return pct / 100
}

// ReductionFactor turns a percentage reduction into a multiplier, never below zero.
func ReductionFactor(pct float64) float64 {
	return math.Max(0, 1-pct/100)
}
