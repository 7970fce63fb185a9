package numeric

import "math"

// Tier is one row of a tiered lookup table. A value matches the first tier
// whose Upper bound is >= the value.
type Tier[T any] struct {
	Upper float64
	Row   T
}

// TieredTable is an ordered list of tiers with ascending upper bounds. The
// last tier is the fallback for values above every bound.
type TieredTable[T any] []Tier[T]

// Lookup returns the row for v. NaN and values above the last bound resolve
// to the last row. ok is false only for an empty table.
func (t TieredTable[T]) Lookup(v float64) (row T, ok bool) {
	if len(t) == 0 {
		return row, false
	}
	if math.IsNaN(v) {
		return t[len(t)-1].Row, true
	}
	for _, tier := range t {
		if v <= tier.Upper {
			return tier.Row, true
		}
	}
	return t[len(t)-1].Row, true
}

// Ascending reports whether the upper bounds are strictly increasing, which
// is what keeps the ranges contiguous and non-overlapping.
func (t TieredTable[T]) Ascending() bool {
	for i := 1; i < len(t); i++ {
		if !(t[i].Upper > t[i-1].Upper) {
			return false
		}
	}
	return true
}
