// Package optional distinguishes "not computed" from "computed to zero" in
// calculation results.
package optional

import (
	"encoding/json"
	"strconv"
)

// Value holds either a computed float or nothing.
type Value struct {
	v  float64
	ok bool
}

// Of returns a computed value.
func Of(v float64) Value {
	return Value{v: v, ok: true}
}

// None returns the "not computed" marker.
func None() Value {
	return Value{}
}

// Computed reports whether a value is present.
func (o Value) Computed() bool {
	return o.ok
}

// Get returns the value and whether it is present.
func (o Value) Get() (float64, bool) {
	return o.v, o.ok
}

// Or returns the value, or fallback when not computed.
func (o Value) Or(fallback float64) float64 {
	if !o.ok {
		return fallback
	}
	return o.v
}

// String renders "—" for a missing value.
func (o Value) String() string {
	if !o.ok {
		return "—"
	}
	return strconv.FormatFloat(o.v, 'f', -1, 64)
}

// MarshalJSON encodes a missing value as null.
func (o Value) MarshalJSON() ([]byte, error) {
	if !o.ok {
		return []byte("null"), nil
	}
	return json.Marshal(o.v)
}

// UnmarshalJSON decodes null as not computed.
func (o *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = None()
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*o = Of(f)
	return nil
}
