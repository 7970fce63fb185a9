// Package input is the validated-input boundary: free text from flags, CSV
// cells or JSON is parsed and checked once here, so calculators only ever
// see well-formed float64 values.
package input

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/vetref/electrolyte-cli/internal/numeric"
	"github.com/vetref/electrolyte-cli/internal/optional"
)

// ErrInvalid is the root of every validation failure.
var ErrInvalid = eris.New("input: invalid")

// FieldError describes one rejected field.
type FieldError struct {
	Field  string `json:"field"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// FieldErrors aggregates every rejected field of one request.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for _, f := range fe {
		parts = append(parts, fmt.Sprintf("%s=%q: %s", f.Field, f.Value, f.Reason))
	}
	return "input: invalid " + strings.Join(parts, "; ")
}

// Unwrap lets errors.Is match ErrInvalid.
func (fe FieldErrors) Unwrap() error { return ErrInvalid }

// Validator collects field errors across several parse calls.
type Validator struct {
	errs FieldErrors
}

// New returns an empty Validator.
func New() *Validator {
	return &Validator{}
}

func (v *Validator) fail(field, raw, reason string) {
	v.errs = append(v.errs, FieldError{Field: field, Value: raw, Reason: reason})
}

// Fail records an error produced outside the numeric helpers.
func (v *Validator) Fail(field, raw, reason string) {
	v.fail(field, raw, reason)
}

func (v *Validator) number(field, raw string) (float64, bool) {
	if strings.TrimSpace(raw) == "" {
		v.fail(field, raw, "required")
		return 0, false
	}
	f, ok := numeric.ParseLocale(raw)
	if !ok {
		v.fail(field, raw, "not a number")
		return 0, false
	}
	return f, true
}

// Positive parses a required number that must be > 0.
func (v *Validator) Positive(field, raw string) float64 {
	f, ok := v.number(field, raw)
	if !ok {
		return 0
	}
	if f <= 0 {
		v.fail(field, raw, "must be positive")
		return 0
	}
	return f
}

// NonNegative parses a required number that must be >= 0.
func (v *Validator) NonNegative(field, raw string) float64 {
	f, ok := v.number(field, raw)
	if !ok {
		return 0
	}
	if f < 0 {
		v.fail(field, raw, "must not be negative")
		return 0
	}
	return f
}

// Any parses a required number with no sign constraint.
func (v *Validator) Any(field, raw string) float64 {
	f, _ := v.number(field, raw)
	return f
}

// Optional parses a non-negative number that may be left blank.
func (v *Validator) Optional(field, raw string) optional.Value {
	if strings.TrimSpace(raw) == "" {
		return optional.None()
	}
	f, ok := numeric.ParseLocale(raw)
	if !ok {
		v.fail(field, raw, "not a number")
		return optional.None()
	}
	if f < 0 {
		v.fail(field, raw, "must not be negative")
		return optional.None()
	}
	return optional.Of(f)
}

// OneOf parses a number that must equal one of allowed.
func (v *Validator) OneOf(field, raw string, allowed ...float64) float64 {
	f, ok := v.number(field, raw)
	if !ok {
		return 0
	}
	if !slices.Contains(allowed, f) {
		v.fail(field, raw, fmt.Sprintf("must be one of %v", allowed))
		return 0
	}
	return f
}

// Check records reason against field when cond is false.
func (v *Validator) Check(cond bool, field, raw, reason string) {
	if !cond {
		v.fail(field, raw, reason)
	}
}

// Err returns the aggregated errors, or nil.
func (v *Validator) Err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return slices.Clone(v.errs)
}

// Number is a JSON number that also accepts a string with a decimal comma,
// e.g. "3,5". The raw text is kept so it can be validated later.
type Number string

// UnmarshalJSON accepts numbers, strings and null.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return eris.Wrap(err, "input: decode number string")
		}
		*n = Number(s)
		return nil
	}
	var f json.Number
	if err := json.Unmarshal(data, &f); err != nil {
		return eris.Wrap(err, "input: decode number")
	}
	*n = Number(f.String())
	return nil
}

// String returns the raw text.
func (n Number) String() string { return string(n) }
