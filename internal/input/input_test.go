package input

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_CollectsAllErrors(t *testing.T) {
	t.Parallel()

	v := New()
	w := v.Positive("weight_kg", "0")
	k := v.NonNegative("serum_k", "abc")
	h := v.Positive("hours", "")
	p := v.OneOf("product_percent", "20", 5, 10, 25)

	assert.Zero(t, w)
	assert.Zero(t, k)
	assert.Zero(t, h)
	assert.Zero(t, p)

	err := v.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))

	var fe FieldErrors
	require.True(t, errors.As(err, &fe))
	require.Len(t, fe, 4)
	assert.Equal(t, "weight_kg", fe[0].Field)
	assert.Equal(t, "must be positive", fe[0].Reason)
	assert.Equal(t, "not a number", fe[1].Reason)
	assert.Equal(t, "required", fe[2].Reason)
	assert.Contains(t, err.Error(), "product_percent")
}

func TestValidator_AcceptsDecimalComma(t *testing.T) {
	t.Parallel()

	v := New()
	assert.InDelta(t, 12.5, v.Positive("weight_kg", "12,5"), 1e-9)
	assert.InDelta(t, 2.8, v.NonNegative("serum_k", "2,8"), 1e-9)
	assert.InDelta(t, -4.0, v.Any("base_excess", "-4"), 1e-9)
	assert.Equal(t, 25.0, v.OneOf("product_percent", "25", 5, 10, 25))
	assert.NoError(t, v.Err())
}

func TestValidator_Optional(t *testing.T) {
	t.Parallel()

	v := New()
	assert.False(t, v.Optional("albumin", "  ").Computed())

	got := v.Optional("albumin", "0")
	val, ok := got.Get()
	assert.True(t, ok)
	assert.Zero(t, val)

	v.Optional("ionized", "-1")
	assert.Error(t, v.Err())
}

func TestNumber_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	var body struct {
		A Number `json:"a"`
		B Number `json:"b"`
		C Number `json:"c"`
		D Number `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":3.5,"b":"3,5","c":null}`), &body))
	assert.Equal(t, "3.5", body.A.String())
	assert.Equal(t, "3,5", body.B.String())
	assert.Equal(t, "", body.C.String())
	assert.Equal(t, "", body.D.String())

	assert.Error(t, json.Unmarshal([]byte(`{"a":true}`), &body))
}
