package optional

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_ZeroIsNotNone(t *testing.T) {
	t.Parallel()

	zero := Of(0)
	none := None()

	assert.True(t, zero.Computed())
	assert.False(t, none.Computed())
	assert.NotEqual(t, zero, none)
	assert.Equal(t, 7.0, none.Or(7))
	assert.Equal(t, 0.0, zero.Or(7))
}

func TestValue_JSON(t *testing.T) {
	t.Parallel()

	out, err := json.Marshal(struct {
		A Value `json:"a"`
		B Value `json:"b"`
	}{A: Of(1.5), B: None()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1.5,"b":null}`, string(out))

	var in struct {
		A Value `json:"a"`
		B Value `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":0,"b":null}`), &in))
	v, ok := in.A.Get()
	assert.True(t, ok)
	assert.Zero(t, v)
	assert.False(t, in.B.Computed())
}

func TestValue_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "2.5", Of(2.5).String())
	assert.Equal(t, "—", None().String())
}
