package patient

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSpecies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Species
		wantErr bool
	}{
		{"dog", Dog, false},
		{"Cão", Dog, false},
		{" CANINE ", Dog, false},
		{"gato", Cat, false},
		{"Felino", Cat, false},
		{"horse", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSpecies(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidValue))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAliases(t *testing.T) {
	t.Parallel()

	st, err := ParsePhysiologicalState("Filhote")
	require.NoError(t, err)
	assert.Equal(t, Puppy, st)

	cm, err := ParseComorbidity("Nefropatia")
	require.NoError(t, err)
	assert.Equal(t, Nephropathy, cm)

	cm, err = ParseComorbidity("séptico")
	require.NoError(t, err)
	assert.Equal(t, Septic, cm)

	ev, err := ParseEvolution("Crônica")
	require.NoError(t, err)
	assert.Equal(t, Chronic, ev)

	_, err = ParseEvolution("subacute")
	assert.Error(t, err)
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(Dog, 0, Adult, nil, Acute)
	assert.Error(t, err, "zero weight")

	_, err = New("horse", 10, Adult, nil, Acute)
	assert.Error(t, err, "bad species")

	_, err = New(Dog, 10, "teen", nil, Acute)
	assert.Error(t, err, "bad state")

	_, err = New(Dog, 10, Adult, []Comorbidity{"gout"}, Acute)
	assert.Error(t, err, "bad comorbidity")

	_, err = New(Dog, 10, Adult, nil, "")
	assert.Error(t, err, "missing evolution")
}

func TestNew_ComorbiditySet(t *testing.T) {
	t.Parallel()

	ctx, err := New(Cat, 4.2, Senior, []Comorbidity{Nephropathy, NoComorbidity, Cardiopathy, Nephropathy}, Chronic)
	require.NoError(t, err)

	assert.Equal(t, []Comorbidity{Cardiopathy, Nephropathy}, ctx.Comorbidities())
	assert.True(t, ctx.Has(Cardiopathy))
	assert.False(t, ctx.Has(Septic))
	assert.False(t, ctx.Has(NoComorbidity))

	// Returned slice is a copy.
	got := ctx.Comorbidities()
	got[0] = Septic
	assert.False(t, ctx.Has(Septic))
}

func TestInput_BuildDefaults(t *testing.T) {
	t.Parallel()

	var in Input
	require.NoError(t, json.Unmarshal([]byte(`{"species":"gato","weight_kg":3.5,"comorbidities":["cardiopata"]}`), &in))

	ctx, err := in.Build()
	require.NoError(t, err)
	assert.Equal(t, Cat, ctx.Species())
	assert.Equal(t, Adult, ctx.State())
	assert.Equal(t, Chronic, ctx.Evolution())
	assert.True(t, ctx.Has(Cardiopathy))
	assert.True(t, ctx.Valid())

	out, err := json.Marshal(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"species":"cat","weight_kg":3.5,"physiological_state":"adult","comorbidities":["cardiopathy"],"evolution":"chronic"}`, string(out))
}

func TestInput_RejectsUnknownAlias(t *testing.T) {
	t.Parallel()
	var in Input
	err := json.Unmarshal([]byte(`{"species":"ferret","weight_kg":1}`), &in)
	assert.Error(t, err)
}

func TestFold(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "cao", Fold(" Cão "))
	assert.Equal(t, "ringer lactato", Fold("Ringer Lactato"))
}
