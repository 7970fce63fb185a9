package dosing

import (
	"strings"

	"github.com/vetref/electrolyte-cli/internal/input"
	"github.com/vetref/electrolyte-cli/internal/numeric"
	"github.com/vetref/electrolyte-cli/internal/optional"
	"github.com/vetref/electrolyte-cli/internal/patient"
)

// PatientFields is the raw patient description. Enum fields accept the
// canonical names and the Portuguese aliases.
type PatientFields struct {
	Species       string       `json:"species"`
	WeightKg      input.Number `json:"weight_kg"`
	State         string       `json:"physiological_state,omitempty"`
	Comorbidities []string     `json:"comorbidities,omitempty"`
	Evolution     string       `json:"evolution,omitempty"`
}

// Values holds raw lab values keyed by Field.Name.
type Values map[string]input.Number

// Request is one calculation.
type Request struct {
	Electrolyte string        `json:"electrolyte"`
	Patient     PatientFields `json:"patient"`
	Values      Values        `json:"values"`
}

// Context validates p into a patient context, recording failures on v.
func (p PatientFields) Context(v *input.Validator) patient.Context {
	species, err := patient.ParseSpecies(p.Species)
	if err != nil {
		v.Fail("species", p.Species, "must be dog or cat")
	}
	weight := v.Positive("weight_kg", p.WeightKg.String())

	state := patient.Adult
	if strings.TrimSpace(p.State) != "" {
		if state, err = patient.ParsePhysiologicalState(p.State); err != nil {
			v.Fail("physiological_state", p.State, "unknown physiological state")
		}
	}
	evolution := patient.Chronic
	if strings.TrimSpace(p.Evolution) != "" {
		if evolution, err = patient.ParseEvolution(p.Evolution); err != nil {
			v.Fail("evolution", p.Evolution, "must be acute or chronic")
		}
	}

	var comorbidities []patient.Comorbidity
	for _, raw := range p.Comorbidities {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			c, err := patient.ParseComorbidity(part)
			if err != nil {
				v.Fail("comorbidities", part, "unknown comorbidity")
				continue
			}
			comorbidities = append(comorbidities, c)
		}
	}

	ctx, err := patient.New(species, weight, state, comorbidities, evolution)
	if err != nil {
		return patient.Context{}
	}
	return ctx
}

func (vals Values) raw(name string) string {
	return strings.TrimSpace(vals[name].String())
}

func (vals Values) unit(v *input.Validator, name string) numeric.Unit {
	raw := vals.raw(name)
	u, ok := numeric.ParseUnit(raw)
	if !ok {
		v.Fail(name, raw, "must be mg/dL or mmol/L")
	}
	return u
}

func (vals Values) optional(v *input.Validator, name string) optional.Value {
	return v.Optional(name, vals.raw(name))
}
