// Package patient defines the closed enumerations and the immutable patient
// context that every calculation is evaluated against.
package patient

import (
	"encoding/json"
	"slices"

	"github.com/rotisserie/eris"
)

// ErrInvalidValue is returned when an enum string does not name a known member.
var ErrInvalidValue = eris.New("patient: invalid value")

// Species is the patient species.
type Species string

// Species values.
const (
	Dog Species = "dog"
	Cat Species = "cat"
)

// PhysiologicalState is the patient's life stage or reproductive state.
type PhysiologicalState string

// Physiological states.
const (
	Puppy     PhysiologicalState = "puppy"
	Adult     PhysiologicalState = "adult"
	Senior    PhysiologicalState = "senior"
	Pregnant  PhysiologicalState = "pregnant"
	Lactating PhysiologicalState = "lactating"
)

// Comorbidity is a concurrent disease that modifies safety limits.
type Comorbidity string

// Comorbidities. None is a sentinel meaning "no comorbidity" and never
// contributes a modifier.
const (
	Cardiopathy    Comorbidity = "cardiopathy"
	Hepatopathy    Comorbidity = "hepatopathy"
	Nephropathy    Comorbidity = "nephropathy"
	Septic         Comorbidity = "septic"
	Endocrinopathy Comorbidity = "endocrinopathy"
	NoComorbidity  Comorbidity = "none"
)

// Evolution is the time course of the disorder.
type Evolution string

// Evolutions.
const (
	Acute   Evolution = "acute"
	Chronic Evolution = "chronic"
)

var speciesAliases = map[string]Species{
	"dog": Dog, "canine": Dog, "cao": Dog, "canino": Dog,
	"cat": Cat, "feline": Cat, "gato": Cat, "felino": Cat,
}

var stateAliases = map[string]PhysiologicalState{
	"puppy": Puppy, "kitten": Puppy, "filhote": Puppy, "pediatric": Puppy,
	"adult": Adult, "adulto": Adult,
	"senior": Senior, "geriatric": Senior, "idoso": Senior, "geriatrico": Senior,
	"pregnant": Pregnant, "gestante": Pregnant, "gestacao": Pregnant,
	"lactating": Lactating, "lactante": Lactating, "lactacao": Lactating,
}

var comorbidityAliases = map[string]Comorbidity{
	"cardiopathy": Cardiopathy, "cardiac": Cardiopathy, "cardiopata": Cardiopathy, "cardiopatia": Cardiopathy,
	"hepatopathy": Hepatopathy, "hepatic": Hepatopathy, "hepatopata": Hepatopathy, "hepatopatia": Hepatopathy,
	"nephropathy": Nephropathy, "renal": Nephropathy, "nefropata": Nephropathy, "nefropatia": Nephropathy,
	"septic": Septic, "sepsis": Septic, "septico": Septic, "sepse": Septic,
	"endocrinopathy": Endocrinopathy, "endocrine": Endocrinopathy, "endocrinopata": Endocrinopathy, "endocrinopatia": Endocrinopathy,
	"none": NoComorbidity, "nenhuma": NoComorbidity, "": NoComorbidity,
}

var evolutionAliases = map[string]Evolution{
	"acute": Acute, "aguda": Acute, "agudo": Acute,
	"chronic": Chronic, "cronica": Chronic, "cronico": Chronic,
}

// ParseSpecies resolves a species name or alias.
func ParseSpecies(s string) (Species, error) {
	if v, ok := speciesAliases[Fold(s)]; ok {
		return v, nil
	}
	return "", eris.Wrapf(ErrInvalidValue, "species %q", s)
}

// ParsePhysiologicalState resolves a physiological state name or alias.
func ParsePhysiologicalState(s string) (PhysiologicalState, error) {
	if v, ok := stateAliases[Fold(s)]; ok {
		return v, nil
	}
	return "", eris.Wrapf(ErrInvalidValue, "physiological state %q", s)
}

// ParseComorbidity resolves a comorbidity name or alias.
func ParseComorbidity(s string) (Comorbidity, error) {
	if v, ok := comorbidityAliases[Fold(s)]; ok {
		return v, nil
	}
	return "", eris.Wrapf(ErrInvalidValue, "comorbidity %q", s)
}

// ParseEvolution resolves an evolution name or alias.
func ParseEvolution(s string) (Evolution, error) {
	if v, ok := evolutionAliases[Fold(s)]; ok {
		return v, nil
	}
	return "", eris.Wrapf(ErrInvalidValue, "evolution %q", s)
}

// Valid reports whether s is a canonical species value.
func (s Species) Valid() bool { return s == Dog || s == Cat }

// Valid reports whether p is a canonical physiological state.
func (p PhysiologicalState) Valid() bool {
	switch p {
	case Puppy, Adult, Senior, Pregnant, Lactating:
		return true
	}
	return false
}

// Valid reports whether c is a canonical comorbidity, including the none sentinel.
func (c Comorbidity) Valid() bool {
	switch c {
	case Cardiopathy, Hepatopathy, Nephropathy, Septic, Endocrinopathy, NoComorbidity:
		return true
	}
	return false
}

// Valid reports whether e is acute or chronic.
func (e Evolution) Valid() bool { return e == Acute || e == Chronic }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Species) UnmarshalText(b []byte) error {
	v, err := ParseSpecies(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PhysiologicalState) UnmarshalText(b []byte) error {
	v, err := ParsePhysiologicalState(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Comorbidity) UnmarshalText(b []byte) error {
	v, err := ParseComorbidity(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Evolution) UnmarshalText(b []byte) error {
	v, err := ParseEvolution(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// Context is the immutable patient description a calculation runs against.
// Build it with New; the zero value is not valid.
type Context struct {
	species       Species
	weightKg      float64
	state         PhysiologicalState
	comorbidities []Comorbidity
	evolution     Evolution
}

// New validates its inputs and returns a Context. Comorbidities are
// deduplicated and sorted; the "none" sentinel is dropped.
func New(species Species, weightKg float64, state PhysiologicalState, comorbidities []Comorbidity, evolution Evolution) (Context, error) {
	if !species.Valid() {
		return Context{}, eris.Wrapf(ErrInvalidValue, "species %q", species)
	}
	if !(weightKg > 0) {
		return Context{}, eris.Wrapf(ErrInvalidValue, "weight %v kg must be positive", weightKg)
	}
	if !state.Valid() {
		return Context{}, eris.Wrapf(ErrInvalidValue, "physiological state %q", state)
	}
	if !evolution.Valid() {
		return Context{}, eris.Wrapf(ErrInvalidValue, "evolution %q", evolution)
	}

	set := make([]Comorbidity, 0, len(comorbidities))
	for _, c := range comorbidities {
		if !c.Valid() {
			return Context{}, eris.Wrapf(ErrInvalidValue, "comorbidity %q", c)
		}
		if c == NoComorbidity || slices.Contains(set, c) {
			continue
		}
		set = append(set, c)
	}
	slices.Sort(set)

	return Context{
		species:       species,
		weightKg:      weightKg,
		state:         state,
		comorbidities: set,
		evolution:     evolution,
	}, nil
}

// Species returns the patient species.
func (c Context) Species() Species { return c.species }

// WeightKg returns body weight in kilograms.
func (c Context) WeightKg() float64 { return c.weightKg }

// State returns the physiological state.
func (c Context) State() PhysiologicalState { return c.state }

// Evolution returns acute or chronic.
func (c Context) Evolution() Evolution { return c.evolution }

// Comorbidities returns a copy of the comorbidity set, sorted.
func (c Context) Comorbidities() []Comorbidity {
	return slices.Clone(c.comorbidities)
}

// Has reports whether the patient carries the comorbidity.
func (c Context) Has(m Comorbidity) bool {
	return slices.Contains(c.comorbidities, m)
}

// Valid reports whether c was built by New.
func (c Context) Valid() bool {
	return c.species != "" && c.weightKg > 0
}

// Input is the wire form of a patient context. Build applies the defaults
// (adult, chronic) and validates.
type Input struct {
	Species       Species            `json:"species" yaml:"species"`
	WeightKg      float64            `json:"weight_kg" yaml:"weight_kg"`
	State         PhysiologicalState `json:"physiological_state,omitempty" yaml:"physiological_state"`
	Comorbidities []Comorbidity      `json:"comorbidities,omitempty" yaml:"comorbidities"`
	Evolution     Evolution          `json:"evolution,omitempty" yaml:"evolution"`
}

// Build validates in and returns the immutable Context.
func (in Input) Build() (Context, error) {
	state := in.State
	if state == "" {
		state = Adult
	}
	evolution := in.Evolution
	if evolution == "" {
		evolution = Chronic
	}
	return New(in.Species, in.WeightKg, state, in.Comorbidities, evolution)
}

// Input returns the wire form of c.
func (c Context) Input() Input {
	return Input{
		Species:       c.species,
		WeightKg:      c.weightKg,
		State:         c.state,
		Comorbidities: c.Comorbidities(),
		Evolution:     c.evolution,
	}
}

// MarshalJSON encodes the context through its wire form.
func (c Context) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Input())
}
