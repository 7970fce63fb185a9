// Package dosing turns a patient context and raw lab values into a dosage
// plan. It is the single entry point shared by the CLI, the batch runner and
// the HTTP API: free text is validated through the input package, the
// consensus ruleset supplies the limits and modifiers, and the calc package
// does the arithmetic.
package dosing

import (
	"slices"

	"github.com/rotisserie/eris"

	"github.com/vetref/electrolyte-cli/internal/patient"
)

// Electrolyte names a calculator.
type Electrolyte string

// Calculators.
const (
	Albumin     Electrolyte = "albumin"
	Potassium   Electrolyte = "potassium"
	Sodium      Electrolyte = "sodium"
	Calcium     Electrolyte = "calcium"
	Magnesium   Electrolyte = "magnesium"
	Phosphorus  Electrolyte = "phosphorus"
	Bicarbonate Electrolyte = "bicarbonate"
	Glucose     Electrolyte = "glucose"
)

// All lists every calculator in display order.
var All = []Electrolyte{Albumin, Potassium, Sodium, Calcium, Magnesium, Phosphorus, Bicarbonate, Glucose}

var electrolyteAliases = map[string]Electrolyte{
	"albumin": Albumin, "albumina": Albumin, "alb": Albumin,
	"potassium": Potassium, "potassio": Potassium, "k": Potassium,
	"sodium": Sodium, "sodio": Sodium, "na": Sodium,
	"calcium": Calcium, "calcio": Calcium, "ca": Calcium,
	"magnesium": Magnesium, "magnesio": Magnesium, "mg": Magnesium,
	"phosphorus": Phosphorus, "fosforo": Phosphorus, "p": Phosphorus, "phosphate": Phosphorus,
	"bicarbonate": Bicarbonate, "bicarbonato": Bicarbonate, "hco3": Bicarbonate,
	"glucose": Glucose, "glicose": Glucose, "glicemia": Glucose, "glu": Glucose,
}

// ParseElectrolyte resolves a calculator name or alias.
func ParseElectrolyte(s string) (Electrolyte, error) {
	if e, ok := electrolyteAliases[patient.Fold(s)]; ok {
		return e, nil
	}
	return "", eris.Errorf("dosing: unknown electrolyte %q", s)
}

// Aliases lists the other names ParseElectrolyte accepts for e, sorted.
func (e Electrolyte) Aliases() []string {
	var out []string
	for name, el := range electrolyteAliases {
		if el == e && name != string(e) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// NeedsRules reports whether the calculator cannot run without a loaded
// ruleset. Albumin and calcium only use the ruleset for modifiers.
func (e Electrolyte) NeedsRules() bool {
	return e != Albumin && e != Calcium
}

// Kind is how a field's raw text is interpreted.
type Kind int

// Field kinds.
const (
	Number Kind = iota
	OptionalNumber
	Text
)

func (k Kind) String() string {
	switch k {
	case Number:
		return "number"
	case OptionalNumber:
		return "optional number"
	case Text:
		return "text"
	}
	return "unknown"
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Field describes one lab value a calculator reads.
type Field struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
	Unit string `json:"unit,omitempty"`
	Help string `json:"help"`
}

// Required reports whether the field must be present.
func (f Field) Required() bool { return f.Kind == Number }

var fields = map[Electrolyte][]Field{
	Albumin: {
		{Name: "current_g_dl", Unit: "g/dL", Help: "current serum albumin"},
		{Name: "target_g_dl", Unit: "g/dL", Help: "target serum albumin"},
		{Name: "product_percent", Unit: "%", Help: "albumin product strength (5, 10, 20 or 25)"},
		{Name: "hours", Unit: "h", Help: "planned infusion time"},
	},
	Potassium: {
		{Name: "serum_k", Unit: "mEq/L", Help: "serum potassium"},
		{Name: "fluid_rate_ml_h", Unit: "mL/h", Help: "maintenance fluid rate"},
	},
	Sodium: {
		{Name: "current_na", Unit: "mEq/L", Help: "serum sodium"},
		{Name: "target_na", Kind: OptionalNumber, Unit: "mEq/L", Help: "target sodium (default: species normal)"},
		{Name: "fluid", Kind: Text, Help: "correction fluid name (default NaCl 0.9%)"},
		{Name: "fluid_na", Kind: OptionalNumber, Unit: "mEq/L", Help: "fluid sodium, overrides fluid"},
		{Name: "rate_meq_l_h", Kind: OptionalNumber, Unit: "mEq/L/h", Help: "desired correction speed (default: hourly limit)"},
	},
	Calcium: {
		{Name: "total_calcium", Kind: OptionalNumber, Unit: "mg/dL", Help: "total calcium"},
		{Name: "albumin", Kind: OptionalNumber, Unit: "g/dL", Help: "serum albumin"},
		{Name: "ionized_calcium", Kind: OptionalNumber, Unit: "mmol/L", Help: "ionized calcium"},
		{Name: "phosphorus", Kind: OptionalNumber, Help: "serum phosphorus"},
		{Name: "phosphorus_unit", Kind: Text, Help: "mg/dL or mmol/L"},
	},
	Magnesium: {
		{Name: "serum_mg", Help: "serum magnesium"},
		{Name: "unit", Kind: Text, Help: "mg/dL or mmol/L"},
	},
	Phosphorus: {
		{Name: "serum_p", Help: "serum phosphorus"},
		{Name: "unit", Kind: Text, Help: "mg/dL or mmol/L"},
		{Name: "hours", Kind: OptionalNumber, Unit: "h", Help: "infusion time"},
	},
	Bicarbonate: {
		{Name: "hco3", Unit: "mEq/L", Help: "measured bicarbonate"},
		{Name: "target_hco3", Kind: OptionalNumber, Unit: "mEq/L", Help: "target bicarbonate"},
		{Name: "ph", Kind: OptionalNumber, Help: "blood pH"},
		{Name: "hours", Kind: OptionalNumber, Unit: "h", Help: "infusion time"},
	},
	Glucose: {
		{Name: "glucose", Help: "blood glucose"},
		{Name: "unit", Kind: Text, Help: "mg/dL or mmol/L"},
	},
}

// Fields lists the values e reads.
func (e Electrolyte) Fields() []Field {
	return append([]Field(nil), fields[e]...)
}
