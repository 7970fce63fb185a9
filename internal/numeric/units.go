package numeric

// Conversion factors from SI to conventional units.
const (
	PhosphorusMmolPerMg = 0.323  // mg/dL = mmol/L / 0.323
	CalciumMgPerMmol    = 4.008  // mg/dL = mmol/L * 4.008
	MagnesiumMgPerMmol  = 2.431  // mg/dL = mmol/L * 2.431
	GlucoseMgPerMmol    = 18.016 // mg/dL = mmol/L * 18.016
)

// Unit is the concentration unit of a lab value.
type Unit string

// Supported lab units.
const (
	UnitMgDL  Unit = "mg/dL"
	UnitMmolL Unit = "mmol/L"
	UnitMEqL  Unit = "mEq/L"
	UnitGDL   Unit = "g/dL"
	UnitUnset Unit = ""
)

// ParseUnit accepts the common spellings of mg/dL and mmol/L.
func ParseUnit(s string) (Unit, bool) {
	switch s {
	case "", "mg/dL", "mg/dl", "mgdl", "mg":
		return UnitMgDL, true
	case "mmol/L", "mmol/l", "mmol", "mmoll":
		return UnitMmolL, true
	}
	return UnitUnset, false
}

// PhosphorusToMgDL converts a phosphorus value to mg/dL.
func PhosphorusToMgDL(v float64, u Unit) float64 {
	if u == UnitMmolL {
		return v / PhosphorusMmolPerMg
	}
	return v
}

// MagnesiumToMgDL converts a magnesium value to mg/dL.
func MagnesiumToMgDL(v float64, u Unit) float64 {
	if u == UnitMmolL {
		return v * MagnesiumMgPerMmol
	}
	return v
}

// GlucoseToMgDL converts a glucose value to mg/dL.
func GlucoseToMgDL(v float64, u Unit) float64 {
	if u == UnitMmolL {
		return v * GlucoseMgPerMmol
	}
	return v
}

// CalciumToMgDL converts a total calcium value to mg/dL.
func CalciumToMgDL(v float64, u Unit) float64 {
	if u == UnitMmolL {
		return v * CalciumMgPerMmol
	}
	return v
}
