package numeric

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// ParseLocaleNumber parses free-text numeric input that may use a decimal
// comma ("3,5") or dot ("3.5"), optionally with thousands separators
// ("1.234,5" or "1,234.5"). Unparseable input returns 0.
func ParseLocaleNumber(text string) float64 {
	v, ok := ParseLocale(text)
	if !ok {
		return 0
	}
	return v
}

// ParseLocale is ParseLocaleNumber with an explicit success flag so the input
// boundary can tell "0" apart from garbage.
func ParseLocale(text string) (float64, bool) {
	s := normalizeNumber(text)
	if s == "" {
		return 0, false
	}

	s = canonicalSeparators(s)

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// normalizeNumber folds full-width digits and strips whitespace, including
// the non-breaking spaces spreadsheets use as thousands separators.
func normalizeNumber(text string) string {
	s := width.Narrow.String(strings.TrimSpace(text))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\t':
			return -1
		}
		return r
	}, s)
}

func canonicalSeparators(s string) string {
	commas := strings.Count(s, ",")
	dots := strings.Count(s, ".")

	switch {
	case commas > 0 && dots > 0:
		// The separator that appears last is the decimal mark.
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case commas == 1:
		return strings.Replace(s, ",", ".", 1)
	case commas > 1:
		return strings.ReplaceAll(s, ",", "")
	case dots > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}
