// Package export reads batch input tables and writes batch results as CSV or
// XLSX.
package export

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Format is a table file format.
type Format string

// Formats.
const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

// FormatFor picks the format from a file extension; anything that is not
// .xlsx is CSV.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return XLSX
	}
	return CSV
}

// Table is a header row plus data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// Records returns each row as a map keyed by the normalized header. Short
// rows yield empty strings for their missing columns.
func (t Table) Records() []map[string]string {
	keys := make([]string, len(t.Header))
	for i, h := range t.Header {
		keys[i] = NormalizeHeader(h)
	}
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]string, len(keys))
		for i, k := range keys {
			if i < len(row) {
				rec[k] = strings.TrimSpace(row[i])
			} else {
				rec[k] = ""
			}
		}
		out = append(out, rec)
	}
	return out
}

// NormalizeHeader lowercases a column name and turns spaces and dashes into
// underscores: "Serum K" becomes "serum_k".
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(h)
}

// ReadFile reads a CSV or XLSX table whose first row is the header.
func ReadFile(path string) (Table, error) {
	var (
		rows [][]string
		err  error
	)
	switch FormatFor(path) {
	case XLSX:
		rows, err = ReadXLSX(path, XLSXOptions{})
	default:
		rows, err = ReadCSVFile(path)
	}
	if err != nil {
		return Table{}, err
	}
	if len(rows) == 0 {
		return Table{}, eris.Errorf("export: %s has no header row", path)
	}
	return Table{Header: rows[0], Rows: dropBlank(rows[1:])}, nil
}

// WriteFile writes t in the format implied by path.
func WriteFile(path string, t Table) error {
	if FormatFor(path) == XLSX {
		return WriteXLSX(path, "results", t)
	}
	return WriteCSVFile(path, t)
}

func dropBlank(rows [][]string) [][]string {
	out := rows[:0]
	for _, r := range rows {
		for _, c := range r {
			if strings.TrimSpace(c) != "" {
				out = append(out, r)
				break
			}
		}
	}
	return out
}
