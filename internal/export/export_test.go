package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func TestFormatFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, XLSX, FormatFor("out/results.XLSX"))
	assert.Equal(t, CSV, FormatFor("results.csv"))
	assert.Equal(t, CSV, FormatFor("results"))
}

func TestReadCSV(t *testing.T) {
	t.Parallel()

	in := "\ufeffspecies, weight_kg ,Serum K\n# comment\ndog,\"12,5\",2.8\ncat,4\n"
	rows, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "species", rows[0][0])
	assert.Equal(t, []string{"dog", "12,5", "2.8"}, rows[1])
	assert.Equal(t, []string{"cat", "4"}, rows[2])
}

func TestReadCSV_Malformed(t *testing.T) {
	t.Parallel()

	_, err := ReadCSV(strings.NewReader("a,\"b\nc"))
	assert.Error(t, err)
}

func TestTableRecords(t *testing.T) {
	t.Parallel()

	tbl := Table{
		Header: []string{"Species", " Weight Kg", "serum-k"},
		Rows:   [][]string{{"dog", " 10 ", "2.8"}, {"cat"}},
	}
	recs := tbl.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, map[string]string{"species": "dog", "weight_kg": "10", "serum_k": "2.8"}, recs[0])
	assert.Equal(t, "", recs[1]["serum_k"])
}

func TestCSVRoundTripThroughFiles(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")
	tbl := Table{
		Header: []string{"id", "summary"},
		Rows:   [][]string{{"1", "add 40 mEq KCl/L, 0.40 mEq/kg/h"}, {"", ""}, {"2", "not indicated"}},
	}
	require.NoError(t, WriteFile(path, tbl))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, tbl.Header, got.Header)
	assert.Equal(t, [][]string{tbl.Rows[0], tbl.Rows[2]}, got.Rows)
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, Table{Header: []string{"a", "b"}, Rows: [][]string{{"1", "x,y"}}}))
	assert.Equal(t, "a,b\n1,\"x,y\"\n", buf.String())
}

func TestXLSX(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "results.xlsx")
	tbl := Table{
		Header: []string{"electrolyte", "weight_kg", "summary"},
		Rows:   [][]string{{"potassium", "12", "add 40 mEq KCl/L"}},
	}
	require.NoError(t, WriteFile(path, tbl))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet, ok := f.Sheet["results"]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, xlsx.CellTypeNumeric, sheet.Rows[1].Cells[1].Type())

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, tbl.Header, got.Header)
	assert.Equal(t, tbl.Rows, got.Rows)
}

func TestReadXLSX_SheetErrors(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "in.xlsx")
	require.NoError(t, WriteXLSX(path, "patients", Table{Header: []string{"species"}}))

	_, err := ReadXLSX(path, XLSXOptions{SheetName: "missing"})
	assert.ErrorContains(t, err, `sheet "missing" not found`)

	_, err = ReadXLSX(path, XLSXOptions{SheetIndex: 3})
	assert.ErrorContains(t, err, "out of range")

	rows, err := ReadXLSX(path, XLSXOptions{SheetName: "patients"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"species"}}, rows)
}

func TestReadFile_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := ReadFile(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = ReadFile(empty)
	assert.ErrorContains(t, err, "no header row")
}
