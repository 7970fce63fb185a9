package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetref/electrolyte-cli/internal/consensus"
)

func writeEmbeddedRuleset(t *testing.T) string {
	t.Helper()
	doc, err := consensus.EmbeddedSource{}.Fetch(t.Context())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "consensos.json")
	require.NoError(t, os.WriteFile(path, doc, 0o644))
	return path
}

func TestRulesShow(t *testing.T) {
	out, err := execute(t, "rules", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:       2024.2")
	assert.Contains(t, out, "Source:        embedded")
	assert.Contains(t, out, "References:    7")
}

func TestRulesRefs(t *testing.T) {
	out, err := execute(t, "rules", "refs", "dibartola_k", "missing")
	require.NoError(t, err)
	assert.Contains(t, out, "ch. 5")
	assert.NotContains(t, out, "missing")
}

func TestRulesValidate(t *testing.T) {
	path := writeEmbeddedRuleset(t)
	out, err := execute(t, "rules", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "valid ruleset 2024.2")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("versao: x\n"), 0o644))
	_, err = execute(t, "rules", "validate", bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, consensus.ErrMalformedRuleset)
}

func TestRulesImportAndVersions(t *testing.T) {
	path := writeEmbeddedRuleset(t)
	t.Setenv("ELECTROLYTE_STORE_DATABASE_URL", filepath.Join(t.TempDir(), "rules.db"))
	t.Cleanup(func() { rulesLabel = "" })

	out, err := execute(t, "rules", "import", "--label", "clinic-1", path)
	require.NoError(t, err)
	assert.Contains(t, out, "imported clinic-1 as ")

	out, err = execute(t, "rules", "versions")
	require.NoError(t, err)
	assert.Contains(t, out, "VERSION")
	assert.Contains(t, out, "clinic-1")
	assert.Contains(t, out, "consensos.json")

	// the stored version now serves as the ruleset source
	t.Setenv("ELECTROLYTE_RULES_SOURCE", "store")
	out, err = execute(t, "rules", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Source:        store")
}
