package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"calc", "compat", "rules", "batch", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "electrolyte-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestCalcCommand_OneSubcommandPerCalculator(t *testing.T) {
	assert.Len(t, calcCmd.Commands(), 8)

	cmd, _, err := calcCmd.Find([]string{"potassio"})
	require.NoError(t, err)
	assert.Equal(t, "potassium", cmd.Name())

	for _, name := range []string{"species", "weight", "state", "evolution", "comorbidities", "serum-k", "fluid-rate-ml-h"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	assert.Contains(t, cmd.Flags().Lookup("serum-k").Usage, "required")
}

func TestRulesCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rulesCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"show", "refs", "validate", "import", "versions"} {
		assert.True(t, names[name], name)
	}
}

func TestBatchCommand_Flags(t *testing.T) {
	require.NotNil(t, batchCmd.Flags().Lookup("file"))
	require.NotNil(t, batchCmd.Flags().Lookup("out"))
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}
