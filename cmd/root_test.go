package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"run", "ingest", "verify", "status"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "coopaudit", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRunCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"raw-dir", "clean-dir", "output-dir", "display-dir", "workers", "threshold", "dedup"} {
		flag := runCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "run should have --%s flag", flagName)
	}

	workers := runCmd.Flags().Lookup("workers")
	require.NotNil(t, workers)
	assert.Equal(t, "0", workers.DefValue)

	dedup := runCmd.Flags().Lookup("dedup")
	require.NotNil(t, dedup)
	assert.Equal(t, "false", dedup.DefValue)
}

func TestIngestCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"workbook", "shapefile", "sheet-map"} {
		flag := ingestCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "ingest should have --%s flag", flagName)
	}
}

func TestVerifyCommand_Flags(t *testing.T) {
	flag := verifyCmd.Flags().Lookup("geojson")
	require.NotNil(t, flag, "verify should have --geojson flag")
	assert.Equal(t, "", flag.DefValue)
}
