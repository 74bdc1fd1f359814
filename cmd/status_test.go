//go:build !integration

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terroirdata/coopaudit/internal/config"
	"github.com/terroirdata/coopaudit/internal/model"
	"github.com/terroirdata/coopaudit/internal/pipeline"
)

func writeJSONFixture(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestStatusCmd_NoPublishedRun(t *testing.T) {
	cfg = &config.Config{Data: config.DataConfig{OutputDir: t.TempDir()}}

	err := statusCmd.RunE(statusCmd, nil)
	require.NoError(t, err)
}

func TestStatusCmd_PrintsPublishedRun(t *testing.T) {
	dir := t.TempDir()
	cfg = &config.Config{Data: config.DataConfig{OutputDir: dir}}

	journal := model.RunJournal{
		DateExecution:   time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		ScriptsExecuted: []string{"normalize", "bounds", "geometry"},
		Folders: model.FolderBindings{
			Raw:     "data_raw",
			Clean:   "data_clean",
			Outputs: "outputs",
			Display: "display-data",
		},
	}
	writeJSONFixture(t, filepath.Join(dir, pipeline.JournalFile), journal)

	retained := 98.3
	audit := model.AuditRecord{
		Timestamp: journal.DateExecution,
		Datasets: []model.AuditEntry{
			{Dataset: "coop_producteurs", RowsRaw: 120, RowsClean: 118, PercentRetained: &retained, SanityCheck: true},
			{Dataset: "parcelles", RowsRaw: 95, RowsClean: 95, PercentRetained: &retained, SanityCheck: true, CRSClean: "EPSG:4326"},
		},
	}
	writeJSONFixture(t, filepath.Join(dir, pipeline.AuditFile), audit)

	err := statusCmd.RunE(statusCmd, nil)
	require.NoError(t, err)
}

func TestStatusCmd_MissingAudit(t *testing.T) {
	dir := t.TempDir()
	cfg = &config.Config{Data: config.DataConfig{OutputDir: dir}}

	writeJSONFixture(t, filepath.Join(dir, pipeline.JournalFile), model.RunJournal{})

	err := statusCmd.RunE(statusCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status: read audit")
}

func TestStatusCmd_RequiresOutputDir(t *testing.T) {
	cfg = &config.Config{}

	err := statusCmd.RunE(statusCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data.output_dir is required")
}
