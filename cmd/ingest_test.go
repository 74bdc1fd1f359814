//go:build !integration

package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/terroirdata/coopaudit/internal/config"
)

func TestIngestCmd_RequiresSource(t *testing.T) {
	cfg = &config.Config{Data: config.DataConfig{RawDir: t.TempDir()}}

	oldWorkbook, oldShapefile := ingestWorkbook, ingestShapefile
	ingestWorkbook, ingestShapefile = "", ""
	defer func() { ingestWorkbook, ingestShapefile = oldWorkbook, oldShapefile }()

	err := ingestCmd.RunE(ingestCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest.workbook or ingest.shapefile is required")
}

func TestIngestCmd_ExtractsWorkbook(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Liste Producteurs")
	require.NoError(t, err)
	header := sheet.AddRow()
	header.AddCell().SetString("Code Producteur *")
	header.AddCell().SetString("Coopérative")
	row := sheet.AddRow()
	row.AddCell().SetString("P001")
	row.AddCell().SetString("COOP-A")

	workbook := filepath.Join(t.TempDir(), "enquete.xlsx")
	require.NoError(t, f.Save(workbook))

	rawDir := t.TempDir()
	cfg = &config.Config{Data: config.DataConfig{RawDir: rawDir}}

	oldWorkbook, oldShapefile := ingestWorkbook, ingestShapefile
	ingestWorkbook, ingestShapefile = workbook, ""
	defer func() { ingestWorkbook, ingestShapefile = oldWorkbook, oldShapefile }()

	err = ingestCmd.RunE(ingestCmd, nil)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(rawDir, "coop_producteurs.csv"))
}

func TestIngestCmd_BadWorkbookPath(t *testing.T) {
	cfg = &config.Config{Data: config.DataConfig{RawDir: t.TempDir()}}

	oldWorkbook, oldShapefile := ingestWorkbook, ingestShapefile
	ingestWorkbook, ingestShapefile = "/nonexistent/enquete.xlsx", ""
	defer func() { ingestWorkbook, ingestShapefile = oldWorkbook, oldShapefile }()

	err := ingestCmd.RunE(ingestCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extract workbook")
}
