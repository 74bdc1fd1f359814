package ingest

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/terroirdata/coopaudit/internal/schema"
	"github.com/terroirdata/coopaudit/internal/tabular"
)

// SheetExport records one workbook sheet written out as a raw CSV.
type SheetExport struct {
	Sheet   string // source sheet name
	Dataset string // matched dataset name, "" when no hint matched
	Path    string // written CSV file
	Rows    int    // data rows, header excluded
	Cols    int
}

// ExtractWorkbook splits a survey workbook into one raw CSV per sheet.
// Sheets matching a dataset's hints are written under the dataset's
// canonical file name; the rest keep a sanitized sheet name. Overrides
// map exact sheet names to dataset names and win over hint matching.
// Every written file is re-read and its shape compared against what was
// written.
func ExtractWorkbook(path, rawDir string, reg *schema.Registry, overrides map[string]string) ([]SheetExport, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open workbook")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("ingest: workbook has no sheets")
	}

	exports := make([]SheetExport, 0, len(f.Sheets))
	for _, sheet := range f.Sheets {
		exp, err := extractSheet(sheet, rawDir, reg, overrides)
		if err != nil {
			return nil, err
		}
		if exp == nil {
			zap.L().Warn("ingest: skipping empty sheet", zap.String("sheet", sheet.Name))
			continue
		}
		exports = append(exports, *exp)
	}
	return exports, nil
}

func extractSheet(sheet *xlsx.Sheet, rawDir string, reg *schema.Registry, overrides map[string]string) (*SheetExport, error) {
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	header := make([]string, len(sheet.Rows[0].Cells))
	for i, cell := range sheet.Rows[0].Cells {
		header[i] = SanitizeHeader(cell.String())
	}

	t := tabular.New(header)
	for _, row := range sheet.Rows[1:] {
		cells := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			cells[i] = cell.String()
		}
		t.AppendRow(cells)
	}

	name := sanitizeFileName(sheet.Name) + ".csv"
	dataset := ""
	if forced, ok := overrides[sheet.Name]; ok {
		ds, err := reg.Dataset(forced)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: sheet map for %q", sheet.Name)
		}
		dataset = ds.Name
		name = ds.Name + ".csv"
	} else if matched, ok := reg.MatchSheet(sheet.Name); ok {
		dataset = matched
		name = matched + ".csv"
	}

	out := filepath.Join(rawDir, name)
	if err := tabular.WriteCSV(out, t); err != nil {
		return nil, eris.Wrapf(err, "ingest: write sheet %q", sheet.Name)
	}

	back, err := tabular.ReadCSV(out)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: verify sheet %q", sheet.Name)
	}
	if len(back.Rows) != len(t.Rows) || len(back.Columns) != len(t.Columns) {
		return nil, eris.Errorf("ingest: sheet %q roundtrip mismatch: wrote %dx%d, read %dx%d",
			sheet.Name, len(t.Rows), len(t.Columns), len(back.Rows), len(back.Columns))
	}

	zap.L().Info("ingest: extracted sheet",
		zap.String("sheet", sheet.Name),
		zap.String("file", name),
		zap.Int("rows", len(t.Rows)),
		zap.Int("cols", len(t.Columns)),
	)
	return &SheetExport{
		Sheet:   sheet.Name,
		Dataset: dataset,
		Path:    out,
		Rows:    len(t.Rows),
		Cols:    len(t.Columns),
	}, nil
}

// SanitizeHeader flattens the multi-line headers survey exports carry:
// newlines and runs of whitespace collapse to single spaces, edges trim.
func SanitizeHeader(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// sanitizeFileName turns a sheet name into a safe lowercase file stem.
func sanitizeFileName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "sheet"
	}
	return b.String()
}
