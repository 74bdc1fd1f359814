// Package clean implements the raw-to-clean transformations: header
// renaming, NA normalization and type coercion for the tabular
// datasets, and CRS/repair/surface handling for the parcel snapshot.
// Every stage returns an explicit diff the audit recorder consumes.
package clean

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/terroirdata/coopaudit/internal/model"
	"github.com/terroirdata/coopaudit/internal/schema"
	"github.com/terroirdata/coopaudit/internal/tabular"
)

// Diff is what one tabular normalization changed, in the shape the
// audit recorder needs. Raw column names are pre-rename.
type Diff struct {
	Dataset           string
	RowsRaw           int
	RowsClean         int
	ColumnsRaw        []string
	ColumnsClean      []string
	TypesRaw          map[string]string
	TypesClean        map[string]string
	MissingRaw        int
	MissingClean      int
	CoercionFailures  int
	DuplicatesRemoved int
}

// Normalizer applies one dataset contract to a raw table.
type Normalizer struct {
	reg *schema.Registry
}

// NewNormalizer returns a normalizer over the loaded schema registry.
func NewNormalizer(reg *schema.Registry) *Normalizer {
	return &Normalizer{reg: reg}
}

// Normalize renames headers, nulls NA tokens, trims text columns, and
// coerces numeric columns. Values that cannot be coerced become the
// missing marker and are counted; a missing required column is fatal.
// Rows are never dropped.
func (n *Normalizer) Normalize(ds *schema.Dataset, raw *tabular.Table) (*tabular.Table, *Diff, error) {
	diff := &Diff{
		Dataset:    ds.Name,
		RowsRaw:    len(raw.Rows),
		RowsClean:  len(raw.Rows),
		ColumnsRaw: append([]string(nil), raw.Columns...),
		MissingRaw: countMissingRaw(raw, n.reg),
		TypesRaw:   map[string]string{},
		TypesClean: map[string]string{},
	}

	columns := make([]string, len(raw.Columns))
	for i, col := range raw.Columns {
		columns[i] = ds.Rename(col)
	}
	diff.ColumnsClean = append([]string(nil), columns...)

	for _, req := range ds.Required {
		if !contains(columns, req) {
			schemaErr := &model.SchemaError{Dataset: ds.Name, Reason: "required column " + req + " missing"}
			return nil, nil, eris.Wrap(schemaErr, "clean: normalize "+ds.Name)
		}
	}

	for i := range raw.Columns {
		diff.TypesRaw[columns[i]] = inferRawType(raw, i, n.reg)
	}

	out := tabular.New(columns)
	out.Rows = make([][]string, len(raw.Rows))
	for r, row := range raw.Rows {
		cells := make([]string, len(columns))
		for c := range columns {
			cell := strings.TrimSpace(row[c])
			if n.reg.IsNA(cell) {
				cell = ""
			}
			cells[c] = cell
		}
		out.Rows[r] = cells
	}

	for c, col := range columns {
		switch ds.TargetType(col) {
		case schema.TypeInt:
			diff.TypesClean[col] = n.coerceNumeric(ds, out, c, true, diff)
		case schema.TypeFloat:
			diff.TypesClean[col] = n.coerceNumeric(ds, out, c, false, diff)
		default:
			diff.TypesClean[col] = schema.TypeText
		}
	}

	diff.MissingClean = out.MissingCells()
	return out, diff, nil
}

// coerceNumeric parses every cell of one column. Int columns keep
// integer cells only when every parsed value is integral; otherwise the
// whole column stays float, mirroring how a typed frame would degrade.
func (n *Normalizer) coerceNumeric(ds *schema.Dataset, t *tabular.Table, col int, wantInt bool, diff *Diff) string {
	values := make([]float64, len(t.Rows))
	present := make([]bool, len(t.Rows))
	failures := 0
	allIntegral := true

	for r, row := range t.Rows {
		cell := row[col]
		if cell == "" {
			continue
		}
		v, ok := tabular.ParseFloatSmart(cell)
		if !ok {
			row[col] = ""
			failures++
			continue
		}
		values[r] = v
		present[r] = true
		if !tabular.IsIntegral(v) {
			allIntegral = false
		}
	}

	if failures > 0 {
		diff.CoercionFailures += failures
		zap.L().Warn("clean: uncoercible values nulled",
			zap.String("component", "normalize"),
			zap.String("dataset", ds.Name),
			zap.String("column", t.Columns[col]),
			zap.Int("count", failures),
		)
	}

	asInt := wantInt && allIntegral
	for r, row := range t.Rows {
		if !present[r] {
			continue
		}
		if asInt {
			row[col] = tabular.FormatInt(values[r])
		} else {
			row[col] = tabular.FormatFloat(values[r])
		}
	}
	if asInt {
		return schema.TypeInt
	}
	return schema.TypeFloat
}

var intLexical = regexp.MustCompile(`^[+-]?\d+$`)

// inferRawType labels a raw column by what its strings look like: int
// when every non-missing value is a bare integer literal, float when
// every value parses as a plain float, text otherwise.
func inferRawType(t *tabular.Table, col int, reg *schema.Registry) string {
	sawValue := false
	allInt := true
	allFloat := true
	for _, row := range t.Rows {
		cell := strings.TrimSpace(row[col])
		if reg.IsNA(cell) {
			continue
		}
		sawValue = true
		if !intLexical.MatchString(cell) {
			allInt = false
		}
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			allFloat = false
			break
		}
	}
	switch {
	case !sawValue:
		return schema.TypeText
	case allInt:
		return schema.TypeInt
	case allFloat:
		return schema.TypeFloat
	default:
		return schema.TypeText
	}
}

// countMissingRaw counts cells that are NA tokens before normalization.
func countMissingRaw(t *tabular.Table, reg *schema.Registry) int {
	n := 0
	for _, row := range t.Rows {
		for _, cell := range row {
			if reg.IsNA(strings.TrimSpace(cell)) {
				n++
			}
		}
	}
	return n
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
