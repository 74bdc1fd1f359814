// Package tabular holds the in-memory table model the cleaning stages work
// on: ordered columns, string cells, and the numeric parsing rules shared by
// coercion and detection.
package tabular

import (
	"math"
	"strconv"
	"strings"
)

// Table is one tabular snapshot. Cells are strings; the empty string is
// the missing-value marker. Every row has exactly len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// New returns an empty table with the given column order.
func New(columns []string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// ColumnIndex returns the position of a column, or -1 when absent.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the table carries the named column.
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Cell returns the value at (row, column name), "" when the column is
// absent.
func (t *Table) Cell(row int, name string) string {
	idx := t.ColumnIndex(name)
	if idx < 0 || row < 0 || row >= len(t.Rows) {
		return ""
	}
	return t.Rows[row][idx]
}

// AppendRow adds a row, padding or truncating to the column count.
func (t *Table) AppendRow(cells []string) {
	row := make([]string, len(t.Columns))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
}

// AddColumn appends a new empty column and returns its index.
func (t *Table) AddColumn(name string) int {
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], "")
	}
	return len(t.Columns) - 1
}

// MissingCells counts empty cells over the whole table.
func (t *Table) MissingCells() int {
	n := 0
	for _, row := range t.Rows {
		for _, cell := range row {
			if cell == "" {
				n++
			}
		}
	}
	return n
}

// RowMap renders one row as a JSON-ready map. Cells in int/float typed
// columns become numbers, missing cells become nil, everything else
// stays a string. types may be nil for an all-text row.
func (t *Table) RowMap(row int, types map[string]string) map[string]any {
	out := make(map[string]any, len(t.Columns))
	for i, col := range t.Columns {
		cell := t.Rows[row][i]
		if cell == "" {
			out[col] = nil
			continue
		}
		switch types[col] {
		case "int":
			if v, err := strconv.ParseInt(cell, 10, 64); err == nil {
				out[col] = v
				continue
			}
			out[col] = cell
		case "float":
			if v, ok := ParseFloatSmart(cell); ok {
				out[col] = v
				continue
			}
			out[col] = cell
		default:
			out[col] = cell
		}
	}
	return out
}

// ParseFloatSmart parses a numeric cell the way field data actually
// arrives: decimal commas and stray spaces tolerated.
func ParseFloatSmart(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.ReplaceAll(s, " ", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// IsIntegral reports whether a float carries no real fractional part.
// The epsilon absorbs float noise from upstream spreadsheet exports.
func IsIntegral(f float64) bool {
	return math.Abs(f-math.Round(f)) <= 1e-9
}

// FormatFloat renders a float cell with the fewest digits that survive a
// round-trip.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatInt renders an integral float as an int cell, without a trailing
// ".0".
func FormatInt(f float64) string {
	return strconv.FormatInt(int64(math.Round(f)), 10)
}
