package detect

import (
	"sort"

	"github.com/terroirdata/coopaudit/internal/model"
	"github.com/terroirdata/coopaudit/internal/schema"
	"github.com/terroirdata/coopaudit/internal/tabular"
)

// CheckBounds scans a clean table's numeric columns against the
// dataset's business ranges. Cells outside [min, max] are reported with
// the row's key value; missing and unparseable cells are skipped, and
// nothing is dropped from the table.
func CheckBounds(ds *schema.Dataset, tbl *tabular.Table) []model.BoundsViolation {
	keyIdx := tbl.ColumnIndex(ds.Key)

	cols := make([]string, 0, len(ds.Bounds))
	for col := range ds.Bounds {
		if tbl.HasColumn(col) {
			cols = append(cols, col)
		}
	}
	sort.Strings(cols)

	violations := make([]model.BoundsViolation, 0)
	for _, col := range cols {
		b := ds.Bounds[col]
		ci := tbl.ColumnIndex(col)
		for r := range tbl.Rows {
			v, ok := tabular.ParseFloatSmart(tbl.Rows[r][ci])
			if !ok || (v >= b.Min && v <= b.Max) {
				continue
			}
			key := ""
			if keyIdx >= 0 {
				key = tbl.Rows[r][keyIdx]
			}
			violations = append(violations, model.BoundsViolation{
				Dataset: ds.Name,
				Key:     key,
				Column:  col,
				Value:   v,
				Min:     b.Min,
				Max:     b.Max,
			})
		}
	}
	return violations
}
