// Package audit assembles the per-dataset cleaning report from the diff
// values the cleaning stages return. It observes; it never re-reads or
// re-derives what a stage already measured.
package audit

import (
	"time"

	"go.uber.org/zap"

	"github.com/terroirdata/coopaudit/internal/clean"
	"github.com/terroirdata/coopaudit/internal/model"
)

// Recorder accumulates audit entries in processing order, one per
// logical dataset, append-only within a run.
type Recorder struct {
	entries []model.AuditEntry
}

func NewRecorder() *Recorder {
	return &Recorder{entries: make([]model.AuditEntry, 0, 3)}
}

// RecordTable appends the entry for one tabular dataset.
func (r *Recorder) RecordTable(diff *clean.Diff) {
	entry := newEntry(diff.Dataset, diff.RowsRaw, diff.RowsClean, diff.ColumnsRaw, diff.ColumnsClean)
	entry.TypeChanges = typeChanges(diff)
	entry.MissingValuesRaw = diff.MissingRaw
	entry.MissingValuesClean = diff.MissingClean
	entry.MissingReduction = diff.MissingRaw - diff.MissingClean
	entry.DuplicatesRemoved = diff.DuplicatesRemoved
	r.add(entry)
}

// RecordGeo appends the entry for the geometry snapshot.
func (r *Recorder) RecordGeo(name string, diff *clean.GeoDiff) {
	entry := newEntry(name, diff.RowsRaw, diff.RowsClean, diff.ColumnsRaw, diff.ColumnsClean)
	entry.TypeChanges = map[string]model.TypeChange{}
	entry.MissingValuesRaw = diff.MissingRaw
	entry.MissingValuesClean = diff.MissingClean
	entry.MissingReduction = diff.MissingRaw - diff.MissingClean
	entry.DuplicatesRemoved = diff.DuplicatesRemoved
	entry.CRSRaw = diff.CRSRaw
	entry.CRSClean = diff.CRSClean
	fixed := diff.InvalidFixed
	entry.InvalidGeometriesFixed = &fixed
	failures := diff.GeometryFailures
	entry.GeometryFailures = &failures
	r.add(entry)
}

// Build stamps the accumulated entries into one audit record.
func (r *Recorder) Build(ts time.Time) model.AuditRecord {
	return model.AuditRecord{Timestamp: ts.UTC(), Datasets: r.entries}
}

func (r *Recorder) add(entry model.AuditEntry) {
	r.entries = append(r.entries, entry)
	zap.L().Info("audit: dataset recorded",
		zap.String("component", "audit"),
		zap.String("dataset", entry.Dataset),
		zap.Int("rows_raw", entry.RowsRaw),
		zap.Int("rows_clean", entry.RowsClean),
	)
}

// newEntry fills the row and column bookkeeping every dataset shares.
// rows_removed is clamped at zero; the sanity flag goes false exactly
// when the clean table somehow outgrew the raw one.
func newEntry(name string, rowsRaw, rowsClean int, colsRaw, colsClean []string) model.AuditEntry {
	removed := rowsRaw - rowsClean
	if removed < 0 {
		removed = 0
	}

	entry := model.AuditEntry{
		Dataset:        name,
		RowsRaw:        rowsRaw,
		RowsClean:      rowsClean,
		RowsRemoved:    removed,
		ColumnsRaw:     colsRaw,
		ColumnsClean:   colsClean,
		ColumnsAdded:   subtract(colsClean, colsRaw),
		ColumnsRemoved: subtract(colsRaw, colsClean),
		SanityCheck:    rowsClean+removed == rowsRaw,
	}
	if rowsRaw > 0 {
		entry.RowsRemovedPct = float64(rowsRaw-rowsClean) / float64(rowsRaw) * 100
		retained := float64(rowsClean) / float64(rowsRaw) * 100
		entry.PercentRetained = &retained
	}
	return entry
}

// subtract returns the members of a missing from b, preserving a's order.
func subtract(a, b []string) []string {
	in := make(map[string]bool, len(b))
	for _, s := range b {
		in[s] = true
	}
	out := make([]string, 0)
	for _, s := range a {
		if !in[s] {
			out = append(out, s)
		}
	}
	return out
}

func typeChanges(diff *clean.Diff) map[string]model.TypeChange {
	changes := make(map[string]model.TypeChange)
	for col, to := range diff.TypesClean {
		from, ok := diff.TypesRaw[col]
		if ok && from != to {
			changes[col] = model.TypeChange{From: from, To: to}
		}
	}
	return changes
}
