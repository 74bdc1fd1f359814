package tabular

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFloatSmart(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want float64
		ok   bool
	}{
		{"plain", "3.5", 3.5, true},
		{"decimal comma", "3,5", 3.5, true},
		{"thousands space", "1 234,5", 1234.5, true},
		{"padded", "  42  ", 42, true},
		{"negative", "-7,25", -7.25, true},
		{"empty", "", 0, false},
		{"spaces only", "   ", 0, false},
		{"text", "inconnu", 0, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseFloatSmart(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-12)
			}
		})
	}
}

func TestIsIntegral(t *testing.T) {
	t.Parallel()

	assert.True(t, IsIntegral(4))
	assert.True(t, IsIntegral(4.0000000001))
	assert.True(t, IsIntegral(-12))
	assert.False(t, IsIntegral(4.5))
	assert.False(t, IsIntegral(0.1))
}

func TestTable_AppendRowPadsAndTruncates(t *testing.T) {
	t.Parallel()

	tbl := New([]string{"a", "b", "c"})
	tbl.AppendRow([]string{"1"})
	tbl.AppendRow([]string{"1", "2", "3", "4"})

	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []string{"1", "", ""}, tbl.Rows[0])
	assert.Equal(t, []string{"1", "2", "3"}, tbl.Rows[1])
}

func TestTable_RowMap(t *testing.T) {
	t.Parallel()

	tbl := New([]string{"code", "superficie", "ordre", "note"})
	tbl.AppendRow([]string{"P001", "2.5", "3", ""})

	got := tbl.RowMap(0, map[string]string{"superficie": "float", "ordre": "int"})

	assert.Equal(t, "P001", got["code"])
	assert.Equal(t, 2.5, got["superficie"])
	assert.Equal(t, int64(3), got["ordre"])
	assert.Nil(t, got["note"])
}

func TestTable_MissingCells(t *testing.T) {
	t.Parallel()

	tbl := New([]string{"a", "b"})
	tbl.AppendRow([]string{"x", ""})
	tbl.AppendRow([]string{"", ""})

	assert.Equal(t, 3, tbl.MissingCells())
}

func TestReadWriteCSV(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "sample.csv")

	in := New([]string{"code_producteur", "cooperative", "superficie_totale_cacao_ha"})
	in.AppendRow([]string{"P001", "COOP-A", "2.5"})
	in.AppendRow([]string{"P002", "COOP-B", ""})

	require.NoError(t, WriteCSV(path, in))

	out, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, in.Columns, out.Columns)
	assert.Equal(t, in.Rows, out.Rows)
}

func TestReadCSV_RaggedRows(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "ragged.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b,c\n1,2\n1,2,3,4\n"), 0o644))

	tbl, err := ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []string{"1", "2", ""}, tbl.Rows[0])
	assert.Equal(t, []string{"1", "2", "3"}, tbl.Rows[1])
}

func TestReadCSV_MissingHeader(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := ReadCSV(path)
	assert.Error(t, err)
}
