package artifact

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON_EncodingContract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anomalies_par_coop.json")

	type row struct {
		Cooperative string  `json:"cooperative"`
		Taux        float64 `json:"taux_anomalies_moyen"`
	}
	require.NoError(t, WriteJSON(path, []row{{Cooperative: "Coopérative d'Abengourou", Taux: 12.5}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	want := "[\n" +
		"  {\n" +
		"    \"cooperative\": \"Coopérative d'Abengourou\",\n" +
		"    \"taux_anomalies_moyen\": 12.5\n" +
		"  }\n" +
		"]\n"
	assert.Equal(t, want, string(data))
}

func TestWriteJSON_EmptySliceStaysArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doublons_producteurs.json")
	require.NoError(t, WriteJSON(path, []struct{}{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestWriteJSON_TrailingNewlineOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, WriteJSON(path, map[string]int{"nb": 3}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "}\n"))
	assert.False(t, strings.HasSuffix(string(data), "\n\n"))
}

func TestWriteJSON_RejectsNaN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	err := WriteJSON(path, map[string]float64{"taux": math.NaN()})
	require.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
