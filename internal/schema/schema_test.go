package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ParsesEmbeddedRegistry(t *testing.T) {
	t.Parallel()

	r, err := Load()
	require.NoError(t, err)

	prod, err := r.Dataset("coop_producteurs")
	require.NoError(t, err)
	assert.Equal(t, "code_producteur", prod.Key)
	assert.Equal(t, "coop_producteurs", prod.Name)

	plant, err := r.Dataset("coop_plantations")
	require.NoError(t, err)
	assert.Equal(t, "code_plantation", plant.Key)

	assert.Equal(t, "Farms_ID", r.Parcelles.IDColumn)
	assert.Equal(t, "Farmer_ID", r.Parcelles.ProducerColumn)

	_, err = r.Dataset("inconnue")
	assert.Error(t, err)
}

func TestIsNA(t *testing.T) {
	t.Parallel()

	r, err := Load()
	require.NoError(t, err)

	tests := []struct {
		value string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{"NA", true},
		{"n/a", true},
		{"NaN", true},
		{"None", true},
		{"NULL", true},
		{"non disponible", true},
		{"Non Disponible", true},
		// "Non" is a real answer (gerant column), never a missing marker.
		{"Non", false},
		{"Inconnu", false},
		{"0", false},
		{"PROD001", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, r.IsNA(tt.value), "value %q", tt.value)
		})
	}
}

func TestDataset_Rename(t *testing.T) {
	t.Parallel()

	r, err := Load()
	require.NoError(t, err)
	plant, err := r.Dataset("coop_plantations")
	require.NoError(t, err)

	assert.Equal(t, "superficie_cacao_ha", plant.Rename("Superficie Cacao (Ha) *"))
	assert.Equal(t, "code_plantation", plant.Rename("  Code plantation *  "))
	// Unmapped headers pass through trimmed.
	assert.Equal(t, "Colonne Imprevue", plant.Rename(" Colonne Imprevue "))
}

func TestDataset_TargetType(t *testing.T) {
	t.Parallel()

	r, err := Load()
	require.NoError(t, err)
	prod, err := r.Dataset("coop_producteurs")
	require.NoError(t, err)

	assert.Equal(t, TypeInt, prod.TargetType("annee_naissance"))
	assert.Equal(t, TypeFloat, prod.TargetType("superficie_totale_cacao_ha"))
	assert.Equal(t, TypeText, prod.TargetType("cooperative"))
	assert.Equal(t, TypeText, prod.TargetType("colonne_inconnue"))
}

func TestDataset_Bounds(t *testing.T) {
	t.Parallel()

	r, err := Load()
	require.NoError(t, err)
	plant, err := r.Dataset("coop_plantations")
	require.NoError(t, err)

	b, ok := plant.Bounds["superficie_cacao_ha"]
	require.True(t, ok)
	assert.Equal(t, 0.1, b.Min)
	assert.Equal(t, 50.0, b.Max)

	lon, ok := plant.Bounds["longitude"]
	require.True(t, ok)
	assert.Equal(t, -9.0, lon.Min)
}

func TestMatchSheet(t *testing.T) {
	t.Parallel()

	r, err := Load()
	require.NoError(t, err)

	tests := []struct {
		sheet string
		want  string
		ok    bool
	}{
		{"Producteurs", "coop_producteurs", true},
		{"PRODUCTEUR.S", "coop_producteurs", true},
		{"Registre Plantations", "coop_plantations", true},
		{"plantation 2024", "coop_plantations", true},
		{"Feuil1", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.sheet, func(t *testing.T) {
			got, ok := r.MatchSheet(tt.sheet)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
