package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/terroirdata/coopaudit/internal/model"
)

const sampleCollection = `{
  "type": "FeatureCollection",
  "name": "parcelles",
  "crs": {"type": "name", "properties": {"name": "urn:ogc:def:crs:OGC:1.3:CRS84"}},
  "features": [
    {
      "type": "Feature",
      "properties": {"Farms_ID": "PL001", "Farmer_ID": "P001", "Superficie": 2.5},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[-5.0, 6.0], [-5.0, 6.01], [-4.99, 6.01], [-4.99, 6.0], [-5.0, 6.0]]]
      }
    },
    {
      "type": "Feature",
      "properties": {"Farms_ID": "PL002", "Farmer_ID": "P002", "Superficie": 1.0},
      "geometry": null
    }
  ]
}`

func writeSample(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parcelles.geojson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadGeoJSON_Basic(t *testing.T) {
	path := writeSample(t, sampleCollection)

	pc, err := ReadGeoJSON(path)
	require.NoError(t, err)

	assert.Equal(t, "urn:ogc:def:crs:OGC:1.3:CRS84", pc.CRS)
	require.Len(t, pc.Features, 2)

	first := pc.Features[0]
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, "PL001", first.Properties["Farms_ID"])
	require.NotNil(t, first.Geometry)
	_, isPoly := first.Geometry.(*geom.Polygon)
	assert.True(t, isPoly)

	second := pc.Features[1]
	assert.Equal(t, "PL002", second.Properties["Farms_ID"])
	assert.Nil(t, second.Geometry)
}

func TestReadGeoJSON_NotACollection(t *testing.T) {
	path := writeSample(t, `{"type": "Feature", "properties": {}, "geometry": null}`)

	_, err := ReadGeoJSON(path)
	require.Error(t, err)

	var schemaErr *model.SchemaError
	assert.ErrorAs(t, err, &schemaErr)
}

func TestReadGeoJSON_MalformedJSON(t *testing.T) {
	path := writeSample(t, `{"type": "FeatureCollection", "features": [`)

	_, err := ReadGeoJSON(path)
	require.Error(t, err)

	var schemaErr *model.SchemaError
	assert.ErrorAs(t, err, &schemaErr)
}

func TestReadGeoJSON_MissingFile(t *testing.T) {
	_, err := ReadGeoJSON(filepath.Join(t.TempDir(), "absent.geojson"))
	assert.Error(t, err)
}

func TestNormalizeCRS(t *testing.T) {
	tests := []struct {
		in        string
		label     string
		supported bool
	}{
		{"", "EPSG:4326", true},
		{"EPSG:4326", "EPSG:4326", true},
		{"urn:ogc:def:crs:OGC:1.3:CRS84", "EPSG:4326", true},
		{"urn:ogc:def:crs:EPSG::4326", "EPSG:4326", true},
		{"CRS84", "EPSG:4326", true},
		{"EPSG:32630", "EPSG:32630", false},
		{"urn:ogc:def:crs:EPSG::2154", "urn:ogc:def:crs:EPSG::2154", false},
	}
	for _, tt := range tests {
		label, supported := NormalizeCRS(tt.in)
		assert.Equal(t, tt.label, label, "crs %q", tt.in)
		assert.Equal(t, tt.supported, supported, "crs %q", tt.in)
	}
}

func TestWriteGeoJSON_Roundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.geojson")

	poly := geom.NewPolygonFlat(geom.XY, []float64{
		-5, 6, -4.99, 6, -4.99, 6.01, -5, 6.01, -5, 6,
	}, []int{10})
	features := []RawFeature{
		{Index: 0, Properties: map[string]any{"Farms_ID": "PL001", "surface_calculee_ha": 1.23}, Geometry: poly},
		{Index: 1, Properties: map[string]any{"Farms_ID": "PL002"}, Geometry: nil},
	}

	require.NoError(t, WriteGeoJSON(path, features))

	back, err := ReadGeoJSON(path)
	require.NoError(t, err)
	require.Len(t, back.Features, 2)
	assert.Equal(t, "PL001", back.Features[0].Properties["Farms_ID"])
	assert.Equal(t, 1.23, back.Features[0].Properties["surface_calculee_ha"])
	assert.NotNil(t, back.Features[0].Geometry)
	assert.Nil(t, back.Features[1].Geometry)

	// The writer emits RFC 7946 output, so no legacy crs member.
	assert.Empty(t, back.CRS)
}
