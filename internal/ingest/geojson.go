// Package ingest reads the three raw inputs: the survey workbook, the
// parcel GeoJSON snapshot, and shapefile exports. Readers decode and
// hand the data on; cleaning rules live downstream.
package ingest

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/terroirdata/coopaudit/internal/model"
)

// RawFeature is one feature from the parcel snapshot, geometry decoded
// but otherwise untouched.
type RawFeature struct {
	Index      int
	Properties map[string]any
	Geometry   geom.T // nil when the source geometry is null or absent
}

// ParcelCollection is a decoded snapshot plus its declared CRS.
type ParcelCollection struct {
	CRS      string // as declared in the file, "" when absent
	Features []RawFeature
}

type featureCollectionJSON struct {
	Type     string        `json:"type"`
	Name     string        `json:"name"`
	CRS      *crsJSON      `json:"crs"`
	Features []featureJSON `json:"features"`
}

type crsJSON struct {
	Type       string `json:"type"`
	Properties struct {
		Name string `json:"name"`
	} `json:"properties"`
}

type featureJSON struct {
	Type       string          `json:"type"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

// ReadGeoJSON loads a parcel FeatureCollection. Features with a null or
// absent geometry come back with a nil Geometry; malformed documents
// fail the whole dataset.
func ReadGeoJSON(path string) (*ParcelCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read geojson file")
	}

	var fc featureCollectionJSON
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(&model.SchemaError{Dataset: "parcelles", Reason: err.Error()}, "ingest: parse geojson")
	}
	if fc.Type != "FeatureCollection" {
		schemaErr := &model.SchemaError{Dataset: "parcelles", Reason: "top-level type must be FeatureCollection"}
		return nil, eris.Wrap(schemaErr, "ingest: parse geojson")
	}

	out := &ParcelCollection{Features: make([]RawFeature, 0, len(fc.Features))}
	if fc.CRS != nil {
		out.CRS = fc.CRS.Properties.Name
	}

	for i, f := range fc.Features {
		feat := RawFeature{Index: i, Properties: f.Properties}
		if feat.Properties == nil {
			feat.Properties = map[string]any{}
		}
		if len(f.Geometry) > 0 && string(f.Geometry) != "null" {
			var g geom.T
			if err := geojson.Unmarshal(f.Geometry, &g); err != nil {
				schemaErr := &model.SchemaError{Dataset: "parcelles", Reason: err.Error()}
				return nil, eris.Wrapf(schemaErr, "ingest: decode geometry of feature %d", i)
			}
			feat.Geometry = g
		}
		out.Features = append(out.Features, feat)
	}
	return out, nil
}

// NormalizeCRS maps the CRS names a snapshot may declare onto an EPSG
// label. An empty name is geographic WGS84 per the GeoJSON spec.
// supported is false for any CRS the pipeline cannot interpret.
func NormalizeCRS(name string) (label string, supported bool) {
	switch name {
	case "", "EPSG:4326", "epsg:4326",
		"urn:ogc:def:crs:OGC:1.3:CRS84",
		"urn:ogc:def:crs:EPSG::4326",
		"OGC:CRS84", "CRS84":
		return "EPSG:4326", true
	default:
		return name, false
	}
}

// WriteGeoJSON writes features back out as an RFC 7946 FeatureCollection
// in EPSG:4326. Features keep their properties; nil geometries are
// written as JSON null.
func WriteGeoJSON(path string, features []RawFeature) error {
	fc := struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}{Type: "FeatureCollection", Features: make([]json.RawMessage, 0, len(features))}

	for i, f := range features {
		geomJSON := json.RawMessage("null")
		if f.Geometry != nil {
			b, err := geojson.Marshal(f.Geometry)
			if err != nil {
				return eris.Wrapf(err, "ingest: encode geometry of feature %d", i)
			}
			geomJSON = b
		}
		props := f.Properties
		if props == nil {
			props = map[string]any{}
		}
		feat, err := json.Marshal(struct {
			Type       string          `json:"type"`
			Properties map[string]any  `json:"properties"`
			Geometry   json.RawMessage `json:"geometry"`
		}{Type: "Feature", Properties: props, Geometry: geomJSON})
		if err != nil {
			return eris.Wrapf(err, "ingest: encode feature %d", i)
		}
		fc.Features = append(fc.Features, feat)
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return eris.Wrap(err, "ingest: encode feature collection")
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrap(err, "ingest: write geojson file")
	}
	return nil
}
