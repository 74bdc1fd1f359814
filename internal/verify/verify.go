// Package verify runs read-only checks over a raw parcel snapshot:
// required columns, declared CRS, geometry type census, invalid and
// empty geometries, centroid window, attribute duplicates and exact
// geometry duplicates. Nothing is repaired and nothing is written; the
// report is the entire output.
package verify

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/terroirdata/coopaudit/internal/geometry"
	"github.com/terroirdata/coopaudit/internal/ingest"
	"github.com/terroirdata/coopaudit/internal/schema"
)

// Window is the geographic envelope parcel centroids are expected to
// fall inside, in EPSG:4326 degrees.
type Window struct {
	LatMin, LatMax float64
	LonMin, LonMax float64
}

func (w Window) contains(lat, lon float64) bool {
	return lat >= w.LatMin && lat <= w.LatMax && lon >= w.LonMin && lon <= w.LonMax
}

// Anomaly is one finding against one entity. Identifiant falls back to
// "idx_<n>" when the snapshot's id column is missing on that feature;
// snapshot-wide findings use "GLOBAL".
type Anomaly struct {
	Identifiant      string `json:"identifiant"`
	TypeAnomalie     string `json:"type_anomalie"`
	ColonneConcernee string `json:"colonne_concernee"`
	Valeur           string `json:"valeur"`
}

// Check is one summary row of the verification report.
type Check struct {
	Controle string `json:"controle"`
	Valeur   string `json:"valeur"`
}

// Report is the outcome of one snapshot verification.
type Report struct {
	Entities  int
	Checks    []Check
	Anomalies []Anomaly
}

// OK reports whether the snapshot passed every check.
func (r *Report) OK() bool {
	return len(r.Anomalies) == 0
}

// Snapshot verifies one decoded parcel collection against the dataset
// contract and the expected centroid window.
func Snapshot(pc *ingest.ParcelCollection, geo schema.Geo, w Window) *Report {
	rep := &Report{Entities: len(pc.Features), Anomalies: make([]Anomaly, 0)}
	log := zap.L().With(zap.String("component", "verify"))
	log.Info("verify: checking snapshot", zap.Int("entities", len(pc.Features)))

	present := map[string]bool{}
	for _, f := range pc.Features {
		for k := range f.Properties {
			present[k] = true
		}
	}
	var missingCols []string
	for _, col := range geo.Required {
		if !present[col] {
			missingCols = append(missingCols, col)
		}
	}
	if len(missingCols) > 0 {
		log.Warn("verify: required columns missing", zap.Strings("columns", missingCols))
	}

	crsStatus := pc.CRS
	if crsStatus == "" {
		crsStatus = "CRS manquant"
		log.Warn("verify: snapshot declares no CRS")
	}

	// Per-feature passes keep the snapshot's order so reruns produce
	// identical reports.
	census := map[string]int{}
	var nbInvalid, nbEmpty, nbOutside, nbDupAttr, nbDupGeom int
	invalidRows := make([]Anomaly, 0)
	emptyRows := make([]Anomaly, 0)
	centroidRows := make([]Anomaly, 0)

	attrCounts := map[string]int{}
	attrOrder := make([]string, 0)
	geomCounts := map[string]int{}
	geomOrder := make([]string, 0)

	for _, f := range pc.Features {
		id := featureID(f, geo.IDColumn)
		census[typeName(f.Geometry)]++

		// A null geometry fails validity, emptiness and centroid checks
		// at once, matching how a frame sees a missing geometry cell.
		switch {
		case f.Geometry == nil:
			nbInvalid++
			nbEmpty++
			nbOutside++
			invalidRows = append(invalidRows, Anomaly{id, "Geometrie invalide", "geometry", "invalid"})
			emptyRows = append(emptyRows, Anomaly{id, "Geometrie vide", "geometry", "empty"})
			centroidRows = append(centroidRows, Anomaly{id, "Centroide non calculable (geometry vide)", "centroid", ""})
		case geometry.IsEmpty(f.Geometry):
			nbEmpty++
			nbOutside++
			emptyRows = append(emptyRows, Anomaly{id, "Geometrie vide", "geometry", "empty"})
			centroidRows = append(centroidRows, Anomaly{id, "Centroide non calculable (geometry vide)", "centroid", ""})
		default:
			if geometry.Validate(f.Geometry) != nil {
				nbInvalid++
				invalidRows = append(invalidRows, Anomaly{id, "Geometrie invalide", "geometry", "invalid"})
			}
			lon, lat, ok := geometry.Centroid(f.Geometry)
			if !ok {
				nbOutside++
				centroidRows = append(centroidRows, Anomaly{id, "Centroide non calculable (geometry vide)", "centroid", ""})
			} else if !w.contains(lat, lon) {
				nbOutside++
				centroidRows = append(centroidRows, Anomaly{
					id, "Centroide hors bornes CI", "centroid",
					fmt.Sprintf("%.6f,%.6f", lat, lon),
				})
			}

			if fp, err := geometry.Fingerprint(f.Geometry); err == nil {
				if _, seen := geomCounts[fp]; !seen {
					geomOrder = append(geomOrder, fp)
				}
				geomCounts[fp]++
			}
		}

		if attrID := ingest.PropString(f.Properties[geo.IDColumn]); attrID != "" {
			if _, seen := attrCounts[attrID]; !seen {
				attrOrder = append(attrOrder, attrID)
			}
			attrCounts[attrID]++
		}
	}

	rep.Anomalies = append(rep.Anomalies, invalidRows...)
	rep.Anomalies = append(rep.Anomalies, emptyRows...)
	rep.Anomalies = append(rep.Anomalies, centroidRows...)

	for _, col := range missingCols {
		rep.Anomalies = append(rep.Anomalies, Anomaly{"GLOBAL", "Colonne manquante", col, ""})
	}

	for _, id := range duplicated(attrOrder, attrCounts) {
		nbDupAttr += attrCounts[id]
		rep.Anomalies = append(rep.Anomalies, Anomaly{
			id, "Doublon attributaire " + geo.IDColumn, geo.IDColumn,
			strconv.Itoa(attrCounts[id]),
		})
	}

	for _, fp := range duplicated(geomOrder, geomCounts) {
		nbDupGeom += geomCounts[fp]
		rep.Anomalies = append(rep.Anomalies, Anomaly{
			"hash:" + fp[:16], "Doublon geometrique exact", "geometry",
			strconv.Itoa(geomCounts[fp]),
		})
	}

	rep.Checks = []Check{
		{"nb_entites", strconv.Itoa(len(pc.Features))},
		{"crs", crsStatus},
		{"geom_types", renderCensus(census)},
		{"nb_invalid", strconv.Itoa(nbInvalid)},
		{"nb_empty", strconv.Itoa(nbEmpty)},
		{"nb_centroid_hors_bornes", strconv.Itoa(nbOutside)},
		{"nb_doublons_attribut_" + geo.IDColumn, strconv.Itoa(nbDupAttr)},
		{"nb_doublons_geom_exacts", strconv.Itoa(nbDupGeom)},
	}

	if len(rep.Anomalies) > 0 {
		log.Warn("verify: snapshot failed checks", zap.Int("anomalies", len(rep.Anomalies)))
	} else {
		log.Info("verify: snapshot passed all checks")
	}
	return rep
}

func featureID(f ingest.RawFeature, idColumn string) string {
	if id := ingest.PropString(f.Properties[idColumn]); id != "" {
		return id
	}
	return fmt.Sprintf("idx_%d", f.Index)
}

// duplicated returns the keys with count >= 2, biggest groups first and
// ties in key order.
func duplicated(order []string, counts map[string]int) []string {
	out := make([]string, 0)
	for _, k := range order {
		if counts[k] >= 2 {
			out = append(out, k)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if counts[out[a]] != counts[out[b]] {
			return counts[out[a]] > counts[out[b]]
		}
		return out[a] < out[b]
	})
	return out
}

// renderCensus flattens the geometry type counts into one stable
// summary value, biggest class first.
func renderCensus(census map[string]int) string {
	names := make([]string, 0, len(census))
	for name := range census {
		names = append(names, name)
	}
	sort.Slice(names, func(a, b int) bool {
		if census[names[a]] != census[names[b]] {
			return census[names[a]] > census[names[b]]
		}
		return names[a] < names[b]
	})
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+":"+strconv.Itoa(census[name]))
	}
	return strings.Join(parts, ", ")
}

func typeName(g geom.T) string {
	switch g.(type) {
	case nil:
		return "None"
	case *geom.Point:
		return "Point"
	case *geom.MultiPoint:
		return "MultiPoint"
	case *geom.LineString:
		return "LineString"
	case *geom.MultiLineString:
		return "MultiLineString"
	case *geom.Polygon:
		return "Polygon"
	case *geom.MultiPolygon:
		return "MultiPolygon"
	case *geom.GeometryCollection:
		return "GeometryCollection"
	default:
		return "Unknown"
	}
}
