package ingest

import (
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// ReadShapefile loads a parcel shapefile into the same collection shape
// the GeoJSON reader produces. Attributes become feature properties
// keyed by their DBF field names; polygon shapes become multipolygons,
// anything else becomes a nil geometry for the cleaner to flag.
func ReadShapefile(path string) (*ParcelCollection, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	out := &ParcelCollection{CRS: readPrj(path)}
	var nonPolygon int

	idx := 0
	for reader.Next() {
		_, shape := reader.Shape()

		props := make(map[string]any, len(names))
		for i, name := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val == "" {
				props[name] = nil
				continue
			}
			props[name] = val
		}

		feat := RawFeature{Index: idx, Properties: props}
		if poly, ok := shape.(*shp.Polygon); ok {
			feat.Geometry = polygonToMultiPolygon(poly)
		} else if shape != nil {
			nonPolygon++
		}
		out.Features = append(out.Features, feat)
		idx++
	}

	if nonPolygon > 0 {
		zap.L().Debug("ingest: shapefile records without polygon geometry",
			zap.String("path", path),
			zap.Int("count", nonPolygon),
		)
	}
	return out, nil
}

// polygonToMultiPolygon converts a shapefile Polygon to a
// geom.MultiPolygon. Shapefile part order is preserved; ring role
// (shell or hole) is resolved later by the repair pass.
func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			zap.L().Debug("ingest: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("ingest: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// readPrj reads the sidecar .prj file and maps the common WGS84 WKT
// onto its EPSG label. Unknown projections pass through verbatim so the
// cleaner can reject them by name.
func readPrj(shpPath string) string {
	prjPath := strings.TrimSuffix(shpPath, ".shp") + ".prj"
	data, err := os.ReadFile(prjPath)
	if err != nil {
		return ""
	}
	wkt := strings.TrimSpace(string(data))
	if strings.HasPrefix(wkt, "GEOGCS") && strings.Contains(wkt, "WGS") && strings.Contains(wkt, "84") {
		return "EPSG:4326"
	}
	return wkt
}
