package clean

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/terroirdata/coopaudit/internal/geometry"
	"github.com/terroirdata/coopaudit/internal/ingest"
	"github.com/terroirdata/coopaudit/internal/model"
	"github.com/terroirdata/coopaudit/internal/schema"
)

// GeoDiff is what the geometry stage changed, for the audit recorder.
type GeoDiff struct {
	RowsRaw           int
	RowsClean         int
	ColumnsRaw        []string
	ColumnsClean      []string
	MissingRaw        int
	MissingClean      int
	CRSRaw            string
	CRSClean          string
	InvalidFixed      int
	GeometryFailures  int
	DuplicatesRemoved int
}

// GeoCleaner normalizes the parcel snapshot: CRS check, geometry repair,
// optional deduplication, projected surface computation.
type GeoCleaner struct {
	geo     schema.Geo
	workers int
	dedup   bool
}

// NewGeoCleaner configures the geometry stage. workers bounds the
// surface-computation pool; dedup enables keep-first dropping of
// attribute and exact-geometry duplicates.
func NewGeoCleaner(geo schema.Geo, workers int, dedup bool) *GeoCleaner {
	if workers < 1 {
		workers = 1
	}
	return &GeoCleaner{geo: geo, workers: workers, dedup: dedup}
}

// Clean runs the geometry stage over a decoded snapshot. It returns the
// parcels in deterministic input order, the features ready to be written
// as the clean snapshot, and the diff. Records with unrepairable or
// missing geometry are kept with a null surface; an unsupported CRS or a
// missing required column aborts the dataset.
func (gc *GeoCleaner) Clean(ctx context.Context, pc *ingest.ParcelCollection) ([]model.Parcel, []ingest.RawFeature, *GeoDiff, error) {
	crsLabel, supported := ingest.NormalizeCRS(pc.CRS)
	if !supported {
		schemaErr := &model.SchemaError{Dataset: "parcelles", Reason: "unsupported source CRS " + pc.CRS}
		return nil, nil, nil, eris.Wrap(schemaErr, "clean: geometry stage")
	}
	if len(pc.Features) == 0 {
		schemaErr := &model.SchemaError{Dataset: "parcelles", Reason: "snapshot has no features"}
		return nil, nil, nil, eris.Wrap(schemaErr, "clean: geometry stage")
	}

	columns := propertyColumns(pc.Features)
	for _, req := range gc.geo.Required {
		if !contains(columns, req) {
			schemaErr := &model.SchemaError{Dataset: "parcelles", Reason: "required column " + req + " missing"}
			return nil, nil, nil, eris.Wrap(schemaErr, "clean: geometry stage")
		}
	}

	diff := &GeoDiff{
		RowsRaw:    len(pc.Features),
		ColumnsRaw: append(append([]string(nil), columns...), "geometry"),
		MissingRaw: countMissingProps(pc.Features, columns),
		CRSRaw:     crsLabel,
		CRSClean:   "EPSG:4326",
	}

	// Repair pass. Failed geometries stay as records with nil geometry.
	kept := make([]ingest.RawFeature, 0, len(pc.Features))
	repaired := make([]bool, 0, len(pc.Features))
	for _, f := range pc.Features {
		fixed, wasRepaired := gc.repairFeature(f)
		f.Geometry = fixed
		kept = append(kept, f)
		repaired = append(repaired, wasRepaired)
		if wasRepaired {
			diff.InvalidFixed++
		}
	}

	if gc.dedup {
		kept, repaired = gc.dropDuplicates(kept, repaired, diff)
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, nil, eris.Wrap(err, "clean: geometry stage canceled")
	}

	proj, err := gc.selectProjection(kept)
	if err != nil {
		return nil, nil, nil, err
	}
	zap.L().Info("clean: projection selected",
		zap.String("component", "geoclean"),
		zap.String("crs", geometry.CRSLabel(proj.EPSG())),
		zap.Int("features", len(kept)),
	)

	parcels := make([]model.Parcel, len(kept))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(gc.workers)
	for i := range kept {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return gc.buildParcel(&parcels[i], kept[i], repaired[i], proj)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, eris.Wrap(err, "clean: compute surfaces")
	}

	out := make([]ingest.RawFeature, len(kept))
	for i, f := range kept {
		props := make(map[string]any, len(f.Properties)+1)
		for k, v := range f.Properties {
			props[k] = v
		}
		if parcels[i].SurfaceCalculeeHa != nil {
			props["surface_calculee_ha"] = *parcels[i].SurfaceCalculeeHa
		} else {
			props["surface_calculee_ha"] = nil
			diff.GeometryFailures++
		}
		out[i] = ingest.RawFeature{Index: i, Properties: props, Geometry: f.Geometry}
	}

	diff.RowsClean = len(out)
	cleanAttrs := append(append([]string(nil), columns...), "surface_calculee_ha")
	diff.ColumnsClean = append(append([]string(nil), cleanAttrs...), "geometry")
	diff.MissingClean = countMissingProps(out, cleanAttrs)

	if diff.GeometryFailures > 0 {
		zap.L().Warn("clean: parcels without usable geometry",
			zap.String("component", "geoclean"),
			zap.Int("count", diff.GeometryFailures),
		)
	}
	return parcels, out, diff, nil
}

// repairFeature validates one feature's geometry, repairing when it can.
// A nil return means the record keeps a null surface.
func (gc *GeoCleaner) repairFeature(f ingest.RawFeature) (fixed geom.T, wasRepaired bool) {
	id := ingest.PropString(f.Properties[gc.geo.IDColumn])
	if geometry.IsEmpty(f.Geometry) {
		geomErr := &model.GeometryError{FeatureID: id, Reason: "empty geometry"}
		zap.L().Warn("clean: geometry error", zap.String("component", "geoclean"), zap.Error(geomErr))
		return nil, false
	}
	if geometry.Validate(f.Geometry) == nil {
		return f.Geometry, false
	}
	g, _, err := geometry.Repair(f.Geometry)
	if err != nil {
		geomErr := &model.GeometryError{FeatureID: id, Reason: err.Error()}
		zap.L().Warn("clean: geometry error", zap.String("component", "geoclean"), zap.Error(geomErr))
		return nil, false
	}
	return g, true
}

// dropDuplicates removes keep-first attribute duplicates, then exact
// geometry duplicates, mirroring the snapshot dedup rules.
func (gc *GeoCleaner) dropDuplicates(features []ingest.RawFeature, repaired []bool, diff *GeoDiff) ([]ingest.RawFeature, []bool) {
	outF := features[:0]
	outR := repaired[:0]
	seenID := map[string]bool{}
	dropped := 0
	for i, f := range features {
		id := ingest.PropString(f.Properties[gc.geo.IDColumn])
		if id != "" && seenID[id] {
			dropped++
			continue
		}
		if id != "" {
			seenID[id] = true
		}
		outF = append(outF, f)
		outR = append(outR, repaired[i])
	}

	features, repaired = outF, outR
	outF = features[:0]
	outR = repaired[:0]
	seenGeom := map[string]bool{}
	for i, f := range features {
		if f.Geometry != nil {
			fp, err := geometry.Fingerprint(f.Geometry)
			if err == nil {
				if seenGeom[fp] {
					dropped++
					continue
				}
				seenGeom[fp] = true
			}
		}
		outF = append(outF, f)
		outR = append(outR, repaired[i])
	}

	if dropped > 0 {
		diff.DuplicatesRemoved = dropped
		zap.L().Info("clean: duplicate parcels dropped",
			zap.String("component", "geoclean"),
			zap.Int("count", dropped),
		)
	}
	return outF, outR
}

// selectProjection picks the UTM zone covering the mean of the feature
// bound centers, falling back to Web Mercator when no finite
// coordinates exist.
func (gc *GeoCleaner) selectProjection(features []ingest.RawFeature) (*geometry.Projector, error) {
	var sumLon, sumLat float64
	n := 0
	for _, f := range features {
		if f.Geometry == nil {
			continue
		}
		b := f.Geometry.Bounds()
		lon := (b.Min(0) + b.Max(0)) / 2
		lat := (b.Min(1) + b.Max(1)) / 2
		if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
			continue
		}
		sumLon += lon
		sumLat += lat
		n++
	}

	epsg := 3857
	if n > 0 {
		epsg = geometry.EPSGForCenter(sumLon/float64(n), sumLat/float64(n))
	}
	proj, err := geometry.NewProjector(epsg)
	if err != nil {
		return nil, eris.Wrap(err, "clean: select projection")
	}
	return proj, nil
}

// buildParcel fills one output parcel: identifiers from properties,
// fingerprint and projected surface from the geometry.
func (gc *GeoCleaner) buildParcel(p *model.Parcel, f ingest.RawFeature, wasRepaired bool, proj *geometry.Projector) error {
	p.Index = f.Index
	p.CodePlantation = ingest.PropString(f.Properties[gc.geo.IDColumn])
	p.CodeProducteur = ingest.PropString(f.Properties[gc.geo.ProducerColumn])
	p.Repaired = wasRepaired
	if f.Geometry == nil {
		return nil
	}
	p.Geometry = f.Geometry

	fp, err := geometry.Fingerprint(f.Geometry)
	if err != nil {
		return eris.Wrapf(err, "clean: fingerprint parcel %s", p.CodePlantation)
	}
	p.Fingerprint = fp

	projected, err := proj.ProjectGeom(f.Geometry)
	if err != nil {
		return eris.Wrapf(err, "clean: project parcel %s", p.CodePlantation)
	}
	p.Projected = projected
	ha := geometry.AreaHectares(geometry.Area(projected))
	p.SurfaceCalculeeHa = &ha
	return nil
}

// propertyColumns returns the sorted union of property names. Sorted
// so the audit's column lists are identical across reruns.
func propertyColumns(features []ingest.RawFeature) []string {
	seen := map[string]bool{}
	for _, f := range features {
		for k := range f.Properties {
			seen[k] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// countMissingProps counts nil or empty-string property values over the
// given columns.
func countMissingProps(features []ingest.RawFeature, columns []string) int {
	n := 0
	for _, f := range features {
		for _, col := range columns {
			v, ok := f.Properties[col]
			if !ok || v == nil {
				n++
				continue
			}
			if s, isStr := v.(string); isStr && s == "" {
				n++
			}
		}
	}
	return n
}
