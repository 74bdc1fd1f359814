package geometry

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// IsEmpty reports whether a geometry is nil or carries no coordinates.
func IsEmpty(g geom.T) bool {
	return g == nil || len(g.FlatCoords()) == 0
}

// Validate returns nil when g is a usable polygonal geometry: a polygon
// or multipolygon whose rings are closed, have at least four vertices,
// enclose a nonzero area, and do not self-intersect.
func Validate(g geom.T) error {
	switch g.(type) {
	case *geom.Polygon, *geom.MultiPolygon:
	default:
		return eris.Errorf("geometry: unsupported type %T", g)
	}
	if IsEmpty(g) {
		return eris.New("geometry: empty geometry")
	}
	for _, r := range rings(g) {
		if err := validateRing(r.flat); err != nil {
			return err
		}
	}
	if Area(g) <= 0 {
		return eris.New("geometry: zero area")
	}
	return nil
}

func validateRing(flat []float64) error {
	n := len(flat) / 2
	if n < 4 {
		return eris.Errorf("geometry: ring has %d vertices, need at least 4", n)
	}
	if flat[0] != flat[2*(n-1)] || flat[1] != flat[2*(n-1)+1] {
		return eris.New("geometry: ring is not closed")
	}
	if math.Abs(ringSignedArea(openRing(flat))) == 0 {
		return eris.New("geometry: degenerate ring")
	}
	if ringSelfIntersects(openRing(flat)) {
		return eris.New("geometry: self-intersecting ring")
	}
	return nil
}

// Repair returns a cleaned copy of g: consecutive duplicate vertices
// dropped, rings closed, and degenerate rings removed. repaired reports
// whether anything changed. Geometries that stay invalid after cleaning
// return an error; callers keep the record but lose the surface.
func Repair(g geom.T) (geom.T, bool, error) {
	if IsEmpty(g) {
		return nil, false, eris.New("geometry: empty geometry")
	}

	var fixed geom.T
	repaired := false
	switch src := g.(type) {
	case *geom.Polygon:
		flat, ends, changed := repairPolygon(src.FlatCoords(), src.Ends(), src.Stride())
		if len(ends) == 0 {
			return nil, false, eris.New("geometry: no usable ring after repair")
		}
		fixed = geom.NewPolygonFlat(geom.XY, flat, ends)
		repaired = changed
	case *geom.MultiPolygon:
		var flat []float64
		var endss [][]int
		changed := false
		srcFlat := src.FlatCoords()
		start := 0
		for _, ends := range src.Endss() {
			end := start
			if len(ends) > 0 {
				end = ends[len(ends)-1]
			}
			localEnds := make([]int, len(ends))
			for i, e := range ends {
				localEnds[i] = e - start
			}
			pFlat, pEnds, pChanged := repairPolygon(srcFlat[start:end], localEnds, src.Stride())
			changed = changed || pChanged
			if len(pEnds) == 0 {
				changed = true
				start = end
				continue
			}
			offset := len(flat)
			flat = append(flat, pFlat...)
			for i := range pEnds {
				pEnds[i] += offset
			}
			endss = append(endss, pEnds)
			start = end
		}
		if len(endss) == 0 {
			return nil, false, eris.New("geometry: no usable ring after repair")
		}
		fixed = geom.NewMultiPolygonFlat(geom.XY, flat, endss)
		repaired = changed
	default:
		return nil, false, eris.Errorf("geometry: unsupported type %T", g)
	}

	if err := Validate(fixed); err != nil {
		return nil, false, eris.Wrap(err, "geometry: still invalid after repair")
	}
	return fixed, repaired, nil
}

// repairPolygon cleans one polygon's rings. The first surviving ring is
// the shell; a dropped shell drops the whole polygon.
func repairPolygon(flat []float64, ends []int, stride int) ([]float64, []int, bool) {
	var outFlat []float64
	var outEnds []int
	changed := stride != 2

	start := 0
	for i, end := range ends {
		ring, ringChanged := repairRing(flat[start:end], stride)
		changed = changed || ringChanged
		start = end
		if ring == nil {
			changed = true
			if i == 0 {
				return nil, nil, true
			}
			continue
		}
		outFlat = append(outFlat, ring...)
		outEnds = append(outEnds, len(outFlat))
	}
	return outFlat, outEnds, changed
}

// repairRing drops consecutive duplicates, closes the ring, and rejects
// rings that end up degenerate. nil means the ring is unusable.
func repairRing(flat []float64, stride int) ([]float64, bool) {
	changed := false
	var pts []float64
	for i := 0; i+1 < len(flat); i += stride {
		x, y := flat[i], flat[i+1]
		n := len(pts) / 2
		if n > 0 && pts[2*(n-1)] == x && pts[2*(n-1)+1] == y {
			changed = true
			continue
		}
		pts = append(pts, x, y)
	}

	n := len(pts) / 2
	// Drop a closing vertex so the degenerate checks see the open ring,
	// then close explicitly.
	if n >= 2 && pts[0] == pts[2*(n-1)] && pts[1] == pts[2*(n-1)+1] {
		pts = pts[:2*(n-1)]
		n--
	} else if n >= 3 {
		changed = true
	}
	if n < 3 {
		return nil, true
	}
	if math.Abs(ringSignedArea(pts)) == 0 {
		return nil, true
	}
	pts = append(pts, pts[0], pts[1])
	return pts, changed
}

// ringSelfIntersects runs the O(n²) proper-crossing test over an open
// ring's segments. Shared endpoints between adjacent segments do not
// count.
func ringSelfIntersects(flat []float64) bool {
	n := len(flat) / 2
	if n < 4 {
		return false
	}
	for i := 0; i < n; i++ {
		i2 := (i + 1) % n
		for j := i + 1; j < n; j++ {
			j2 := (j + 1) % n
			if i == j || i2 == j || i == j2 {
				continue
			}
			if segmentsCross(
				flat[2*i], flat[2*i+1], flat[2*i2], flat[2*i2+1],
				flat[2*j], flat[2*j+1], flat[2*j2], flat[2*j2+1],
			) {
				return true
			}
		}
	}
	return false
}

// segmentsCross reports a proper crossing: the segments intersect at a
// single interior point of both.
func segmentsCross(ax, ay, bx, by, cx, cy, dx, dy float64) bool {
	d1 := orient(cx, cy, dx, dy, ax, ay)
	d2 := orient(cx, cy, dx, dy, bx, by)
	d3 := orient(ax, ay, bx, by, cx, cy)
	d4 := orient(ax, ay, bx, by, dx, dy)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func orient(ax, ay, bx, by, px, py float64) float64 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}
