// Package geometry implements the planar geometry the parcel pipeline
// needs: shoelace areas, UTM projection, polygon intersection, ring
// repair, and content fingerprints. Everything operates on go-geom
// types; polygons and multipolygons are the only supported inputs.
package geometry

import (
	"math"

	"github.com/twpayne/go-geom"
)

const squareMetersPerHectare = 10000.0

// ringSignedArea returns the signed shoelace area of one ring given as
// flat XY coordinates. Positive means counter-clockwise.
func ringSignedArea(flat []float64) float64 {
	n := len(flat) / 2
	if n < 3 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += flat[2*i]*flat[2*j+1] - flat[2*j]*flat[2*i+1]
	}
	return sum / 2
}

// signedRing is one ring with its contribution sign: +1 for a shell,
// -1 for a hole.
type signedRing struct {
	flat []float64
	sign float64
}

// rings flattens a polygonal geometry into signed rings. Ring 0 of each
// polygon is the shell, the rest are holes.
func rings(g geom.T) []signedRing {
	var out []signedRing
	appendPoly := func(flat []float64, ends []int) {
		start := 0
		for i, end := range ends {
			sign := 1.0
			if i > 0 {
				sign = -1.0
			}
			out = append(out, signedRing{flat: flat[start:end], sign: sign})
			start = end
		}
	}

	switch p := g.(type) {
	case *geom.Polygon:
		appendPoly(p.FlatCoords(), p.Ends())
	case *geom.MultiPolygon:
		flat := p.FlatCoords()
		start := 0
		for _, ends := range p.Endss() {
			for i, end := range ends {
				sign := 1.0
				if i > 0 {
					sign = -1.0
				}
				out = append(out, signedRing{flat: flat[start:end], sign: sign})
				start = end
			}
		}
	}
	return out
}

// Area returns the planar area of a polygonal geometry in the squared
// units of its coordinates. Holes subtract from their shell; the result
// never goes below zero.
func Area(g geom.T) float64 {
	if g == nil {
		return 0
	}
	total := 0.0
	for _, r := range rings(g) {
		total += r.sign * math.Abs(ringSignedArea(r.flat))
	}
	return math.Max(0, total)
}

// AreaHectares converts a square-meter area to hectares.
func AreaHectares(squareMeters float64) float64 {
	return squareMeters / squareMetersPerHectare
}

// Centroid returns the area-weighted centroid of a polygonal geometry.
// Degenerate geometries fall back to the bounding-box center; ok is
// false only when there are no coordinates at all.
func Centroid(g geom.T) (x, y float64, ok bool) {
	if g == nil || len(g.FlatCoords()) == 0 {
		return 0, 0, false
	}

	var cx, cy, areaSum float64
	for _, r := range rings(g) {
		n := len(r.flat) / 2
		if n < 3 {
			continue
		}
		var rx, ry float64
		for i := 0; i < n; i++ {
			j := (i + 1) % n
			x0, y0 := r.flat[2*i], r.flat[2*i+1]
			x1, y1 := r.flat[2*j], r.flat[2*j+1]
			cross := x0*y1 - x1*y0
			rx += (x0 + x1) * cross
			ry += (y0 + y1) * cross
		}
		a := ringSignedArea(r.flat)
		if a == 0 {
			continue
		}
		// rx/ry carry the ring's own orientation sign; normalize to the
		// shell/hole sign so holes pull the centroid the right way.
		scale := r.sign * math.Abs(a) / a
		cx += scale * rx / 6
		cy += scale * ry / 6
		areaSum += r.sign * math.Abs(a)
	}

	if math.Abs(areaSum) < 1e-12 {
		b := g.Bounds()
		return (b.Min(0) + b.Max(0)) / 2, (b.Min(1) + b.Max(1)) / 2, true
	}
	return cx / areaSum, cy / areaSum, true
}
