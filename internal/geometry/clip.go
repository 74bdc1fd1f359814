package geometry

import (
	"math"

	"github.com/twpayne/go-geom"
)

// IntersectionArea returns the overlap area of two polygonal geometries
// in the squared units of their coordinates. Holes participate with
// inclusion-exclusion, so the result is the area of the true point-set
// intersection. Zero means disjoint or merely touching.
func IntersectionArea(a, b geom.T) float64 {
	if a == nil || b == nil {
		return 0
	}
	ringsA := rings(a)
	ringsB := rings(b)

	total := 0.0
	for _, ra := range ringsA {
		for _, rb := range ringsB {
			inter := ringIntersectionArea(ra.flat, rb.flat)
			total += ra.sign * rb.sign * inter
		}
	}
	return math.Max(0, total)
}

// ringIntersectionArea computes |a ∩ b| for two simple rings by
// triangulating both and summing pairwise triangle overlaps. Triangle
// against triangle is a convex clip, which Sutherland-Hodgman handles
// exactly.
func ringIntersectionArea(a, b []float64) float64 {
	trisA := triangulate(a)
	if len(trisA) == 0 {
		return 0
	}
	trisB := triangulate(b)
	if len(trisB) == 0 {
		return 0
	}

	total := 0.0
	for _, ta := range trisA {
		minXA, minYA, maxXA, maxYA := triBounds(ta)
		for _, tb := range trisB {
			minXB, minYB, maxXB, maxYB := triBounds(tb)
			if minXA > maxXB || minXB > maxXA || minYA > maxYB || minYB > maxYA {
				continue
			}
			clipped := clipConvex(ta[:], tb)
			total += math.Abs(ringSignedArea(clipped))
		}
	}
	return total
}

func triBounds(t [6]float64) (minX, minY, maxX, maxY float64) {
	minX, maxX = t[0], t[0]
	minY, maxY = t[1], t[1]
	for i := 2; i < 6; i += 2 {
		minX = math.Min(minX, t[i])
		maxX = math.Max(maxX, t[i])
		minY = math.Min(minY, t[i+1])
		maxY = math.Max(maxY, t[i+1])
	}
	return minX, minY, maxX, maxY
}

// clipConvex clips a subject ring against one counter-clockwise convex
// clip ring using Sutherland-Hodgman. Both are flat XY slices; the clip
// ring must be convex for the result to be exact.
func clipConvex(subject []float64, clip [6]float64) []float64 {
	out := append([]float64(nil), subject...)
	// Normalize clip orientation so "inside" is always to the left.
	if ringSignedArea(clip[:]) < 0 {
		clip[0], clip[1], clip[4], clip[5] = clip[4], clip[5], clip[0], clip[1]
	}

	n := len(clip) / 2
	for i := 0; i < n && len(out) >= 6; i++ {
		j := (i + 1) % n
		ex0, ey0 := clip[2*i], clip[2*i+1]
		ex1, ey1 := clip[2*j], clip[2*j+1]
		out = clipAgainstEdge(out, ex0, ey0, ex1, ey1)
	}
	if len(out) < 6 {
		return nil
	}
	return out
}

// clipAgainstEdge keeps the part of the subject on the left of the
// directed edge (x0,y0)->(x1,y1).
func clipAgainstEdge(subject []float64, x0, y0, x1, y1 float64) []float64 {
	inside := func(px, py float64) bool {
		return (x1-x0)*(py-y0)-(y1-y0)*(px-x0) >= 0
	}
	intersect := func(ax, ay, bx, by float64) (float64, float64) {
		dx, dy := bx-ax, by-ay
		ex, ey := x1-x0, y1-y0
		denom := ex*dy - ey*dx
		if denom == 0 {
			return bx, by
		}
		t := (ex*(ay-y0) - ey*(ax-x0)) / denom
		return ax + t*dx, ay + t*dy
	}

	var out []float64
	n := len(subject) / 2
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		ax, ay := subject[2*i], subject[2*i+1]
		bx, by := subject[2*j], subject[2*j+1]
		aIn, bIn := inside(ax, ay), inside(bx, by)
		switch {
		case aIn && bIn:
			out = append(out, bx, by)
		case aIn && !bIn:
			ix, iy := intersect(ax, ay, bx, by)
			out = append(out, ix, iy)
		case !aIn && bIn:
			ix, iy := intersect(ax, ay, bx, by)
			out = append(out, ix, iy, bx, by)
		}
	}
	return out
}

// triangulate decomposes a simple ring into triangles by ear clipping.
// The ring may be open or closed and in either orientation. Degenerate
// rings yield nil.
func triangulate(flat []float64) [][6]float64 {
	verts := openRing(flat)
	n := len(verts) / 2
	if n < 3 {
		return nil
	}
	if ringSignedArea(verts) < 0 {
		verts = reverseRing(verts)
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	var tris [][6]float64
	guard := 0
	for len(idx) > 3 && guard < n*n {
		guard++
		clipped := false
		for i := 0; i < len(idx); i++ {
			prev := idx[(i+len(idx)-1)%len(idx)]
			cur := idx[i]
			next := idx[(i+1)%len(idx)]
			if !isEar(verts, idx, prev, cur, next) {
				continue
			}
			tris = append(tris, [6]float64{
				verts[2*prev], verts[2*prev+1],
				verts[2*cur], verts[2*cur+1],
				verts[2*next], verts[2*next+1],
			})
			idx = append(idx[:i], idx[i+1:]...)
			clipped = true
			break
		}
		if !clipped {
			// No ear found: the ring is degenerate or self-touching.
			// Drop the most collinear vertex and keep going.
			worst, worstCross := 0, math.Inf(1)
			for i := 0; i < len(idx); i++ {
				prev := idx[(i+len(idx)-1)%len(idx)]
				cur := idx[i]
				next := idx[(i+1)%len(idx)]
				c := math.Abs(cross(verts, prev, cur, next))
				if c < worstCross {
					worst, worstCross = i, c
				}
			}
			idx = append(idx[:worst], idx[worst+1:]...)
		}
	}
	if len(idx) == 3 {
		tris = append(tris, [6]float64{
			verts[2*idx[0]], verts[2*idx[0]+1],
			verts[2*idx[1]], verts[2*idx[1]+1],
			verts[2*idx[2]], verts[2*idx[2]+1],
		})
	}
	return tris
}

// isEar reports whether cur is a convex vertex whose triangle contains
// no other remaining vertex.
func isEar(verts []float64, idx []int, prev, cur, next int) bool {
	if cross(verts, prev, cur, next) <= 0 {
		return false
	}
	ax, ay := verts[2*prev], verts[2*prev+1]
	bx, by := verts[2*cur], verts[2*cur+1]
	cx, cy := verts[2*next], verts[2*next+1]
	for _, k := range idx {
		if k == prev || k == cur || k == next {
			continue
		}
		if pointInTriangle(verts[2*k], verts[2*k+1], ax, ay, bx, by, cx, cy) {
			return false
		}
	}
	return true
}

func cross(verts []float64, a, b, c int) float64 {
	return (verts[2*b]-verts[2*a])*(verts[2*c+1]-verts[2*a+1]) -
		(verts[2*b+1]-verts[2*a+1])*(verts[2*c]-verts[2*a])
}

func pointInTriangle(px, py, ax, ay, bx, by, cx, cy float64) bool {
	d1 := (px-bx)*(ay-by) - (ax-bx)*(py-by)
	d2 := (px-cx)*(by-cy) - (bx-cx)*(py-cy)
	d3 := (px-ax)*(cy-ay) - (cx-ax)*(py-ay)
	hasNeg := d1 < 0 || d2 < 0 || d3 < 0
	hasPos := d1 > 0 || d2 > 0 || d3 > 0
	return !(hasNeg && hasPos)
}

// openRing strips a closing vertex that repeats the first one.
func openRing(flat []float64) []float64 {
	n := len(flat) / 2
	if n >= 2 && flat[0] == flat[2*(n-1)] && flat[1] == flat[2*(n-1)+1] {
		return flat[:2*(n-1)]
	}
	return flat
}

func reverseRing(flat []float64) []float64 {
	n := len(flat) / 2
	out := make([]float64, len(flat))
	for i := 0; i < n; i++ {
		out[2*i] = flat[2*(n-1-i)]
		out[2*i+1] = flat[2*(n-1-i)+1]
	}
	return out
}
