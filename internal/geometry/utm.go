package geometry

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// WGS84 ellipsoid and transverse Mercator constants.
const (
	semiMajorAxis = 6378137.0
	flattening    = 1 / 298.257223563
	scaleFactor   = 0.9996
	falseEasting  = 500000.0
	falseNorthing = 10000000.0

	webMercatorEPSG = 3857
)

// ZoneForLon returns the UTM zone containing a longitude, clamped to
// the valid 1..60 range.
func ZoneForLon(lon float64) int {
	zone := int((lon+180)/6) + 1
	if zone < 1 {
		zone = 1
	}
	if zone > 60 {
		zone = 60
	}
	return zone
}

// EPSGForCenter returns the UTM EPSG code whose zone covers the given
// lon/lat center: 326xx north of the equator, 327xx south.
func EPSGForCenter(lon, lat float64) int {
	zone := ZoneForLon(lon)
	if lat >= 0 {
		return 32600 + zone
	}
	return 32700 + zone
}

// CRSLabel renders an EPSG code the way GIS tooling names it.
func CRSLabel(epsg int) string {
	return fmt.Sprintf("EPSG:%d", epsg)
}

// Projector converts EPSG:4326 lon/lat coordinates into a planar CRS
// measured in meters. UTM zones and Web Mercator are supported; Web
// Mercator is the fallback when no zone can be determined.
type Projector struct {
	epsg        int
	lon0        float64 // central meridian in radians
	south       bool
	webMercator bool
}

// NewProjector builds a projector for a UTM (EPSG 32601-32660,
// 32701-32760) or Web Mercator (EPSG 3857) code.
func NewProjector(epsg int) (*Projector, error) {
	if epsg == webMercatorEPSG {
		return &Projector{epsg: epsg, webMercator: true}, nil
	}
	var zone int
	var south bool
	switch {
	case epsg >= 32601 && epsg <= 32660:
		zone = epsg - 32600
	case epsg >= 32701 && epsg <= 32760:
		zone = epsg - 32700
		south = true
	default:
		return nil, eris.Errorf("geometry: unsupported projection EPSG:%d", epsg)
	}
	lon0 := float64((zone-1)*6-180+3) * math.Pi / 180
	return &Projector{epsg: epsg, lon0: lon0, south: south}, nil
}

// EPSG returns the projector's target CRS code.
func (p *Projector) EPSG() int {
	return p.epsg
}

// Project converts one lon/lat pair (degrees) to planar x/y meters.
func (p *Projector) Project(lon, lat float64) (x, y float64) {
	if p.webMercator {
		lam := lon * math.Pi / 180
		phi := lat * math.Pi / 180
		return semiMajorAxis * lam, semiMajorAxis * math.Log(math.Tan(math.Pi/4+phi/2))
	}
	return p.transverseMercator(lon, lat)
}

// transverseMercator is the forward ellipsoidal projection from Snyder,
// "Map Projections: A Working Manual", eq. 8-9 through 8-13.
func (p *Projector) transverseMercator(lon, lat float64) (x, y float64) {
	e2 := flattening * (2 - flattening)
	e4 := e2 * e2
	e6 := e4 * e2
	ep2 := e2 / (1 - e2)

	phi := lat * math.Pi / 180
	lam := lon * math.Pi / 180

	sinPhi := math.Sin(phi)
	cosPhi := math.Cos(phi)
	tanPhi := math.Tan(phi)

	n := semiMajorAxis / math.Sqrt(1-e2*sinPhi*sinPhi)
	t := tanPhi * tanPhi
	c := ep2 * cosPhi * cosPhi
	a := (lam - p.lon0) * cosPhi

	m := semiMajorAxis * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))

	a2 := a * a
	a3 := a2 * a
	a4 := a3 * a
	a5 := a4 * a
	a6 := a5 * a

	x = scaleFactor*n*(a+(1-t+c)*a3/6+(5-18*t+t*t+72*c-58*ep2)*a5/120) + falseEasting
	y = scaleFactor * (m + n*tanPhi*(a2/2+(5-t+9*c+4*c*c)*a4/24+(61-58*t+t*t+600*c-330*ep2)*a6/720))
	if p.south {
		y += falseNorthing
	}
	return x, y
}

// ProjectGeom returns a copy of a polygonal geometry with every
// coordinate run through the projector. The result is always XY even
// when the source carried extra dimensions.
func (p *Projector) ProjectGeom(g geom.T) (geom.T, error) {
	switch src := g.(type) {
	case *geom.Polygon:
		flat := projectFlat(p, src.FlatCoords(), src.Stride())
		return geom.NewPolygonFlat(geom.XY, flat, scaleEnds(src.Ends(), src.Stride())), nil
	case *geom.MultiPolygon:
		flat := projectFlat(p, src.FlatCoords(), src.Stride())
		endss := make([][]int, len(src.Endss()))
		for i, ends := range src.Endss() {
			endss[i] = scaleEnds(ends, src.Stride())
		}
		return geom.NewMultiPolygonFlat(geom.XY, flat, endss), nil
	default:
		return nil, eris.Errorf("geometry: cannot project %T", g)
	}
}

func projectFlat(p *Projector, flat []float64, stride int) []float64 {
	out := make([]float64, 0, (len(flat)/stride)*2)
	for i := 0; i+1 < len(flat); i += stride {
		x, y := p.Project(flat[i], flat[i+1])
		out = append(out, x, y)
	}
	return out
}

// scaleEnds remaps ring end offsets from the source stride to XY.
func scaleEnds(ends []int, stride int) []int {
	out := make([]int, len(ends))
	for i, e := range ends {
		out[i] = e / stride * 2
	}
	return out
}
