package geometry

import (
	"math"
	"strconv"
	"strings"
)

// EarthRadiusMeters is the mean radius of Earth used for Haversine distance.
const EarthRadiusMeters = 6_371_000.0

// Kind discriminates the geometry variants.
type Kind string

// Geometry kinds.
const (
	KindPoint   Kind = "point"
	KindPolygon Kind = "polygon"
)

// Coord is a lon/lat pair in degrees.
type Coord struct {
	Lon float64
	Lat float64
}

// Geometry is a validated point or simple polygon (immutable value object).
// Polygon rings are closed (first == last) and hold at least 4 pairs;
// groups after the first ring are interior holes.
type Geometry struct {
	kind  Kind
	point Coord
	ring  []Coord
	holes [][]Coord
}

// NewPoint validates and creates a point geometry.
func NewPoint(lon, lat float64) (Geometry, error) {
	if !ValidateCoordinates(lat, lon) {
		return Geometry{}, newCoordRangeError(lon, lat)
	}
	return Geometry{kind: KindPoint, point: Coord{Lon: lon, Lat: lat}}, nil
}

// NewPolygon validates and creates a polygon geometry from a closed outer
// ring and optional interior holes.
func NewPolygon(ring []Coord, holes ...[]Coord) (Geometry, error) {
	if err := validateRing(ring); err != nil {
		return Geometry{}, err
	}
	for _, h := range holes {
		if err := validateRing(h); err != nil {
			return Geometry{}, err
		}
	}
	return Geometry{kind: KindPolygon, ring: ring, holes: holes}, nil
}

// Kind returns the geometry variant.
func (g Geometry) Kind() Kind { return g.kind }

// IsPoint reports whether the geometry is a point.
func (g Geometry) IsPoint() bool { return g.kind == KindPoint }

// IsPolygon reports whether the geometry is a polygon.
func (g Geometry) IsPolygon() bool { return g.kind == KindPolygon }

// Point returns the point coordinate. Zero value for polygons.
func (g Geometry) Point() Coord { return g.point }

// Ring returns the closed outer ring. Nil for points.
func (g Geometry) Ring() []Coord { return g.ring }

// Holes returns the interior rings. Nil for points.
func (g Geometry) Holes() [][]Coord { return g.holes }

// WKT re-emits the geometry as a canonical WKT literal.
func (g Geometry) WKT() string {
	var b strings.Builder
	switch g.kind {
	case KindPoint:
		b.WriteString("POINT (")
		writeCoord(&b, g.point)
		b.WriteString(")")
	case KindPolygon:
		b.WriteString("POLYGON (")
		writeRing(&b, g.ring)
		for _, h := range g.holes {
			b.WriteString(", ")
			writeRing(&b, h)
		}
		b.WriteString(")")
	}
	return b.String()
}

func writeRing(b *strings.Builder, ring []Coord) {
	b.WriteString("(")
	for i, c := range ring {
		if i > 0 {
			b.WriteString(", ")
		}
		writeCoord(b, c)
	}
	b.WriteString(")")
}

func writeCoord(b *strings.Builder, c Coord) {
	b.WriteString(strconv.FormatFloat(c.Lon, 'g', -1, 64))
	b.WriteString(" ")
	b.WriteString(strconv.FormatFloat(c.Lat, 'g', -1, 64))
}

// ValidateCoordinates checks that latitude is in [-90,90] and longitude in [-180,180].
func ValidateCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Haversine returns the great-circle distance in meters between two points
// specified by latitude and longitude in degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1r := lat1 * math.Pi / 180
	lat2r := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}
