package geometry

import (
	"fmt"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/kailas-cloud/facetdex/internal/domain"
)

// Parse turns a WKT literal into a validated Geometry. Accepted forms are
// POINT (lon lat) and POLYGON ((ring), (hole)*), case-insensitive and
// whitespace-tolerant. Rings must hold at least 4 pairs and close exactly
// (first pair equals last pair). Any other geometry type, malformed syntax,
// or out-of-range coordinate fails with domain.ErrInvalidGeometry.
func Parse(text string) (Geometry, error) {
	normalized := strings.ToUpper(strings.TrimSpace(text))
	if normalized == "" {
		return Geometry{}, fmt.Errorf("%w: empty literal", domain.ErrInvalidGeometry)
	}

	g, err := wkt.Unmarshal(normalized)
	if err != nil {
		return Geometry{}, fmt.Errorf("%w: %v", domain.ErrInvalidGeometry, err)
	}

	switch t := g.(type) {
	case *geom.Point:
		return pointFromGeom(t)
	case *geom.Polygon:
		return polygonFromGeom(t)
	default:
		return Geometry{}, fmt.Errorf("%w: unsupported geometry type %T", domain.ErrInvalidGeometry, g)
	}
}

func pointFromGeom(p *geom.Point) (Geometry, error) {
	if p.Layout() != geom.XY {
		return Geometry{}, fmt.Errorf("%w: only 2D points are supported", domain.ErrInvalidGeometry)
	}
	return NewPoint(p.X(), p.Y())
}

func polygonFromGeom(p *geom.Polygon) (Geometry, error) {
	if p.Layout() != geom.XY {
		return Geometry{}, fmt.Errorf("%w: only 2D polygons are supported", domain.ErrInvalidGeometry)
	}
	if p.NumLinearRings() == 0 {
		return Geometry{}, fmt.Errorf("%w: polygon without rings", domain.ErrInvalidGeometry)
	}

	ring := coordsFromRing(p.LinearRing(0))
	holes := make([][]Coord, 0, p.NumLinearRings()-1)
	for i := 1; i < p.NumLinearRings(); i++ {
		holes = append(holes, coordsFromRing(p.LinearRing(i)))
	}

	return NewPolygon(ring, holes...)
}

func coordsFromRing(r *geom.LinearRing) []Coord {
	coords := make([]Coord, r.NumCoords())
	for i := 0; i < r.NumCoords(); i++ {
		c := r.Coord(i)
		coords[i] = Coord{Lon: c.X(), Lat: c.Y()}
	}
	return coords
}

// validateRing enforces the closed-ring contract: at least 4 pairs and an
// exact first/last match, with every coordinate in range.
func validateRing(ring []Coord) error {
	if len(ring) < 4 {
		return fmt.Errorf("%w: ring has %d points, need at least 4", domain.ErrInvalidGeometry, len(ring))
	}
	first, last := ring[0], ring[len(ring)-1]
	if first.Lon != last.Lon || first.Lat != last.Lat {
		return fmt.Errorf("%w: ring is not closed (first %g %g, last %g %g)",
			domain.ErrInvalidGeometry, first.Lon, first.Lat, last.Lon, last.Lat)
	}
	for _, c := range ring {
		if !ValidateCoordinates(c.Lat, c.Lon) {
			return newCoordRangeError(c.Lon, c.Lat)
		}
	}
	return nil
}

func newCoordRangeError(lon, lat float64) error {
	return fmt.Errorf("%w: coordinates out of range (lon %g, lat %g)",
		domain.ErrInvalidGeometry, lon, lat)
}
