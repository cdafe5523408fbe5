package geofilter

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/geometry"
)

// Kind discriminates the spatial predicate variants.
type Kind string

// Spatial predicate kinds.
const (
	KindNone        Kind = "none"
	KindBoundingBox Kind = "bounding_box"
	KindRadius      Kind = "radius"
	KindIntersects  Kind = "intersects"
	KindContainedBy Kind = "contained_by"
)

// Box is a lon/lat axis-aligned rectangle in degrees.
type Box struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// WKT renders the box as a closed counter-clockwise polygon ring.
func (b Box) WKT() string {
	var sb strings.Builder
	sb.WriteString("POLYGON ((")
	writePair(&sb, b.MinLon, b.MinLat)
	sb.WriteString(", ")
	writePair(&sb, b.MaxLon, b.MinLat)
	sb.WriteString(", ")
	writePair(&sb, b.MaxLon, b.MaxLat)
	sb.WriteString(", ")
	writePair(&sb, b.MinLon, b.MaxLat)
	sb.WriteString(", ")
	writePair(&sb, b.MinLon, b.MinLat)
	sb.WriteString("))")
	return sb.String()
}

func writePair(sb *strings.Builder, lon, lat float64) {
	sb.WriteString(strconv.FormatFloat(lon, 'g', -1, 64))
	sb.WriteString(" ")
	sb.WriteString(strconv.FormatFloat(lat, 'g', -1, 64))
}

// Circle is a center point with a radius in meters.
type Circle struct {
	Lon    float64
	Lat    float64
	Meters float64
}

// Filter is a spatial containment predicate (immutable value object).
// The zero value matches everything.
type Filter struct {
	kind   Kind
	box    Box
	circle Circle
	shape  geometry.Geometry
}

// None returns the empty filter.
func None() Filter {
	return Filter{kind: KindNone}
}

// NewBoundingBox validates and creates a rectangle filter.
// Corners must be within coordinate range and min <= max on both axes;
// boxes never wrap the antimeridian.
func NewBoundingBox(minLon, minLat, maxLon, maxLat float64) (Filter, error) {
	if !geometry.ValidateCoordinates(minLat, minLon) || !geometry.ValidateCoordinates(maxLat, maxLon) {
		return Filter{}, fmt.Errorf("%w: bounding box corner out of range", domain.ErrInvalidGeometry)
	}
	if minLon > maxLon {
		return Filter{}, fmt.Errorf("%w: bounding box min_lon %v exceeds max_lon %v", domain.ErrInvalidGeometry, minLon, maxLon)
	}
	if minLat > maxLat {
		return Filter{}, fmt.Errorf("%w: bounding box min_lat %v exceeds max_lat %v", domain.ErrInvalidGeometry, minLat, maxLat)
	}
	return Filter{kind: KindBoundingBox, box: Box{MinLon: minLon, MinLat: minLat, MaxLon: maxLon, MaxLat: maxLat}}, nil
}

// NewRadius validates and creates a distance filter around a center point.
func NewRadius(lon, lat, meters float64) (Filter, error) {
	if !geometry.ValidateCoordinates(lat, lon) {
		return Filter{}, fmt.Errorf("%w: radius center out of range", domain.ErrInvalidGeometry)
	}
	if math.IsNaN(meters) || math.IsInf(meters, 0) || meters <= 0 {
		return Filter{}, fmt.Errorf("%w: radius must be a positive distance in meters", domain.ErrInvalidGeometry)
	}
	return Filter{kind: KindRadius, circle: Circle{Lon: lon, Lat: lat, Meters: meters}}, nil
}

// NewIntersects creates a filter matching entities whose geometry
// intersects the given polygon.
func NewIntersects(shape geometry.Geometry) (Filter, error) {
	if !shape.IsPolygon() {
		return Filter{}, fmt.Errorf("%w: intersects filter requires a polygon", domain.ErrInvalidGeometry)
	}
	return Filter{kind: KindIntersects, shape: shape}, nil
}

// NewContainedBy creates a filter matching entities whose geometry lies
// entirely within the given polygon.
func NewContainedBy(shape geometry.Geometry) (Filter, error) {
	if !shape.IsPolygon() {
		return Filter{}, fmt.Errorf("%w: contained_by filter requires a polygon", domain.ErrInvalidGeometry)
	}
	return Filter{kind: KindContainedBy, shape: shape}, nil
}

// Kind returns the predicate variant.
func (f Filter) Kind() Kind {
	if f.kind == "" {
		return KindNone
	}
	return f.kind
}

// IsNone reports whether the filter is empty.
func (f Filter) IsNone() bool { return f.Kind() == KindNone }

// Box returns the rectangle. Zero value for other kinds.
func (f Filter) Box() Box { return f.box }

// Circle returns the center and radius. Zero value for other kinds.
func (f Filter) Circle() Circle { return f.circle }

// Shape returns the query polygon. Zero value for non-polygon kinds.
func (f Filter) Shape() geometry.Geometry { return f.shape }
