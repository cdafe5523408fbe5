package geofilter

import (
	"errors"
	"math"
	"testing"

	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/geometry"
)

func TestNone(t *testing.T) {
	f := None()
	if !f.IsNone() {
		t.Error("None() should be empty")
	}
	if f.Kind() != KindNone {
		t.Errorf("Kind() = %q", f.Kind())
	}
}

func TestZeroValueIsNone(t *testing.T) {
	var f Filter
	if !f.IsNone() {
		t.Error("zero Filter should be empty")
	}
	if f.Kind() != KindNone {
		t.Errorf("Kind() = %q", f.Kind())
	}
}

func TestNewBoundingBox(t *testing.T) {
	f, err := NewBoundingBox(-122.52, 37.70, -122.35, 37.83)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Kind() != KindBoundingBox {
		t.Errorf("Kind() = %q", f.Kind())
	}
	box := f.Box()
	if box.MinLon != -122.52 || box.MaxLat != 37.83 {
		t.Errorf("Box() = %+v", box)
	}
}

func TestBox_WKT(t *testing.T) {
	f, err := NewBoundingBox(-1, -2, 3, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "POLYGON ((-1 -2, 3 -2, 3 4, -1 4, -1 -2))"
	if got := f.Box().WKT(); got != want {
		t.Errorf("WKT() = %q, want %q", got, want)
	}
}

func TestNewBoundingBox_Degenerate(t *testing.T) {
	// min == max is a zero-area box, still valid
	if _, err := NewBoundingBox(10, 20, 10, 20); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewBoundingBox_Invalid(t *testing.T) {
	tests := []struct {
		name                           string
		minLon, minLat, maxLon, maxLat float64
	}{
		{"lon out of range", -181, 0, 0, 0},
		{"lat out of range", 0, 0, 0, 91},
		{"min_lon above max_lon", 10, 0, -10, 10},
		{"min_lat above max_lat", 0, 50, 10, 40},
		{"nan corner", math.NaN(), 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBoundingBox(tt.minLon, tt.minLat, tt.maxLon, tt.maxLat)
			if !errors.Is(err, domain.ErrInvalidGeometry) {
				t.Errorf("want ErrInvalidGeometry, got %v", err)
			}
		})
	}
}

func TestNewRadius(t *testing.T) {
	f, err := NewRadius(-122.42, 37.77, 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Kind() != KindRadius {
		t.Errorf("Kind() = %q", f.Kind())
	}
	c := f.Circle()
	if c.Lon != -122.42 || c.Lat != 37.77 || c.Meters != 5000 {
		t.Errorf("Circle() = %+v", c)
	}
}

func TestNewRadius_Invalid(t *testing.T) {
	tests := []struct {
		name             string
		lon, lat, meters float64
	}{
		{"center out of range", 181, 0, 100},
		{"zero radius", 0, 0, 0},
		{"negative radius", 0, 0, -5},
		{"nan radius", 0, 0, math.NaN()},
		{"inf radius", 0, 0, math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRadius(tt.lon, tt.lat, tt.meters)
			if !errors.Is(err, domain.ErrInvalidGeometry) {
				t.Errorf("want ErrInvalidGeometry, got %v", err)
			}
		})
	}
}

func TestNewIntersects(t *testing.T) {
	poly := testPolygon(t)

	f, err := NewIntersects(poly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Kind() != KindIntersects {
		t.Errorf("Kind() = %q", f.Kind())
	}
	if !f.Shape().IsPolygon() {
		t.Error("Shape() should be a polygon")
	}
}

func TestNewContainedBy(t *testing.T) {
	f, err := NewContainedBy(testPolygon(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Kind() != KindContainedBy {
		t.Errorf("Kind() = %q", f.Kind())
	}
}

func TestPolygonKinds_RejectPoint(t *testing.T) {
	pt, err := geometry.NewPoint(1, 2)
	if err != nil {
		t.Fatalf("NewPoint: %v", err)
	}

	if _, err := NewIntersects(pt); !errors.Is(err, domain.ErrInvalidGeometry) {
		t.Errorf("NewIntersects(point): want ErrInvalidGeometry, got %v", err)
	}
	if _, err := NewContainedBy(pt); !errors.Is(err, domain.ErrInvalidGeometry) {
		t.Errorf("NewContainedBy(point): want ErrInvalidGeometry, got %v", err)
	}
}

func testPolygon(t *testing.T) geometry.Geometry {
	t.Helper()
	ring := []geometry.Coord{
		{Lon: -1, Lat: -1}, {Lon: 1, Lat: -1}, {Lon: 1, Lat: 1}, {Lon: -1, Lat: 1}, {Lon: -1, Lat: -1},
	}
	poly, err := geometry.NewPolygon(ring)
	if err != nil {
		t.Fatalf("NewPolygon: %v", err)
	}
	return poly
}
