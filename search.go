package facetdex

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/facetdex/internal/domain/geometry"
	"github.com/kailas-cloud/facetdex/internal/domain/search/geofilter"
	"github.com/kailas-cloud/facetdex/internal/domain/search/request"
	"github.com/kailas-cloud/facetdex/internal/domain/search/result"
)

// SearchService executes hybrid queries against the active generation.
type SearchService struct {
	svc searchUseCase
	obs *observer
}

// SearchOptions configures a search query. Zero values fall back to
// the engine defaults; limits above the engine maximums are capped.
type SearchOptions struct {
	Geo         GeoFilter
	FacetFields []string
	Limit       int
	FacetValues int // max facet values per field
}

type geoKind string

const (
	geoKindNone        geoKind = ""
	geoKindBoundingBox geoKind = "bounding_box"
	geoKindRadius      geoKind = "radius"
	geoKindIntersects  geoKind = "intersects"
	geoKindContainedBy geoKind = "contained_by"
)

// GeoFilter is a spatial containment predicate. The zero value matches
// everything. Construct with BoundingBox, Radius, Intersects or
// ContainedBy; validation happens when the query executes.
type GeoFilter struct {
	kind geoKind

	minLon, minLat float64
	maxLon, maxLat float64

	lon, lat, meters float64

	polygon string
}

// BoundingBox keeps entities inside the axis-aligned box.
func BoundingBox(minLon, minLat, maxLon, maxLat float64) GeoFilter {
	return GeoFilter{
		kind:   geoKindBoundingBox,
		minLon: minLon, minLat: minLat,
		maxLon: maxLon, maxLat: maxLat,
	}
}

// Radius keeps entities within meters of the center point.
func Radius(lon, lat, meters float64) GeoFilter {
	return GeoFilter{kind: geoKindRadius, lon: lon, lat: lat, meters: meters}
}

// Intersects keeps entities whose geometry intersects the WKT polygon.
func Intersects(polygonWKT string) GeoFilter {
	return GeoFilter{kind: geoKindIntersects, polygon: polygonWKT}
}

// ContainedBy keeps entities whose geometry lies inside the WKT polygon.
func ContainedBy(polygonWKT string) GeoFilter {
	return GeoFilter{kind: geoKindContainedBy, polygon: polygonWKT}
}

// Query executes a hybrid search. Empty text with a zero GeoFilter is
// an open query over the whole index (facet browsing).
func (s *SearchService) Query(ctx context.Context, text string, opts *SearchOptions) (_ SearchResponse, err error) {
	start := time.Now()
	defer func() { s.obs.observe("search.query", start, err) }()

	if opts == nil {
		opts = &SearchOptions{}
	}

	geo, err := toInternalGeo(opts.Geo)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("query: %w", err)
	}

	req, err := request.New(text, geo, opts.FacetFields, opts.Limit, opts.FacetValues)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("query: %w", err)
	}

	res, err := s.svc.Search(ctx, &req)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("query: %w", err)
	}
	return fromInternalResult(&res), nil
}

func toInternalGeo(g GeoFilter) (geofilter.Filter, error) {
	switch g.kind {
	case geoKindNone:
		return geofilter.None(), nil
	case geoKindBoundingBox:
		return geofilter.NewBoundingBox(g.minLon, g.minLat, g.maxLon, g.maxLat)
	case geoKindRadius:
		return geofilter.NewRadius(g.lon, g.lat, g.meters)
	case geoKindIntersects, geoKindContainedBy:
		shape, err := geometry.Parse(g.polygon)
		if err != nil {
			return geofilter.Filter{}, fmt.Errorf("parse polygon: %w", err)
		}
		if g.kind == geoKindIntersects {
			return geofilter.NewIntersects(shape)
		}
		return geofilter.NewContainedBy(shape)
	default:
		return geofilter.Filter{}, fmt.Errorf("unknown geo filter kind %q", g.kind)
	}
}

func fromInternalResult(res *result.Result) SearchResponse {
	hits := make([]SearchHit, len(res.Hits()))
	for i, h := range res.Hits() {
		hits[i] = SearchHit{ID: h.ID(), Score: h.Score()}
		if c, ok := h.Coordinate(); ok {
			hits[i].Coord = &Coordinate{Lon: c.Lon, Lat: c.Lat}
		}
	}

	var facets map[string][]FacetCount
	if len(res.Facets()) > 0 {
		facets = make(map[string][]FacetCount, len(res.Facets()))
		for _, f := range res.Facets() {
			values := make([]FacetCount, len(f.Values()))
			for j, v := range f.Values() {
				values[j] = FacetCount{Value: v.Value(), Count: v.Count()}
			}
			facets[f.Field()] = values
		}
	}

	return SearchResponse{
		Hits:      hits,
		TotalHits: res.TotalHits(),
		Facets:    facets,
		Partial:   res.Partial(),
	}
}
