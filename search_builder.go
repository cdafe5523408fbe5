package facetdex

import (
	"context"
	"errors"
	"fmt"
)

// Hit is a typed search result.
type Hit[T any] struct {
	Item  T
	Score float64
}

// TypedResult carries typed hits and facet distributions.
type TypedResult[T any] struct {
	Hits      []Hit[T]
	TotalHits int64
	Facets    map[string][]FacetCount
	Partial   bool
}

// SearchBuilder is a fluent builder for typed search queries.
type SearchBuilder[T any] struct {
	idx *TypedIndex[T]

	query string
	geo   GeoFilter

	// Radius composition: Near sets the center, Meters/Km the radius.
	nearSet          bool
	lon, lat, meters float64

	facetFields []string
	limit       int
	facetValues int
	hydrate     bool
}

// Query sets the text relevance predicate.
func (b *SearchBuilder[T]) Query(q string) *SearchBuilder[T] {
	b.query = q
	return b
}

// Within keeps hits inside the axis-aligned bounding box.
func (b *SearchBuilder[T]) Within(minLon, minLat, maxLon, maxLat float64) *SearchBuilder[T] {
	b.geo = BoundingBox(minLon, minLat, maxLon, maxLat)
	return b
}

// Near sets the center point for a radius search. Combine with Meters
// or Km.
func (b *SearchBuilder[T]) Near(lon, lat float64) *SearchBuilder[T] {
	b.nearSet = true
	b.lon, b.lat = lon, lat
	return b
}

// Meters sets the search radius in meters.
func (b *SearchBuilder[T]) Meters(r float64) *SearchBuilder[T] {
	b.meters = r
	return b
}

// Km sets the search radius in kilometers.
func (b *SearchBuilder[T]) Km(r float64) *SearchBuilder[T] {
	b.meters = r * 1000
	return b
}

// Inside keeps hits whose geometry lies inside the WKT polygon.
func (b *SearchBuilder[T]) Inside(polygonWKT string) *SearchBuilder[T] {
	b.geo = ContainedBy(polygonWKT)
	return b
}

// Intersecting keeps hits whose geometry intersects the WKT polygon.
func (b *SearchBuilder[T]) Intersecting(polygonWKT string) *SearchBuilder[T] {
	b.geo = Intersects(polygonWKT)
	return b
}

// Facet requests value counts for the given facet fields.
func (b *SearchBuilder[T]) Facet(fields ...string) *SearchBuilder[T] {
	b.facetFields = append(b.facetFields, fields...)
	return b
}

// Limit sets the maximum number of hits.
func (b *SearchBuilder[T]) Limit(n int) *SearchBuilder[T] {
	b.limit = n
	return b
}

// FacetValues sets the maximum number of values per facet field.
func (b *SearchBuilder[T]) FacetValues(n int) *SearchBuilder[T] {
	b.facetValues = n
	return b
}

// Fetch hydrates every hit with the full entity attributes (one Get
// per hit). Without it hits carry only the ID and stored coordinates.
func (b *SearchBuilder[T]) Fetch() *SearchBuilder[T] {
	b.hydrate = true
	return b
}

// Do executes the search and returns typed results.
func (b *SearchBuilder[T]) Do(ctx context.Context) (TypedResult[T], error) {
	geo := b.geo
	if b.nearSet {
		if !geo.isNone() {
			return TypedResult[T]{}, errors.New("search: radius combined with another geo filter")
		}
		geo = Radius(b.lon, b.lat, b.meters)
	}

	res, err := b.idx.client.Search().Query(ctx, b.query, &SearchOptions{
		Geo:         geo,
		FacetFields: b.facetFields,
		Limit:       b.limit,
		FacetValues: b.facetValues,
	})
	if err != nil {
		return TypedResult[T]{}, fmt.Errorf("search: %w", err)
	}

	hits, err := b.toHits(ctx, res.Hits)
	if err != nil {
		return TypedResult[T]{}, err
	}
	return TypedResult[T]{
		Hits:      hits,
		TotalHits: res.TotalHits,
		Facets:    res.Facets,
		Partial:   res.Partial,
	}, nil
}

func (b *SearchBuilder[T]) toHits(ctx context.Context, results []SearchHit) ([]Hit[T], error) {
	hits := make([]Hit[T], len(results))
	for i, r := range results {
		item, err := b.item(ctx, r)
		if err != nil {
			return nil, err
		}
		hits[i] = Hit[T]{Item: item, Score: r.Score}
	}
	return hits, nil
}

// item reconstructs one hit. Hydration misses (entity deleted between
// search and fetch) fall back to the thin form.
func (b *SearchBuilder[T]) item(ctx context.Context, r SearchHit) (T, error) {
	var zero T
	if b.hydrate {
		ent, err := b.idx.client.Entities().Get(ctx, r.ID)
		if err == nil {
			item, ok := b.idx.meta.fromEntity(ent).(T)
			if !ok {
				return zero, fmt.Errorf("fetch %q: type assertion failed", r.ID)
			}
			return item, nil
		}
		if !errors.Is(err, ErrEntityNotFound) {
			return zero, fmt.Errorf("fetch %q: %w", r.ID, err)
		}
	}
	item, ok := b.idx.meta.itemFromHit(r).(T)
	if !ok {
		return zero, fmt.Errorf("hit %q: type assertion failed", r.ID)
	}
	return item, nil
}

func (g GeoFilter) isNone() bool { return g.kind == geoKindNone }
