package result

import (
	"sort"

	"github.com/kailas-cloud/facetdex/internal/domain/geometry"
)

// Hit is a single ranked entity.
type Hit struct {
	id       string
	score    float64
	coord    geometry.Coord
	hasCoord bool
}

// NewHit creates a hit without coordinates.
func NewHit(id string, score float64) Hit {
	return Hit{id: id, score: score}
}

// WithCoordinate returns a copy carrying the entity's stored location.
func (h Hit) WithCoordinate(c geometry.Coord) Hit {
	return Hit{id: h.id, score: h.score, coord: c, hasCoord: true}
}

// ID returns the entity identifier.
func (h Hit) ID() string { return h.id }

// Score returns the relevance score.
func (h Hit) Score() float64 { return h.score }

// Coordinate returns the stored location and whether one is present.
// Hits for entities without a stored geometry never report coordinates.
func (h Hit) Coordinate() (geometry.Coord, bool) { return h.coord, h.hasCoord }

// FacetValue is one value count within a facet field.
type FacetValue struct {
	value string
	count int64
}

// NewFacetValue creates a facet value count.
func NewFacetValue(value string, count int64) FacetValue {
	return FacetValue{value: value, count: count}
}

// Value returns the attribute value.
func (f FacetValue) Value() string { return f.value }

// Count returns the distinct-entity count.
func (f FacetValue) Count() int64 { return f.count }

// Facet holds the ranked value counts for one field.
type Facet struct {
	field  string
	values []FacetValue
}

// NewFacet sorts values into canonical order (count descending, ties by
// value ascending) and truncates to limit when limit > 0.
func NewFacet(field string, values []FacetValue, limit int) Facet {
	sorted := make([]FacetValue, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].count != sorted[j].count {
			return sorted[i].count > sorted[j].count
		}
		return sorted[i].value < sorted[j].value
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return Facet{field: field, values: sorted}
}

// Field returns the facet field name.
func (f Facet) Field() string { return f.field }

// Values returns the value counts in canonical order.
func (f Facet) Values() []FacetValue { return f.values }

// Result is a completed search: ranked hits, the distinct-entity total,
// and per-field facet counts.
type Result struct {
	hits      []Hit
	totalHits int64
	facets    []Facet
	partial   bool
}

// New creates a search result.
func New(hits []Hit, totalHits int64, facets []Facet, partial bool) Result {
	return Result{hits: hits, totalHits: totalHits, facets: facets, partial: partial}
}

// Hits returns the ranked hits.
func (r *Result) Hits() []Hit { return r.hits }

// TotalHits returns the distinct-entity match count before the hit limit.
func (r *Result) TotalHits() int64 { return r.totalHits }

// Facets returns the per-field facet counts.
func (r *Result) Facets() []Facet { return r.facets }

// Partial reports whether facet counts were computed from a capped
// candidate set.
func (r *Result) Partial() bool { return r.partial }
