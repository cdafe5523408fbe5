package request

import (
	"fmt"

	"github.com/kailas-cloud/facetdex/internal/domain/search/geofilter"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	DefaultLimit   = 20
	MaxLimit       = 500
	// DefaultFacetValues is the per-field facet value cap when the
	// request does not set one.
	DefaultFacetValues = 10
	MaxFacetValues     = 1000
	MaxFacetFields     = 32
)

// Request is a validated search query: an optional relevance clause, an
// optional spatial clause, and the facet fields to aggregate over the
// matched entities. Both clauses empty means match-all (open facets).
type Request struct {
	query       string
	geo         geofilter.Filter
	facetFields []string
	limit       int
	facetValues int
}

// New validates and normalizes search parameters.
// Defaults: limit=20, facet values per field=10.
// Facet field names are checked against the catalog schema in the service layer.
func New(
	query string,
	geo geofilter.Filter,
	facetFields []string,
	limit, facetValues int,
) (Request, error) {
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	if len(facetFields) > MaxFacetFields {
		return Request{}, fmt.Errorf("too many facet fields (max %d)", MaxFacetFields)
	}
	for _, f := range facetFields {
		if f == "" {
			return Request{}, fmt.Errorf("facet field name is required")
		}
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if facetValues <= 0 {
		facetValues = DefaultFacetValues
	}
	if facetValues > MaxFacetValues {
		facetValues = MaxFacetValues
	}

	return Request{
		query:       query,
		geo:         geo,
		facetFields: dedupe(facetFields),
		limit:       limit,
		facetValues: facetValues,
	}, nil
}

// Query returns the relevance query text.
func (r *Request) Query() string { return r.query }

// IsOpen reports whether the request carries no filtering clause, so
// facet counts can be read straight from the registries.
func (r *Request) IsOpen() bool { return r.query == "" && r.geo.IsNone() }

// Geo returns the spatial predicate.
func (r *Request) Geo() geofilter.Filter { return r.geo }

// FacetFields returns the facet fields to aggregate, duplicates removed.
func (r *Request) FacetFields() []string { return r.facetFields }

// Limit returns the maximum hits to return.
func (r *Request) Limit() int { return r.limit }

// FacetValues returns the maximum facet values to return per field.
func (r *Request) FacetValues() int { return r.facetValues }

func dedupe(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
