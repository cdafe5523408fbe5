package db

import "github.com/kailas-cloud/facetdex/internal/domain/search/geofilter"

// TagClause is a non-scoring constraint: the attribute must hold one of
// the given values.
type TagClause struct {
	Field  string
	Values []string
}

// Query is the input for a single FT.SEARCH execution combining a
// scoring text clause, an optional spatial clause, and tag constraints.
type Query struct {
	IndexName string

	// Text scores over the TextFields attributes. Empty means no text
	// clause (tag/geo only).
	Text       string
	TextFields []string

	// Geo is the spatial predicate. GeoField names the GEO point
	// attribute (radius); ShapeField names the GEOSHAPE attribute
	// (box and polygon predicates).
	Geo        geofilter.Filter
	GeoField   string
	ShapeField string

	Tags []TagClause

	// Disjunctive joins the text and geo clauses with OR instead of
	// AND, for row layouts where the clauses match different rows of
	// the same entity.
	Disjunctive bool

	Offset       int
	Limit        int
	ReturnFields []string
	WithScores   bool
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int64
	Entries []SearchEntry
}

// SearchEntry is a single row hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// AggregateQuery is the input for a grouped count over an FT index:
// FT.AGGREGATE with GROUPBY over the GroupBy attributes and a COUNT
// reducer. With a single group attribute and Max > 0, groups come back
// sorted by count descending (ties by value ascending) and capped at
// Max; otherwise all groups are returned unsorted.
type AggregateQuery struct {
	IndexName string

	Text       string
	TextFields []string

	Geo        geofilter.Filter
	GeoField   string
	ShapeField string

	Tags []TagClause

	GroupBy []string
	Max     int
}

// GroupCount is a single group from an aggregation: the group key
// attribute values and the row count.
type GroupCount struct {
	Values map[string]string
	Count  int64
}
