package domain

import "context"

type queryStatsKey struct{}

// QueryStats collects execution counters for a single search request.
// The handler puts a mutable pointer into the context before calling the service;
// the service writes during execution; the handler reads it for the canonical log line.
type QueryStats struct {
	Model          string
	RowsScanned    int
	JoinCandidates int
	FacetPartial   bool
}

// NewContextWithQueryStats returns a context with an embedded stats collector.
func NewContextWithQueryStats(ctx context.Context) (context.Context, *QueryStats) {
	s := &QueryStats{}
	return context.WithValue(ctx, queryStatsKey{}, s), s
}

// QueryStatsFromContext extracts the stats collector from context. Returns nil if not set.
func QueryStatsFromContext(ctx context.Context) *QueryStats {
	s, _ := ctx.Value(queryStatsKey{}).(*QueryStats)
	return s
}

// SetModel records the document model the request executed under.
func (s *QueryStats) SetModel(m string) {
	if s != nil {
		s.Model = m
	}
}

// AddRowsScanned records rows fetched during the correlation pass.
func (s *QueryStats) AddRowsScanned(n int) {
	if s != nil {
		s.RowsScanned += n
	}
}

// SetJoinCandidates records the distinct entities entering the facet join.
func (s *QueryStats) SetJoinCandidates(n int) {
	if s != nil {
		s.JoinCandidates = n
	}
}

// MarkFacetPartial records that facet counts were computed from a capped candidate set.
func (s *QueryStats) MarkFacetPartial() {
	if s != nil {
		s.FacetPartial = true
	}
}
