package search

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/search/request"
	"github.com/kailas-cloud/facetdex/internal/domain/search/result"
	"github.com/kailas-cloud/facetdex/internal/metrics"
)

// Searcher is the local interface the instrumentation wraps.
type Searcher interface {
	Search(ctx context.Context, req *request.Request) (result.Result, error)
}

// Instrumented wraps a Searcher with metrics and logging. Request
// counts and durations label by the document model the request actually
// executed under, which a rebuild can change at runtime.
type Instrumented struct {
	inner  Searcher
	logger *zap.Logger
}

// NewInstrumented wraps a search service with observability.
func NewInstrumented(inner Searcher, logger *zap.Logger) *Instrumented {
	return &Instrumented{inner: inner, logger: logger}
}

// Search delegates to the inner service and records the outcome.
func (i *Instrumented) Search(ctx context.Context, req *request.Request) (result.Result, error) {
	stats := domain.QueryStatsFromContext(ctx)
	if stats == nil {
		ctx, stats = domain.NewContextWithQueryStats(ctx)
	}

	start := time.Now()

	res, err := i.inner.Search(ctx, req)

	duration := time.Since(start)
	model := stats.Model
	if model == "" {
		model = "unknown"
	}

	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(model, "error").Inc()
		if errors.Is(err, domain.ErrFacetJoinOverflow) {
			metrics.JoinOverflowsTotal.WithLabelValues("fail").Inc()
		}
		i.logger.Error("Search request failed",
			zap.String("model", model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return result.Result{}, err
	}

	metrics.SearchRequestsTotal.WithLabelValues(model, "success").Inc()
	metrics.SearchDuration.WithLabelValues(model).Observe(duration.Seconds())
	if stats.JoinCandidates > 0 {
		metrics.JoinCandidates.Observe(float64(stats.JoinCandidates))
	}
	if stats.FacetPartial {
		// a capped join is the partial-policy overflow outcome
		metrics.JoinOverflowsTotal.WithLabelValues("partial").Inc()
		metrics.FacetPartialTotal.Inc()
	}

	i.logger.Debug("Search request completed",
		zap.String("model", model),
		zap.Duration("duration", duration),
		zap.Int64("total_hits", res.TotalHits()),
		zap.Int("rows_scanned", stats.RowsScanned),
		zap.Int("join_candidates", stats.JoinCandidates),
		zap.Bool("partial", res.Partial()),
	)

	return res, nil
}
