package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facetdex",
			Name:      "search_requests_total",
			Help:      "Total number of search requests",
		},
		[]string{"model", "status"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "facetdex",
			Name:      "search_duration_seconds",
			Help:      "Search request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"model"},
	)

	JoinCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "facetdex",
			Name:      "join_candidates",
			Help:      "Entity candidates per fact-layout correlation pass",
			Buckets:   []float64{1, 8, 32, 128, 512, 1024, 4096, 10000},
		},
	)

	JoinOverflowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facetdex",
			Name:      "join_overflows_total",
			Help:      "Correlation passes exceeding the join id limit",
		},
		[]string{"policy"},
	)

	FacetPartialTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "facetdex",
			Name:      "facet_partial_total",
			Help:      "Responses with truncated facet counts",
		},
	)

	RebuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facetdex",
			Name:      "rebuilds_total",
			Help:      "Total number of index rebuilds",
		},
		[]string{"status"},
	)

	RebuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "facetdex",
			Name:      "rebuild_duration_seconds",
			Help:      "Index rebuild duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(JoinCandidates)
	prometheus.MustRegister(JoinOverflowsTotal)
	prometheus.MustRegister(FacetPartialTotal)
	prometheus.MustRegister(RebuildsTotal)
	prometheus.MustRegister(RebuildDuration)
	searchMetricsRegistered = true
}
