package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search engine metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Total number of answered searches by result source",
		},
		[]string{"source"},
	)

	SearchFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_fallback_total",
			Help:      "Total number of searches served by keyword fallback",
		},
		[]string{"reason"},
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)
)

func searchCollectors() []prometheus.Collector {
	return []prometheus.Collector{SearchRequestsTotal, SearchFallbackTotal, SearchDuration}
}
