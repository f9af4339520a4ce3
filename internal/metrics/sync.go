package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Index synchronization metrics.
var (
	SyncRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_records_total",
			Help:      "Total number of records processed by sync mode and result",
		},
		[]string{"mode", "result"},
	)

	SyncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Sync duration in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 30, 120, 600},
		},
		[]string{"mode"},
	)
)

var registerOnce sync.Once

// Register registers the embedding, search and sync collectors with the default
// registry. Safe to call more than once; HTTP collectors register in init.
func Register() {
	registerOnce.Do(func() {
		collectors := embeddingCollectors()
		collectors = append(collectors, searchCollectors()...)
		collectors = append(collectors, SyncRecordsTotal, SyncDuration)
		prometheus.MustRegister(collectors...)
	})
}
