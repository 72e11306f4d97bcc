// Package vectorstore provides Prometheus metrics for store operations.
package vectorstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SearchesTotal counts similarity searches.
	// Labels: backend (chromem, qdrant), result (success, error)
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexd",
			Subsystem: "vectorstore",
			Name:      "searches_total",
			Help:      "Total number of similarity searches",
		},
		[]string{"backend", "result"},
	)

	// SearchDuration tracks how long similarity searches take.
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lexd",
			Subsystem: "vectorstore",
			Name:      "search_duration_seconds",
			Help:      "Duration of similarity searches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	// AddBatchesTotal counts document batch insertions.
	// Labels: backend (chromem, qdrant), result (success, error)
	AddBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexd",
			Subsystem: "vectorstore",
			Name:      "add_batches_total",
			Help:      "Total number of document batch insertions",
		},
		[]string{"backend", "result"},
	)

	// DocumentsAddedTotal counts chunk documents successfully stored.
	DocumentsAddedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexd",
			Subsystem: "vectorstore",
			Name:      "documents_added_total",
			Help:      "Total number of chunk documents stored",
		},
		[]string{"backend"},
	)
)

// recordSearch records the outcome and duration of a search operation.
func recordSearch(backend string, err error, elapsed time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
	}
	SearchesTotal.WithLabelValues(backend, result).Inc()
	SearchDuration.WithLabelValues(backend).Observe(elapsed.Seconds())
}

// recordAddBatch records the outcome of a batch insertion.
func recordAddBatch(backend string, err error, count int) {
	result := "success"
	if err != nil {
		result = "error"
	}
	AddBatchesTotal.WithLabelValues(backend, result).Inc()
	if err == nil {
		DocumentsAddedTotal.WithLabelValues(backend).Add(float64(count))
	}
}
