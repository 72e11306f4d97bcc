package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// queriesTotal counts completed retrieval runs.
	// Labels: result (complete, partial)
	queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexd",
			Subsystem: "retrieval",
			Name:      "queries_total",
			Help:      "Total number of completed retrieval runs",
		},
		[]string{"result"},
	)

	// intentTotal counts queries by classified intent.
	intentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexd",
			Subsystem: "retrieval",
			Name:      "query_intents_total",
			Help:      "Total number of queries by classified intent",
		},
		[]string{"intent"},
	)

	// iterationsPerQuery tracks how many search passes each query took.
	iterationsPerQuery = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lexd",
			Subsystem: "retrieval",
			Name:      "iterations_per_query",
			Help:      "Number of search iterations per query",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
	)

	// contextSize tracks the final context set size handed to synthesis.
	contextSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lexd",
			Subsystem: "retrieval",
			Name:      "context_chunks_per_query",
			Help:      "Number of context chunks in the final set per query",
			Buckets:   []float64{0, 5, 10, 15, 20, 25, 30, 35},
		},
	)

	// storeFailures counts degraded runs caused by vector store errors.
	storeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lexd",
			Subsystem: "retrieval",
			Name:      "store_failures_total",
			Help:      "Total number of vector store failures absorbed by degradation",
		},
	)

	// analysisFailures counts degraded runs caused by gap analysis errors.
	analysisFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lexd",
			Subsystem: "retrieval",
			Name:      "analysis_failures_total",
			Help:      "Total number of gap analysis failures absorbed by degradation",
		},
	)

	// synthesisFailures counts answers degraded to sources-only output.
	synthesisFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lexd",
			Subsystem: "retrieval",
			Name:      "synthesis_failures_total",
			Help:      "Total number of answer synthesis failures absorbed by degradation",
		},
	)
)
