package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// documentsTotal counts ingested documents.
	// Labels: result (ok, error)
	documentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexd",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Total number of documents ingested, by result",
		},
		[]string{"result"},
	)

	// chunksStored counts chunks written to the vector store.
	chunksStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lexd",
			Subsystem: "ingest",
			Name:      "chunks_stored_total",
			Help:      "Total number of chunks written to the vector store",
		},
	)

	// entitiesTotal counts merged entities by winning source.
	entitiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexd",
			Subsystem: "ingest",
			Name:      "entities_total",
			Help:      "Total number of merged entities, by winning source",
		},
		[]string{"source"},
	)

	// ingestDuration tracks per-document ingestion latency.
	ingestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lexd",
			Subsystem: "ingest",
			Name:      "document_duration_seconds",
			Help:      "Time to classify, chunk and store one document",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// watcherEvents counts extractor files picked up by the watcher.
	watcherEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lexd",
			Subsystem: "ingest",
			Name:      "watcher_events_total",
			Help:      "Total number of extractor files picked up by the directory watcher",
		},
	)
)
