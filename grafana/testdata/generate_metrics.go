// Package testdata provides utilities for generating sample metrics data
// to test Grafana dashboards without a running lexd instance.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics for testing dashboards
var (
	// Ingest pipeline metrics
	ingestDocuments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexd_ingest_documents_total",
			Help: "Total number of documents ingested, by result",
		},
		[]string{"result"},
	)
	ingestChunksStored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lexd_ingest_chunks_stored_total",
			Help: "Total number of chunks written to the vector store",
		},
	)
	ingestEntities = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexd_ingest_entities_total",
			Help: "Total number of merged entities, by winning source",
		},
		[]string{"source"},
	)
	ingestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lexd_ingest_document_duration_seconds",
			Help:    "Time to classify, chunk and store one document",
			Buckets: prometheus.DefBuckets,
		},
	)
	watcherEvents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lexd_ingest_watcher_events_total",
			Help: "Total number of extractor files picked up by the directory watcher",
		},
	)

	// Vector store metrics
	storeSearches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexd_vectorstore_searches_total",
			Help: "Total number of similarity searches",
		},
		[]string{"backend", "result"},
	)
	storeSearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lexd_vectorstore_search_duration_seconds",
			Help:    "Duration of similarity searches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)
	storeAddBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexd_vectorstore_add_batches_total",
			Help: "Total number of document batch insertions",
		},
		[]string{"backend", "result"},
	)
	storeDocumentsAdded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexd_vectorstore_documents_added_total",
			Help: "Total number of chunk documents stored",
		},
		[]string{"backend"},
	)

	// Retrieval loop metrics
	retrievalQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexd_retrieval_queries_total",
			Help: "Total number of completed retrieval runs",
		},
		[]string{"result"},
	)
	retrievalIntents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexd_retrieval_query_intents_total",
			Help: "Total number of queries by classified intent",
		},
		[]string{"intent"},
	)
	retrievalIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lexd_retrieval_iterations_per_query",
			Help:    "Number of search iterations per query",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)
	retrievalContextSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lexd_retrieval_context_chunks_per_query",
			Help:    "Number of context chunks in the final set per query",
			Buckets: []float64{0, 5, 10, 15, 20, 25, 30, 35},
		},
	)
	retrievalStoreFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lexd_retrieval_store_failures_total",
			Help: "Total number of vector store failures absorbed by degradation",
		},
	)
	retrievalAnalysisFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lexd_retrieval_analysis_failures_total",
			Help: "Total number of gap analysis failures absorbed by degradation",
		},
	)
	retrievalSynthesisFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lexd_retrieval_synthesis_failures_total",
			Help: "Total number of answer synthesis failures absorbed by degradation",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		// Ingest
		ingestDocuments,
		ingestChunksStored,
		ingestEntities,
		ingestDuration,
		watcherEvents,
		// Vector store
		storeSearches,
		storeSearchDuration,
		storeAddBatches,
		storeDocumentsAdded,
		// Retrieval
		retrievalQueries,
		retrievalIntents,
		retrievalIterations,
		retrievalContextSize,
		retrievalStoreFailures,
		retrievalAnalysisFailures,
		retrievalSynthesisFailures,
	)
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "9090"
	}

	// Generate initial sample data
	generateSampleData()

	// Start background goroutine to continuously generate data
	ctx, cancel := context.WithCancel(context.Background())
	go generateContinuousData(ctx)

	// Serve metrics
	http.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    ":" + port,
		Handler: nil,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		cancel()
		server.Shutdown(context.Background())
	}()

	fmt.Printf("Sample metrics server running on http://localhost:%s/metrics\n", port)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println("\nTo use with Prometheus, add this to prometheus.yml:")
	fmt.Printf("  - job_name: 'lexd-test'\n    static_configs:\n      - targets: ['localhost:%s']\n", port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

func generateSampleData() {
	backends := []string{"chromem", "qdrant"}
	intents := []string{"general", "financial", "party", "date"}

	// Generate ingest data
	for i := 0; i < 40; i++ {
		result := "ok"
		if rand.Float64() > 0.95 {
			result = "error"
		}
		ingestDocuments.WithLabelValues(result).Inc()
		ingestDuration.Observe(rand.Float64() * 2.0)
		if result == "ok" {
			ingestChunksStored.Add(float64(rand.Intn(25) + 5))
			// Color annotations win most merges, so COLOR gets the biggest share
			ingestEntities.WithLabelValues("COLOR").Add(float64(rand.Intn(30) + 10))
			ingestEntities.WithLabelValues("NLP").Add(float64(rand.Intn(12)))
			ingestEntities.WithLabelValues("REGEX").Add(float64(rand.Intn(8)))
		}
	}
	for i := 0; i < 25; i++ {
		watcherEvents.Inc()
	}

	// Generate vector store data
	for i := 0; i < 150; i++ {
		backend := randomChoice(backends)
		result := "success"
		if rand.Float64() > 0.97 {
			result = "error"
		}
		storeSearches.WithLabelValues(backend, result).Inc()
		storeSearchDuration.WithLabelValues(backend).Observe(rand.Float64() * 0.3)
	}
	for i := 0; i < 40; i++ {
		backend := randomChoice(backends)
		result := "success"
		if rand.Float64() > 0.95 {
			result = "error"
		}
		storeAddBatches.WithLabelValues(backend, result).Inc()
		if result == "success" {
			storeDocumentsAdded.WithLabelValues(backend).Add(float64(rand.Intn(25) + 5))
		}
	}

	// Generate retrieval data
	for i := 0; i < 120; i++ {
		result := "complete"
		if rand.Float64() > 0.9 {
			result = "partial"
		}
		retrievalQueries.WithLabelValues(result).Inc()
		retrievalIntents.WithLabelValues(randomChoice(intents)).Inc()
		retrievalIterations.Observe(float64(rand.Intn(5) + 1))
		retrievalContextSize.Observe(float64(rand.Intn(36)))
	}
	for i := 0; i < 4; i++ {
		retrievalStoreFailures.Inc()
	}
	for i := 0; i < 3; i++ {
		retrievalAnalysisFailures.Inc()
	}
	for i := 0; i < 6; i++ {
		retrievalSynthesisFailures.Inc()
	}
}

func generateContinuousData(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	backends := []string{"chromem", "qdrant"}
	intents := []string{"general", "financial", "party", "date"}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Simulate steady query traffic
			if rand.Float64() > 0.3 {
				backend := randomChoice(backends)
				storeSearches.WithLabelValues(backend, "success").Inc()
				storeSearchDuration.WithLabelValues(backend).Observe(rand.Float64() * 0.3)

				result := "complete"
				if rand.Float64() > 0.9 {
					result = "partial"
				}
				retrievalQueries.WithLabelValues(result).Inc()
				retrievalIntents.WithLabelValues(randomChoice(intents)).Inc()
				retrievalIterations.Observe(float64(rand.Intn(5) + 1))
				retrievalContextSize.Observe(float64(rand.Intn(36)))
			}
			// Occasional document ingest
			if rand.Float64() > 0.7 {
				watcherEvents.Inc()
				ingestDocuments.WithLabelValues("ok").Inc()
				ingestDuration.Observe(rand.Float64() * 2.0)
				chunks := rand.Intn(25) + 5
				ingestChunksStored.Add(float64(chunks))
				ingestEntities.WithLabelValues("COLOR").Add(float64(rand.Intn(30) + 10))
				ingestEntities.WithLabelValues("NLP").Add(float64(rand.Intn(12)))
				ingestEntities.WithLabelValues("REGEX").Add(float64(rand.Intn(8)))

				backend := randomChoice(backends)
				storeAddBatches.WithLabelValues(backend, "success").Inc()
				storeDocumentsAdded.WithLabelValues(backend).Add(float64(chunks))
			}
			// Occasional failures
			if rand.Float64() > 0.95 {
				retrievalStoreFailures.Inc()
				storeSearches.WithLabelValues(randomChoice(backends), "error").Inc()
			}
			if rand.Float64() > 0.97 {
				retrievalSynthesisFailures.Inc()
			}
		}
	}
}

func randomChoice(choices []string) string {
	return choices[rand.Intn(len(choices))]
}
