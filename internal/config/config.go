// Package config provides configuration loading for lexd.
//
// Configuration is loaded from a YAML file, then overridden by environment
// variables, with hardcoded defaults filling the gaps. Sections mirror the
// components they configure; cmd/lexd maps them onto component configs.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/lexd/internal/sanitize"
)

// Config holds the complete lexd configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Store      StoreConfig      `koanf:"store"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	LLM        LLMConfig        `koanf:"llm"`
	Annotate   AnnotateConfig   `koanf:"annotate"`
	Merger     MergerConfig     `koanf:"merger"`
	Chunker    ChunkerConfig    `koanf:"chunker"`
	Retrieval  RetrievalConfig  `koanf:"retrieval"`
	Ingest     IngestConfig     `koanf:"ingest"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	// Host is the bind address. Empty binds all interfaces.
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// APIKey guards the /api/v1 endpoints when set. Empty leaves the API
	// open, which is fine for localhost deployments.
	APIKey Secret `koanf:"api_key"`
}

// LoggingConfig holds the logging section. Level is kept as a string so the
// custom "trace" level parses; cmd/lexd converts it via logging.LevelFromString.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig configures OTLP export of traces and OTEL metrics.
// Disabled by default; prometheus /metrics works regardless.
type TelemetryConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Endpoint       string   `koanf:"endpoint"`
	Protocol       string   `koanf:"protocol"`
	UseTLS         bool     `koanf:"use_tls"`
	TLSSkipVerify  bool     `koanf:"tls_skip_verify"`
	SamplingRate   float64  `koanf:"sampling_rate"`
	ExportInterval Duration `koanf:"export_interval"`
}

// StoreConfig selects and configures the vector store backend.
type StoreConfig struct {
	// Provider is "chromem" (embedded, default) or "qdrant".
	Provider   string        `koanf:"provider"`
	Collection string        `koanf:"collection"`
	VectorSize int           `koanf:"vector_size"`
	Chromem    ChromemConfig `koanf:"chromem"`
	Qdrant     QdrantConfig  `koanf:"qdrant"`
}

// ChromemConfig holds the embedded chromem store settings.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// QdrantConfig holds qdrant connection settings.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	APIKey Secret `koanf:"api_key"`
	UseTLS bool   `koanf:"use_tls"`
}

// EmbeddingsConfig selects and configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "fastembed" (local, default) or "openai" (any
	// OpenAI-compatible endpoint).
	Provider          string `koanf:"provider"`
	Model             string `koanf:"model"`
	BaseURL           string `koanf:"base_url"`
	APIKey            Secret `koanf:"api_key"`
	CacheDir          string `koanf:"cache_dir"`
	BatchSize         int    `koanf:"batch_size"`
	RequestsPerMinute int    `koanf:"requests_per_minute"`
	// QueryCacheSize caches query embeddings when > 0, sparing repeated
	// queries an embedding round trip. Ingest embeddings never cache.
	QueryCacheSize int      `koanf:"query_cache_size"`
	QueryCacheTTL  Duration `koanf:"query_cache_ttl"`
}

// LLMConfig configures the LLM used for gap analysis and answer synthesis.
// Retrieval works without it; disabled means single-pass retrieval.
type LLMConfig struct {
	Enabled           bool    `koanf:"enabled"`
	Model             string  `koanf:"model"`
	BaseURL           string  `koanf:"base_url"`
	APIKey            Secret  `koanf:"api_key"`
	Temperature       float64 `koanf:"temperature"`
	MaxTokens         int     `koanf:"max_tokens"`
	RequestsPerMinute int     `koanf:"requests_per_minute"`
}

// AnnotateConfig holds color classification settings.
type AnnotateConfig struct {
	Tolerance     float64 `koanf:"tolerance"`
	Confidence    float64 `koanf:"confidence"`
	ContextWindow int     `koanf:"context_window"`
}

// MergerConfig holds entity merger settings.
type MergerConfig struct {
	MinOverlapFraction float64 `koanf:"min_overlap_fraction"`
	NLPThreshold       float64 `koanf:"nlp_threshold"`
	ColorConfidence    float64 `koanf:"color_confidence"`
	RegexConfidence    float64 `koanf:"regex_confidence"`
}

// ChunkerConfig holds chunking settings.
type ChunkerConfig struct {
	ChunkSize            int     `koanf:"chunk_size"`
	Overlap              int     `koanf:"overlap"`
	HighQualityThreshold float64 `koanf:"high_quality_threshold"`
}

// RetrievalConfig holds the iterative retrieval loop settings.
type RetrievalConfig struct {
	MaxIterationsSimple  int      `koanf:"max_iterations_simple"`
	MaxIterationsComplex int      `koanf:"max_iterations_complex"`
	FilteredFirstK       int      `koanf:"filtered_first_k"`
	BaseK                int      `koanf:"base_k"`
	KStep                int      `koanf:"k_step"`
	ContextCapSimple     int      `koanf:"context_cap_simple"`
	ContextCapComplex    int      `koanf:"context_cap_complex"`
	MaxFollowUps         int      `koanf:"max_follow_ups"`
	MaxFollowUpWords     int      `koanf:"max_follow_up_words"`
	SearchTimeout        Duration `koanf:"search_timeout"`
	AnalyzeTimeout       Duration `koanf:"analyze_timeout"`
	SynthesizeTimeout    Duration `koanf:"synthesize_timeout"`
}

// IngestConfig holds the ingestion pipeline settings.
type IngestConfig struct {
	InputDir  string `koanf:"input_dir"`
	Watch     bool   `koanf:"watch"`
	Workers   int    `koanf:"workers"`
	BatchSize int    `koanf:"batch_size"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8811
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	// Telemetry defaults (disabled; endpoint assumes a local collector)
	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.SamplingRate == 0 {
		cfg.Telemetry.SamplingRate = 1.0
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = Duration(15 * time.Second)
	}

	// Store defaults (chromem is default - embedded, no external deps)
	if cfg.Store.Provider == "" {
		cfg.Store.Provider = "chromem"
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = "lexd_chunks"
	}
	if cfg.Store.VectorSize == 0 {
		cfg.Store.VectorSize = 384 // bge-small-en-v1.5 dimensions
	}
	if cfg.Store.Chromem.Path == "" {
		cfg.Store.Chromem.Path = "~/.config/lexd/vectorstore"
	}
	if cfg.Store.Qdrant.Host == "" {
		cfg.Store.Qdrant.Host = "localhost"
	}
	if cfg.Store.Qdrant.Port == 0 {
		cfg.Store.Qdrant.Port = 6334
	}

	// Embeddings defaults
	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "fastembed"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}
	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "http://localhost:8080"
	}
	if cfg.Embeddings.CacheDir == "" {
		cfg.Embeddings.CacheDir = "~/.cache/lexd/models"
	}
	if cfg.Embeddings.BatchSize == 0 {
		cfg.Embeddings.BatchSize = 25
	}
	if cfg.Embeddings.RequestsPerMinute == 0 {
		cfg.Embeddings.RequestsPerMinute = 60
	}
	if cfg.Embeddings.QueryCacheTTL == 0 {
		cfg.Embeddings.QueryCacheTTL = Duration(5 * time.Minute)
	}

	// LLM defaults (disabled unless configured; retrieval degrades to a
	// single pass without it)
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.2
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}
	if cfg.LLM.RequestsPerMinute == 0 {
		cfg.LLM.RequestsPerMinute = 30
	}

	// Annotation defaults
	if cfg.Annotate.Tolerance == 0 {
		cfg.Annotate.Tolerance = 0.15
	}
	if cfg.Annotate.Confidence == 0 {
		cfg.Annotate.Confidence = 0.95
	}
	if cfg.Annotate.ContextWindow == 0 {
		cfg.Annotate.ContextWindow = 60
	}

	// Merger defaults
	if cfg.Merger.MinOverlapFraction == 0 {
		cfg.Merger.MinOverlapFraction = 0.5
	}
	if cfg.Merger.NLPThreshold == 0 {
		cfg.Merger.NLPThreshold = 0.6
	}
	if cfg.Merger.ColorConfidence == 0 {
		cfg.Merger.ColorConfidence = 0.95
	}
	if cfg.Merger.RegexConfidence == 0 {
		cfg.Merger.RegexConfidence = 0.75
	}

	// Chunker defaults
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 4000
	}
	if cfg.Chunker.Overlap == 0 {
		cfg.Chunker.Overlap = 800
	}
	if cfg.Chunker.HighQualityThreshold == 0 {
		cfg.Chunker.HighQualityThreshold = 0.8
	}

	// Retrieval defaults
	if cfg.Retrieval.MaxIterationsSimple == 0 {
		cfg.Retrieval.MaxIterationsSimple = 3
	}
	if cfg.Retrieval.MaxIterationsComplex == 0 {
		cfg.Retrieval.MaxIterationsComplex = 5
	}
	if cfg.Retrieval.FilteredFirstK == 0 {
		cfg.Retrieval.FilteredFirstK = 20
	}
	if cfg.Retrieval.BaseK == 0 {
		cfg.Retrieval.BaseK = 25
	}
	if cfg.Retrieval.KStep == 0 {
		cfg.Retrieval.KStep = 5
	}
	if cfg.Retrieval.ContextCapSimple == 0 {
		cfg.Retrieval.ContextCapSimple = 25
	}
	if cfg.Retrieval.ContextCapComplex == 0 {
		cfg.Retrieval.ContextCapComplex = 35
	}
	if cfg.Retrieval.MaxFollowUps == 0 {
		cfg.Retrieval.MaxFollowUps = 2
	}
	if cfg.Retrieval.MaxFollowUpWords == 0 {
		cfg.Retrieval.MaxFollowUpWords = 15
	}
	if cfg.Retrieval.SearchTimeout == 0 {
		cfg.Retrieval.SearchTimeout = Duration(10 * time.Second)
	}
	if cfg.Retrieval.AnalyzeTimeout == 0 {
		cfg.Retrieval.AnalyzeTimeout = Duration(30 * time.Second)
	}
	if cfg.Retrieval.SynthesizeTimeout == 0 {
		cfg.Retrieval.SynthesizeTimeout = Duration(60 * time.Second)
	}

	// Ingest defaults
	if cfg.Ingest.InputDir == "" {
		cfg.Ingest.InputDir = "./ingest"
	}
	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 4
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 25
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return errors.New("telemetry endpoint required when telemetry is enabled")
		}
		switch c.Telemetry.Protocol {
		case "grpc", "http/protobuf":
		default:
			return fmt.Errorf("invalid telemetry protocol: %q (must be grpc or http/protobuf)", c.Telemetry.Protocol)
		}
		if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
			return fmt.Errorf("telemetry sampling_rate must be in [0, 1], got %g", c.Telemetry.SamplingRate)
		}
	}

	switch c.Store.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("invalid store provider: %q (must be chromem or qdrant)", c.Store.Provider)
	}
	if !sanitize.Valid(c.Store.Collection) {
		return fmt.Errorf("invalid store collection %q (must match ^[a-z0-9_]{1,64}$); try %q",
			c.Store.Collection, sanitize.Identifier(c.Store.Collection))
	}
	if c.Store.Provider == "qdrant" && c.Store.Qdrant.Host == "" {
		return errors.New("qdrant host required when store provider is qdrant")
	}

	switch c.Embeddings.Provider {
	case "fastembed", "openai":
	default:
		return fmt.Errorf("invalid embeddings provider: %q (must be fastembed or openai)", c.Embeddings.Provider)
	}
	if c.Embeddings.Provider == "openai" && c.Embeddings.BaseURL == "" {
		return errors.New("embeddings base_url required when provider is openai")
	}

	if c.LLM.Enabled {
		if c.LLM.Model == "" {
			return errors.New("llm model required when llm is enabled")
		}
		if c.LLM.BaseURL == "" {
			return errors.New("llm base_url required when llm is enabled")
		}
	}

	if c.Chunker.Overlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("chunker overlap %d must be smaller than chunk_size %d",
			c.Chunker.Overlap, c.Chunker.ChunkSize)
	}

	if c.Retrieval.MaxIterationsSimple > c.Retrieval.MaxIterationsComplex {
		return errors.New("retrieval max_iterations_simple cannot exceed max_iterations_complex")
	}

	if c.Ingest.Workers < 1 {
		return fmt.Errorf("ingest workers must be >= 1, got %d", c.Ingest.Workers)
	}

	return nil
}
