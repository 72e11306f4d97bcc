package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/lexd/internal/annotate"
	"github.com/fyrsmithlabs/lexd/internal/chunker"
	"github.com/fyrsmithlabs/lexd/internal/config"
	"github.com/fyrsmithlabs/lexd/internal/embeddings"
	"github.com/fyrsmithlabs/lexd/internal/entity"
	"github.com/fyrsmithlabs/lexd/internal/extract"
	"github.com/fyrsmithlabs/lexd/internal/generation"
	"github.com/fyrsmithlabs/lexd/internal/ingest"
	"github.com/fyrsmithlabs/lexd/internal/logging"
	"github.com/fyrsmithlabs/lexd/internal/retrieval"
	"github.com/fyrsmithlabs/lexd/internal/telemetry"
	"github.com/fyrsmithlabs/lexd/internal/vectorstore"
)

// app holds the wired components shared by the serve, ingest and query
// commands.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	tel      *telemetry.Telemetry
	embedder embeddings.Provider
	store    vectorstore.Store
	pipeline *ingest.Pipeline
	engine   *retrieval.Engine
	llm      *generation.Client
}

// buildApp loads configuration and constructs the component graph:
// logger, embedder, vector store (with its collection ensured), the
// ingestion pipeline, and the query engine.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	zl := logger.Underlying()

	// Installed before any component runs so the package-level tracers
	// bind to the real provider once spans start.
	tel, err := telemetry.New(ctx, telemetryConfigFrom(cfg), zl)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}
	if lp := tel.LoggerProvider(); lp != nil {
		logger = logger.WithOTELBridge(lp)
		zl = logger.Underlying()
	}

	embedder, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:          cfg.Embeddings.Provider,
		Model:             cfg.Embeddings.Model,
		BaseURL:           cfg.Embeddings.BaseURL,
		APIKey:            cfg.Embeddings.APIKey.Value(),
		CacheDir:          cfg.Embeddings.CacheDir,
		BatchSize:         cfg.Embeddings.BatchSize,
		RequestsPerMinute: cfg.Embeddings.RequestsPerMinute,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing embeddings: %w", err)
	}

	if size := cfg.Embeddings.QueryCacheSize; size > 0 {
		embedder = embeddings.NewCachingProvider(embedder, size, cfg.Embeddings.QueryCacheTTL.Duration())
		zl.Debug("query embedding cache enabled",
			zap.Int("max_entries", size),
			zap.Duration("ttl", cfg.Embeddings.QueryCacheTTL.Duration()))
	}

	vectorSize := cfg.Store.VectorSize
	if dim := embedder.Dimension(); dim != vectorSize {
		zl.Warn("configured vector size does not match embedding model, using model dimension",
			zap.Int("configured", vectorSize),
			zap.Int("model", dim),
			zap.String("model_name", cfg.Embeddings.Model))
		vectorSize = dim
	}

	store, err := newStore(cfg, vectorSize, embedder, zl)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("initializing vector store: %w", err)
	}

	if err := ensureCollection(ctx, store, cfg.Store.Collection, vectorSize); err != nil {
		_ = store.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("ensuring collection %s: %w", cfg.Store.Collection, err)
	}

	pipeline, err := newPipeline(cfg, store, zl)
	if err != nil {
		_ = store.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("initializing ingest pipeline: %w", err)
	}

	engine, llm, err := newEngine(cfg, store, zl)
	if err != nil {
		_ = store.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("initializing query engine: %w", err)
	}

	zl.Info("lexd initialized",
		zap.String("store", cfg.Store.Provider),
		zap.String("collection", cfg.Store.Collection),
		zap.Int("vector_size", vectorSize),
		zap.String("embeddings", cfg.Embeddings.Provider),
		zap.Bool("llm_enabled", llm != nil))

	return &app{
		cfg:      cfg,
		logger:   logger,
		tel:      tel,
		embedder: embedder,
		store:    store,
		pipeline: pipeline,
		engine:   engine,
		llm:      llm,
	}, nil
}

// Close releases the app's resources.
func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.tel != nil {
		_ = a.tel.Shutdown(context.Background())
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// zap returns the underlying zap logger for component constructors.
func (a *app) zap() *zap.Logger {
	return a.logger.Underlying()
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}

	logCfg := logging.NewDefaultConfig()
	logCfg.Level = level
	logCfg.Format = cfg.Logging.Format
	return logging.NewLogger(logCfg)
}

func newStore(cfg *config.Config, vectorSize int, embedder vectorstore.Embedder, logger *zap.Logger) (vectorstore.Store, error) {
	switch cfg.Store.Provider {
	case "qdrant":
		return vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
			Host:           cfg.Store.Qdrant.Host,
			Port:           cfg.Store.Qdrant.Port,
			CollectionName: cfg.Store.Collection,
			VectorSize:     uint64(vectorSize),
			APIKey:         cfg.Store.Qdrant.APIKey.Value(),
			UseTLS:         cfg.Store.Qdrant.UseTLS,
		}, embedder)
	default:
		return vectorstore.NewChromemStore(vectorstore.ChromemConfig{
			Path:              cfg.Store.Chromem.Path,
			Compress:          cfg.Store.Chromem.Compress,
			DefaultCollection: cfg.Store.Collection,
			VectorSize:        vectorSize,
		}, embedder, logger)
	}
}

// ensureCollection creates the chunk collection if it does not exist yet.
func ensureCollection(ctx context.Context, store vectorstore.Store, name string, vectorSize int) error {
	exists, err := store.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := store.CreateCollection(ctx, name, vectorSize); err != nil &&
		!errors.Is(err, vectorstore.ErrCollectionExists) {
		return err
	}
	return nil
}

func newPipeline(cfg *config.Config, store vectorstore.Store, logger *zap.Logger) (*ingest.Pipeline, error) {
	classifier, err := annotate.NewClassifier(annotate.Config{
		Tolerance:     cfg.Annotate.Tolerance,
		Confidence:    cfg.Annotate.Confidence,
		ContextWindow: cfg.Annotate.ContextWindow,
	}, logger)
	if err != nil {
		return nil, err
	}

	merger, err := entity.NewMerger(entity.MergerConfig{
		MinOverlapFraction: cfg.Merger.MinOverlapFraction,
		NLPThreshold:       cfg.Merger.NLPThreshold,
		ColorConfidence:    cfg.Merger.ColorConfidence,
		RegexConfidence:    cfg.Merger.RegexConfidence,
	}, logger)
	if err != nil {
		return nil, err
	}

	chunkr, err := chunker.NewChunker(chunker.Config{
		ChunkSize:            cfg.Chunker.ChunkSize,
		Overlap:              cfg.Chunker.Overlap,
		HighQualityThreshold: cfg.Chunker.HighQualityThreshold,
	}, logger)
	if err != nil {
		return nil, err
	}

	regex, err := extract.NewRegexExtractor(extract.DefaultPatterns(), logger)
	if err != nil {
		return nil, err
	}

	return ingest.NewPipeline(ingest.Components{
		Classifier: classifier,
		Merger:     merger,
		Chunker:    chunkr,
		Regex:      regex,
		Store:      store,
	}, ingest.Config{
		Workers:   cfg.Ingest.Workers,
		BatchSize: cfg.Ingest.BatchSize,
	}, logger)
}

// newEngine builds the retrieval controller and engine. Without an enabled
// LLM the engine runs single-pass retrieval and returns sources only.
func newEngine(cfg *config.Config, store vectorstore.Store, logger *zap.Logger) (*retrieval.Engine, *generation.Client, error) {
	var llm *generation.Client
	if cfg.LLM.Enabled {
		var err error
		llm, err = generation.NewClient(generationConfigFrom(cfg), logger)
		if err != nil {
			return nil, nil, err
		}
	}

	// A nil *Client inside a non-nil interface would defeat the
	// controller's nil checks, so the interfaces are only assigned when
	// the client exists.
	var analyzer retrieval.Analyzer
	var synth retrieval.Synthesizer
	if llm != nil {
		analyzer = llm
		synth = llm
	}

	controller, err := retrieval.NewController(store, analyzer, retrievalConfigFrom(cfg), logger)
	if err != nil {
		return nil, nil, err
	}

	engine, err := retrieval.NewEngine(controller, synth, logger)
	if err != nil {
		return nil, nil, err
	}
	return engine, llm, nil
}

// retrievalConfigFrom maps the configuration file section onto the
// controller config.
func retrievalConfigFrom(cfg *config.Config) retrieval.Config {
	return retrieval.Config{
		MaxIterationsSimple:  cfg.Retrieval.MaxIterationsSimple,
		MaxIterationsComplex: cfg.Retrieval.MaxIterationsComplex,
		FilteredFirstK:       cfg.Retrieval.FilteredFirstK,
		BaseK:                cfg.Retrieval.BaseK,
		KStep:                cfg.Retrieval.KStep,
		ContextCapSimple:     cfg.Retrieval.ContextCapSimple,
		ContextCapComplex:    cfg.Retrieval.ContextCapComplex,
		SearchTimeout:        cfg.Retrieval.SearchTimeout.Duration(),
		AnalyzeTimeout:       cfg.Retrieval.AnalyzeTimeout.Duration(),
		SynthesizeTimeout:    cfg.Retrieval.SynthesizeTimeout.Duration(),
	}
}

// telemetryConfigFrom maps the configuration file section onto the
// telemetry config. lexd's identity comes from the build, not the file.
func telemetryConfigFrom(cfg *config.Config) telemetry.Config {
	return telemetry.Config{
		Enabled:         cfg.Telemetry.Enabled,
		Endpoint:        cfg.Telemetry.Endpoint,
		Protocol:        cfg.Telemetry.Protocol,
		ServiceName:     "lexd",
		ServiceVersion:  version,
		Insecure:        !cfg.Telemetry.UseTLS,
		TLSSkipVerify:   cfg.Telemetry.TLSSkipVerify,
		SamplingRate:    cfg.Telemetry.SamplingRate,
		MetricsInterval: cfg.Telemetry.ExportInterval.Duration(),
	}
}

// generationConfigFrom maps the configuration file section onto the LLM
// client config. Follow-up bounds live in the retrieval section because
// they cap the retrieval loop, not the model.
func generationConfigFrom(cfg *config.Config) generation.Config {
	return generation.Config{
		Model:             cfg.LLM.Model,
		APIKey:            cfg.LLM.APIKey.Value(),
		BaseURL:           cfg.LLM.BaseURL,
		MaxTokens:         cfg.LLM.MaxTokens,
		Temperature:       cfg.LLM.Temperature,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		MaxFollowUps:      cfg.Retrieval.MaxFollowUps,
		MaxFollowUpWords:  cfg.Retrieval.MaxFollowUpWords,
	}
}
