package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/lexd/internal/config"
	"github.com/fyrsmithlabs/lexd/internal/vectorstore"
)

func TestCommandRegistration(t *testing.T) {
	want := []string{"serve", "ingest", "query", "version"}
	registered := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		registered[cmd.Name()] = true
	}
	for _, name := range want {
		assert.True(t, registered[name], "command %q not registered", name)
	}
}

func TestCommandHelpText(t *testing.T) {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			continue
		}
		assert.NotEmpty(t, cmd.Short, "command %q has no short description", cmd.Name())
	}
}

func TestConfigFlag(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag, "--config flag not registered")
	assert.Equal(t, "", flag.DefValue)
}

func TestIngestWatchFlag(t *testing.T) {
	flag := ingestCmd.Flags().Lookup("watch")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestQueryArgs(t *testing.T) {
	assert.Error(t, queryCmd.Args(queryCmd, nil))
	assert.Error(t, queryCmd.Args(queryCmd, []string{"a", "b"}))
	assert.NoError(t, queryCmd.Args(queryCmd, []string{"What is the purchase price?"}))
}

func TestRetrievalConfigFrom(t *testing.T) {
	cfg := &config.Config{}
	cfg.Retrieval = config.RetrievalConfig{
		MaxIterationsSimple:  3,
		MaxIterationsComplex: 5,
		FilteredFirstK:       20,
		BaseK:                25,
		KStep:                5,
		ContextCapSimple:     25,
		ContextCapComplex:    35,
		SearchTimeout:        config.Duration(10 * time.Second),
		AnalyzeTimeout:       config.Duration(30 * time.Second),
		SynthesizeTimeout:    config.Duration(time.Minute),
	}

	rc := retrievalConfigFrom(cfg)
	assert.Equal(t, 3, rc.MaxIterationsSimple)
	assert.Equal(t, 5, rc.MaxIterationsComplex)
	assert.Equal(t, 20, rc.FilteredFirstK)
	assert.Equal(t, 25, rc.BaseK)
	assert.Equal(t, 5, rc.KStep)
	assert.Equal(t, 25, rc.ContextCapSimple)
	assert.Equal(t, 35, rc.ContextCapComplex)
	assert.Equal(t, 10*time.Second, rc.SearchTimeout)
	assert.Equal(t, 30*time.Second, rc.AnalyzeTimeout)
	assert.Equal(t, time.Minute, rc.SynthesizeTimeout)
}

func TestGenerationConfigFrom(t *testing.T) {
	cfg := &config.Config{}
	cfg.LLM = config.LLMConfig{
		Model:             "gpt-4o-mini",
		APIKey:            config.Secret("sk-test"),
		BaseURL:           "https://api.openai.com/v1",
		MaxTokens:         1024,
		Temperature:       0.2,
		RequestsPerMinute: 30,
	}
	// Follow-up bounds live in the retrieval section.
	cfg.Retrieval.MaxFollowUps = 2
	cfg.Retrieval.MaxFollowUpWords = 15

	gc := generationConfigFrom(cfg)
	assert.Equal(t, "gpt-4o-mini", gc.Model)
	assert.Equal(t, "sk-test", gc.APIKey)
	assert.Equal(t, "https://api.openai.com/v1", gc.BaseURL)
	assert.Equal(t, 1024, gc.MaxTokens)
	assert.Equal(t, 0.2, gc.Temperature)
	assert.Equal(t, 30, gc.RequestsPerMinute)
	assert.Equal(t, 2, gc.MaxFollowUps)
	assert.Equal(t, 15, gc.MaxFollowUpWords)
}

func TestTelemetryConfigFrom(t *testing.T) {
	cfg := &config.Config{}
	cfg.Telemetry = config.TelemetryConfig{
		Enabled:        true,
		Endpoint:       "localhost:4317",
		Protocol:       "grpc",
		UseTLS:         false,
		SamplingRate:   0.5,
		ExportInterval: config.Duration(15 * time.Second),
	}

	tc := telemetryConfigFrom(cfg)
	assert.True(t, tc.Enabled)
	assert.Equal(t, "localhost:4317", tc.Endpoint)
	assert.Equal(t, "grpc", tc.Protocol)
	assert.Equal(t, "lexd", tc.ServiceName)
	assert.True(t, tc.Insecure, "plaintext expected when use_tls is off")
	assert.Equal(t, 0.5, tc.SamplingRate)
	assert.Equal(t, 15*time.Second, tc.MetricsInterval)
}

func TestNewLogger(t *testing.T) {
	cfg := &config.Config{}
	cfg.Logging = config.LoggingConfig{Level: "debug", Format: "console"}

	logger, err := newLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, logger)
	_ = logger.Sync()
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	cfg := &config.Config{}
	cfg.Logging = config.LoggingConfig{Level: "loud", Format: "json"}

	_, err := newLogger(cfg)
	assert.Error(t, err)
}

// collectionStore stubs vectorstore.Store for ensureCollection tests.
type collectionStore struct {
	exists    bool
	existsErr error
	createErr error
	created   []string
}

func (s *collectionStore) AddDocuments(ctx context.Context, docs []vectorstore.Document) ([]string, error) {
	return nil, nil
}

func (s *collectionStore) Search(ctx context.Context, query string, k int) ([]vectorstore.SearchResult, error) {
	return nil, nil
}

func (s *collectionStore) SearchWithFilters(ctx context.Context, query string, k int, filters map[string]interface{}) ([]vectorstore.SearchResult, error) {
	return nil, nil
}

func (s *collectionStore) DeleteDocuments(ctx context.Context, ids []string) error { return nil }

func (s *collectionStore) CreateCollection(ctx context.Context, name string, vectorSize int) error {
	s.created = append(s.created, name)
	return s.createErr
}

func (s *collectionStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	return s.exists, s.existsErr
}

func (s *collectionStore) GetCollectionInfo(ctx context.Context, name string) (*vectorstore.CollectionInfo, error) {
	return nil, nil
}

func (s *collectionStore) Close() error { return nil }

func TestEnsureCollection(t *testing.T) {
	t.Run("creates missing collection", func(t *testing.T) {
		store := &collectionStore{exists: false}
		err := ensureCollection(context.Background(), store, "lexd_chunks", 384)
		require.NoError(t, err)
		assert.Equal(t, []string{"lexd_chunks"}, store.created)
	})

	t.Run("skips existing collection", func(t *testing.T) {
		store := &collectionStore{exists: true}
		err := ensureCollection(context.Background(), store, "lexd_chunks", 384)
		require.NoError(t, err)
		assert.Empty(t, store.created)
	})

	t.Run("tolerates create race", func(t *testing.T) {
		store := &collectionStore{exists: false, createErr: vectorstore.ErrCollectionExists}
		err := ensureCollection(context.Background(), store, "lexd_chunks", 384)
		assert.NoError(t, err)
	})

	t.Run("propagates exists error", func(t *testing.T) {
		store := &collectionStore{existsErr: errors.New("connection refused")}
		err := ensureCollection(context.Background(), store, "lexd_chunks", 384)
		assert.Error(t, err)
	})

	t.Run("propagates create error", func(t *testing.T) {
		store := &collectionStore{createErr: errors.New("quota exceeded")}
		err := ensureCollection(context.Background(), store, "lexd_chunks", 384)
		assert.Error(t, err)
	})
}
