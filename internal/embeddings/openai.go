package embeddings

import (
	"context"
	"fmt"
	"time"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Default configuration values for the OpenAI-compatible provider.
const (
	defaultOpenAIEmbeddingModel = "text-embedding-3-small"
	defaultEmbeddingBatchSize   = 25
	defaultRequestsPerMinute    = 60
	defaultBurst                = 5 // Allow bursts of up to 5 requests
)

// OpenAIConfig holds configuration for the OpenAI-compatible provider.
type OpenAIConfig struct {
	// Model is the embedding model name.
	// Default: text-embedding-3-small
	Model string

	// BaseURL points at any OpenAI-compatible endpoint.
	// Empty uses the official API.
	BaseURL string

	// APIKey authenticates requests. Required.
	APIKey string

	// BatchSize is the number of texts per embedding request.
	// Default: 25
	BatchSize int

	// RequestsPerMinute throttles outgoing requests.
	// Default: 60
	RequestsPerMinute int
}

// OpenAIProvider generates embeddings through an OpenAI-compatible API.
//
// Ingest runs embed agreement chunks in batches, so requests are rate
// limited client-side to stay under API quotas.
type OpenAIProvider struct {
	embedder  *lcembeddings.EmbedderImpl
	limiter   *rate.Limiter
	metrics   *Metrics
	modelName string
	dimension int
}

// NewOpenAIProvider creates a provider backed by an OpenAI-compatible API.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key required", ErrInvalidConfig)
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIEmbeddingModel
	}

	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = defaultEmbeddingBatchSize
	}

	rpm := cfg.RequestsPerMinute
	if rpm == 0 {
		rpm = defaultRequestsPerMinute
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithEmbeddingModel(model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	embedder, err := lcembeddings.NewEmbedder(llm, lcembeddings.WithBatchSize(batchSize))
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return &OpenAIProvider{
		embedder:  embedder,
		limiter:   rate.NewLimiter(rate.Limit(float64(rpm)/60.0), defaultBurst),
		metrics:   NewMetrics(zap.NewNop()),
		modelName: model,
		dimension: detectDimension(model),
	}, nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		p.metrics.RecordGeneration(ctx, p.modelName, "embed_documents", time.Since(start), len(texts), genErr)
	}()

	if len(texts) == 0 {
		genErr = fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	if err := p.limiter.Wait(ctx); err != nil {
		genErr = fmt.Errorf("rate limiter: %w", err)
		return nil, genErr
	}

	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		genErr = fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		return nil, genErr
	}

	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		p.metrics.RecordGeneration(ctx, p.modelName, "embed_query", time.Since(start), 1, genErr)
	}()

	if text == "" {
		genErr = fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	if err := p.limiter.Wait(ctx); err != nil {
		genErr = fmt.Errorf("rate limiter: %w", err)
		return nil, genErr
	}

	vector, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		genErr = fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		return nil, genErr
	}

	return vector, nil
}

// Dimension returns the embedding dimension based on the configured model.
func (p *OpenAIProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op for API-backed providers.
func (p *OpenAIProvider) Close() error {
	return nil
}

// Ensure OpenAIProvider implements Provider interface.
var _ Provider = (*OpenAIProvider)(nil)
