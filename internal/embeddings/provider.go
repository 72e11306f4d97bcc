package embeddings

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/lexd/internal/vectorstore"
)

var (
	// ErrEmptyInput indicates empty or nil input texts
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Provider is the interface for embedding providers.
type Provider interface {
	vectorstore.Embedder
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is the provider type: "fastembed" or "openai"
	Provider string
	// Model is the embedding model name
	Model string
	// BaseURL is the API base URL (only used for the openai provider)
	BaseURL string
	// APIKey authenticates API requests (only used for the openai provider)
	APIKey string
	// CacheDir is the model cache directory (only used for FastEmbed)
	CacheDir string
	// BatchSize is the number of texts per embedding request
	BatchSize int
	// RequestsPerMinute throttles API providers; 0 uses the provider default
	RequestsPerMinute int
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "fastembed", "":
		return NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	case "openai":
		return NewOpenAIProvider(OpenAIConfig{
			Model:             cfg.Model,
			BaseURL:           cfg.BaseURL,
			APIKey:            cfg.APIKey,
			BatchSize:         cfg.BatchSize,
			RequestsPerMinute: cfg.RequestsPerMinute,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// detectDimension returns the embedding dimension for a model name.
// Falls back to 384 if the model is unknown.
func detectDimension(model string) int {
	// Check FastEmbed model mapping first
	if dim, ok := fastEmbedModelDimension(model); ok {
		return dim
	}
	switch {
	case strings.Contains(model, "text-embedding-3-large"):
		return 3072
	case strings.Contains(model, "text-embedding-3-small"), strings.Contains(model, "ada-002"):
		return 1536
	case strings.Contains(model, "base"):
		return 768
	case strings.Contains(model, "large"):
		return 1024
	case strings.Contains(model, "small"), strings.Contains(model, "mini"):
		return 384
	default:
		return 384 // Safe default for bge-small
	}
}
