package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Default configuration values.
const (
	defaultModel       = "gpt-4o-mini"
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultMaxTokens   = 1024
	defaultTemperature = 0.2
	defaultMaxRetries  = 3
	defaultBaseBackoff = 1 * time.Second

	defaultMaxFollowUps     = 2
	defaultMaxFollowUpWords = 15

	// Gap analysis produces at most a couple of short query lines.
	analysisMaxTokens = 256
)

// Rate limiter defaults: 50 requests per minute.
const (
	defaultRateLimit = 50.0 / 60.0
	defaultBurst     = 5
)

var (
	// ErrNotConfigured indicates the client is missing required credentials.
	ErrNotConfigured = errors.New("llm not configured")
	// ErrEmptyResponse indicates the model returned no usable text.
	ErrEmptyResponse = errors.New("empty response from model")
)

// Config holds LLM client configuration.
type Config struct {
	Model             string  `json:"model"`
	APIKey            string  `json:"-"` // Never serialize API keys
	BaseURL           string  `json:"base_url"`
	MaxTokens         int     `json:"max_tokens"`
	Temperature       float64 `json:"temperature"`
	MaxRetries        int     `json:"max_retries"`
	RequestsPerMinute int     `json:"requests_per_minute"`

	// Gap analysis parsing bounds.
	MaxFollowUps     int `json:"max_follow_ups"`
	MaxFollowUpWords int `json:"max_follow_up_words"`
}

// ApplyDefaults fills in default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Temperature <= 0 {
		c.Temperature = defaultTemperature
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.MaxFollowUps <= 0 {
		c.MaxFollowUps = defaultMaxFollowUps
	}
	if c.MaxFollowUpWords <= 0 {
		c.MaxFollowUpWords = defaultMaxFollowUpWords
	}
}

// Client calls an OpenAI-compatible chat endpoint for gap analysis and
// answer synthesis.
type Client struct {
	llm         llms.Model
	limiter     *rate.Limiter
	logger      *zap.Logger
	config      Config
	baseBackoff time.Duration
}

// NewClient creates a generation client. The API key is required; use a
// placeholder when pointing BaseURL at a local server that ignores auth.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	cfg.ApplyDefaults()

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api key required", ErrNotConfigured)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	llm, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
		openai.WithBaseURL(cfg.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("creating llm client: %w", err)
	}

	limit := rate.Limit(defaultRateLimit)
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	}

	return &Client{
		llm:         llm,
		limiter:     rate.NewLimiter(limit, defaultBurst),
		logger:      logger,
		config:      cfg,
		baseBackoff: defaultBaseBackoff,
	}, nil
}

// Available returns true if the client holds a usable model handle.
func (c *Client) Available() bool {
	return c != nil && c.llm != nil
}

// generate runs one prompt through the model with rate limiting and
// retries. langchaingo flattens HTTP status into opaque errors, so every
// failure is retried with exponential backoff until the budget runs out;
// context cancellation stops immediately.
func (c *Client) generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		out, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt,
			llms.WithMaxTokens(maxTokens),
			llms.WithTemperature(c.config.Temperature),
		)
		if err == nil {
			out = strings.TrimSpace(out)
			if out == "" {
				return "", ErrEmptyResponse
			}
			return out, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.logger.Debug("llm call failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}
