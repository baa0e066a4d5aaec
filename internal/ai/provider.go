package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedResponse is returned when a provider answers with a body that
// cannot be decoded into the expected shape. It is never retried.
var ErrMalformedResponse = errors.New("malformed response")

// APIError is a non-200 answer from a provider API.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s API error (status %d)", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// HTTPStatus exposes the status code to retry classification.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// StoryArticle is one representative article handed to the LLM.
type StoryArticle struct {
	Source string
	Lean   string
	Title  string
	Text   string
}

// Provider is the interface that all LLM providers must implement.
type Provider interface {
	// SummarizeStory writes a neutral cross-source summary of the articles.
	SummarizeStory(ctx context.Context, articles []StoryArticle) (string, error)

	// RateImportance scores a story bundle on the seven importance
	// dimensions. Values are clamped to [0,10].
	RateImportance(ctx context.Context, bundle string) (map[string]float64, error)

	// Model returns the model identifier used for cache keys.
	Model() string
}

// ProviderConfig holds the configuration needed to create an AI provider.
type ProviderConfig struct {
	Provider string // "anthropic" | "openai"
	APIKey   string
	Model    string
	BaseURL  string // optional, overrides the public endpoint
	Timeout  time.Duration
}

// NewProvider creates the appropriate provider based on config.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicProvider(cfg), nil
	case "openai":
		return NewOpenAIProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
	}
}
