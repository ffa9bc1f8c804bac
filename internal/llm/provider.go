// Package llm talks to the hosted language models that evaluate transcripts.
package llm

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"sales-call-insights-go/internal/config"
)

// Provider generates a completion for a system and user prompt pair.
type Provider interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	Name() string
}

// Options are the generation parameters shared by every provider.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	// MaxRetry bounds the total time spent retrying transient failures.
	MaxRetry time.Duration
}

// New selects a provider from configuration.
func New(cfg config.LLMConfig) (Provider, error) {
	opts := Options{
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     time.Duration(cfg.TimeoutSecs) * time.Second,
		MaxRetry:    time.Duration(cfg.MaxRetrySeconds) * time.Second,
	}

	switch cfg.Provider {
	case "openai", "":
		if cfg.APIKey == "" {
			return nil, eris.New("llm: openai api key not configured")
		}
		return NewOpenAI(cfg.BaseURL, cfg.APIKey, opts), nil
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, eris.New("llm: anthropic api key not configured")
		}
		opts.Model = cfg.AnthropicModel
		return NewAnthropic(cfg.AnthropicKey, opts), nil
	case "mock":
		return &Mock{}, nil
	default:
		return nil, eris.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
