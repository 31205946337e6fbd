package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ProviderConfig selects and decorates an inference client.
type ProviderConfig struct {
	Provider string
	APIKey   string
	Model    string
	// BaseURL overrides the chat-completions endpoint for openai/groq.
	BaseURL string

	RPS       float64
	Burst     int
	Retries   int
	CacheSize int
}

// DefaultModel returns the model used when none is configured for provider.
func DefaultModel(provider string) string {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "groq":
		return "llama-3.3-70b-versatile"
	case "gemini":
		return "gemini-2.5-flash"
	case "fake":
		return "fake"
	default:
		return "gpt-4-1106-preview"
	}
}

// New builds the provider client and applies middleware outermost-first:
// logging, cache, retry, rate limit.
func New(ctx context.Context, cfg ProviderConfig, logger *zap.Logger) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = "openai"
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel(provider)
	}

	var base Client
	switch provider {
	case "openai", "groq":
		url := strings.TrimSpace(cfg.BaseURL)
		if url == "" {
			url = OpenAIBaseURL
			if provider == "groq" {
				url = GroqBaseURL
			}
		}
		base = NewChatClient(provider, url, cfg.APIKey, model)
	case "gemini":
		g, err := NewGeminiClient(ctx, cfg.APIKey, model)
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		base = g
	case "fake":
		base = NewFakeClient()
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}

	mws := []Middleware{WithLogging(logger), WithCache(cfg.CacheSize)}
	if cfg.Retries > 0 {
		mws = append(mws, Retry(cfg.Retries+1, 300*time.Millisecond))
	}
	if cfg.RPS > 0 {
		mws = append(mws, RateLimit(cfg.RPS, cfg.Burst))
	}
	return Wrap(base, mws...), nil
}
