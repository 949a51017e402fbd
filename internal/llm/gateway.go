package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/nikhilbhutani/audiobookai/internal/config"
	"github.com/nikhilbhutani/audiobookai/internal/upstream"
)

type gateway struct {
	providers        map[string]Provider
	models           map[string]string
	defaultProvider  string
	fallbackProvider string
	maxRetries       int
	retryDelay       time.Duration
}

func NewGateway(cfg config.LLMConfig) Gateway {
	g := &gateway{
		providers:        make(map[string]Provider),
		models:           make(map[string]string),
		defaultProvider:  cfg.DefaultProvider,
		fallbackProvider: cfg.FallbackProvider,
		maxRetries:       cfg.MaxRetries,
		retryDelay:       500 * time.Millisecond,
	}

	if cfg.OpenAIKey != "" {
		g.providers["openai"] = NewOpenAIProvider(cfg.OpenAIKey)
	}
	if cfg.OpenRouterKey != "" {
		g.providers["openrouter"] = NewOpenRouterProvider(cfg.OpenRouterKey, cfg.OpenRouterURL)
	}
	if cfg.AnthropicKey != "" {
		g.providers["anthropic"] = NewAnthropicProvider(cfg.AnthropicKey)
	}
	if cfg.OllamaURL != "" {
		g.providers["ollama"] = NewOllamaProvider(cfg.OllamaURL)
	}
	if cfg.EnableMock {
		g.providers["mock"] = NewMockProvider()
	}

	g.models[cfg.DefaultProvider] = cfg.DefaultModel
	if cfg.FallbackProvider != "" && cfg.FallbackModel != "" {
		g.models[cfg.FallbackProvider] = cfg.FallbackModel
	}

	return g
}

// newGatewayWithProviders is used by tests to inject fake providers.
func newGatewayWithProviders(primary, fallback string, maxRetries int, providers ...Provider) *gateway {
	g := &gateway{
		providers:        make(map[string]Provider),
		models:           make(map[string]string),
		defaultProvider:  primary,
		fallbackProvider: fallback,
		maxRetries:       maxRetries,
		retryDelay:       time.Millisecond,
	}
	for _, p := range providers {
		g.providers[p.Name()] = p
	}
	return g
}

func (g *gateway) provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}

func (g *gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.defaultProvider
	}

	resp, err := g.chatWithRetry(ctx, providerName, req)
	if err != nil && ctx.Err() == nil && g.fallbackProvider != "" && g.fallbackProvider != providerName {
		slog.Warn("primary provider failed, trying fallback",
			"primary", providerName,
			"fallback", g.fallbackProvider,
			"error", err,
		)
		return g.chatWithRetry(ctx, g.fallbackProvider, req)
	}
	return resp, err
}

func (g *gateway) chatWithRetry(ctx context.Context, providerName string, req ChatRequest) (*ChatResponse, error) {
	p, err := g.provider(providerName)
	if err != nil {
		return nil, err
	}

	req.Provider = providerName
	switch {
	case providerName != g.defaultProvider && g.models[providerName] != "":
		req.Model = g.models[providerName]
	case req.Model == "":
		req.Model = g.models[providerName]
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.retryDelay
	b.MaxInterval = 20 * g.retryDelay

	attempt := 0
	resp, err := backoff.Retry(ctx, func() (*ChatResponse, error) {
		attempt++
		resp, err := p.ChatCompletion(ctx, req)
		if err != nil && !upstream.IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		return resp, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(max(g.maxRetries, 0)+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Debug("retrying LLM call", "provider", providerName, "attempt", attempt, "backoff", next, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s failed after %d attempt(s): %w", providerName, attempt, err)
	}
	return resp, nil
}

// Providers returns the configured provider names, sorted.
func (g *gateway) Providers() []string {
	names := make([]string, 0, len(g.providers))
	for name := range g.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
