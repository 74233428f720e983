package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/perla/internal/config"
)

// NewFromConfig builds the provider chain described by cfg: one provider per
// endpoint, tried in order, behind an optional rate limiter.
func NewFromConfig(ctx context.Context, cfg config.LLMConfig, log zerolog.Logger) (Provider, error) {
	endpoints := make([]Endpoint, 0, len(cfg.Endpoints))
	for _, ec := range cfg.Endpoints {
		p, err := newEndpointProvider(ctx, ec)
		if err != nil {
			return nil, fmt.Errorf("NewFromConfig: endpoint %s: %w", ec.Name, err)
		}
		endpoints = append(endpoints, Endpoint{Name: ec.Name, Provider: p})
	}

	var provider Provider = NewFallbackProvider(endpoints, log)
	if cfg.RatePerSecond > 0 {
		provider = NewRateLimitedProvider(provider, cfg.RatePerSecond, cfg.Burst)
	}
	return provider, nil
}

func newEndpointProvider(ctx context.Context, ec config.EndpointConfig) (Provider, error) {
	key := ec.APIKey()
	if key == "" {
		return nil, fmt.Errorf("missing API key (set %s)", ec.APIKeyEnv)
	}
	switch ec.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIProvider(key, ec.Model, ec.BaseURL), nil
	case config.ProviderGoogle:
		return NewGeminiProvider(ctx, key, ec.Model)
	default:
		return nil, fmt.Errorf("unsupported provider %q", ec.Provider)
	}
}
