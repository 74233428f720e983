package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Endpoint is one configured provider in the fallback order.
type Endpoint struct {
	Name     string
	Provider Provider
}

// FallbackProvider tries its endpoints in order and moves to the next one
// only when the current one fails transiently.
type FallbackProvider struct {
	endpoints []Endpoint
	log       zerolog.Logger
}

// NewFallbackProvider returns a provider over endpoints, tried in the given order.
func NewFallbackProvider(endpoints []Endpoint, log zerolog.Logger) *FallbackProvider {
	return &FallbackProvider{endpoints: endpoints, log: log}
}

func (f *FallbackProvider) Name() string {
	if len(f.endpoints) == 1 {
		return f.endpoints[0].Name
	}
	return "fallback"
}

func (f *FallbackProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if len(f.endpoints) == 0 {
		return nil, errors.New("FallbackProvider.Complete: no endpoints configured")
	}

	var lastErr error
	for i, ep := range f.endpoints {
		resp, err := ep.Provider.Complete(ctx, req)
		if err == nil {
			resp.Endpoint = ep.Name
			return resp, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if i < len(f.endpoints)-1 {
			f.log.Warn().
				Err(err).
				Str("endpoint", ep.Name).
				Str("next_endpoint", f.endpoints[i+1].Name).
				Msg("Endpoint failed, falling back")
		}
	}

	return nil, fmt.Errorf("FallbackProvider.Complete: all %d endpoints failed: %w", len(f.endpoints), lastErr)
}

var _ Provider = (*FallbackProvider)(nil)
