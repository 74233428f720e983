// Package llm wraps the language model providers the assistant talks to.
package llm

import "context"

// Provider defines the interface for language model providers.
type Provider interface {
	// Complete sends a completion request and returns the response.
	// Errors worth retrying are wrapped in *TransientError.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the name of this provider.
	Name() string
}
