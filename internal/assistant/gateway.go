// Package assistant talks to the language model and turns its replies into
// typed responses.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/perla/internal/domain"
	"github.com/dvloznov/perla/internal/llm"
)

const (
	DefaultTemperature    = 0.7
	DefaultMaxTokens      = 500
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 500 * time.Millisecond
)

// GatewayConfig tunes requests sent to the provider. Zero values take the
// package defaults.
type GatewayConfig struct {
	Model          string
	Temperature    float64
	MaxTokens      int
	MaxAttempts    int
	InitialBackoff time.Duration
}

func (c GatewayConfig) withDefaults() GatewayConfig {
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	return c
}

// Gateway sends conversations to the provider and interprets the replies.
type Gateway struct {
	provider llm.Provider
	cfg      GatewayConfig
	log      zerolog.Logger

	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGateway returns a Gateway over provider.
func NewGateway(provider llm.Provider, cfg GatewayConfig, log zerolog.Logger) *Gateway {
	return &Gateway{
		provider: provider,
		cfg:      cfg.withDefaults(),
		log:      log.With().Str("component", "assistant").Logger(),
		sleep:    sleepContext,
	}
}

// AskOption overrides request parameters for one Ask call.
type AskOption func(*askOptions)

type askOptions struct {
	maxTokens int
	model     string
}

// WithMaxTokens overrides the completion token limit.
func WithMaxTokens(n int) AskOption {
	return func(o *askOptions) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// WithModel overrides the model name.
func WithModel(m string) AskOption {
	return func(o *askOptions) {
		if m != "" {
			o.model = m
		}
	}
}

// Ask sends conv to the model, together with the system prompt and a
// description of the selected sales, and returns the interpreted reply.
// Ask never returns nil; problems are reported as a failure Response.
func (g *Gateway) Ask(ctx context.Context, conv domain.Conversation, ledger []domain.SaleRecord, sel []string, opts ...AskOption) *Response {
	o := askOptions{maxTokens: g.cfg.MaxTokens, model: g.cfg.Model}
	for _, opt := range opts {
		opt(&o)
	}

	req := llm.CompletionRequest{
		Model:       o.model,
		Messages:    buildMessages(conv, ledger, sel),
		MaxTokens:   o.maxTokens,
		Temperature: g.cfg.Temperature,
		JSONMode:    true,
	}

	start := time.Now()
	resp := g.complete(ctx, req)
	requestDuration.Observe(time.Since(start).Seconds())
	requestsTotal.WithLabelValues(string(resp.Kind)).Inc()

	g.log.Debug().
		Str("kind", string(resp.Kind)).
		Str("prompt_version", PromptVersion).
		Int("turns", len(conv)).
		Int("selected", len(sel)).
		Dur("duration", time.Since(start)).
		Msg("Assistant request finished")
	return resp
}

func (g *Gateway) complete(ctx context.Context, req llm.CompletionRequest) *Response {
	backoff := g.cfg.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return failure(ReasonCanceled, err)
		}

		out, err := g.provider.Complete(ctx, req)
		if err == nil {
			attemptsTotal.WithLabelValues("ok").Inc()
			resp := Parse(out.Content, g.log)
			resp.Endpoint = out.Endpoint
			return resp
		}
		lastErr = err

		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return failure(ReasonCanceled, err)
		}
		if !llm.IsTransient(err) {
			attemptsTotal.WithLabelValues("permanent").Inc()
			g.log.Error().Err(err).Int("attempt", attempt).Msg("Assistant request failed")
			return failure(ReasonTransport, err)
		}
		attemptsTotal.WithLabelValues("transient").Inc()

		if attempt == g.cfg.MaxAttempts {
			break
		}
		g.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", g.cfg.MaxAttempts).
			Dur("backoff", backoff).
			Msg("Assistant request failed, retrying")

		if err := g.sleep(ctx, backoff); err != nil {
			return failure(ReasonCanceled, err)
		}
		backoff *= 2
	}

	g.log.Error().Err(lastErr).Int("attempts", g.cfg.MaxAttempts).Msg("Assistant unreachable")
	return failure(ReasonTransport, fmt.Errorf("after %d attempts: %w", g.cfg.MaxAttempts, lastErr))
}

// buildMessages assembles the provider request. conv is copied, never
// modified.
func buildMessages(conv domain.Conversation, ledger []domain.SaleRecord, sel []string) []llm.Message {
	msgs := make([]llm.Message, 0, len(conv)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	if len(sel) > 0 {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: selectionPrompt(sel, ledger)})
	}
	for _, t := range conv {
		role := llm.RoleUser
		if t.Role == domain.RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: t.Content})
	}
	return msgs
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
