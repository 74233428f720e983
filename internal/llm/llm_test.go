package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/perla/internal/config"
)

func failing(err error) *MockProvider {
	return &MockProvider{
		CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			return nil, err
		},
	}
}

func TestClassifyStatus(t *testing.T) {
	base := errors.New("boom")
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"no status", 0, false},
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"bad gateway", http.StatusBadGateway, true},
		{"bad request", http.StatusBadRequest, false},
		{"unauthorized", http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyStatus(tt.status, base)
			assert.Equal(t, tt.transient, IsTransient(err))
			assert.ErrorIs(t, err, base)
		})
	}
}

func TestClassifyStatus_NoStatusRetriesOnlyNetworkErrors(t *testing.T) {
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	assert.True(t, IsTransient(classifyStatus(0, dial)))
	assert.True(t, IsTransient(classifyStatus(0, fmt.Errorf("reading body: %w", io.ErrUnexpectedEOF))))

	var syntaxErr *json.SyntaxError
	decode := fmt.Errorf("decoding response: %w", &json.SyntaxError{Offset: 3})
	err := classifyStatus(0, decode)
	assert.False(t, IsTransient(err))
	assert.ErrorAs(t, err, &syntaxErr)
}

func TestClassifyStatus_ContextErrorsAreNotTransient(t *testing.T) {
	assert.False(t, IsTransient(classifyStatus(0, context.Canceled)))
	assert.False(t, IsTransient(classifyStatus(0, fmt.Errorf("wrapped: %w", context.DeadlineExceeded))))
	assert.NoError(t, classifyStatus(500, nil))
}

func TestFallbackProvider_FirstEndpointSucceeds(t *testing.T) {
	primary := NewMockProvider(`{"message":"hola"}`)
	secondary := NewMockProvider(`{"message":"otro"}`)

	fp := NewFallbackProvider([]Endpoint{
		{Name: "primary", Provider: primary},
		{Name: "secondary", Provider: secondary},
	}, zerolog.Nop())

	resp, err := fp.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "primary", resp.Endpoint)
	assert.Len(t, primary.Calls(), 1)
	assert.Empty(t, secondary.Calls())
}

func TestFallbackProvider_TransientFailureMovesOn(t *testing.T) {
	primary := failing(&TransientError{StatusCode: 503, Err: errors.New("unavailable")})
	secondary := NewMockProvider(`{"message":"ok"}`)

	fp := NewFallbackProvider([]Endpoint{
		{Name: "primary", Provider: primary},
		{Name: "secondary", Provider: secondary},
	}, zerolog.Nop())

	resp, err := fp.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "secondary", resp.Endpoint)
	assert.Equal(t, `{"message":"ok"}`, resp.Content)
}

func TestFallbackProvider_PermanentFailureStops(t *testing.T) {
	permanent := errors.New("invalid api key")
	secondary := NewMockProvider("never")

	fp := NewFallbackProvider([]Endpoint{
		{Name: "primary", Provider: failing(permanent)},
		{Name: "secondary", Provider: secondary},
	}, zerolog.Nop())

	_, err := fp.Complete(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, permanent)
	assert.Empty(t, secondary.Calls())
}

func TestFallbackProvider_AllTransientStaysTransient(t *testing.T) {
	fp := NewFallbackProvider([]Endpoint{
		{Name: "a", Provider: failing(&TransientError{Err: errors.New("dial")})},
		{Name: "b", Provider: failing(&TransientError{StatusCode: 502, Err: errors.New("gateway")})},
	}, zerolog.Nop())

	_, err := fp.Complete(context.Background(), CompletionRequest{})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Contains(t, err.Error(), "all 2 endpoints failed")
}

func TestFallbackProvider_NoEndpoints(t *testing.T) {
	_, err := NewFallbackProvider(nil, zerolog.Nop()).Complete(context.Background(), CompletionRequest{})
	assert.Error(t, err)
}

func TestFallbackProvider_Name(t *testing.T) {
	single := NewFallbackProvider([]Endpoint{{Name: "openai", Provider: NewMockProvider("")}}, zerolog.Nop())
	assert.Equal(t, "openai", single.Name())

	multi := NewFallbackProvider([]Endpoint{
		{Name: "openai", Provider: NewMockProvider("")},
		{Name: "gemini", Provider: NewMockProvider("")},
	}, zerolog.Nop())
	assert.Equal(t, "fallback", multi.Name())
}

func TestRateLimitedProvider_PassesThrough(t *testing.T) {
	mock := NewMockProvider("hola")
	rl := NewRateLimitedProvider(mock, 100, 1)

	resp, err := rl.Complete(context.Background(), CompletionRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "hola", resp.Content)
	assert.Equal(t, "mock", rl.Name())
	require.Len(t, mock.Calls(), 1)
	assert.Equal(t, "m", mock.Calls()[0].Model)
}

func TestRateLimitedProvider_RespectsContext(t *testing.T) {
	mock := NewMockProvider("hola")
	rl := NewRateLimitedProvider(mock, 0.001, 1)

	// drain the single burst token
	_, err := rl.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = rl.Complete(ctx, CompletionRequest{})
	assert.Error(t, err)
	assert.Len(t, mock.Calls(), 1)
}

func TestMockProvider_RecordsCopies(t *testing.T) {
	mock := NewMockProvider("x")
	msgs := []Message{{Role: RoleUser, Content: "uno"}}
	_, err := mock.Complete(context.Background(), CompletionRequest{Messages: msgs})
	require.NoError(t, err)

	msgs[0].Content = "cambiado"
	assert.Equal(t, "uno", mock.Calls()[0].Messages[0].Content)
}

func TestToGeminiContents(t *testing.T) {
	system, contents := toGeminiContents([]Message{
		{Role: RoleSystem, Content: "prompt"},
		{Role: RoleSystem, Content: "selection"},
		{Role: RoleUser, Content: "hola"},
		{Role: RoleAssistant, Content: "qué tal"},
	})
	require.NotNil(t, system)
	require.Len(t, system.Parts, 2)
	assert.Equal(t, "prompt", system.Parts[0].Text)
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
}

func TestNewFromConfig_MissingKey(t *testing.T) {
	cfg := config.DefaultConfig().LLM
	cfg.Endpoints[0].APIKeyEnv = "PERLA_TEST_UNSET_KEY"

	_, err := NewFromConfig(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PERLA_TEST_UNSET_KEY")
}

func TestNewFromConfig_OpenAIWithRateLimit(t *testing.T) {
	t.Setenv("PERLA_TEST_OPENAI_KEY", "sk-test")
	cfg := config.DefaultConfig().LLM
	cfg.Endpoints[0].APIKeyEnv = "PERLA_TEST_OPENAI_KEY"

	p, err := NewFromConfig(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	_, ok := p.(*RateLimitedProvider)
	assert.True(t, ok)
	assert.Equal(t, "openai", p.Name())
}
