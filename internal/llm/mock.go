package llm

import (
	"context"
	"sync"
)

// MockProvider is a Provider for tests. CompleteFunc decides each answer;
// every request is recorded in Calls.
type MockProvider struct {
	NameValue    string
	CompleteFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	mu    sync.Mutex
	calls []CompletionRequest
}

// NewMockProvider returns a mock that always answers with content.
func NewMockProvider(content string) *MockProvider {
	return &MockProvider{
		CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			return &CompletionResponse{Content: content}, nil
		},
	}
}

func (m *MockProvider) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	msgs := make([]Message, len(req.Messages))
	copy(msgs, req.Messages)
	req.Messages = msgs
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	return m.CompleteFunc(ctx, req)
}

// Calls returns the recorded requests.
func (m *MockProvider) Calls() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CompletionRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

var _ Provider = (*MockProvider)(nil)
