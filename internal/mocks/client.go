package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/qagen/internal/generation"
)

// MockClient implements generation.Client for testing.
type MockClient struct {
	// CompleteFn allows test cases to mock the Complete behavior
	CompleteFn func(ctx context.Context, req generation.Request) (*generation.Response, error)

	// Texts are returned in order when CompleteFn is nil; the last one repeats.
	Texts []string
	Err   error

	mu       sync.Mutex
	requests []generation.Request
}

var _ generation.Client = (*MockClient)(nil)

// NewMockClientWithTexts creates a MockClient that answers with texts in order.
func NewMockClientWithTexts(texts ...string) *MockClient {
	return &MockClient{Texts: texts}
}

// NewMockClientWithError creates a MockClient whose every call fails with err.
func NewMockClientWithError(err error) *MockClient {
	return &MockClient{Err: err}
}

// Complete implements generation.Client.
func (m *MockClient) Complete(ctx context.Context, req generation.Request) (*generation.Response, error) {
	m.mu.Lock()
	n := len(m.requests)
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.CompleteFn != nil {
		return m.CompleteFn(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Texts) == 0 {
		return &generation.Response{FinishReason: "stop"}, nil
	}
	if n >= len(m.Texts) {
		n = len(m.Texts) - 1
	}
	return &generation.Response{Text: m.Texts[n], FinishReason: "stop"}, nil
}

// Calls returns how many times Complete was called.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of every request received so far.
func (m *MockClient) Requests() []generation.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]generation.Request(nil), m.requests...)
}
