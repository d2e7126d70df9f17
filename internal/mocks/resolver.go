package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/qagen/internal/identity"
	"github.com/phrazzld/qagen/internal/prompt"
)

// MockResolver implements identity.Resolver for testing. By default each
// distinct (model, template key) or username gets the next id starting at 1.
type MockResolver struct {
	ResolveFn      func(ctx context.Context, model string, tmpl prompt.Template) (int64, error)
	ResolveHumanFn func(ctx context.Context, username string) (int64, error)

	mu  sync.Mutex
	ids map[string]int64
}

var _ identity.Resolver = (*MockResolver)(nil)

// Resolve implements identity.Resolver.
func (m *MockResolver) Resolve(ctx context.Context, model string, tmpl prompt.Template) (int64, error) {
	if m.ResolveFn != nil {
		return m.ResolveFn(ctx, model, tmpl)
	}
	return m.idFor(model + "|" + tmpl.Key()), nil
}

// ResolveHuman implements identity.Resolver.
func (m *MockResolver) ResolveHuman(ctx context.Context, username string) (int64, error) {
	if m.ResolveHumanFn != nil {
		return m.ResolveHumanFn(ctx, username)
	}
	return m.idFor("human|" + username), nil
}

func (m *MockResolver) idFor(key string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ids == nil {
		m.ids = make(map[string]int64)
	}
	if id, ok := m.ids[key]; ok {
		return id
	}
	id := int64(len(m.ids) + 1)
	m.ids[key] = id
	return id
}
