package mocks

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/store"
)

// MockWorkQueue implements store.WorkQueue for testing. WithTx returns the
// same mock so calls made inside a claim transaction are tracked too.
type MockWorkQueue struct {
	ClaimFn         func(ctx context.Context, kind domain.WorkKind, n int, maxFailures int) ([]domain.WorkItem, error)
	HasPendingFn    func(ctx context.Context, kind domain.WorkKind, maxFailures int) (bool, error)
	SetLeaseFn      func(ctx context.Context, lease time.Duration) error
	ApplyFn         func(ctx context.Context, outcome domain.Outcome) error
	RecordFailureFn func(ctx context.Context, kind domain.WorkKind, id int64) (int, error)

	mu       sync.Mutex
	applied  []domain.Outcome
	failures map[int64]int
}

var _ store.WorkQueue = (*MockWorkQueue)(nil)

// Claim implements store.WorkQueue. Without ClaimFn nothing is ever pending.
func (m *MockWorkQueue) Claim(ctx context.Context, kind domain.WorkKind, n int, maxFailures int) ([]domain.WorkItem, error) {
	if m.ClaimFn != nil {
		return m.ClaimFn(ctx, kind, n, maxFailures)
	}
	return nil, nil
}

// HasPending implements store.WorkQueue.
func (m *MockWorkQueue) HasPending(ctx context.Context, kind domain.WorkKind, maxFailures int) (bool, error) {
	if m.HasPendingFn != nil {
		return m.HasPendingFn(ctx, kind, maxFailures)
	}
	return false, nil
}

// SetLease implements store.WorkQueue.
func (m *MockWorkQueue) SetLease(ctx context.Context, lease time.Duration) error {
	if m.SetLeaseFn != nil {
		return m.SetLeaseFn(ctx, lease)
	}
	return nil
}

// Apply implements store.WorkQueue and records every successful outcome.
func (m *MockWorkQueue) Apply(ctx context.Context, outcome domain.Outcome) error {
	if m.ApplyFn != nil {
		if err := m.ApplyFn(ctx, outcome); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.applied = append(m.applied, outcome)
	m.mu.Unlock()
	return nil
}

// RecordFailure implements store.WorkQueue.
func (m *MockWorkQueue) RecordFailure(ctx context.Context, kind domain.WorkKind, id int64) (int, error) {
	if m.RecordFailureFn != nil {
		return m.RecordFailureFn(ctx, kind, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures == nil {
		m.failures = make(map[int64]int)
	}
	m.failures[id]++
	return m.failures[id], nil
}

// WithTx implements store.WorkQueue.
func (m *MockWorkQueue) WithTx(tx *sql.Tx) store.WorkQueue {
	return m
}

// Applied returns a copy of the outcomes applied so far.
func (m *MockWorkQueue) Applied() []domain.Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Outcome(nil), m.applied...)
}

// Failures returns the failure count recorded for id.
func (m *MockWorkQueue) Failures(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures[id]
}
