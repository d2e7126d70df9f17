package pipeline

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/store"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// fakeStage echoes an empty outcome for every item unless fn is set.
type fakeStage struct {
	kind domain.WorkKind
	fn   func(ctx context.Context, item domain.WorkItem) (domain.Outcome, error)

	active    atomic.Int32
	maxActive atomic.Int32

	mu        sync.Mutex
	processed []int64
}

func (s *fakeStage) Kind() domain.WorkKind { return s.kind }

func (s *fakeStage) Process(ctx context.Context, item domain.WorkItem) (domain.Outcome, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		m := s.maxActive.Load()
		if n <= m || s.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	s.mu.Lock()
	s.processed = append(s.processed, item.ID)
	s.mu.Unlock()

	if s.fn != nil {
		return s.fn(ctx, item)
	}
	return domain.Outcome{Kind: s.kind, ItemID: item.ID}, nil
}

func workItems(kind domain.WorkKind, ids ...int64) []domain.WorkItem {
	items := make([]domain.WorkItem, len(ids))
	for i, id := range ids {
		items[i] = domain.WorkItem{Kind: kind, ID: id}
	}
	return items
}

// scriptedClaims hands out the given batches per kind in order, then nothing.
func scriptedClaims(batches map[domain.WorkKind][][]domain.WorkItem) func(context.Context, domain.WorkKind, int, int) ([]domain.WorkItem, error) {
	var mu sync.Mutex
	next := make(map[domain.WorkKind]int)
	return func(ctx context.Context, kind domain.WorkKind, n int, maxFailures int) ([]domain.WorkItem, error) {
		mu.Lock()
		defer mu.Unlock()
		i := next[kind]
		if i >= len(batches[kind]) {
			return nil, nil
		}
		next[kind] = i + 1
		return batches[kind][i], nil
	}
}

type recordedSleeps struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordedSleeps) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return ctx.Err()
}

type fakeCheckpointStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeCheckpointStore() *fakeCheckpointStore {
	return &fakeCheckpointStore{values: make(map[string]string)}
}

func (s *fakeCheckpointStore) Get(ctx context.Context, key string) (*domain.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return nil, store.ErrCheckpointNotFound
	}
	return &domain.Checkpoint{Key: key, Value: v}, nil
}

func (s *fakeCheckpointStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *fakeCheckpointStore) List(ctx context.Context) ([]domain.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Checkpoint
	for k, v := range s.values {
		out = append(out, domain.Checkpoint{Key: k, Value: v})
	}
	return out, nil
}

func (s *fakeCheckpointStore) WithTx(tx *sql.Tx) store.CheckpointStore { return s }

func (s *fakeCheckpointStore) value(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

type fakeStatsStore struct {
	counts domain.DatasetStats
	offset int64
}

func (s *fakeStatsStore) Counts(ctx context.Context, maxFailures int) (*domain.DatasetStats, error) {
	c := s.counts
	return &c, nil
}

func (s *fakeStatsStore) ProcessedOffset(ctx context.Context) (int64, error) {
	return s.offset, nil
}

func (s *fakeStatsStore) Samples(ctx context.Context, n int) ([]domain.QASample, error) {
	return nil, nil
}

func (s *fakeStatsStore) EachSample(ctx context.Context, fn func(domain.QASample) error) error {
	return nil
}
