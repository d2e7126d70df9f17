package identity

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/phrazzld/qagen/internal/config"
	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/prompt"
	"github.com/phrazzld/qagen/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAuthorStore keeps authors in memory. Queued errors are returned by the
// next calls before the store behaves normally.
type fakeAuthorStore struct {
	mu         sync.Mutex
	byHash     map[string]*domain.Author
	nextID     int64
	getErrs    []error
	createErrs []error
	creates    int

	// onDuplicate inserts a competing author when a queued create error fires.
	onDuplicate func(a *domain.Author)
}

func newFakeAuthorStore() *fakeAuthorStore {
	return &fakeAuthorStore{byHash: make(map[string]*domain.Author), nextID: 1}
}

func (s *fakeAuthorStore) GetByHashForUpdate(ctx context.Context, hash string) (*domain.Author, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.getErrs) > 0 {
		err := s.getErrs[0]
		s.getErrs = s.getErrs[1:]
		return nil, err
	}
	a, ok := s.byHash[hash]
	if !ok {
		return nil, store.ErrAuthorNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *fakeAuthorStore) Create(ctx context.Context, a *domain.Author) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if len(s.createErrs) > 0 {
		err := s.createErrs[0]
		s.createErrs = s.createErrs[1:]
		if s.onDuplicate != nil && errors.Is(err, store.ErrDuplicate) {
			s.onDuplicate(a)
		}
		return err
	}
	if _, ok := s.byHash[a.Hash]; ok {
		return store.ErrAuthorExists
	}
	a.ID = s.nextID
	s.nextID++
	cp := *a
	s.byHash[a.Hash] = &cp
	return nil
}

func (s *fakeAuthorStore) WithTx(tx *sql.Tx) store.AuthorStore {
	return s
}

func (s *fakeAuthorStore) put(a *domain.Author, id int64) {
	cp := *a
	cp.ID = id
	s.byHash[a.Hash] = &cp
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

func newTestCache(t *testing.T, authors store.AuthorStore) (*Cache, sqlmock.Sqlmock, *recordedSleeps) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	c := NewCache(db, authors, config.IdentityConfig{MaxAttempts: 3, InitialBackoff: time.Second},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	sleeps := &recordedSleeps{}
	c.sleep = sleeps.sleep
	return c, mock, sleeps
}

func TestResolve_CreatesOnceAndCaches(t *testing.T) {
	authors := newFakeAuthorStore()
	c, mock, _ := newTestCache(t, authors)

	mock.ExpectBegin()
	mock.ExpectCommit()

	id, err := c.Resolve(context.Background(), "gemini-test", prompt.RateAnswer)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	// Second call is served from memory without touching the database.
	id, err = c.Resolve(context.Background(), "gemini-test", prompt.RateAnswer)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, 1, authors.creates)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolve_ReturnsExistingAuthor(t *testing.T) {
	authors := newFakeAuthorStore()
	existing, err := domain.NewModelAuthor("gemini-test", prompt.AnswerZeroShot.Key(), prompt.AnswerZeroShot.Canonical())
	require.NoError(t, err)
	authors.put(existing, 42)

	c, mock, _ := newTestCache(t, authors)
	mock.ExpectBegin()
	mock.ExpectCommit()

	id, err := c.Resolve(context.Background(), "gemini-test", prompt.AnswerZeroShot)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Zero(t, authors.creates)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolve_DistinctIdentities(t *testing.T) {
	authors := newFakeAuthorStore()
	c, mock, _ := newTestCache(t, authors)
	for i := 0; i < 3; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
	ctx := context.Background()

	a, err := c.Resolve(ctx, "model-a", prompt.AnswerZeroShot)
	require.NoError(t, err)
	b, err := c.Resolve(ctx, "model-a", prompt.AnswerInContext)
	require.NoError(t, err)
	d, err := c.Resolve(ctx, "model-b", prompt.AnswerZeroShot)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, d)
	assert.NotEqual(t, b, d)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolve_LosingRaceReadsWinner(t *testing.T) {
	authors := newFakeAuthorStore()
	authors.createErrs = []error{store.ErrAuthorExists}
	authors.onDuplicate = func(a *domain.Author) { authors.put(a, 7) }

	c, mock, sleeps := newTestCache(t, authors)
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	id, err := c.Resolve(context.Background(), "gemini-test", prompt.FilterZeroShot)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.Empty(t, sleeps.delays, "a lost race is not a failed attempt")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolve_RetriesWithExponentialBackoff(t *testing.T) {
	authors := newFakeAuthorStore()
	dbErr := errors.New("connection reset")
	authors.getErrs = []error{dbErr, dbErr}

	c, mock, sleeps := newTestCache(t, authors)
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	id, err := c.Resolve(context.Background(), "gemini-test", prompt.GenerateQuestions)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeps.delays)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolve_ExhaustionIsFatal(t *testing.T) {
	authors := newFakeAuthorStore()
	dbErr := errors.New("connection reset")
	authors.getErrs = []error{dbErr, dbErr, dbErr}

	c, mock, sleeps := newTestCache(t, authors)
	for i := 0; i < 3; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	_, err := c.Resolve(context.Background(), "gemini-test", prompt.GenerateQuestions)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResolveFailed)
	assert.ErrorIs(t, err, dbErr)
	assert.Len(t, sleeps.delays, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolve_CancelledContextStopsRetrying(t *testing.T) {
	authors := newFakeAuthorStore()
	dbErr := errors.New("connection reset")
	authors.getErrs = []error{dbErr, dbErr, dbErr}

	c, mock, _ := newTestCache(t, authors)
	c.sleep = func(ctx context.Context, d time.Duration) error { return context.Canceled }
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := c.Resolve(context.Background(), "gemini-test", prompt.GenerateQuestions)
	assert.ErrorIs(t, err, ErrResolveFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveHuman(t *testing.T) {
	authors := newFakeAuthorStore()
	c, mock, _ := newTestCache(t, authors)
	mock.ExpectBegin()
	mock.ExpectCommit()

	id, err := c.ResolveHuman(context.Background(), "  alice ")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	// Same username after trimming hits the cache.
	again, err := c.ResolveHuman(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, id, again)

	_, err = c.ResolveHuman(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrResolveFailed)
	assert.ErrorIs(t, err, domain.ErrEmptyContent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewCachePanicsOnNilDependencies(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	assert.Panics(t, func() { NewCache(nil, newFakeAuthorStore(), config.IdentityConfig{}, nil) })
	assert.Panics(t, func() { NewCache(db, nil, config.IdentityConfig{}, nil) })
	assert.NotPanics(t, func() { NewCache(db, newFakeAuthorStore(), config.IdentityConfig{}, nil) })
}
