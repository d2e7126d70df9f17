package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"

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

type fakeQuestionStore struct {
	mu        sync.Mutex
	questions map[int64]*domain.Question
	voteErr   error
}

func newFakeQuestionStore(ids ...int64) *fakeQuestionStore {
	s := &fakeQuestionStore{questions: make(map[int64]*domain.Question)}
	for _, id := range ids {
		s.questions[id] = &domain.Question{ID: id, ParagraphID: 1, AuthorID: 1, Text: "Who?"}
	}
	return s
}

func (s *fakeQuestionStore) GetByID(ctx context.Context, id int64) (*domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok {
		return nil, store.ErrQuestionNotFound
	}
	return q, nil
}

func (s *fakeQuestionStore) Vote(ctx context.Context, id int64, up bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.voteErr != nil {
		return s.voteErr
	}
	q, ok := s.questions[id]
	if !ok {
		return store.ErrQuestionNotFound
	}
	if up {
		q.Upvote++
	} else {
		q.Downvote++
	}
	return nil
}

func (s *fakeQuestionStore) WithTx(tx *sql.Tx) store.QuestionStore { return s }

type fakeAnswerStore struct {
	mu      sync.Mutex
	answers map[int64]*domain.Answer
	nextID  int64
}

func newFakeAnswerStore(ids ...int64) *fakeAnswerStore {
	s := &fakeAnswerStore{answers: make(map[int64]*domain.Answer), nextID: 100}
	for _, id := range ids {
		s.answers[id] = &domain.Answer{ID: id, QuestionID: 1, AuthorID: 1, Setting: domain.SettingZeroShot, Text: "x"}
	}
	return s
}

func (s *fakeAnswerStore) Create(ctx context.Context, a *domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	a.ID = s.nextID
	s.answers[a.ID] = a
	return nil
}

func (s *fakeAnswerStore) GetByID(ctx context.Context, id int64) (*domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers[id]
	if !ok {
		return nil, store.ErrAnswerNotFound
	}
	return a, nil
}

func (s *fakeAnswerStore) ExistsForAuthor(ctx context.Context, questionID, authorID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.answers {
		if a.QuestionID == questionID && a.AuthorID == authorID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeAnswerStore) WithTx(tx *sql.Tx) store.AnswerStore { return s }

type fakeRatingStore struct {
	mu      sync.Mutex
	ratings []*domain.Rating
}

func (s *fakeRatingStore) Create(ctx context.Context, r *domain.Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = int64(len(s.ratings) + 1)
	s.ratings = append(s.ratings, r)
	return nil
}

func (s *fakeRatingStore) ExistsForAuthor(ctx context.Context, answerID, authorID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.ratings {
		if r.AnswerID == answerID && r.AuthorID == authorID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeRatingStore) WithTx(tx *sql.Tx) store.RatingStore { return s }

type fakeCheckpointStore struct {
	mu      sync.Mutex
	values  map[string]string
	listErr error
	lists   int
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
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	return nil
}

func (s *fakeCheckpointStore) List(ctx context.Context) ([]domain.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]domain.Checkpoint, 0, len(s.values))
	for k, v := range s.values {
		out = append(out, domain.Checkpoint{Key: k, Value: v})
	}
	return out, nil
}

func (s *fakeCheckpointStore) WithTx(tx *sql.Tx) store.CheckpointStore { return s }

type fakeStatsStore struct {
	counts      domain.DatasetStats
	samples     []domain.QASample
	err         error
	maxFailures int
	requested   int
}

func (s *fakeStatsStore) Counts(ctx context.Context, maxFailures int) (*domain.DatasetStats, error) {
	s.maxFailures = maxFailures
	if s.err != nil {
		return nil, s.err
	}
	c := s.counts
	return &c, nil
}

func (s *fakeStatsStore) ProcessedOffset(ctx context.Context) (int64, error) {
	return 0, s.err
}

func (s *fakeStatsStore) Samples(ctx context.Context, n int) ([]domain.QASample, error) {
	s.requested = n
	if s.err != nil {
		return nil, s.err
	}
	if n < len(s.samples) {
		return s.samples[:n], nil
	}
	return s.samples, nil
}

func (s *fakeStatsStore) EachSample(ctx context.Context, fn func(domain.QASample) error) error {
	for _, qs := range s.samples {
		if err := fn(qs); err != nil {
			return err
		}
	}
	return nil
}
