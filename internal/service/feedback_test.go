package service

import (
	"context"
	"errors"
	"testing"

	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type feedbackFixture struct {
	svc       *FeedbackService
	questions *fakeQuestionStore
	answers   *fakeAnswerStore
	ratings   *fakeRatingStore
	resolver  *mocks.MockResolver
}

func newFeedbackFixture(t *testing.T) (*feedbackFixture, func(commit bool)) {
	t.Helper()
	db, mock := newMockDB(t)
	f := &feedbackFixture{
		questions: newFakeQuestionStore(1, 2),
		answers:   newFakeAnswerStore(10),
		ratings:   &fakeRatingStore{},
		resolver:  &mocks.MockResolver{},
	}
	svc, err := NewFeedbackService(db, f.questions, f.answers, f.ratings, f.resolver, testLogger())
	require.NoError(t, err)
	f.svc = svc

	expectTx := func(commit bool) {
		mock.ExpectBegin()
		if commit {
			mock.ExpectCommit()
		} else {
			mock.ExpectRollback()
		}
	}
	t.Cleanup(func() { assert.NoError(t, mock.ExpectationsWereMet()) })
	return f, expectTx
}

func TestFeedbackService_SubmitAnswer(t *testing.T) {
	ctx := context.Background()

	t.Run("stores an unprocessed human answer", func(t *testing.T) {
		f, expectTx := newFeedbackFixture(t)
		expectTx(true)

		a, err := f.svc.SubmitAnswer(ctx, 1, "ada", "  Paris  ")
		require.NoError(t, err)
		assert.NotZero(t, a.ID)
		assert.Equal(t, domain.SettingHuman, a.Setting)
		assert.Equal(t, "Paris", a.Text)
		assert.False(t, a.Processed)
		assert.Equal(t, int64(1), a.AuthorID)
	})

	t.Run("second answer by the same contributor is refused", func(t *testing.T) {
		f, expectTx := newFeedbackFixture(t)
		expectTx(true)
		expectTx(false)

		_, err := f.svc.SubmitAnswer(ctx, 1, "ada", "Paris")
		require.NoError(t, err)
		_, err = f.svc.SubmitAnswer(ctx, 1, "ada", "Lyon")
		assert.ErrorIs(t, err, ErrAlreadySubmitted)
	})

	t.Run("another contributor may answer", func(t *testing.T) {
		f, expectTx := newFeedbackFixture(t)
		expectTx(true)
		expectTx(true)

		_, err := f.svc.SubmitAnswer(ctx, 1, "ada", "Paris")
		require.NoError(t, err)
		_, err = f.svc.SubmitAnswer(ctx, 1, "grace", "Paris")
		require.NoError(t, err)
	})

	t.Run("unknown question", func(t *testing.T) {
		f, _ := newFeedbackFixture(t)

		_, err := f.svc.SubmitAnswer(ctx, 99, "ada", "Paris")
		assert.ErrorIs(t, err, ErrQuestionNotFound)
	})

	t.Run("missing fields", func(t *testing.T) {
		f, _ := newFeedbackFixture(t)

		_, err := f.svc.SubmitAnswer(ctx, 1, " ", "Paris")
		assert.ErrorIs(t, err, ErrInvalidInput)
		_, err = f.svc.SubmitAnswer(ctx, 1, "ada", "\n")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("identity failure", func(t *testing.T) {
		f, _ := newFeedbackFixture(t)
		cause := errors.New("identity store down")
		f.resolver.ResolveHumanFn = func(ctx context.Context, username string) (int64, error) {
			return 0, cause
		}

		_, err := f.svc.SubmitAnswer(ctx, 1, "ada", "Paris")
		assert.ErrorIs(t, err, cause)
		var se *ServiceError
		assert.ErrorAs(t, err, &se)
	})
}

func TestFeedbackService_SubmitRating(t *testing.T) {
	ctx := context.Background()

	t.Run("stores a human rating", func(t *testing.T) {
		f, expectTx := newFeedbackFixture(t)
		expectTx(true)

		r, err := f.svc.SubmitRating(ctx, 10, "ada", 4, " mostly right ")
		require.NoError(t, err)
		assert.Equal(t, 4, r.Value)
		assert.Equal(t, "mostly right", r.Text)
		require.Len(t, f.ratings.ratings, 1)

		a, err := f.answers.GetByID(ctx, 10)
		require.NoError(t, err)
		assert.False(t, a.Processed)
	})

	t.Run("duplicate rating refused", func(t *testing.T) {
		f, expectTx := newFeedbackFixture(t)
		expectTx(true)
		expectTx(false)

		_, err := f.svc.SubmitRating(ctx, 10, "ada", 4, "")
		require.NoError(t, err)
		_, err = f.svc.SubmitRating(ctx, 10, "ada", 1, "")
		assert.ErrorIs(t, err, ErrAlreadySubmitted)
	})

	t.Run("value out of range", func(t *testing.T) {
		f, _ := newFeedbackFixture(t)

		_, err := f.svc.SubmitRating(ctx, 10, "ada", 6, "")
		assert.ErrorIs(t, err, ErrInvalidInput)
		_, err = f.svc.SubmitRating(ctx, 10, "ada", -1, "")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("unknown answer", func(t *testing.T) {
		f, _ := newFeedbackFixture(t)

		_, err := f.svc.SubmitRating(ctx, 77, "ada", 3, "")
		assert.ErrorIs(t, err, ErrAnswerNotFound)
	})
}

func TestFeedbackService_Vote(t *testing.T) {
	ctx := context.Background()
	f, _ := newFeedbackFixture(t)

	require.NoError(t, f.svc.Vote(ctx, 2, true))
	require.NoError(t, f.svc.Vote(ctx, 2, true))
	require.NoError(t, f.svc.Vote(ctx, 2, false))

	q, err := f.questions.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, q.Upvote)
	assert.Equal(t, 1, q.Downvote)

	assert.ErrorIs(t, f.svc.Vote(ctx, 42, true), ErrQuestionNotFound)
}

func TestNewFeedbackService_Validation(t *testing.T) {
	db, _ := newMockDB(t)
	questions := newFakeQuestionStore()
	answers := newFakeAnswerStore()
	ratings := &fakeRatingStore{}
	resolver := &mocks.MockResolver{}

	_, err := NewFeedbackService(nil, questions, answers, ratings, resolver, nil)
	assert.Error(t, err)
	_, err = NewFeedbackService(db, nil, answers, ratings, resolver, nil)
	assert.Error(t, err)
	_, err = NewFeedbackService(db, questions, answers, ratings, nil, nil)
	assert.Error(t, err)

	svc, err := NewFeedbackService(db, questions, answers, ratings, resolver, nil)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}
