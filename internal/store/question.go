package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/qagen/internal/domain"
)

// QuestionStore defines the interface for question persistence outside the
// pipeline's claim path.
type QuestionStore interface {
	// GetByID retrieves a question by its ID.
	// Returns ErrQuestionNotFound if the question does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Question, error)

	// Vote increments the question's upvote or downvote counter.
	// Returns ErrQuestionNotFound if the question does not exist.
	Vote(ctx context.Context, id int64, up bool) error

	// WithTx returns a new QuestionStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) QuestionStore
}

// AnswerStore defines the interface for answer persistence.
type AnswerStore interface {
	// Create saves a new answer and sets its ID.
	// Returns ErrInvalidEntity if the question or author does not exist.
	Create(ctx context.Context, answer *domain.Answer) error

	// GetByID retrieves an answer by its ID.
	// Returns ErrAnswerNotFound if the answer does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Answer, error)

	// ExistsForAuthor reports whether the author already answered the question.
	ExistsForAuthor(ctx context.Context, questionID, authorID int64) (bool, error)

	// WithTx returns a new AnswerStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) AnswerStore
}

// RatingStore defines the interface for rating persistence.
type RatingStore interface {
	// Create saves a new rating and sets its ID.
	// Returns ErrInvalidEntity if the answer or author does not exist.
	Create(ctx context.Context, rating *domain.Rating) error

	// ExistsForAuthor reports whether the author already rated the answer.
	ExistsForAuthor(ctx context.Context, answerID, authorID int64) (bool, error)

	// WithTx returns a new RatingStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) RatingStore
}
