package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/platform/logger"
	"github.com/phrazzld/qagen/internal/store"
)

// PostgresQuestionStore implements the store.QuestionStore interface
// using a PostgreSQL database as the storage backend.
type PostgresQuestionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresQuestionStore creates a new PostgreSQL implementation of the QuestionStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresQuestionStore(db store.DBTX, logger *slog.Logger) *PostgresQuestionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresQuestionStore{
		db:     db,
		logger: logger.With(slog.String("component", "question_store")),
	}
}

// Ensure PostgresQuestionStore implements store.QuestionStore interface
var _ store.QuestionStore = (*PostgresQuestionStore)(nil)

const questionColumns = `q.id, q.paragraph_id, q.author_id, q.scope, q.context, q.text, q.turns,
	q.upvote, q.downvote, q.filtered, q.rejected, q.is_answerable_ic, q.is_answerable_zs,
	q.processed, q.failures, q.created_at`

// Create inserts a new question and sets its ID.
// Returns store.ErrInvalidEntity if the paragraph or author does not exist.
func (s *PostgresQuestionStore) Create(ctx context.Context, q *domain.Question) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := q.Validate(); err != nil {
		log.Warn("question validation failed during create",
			slog.Int64("paragraph_id", q.ParagraphID),
			slog.String("error", err.Error()))
		return err
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO questions (paragraph_id, author_id, scope, context, text, turns, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`,
		q.ParagraphID,
		q.AuthorID,
		q.Scope,
		q.Context,
		q.Text,
		q.Turns,
		q.CreatedAt,
	).Scan(&q.ID)
	if err != nil {
		log.Error("failed to create question",
			slog.Int64("paragraph_id", q.ParagraphID),
			slog.Int64("author_id", q.AuthorID),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

// GetByID implements store.QuestionStore.GetByID
func (s *PostgresQuestionStore) GetByID(ctx context.Context, id int64) (*domain.Question, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	row := s.db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions q WHERE q.id = $1`, id)
	q, err := scanQuestion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("question not found", slog.Int64("question_id", id))
			return nil, store.ErrQuestionNotFound
		}
		log.Error("failed to get question",
			slog.Int64("question_id", id),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return q, nil
}

// Vote implements store.QuestionStore.Vote
func (s *PostgresQuestionStore) Vote(ctx context.Context, id int64, up bool) error {
	query := `UPDATE questions SET downvote = downvote + 1 WHERE id = $1`
	if up {
		query = `UPDATE questions SET upvote = upvote + 1 WHERE id = $1`
	}
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to record vote: %w", MapError(err))
	}
	return CheckRowsAffected(result, store.ErrQuestionNotFound)
}

// MarkFiltered stores the filter verdict and flips filtered. The update is
// guarded on filtered = FALSE; a miss returns store.ErrConflict.
func (s *PostgresQuestionStore) MarkFiltered(ctx context.Context, id int64, verdict domain.FilterVerdict) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE questions
		SET filtered = TRUE, rejected = $2, is_answerable_ic = $3, is_answerable_zs = $4
		WHERE id = $1 AND filtered = FALSE
	`, id, verdict.Rejected(), verdict.AnswerableIC, verdict.AnswerableZS)
	if err != nil {
		return fmt.Errorf("failed to mark question filtered: %w", MapError(err))
	}
	return checkGuarded(result, "question", id)
}

// MarkProcessed flips processed for a filtered, accepted question.
// A miss returns store.ErrConflict.
func (s *PostgresQuestionStore) MarkProcessed(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE questions
		SET processed = TRUE
		WHERE id = $1 AND processed = FALSE AND filtered = TRUE AND rejected = FALSE
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark question processed: %w", MapError(err))
	}
	return checkGuarded(result, "question", id)
}

// WithTx implements store.QuestionStore.WithTx
func (s *PostgresQuestionStore) WithTx(tx *sql.Tx) store.QuestionStore {
	return s.withDB(tx)
}

func (s *PostgresQuestionStore) withDB(db store.DBTX) *PostgresQuestionStore {
	return &PostgresQuestionStore{db: db, logger: s.logger}
}

func scanQuestion(row rowScanner) (*domain.Question, error) {
	var r questionRow
	if err := row.Scan(r.dest()...); err != nil {
		return nil, err
	}
	return r.question(), nil
}

// questionRow holds a scanned question whose verdict columns are nullable.
type questionRow struct {
	q      domain.Question
	ic, zs sql.NullBool
}

// dest lists scan targets in questionColumns order.
func (r *questionRow) dest() []any {
	return []any{
		&r.q.ID,
		&r.q.ParagraphID,
		&r.q.AuthorID,
		&r.q.Scope,
		&r.q.Context,
		&r.q.Text,
		&r.q.Turns,
		&r.q.Upvote,
		&r.q.Downvote,
		&r.q.Filtered,
		&r.q.Rejected,
		&r.ic,
		&r.zs,
		&r.q.Processed,
		&r.q.Failures,
		&r.q.CreatedAt,
	}
}

func (r *questionRow) question() *domain.Question {
	q := r.q
	q.AnswerableIC = nullBoolPtr(r.ic)
	q.AnswerableZS = nullBoolPtr(r.zs)
	return &q
}

func nullBoolPtr(b sql.NullBool) *bool {
	if !b.Valid {
		return nil
	}
	v := b.Bool
	return &v
}
