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

// PostgresAnswerStore implements the store.AnswerStore interface
// using a PostgreSQL database as the storage backend.
type PostgresAnswerStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAnswerStore creates a new PostgreSQL implementation of the AnswerStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresAnswerStore(db store.DBTX, logger *slog.Logger) *PostgresAnswerStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresAnswerStore{
		db:     db,
		logger: logger.With(slog.String("component", "answer_store")),
	}
}

// Ensure PostgresAnswerStore implements store.AnswerStore interface
var _ store.AnswerStore = (*PostgresAnswerStore)(nil)

const answerColumns = `a.id, a.question_id, a.author_id, a.setting, a.text, a.processed, a.failures, a.created_at`

// Create implements store.AnswerStore.Create
func (s *PostgresAnswerStore) Create(ctx context.Context, a *domain.Answer) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := a.Validate(); err != nil {
		log.Warn("answer validation failed during create",
			slog.Int64("question_id", a.QuestionID),
			slog.String("error", err.Error()))
		return err
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO answers (question_id, author_id, setting, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`,
		a.QuestionID,
		a.AuthorID,
		string(a.Setting),
		a.Text,
		a.CreatedAt,
	).Scan(&a.ID)
	if err != nil {
		if IsForeignKeyViolation(err) {
			log.Warn("foreign key violation during answer creation",
				slog.Int64("question_id", a.QuestionID),
				slog.Int64("author_id", a.AuthorID))
			return fmt.Errorf("%w: question %d or author %d not found",
				store.ErrInvalidEntity, a.QuestionID, a.AuthorID)
		}
		log.Error("failed to create answer",
			slog.Int64("question_id", a.QuestionID),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

// GetByID implements store.AnswerStore.GetByID
func (s *PostgresAnswerStore) GetByID(ctx context.Context, id int64) (*domain.Answer, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	row := s.db.QueryRowContext(ctx, `SELECT `+answerColumns+` FROM answers a WHERE a.id = $1`, id)
	a, err := scanAnswer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("answer not found", slog.Int64("answer_id", id))
			return nil, store.ErrAnswerNotFound
		}
		log.Error("failed to get answer",
			slog.Int64("answer_id", id),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return a, nil
}

// ExistsForAuthor implements store.AnswerStore.ExistsForAuthor
func (s *PostgresAnswerStore) ExistsForAuthor(ctx context.Context, questionID, authorID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM answers WHERE question_id = $1 AND author_id = $2)`,
		questionID, authorID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check existing answer: %w", MapError(err))
	}
	return exists, nil
}

// MarkProcessed flips processed once the answer's rating is written.
// A miss returns store.ErrConflict.
func (s *PostgresAnswerStore) MarkProcessed(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE answers SET processed = TRUE WHERE id = $1 AND processed = FALSE`, id)
	if err != nil {
		return fmt.Errorf("failed to mark answer processed: %w", MapError(err))
	}
	return checkGuarded(result, "answer", id)
}

// WithTx implements store.AnswerStore.WithTx
func (s *PostgresAnswerStore) WithTx(tx *sql.Tx) store.AnswerStore {
	return s.withDB(tx)
}

func (s *PostgresAnswerStore) withDB(db store.DBTX) *PostgresAnswerStore {
	return &PostgresAnswerStore{db: db, logger: s.logger}
}

func scanAnswer(row rowScanner) (*domain.Answer, error) {
	var r answerRow
	if err := row.Scan(r.dest()...); err != nil {
		return nil, err
	}
	return r.answer(), nil
}

type answerRow struct {
	a       domain.Answer
	setting string
}

// dest lists scan targets in answerColumns order.
func (r *answerRow) dest() []any {
	return []any{
		&r.a.ID,
		&r.a.QuestionID,
		&r.a.AuthorID,
		&r.setting,
		&r.a.Text,
		&r.a.Processed,
		&r.a.Failures,
		&r.a.CreatedAt,
	}
}

func (r *answerRow) answer() *domain.Answer {
	a := r.a
	a.Setting = domain.Setting(r.setting)
	return &a
}
