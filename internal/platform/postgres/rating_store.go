package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/platform/logger"
	"github.com/phrazzld/qagen/internal/store"
)

// PostgresRatingStore implements the store.RatingStore interface
// using a PostgreSQL database as the storage backend.
type PostgresRatingStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresRatingStore creates a new PostgreSQL implementation of the RatingStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresRatingStore(db store.DBTX, logger *slog.Logger) *PostgresRatingStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRatingStore{
		db:     db,
		logger: logger.With(slog.String("component", "rating_store")),
	}
}

// Ensure PostgresRatingStore implements store.RatingStore interface
var _ store.RatingStore = (*PostgresRatingStore)(nil)

// Create implements store.RatingStore.Create
func (s *PostgresRatingStore) Create(ctx context.Context, r *domain.Rating) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := r.Validate(); err != nil {
		log.Warn("rating validation failed during create",
			slog.Int64("answer_id", r.AnswerID),
			slog.String("error", err.Error()))
		return err
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO ratings (answer_id, author_id, value, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`,
		r.AnswerID,
		r.AuthorID,
		r.Value,
		r.Text,
		r.CreatedAt,
	).Scan(&r.ID)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: answer %d or author %d not found",
				store.ErrInvalidEntity, r.AnswerID, r.AuthorID)
		}
		log.Error("failed to create rating",
			slog.Int64("answer_id", r.AnswerID),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

// ExistsForAuthor implements store.RatingStore.ExistsForAuthor
func (s *PostgresRatingStore) ExistsForAuthor(ctx context.Context, answerID, authorID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM ratings WHERE answer_id = $1 AND author_id = $2)`,
		answerID, authorID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check existing rating: %w", MapError(err))
	}
	return exists, nil
}

// WithTx implements store.RatingStore.WithTx
func (s *PostgresRatingStore) WithTx(tx *sql.Tx) store.RatingStore {
	return s.withDB(tx)
}

func (s *PostgresRatingStore) withDB(db store.DBTX) *PostgresRatingStore {
	return &PostgresRatingStore{db: db, logger: s.logger}
}
