package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/platform/logger"
	"github.com/phrazzld/qagen/internal/store"
)

// PostgresAuthorStore implements the store.AuthorStore interface
// using a PostgreSQL database as the storage backend.
type PostgresAuthorStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAuthorStore creates a new PostgreSQL implementation of the AuthorStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresAuthorStore(db store.DBTX, logger *slog.Logger) *PostgresAuthorStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresAuthorStore{
		db:     db,
		logger: logger.With(slog.String("component", "author_store")),
	}
}

// Ensure PostgresAuthorStore implements store.AuthorStore interface
var _ store.AuthorStore = (*PostgresAuthorStore)(nil)

// GetByHashForUpdate implements store.AuthorStore.GetByHashForUpdate
func (s *PostgresAuthorStore) GetByHashForUpdate(ctx context.Context, hash string) (*domain.Author, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var a domain.Author
	err := s.db.QueryRowContext(ctx, `
		SELECT id, model, template_id, prompt, username, hash, created_at
		FROM authors
		WHERE hash = $1
		FOR UPDATE
	`, hash).Scan(
		&a.ID,
		&a.Model,
		&a.TemplateID,
		&a.Prompt,
		&a.Username,
		&a.Hash,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrAuthorNotFound
		}
		log.Error("failed to get author by hash",
			slog.String("hash", hash),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return &a, nil
}

// Create implements store.AuthorStore.Create
func (s *PostgresAuthorStore) Create(ctx context.Context, a *domain.Author) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := a.Validate(); err != nil {
		return err
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO authors (model, template_id, prompt, username, hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`,
		a.Model,
		a.TemplateID,
		a.Prompt,
		a.Username,
		a.Hash,
		a.CreatedAt,
	).Scan(&a.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Debug("author hash already exists", slog.String("hash", a.Hash))
			return MapUniqueViolation(err, store.ErrAuthorExists)
		}
		log.Error("failed to create author",
			slog.String("model", a.Model),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	log.Info("author created",
		slog.Int64("author_id", a.ID),
		slog.String("model", a.Model),
		slog.String("template_id", a.TemplateID))
	return nil
}

// WithTx implements store.AuthorStore.WithTx
func (s *PostgresAuthorStore) WithTx(tx *sql.Tx) store.AuthorStore {
	return &PostgresAuthorStore{db: tx, logger: s.logger}
}
