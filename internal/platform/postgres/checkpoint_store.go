package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/store"
)

// PostgresCheckpointStore implements the store.CheckpointStore interface
// on top of the metadata table.
type PostgresCheckpointStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCheckpointStore creates a new PostgreSQL implementation of the CheckpointStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresCheckpointStore(db store.DBTX, logger *slog.Logger) *PostgresCheckpointStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCheckpointStore{
		db:     db,
		logger: logger.With(slog.String("component", "checkpoint_store")),
	}
}

// Ensure PostgresCheckpointStore implements store.CheckpointStore interface
var _ store.CheckpointStore = (*PostgresCheckpointStore)(nil)

// Get implements store.CheckpointStore.Get
func (s *PostgresCheckpointStore) Get(ctx context.Context, key string) (*domain.Checkpoint, error) {
	var c domain.Checkpoint
	err := s.db.QueryRowContext(ctx,
		`SELECT key, value, updated_at FROM metadata WHERE key = $1`, key,
	).Scan(&c.Key, &c.Value, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("failed to get checkpoint %s: %w", key, MapError(err))
	}
	return &c, nil
}

// Set implements store.CheckpointStore.Set
func (s *PostgresCheckpointStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, key, value)
	if err != nil {
		s.logger.Error("failed to write checkpoint",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to set checkpoint %s: %w", key, MapError(err))
	}
	return nil
}

// List implements store.CheckpointStore.List
func (s *PostgresCheckpointStore) List(ctx context.Context) ([]domain.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value, updated_at FROM metadata ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var checkpoints []domain.Checkpoint
	for rows.Next() {
		var c domain.Checkpoint
		if err := rows.Scan(&c.Key, &c.Value, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		checkpoints = append(checkpoints, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checkpoints: %w", err)
	}
	return checkpoints, nil
}

// WithTx implements store.CheckpointStore.WithTx
func (s *PostgresCheckpointStore) WithTx(tx *sql.Tx) store.CheckpointStore {
	return &PostgresCheckpointStore{db: tx, logger: s.logger}
}
