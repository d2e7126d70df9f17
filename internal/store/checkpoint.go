package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/qagen/internal/domain"
)

// CheckpointStore defines the interface for key/value progress metadata.
type CheckpointStore interface {
	// Get returns the checkpoint for key.
	// Returns ErrCheckpointNotFound if the key was never written.
	Get(ctx context.Context, key string) (*domain.Checkpoint, error)

	// Set creates or overwrites the checkpoint for key.
	Set(ctx context.Context, key, value string) error

	// List returns every checkpoint ordered by key.
	List(ctx context.Context) ([]domain.Checkpoint, error)

	// WithTx returns a new CheckpointStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) CheckpointStore
}
