package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/qagen/internal/domain"
)

// AuthorStore defines the interface for identity persistence.
type AuthorStore interface {
	// GetByHashForUpdate retrieves the author with the given hash and locks
	// its row until the surrounding transaction ends.
	// Returns ErrAuthorNotFound if no author has the hash.
	GetByHashForUpdate(ctx context.Context, hash string) (*domain.Author, error)

	// Create inserts a new author and sets its ID.
	// Returns ErrAuthorExists if another author already owns the hash.
	Create(ctx context.Context, author *domain.Author) error

	// WithTx returns a new AuthorStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) AuthorStore
}
