package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/qagen/internal/domain"
)

// ParagraphStore defines the interface for paragraph persistence.
type ParagraphStore interface {
	// CreateBatch inserts paragraphs as pending work and sets their IDs.
	// Returns validation errors from the domain Paragraph if data is invalid.
	CreateBatch(ctx context.Context, paragraphs []*domain.Paragraph) error

	// GetByID retrieves a paragraph by its ID.
	// Returns ErrParagraphNotFound if the paragraph does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Paragraph, error)

	// Count returns the number of stored paragraphs.
	Count(ctx context.Context) (int64, error)

	// WithTx returns a new ParagraphStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ParagraphStore
}
