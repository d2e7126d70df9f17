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

// PostgresParagraphStore implements the store.ParagraphStore interface
// using a PostgreSQL database as the storage backend.
type PostgresParagraphStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresParagraphStore creates a new PostgreSQL implementation of the ParagraphStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresParagraphStore(db store.DBTX, logger *slog.Logger) *PostgresParagraphStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresParagraphStore{
		db:     db,
		logger: logger.With(slog.String("component", "paragraph_store")),
	}
}

// Ensure PostgresParagraphStore implements store.ParagraphStore interface
var _ store.ParagraphStore = (*PostgresParagraphStore)(nil)

const paragraphColumns = `p.id, p.page_name, p.section_name, p.subsection_name, p.subsubsection_name,
	p.text, p.text_cleaned, p.word_count, p.is_bad, p.within_page_order,
	p.processed, p.failures, p.created_at`

// CreateBatch implements store.ParagraphStore.CreateBatch.
// Every paragraph is validated before the first insert, so an invalid row
// leaves the store untouched.
func (s *PostgresParagraphStore) CreateBatch(ctx context.Context, paragraphs []*domain.Paragraph) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(paragraphs) == 0 {
		return nil
	}

	for i, p := range paragraphs {
		if err := p.Validate(); err != nil {
			log.Warn("paragraph validation failed during batch create",
				slog.Int("index", i),
				slog.String("error", err.Error()))
			return fmt.Errorf("%w: paragraph %d: %v", store.ErrInvalidEntity, i, err)
		}
	}

	stmt, err := s.db.PrepareContext(ctx, `
		INSERT INTO paragraphs (page_name, section_name, subsection_name, subsubsection_name,
			text, text_cleaned, word_count, is_bad, within_page_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`)
	if err != nil {
		log.Error("failed to prepare paragraph insert", slog.String("error", err.Error()))
		return fmt.Errorf("failed to prepare paragraph insert: %w", MapError(err))
	}
	defer func() { _ = stmt.Close() }()

	for _, p := range paragraphs {
		err := stmt.QueryRowContext(ctx,
			p.PageName,
			p.SectionName,
			p.SubsectionName,
			p.SubsubsectionName,
			p.Text,
			p.TextCleaned,
			p.WordCount,
			p.IsBad,
			p.WithinPageOrder,
		).Scan(&p.ID, &p.CreatedAt)
		if err != nil {
			log.Error("failed to insert paragraph",
				slog.String("page_name", p.PageName),
				slog.String("error", err.Error()))
			return fmt.Errorf("failed to insert paragraph: %w", MapError(err))
		}
	}

	log.Debug("paragraph batch created", slog.Int("count", len(paragraphs)))
	return nil
}

// GetByID implements store.ParagraphStore.GetByID
func (s *PostgresParagraphStore) GetByID(ctx context.Context, id int64) (*domain.Paragraph, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	row := s.db.QueryRowContext(ctx, `SELECT `+paragraphColumns+` FROM paragraphs p WHERE p.id = $1`, id)
	p, err := scanParagraph(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("paragraph not found", slog.Int64("paragraph_id", id))
			return nil, store.ErrParagraphNotFound
		}
		log.Error("failed to get paragraph",
			slog.Int64("paragraph_id", id),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return p, nil
}

// Count implements store.ParagraphStore.Count
func (s *PostgresParagraphStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM paragraphs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count paragraphs: %w", MapError(err))
	}
	return n, nil
}

// WithTx implements store.ParagraphStore.WithTx
func (s *PostgresParagraphStore) WithTx(tx *sql.Tx) store.ParagraphStore {
	return &PostgresParagraphStore{
		db:     tx,
		logger: s.logger,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParagraph(row rowScanner) (*domain.Paragraph, error) {
	var p domain.Paragraph
	if err := row.Scan(paragraphDest(&p)...); err != nil {
		return nil, err
	}
	return &p, nil
}

// paragraphDest lists scan targets in paragraphColumns order.
func paragraphDest(p *domain.Paragraph) []any {
	return []any{
		&p.ID,
		&p.PageName,
		&p.SectionName,
		&p.SubsectionName,
		&p.SubsubsectionName,
		&p.Text,
		&p.TextCleaned,
		&p.WordCount,
		&p.IsBad,
		&p.WithinPageOrder,
		&p.Processed,
		&p.Failures,
		&p.CreatedAt,
	}
}
