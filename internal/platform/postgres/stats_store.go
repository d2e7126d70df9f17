package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/platform/logger"
	"github.com/phrazzld/qagen/internal/store"
)

// PostgresStatsStore implements the store.StatsStore interface
// using a PostgreSQL database as the storage backend.
type PostgresStatsStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresStatsStore creates a new PostgreSQL implementation of the StatsStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresStatsStore(db store.DBTX, logger *slog.Logger) *PostgresStatsStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStatsStore{
		db:     db,
		logger: logger.With(slog.String("component", "stats_store")),
	}
}

// Ensure PostgresStatsStore implements store.StatsStore interface
var _ store.StatsStore = (*PostgresStatsStore)(nil)

// Counts implements store.StatsStore.Counts.
// Quarantined counts unprocessed items of every kind whose failure counter
// reached maxFailures; with maxFailures <= 0 it is always zero.
func (s *PostgresStatsStore) Counts(ctx context.Context, maxFailures int) (*domain.DatasetStats, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var st domain.DatasetStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM paragraphs),
			(SELECT COUNT(*) FROM paragraphs WHERE processed),
			(SELECT COUNT(*) FROM paragraphs WHERE is_bad),
			(SELECT COUNT(*) FROM questions),
			(SELECT COUNT(*) FROM questions WHERE filtered),
			(SELECT COUNT(*) FROM questions WHERE rejected),
			(SELECT COUNT(*) FROM questions WHERE processed),
			(SELECT COUNT(*) FROM answers),
			(SELECT COUNT(*) FROM answers WHERE processed),
			(SELECT COUNT(*) FROM ratings),
			(SELECT COUNT(*) FROM authors),
			CASE WHEN $1::int <= 0 THEN 0 ELSE
				(SELECT COUNT(*) FROM paragraphs WHERE NOT processed AND NOT is_bad AND failures >= $1::int) +
				(SELECT COUNT(*) FROM questions WHERE NOT processed AND NOT rejected AND failures >= $1::int) +
				(SELECT COUNT(*) FROM answers WHERE NOT processed AND failures >= $1::int)
			END
	`, maxFailures).Scan(
		&st.Paragraphs,
		&st.ParagraphsProcessed,
		&st.ParagraphsBad,
		&st.Questions,
		&st.QuestionsFiltered,
		&st.QuestionsRejected,
		&st.QuestionsProcessed,
		&st.Answers,
		&st.AnswersProcessed,
		&st.Ratings,
		&st.Authors,
		&st.Quarantined,
	)
	if err != nil {
		log.Error("failed to count dataset", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to count dataset: %w", MapError(err))
	}
	return &st, nil
}

// ProcessedOffset implements store.StatsStore.ProcessedOffset
func (s *PostgresStatsStore) ProcessedOffset(ctx context.Context) (int64, error) {
	var offset int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(
			(SELECT MIN(id) - 1 FROM paragraphs WHERE processed = FALSE AND is_bad = FALSE),
			(SELECT MAX(id) FROM paragraphs),
			0
		)
	`).Scan(&offset)
	if err != nil {
		return 0, fmt.Errorf("failed to compute processed offset: %w", MapError(err))
	}
	return offset, nil
}

const sampleSelect = `
	SELECT p.id, p.page_name, COALESCE(NULLIF(p.text_cleaned, ''), p.text),
		q.id, q.text, q.context,
		zs.id, zs.text, zs.value, zs.rationale,
		ic.id, ic.text, ic.value, ic.rationale
	FROM questions q
	JOIN paragraphs p ON p.id = q.paragraph_id
	JOIN LATERAL (
		SELECT a.id, a.text, r.value, r.text AS rationale
		FROM answers a JOIN ratings r ON r.answer_id = a.id
		WHERE a.question_id = q.id AND a.setting = 'zs'
		ORDER BY a.id, r.id
		LIMIT 1
	) zs ON TRUE
	JOIN LATERAL (
		SELECT a.id, a.text, r.value, r.text AS rationale
		FROM answers a JOIN ratings r ON r.answer_id = a.id
		WHERE a.question_id = q.id AND a.setting = 'ic'
		ORDER BY a.id, r.id
		LIMIT 1
	) ic ON TRUE
	WHERE q.processed = TRUE`

// Samples implements store.StatsStore.Samples
func (s *PostgresStatsStore) Samples(ctx context.Context, n int) ([]domain.QASample, error) {
	if n <= 0 {
		return nil, nil
	}
	var samples []domain.QASample
	err := s.eachSample(ctx, sampleSelect+` ORDER BY random() LIMIT $1`, []any{n}, func(qs domain.QASample) error {
		samples = append(samples, qs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return samples, nil
}

// EachSample implements store.StatsStore.EachSample
func (s *PostgresStatsStore) EachSample(ctx context.Context, fn func(domain.QASample) error) error {
	return s.eachSample(ctx, sampleSelect+` ORDER BY q.id`, nil, fn)
}

func (s *PostgresStatsStore) eachSample(
	ctx context.Context,
	query string,
	args []any,
	fn func(domain.QASample) error,
) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query samples: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		qs := domain.QASample{
			ZeroShot:  domain.SampleAnswer{Setting: domain.SettingZeroShot},
			InContext: domain.SampleAnswer{Setting: domain.SettingInContext},
		}
		err := rows.Scan(
			&qs.ParagraphID,
			&qs.PageName,
			&qs.Paragraph,
			&qs.QuestionID,
			&qs.Question,
			&qs.Context,
			&qs.ZeroShot.AnswerID,
			&qs.ZeroShot.Text,
			&qs.ZeroShot.Rating,
			&qs.ZeroShot.Rationale,
			&qs.InContext.AnswerID,
			&qs.InContext.Text,
			&qs.InContext.Rating,
			&qs.InContext.Rationale,
		)
		if err != nil {
			return fmt.Errorf("failed to scan sample: %w", err)
		}
		if err := fn(qs); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating samples: %w", MapError(err))
	}
	return nil
}
