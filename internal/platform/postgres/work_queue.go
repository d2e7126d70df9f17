package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/platform/logger"
	"github.com/phrazzld/qagen/internal/store"
)

// PostgresWorkQueue implements store.WorkQueue with FOR UPDATE SKIP LOCKED
// claims. It composes the entity stores so that an outcome's children and
// its parent transition are written through the same connection.
type PostgresWorkQueue struct {
	db        store.DBTX
	logger    *slog.Logger
	questions *PostgresQuestionStore
	answers   *PostgresAnswerStore
	ratings   *PostgresRatingStore
}

// NewPostgresWorkQueue creates a work queue over db.
// If logger is nil, a default logger will be used.
func NewPostgresWorkQueue(db store.DBTX, logger *slog.Logger) *PostgresWorkQueue {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresWorkQueue{
		db:        db,
		logger:    logger.With(slog.String("component", "work_queue")),
		questions: NewPostgresQuestionStore(db, logger),
		answers:   NewPostgresAnswerStore(db, logger),
		ratings:   NewPostgresRatingStore(db, logger),
	}
}

// Ensure PostgresWorkQueue implements store.WorkQueue interface
var _ store.WorkQueue = (*PostgresWorkQueue)(nil)

// Pending predicates per kind. $1 is the failure ceiling; values <= 0
// disable quarantine.
const (
	pendingParagraphs = `p.processed = FALSE AND p.is_bad = FALSE
		AND ($1::int <= 0 OR p.failures < $1::int)`
	pendingUnfiltered = `q.filtered = FALSE
		AND ($1::int <= 0 OR q.failures < $1::int)`
	pendingUnanswered = `q.filtered = TRUE AND q.rejected = FALSE AND q.processed = FALSE
		AND ($1::int <= 0 OR q.failures < $1::int)`
	pendingUnrated = `a.processed = FALSE
		AND ($1::int <= 0 OR a.failures < $1::int)`
)

type claimQuery struct {
	from      string
	predicate string
	orderBy   string
	lockOf    string
	table     string
}

var claimQueries = map[domain.WorkKind]claimQuery{
	domain.KindGenerateQuestions: {
		from:      `paragraphs p`,
		predicate: pendingParagraphs,
		orderBy:   `p.id`,
		lockOf:    `p`,
		table:     `paragraphs`,
	},
	domain.KindFilterQuestions: {
		from:      `questions q JOIN paragraphs p ON p.id = q.paragraph_id`,
		predicate: pendingUnfiltered,
		orderBy:   `q.id`,
		lockOf:    `q`,
		table:     `questions`,
	},
	domain.KindGenerateAnswers: {
		from:      `questions q JOIN paragraphs p ON p.id = q.paragraph_id`,
		predicate: pendingUnanswered,
		orderBy:   `q.id`,
		lockOf:    `q`,
		table:     `questions`,
	},
	domain.KindGenerateRatings: {
		from: `answers a
			JOIN questions q ON q.id = a.question_id
			JOIN paragraphs p ON p.id = q.paragraph_id`,
		predicate: pendingUnrated,
		orderBy:   `a.id`,
		lockOf:    `a`,
		table:     `answers`,
	},
}

func (c claimQuery) selectColumns() string {
	switch c.lockOf {
	case "a":
		return answerColumns + ", " + questionColumns + ", " + paragraphColumns
	case "q":
		return questionColumns + ", " + paragraphColumns
	default:
		return paragraphColumns
	}
}

func lookupClaimQuery(kind domain.WorkKind) (claimQuery, error) {
	c, ok := claimQueries[kind]
	if !ok {
		return claimQuery{}, fmt.Errorf("%w: %q", domain.ErrInvalidWorkKind, kind)
	}
	return c, nil
}

// Claim implements store.WorkQueue.Claim
func (s *PostgresWorkQueue) Claim(
	ctx context.Context,
	kind domain.WorkKind,
	n int,
	maxFailures int,
) ([]domain.WorkItem, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	c, err := lookupClaimQuery(kind)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s
		ORDER BY %s
		LIMIT $2
		FOR UPDATE OF %s SKIP LOCKED
	`, c.selectColumns(), c.from, c.predicate, c.orderBy, c.lockOf)

	rows, err := s.db.QueryContext(ctx, query, maxFailures, n)
	if err != nil {
		log.Error("failed to claim work",
			slog.String("work_kind", string(kind)),
			slog.String("error", err.Error()))
		return nil, store.NewStoreError(string(kind), "claim", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	items := make([]domain.WorkItem, 0, n)
	for rows.Next() {
		item, err := scanWorkItem(rows, kind, c)
		if err != nil {
			return nil, store.NewStoreError(string(kind), "claim", "scan failed", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError(string(kind), "claim", "row iteration failed", MapError(err))
	}

	log.Debug("claimed work",
		slog.String("work_kind", string(kind)),
		slog.Int("requested", n),
		slog.Int("claimed", len(items)))
	return items, nil
}

func scanWorkItem(rows *sql.Rows, kind domain.WorkKind, c claimQuery) (domain.WorkItem, error) {
	var (
		p  domain.Paragraph
		qr questionRow
		ar answerRow
	)
	var dest []any
	switch c.lockOf {
	case "a":
		dest = append(dest, ar.dest()...)
		dest = append(dest, qr.dest()...)
	case "q":
		dest = append(dest, qr.dest()...)
	}
	dest = append(dest, paragraphDest(&p)...)

	if err := rows.Scan(dest...); err != nil {
		return domain.WorkItem{}, err
	}

	item := domain.WorkItem{Kind: kind, Paragraph: &p}
	switch c.lockOf {
	case "a":
		item.Answer = ar.answer()
		item.Question = qr.question()
		item.ID = item.Answer.ID
	case "q":
		item.Question = qr.question()
		item.ID = item.Question.ID
	default:
		item.ID = p.ID
	}
	return item, nil
}

// HasPending implements store.WorkQueue.HasPending
func (s *PostgresWorkQueue) HasPending(ctx context.Context, kind domain.WorkKind, maxFailures int) (bool, error) {
	c, err := lookupClaimQuery(kind)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s)`, c.from, c.predicate)

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, maxFailures).Scan(&exists); err != nil {
		return false, store.NewStoreError(string(kind), "has_pending", "query failed", MapError(err))
	}
	return exists, nil
}

// SetLease implements store.WorkQueue.SetLease
func (s *PostgresWorkQueue) SetLease(ctx context.Context, lease time.Duration) error {
	if lease <= 0 {
		return nil
	}
	ms := strconv.FormatInt(lease.Milliseconds(), 10)
	if _, err := s.db.ExecContext(ctx,
		`SELECT set_config('idle_in_transaction_session_timeout', $1, true)`, ms); err != nil {
		return fmt.Errorf("failed to set claim lease: %w", MapError(err))
	}
	return nil
}

// Apply implements store.WorkQueue.Apply
func (s *PostgresWorkQueue) Apply(ctx context.Context, outcome domain.Outcome) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := outcome.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	var err error
	switch outcome.Kind {
	case domain.KindGenerateQuestions:
		err = s.applyQuestions(ctx, outcome)
	case domain.KindFilterQuestions:
		err = s.questions.MarkFiltered(ctx, outcome.ItemID, *outcome.Verdict)
	case domain.KindGenerateAnswers:
		err = s.applyAnswers(ctx, outcome)
	case domain.KindGenerateRatings:
		err = s.applyRating(ctx, outcome)
	}
	if err != nil {
		log.Warn("failed to apply outcome",
			slog.String("work_kind", string(outcome.Kind)),
			slog.Int64("item_id", outcome.ItemID),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}

func (s *PostgresWorkQueue) applyQuestions(ctx context.Context, outcome domain.Outcome) error {
	for _, q := range outcome.Questions {
		if err := s.questions.Create(ctx, q); err != nil {
			return err
		}
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE paragraphs SET processed = TRUE WHERE id = $1 AND processed = FALSE`, outcome.ItemID)
	if err != nil {
		return fmt.Errorf("failed to mark paragraph processed: %w", MapError(err))
	}
	return checkGuarded(result, "paragraph", outcome.ItemID)
}

func (s *PostgresWorkQueue) applyAnswers(ctx context.Context, outcome domain.Outcome) error {
	for _, a := range outcome.Answers {
		if err := s.answers.Create(ctx, a); err != nil {
			return err
		}
	}
	return s.questions.MarkProcessed(ctx, outcome.ItemID)
}

func (s *PostgresWorkQueue) applyRating(ctx context.Context, outcome domain.Outcome) error {
	if err := s.ratings.Create(ctx, outcome.Rating); err != nil {
		return err
	}
	return s.answers.MarkProcessed(ctx, outcome.ItemID)
}

// RecordFailure implements store.WorkQueue.RecordFailure
func (s *PostgresWorkQueue) RecordFailure(ctx context.Context, kind domain.WorkKind, id int64) (int, error) {
	c, err := lookupClaimQuery(kind)
	if err != nil {
		return 0, err
	}

	var failures int
	err = s.db.QueryRowContext(ctx,
		fmt.Sprintf(`UPDATE %s SET failures = failures + 1 WHERE id = $1 RETURNING failures`, c.table),
		id,
	).Scan(&failures)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s %d", store.ErrNotFound, c.table, id)
		}
		return 0, store.NewStoreError(string(kind), "record_failure", "update failed", MapError(err))
	}
	return failures, nil
}

// WithTx implements store.WorkQueue.WithTx
func (s *PostgresWorkQueue) WithTx(tx *sql.Tx) store.WorkQueue {
	return &PostgresWorkQueue{
		db:        tx,
		logger:    s.logger,
		questions: s.questions.withDB(tx),
		answers:   s.answers.withDB(tx),
		ratings:   s.ratings.withDB(tx),
	}
}
