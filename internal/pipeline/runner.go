package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/platform/logger"
	"github.com/phrazzld/qagen/internal/redact"
	"github.com/phrazzld/qagen/internal/stage"
	"github.com/phrazzld/qagen/internal/store"
	"golang.org/x/sync/errgroup"
)

// ErrItemDeadline is recorded for an item still running when its batch
// reached the commit margin of the claim lease.
var ErrItemDeadline = errors.New("item exceeded its claim deadline")

// StageResult summarizes one stage run.
type StageResult struct {
	Kind      domain.WorkKind `json:"kind"`
	Succeeded int64           `json:"succeeded"`
	Failed    int64           `json:"failed"`
	Batches   int64           `json:"batches"`
	Duration  time.Duration   `json:"duration"`
}

// Runner drives one stage until no pending item of its kind is left. Its
// counters accumulate, so use a new Runner per run.
type Runner struct {
	db     *sql.DB
	queue  store.WorkQueue
	stage  stage.Stage
	config Config
	logger *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error

	succeeded atomic.Int64
	failed    atomic.Int64
	batches   atomic.Int64
}

// NewRunner creates a Runner for the given stage.
func NewRunner(db *sql.DB, queue store.WorkQueue, st stage.Stage, config Config, logger *slog.Logger) *Runner {
	if db == nil {
		panic("db cannot be nil")
	}
	if queue == nil {
		panic("queue cannot be nil")
	}
	if st == nil {
		panic("stage cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		db:     db,
		queue:  queue,
		stage:  st,
		config: config.withDefaults(),
		logger: logger,
		sleep:  sleepContext,
	}
}

// Run starts the workers and blocks until all of them stopped. It returns
// the context's error when cancelled.
func (r *Runner) Run(ctx context.Context) (StageResult, error) {
	start := time.Now()
	log := logger.FromContextOrDefault(ctx, r.logger).With(slog.String("work_kind", string(r.stage.Kind())))
	log.Info("starting stage", slog.Int("workers", r.config.Workers))

	if p, ok := r.stage.(stage.Preparer); ok {
		if err := p.Prepare(ctx); err != nil {
			return StageResult{Kind: r.stage.Kind(), Duration: time.Since(start)},
				fmt.Errorf("failed to prepare stage %s: %w", r.stage.Kind(), err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < r.config.Workers; i++ {
		g.Go(func() error {
			return r.worker(gctx, log.With(slog.Int("worker_id", i)))
		})
	}
	err := g.Wait()

	result := StageResult{
		Kind:      r.stage.Kind(),
		Succeeded: r.succeeded.Load(),
		Failed:    r.failed.Load(),
		Batches:   r.batches.Load(),
		Duration:  time.Since(start),
	}
	log.Info("stage finished",
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"batches", result.Batches,
		"duration", result.Duration)
	return result, err
}

func (r *Runner) worker(ctx context.Context, log *slog.Logger) error {
	log.Debug("starting worker")
	kind := r.stage.Kind()

	for {
		if err := ctx.Err(); err != nil {
			log.Debug("stopping worker", "reason", err)
			return err
		}

		claimed, err := r.runBatch(ctx, log)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("batch failed", slog.String("error", err.Error()))
			if err := r.sleep(ctx, r.config.ErrorDelay); err != nil {
				return err
			}
			continue
		}
		if claimed > 0 {
			continue
		}

		// Nothing claimable: either the queue is drained or every pending
		// item is locked by another worker.
		pending, err := r.queue.HasPending(ctx, kind, r.config.MaxItemFailures)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("failed to check pending work", slog.String("error", err.Error()))
			if err := r.sleep(ctx, r.config.ErrorDelay); err != nil {
				return err
			}
			continue
		}
		if !pending {
			log.Debug("no pending work, stopping worker")
			return nil
		}
		if err := r.sleep(ctx, r.config.IdleDelay); err != nil {
			return err
		}
	}
}

type itemResult struct {
	outcome domain.Outcome
	err     error
}

// runBatch claims, processes and commits one batch. It returns the number of
// items claimed. Items must finish CommitMargin before the lease ends; the
// rest of the lease is left for applying outcomes and committing.
func (r *Runner) runBatch(ctx context.Context, log *slog.Logger) (int, error) {
	var itemDeadline time.Time
	if r.config.ClaimLease > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.ClaimLease)
		defer cancel()
		leaseEnd, _ := ctx.Deadline()
		itemDeadline = leaseEnd.Add(-r.config.CommitMargin)
	}
	kind := r.stage.Kind()

	var claimed, succeeded, failed int
	err := store.RunInTransaction(ctx, r.db, func(ctx context.Context, tx *sql.Tx) error {
		queue := r.queue.WithTx(tx)

		if err := queue.SetLease(ctx, r.config.ClaimLease); err != nil {
			return err
		}
		items, err := queue.Claim(ctx, kind, r.config.BatchSize, r.config.MaxItemFailures)
		if err != nil {
			return err
		}
		claimed = len(items)
		if claimed == 0 {
			return nil
		}
		log.Debug("claimed batch", slog.Int("items", claimed))

		results := r.process(ctx, log, items, itemDeadline)
		if err := ctx.Err(); err != nil {
			return err
		}

		for i, item := range items {
			res := results[i]
			if res.err == nil {
				res.err = store.WithSavepoint(ctx, tx, fmt.Sprintf("item_%d", i), func(ctx context.Context) error {
					return queue.Apply(ctx, res.outcome)
				})
			}
			if res.err == nil {
				succeeded++
				continue
			}
			if err := r.recordFailure(ctx, log, queue, item, res.err); err != nil {
				return err
			}
			failed++
		}
		return nil
	})
	if err != nil {
		return claimed, err
	}

	if claimed > 0 {
		r.batches.Add(1)
		r.succeeded.Add(int64(succeeded))
		r.failed.Add(int64(failed))
		log.Info("batch committed",
			slog.Int("succeeded", succeeded),
			slog.Int("failed", failed))
	}
	return claimed, nil
}

// process runs the stage on every item. One item's failure never cancels its
// siblings.
func (r *Runner) process(ctx context.Context, log *slog.Logger, items []domain.WorkItem, deadline time.Time) []itemResult {
	results := make([]itemResult, len(items))

	var g errgroup.Group
	g.SetLimit(r.config.ItemConcurrency)
	for i, item := range items {
		g.Go(func() error {
			results[i] = r.processItem(ctx, log, item, deadline)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// processItem runs the stage on one item. An item still running at deadline
// is abandoned and fails with ErrItemDeadline. A zero deadline waits for the
// stage.
func (r *Runner) processItem(ctx context.Context, log *slog.Logger, item domain.WorkItem, deadline time.Time) itemResult {
	ictx := logger.WithLogger(ctx, log.With(slog.Int64("item_id", item.ID)))
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		ictx, cancel = context.WithDeadline(ictx, deadline)
		defer cancel()
	}

	done := make(chan itemResult, 1)
	go func() {
		out, err := r.stage.Process(ictx, item)
		done <- itemResult{outcome: out, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && ctx.Err() == nil && errors.Is(ictx.Err(), context.DeadlineExceeded) {
			res.err = fmt.Errorf("%w: %w", ErrItemDeadline, res.err)
		}
		return res
	case <-ictx.Done():
		select {
		case res := <-done:
			if res.err == nil {
				return res
			}
		default:
		}
		return itemResult{err: fmt.Errorf("%w: %w", ErrItemDeadline, ictx.Err())}
	}
}

func (r *Runner) recordFailure(
	ctx context.Context,
	log *slog.Logger,
	queue store.WorkQueue,
	item domain.WorkItem,
	cause error,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	count, err := queue.RecordFailure(ctx, r.stage.Kind(), item.ID)
	if err != nil {
		return fmt.Errorf("failed to record failure of item %d: %w", item.ID, err)
	}

	quarantined := r.config.MaxItemFailures > 0 && count >= r.config.MaxItemFailures
	attrs := []any{
		slog.Int64("item_id", item.ID),
		slog.Int("failures", count),
		slog.String("error", redact.Error(cause)),
	}
	switch {
	case quarantined:
		log.Error("item quarantined after repeated failures", attrs...)
	case errors.Is(cause, ErrItemDeadline):
		log.Warn("item exceeded claim deadline", attrs...)
	case errors.Is(cause, store.ErrConflict):
		log.Info("item already transitioned by another worker", attrs...)
	default:
		log.Warn("item failed", attrs...)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
