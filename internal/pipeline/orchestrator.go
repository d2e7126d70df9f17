package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/platform/logger"
	"github.com/phrazzld/qagen/internal/stage"
	"github.com/phrazzld/qagen/internal/store"
)

// RunReport summarizes one pass over all configured stages.
type RunReport struct {
	RunID  string        `json:"run_id"`
	Stages []StageResult `json:"stages"`
}

// Orchestrator runs the configured stages in pipeline order.
type Orchestrator struct {
	db          *sql.DB
	queue       store.WorkQueue
	checkpoints store.CheckpointStore
	stats       store.StatsStore
	stages      map[domain.WorkKind]stage.Stage
	config      Config
	logger      *slog.Logger

	// checkpointMu serializes progress writes from the ticker and the stage loop
	checkpointMu sync.Mutex

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewOrchestrator creates an Orchestrator. At most one stage per kind may be
// given; kinds without a stage are skipped.
func NewOrchestrator(
	db *sql.DB,
	queue store.WorkQueue,
	checkpoints store.CheckpointStore,
	stats store.StatsStore,
	stages []stage.Stage,
	config Config,
	logger *slog.Logger,
) (*Orchestrator, error) {
	if db == nil || queue == nil || checkpoints == nil || stats == nil {
		return nil, errors.New("orchestrator dependencies cannot be nil")
	}
	if len(stages) == 0 {
		return nil, errors.New("at least one stage is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	byKind := make(map[domain.WorkKind]stage.Stage, len(stages))
	for _, st := range stages {
		kind := st.Kind()
		if !kind.Valid() {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidWorkKind, kind)
		}
		if _, dup := byKind[kind]; dup {
			return nil, fmt.Errorf("duplicate stage %s", kind)
		}
		byKind[kind] = st
	}

	return &Orchestrator{
		db:          db,
		queue:       queue,
		checkpoints: checkpoints,
		stats:       stats,
		stages:      byKind,
		config:      config.withDefaults(),
		logger:      logger.With(slog.String("component", "orchestrator")),
		sleep:       sleepContext,
		now:         time.Now,
	}, nil
}

// Run executes every configured stage once, strictly in pipeline order. A
// stage that returns an error stops the run.
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{RunID: uuid.NewString()}
	log := logger.FromContextOrDefault(ctx, o.logger).With(slog.String("run_id", report.RunID))
	ctx = logger.WithLogger(ctx, log)

	if err := o.setCheckpoint(ctx, domain.CheckpointLastRunID, report.RunID); err != nil {
		return nil, err
	}
	if err := o.setCheckpoint(ctx, domain.CheckpointLastRunStartedAt, o.now().UTC().Format(time.RFC3339)); err != nil {
		return nil, err
	}
	log.Info("pipeline run started")

	tickerCtx, stopTicker := context.WithCancel(ctx)
	var tickerDone sync.WaitGroup
	if o.config.CheckpointInterval > 0 {
		tickerDone.Add(1)
		go func() {
			defer tickerDone.Done()
			o.checkpointLoop(tickerCtx, log)
		}()
	}
	defer func() {
		stopTicker()
		tickerDone.Wait()
	}()

	for _, kind := range domain.StageOrder {
		st, ok := o.stages[kind]
		if !ok {
			continue
		}

		runner := NewRunner(o.db, o.queue, st, o.config, log)
		result, err := runner.Run(ctx)
		report.Stages = append(report.Stages, result)

		if cerr := o.writeStageCheckpoints(ctx, result); cerr != nil {
			log.Error("failed to write stage checkpoints", slog.String("error", cerr.Error()))
		}
		if perr := o.WriteProgress(ctx); perr != nil {
			log.Error("failed to write progress checkpoints", slog.String("error", perr.Error()))
		}
		if err != nil {
			return report, fmt.Errorf("stage %s: %w", kind, err)
		}
	}

	log.Info("pipeline run finished")
	return report, nil
}

// RunContinuously repeats Run, pausing pollInterval between runs, until ctx
// is cancelled. Failed runs are logged and retried on the next poll.
func (o *Orchestrator) RunContinuously(ctx context.Context, pollInterval time.Duration) error {
	log := logger.FromContextOrDefault(ctx, o.logger)
	for {
		if _, err := o.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("pipeline run failed", slog.String("error", err.Error()))
		}
		if err := o.sleep(ctx, pollInterval); err != nil {
			return err
		}
	}
}

// WriteProgress refreshes the paragraph progress checkpoints from the store.
func (o *Orchestrator) WriteProgress(ctx context.Context) error {
	counts, err := o.stats.Counts(ctx, o.config.MaxItemFailures)
	if err != nil {
		return fmt.Errorf("failed to count progress: %w", err)
	}
	offset, err := o.stats.ProcessedOffset(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute processed offset: %w", err)
	}

	o.checkpointMu.Lock()
	defer o.checkpointMu.Unlock()
	for key, value := range map[string]int64{
		domain.CheckpointParagraphsTotal:     counts.Paragraphs,
		domain.CheckpointParagraphsProcessed: counts.ParagraphsProcessed,
		domain.CheckpointProcessedOffset:     offset,
	} {
		if err := o.checkpoints.Set(ctx, key, strconv.FormatInt(value, 10)); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) writeStageCheckpoints(ctx context.Context, result StageResult) error {
	o.checkpointMu.Lock()
	defer o.checkpointMu.Unlock()

	values := []struct{ field, value string }{
		{"succeeded", strconv.FormatInt(result.Succeeded, 10)},
		{"failed", strconv.FormatInt(result.Failed, 10)},
		{"finished_at", o.now().UTC().Format(time.RFC3339)},
	}
	for _, v := range values {
		if err := o.checkpoints.Set(ctx, domain.StageCheckpointKey(result.Kind, v.field), v.value); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) setCheckpoint(ctx context.Context, key, value string) error {
	o.checkpointMu.Lock()
	defer o.checkpointMu.Unlock()
	if err := o.checkpoints.Set(ctx, key, value); err != nil {
		return fmt.Errorf("failed to write checkpoint %s: %w", key, err)
	}
	return nil
}

func (o *Orchestrator) checkpointLoop(ctx context.Context, log *slog.Logger) {
	ticker := time.NewTicker(o.config.CheckpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.WriteProgress(ctx); err != nil && ctx.Err() == nil {
				log.Warn("periodic checkpoint failed", slog.String("error", err.Error()))
			}
		}
	}
}
