package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/qagen/internal/config"
	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/identity"
	"github.com/phrazzld/qagen/internal/pipeline"
	"github.com/phrazzld/qagen/internal/platform/postgres"
	"github.com/phrazzld/qagen/internal/service"
	"github.com/phrazzld/qagen/internal/stage"
	"github.com/phrazzld/qagen/internal/store"
)

// application holds the shared dependencies of every command and releases
// them on cleanup.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	// Stores
	paragraphStore  store.ParagraphStore
	questionStore   store.QuestionStore
	answerStore     store.AnswerStore
	ratingStore     store.RatingStore
	authorStore     store.AuthorStore
	checkpointStore store.CheckpointStore
	statsStore      store.StatsStore
	workQueue       store.WorkQueue

	resolver identity.Resolver

	// Services
	progressService *service.ProgressService
	feedbackService *service.FeedbackService
}

// newApplication wires stores and services around an open database. The
// generation client is built lazily by newOrchestrator since only the run
// command needs it.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	app.paragraphStore = postgres.NewPostgresParagraphStore(db, logger)
	app.questionStore = postgres.NewPostgresQuestionStore(db, logger)
	app.answerStore = postgres.NewPostgresAnswerStore(db, logger)
	app.ratingStore = postgres.NewPostgresRatingStore(db, logger)
	app.authorStore = postgres.NewPostgresAuthorStore(db, logger)
	app.checkpointStore = postgres.NewPostgresCheckpointStore(db, logger)
	app.statsStore = postgres.NewPostgresStatsStore(db, logger)
	app.workQueue = postgres.NewPostgresWorkQueue(db, logger)

	app.resolver = identity.NewCache(db, app.authorStore, cfg.Identity, logger)

	var err error
	app.progressService, err = service.NewProgressService(
		app.checkpointStore,
		app.statsStore,
		service.ProgressOptions{
			CacheTTL:    cfg.Server.ProgressCacheTTL,
			MaxSamples:  cfg.Server.MaxSamples,
			MaxFailures: cfg.Pipeline.MaxItemFailures,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create progress service: %w", err)
	}

	app.feedbackService, err = service.NewFeedbackService(
		db,
		app.questionStore,
		app.answerStore,
		app.ratingStore,
		app.resolver,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create feedback service: %w", err)
	}

	return app, nil
}

// newOrchestrator builds the generation client and one stage per kind. An
// empty kinds runs every stage.
func (app *application) newOrchestrator(ctx context.Context, kinds []domain.WorkKind) (*pipeline.Orchestrator, error) {
	if len(kinds) == 0 {
		kinds = domain.StageOrder
	}

	client, err := newGenerationClient(ctx, app.config.LLM, app.logger)
	if err != nil {
		return nil, err
	}

	opts := stage.OptionsFromConfig(app.config.LLM, app.config.Pipeline)
	stages := make([]stage.Stage, 0, len(kinds))
	for _, kind := range kinds {
		st, err := stage.New(kind, client, app.resolver, opts, app.logger)
		if err != nil {
			return nil, err
		}
		stages = append(stages, st)
	}

	return pipeline.NewOrchestrator(
		app.db,
		app.workQueue,
		app.checkpointStore,
		app.statsStore,
		stages,
		pipeline.ConfigFromPipeline(app.config.Pipeline),
		app.logger,
	)
}

// Run serves the admin API until ctx is cancelled.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()
	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup closes the database connection.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", slog.String("error", err.Error()))
		}
	}
	app.logger.Debug("application shutdown completed")
}
