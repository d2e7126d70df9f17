package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/qagen/internal/platform/postgres/migrations"
	"github.com/pressly/goose/v3"
)

const (
	// migrationTableName matches the table used by the integration test
	// helpers so both track the same history.
	migrationTableName = "schema_migrations"

	// defaultMigrationsDir is where `migrate create` writes new files; they
	// are embedded into the binary on the next build.
	defaultMigrationsDir = "internal/platform/postgres/migrations"
)

var errUnknownMigrationCommand = errors.New("unknown migration command")

// migrationCommands lists the supported goose commands.
var migrationCommands = []string{"up", "down", "status", "version", "create"}

// slogGooseLogger adapts the goose logger interface to slog.
type slogGooseLogger struct {
	logger *slog.Logger
}

// Printf forwards goose progress messages at info level.
func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

// Fatalf logs at error level. It does not exit; errors are returned to the
// command instead.
func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

// runMigrations executes a goose command against the embedded migrations.
// create writes a new SQL file to dir and does not touch the database.
func runMigrations(ctx context.Context, db *sql.DB, command, dir string, logger *slog.Logger, args ...string) error {
	log := logger.With(
		slog.String("correlation_id", uuid.NewString()),
		slog.String("component", "migrations"),
		slog.String("migration_command", command))

	goose.SetLogger(&slogGooseLogger{logger: log})
	goose.SetTableName(migrationTableName)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	start := time.Now()
	log.Info("starting migration operation")

	var err error
	switch command {
	case "up":
		goose.SetBaseFS(migrations.FS)
		err = goose.UpContext(ctx, db, ".")
	case "down":
		goose.SetBaseFS(migrations.FS)
		err = goose.DownContext(ctx, db, ".")
	case "status":
		goose.SetBaseFS(migrations.FS)
		err = goose.StatusContext(ctx, db, ".")
	case "version":
		goose.SetBaseFS(migrations.FS)
		err = goose.VersionContext(ctx, db, ".")
	case "create":
		if len(args) == 0 || args[0] == "" {
			return errors.New("migration name is required for create")
		}
		goose.SetBaseFS(nil)
		goose.SetSequential(true)
		err = goose.Create(nil, dir, args[0], "sql")
	default:
		return fmt.Errorf("%w: %q", errUnknownMigrationCommand, command)
	}
	if err != nil {
		log.Error("migration operation failed",
			slog.String("error", err.Error()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()))
		return fmt.Errorf("migration %s failed: %w", command, err)
	}

	log.Info("migration operation completed",
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return nil
}
