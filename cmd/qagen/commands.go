package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/phrazzld/qagen/internal/dataset"
	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/pipeline"
	"github.com/spf13/cobra"
)

// stageAliases are the short stage names accepted by --stage.
var stageAliases = map[string]domain.WorkKind{
	"questions": domain.KindGenerateQuestions,
	"filter":    domain.KindFilterQuestions,
	"answers":   domain.KindGenerateAnswers,
	"ratings":   domain.KindGenerateRatings,
}

// openApp connects to the database and wires the application.
func (c *cli) openApp(ctx context.Context) (*application, error) {
	db, err := setupAppDatabase(ctx, c.cfg.Database, c.logger)
	if err != nil {
		return nil, err
	}
	app, err := newApplication(c.cfg, c.logger, db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return app, nil
}

const runLong = `Run executes generate_questions, filter_questions, generate_answers and
generate_ratings in order. Each stage drains its pending items before the next
starts. With --follow the pipeline is re-run every pipeline.poll_interval until
interrupted.`

func newRunCmd(c *cli) *cobra.Command {
	var (
		stages []string
		follow bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline stages until no pending work is left",
		Long:  runLong,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds, err := parseStages(stages)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			app, err := c.openApp(ctx)
			if err != nil {
				return err
			}
			defer app.cleanup()

			orch, err := app.newOrchestrator(ctx, kinds)
			if err != nil {
				return fmt.Errorf("failed to create orchestrator: %w", err)
			}

			if follow {
				err := orch.RunContinuously(ctx, c.cfg.Pipeline.PollInterval)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}

			report, err := orch.Run(ctx)
			if report != nil {
				printReport(cmd.OutOrStdout(), report)
			}
			return err
		},
	}
	cmd.Flags().StringSliceVar(&stages, "stage", nil,
		"Stages to run (questions, filter, answers, ratings or full kind names); default all")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep polling for new work until interrupted")
	return cmd
}

// parseStages converts --stage values into work kinds, dropping duplicates.
// An empty list selects every stage.
func parseStages(names []string) ([]domain.WorkKind, error) {
	seen := make(map[domain.WorkKind]bool, len(names))
	var kinds []domain.WorkKind
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		kind, ok := stageAliases[name]
		if !ok {
			var err error
			if kind, err = domain.ParseWorkKind(name); err != nil {
				return nil, err
			}
		}
		if !seen[kind] {
			seen[kind] = true
			kinds = append(kinds, kind)
		}
	}
	return kinds, nil
}

func printReport(w io.Writer, report *pipeline.RunReport) {
	fmt.Fprintf(w, "Run %s\n", report.RunID)
	for _, s := range report.Stages {
		fmt.Fprintf(w, "  %-20s succeeded=%d failed=%d batches=%d duration=%s\n",
			s.Kind, s.Succeeded, s.Failed, s.Batches, s.Duration.Round(time.Millisecond))
	}
}

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the progress and feedback API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.cleanup()
			return app.Run(cmd.Context())
		},
	}
}

func newMigrateCmd(c *cli) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:       "migrate [up|down|status|version|create NAME]",
		Short:     "Manage the database schema",
		Args:      cobra.RangeArgs(0, 2),
		ValidArgs: migrationCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) > 0 {
				command = args[0]
			}
			if command == "create" {
				return runMigrations(cmd.Context(), nil, command, dir, c.logger, args[1:]...)
			}
			if len(args) > 1 {
				return fmt.Errorf("migrate %s takes no arguments", command)
			}

			db, err := setupAppDatabase(cmd.Context(), c.cfg.Database, c.logger)
			if err != nil {
				return err
			}
			defer db.Close()
			return runMigrations(cmd.Context(), db, command, dir, c.logger)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", defaultMigrationsDir, "Directory new migrations are created in")
	return cmd
}

func newLoadCmd(c *cli) *cobra.Command {
	var batchSize int
	cmd := &cobra.Command{
		Use:   "load <csv>",
		Short: "Load source paragraphs from a CSV file (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, closeIn, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeIn()

			app, err := c.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.cleanup()

			loader := dataset.NewLoader(app.db, app.paragraphStore, app.checkpointStore, batchSize, c.logger)
			res, err := loader.Load(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("load failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d paragraphs from %d rows (%d skipped)\n",
				res.Loaded, res.Rows, res.Skipped)
			return nil
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", dataset.DefaultBatchSize, "Paragraphs inserted per statement")
	return cmd
}

func newExportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "export <csv>",
		Short: "Export every fully rated question to a CSV file (- for stdout)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.cleanup()

			out, status := cmd.OutOrStdout(), cmd.OutOrStdout()
			var f *os.File
			if args[0] != "-" {
				if f, err = os.Create(args[0]); err != nil {
					return fmt.Errorf("failed to create %s: %w", args[0], err)
				}
				out = f
			} else {
				status = cmd.ErrOrStderr()
			}

			rows, err := dataset.NewExporter(app.statsStore, c.logger).Export(cmd.Context(), out)
			if f != nil {
				if cerr := f.Close(); err == nil && cerr != nil {
					err = fmt.Errorf("failed to close %s: %w", args[0], cerr)
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(status, "Exported %d rows\n", rows)
			return nil
		},
	}
}

// openInput opens path for reading, or stdin for "-".
func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, func() { _ = f.Close() }, nil
}
