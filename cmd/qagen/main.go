// Package main implements qagen, the command line entry point of the QA
// dataset pipeline. It loads paragraphs, runs the generation stages, serves
// the progress API and exports the finished dataset.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/qagen/internal/config"
	"github.com/phrazzld/qagen/internal/platform/logger"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// cli carries the state shared by every subcommand once the root command's
// pre-run has loaded it.
type cli struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:          "qagen",
		Short:        "Generate and rate question/answer pairs from text paragraphs",
		Long:         "qagen turns a corpus of paragraphs into a rated question/answer dataset by running four LLM stages over a shared Postgres store.",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Path to config file (default ./config.yaml if present)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Override server.log_level (debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(c),
		newServeCmd(c),
		newMigrateCmd(c),
		newLoadCmd(c),
		newExportCmd(c),
	)
	return root
}

// setup loads configuration and installs the logger. Logs go to stderr so
// that commands writing data to stdout stay pipeable.
func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := loadAppConfig(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		if _, ok := logger.ParseLevel(c.logLevel); !ok {
			return fmt.Errorf("invalid --log-level %q", c.logLevel)
		}
		cfg.Server.LogLevel = c.logLevel
	}

	l, err := logger.SetupWithWriter(cfg.Server, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	c.cfg = cfg
	c.logger = l.With(slog.String("command", cmd.Name()))
	c.logger.Debug("configuration loaded",
		slog.String("llm_provider", cfg.LLM.Provider),
		slog.String("llm_model", cfg.LLM.Model),
		slog.Int("workers", cfg.Pipeline.Workers),
		slog.String("database_url", maskDatabaseURL(cfg.Database.URL)))
	return nil
}
