package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/qagen/internal/config"
	"github.com/phrazzld/qagen/internal/generation"
	"github.com/phrazzld/qagen/internal/platform/gemini"
	"github.com/phrazzld/qagen/internal/platform/openai"
)

// newGenerationClient builds the configured backend wrapped in the retrying
// client every stage shares.
func newGenerationClient(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (generation.Client, error) {
	var (
		backend generation.Client
		err     error
	)
	switch cfg.Provider {
	case "gemini":
		backend, err = gemini.NewClient(ctx, cfg, logger)
	case "openai":
		backend, err = openai.NewClient(cfg, nil, logger)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", generation.ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s client: %w", cfg.Provider, err)
	}

	client, err := generation.NewRetryingClient(backend, generation.RetryConfigFromLLM(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize retrying client: %w", err)
	}
	logger.Info("generation client initialized",
		slog.String("provider", cfg.Provider),
		slog.String("model", cfg.Model))
	return client, nil
}
