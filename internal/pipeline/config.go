package pipeline

import (
	"time"

	"github.com/phrazzld/qagen/internal/config"
)

// Config holds the runner and orchestrator settings.
type Config struct {
	// Workers is the number of concurrent claim loops per stage
	Workers int

	// BatchSize is the maximum number of items claimed per transaction
	BatchSize int

	// ItemConcurrency bounds how many items of one batch are processed at once
	ItemConcurrency int

	// ClaimLease bounds how long a batch may hold its claim
	ClaimLease time.Duration

	// CommitMargin is the part of the lease reserved for applying outcomes
	// and committing; items still running when it starts count as failed
	CommitMargin time.Duration

	// IdleDelay is the pause after an empty claim while other workers still
	// hold pending items
	IdleDelay time.Duration

	// ErrorDelay is the pause after a failed batch
	ErrorDelay time.Duration

	// MaxItemFailures quarantines items that failed this many times; 0 disables
	MaxItemFailures int

	// CheckpointInterval is how often progress checkpoints are written while
	// a stage runs; 0 writes them only between stages
	CheckpointInterval time.Duration
}

// DefaultConfig returns a Config with reasonable defaults
func DefaultConfig() Config {
	return Config{
		Workers:            3,
		BatchSize:          5,
		ItemConcurrency:    5,
		ClaimLease:         15 * time.Minute,
		CommitMargin:       30 * time.Second,
		IdleDelay:          2 * time.Second,
		ErrorDelay:         10 * time.Second,
		MaxItemFailures:    5,
		CheckpointInterval: 30 * time.Second,
	}
}

// ConfigFromPipeline converts the application configuration.
func ConfigFromPipeline(cfg config.PipelineConfig) Config {
	return Config{
		Workers:            cfg.Workers,
		BatchSize:          cfg.BatchSize,
		ItemConcurrency:    cfg.ItemConcurrency,
		ClaimLease:         cfg.ClaimLease,
		CommitMargin:       cfg.CommitMargin,
		IdleDelay:          cfg.IdleDelay,
		ErrorDelay:         cfg.ErrorDelay,
		MaxItemFailures:    cfg.MaxItemFailures,
		CheckpointInterval: cfg.CheckpointInterval,
	}
}

func (c Config) withDefaults() Config {
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.BatchSize < 1 {
		c.BatchSize = 1
	}
	if c.ItemConcurrency < 1 {
		c.ItemConcurrency = 1
	}
	if c.ClaimLease > 0 && (c.CommitMargin <= 0 || c.CommitMargin >= c.ClaimLease) {
		c.CommitMargin = c.ClaimLease / 10
	}
	return c
}
