package store

import (
	"context"

	"github.com/phrazzld/qagen/internal/domain"
)

// StatsStore provides read-only aggregate views over the dataset.
type StatsStore interface {
	// Counts returns per-entity totals broken down by status. Items whose
	// failure counter reached maxFailures are reported as quarantined.
	Counts(ctx context.Context, maxFailures int) (*domain.DatasetStats, error)

	// ProcessedOffset returns the highest paragraph ID such that every usable
	// paragraph with an ID at or below it is processed.
	ProcessedOffset(ctx context.Context) (int64, error)

	// Samples returns up to n random questions that have rated answers in
	// both machine settings.
	Samples(ctx context.Context, n int) ([]domain.QASample, error)

	// EachSample streams every fully rated question to fn in ID order.
	// Iteration stops at the first error returned by fn.
	EachSample(ctx context.Context, fn func(domain.QASample) error) error
}
