package service

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/platform/logger"
	"github.com/phrazzld/qagen/internal/store"
)

// DefaultSampleSize is used when a caller asks for zero samples.
const DefaultSampleSize = 5

// Progress is a snapshot of the checkpoints written by the pipeline.
type Progress struct {
	Total           int64             `json:"total"`
	Processed       int64             `json:"processed"`
	ProcessedOffset int64             `json:"processed_offset"`
	Percentage      float64           `json:"percentage"`
	Checkpoints     map[string]string `json:"checkpoints"`
	RefreshedAt     time.Time         `json:"refreshed_at"`
}

// ProgressService serves progress, statistics and samples. Checkpoints are
// cached for ttl and reloaded lazily by the first request after expiry.
type ProgressService struct {
	checkpoints store.CheckpointStore
	stats       store.StatsStore
	maxFailures int
	maxSamples  int
	ttl         time.Duration
	logger      *slog.Logger
	now         func() time.Time

	mu       sync.Mutex
	cached   *Progress
	cachedAt time.Time
}

// ProgressOptions tunes a ProgressService.
type ProgressOptions struct {
	CacheTTL    time.Duration
	MaxSamples  int
	MaxFailures int
}

// NewProgressService creates a ProgressService. It returns an error if a
// store is nil.
func NewProgressService(
	checkpoints store.CheckpointStore,
	stats store.StatsStore,
	opts ProgressOptions,
	logger *slog.Logger,
) (*ProgressService, error) {
	if checkpoints == nil {
		return nil, &ServiceError{Service: "progress", Op: "create_service", Err: errNilDependency("checkpoints")}
	}
	if stats == nil {
		return nil, &ServiceError{Service: "progress", Op: "create_service", Err: errNilDependency("stats")}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 50
	}
	return &ProgressService{
		checkpoints: checkpoints,
		stats:       stats,
		maxFailures: opts.MaxFailures,
		maxSamples:  opts.MaxSamples,
		ttl:         opts.CacheTTL,
		logger:      logger.With(slog.String("component", "progress_service")),
		now:         time.Now,
	}, nil
}

// Progress returns the cached checkpoint snapshot, reloading it when older
// than the cache TTL.
func (s *ProgressService) Progress(ctx context.Context) (*Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.cached != nil && now.Sub(s.cachedAt) < s.ttl {
		return s.cached, nil
	}

	list, err := s.checkpoints.List(ctx)
	if err != nil {
		if s.cached != nil {
			logger.FromContextOrDefault(ctx, s.logger).Warn("serving stale progress",
				slog.String("error", err.Error()))
			return s.cached, nil
		}
		return nil, wrapError("progress", "get_progress", err)
	}

	p := &Progress{
		Checkpoints: make(map[string]string, len(list)),
		RefreshedAt: now.UTC(),
	}
	for _, cp := range list {
		p.Checkpoints[cp.Key] = cp.Value
	}
	p.Total = parseCount(p.Checkpoints[domain.CheckpointParagraphsTotal])
	p.Processed = parseCount(p.Checkpoints[domain.CheckpointParagraphsProcessed])
	p.ProcessedOffset = parseCount(p.Checkpoints[domain.CheckpointProcessedOffset])
	if p.Total > 0 {
		p.Percentage = float64(p.Processed) / float64(p.Total) * 100
	}

	s.cached = p
	s.cachedAt = now
	return p, nil
}

// Stats returns live aggregate counts.
func (s *ProgressService) Stats(ctx context.Context) (*domain.DatasetStats, error) {
	st, err := s.stats.Counts(ctx, s.maxFailures)
	if err != nil {
		return nil, wrapError("progress", "get_stats", err)
	}
	return st, nil
}

// Samples returns up to n random fully rated questions. n is clamped to the
// configured maximum; zero selects DefaultSampleSize.
func (s *ProgressService) Samples(ctx context.Context, n int) ([]domain.QASample, error) {
	if n < 0 {
		return nil, ErrInvalidInput
	}
	if n == 0 {
		n = DefaultSampleSize
	}
	n = min(n, s.maxSamples)
	samples, err := s.stats.Samples(ctx, n)
	if err != nil {
		return nil, wrapError("progress", "get_samples", err)
	}
	if samples == nil {
		samples = []domain.QASample{}
	}
	return samples, nil
}

func parseCount(v string) int64 {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
