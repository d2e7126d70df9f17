package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/phrazzld/qagen/internal/config"
	"github.com/phrazzld/qagen/internal/platform/logger"
	"github.com/phrazzld/qagen/internal/redact"
)

// RetryConfig bounds the retries of a RetryingClient.
type RetryConfig struct {
	// MaxAttempts is the number of consecutive transient failures tolerated
	// before giving up.
	MaxAttempts int

	// Every wait is a uniform random duration in [WaitOffset, WaitOffset+WaitWindow).
	WaitWindow time.Duration
	WaitOffset time.Duration

	// CallTimeout bounds a single attempt. Zero disables the per-call bound.
	CallTimeout time.Duration
}

// RetryConfigFromLLM extracts the retry settings of the LLM configuration.
func RetryConfigFromLLM(cfg config.LLMConfig) RetryConfig {
	return RetryConfig{
		MaxAttempts: cfg.MaxAttempts,
		WaitWindow:  cfg.WaitWindow,
		WaitOffset:  cfg.WaitOffset,
		CallTimeout: cfg.CallTimeout,
	}
}

// RetryingClient wraps a Client with bounded, jittered retries of transient
// failures. It is safe for concurrent use if the wrapped client is.
type RetryingClient struct {
	next   Client
	cfg    RetryConfig
	logger *slog.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(n int64) int64
}

// Ensure RetryingClient implements Client
var _ Client = (*RetryingClient)(nil)

// NewRetryingClient wraps next. A MaxAttempts below one is treated as one.
func NewRetryingClient(next Client, cfg RetryConfig, logger *slog.Logger) (*RetryingClient, error) {
	if next == nil {
		return nil, fmt.Errorf("%w: client cannot be nil", ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &RetryingClient{
		next:   next,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "retrying_client")),
		sleep:  sleepContext,
		jitter: rand.Int64N,
	}, nil
}

// Complete implements Client. Non-transient failures return immediately as a
// permanent *RemoteError; MaxAttempts consecutive transient failures return a
// *RemoteError carrying the last cause.
func (c *RetryingClient) Complete(ctx context.Context, req Request) (*Response, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)

	if err := req.Validate(); err != nil {
		return nil, &RemoteError{Attempts: 0, Permanent: true, Err: err}
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		resp, err := c.attempt(ctx, req)
		if err == nil {
			if attempt > 1 {
				log.Debug("remote call succeeded after retry", slog.Int("attempt", attempt))
			}
			return resp, nil
		}

		if ctx.Err() != nil {
			return nil, &RemoteError{Attempts: attempt, Permanent: true, Err: errors.Join(ctx.Err(), err)}
		}
		if !IsTransient(err) {
			log.Warn("remote call failed permanently",
				slog.Int("attempt", attempt),
				slog.String("error", redact.Error(err)))
			return nil, &RemoteError{Attempts: attempt, Permanent: true, Err: err}
		}

		lastErr = err
		if attempt == c.cfg.MaxAttempts {
			break
		}

		wait := c.wait()
		log.Warn("transient remote failure, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", c.cfg.MaxAttempts),
			slog.Duration("wait", wait),
			slog.String("error", redact.Error(err)))
		if err := c.sleep(ctx, wait); err != nil {
			return nil, &RemoteError{Attempts: attempt, Permanent: true, Err: errors.Join(err, lastErr)}
		}
	}

	log.Error("remote call retries exhausted",
		slog.Int("attempts", c.cfg.MaxAttempts),
		slog.String("error", redact.Error(lastErr)))
	return nil, &RemoteError{Attempts: c.cfg.MaxAttempts, Err: lastErr}
}

func (c *RetryingClient) attempt(ctx context.Context, req Request) (*Response, error) {
	callCtx := ctx
	if c.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
	}

	resp, err := c.next.Complete(callCtx, req)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, MarkTransient(fmt.Errorf("call timed out after %s: %w", c.cfg.CallTimeout, err))
		}
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: nil response", ErrInvalidResponse)
	}
	return resp, nil
}

func (c *RetryingClient) wait() time.Duration {
	d := c.cfg.WaitOffset
	if c.cfg.WaitWindow > 0 {
		d += time.Duration(c.jitter(int64(c.cfg.WaitWindow)))
	}
	return d
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
