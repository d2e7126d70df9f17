package generation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedClient struct {
	mu     sync.Mutex
	calls  int
	script func(ctx context.Context, call int) (*Response, error)
}

func (c *scriptedClient) Complete(ctx context.Context, req Request) (*Response, error) {
	c.mu.Lock()
	c.calls++
	call := c.calls
	c.mu.Unlock()
	return c.script(ctx, call)
}

func newTestRetrying(t *testing.T, next Client, cfg RetryConfig) (*RetryingClient, *[]time.Duration) {
	t.Helper()
	rc, err := NewRetryingClient(next, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	var sleeps []time.Duration
	rc.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	rc.jitter = func(n int64) int64 { return n / 2 }
	return rc, &sleeps
}

var testReq = Request{Model: "test-model", Prompt: "Say hi"}

func TestRetryingClient_SucceedsFirstTry(t *testing.T) {
	next := &scriptedClient{script: func(context.Context, int) (*Response, error) {
		return &Response{Text: "hi"}, nil
	}}
	rc, sleeps := newTestRetrying(t, next, RetryConfig{MaxAttempts: 10})

	resp, err := rc.Complete(context.Background(), testReq)
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Text)
	assert.Equal(t, 1, next.calls)
	assert.Empty(t, *sleeps)
}

func TestRetryingClient_RetriesTransientWithJitteredWait(t *testing.T) {
	transient := MarkTransient(errors.New("503 unavailable"))
	next := &scriptedClient{script: func(_ context.Context, call int) (*Response, error) {
		if call <= 3 {
			return nil, transient
		}
		return &Response{Text: "recovered"}, nil
	}}
	cfg := RetryConfig{MaxAttempts: 10, WaitWindow: 2 * time.Second, WaitOffset: 250 * time.Millisecond}
	rc, sleeps := newTestRetrying(t, next, cfg)

	resp, err := rc.Complete(context.Background(), testReq)
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Text)
	assert.Equal(t, 4, next.calls)
	require.Len(t, *sleeps, 3)
	for _, d := range *sleeps {
		assert.Equal(t, 1250*time.Millisecond, d, "offset plus jitter within the window")
	}
}

func TestRetryingClient_PermanentErrorIsNotRetried(t *testing.T) {
	cause := StatusError(http.StatusBadRequest, "bad prompt")
	next := &scriptedClient{script: func(context.Context, int) (*Response, error) {
		return nil, cause
	}}
	rc, sleeps := newTestRetrying(t, next, RetryConfig{MaxAttempts: 10})

	_, err := rc.Complete(context.Background(), testReq)

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.True(t, remote.Permanent)
	assert.Equal(t, 1, remote.Attempts)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Equal(t, 1, next.calls)
	assert.Empty(t, *sleeps)
}

func TestRetryingClient_ExhaustsAfterMaxAttempts(t *testing.T) {
	next := &scriptedClient{script: func(context.Context, int) (*Response, error) {
		return nil, StatusError(http.StatusTooManyRequests, "slow down")
	}}
	rc, sleeps := newTestRetrying(t, next, RetryConfig{MaxAttempts: 10, WaitWindow: time.Second})

	_, err := rc.Complete(context.Background(), testReq)

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.False(t, remote.Permanent)
	assert.Equal(t, 10, remote.Attempts)
	assert.True(t, IsTransient(err))
	assert.Equal(t, 10, next.calls, "exactly max attempts calls")
	assert.Len(t, *sleeps, 9)
}

func TestRetryingClient_PerCallTimeoutIsTransient(t *testing.T) {
	next := &scriptedClient{script: func(ctx context.Context, _ int) (*Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	rc, _ := newTestRetrying(t, next, RetryConfig{MaxAttempts: 2, CallTimeout: 10 * time.Millisecond})

	_, err := rc.Complete(context.Background(), testReq)

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.False(t, remote.Permanent)
	assert.Equal(t, 2, next.calls)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryingClient_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	next := &scriptedClient{script: func(context.Context, int) (*Response, error) {
		cancel()
		return nil, MarkTransient(errors.New("connection reset"))
	}}
	rc, _ := newTestRetrying(t, next, RetryConfig{MaxAttempts: 10})

	_, err := rc.Complete(ctx, testReq)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, next.calls)
}

func TestRetryingClient_RejectsEmptyPrompt(t *testing.T) {
	next := &scriptedClient{script: func(context.Context, int) (*Response, error) {
		return &Response{}, nil
	}}
	rc, _ := newTestRetrying(t, next, RetryConfig{MaxAttempts: 3})

	_, err := rc.Complete(context.Background(), Request{Prompt: "   "})
	assert.ErrorIs(t, err, ErrEmptyPrompt)
	assert.Equal(t, 0, next.calls)
}

func TestNewRetryingClient(t *testing.T) {
	_, err := NewRetryingClient(nil, RetryConfig{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	rc, err := NewRetryingClient(&scriptedClient{}, RetryConfig{MaxAttempts: 0}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rc.cfg.MaxAttempts)
}

func TestDefaultWaitStaysInWindow(t *testing.T) {
	rc, err := NewRetryingClient(&scriptedClient{}, RetryConfig{
		MaxAttempts: 1,
		WaitWindow:  100 * time.Millisecond,
		WaitOffset:  50 * time.Millisecond,
	}, nil)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		d := rc.wait()
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.Less(t, d, 150*time.Millisecond)
	}
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		code      int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusRequestTimeout, true},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusNotFound, false},
	}
	for _, tt := range tests {
		err := StatusError(tt.code, "msg")
		assert.Equal(t, tt.transient, IsTransient(err), "status %d", tt.code)
	}
}

func TestClassifyTransport(t *testing.T) {
	assert.NoError(t, ClassifyTransport(nil))

	netErr := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	assert.True(t, IsTransient(ClassifyTransport(netErr)))
	assert.True(t, IsTransient(ClassifyTransport(context.DeadlineExceeded)))

	plain := errors.New("bad json")
	assert.Equal(t, plain, ClassifyTransport(plain))
}

func TestRemoteErrorMessage(t *testing.T) {
	err := &RemoteError{Attempts: 10, Err: errors.New("boom")}
	assert.Contains(t, err.Error(), "after 10 attempts")

	err = &RemoteError{Attempts: 1, Permanent: true, Err: errors.New("boom")}
	assert.Contains(t, err.Error(), "permanently")
}
