package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/phrazzld/qagen/internal/domain"
	"github.com/phrazzld/qagen/internal/mocks"
	"github.com/phrazzld/qagen/internal/stage"
	"github.com/phrazzld/qagen/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Workers:         1,
		BatchSize:       5,
		ItemConcurrency: 2,
		ClaimLease:      time.Minute,
		IdleDelay:       2 * time.Second,
		ErrorDelay:      10 * time.Second,
		MaxItemFailures: 5,
	}
}

func expectApplied(mock sqlmock.Sqlmock, i int) {
	name := fmt.Sprintf("item_%d", i)
	mock.ExpectExec("SAVEPOINT " + name).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("RELEASE SAVEPOINT " + name).WillReturnResult(sqlmock.NewResult(0, 0))
}

func expectEmptyClaim(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectCommit()
}

func newTestRunner(t *testing.T, queue store.WorkQueue, st stage.Stage, cfg Config) (*Runner, sqlmock.Sqlmock, *recordedSleeps) {
	t.Helper()
	db, mock := newMockDB(t)
	r := NewRunner(db, queue, st, cfg, testLogger())
	sleeps := &recordedSleeps{}
	r.sleep = sleeps.sleep
	return r, mock, sleeps
}

func TestRunner_ProcessesUntilDrained(t *testing.T) {
	kind := domain.KindGenerateAnswers
	var leases []time.Duration
	var leaseMu sync.Mutex
	queue := &mocks.MockWorkQueue{
		ClaimFn: scriptedClaims(map[domain.WorkKind][][]domain.WorkItem{
			kind: {workItems(kind, 1, 2)},
		}),
		SetLeaseFn: func(ctx context.Context, lease time.Duration) error {
			leaseMu.Lock()
			leases = append(leases, lease)
			leaseMu.Unlock()
			return nil
		},
	}
	st := &fakeStage{kind: kind}
	r, mock, sleeps := newTestRunner(t, queue, st, testConfig())

	mock.ExpectBegin()
	expectApplied(mock, 0)
	expectApplied(mock, 1)
	mock.ExpectCommit()
	expectEmptyClaim(mock)

	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, kind, result.Kind)
	assert.Equal(t, int64(2), result.Succeeded)
	assert.Zero(t, result.Failed)
	assert.Equal(t, int64(1), result.Batches)
	assert.Len(t, queue.Applied(), 2)
	assert.Empty(t, sleeps.delays)
	assert.Equal(t, []time.Duration{time.Minute, time.Minute}, leases)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunner_ItemFailureIsRecordedAndBatchCommits(t *testing.T) {
	kind := domain.KindGenerateQuestions
	queue := &mocks.MockWorkQueue{
		ClaimFn: scriptedClaims(map[domain.WorkKind][][]domain.WorkItem{
			kind: {workItems(kind, 1, 2, 3)},
		}),
	}
	st := &fakeStage{
		kind: kind,
		fn: func(ctx context.Context, item domain.WorkItem) (domain.Outcome, error) {
			if item.ID == 2 {
				return domain.Outcome{}, stage.ErrMalformedResponse
			}
			return domain.Outcome{Kind: kind, ItemID: item.ID}, nil
		},
	}
	r, mock, _ := newTestRunner(t, queue, st, testConfig())

	mock.ExpectBegin()
	expectApplied(mock, 0)
	expectApplied(mock, 2)
	mock.ExpectCommit()
	expectEmptyClaim(mock)

	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.Succeeded)
	assert.Equal(t, int64(1), result.Failed)
	assert.Equal(t, 1, queue.Failures(2))
	assert.Zero(t, queue.Failures(1))

	var applied []int64
	for _, o := range queue.Applied() {
		applied = append(applied, o.ItemID)
	}
	assert.Equal(t, []int64{1, 3}, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunner_ApplyErrorRollsBackSavepoint(t *testing.T) {
	kind := domain.KindGenerateRatings
	queue := &mocks.MockWorkQueue{
		ClaimFn: scriptedClaims(map[domain.WorkKind][][]domain.WorkItem{
			kind: {workItems(kind, 7)},
		}),
		ApplyFn: func(ctx context.Context, outcome domain.Outcome) error {
			return store.ErrConflict
		},
	}
	r, mock, _ := newTestRunner(t, queue, &fakeStage{kind: kind}, testConfig())

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT item_0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ROLLBACK TO SAVEPOINT item_0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	expectEmptyClaim(mock)

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Failed)
	assert.Equal(t, 1, queue.Failures(7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunner_RecordFailureErrorRollsBackBatch(t *testing.T) {
	kind := domain.KindFilterQuestions
	calls := 0
	queue := &mocks.MockWorkQueue{
		ClaimFn: func(ctx context.Context, k domain.WorkKind, n, maxFailures int) ([]domain.WorkItem, error) {
			calls++
			if calls == 1 {
				return workItems(kind, 4), nil
			}
			return nil, nil
		},
		RecordFailureFn: func(ctx context.Context, k domain.WorkKind, id int64) (int, error) {
			return 0, errors.New("connection lost")
		},
	}
	st := &fakeStage{
		kind: kind,
		fn: func(ctx context.Context, item domain.WorkItem) (domain.Outcome, error) {
			return domain.Outcome{}, errors.New("boom")
		},
	}
	r, mock, sleeps := newTestRunner(t, queue, st, testConfig())

	mock.ExpectBegin()
	mock.ExpectRollback()
	expectEmptyClaim(mock)

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Failed, "rolled back batches are not counted")
	assert.Equal(t, []time.Duration{10 * time.Second}, sleeps.delays)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunner_ClaimErrorPausesAndRetries(t *testing.T) {
	kind := domain.KindGenerateAnswers
	calls := 0
	queue := &mocks.MockWorkQueue{
		ClaimFn: func(ctx context.Context, k domain.WorkKind, n, maxFailures int) ([]domain.WorkItem, error) {
			calls++
			if calls == 1 {
				return nil, store.NewStoreError(string(k), "claim", "failed to claim work", errors.New("deadlock detected"))
			}
			return nil, nil
		},
	}
	r, mock, sleeps := newTestRunner(t, queue, &fakeStage{kind: kind}, testConfig())

	mock.ExpectBegin()
	mock.ExpectRollback()
	expectEmptyClaim(mock)

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{10 * time.Second}, sleeps.delays)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunner_WaitsWhileOthersHoldPendingItems(t *testing.T) {
	kind := domain.KindGenerateQuestions
	checks := 0
	queue := &mocks.MockWorkQueue{
		HasPendingFn: func(ctx context.Context, k domain.WorkKind, maxFailures int) (bool, error) {
			checks++
			assert.Equal(t, 5, maxFailures)
			return checks == 1, nil
		},
	}
	r, mock, sleeps := newTestRunner(t, queue, &fakeStage{kind: kind}, testConfig())

	expectEmptyClaim(mock)
	expectEmptyClaim(mock)

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, checks)
	assert.Equal(t, []time.Duration{2 * time.Second}, sleeps.delays)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunner_StopsOnCancel(t *testing.T) {
	kind := domain.KindGenerateQuestions
	r, mock, _ := newTestRunner(t, &mocks.MockWorkQueue{}, &fakeStage{kind: kind}, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunner_CancelledDuringProcessingRollsBack(t *testing.T) {
	kind := domain.KindGenerateAnswers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := &mocks.MockWorkQueue{
		ClaimFn: scriptedClaims(map[domain.WorkKind][][]domain.WorkItem{
			kind: {workItems(kind, 1)},
		}),
	}
	st := &fakeStage{
		kind: kind,
		fn: func(ctx context.Context, item domain.WorkItem) (domain.Outcome, error) {
			cancel()
			return domain.Outcome{Kind: kind, ItemID: item.ID}, nil
		},
	}
	r, mock, _ := newTestRunner(t, queue, st, testConfig())

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, queue.Applied())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunner_BoundsItemConcurrency(t *testing.T) {
	kind := domain.KindFilterQuestions
	queue := &mocks.MockWorkQueue{
		ClaimFn: scriptedClaims(map[domain.WorkKind][][]domain.WorkItem{
			kind: {workItems(kind, 1, 2, 3, 4, 5, 6)},
		}),
	}
	st := &fakeStage{
		kind: kind,
		fn: func(ctx context.Context, item domain.WorkItem) (domain.Outcome, error) {
			time.Sleep(5 * time.Millisecond)
			return domain.Outcome{Kind: kind, ItemID: item.ID}, nil
		},
	}
	cfg := testConfig()
	cfg.BatchSize = 6
	r, mock, _ := newTestRunner(t, queue, st, cfg)

	mock.ExpectBegin()
	for i := 0; i < 6; i++ {
		expectApplied(mock, i)
	}
	mock.ExpectCommit()
	expectEmptyClaim(mock)

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(6), result.Succeeded)
	assert.LessOrEqual(t, st.maxActive.Load(), int32(2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRunnerPanicsOnNilDependencies(t *testing.T) {
	db, _ := newMockDB(t)
	st := &fakeStage{kind: domain.KindGenerateQuestions}
	queue := &mocks.MockWorkQueue{}

	assert.Panics(t, func() { NewRunner(nil, queue, st, testConfig(), nil) })
	assert.Panics(t, func() { NewRunner(db, nil, st, testConfig(), nil) })
	assert.Panics(t, func() { NewRunner(db, queue, nil, testConfig(), nil) })

	r := NewRunner(db, queue, st, Config{}, nil)
	assert.Equal(t, 1, r.config.Workers)
	assert.Equal(t, 1, r.config.BatchSize)
	assert.Equal(t, 1, r.config.ItemConcurrency)
}

func TestRunner_SlowItemFailsAtDeadlineAndSiblingsCommit(t *testing.T) {
	tests := []struct {
		name string
		slow func(ctx context.Context, release <-chan struct{}) error
	}{
		{
			name: "stage honors its context",
			slow: func(ctx context.Context, release <-chan struct{}) error {
				<-ctx.Done()
				return ctx.Err()
			},
		},
		{
			name: "stage ignores its context",
			slow: func(ctx context.Context, release <-chan struct{}) error {
				<-release
				return errors.New("finished too late")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind := domain.KindGenerateQuestions
			release := make(chan struct{})
			t.Cleanup(func() { close(release) })

			queue := &mocks.MockWorkQueue{
				ClaimFn: scriptedClaims(map[domain.WorkKind][][]domain.WorkItem{
					kind: {workItems(kind, 1, 2)},
				}),
			}
			st := &fakeStage{
				kind: kind,
				fn: func(ctx context.Context, item domain.WorkItem) (domain.Outcome, error) {
					if item.ID == 2 {
						return domain.Outcome{}, tt.slow(ctx, release)
					}
					return domain.Outcome{Kind: kind, ItemID: item.ID}, nil
				},
			}
			cfg := testConfig()
			cfg.ClaimLease = 2 * time.Second
			cfg.CommitMargin = 1900 * time.Millisecond
			r, mock, sleeps := newTestRunner(t, queue, st, cfg)

			mock.ExpectBegin()
			expectApplied(mock, 0)
			mock.ExpectCommit()
			expectEmptyClaim(mock)

			result, err := r.Run(context.Background())
			require.NoError(t, err)

			assert.Equal(t, int64(1), result.Succeeded)
			assert.Equal(t, int64(1), result.Failed)
			assert.Equal(t, int64(1), result.Batches)
			require.Len(t, queue.Applied(), 1)
			assert.Equal(t, int64(1), queue.Applied()[0].ItemID)
			assert.Equal(t, 1, queue.Failures(2), "the slow item's failure must be committed")
			assert.Empty(t, sleeps.delays, "the batch must not be retried as a failed batch")
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRunner_ProcessItemReportsDeadline(t *testing.T) {
	kind := domain.KindGenerateRatings
	st := &fakeStage{
		kind: kind,
		fn: func(ctx context.Context, item domain.WorkItem) (domain.Outcome, error) {
			<-ctx.Done()
			return domain.Outcome{}, ctx.Err()
		},
	}
	r, _, _ := newTestRunner(t, &mocks.MockWorkQueue{}, st, testConfig())

	res := r.processItem(context.Background(), testLogger(), domain.WorkItem{Kind: kind, ID: 3},
		time.Now().Add(20*time.Millisecond))
	assert.ErrorIs(t, res.err, ErrItemDeadline)

	fast := &fakeStage{kind: kind}
	r, _, _ = newTestRunner(t, &mocks.MockWorkQueue{}, fast, testConfig())
	res = r.processItem(context.Background(), testLogger(), domain.WorkItem{Kind: kind, ID: 4}, time.Time{})
	require.NoError(t, res.err)
	assert.Equal(t, int64(4), res.outcome.ItemID)
}

func TestNewRunner_CommitMarginDefaults(t *testing.T) {
	db, _ := newMockDB(t)
	st := &fakeStage{kind: domain.KindGenerateQuestions}

	tests := []struct {
		name   string
		margin time.Duration
		want   time.Duration
	}{
		{name: "unset", margin: 0, want: 6 * time.Second},
		{name: "not below lease", margin: 2 * time.Minute, want: 6 * time.Second},
		{name: "explicit", margin: 20 * time.Second, want: 20 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRunner(db, &mocks.MockWorkQueue{}, st, Config{ClaimLease: time.Minute, CommitMargin: tt.margin}, nil)
			assert.Equal(t, tt.want, r.config.CommitMargin)
		})
	}
}

// preparingStage resolves its authors before the first claim.
type preparingStage struct {
	*fakeStage
	prepareErr error
	prepared   int
}

func (s *preparingStage) Prepare(ctx context.Context) error {
	s.prepared++
	return s.prepareErr
}

func TestRunner_PreparesStageBeforeClaiming(t *testing.T) {
	kind := domain.KindGenerateAnswers
	st := &preparingStage{fakeStage: &fakeStage{kind: kind}}
	r, mock, _ := newTestRunner(t, &mocks.MockWorkQueue{}, st, testConfig())

	expectEmptyClaim(mock)

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, st.prepared)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunner_PrepareErrorStopsBeforeClaiming(t *testing.T) {
	kind := domain.KindGenerateRatings
	st := &preparingStage{
		fakeStage:  &fakeStage{kind: kind},
		prepareErr: errors.New("connection refused"),
	}
	claims := 0
	queue := &mocks.MockWorkQueue{
		ClaimFn: func(ctx context.Context, k domain.WorkKind, n, maxFailures int) ([]domain.WorkItem, error) {
			claims++
			return nil, nil
		},
	}
	r, mock, _ := newTestRunner(t, queue, st, testConfig())

	result, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to prepare stage")
	assert.Equal(t, kind, result.Kind)
	assert.Zero(t, claims)
	assert.NoError(t, mock.ExpectationsWereMet())
}
