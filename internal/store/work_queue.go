package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/phrazzld/qagen/internal/domain"
)

// WorkQueue hands out exclusive batches of pending items to concurrent
// consumers and applies stage outcomes.
//
// Claim, SetLease, Apply and RecordFailure must run on a queue bound to the
// claiming transaction (see WithTx): the row locks taken by Claim are what
// keep other consumers away, and they last until that transaction ends.
type WorkQueue interface {
	// Claim locks up to n pending items of the given kind, skipping rows
	// already locked by other claims. Items that failed maxFailures times or
	// more are not returned; maxFailures <= 0 disables that limit.
	Claim(ctx context.Context, kind domain.WorkKind, n int, maxFailures int) ([]domain.WorkItem, error)

	// HasPending reports whether any pending item of the kind exists,
	// whether or not it is currently claimed.
	HasPending(ctx context.Context, kind domain.WorkKind, maxFailures int) (bool, error)

	// SetLease bounds how long the claiming transaction may sit idle before
	// the database terminates it and releases its locks.
	SetLease(ctx context.Context, lease time.Duration) error

	// Apply writes an outcome's child records and flips the parent's flag.
	// Returns ErrConflict if the parent already left its pending state.
	Apply(ctx context.Context, outcome domain.Outcome) error

	// RecordFailure increments the item's failure counter and returns the new value.
	RecordFailure(ctx context.Context, kind domain.WorkKind, id int64) (int, error)

	// WithTx returns a WorkQueue bound to the given transaction.
	WithTx(tx *sql.Tx) WorkQueue
}
