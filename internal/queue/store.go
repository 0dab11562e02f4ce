package queue

import (
	"context"
	"time"
)

// Store is durable keyed storage for job records. CompareAndTransition is
// the sole mutation primitive; every transition names its expected prior
// state, which is what makes finalization exactly-once under concurrent
// workers.
type Store interface {
	// Put creates a new job record. Returns ErrDuplicateID if the id exists.
	Put(ctx context.Context, job *Job) error

	// Get returns the job or ErrNotFound.
	Get(ctx context.Context, id string) (*Job, error)

	// NextWaiting returns the oldest waiting job on the queue whose
	// NotBefore is at or before now, or nil when there is none.
	NextWaiting(ctx context.Context, queue string, now time.Time) (*Job, error)

	// CompareAndTransition atomically moves the job from the expected state
	// to the new state while applying patch. Returns ErrStateConflict if
	// the current state does not match, ErrNotFound if the id is unknown.
	CompareAndTransition(ctx context.Context, id string, from, to State, patch Patch) (*Job, error)

	// CountByState returns the number of jobs on the queue in the given state.
	CountByState(ctx context.Context, queue string, state State) (int, error)
}
