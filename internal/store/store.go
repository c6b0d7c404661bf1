// Package store provides durable keyed storage for job records and a
// per-document exclusivity lock. The pipeline owns document writes; the
// store only serializes them per job.
package store

import (
	"context"
	"errors"

	"github.com/toolforge/api/internal/model"
)

// ErrNotFound is returned when no record exists for a job id
var ErrNotFound = errors.New("job not found")

// ErrLocked is returned when the per-document lock is held elsewhere and
// could not be acquired within the wait budget.
var ErrLocked = errors.New("document is locked by another operation")

// JobStore is durable keyed storage for job records
type JobStore interface {
	Save(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, jobID string) (*model.Job, error)
}

// Locker grants per-document exclusivity. Acquire blocks until the lock is
// held or the wait budget runs out; the returned release function must be
// called exactly once.
type Locker interface {
	Acquire(ctx context.Context, jobID string) (release func(), err error)
}
