package queue

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrJobNotFound is returned by GetJob and Remove when the job does not
// exist or is no longer removable.
var ErrJobNotFound = errors.New("publish job not found")

// JobStatus is the queue-side state of an entry.
type JobStatus string

const (
	JobStatusPending JobStatus = "pending" // waiting for its run_at
	JobStatusLeased  JobStatus = "leased"  // handed to a worker
)

// Job is a delayed execution request. It carries only a weak reference to
// the scheduled post; the record stays the single source of truth.
type Job struct {
	ID        uuid.UUID
	PostID    uuid.UUID
	UserID    uuid.UUID
	RunAt     time.Time
	Status    JobStatus
	LeasedAt  sql.NullTime
	Attempts  int
	CreatedAt time.Time
}

// JobQueue is a durable, time-aware work queue with at-least-once delivery.
// A job may be acquired more than once (lease expiry after a worker crash);
// consumers must tolerate duplicate delivery.
//
// Implementations are injected; nothing in this package is process-global.
type JobQueue interface {
	// Add enqueues a job due after the given delay; negative delays run
	// immediately. Returns the queue-assigned id.
	Add(ctx context.Context, postID, userID uuid.UUID, delay time.Duration) (uuid.UUID, error)

	// GetJob looks up a job by id; ErrJobNotFound when absent.
	GetJob(ctx context.Context, id uuid.UUID) (*Job, error)

	// Remove deletes a job that has not started. A job already leased or
	// gone is ErrJobNotFound; callers treat removal as best effort and never
	// propagate the error.
	Remove(ctx context.Context, id uuid.UUID) error

	// AcquireDue leases up to limit jobs due at now, in run_at order.
	// Acquired jobs stay leased until Complete or Release.
	AcquireDue(ctx context.Context, now time.Time, limit int) ([]*Job, error)

	// Complete consumes a leased job.
	Complete(ctx context.Context, id uuid.UUID) error

	// Release returns a leased job to pending with a new due time.
	Release(ctx context.Context, id uuid.UUID, runAt time.Time) error

	// ReleaseExpired re-pends every job leased before the cutoff and returns
	// how many were requeued.
	ReleaseExpired(ctx context.Context, leasedBefore time.Time) (int64, error)
}
