package domain

import (
	"context"

	"github.com/google/uuid"
)

// JobRef pairs a scheduled record with its outstanding job id. Used by the
// reconciler to detect records whose queue entry has been lost.
type JobRef struct {
	PostID uuid.UUID
	JobID  uuid.NullUUID
}

// ScheduledPostRepository manages scheduled post records.
//
// All transition methods are single conditional UPDATE statements and report
// whether the precondition matched; a false return means the record moved
// concurrently and the caller lost the race. Records are never deleted.
type ScheduledPostRepository interface {
	Create(ctx context.Context, post *ScheduledPost) error

	// GetByID loads a record regardless of owner. Worker-side only.
	GetByID(ctx context.Context, id uuid.UUID) (*ScheduledPost, error)

	// GetForUser loads a record scoped to its owner; a record owned by
	// someone else is ErrNotFound.
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*ScheduledPost, error)

	// ListForUser returns the user's records ordered by scheduled_for ascending.
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*ScheduledPost, error)

	// MarkPosted performs scheduled -> posted, conditioned on the record still
	// being scheduled under jobID.
	MarkPosted(ctx context.Context, id, jobID uuid.UUID, postedPostIDs []string) (bool, error)

	// MarkFailed performs scheduled -> failed under the same condition.
	MarkFailed(ctx context.Context, id, jobID uuid.UUID, errorMessage string) (bool, error)

	// MarkCancelled moves any non-posted record to cancelled, clearing job id
	// and error. Scoped to the owner.
	MarkCancelled(ctx context.Context, id, userID uuid.UUID) (bool, error)

	// MarkRetried performs failed -> scheduled with a fresh job id. Scoped to
	// the owner.
	MarkRetried(ctx context.Context, id, userID, newJobID uuid.UUID) (bool, error)

	// SwapJob replaces the job id of a still-scheduled record. Reconciler-side.
	SwapJob(ctx context.Context, id, oldJobID, newJobID uuid.UUID) (bool, error)

	// AttachJob sets the job id of a scheduled record that has none, which
	// only happens when the job_id/status invariant was violated by a crash.
	AttachJob(ctx context.Context, id, newJobID uuid.UUID) (bool, error)

	// ListScheduledRefs returns (post id, job id) pairs for records currently
	// in StatusScheduled.
	ListScheduledRefs(ctx context.Context, limit int) ([]JobRef, error)
}
