package queue

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_AddAndGet(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	postID := uuid.New()
	userID := uuid.New()

	id, err := q.Add(ctx, postID, userID, time.Hour)
	require.NoError(t, err)

	job, err := q.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, postID, job.PostID)
	assert.Equal(t, userID, job.UserID)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.True(t, job.RunAt.After(time.Now().Add(50*time.Minute)))

	_, err = q.GetJob(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestMemoryQueue_NegativeDelayRunsNow(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	id, err := q.Add(ctx, uuid.New(), uuid.New(), -time.Hour)
	require.NoError(t, err)

	job, err := q.GetJob(ctx, id)
	require.NoError(t, err)
	assert.False(t, job.RunAt.After(time.Now().UTC()))
}

func TestMemoryQueue_RemoveOnlyPending(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	id, err := q.Add(ctx, uuid.New(), uuid.New(), 0)
	require.NoError(t, err)

	leased, err := q.AcquireDue(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	require.Len(t, leased, 1)

	assert.ErrorIs(t, q.Remove(ctx, id), ErrJobNotFound)
	assert.Equal(t, 1, q.Len())
}

func TestMemoryQueue_AcquireDueOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	now := time.Now().UTC()

	late, err := q.Add(ctx, uuid.New(), uuid.New(), -time.Minute)
	require.NoError(t, err)
	early, err := q.Add(ctx, uuid.New(), uuid.New(), -time.Hour)
	require.NoError(t, err)
	_, err = q.Add(ctx, uuid.New(), uuid.New(), time.Hour) // not yet due
	require.NoError(t, err)

	jobs, err := q.AcquireDue(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, early, jobs[0].ID)
	assert.Equal(t, JobStatusLeased, jobs[0].Status)
	assert.Equal(t, 1, jobs[0].Attempts)

	jobs, err = q.AcquireDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, late, jobs[0].ID)
}

func TestMemoryQueue_CompleteConsumesJob(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	id, err := q.Add(ctx, uuid.New(), uuid.New(), 0)
	require.NoError(t, err)

	require.NoError(t, q.Complete(ctx, id))
	assert.Equal(t, 0, q.Len())
	assert.ErrorIs(t, q.Complete(ctx, id), ErrJobNotFound)
}

func TestMemoryQueue_ReleaseReturnsJobToPending(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	id, err := q.Add(ctx, uuid.New(), uuid.New(), 0)
	require.NoError(t, err)

	// Releasing a pending job is rejected.
	assert.ErrorIs(t, q.Release(ctx, id, time.Now()), ErrJobNotFound)

	leased, err := q.AcquireDue(ctx, time.Now().UTC(), 1)
	require.NoError(t, err)
	require.Len(t, leased, 1)

	runAt := time.Now().UTC().Add(time.Minute)
	require.NoError(t, q.Release(ctx, id, runAt))

	job, err := q.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.False(t, job.LeasedAt.Valid)
	assert.WithinDuration(t, runAt, job.RunAt, time.Second)
}

func TestMemoryQueue_ReleaseExpired(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	staleID, err := q.Add(ctx, uuid.New(), uuid.New(), 0)
	require.NoError(t, err)
	freshID, err := q.Add(ctx, uuid.New(), uuid.New(), 0)
	require.NoError(t, err)

	leased, err := q.AcquireDue(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	require.Len(t, leased, 2)

	// Age one lease past the cutoff.
	q.mu.Lock()
	q.jobs[staleID].LeasedAt = sql.NullTime{Time: time.Now().UTC().Add(-time.Hour), Valid: true}
	q.mu.Unlock()

	n, err := q.ReleaseExpired(ctx, time.Now().UTC().Add(-5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stale, err := q.GetJob(ctx, staleID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, stale.Status)

	fresh, err := q.GetJob(ctx, freshID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusLeased, fresh.Status)
}
