package queue

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is a process-local JobQueue used by tests and local
// development. It mirrors the Postgres implementation's semantics,
// including lease-based at-least-once delivery.
type MemoryQueue struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*Job
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{jobs: make(map[uuid.UUID]*Job)}
}

func (q *MemoryQueue) Add(ctx context.Context, postID, userID uuid.UUID, delay time.Duration) (uuid.UUID, error) {
	if delay < 0 {
		delay = 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.New(),
		PostID:    postID,
		UserID:    userID,
		RunAt:     now.Add(delay),
		Status:    JobStatusPending,
		CreatedAt: now,
	}
	q.jobs[job.ID] = job
	return job.ID, nil
}

func (q *MemoryQueue) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (q *MemoryQueue) Remove(ctx context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok || job.Status != JobStatusPending {
		return ErrJobNotFound
	}
	delete(q.jobs, id)
	return nil
}

func (q *MemoryQueue) AcquireDue(ctx context.Context, now time.Time, limit int) ([]*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []*Job
	for _, job := range q.jobs {
		if job.Status == JobStatusPending && !job.RunAt.After(now) {
			due = append(due, job)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RunAt.Before(due[j].RunAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	leased := make([]*Job, 0, len(due))
	leaseTime := time.Now().UTC()
	for _, job := range due {
		job.Status = JobStatusLeased
		job.LeasedAt = sql.NullTime{Time: leaseTime, Valid: true}
		job.Attempts++
		cp := *job
		leased = append(leased, &cp)
	}
	return leased, nil
}

func (q *MemoryQueue) Complete(ctx context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.jobs[id]; !ok {
		return ErrJobNotFound
	}
	delete(q.jobs, id)
	return nil
}

func (q *MemoryQueue) Release(ctx context.Context, id uuid.UUID, runAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok || job.Status != JobStatusLeased {
		return ErrJobNotFound
	}
	job.Status = JobStatusPending
	job.LeasedAt = sql.NullTime{}
	job.RunAt = runAt.UTC()
	return nil
}

func (q *MemoryQueue) ReleaseExpired(ctx context.Context, leasedBefore time.Time) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var n int64
	for _, job := range q.jobs {
		if job.Status == JobStatusLeased && job.LeasedAt.Valid && job.LeasedAt.Time.Before(leasedBefore) {
			job.Status = JobStatusPending
			job.LeasedAt = sql.NullTime{}
			n++
		}
	}
	return n, nil
}

// Len reports the number of outstanding jobs. Test helper.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
