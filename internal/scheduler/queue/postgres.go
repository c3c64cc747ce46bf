package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/postline/postline/internal/platform/database"
)

// PgJobQueue stores publish jobs in the publish_jobs table. Acquisition uses
// FOR UPDATE SKIP LOCKED so concurrent worker processes never lease the same
// job twice while both are alive; lease expiry covers the crashed case.
type PgJobQueue struct {
	db     database.Querier
	logger *slog.Logger
}

func NewPgJobQueue(db database.Querier, logger *slog.Logger) *PgJobQueue {
	return &PgJobQueue{db: db, logger: logger.With("component", "pg_job_queue")}
}

func (q *PgJobQueue) Add(ctx context.Context, postID, userID uuid.UUID, delay time.Duration) (uuid.UUID, error) {
	if delay < 0 {
		delay = 0
	}
	id := uuid.New()
	now := time.Now().UTC()
	query := `
		INSERT INTO publish_jobs (id, post_id, user_id, run_at, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $6)
	`
	_, err := q.db.Exec(ctx, query, id, postID, userID, now.Add(delay), JobStatusPending, now)
	if err != nil {
		q.logger.ErrorContext(ctx, "Error enqueueing publish job", "error", err, "post_id", postID)
		return uuid.Nil, err
	}
	return id, nil
}

func (q *PgJobQueue) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	query := `
		SELECT id, post_id, user_id, run_at, status, leased_at, attempts, created_at
		FROM publish_jobs
		WHERE id = $1
	`
	job := &Job{}
	err := q.db.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.PostID, &job.UserID, &job.RunAt, &job.Status,
		&job.LeasedAt, &job.Attempts, &job.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		q.logger.ErrorContext(ctx, "Error getting publish job", "error", err, "job_id", id)
		return nil, err
	}
	return job, nil
}

func (q *PgJobQueue) Remove(ctx context.Context, id uuid.UUID) error {
	// Only pending jobs are removable; a leased job is already executing and
	// cancellation must not block on that race.
	query := `DELETE FROM publish_jobs WHERE id = $1 AND status = $2`
	tag, err := q.db.Exec(ctx, query, id, JobStatusPending)
	if err != nil {
		q.logger.ErrorContext(ctx, "Error removing publish job", "error", err, "job_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (q *PgJobQueue) AcquireDue(ctx context.Context, now time.Time, limit int) ([]*Job, error) {
	query := `
		WITH due_jobs AS (
			SELECT id
			FROM publish_jobs
			WHERE status = $1 AND run_at <= $2
			ORDER BY run_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		UPDATE publish_jobs pj
		SET status = $4, leased_at = $5, attempts = pj.attempts + 1, updated_at = $5
		FROM due_jobs dj
		WHERE pj.id = dj.id
		RETURNING pj.id, pj.post_id, pj.user_id, pj.run_at, pj.status, pj.leased_at, pj.attempts, pj.created_at
	`
	rows, err := q.db.Query(ctx, query, JobStatusPending, now.UTC(), limit, JobStatusLeased, time.Now().UTC())
	if err != nil {
		q.logger.ErrorContext(ctx, "Error acquiring due publish jobs", "error", err)
		return nil, err
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job := &Job{}
		if err := rows.Scan(
			&job.ID, &job.PostID, &job.UserID, &job.RunAt, &job.Status,
			&job.LeasedAt, &job.Attempts, &job.CreatedAt,
		); err != nil {
			q.logger.ErrorContext(ctx, "Error scanning acquired job row", "error", err)
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		q.logger.ErrorContext(ctx, "Error iterating acquired job rows", "error", err)
		return nil, err
	}
	return jobs, nil
}

func (q *PgJobQueue) Complete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM publish_jobs WHERE id = $1`
	tag, err := q.db.Exec(ctx, query, id)
	if err != nil {
		q.logger.ErrorContext(ctx, "Error completing publish job", "error", err, "job_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (q *PgJobQueue) Release(ctx context.Context, id uuid.UUID, runAt time.Time) error {
	query := `
		UPDATE publish_jobs
		SET status = $1, leased_at = NULL, run_at = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	tag, err := q.db.Exec(ctx, query, JobStatusPending, runAt.UTC(), time.Now().UTC(), id, JobStatusLeased)
	if err != nil {
		q.logger.ErrorContext(ctx, "Error releasing publish job", "error", err, "job_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (q *PgJobQueue) ReleaseExpired(ctx context.Context, leasedBefore time.Time) (int64, error) {
	query := `
		UPDATE publish_jobs
		SET status = $1, leased_at = NULL, updated_at = $2
		WHERE status = $3 AND leased_at < $4
	`
	tag, err := q.db.Exec(ctx, query, JobStatusPending, time.Now().UTC(), JobStatusLeased, leasedBefore.UTC())
	if err != nil {
		q.logger.ErrorContext(ctx, "Error releasing expired job leases", "error", err)
		return 0, err
	}
	if n := tag.RowsAffected(); n > 0 {
		q.logger.WarnContext(ctx, "Requeued expired job leases", "count", n)
		return n, nil
	}
	return 0, nil
}
