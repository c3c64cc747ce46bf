package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/postline/postline/internal/platform/database"
	"github.com/postline/postline/internal/scheduler/domain"
)

const scheduledPostColumns = `id, user_id, content_type, payload, scheduled_for, status, job_id, posted_post_ids, error_message, created_at, updated_at`

// PgScheduledPostRepository persists scheduled posts in the scheduled_posts
// table. Every state transition is a single conditional UPDATE so a
// concurrent cancel and an in-flight worker can never both win.
type PgScheduledPostRepository struct {
	db     database.Querier
	logger *slog.Logger
}

func NewPgScheduledPostRepository(db database.Querier, logger *slog.Logger) *PgScheduledPostRepository {
	return &PgScheduledPostRepository{db: db, logger: logger.With("component", "scheduled_post_repository")}
}

func (r *PgScheduledPostRepository) Create(ctx context.Context, post *domain.ScheduledPost) error {
	query := `
		INSERT INTO scheduled_posts (` + scheduledPostColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		post.ID, post.UserID, post.ContentType, post.Payload, post.ScheduledFor,
		post.Status, post.JobID, post.PostedPostIDs, post.ErrorMessage,
		post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating scheduled post", "error", err, "post_id", post.ID)
		return err
	}
	return nil
}

func (r *PgScheduledPostRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduledPost, error) {
	query := `SELECT ` + scheduledPostColumns + ` FROM scheduled_posts WHERE id = $1`
	return r.scanOne(ctx, r.db.QueryRow(ctx, query, id))
}

func (r *PgScheduledPostRepository) GetForUser(ctx context.Context, id, userID uuid.UUID) (*domain.ScheduledPost, error) {
	query := `SELECT ` + scheduledPostColumns + ` FROM scheduled_posts WHERE id = $1 AND user_id = $2`
	return r.scanOne(ctx, r.db.QueryRow(ctx, query, id, userID))
}

func (r *PgScheduledPostRepository) scanOne(ctx context.Context, row pgx.Row) (*domain.ScheduledPost, error) {
	post := &domain.ScheduledPost{}
	err := row.Scan(
		&post.ID, &post.UserID, &post.ContentType, &post.Payload, &post.ScheduledFor,
		&post.Status, &post.JobID, &post.PostedPostIDs, &post.ErrorMessage,
		&post.CreatedAt, &post.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error scanning scheduled post", "error", err)
		return nil, err
	}
	return post, nil
}

func (r *PgScheduledPostRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.ScheduledPost, error) {
	query := `
		SELECT ` + scheduledPostColumns + `
		FROM scheduled_posts
		WHERE user_id = $1
		ORDER BY scheduled_for ASC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing scheduled posts", "error", err, "user_id", userID)
		return nil, err
	}
	defer rows.Close()

	posts := []*domain.ScheduledPost{}
	for rows.Next() {
		post := &domain.ScheduledPost{}
		if err := rows.Scan(
			&post.ID, &post.UserID, &post.ContentType, &post.Payload, &post.ScheduledFor,
			&post.Status, &post.JobID, &post.PostedPostIDs, &post.ErrorMessage,
			&post.CreatedAt, &post.UpdatedAt,
		); err != nil {
			r.logger.ErrorContext(ctx, "Error scanning scheduled post row", "error", err)
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating scheduled post rows", "error", err)
		return nil, err
	}
	return posts, nil
}

func (r *PgScheduledPostRepository) MarkPosted(ctx context.Context, id, jobID uuid.UUID, postedPostIDs []string) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $1, posted_post_ids = $2, job_id = NULL, error_message = NULL, updated_at = $3
		WHERE id = $4 AND status = $5 AND job_id = $6
	`
	tag, err := r.db.Exec(ctx, query,
		domain.StatusPosted, postedPostIDs, time.Now().UTC(),
		id, domain.StatusScheduled, jobID,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error marking post as posted", "error", err, "post_id", id)
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgScheduledPostRepository) MarkFailed(ctx context.Context, id, jobID uuid.UUID, errorMessage string) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $1, error_message = $2, job_id = NULL, updated_at = $3
		WHERE id = $4 AND status = $5 AND job_id = $6
	`
	tag, err := r.db.Exec(ctx, query,
		domain.StatusFailed, errorMessage, time.Now().UTC(),
		id, domain.StatusScheduled, jobID,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error marking post as failed", "error", err, "post_id", id)
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgScheduledPostRepository) MarkCancelled(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $1, job_id = NULL, error_message = NULL, updated_at = $2
		WHERE id = $3 AND user_id = $4 AND status <> $5
	`
	tag, err := r.db.Exec(ctx, query,
		domain.StatusCancelled, time.Now().UTC(),
		id, userID, domain.StatusPosted,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error cancelling scheduled post", "error", err, "post_id", id)
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgScheduledPostRepository) MarkRetried(ctx context.Context, id, userID, newJobID uuid.UUID) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $1, job_id = $2, error_message = NULL, updated_at = $3
		WHERE id = $4 AND user_id = $5 AND status = $6
	`
	tag, err := r.db.Exec(ctx, query,
		domain.StatusScheduled, newJobID, time.Now().UTC(),
		id, userID, domain.StatusFailed,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error retrying scheduled post", "error", err, "post_id", id)
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgScheduledPostRepository) SwapJob(ctx context.Context, id, oldJobID, newJobID uuid.UUID) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET job_id = $1, updated_at = $2
		WHERE id = $3 AND status = $4 AND job_id = $5
	`
	tag, err := r.db.Exec(ctx, query,
		newJobID, time.Now().UTC(),
		id, domain.StatusScheduled, oldJobID,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error swapping job id", "error", err, "post_id", id)
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgScheduledPostRepository) AttachJob(ctx context.Context, id, newJobID uuid.UUID) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET job_id = $1, updated_at = $2
		WHERE id = $3 AND status = $4 AND job_id IS NULL
	`
	tag, err := r.db.Exec(ctx, query,
		newJobID, time.Now().UTC(),
		id, domain.StatusScheduled,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error attaching job id", "error", err, "post_id", id)
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgScheduledPostRepository) ListScheduledRefs(ctx context.Context, limit int) ([]domain.JobRef, error) {
	query := `
		SELECT id, job_id
		FROM scheduled_posts
		WHERE status = $1
		ORDER BY scheduled_for ASC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, domain.StatusScheduled, limit)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing scheduled job refs", "error", err)
		return nil, err
	}
	defer rows.Close()

	var refs []domain.JobRef
	for rows.Next() {
		var ref domain.JobRef
		if err := rows.Scan(&ref.PostID, &ref.JobID); err != nil {
			r.logger.ErrorContext(ctx, "Error scanning job ref row", "error", err)
			return nil, err
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return refs, nil
}
