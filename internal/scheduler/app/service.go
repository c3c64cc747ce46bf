package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/postline/postline/internal/scheduler/domain"
	"github.com/postline/postline/internal/scheduler/queue"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// SchedulerService exposes the caller-facing scheduling operations. All
// operations are scoped to the calling user; a record owned by someone else
// behaves exactly like a missing one.
//
// Mutations touch the queue first and the record second, so the worst
// partial failure is an orphaned queue entry, which the worker's idempotency
// guard discards.
type SchedulerService struct {
	repo   domain.ScheduledPostRepository
	queue  queue.JobQueue
	events EventPublisher
	logger *slog.Logger
}

func NewSchedulerService(
	repo domain.ScheduledPostRepository,
	jobQueue queue.JobQueue,
	events EventPublisher,
	logger *slog.Logger,
) *SchedulerService {
	return &SchedulerService{
		repo:   repo,
		queue:  jobQueue,
		events: events,
		logger: logger.With("component", "scheduler_service"),
	}
}

// Schedule creates a record and its publish job. A scheduledFor in the past
// is accepted; the job is simply due immediately.
func (s *SchedulerService) Schedule(ctx context.Context, userID uuid.UUID, contentType domain.ContentType, payload json.RawMessage, scheduledFor time.Time) (*domain.ScheduledPost, error) {
	if !contentType.Valid() {
		return nil, domain.ErrInvalidContentType
	}
	if len(payload) == 0 {
		return nil, domain.ErrEmptyPayload
	}

	post := domain.NewScheduledPost(userID, contentType, payload, scheduledFor)

	delay := time.Until(post.ScheduledFor)
	jobID, err := s.queue.Add(ctx, post.ID, userID, delay)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to enqueue publish job", "error", err, "post_id", post.ID)
		return nil, fmt.Errorf("failed to enqueue publish job: %w", err)
	}
	post.JobID = uuid.NullUUID{UUID: jobID, Valid: true}

	if err := s.repo.Create(ctx, post); err != nil {
		// The orphaned job will load a missing record and be discarded.
		s.logger.ErrorContext(ctx, "Failed to persist scheduled post after enqueue", "error", err, "post_id", post.ID, "job_id", jobID)
		return nil, fmt.Errorf("failed to create scheduled post: %w", err)
	}

	s.logger.InfoContext(ctx, "Post scheduled", "post_id", post.ID, "user_id", userID, "scheduled_for", post.ScheduledFor, "job_id", jobID)
	emitEvent(ctx, s.events, s.logger, SubjectPostScheduled, PostEvent{
		PostID: post.ID, UserID: userID, Status: string(domain.StatusScheduled),
	})
	return post, nil
}

// Cancel withdraws a post. Queue removal is best effort: the record write is
// authoritative and proceeds whether or not the job could be removed.
func (s *SchedulerService) Cancel(ctx context.Context, userID, id uuid.UUID) error {
	post, err := s.repo.GetForUser(ctx, id, userID)
	if err != nil {
		return err
	}
	if post.Status == domain.StatusPosted {
		return domain.ErrAlreadyPosted
	}

	if post.JobID.Valid {
		s.removeJob(ctx, post.JobID.UUID, id)
	}

	ok, err := s.repo.MarkCancelled(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("failed to cancel scheduled post: %w", err)
	}
	if !ok {
		// Raced with the worker: the post got published between our read and
		// the conditional write.
		return domain.ErrAlreadyPosted
	}

	s.logger.InfoContext(ctx, "Post cancelled", "post_id", id, "user_id", userID)
	emitEvent(ctx, s.events, s.logger, SubjectPostCancelled, PostEvent{
		PostID: id, UserID: userID, Status: string(domain.StatusCancelled),
	})
	return nil
}

// Retry re-schedules a failed post for immediate publication and returns the
// new job id.
func (s *SchedulerService) Retry(ctx context.Context, userID, id uuid.UUID) (uuid.UUID, error) {
	post, err := s.repo.GetForUser(ctx, id, userID)
	if err != nil {
		return uuid.Nil, err
	}
	if post.Status != domain.StatusFailed {
		return uuid.Nil, domain.ErrNotRetryable
	}

	jobID, err := s.queue.Add(ctx, id, userID, 0)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to enqueue retry job", "error", err, "post_id", id)
		return uuid.Nil, fmt.Errorf("failed to enqueue retry job: %w", err)
	}

	ok, err := s.repo.MarkRetried(ctx, id, userID, jobID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to retry scheduled post: %w", err)
	}
	if !ok {
		// The record left failed between our read and the write; the fresh
		// job must not fire.
		s.removeJob(ctx, jobID, id)
		return uuid.Nil, domain.ErrNotRetryable
	}

	s.logger.InfoContext(ctx, "Post scheduled for retry", "post_id", id, "user_id", userID, "job_id", jobID)
	return jobID, nil
}

// Get returns a single record scoped to its owner.
func (s *SchedulerService) Get(ctx context.Context, userID, id uuid.UUID) (*domain.ScheduledPost, error) {
	return s.repo.GetForUser(ctx, id, userID)
}

// List returns the user's records ordered by scheduled_for ascending. The
// limit is clamped to [1, 200]; a non-positive limit means the default of 50.
func (s *SchedulerService) List(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.ScheduledPost, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.ListForUser(ctx, userID, limit)
}

// removeJob deletes a queue entry best-effort. A job that already started or
// no longer exists is expected during races and only logged.
func (s *SchedulerService) removeJob(ctx context.Context, jobID, postID uuid.UUID) {
	if _, err := s.queue.GetJob(ctx, jobID); err != nil {
		if !errors.Is(err, queue.ErrJobNotFound) {
			s.logger.WarnContext(ctx, "Failed to look up publish job for removal", "error", err, "job_id", jobID, "post_id", postID)
		}
		return
	}
	if err := s.queue.Remove(ctx, jobID); err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			s.logger.InfoContext(ctx, "Publish job already gone or executing, skipping removal", "job_id", jobID, "post_id", postID)
		} else {
			s.logger.WarnContext(ctx, "Failed to remove publish job", "error", err, "job_id", jobID, "post_id", postID)
		}
	}
}
