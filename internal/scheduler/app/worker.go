package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/postline/postline/internal/publisher"
	"github.com/postline/postline/internal/scheduler/domain"
	"github.com/postline/postline/internal/scheduler/queue"
)

// PublishWorker executes a single due publish job: load the record, apply
// the idempotency guard, call the platform, write the outcome back under the
// conditional-write rule. Safe under duplicate and stale delivery.
type PublishWorker struct {
	repo           domain.ScheduledPostRepository
	queue          queue.JobQueue
	publisher      publisher.Publisher
	events         EventPublisher
	logger         *slog.Logger
	publishTimeout time.Duration
}

func NewPublishWorker(
	repo domain.ScheduledPostRepository,
	jobQueue queue.JobQueue,
	pub publisher.Publisher,
	events EventPublisher,
	logger *slog.Logger,
	publishTimeout time.Duration,
) *PublishWorker {
	if publishTimeout <= 0 {
		publishTimeout = 30 * time.Second
	}
	return &PublishWorker{
		repo:           repo,
		queue:          jobQueue,
		publisher:      pub,
		events:         events,
		logger:         logger.With("component", "publish_worker"),
		publishTimeout: publishTimeout,
	}
}

// Execute processes one leased job to completion. Errors are handled
// internally: the record carries the outcome, the job is consumed, and only
// infrastructure failures (store/queue I/O) leave the job leased for the
// reconciler to requeue.
func (w *PublishWorker) Execute(ctx context.Context, job *queue.Job) {
	log := w.logger.With("job_id", job.ID, "post_id", job.PostID)

	post, err := w.repo.GetByID(ctx, job.PostID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Orphaned job: the record was never persisted after enqueue.
			log.WarnContext(ctx, "Discarding job for missing record")
			w.completeJob(ctx, job, "discarded")
			return
		}
		log.ErrorContext(ctx, "Failed to load record, leaving job leased", "error", err)
		jobsProcessedCounter.WithLabelValues("error").Inc()
		return
	}

	// Idempotency guard: only the current job of a still-scheduled record may
	// publish. Duplicate deliveries and jobs superseded by retry both stop here.
	if post.Status != domain.StatusScheduled || !post.JobID.Valid || post.JobID.UUID != job.ID {
		log.InfoContext(ctx, "Discarding stale or duplicate job", "record_status", post.Status)
		w.completeJob(ctx, job, "discarded")
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, w.publishTimeout)
	defer cancel()

	timer := prometheus.NewTimer(publishDurationHist.WithLabelValues(string(post.ContentType)))
	result, pubErr := w.publisher.Publish(pubCtx, post.ContentType, post.Payload)
	timer.ObserveDuration()

	if pubErr != nil {
		w.recordFailure(ctx, log, post, job, pubErr)
		return
	}
	w.recordSuccess(ctx, log, post, job, result)
}

func (w *PublishWorker) recordSuccess(ctx context.Context, log *slog.Logger, post *domain.ScheduledPost, job *queue.Job, result *publisher.Result) {
	ok, err := w.repo.MarkPosted(ctx, post.ID, job.ID, result.PlatformPostIDs)
	if err != nil {
		// The platform post exists but the record write failed. Leave the job
		// leased; on redelivery the guard re-reads the record, and if the
		// write did land the duplicate is discarded.
		log.ErrorContext(ctx, "Failed to record publish success, leaving job leased", "error", err)
		jobsProcessedCounter.WithLabelValues("error").Inc()
		return
	}
	if !ok {
		// Cancelled between our guard read and the write. The platform call
		// already happened; the record stays authoritative and cancelled.
		log.WarnContext(ctx, "Record left scheduled state during publish, outcome dropped", "platform_post_ids", result.PlatformPostIDs)
		w.completeJob(ctx, job, "discarded")
		return
	}

	log.InfoContext(ctx, "Post published", "platform_post_ids", result.PlatformPostIDs)
	w.completeJob(ctx, job, "posted")
	emitEvent(ctx, w.events, w.logger, SubjectPostPublished, PostEvent{
		PostID: post.ID, UserID: post.UserID,
		Status: string(domain.StatusPosted), PostedPostIDs: result.PlatformPostIDs,
	})
}

func (w *PublishWorker) recordFailure(ctx context.Context, log *slog.Logger, post *domain.ScheduledPost, job *queue.Job, pubErr error) {
	ok, err := w.repo.MarkFailed(ctx, post.ID, job.ID, pubErr.Error())
	if err != nil {
		log.ErrorContext(ctx, "Failed to record publish failure, leaving job leased", "error", err)
		jobsProcessedCounter.WithLabelValues("error").Inc()
		return
	}
	if !ok {
		log.InfoContext(ctx, "Record left scheduled state during failed publish, outcome dropped")
		w.completeJob(ctx, job, "discarded")
		return
	}

	log.WarnContext(ctx, "Publish failed, awaiting user retry", "error", pubErr)
	w.completeJob(ctx, job, "failed")
	emitEvent(ctx, w.events, w.logger, SubjectPostPublishFailed, PostEvent{
		PostID: post.ID, UserID: post.UserID,
		Status: string(domain.StatusFailed), Error: pubErr.Error(),
	})
}

func (w *PublishWorker) completeJob(ctx context.Context, job *queue.Job, outcome string) {
	if err := w.queue.Complete(ctx, job.ID); err != nil && !errors.Is(err, queue.ErrJobNotFound) {
		w.logger.WarnContext(ctx, "Failed to complete publish job", "error", err, "job_id", job.ID)
	}
	jobsProcessedCounter.WithLabelValues(outcome).Inc()
}
