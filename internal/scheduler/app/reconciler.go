package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/postline/postline/internal/scheduler/domain"
	"github.com/postline/postline/internal/scheduler/queue"
)

const reconcileScanLimit = 500

// ReconcilerConfig tunes the supervisory sweep.
type ReconcilerConfig struct {
	Interval     time.Duration
	LeaseTimeout time.Duration
}

// Reconciler repairs the coupling between records and queue entries after
// crashes: leases whose worker died are requeued, and scheduled records
// whose queue entry vanished get a fresh job. Both repairs rely on the
// worker's idempotency guard for safety under duplication.
type Reconciler struct {
	repo   domain.ScheduledPostRepository
	queue  queue.JobQueue
	logger *slog.Logger
	cfg    ReconcilerConfig
}

func NewReconciler(repo domain.ScheduledPostRepository, jobQueue queue.JobQueue, logger *slog.Logger, cfg ReconcilerConfig) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.LeaseTimeout <= 0 {
		cfg.LeaseTimeout = 5 * time.Minute
	}
	return &Reconciler{
		repo:   repo,
		queue:  jobQueue,
		logger: logger.With("component", "reconciler"),
		cfg:    cfg,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled. Sweep errors are
// logged and retried on the next tick; the reconciler never brings the
// process down.
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Info("Reconciler started", "interval", r.cfg.Interval, "lease_timeout", r.cfg.LeaseTimeout)
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reconciler stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				r.logger.ErrorContext(ctx, "Reconcile sweep failed", "error", err)
			}
		}
	}
}

// Sweep performs one reconciliation pass.
func (r *Reconciler) Sweep(ctx context.Context) error {
	released, err := r.queue.ReleaseExpired(ctx, time.Now().UTC().Add(-r.cfg.LeaseTimeout))
	if err != nil {
		return err
	}
	if released > 0 {
		reconcilerRequeuedCounter.Add(float64(released))
	}

	refs, err := r.repo.ListScheduledRefs(ctx, reconcileScanLimit)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if err := r.reconcileRef(ctx, ref); err != nil {
			r.logger.WarnContext(ctx, "Failed to reconcile record", "error", err, "post_id", ref.PostID)
		}
	}
	return nil
}

func (r *Reconciler) reconcileRef(ctx context.Context, ref domain.JobRef) error {
	if !ref.JobID.Valid {
		// Invariant violation: scheduled without a job reference. Repair by
		// issuing a job as if the reference had been lost.
		r.logger.WarnContext(ctx, "Scheduled record without job id", "post_id", ref.PostID)
	} else {
		_, err := r.queue.GetJob(ctx, ref.JobID.UUID)
		if err == nil {
			return nil // queue entry intact
		}
		if !errors.Is(err, queue.ErrJobNotFound) {
			return err
		}
	}

	post, err := r.repo.GetByID(ctx, ref.PostID)
	if err != nil {
		return err
	}

	// The replacement job keeps the record's due time; repairing a lost queue
	// entry must not publish a future post early.
	newJobID, err := r.queue.Add(ctx, post.ID, post.UserID, time.Until(post.ScheduledFor))
	if err != nil {
		return err
	}

	var ok bool
	if ref.JobID.Valid {
		ok, err = r.repo.SwapJob(ctx, post.ID, ref.JobID.UUID, newJobID)
	} else {
		ok, err = r.repo.AttachJob(ctx, post.ID, newJobID)
	}
	if err != nil {
		return err
	}
	if !ok {
		// The record moved on while we were repairing it; the fresh job must
		// not fire.
		if rmErr := r.queue.Remove(ctx, newJobID); rmErr != nil && !errors.Is(rmErr, queue.ErrJobNotFound) {
			r.logger.WarnContext(ctx, "Failed to remove superseded repair job", "error", rmErr, "job_id", newJobID)
		}
		return nil
	}

	reconcilerRequeuedCounter.Inc()
	r.logger.InfoContext(ctx, "Re-enqueued scheduled post with lost job", "post_id", post.ID, "job_id", newJobID)
	return nil
}
