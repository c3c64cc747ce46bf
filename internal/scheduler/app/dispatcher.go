package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/postline/postline/internal/scheduler/queue"
)

// DispatcherConfig tunes the polling loop and the worker pool.
type DispatcherConfig struct {
	PollInterval time.Duration
	JobBatchSize int
	WorkerCount  int
}

// Dispatcher polls the job queue for due work and fans it out to a bounded
// pool of publish workers. Multiple dispatcher processes may run against the
// same queue; SKIP LOCKED acquisition keeps them from colliding.
type Dispatcher struct {
	queue  queue.JobQueue
	worker *PublishWorker
	logger *slog.Logger
	cfg    DispatcherConfig
}

func NewDispatcher(jobQueue queue.JobQueue, worker *PublishWorker, logger *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.JobBatchSize <= 0 {
		cfg.JobBatchSize = 20
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	return &Dispatcher{
		queue:  jobQueue,
		worker: worker,
		logger: logger.With("component", "dispatcher"),
		cfg:    cfg,
	}
}

// Run blocks until ctx is cancelled or the queue becomes unusable. Workers
// are joined before returning; jobs they could not finish against the
// cancelled context stay leased and are requeued by the reconciler.
func (d *Dispatcher) Run(ctx context.Context) error {
	jobs := make(chan *queue.Job)
	var wg sync.WaitGroup
	for i := 0; i < d.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				d.worker.Execute(ctx, job)
			}
		}()
	}
	defer func() {
		close(jobs)
		wg.Wait()
	}()

	d.logger.Info("Dispatcher started", "poll_interval", d.cfg.PollInterval, "batch_size", d.cfg.JobBatchSize, "workers", d.cfg.WorkerCount)

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Dispatcher stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			if err := d.pollOnce(ctx, jobs); err != nil {
				return err
			}
		}
	}
}

// pollOnce acquires one batch and hands it to the pool. An acquisition error
// is critical: without the queue the dispatcher has nothing to do, so it
// stops and lets the process supervisor restart it.
func (d *Dispatcher) pollOnce(ctx context.Context, jobs chan<- *queue.Job) error {
	acquired, err := d.queue.AcquireDue(ctx, time.Now().UTC(), d.cfg.JobBatchSize)
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to acquire due jobs", "error", err)
		return fmt.Errorf("failed to acquire due jobs: %w", err)
	}
	if len(acquired) == 0 {
		return nil
	}

	d.logger.InfoContext(ctx, "Acquired due jobs", "count", len(acquired))
	for _, job := range acquired {
		select {
		case jobs <- job:
		case <-ctx.Done():
			// Unhandled jobs stay leased; the reconciler requeues them.
			return ctx.Err()
		}
	}
	return nil
}
