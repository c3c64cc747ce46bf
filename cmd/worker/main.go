package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/postline/postline/internal/platform/config"
	"github.com/postline/postline/internal/platform/database"
	"github.com/postline/postline/internal/platform/logger"
	"github.com/postline/postline/internal/platform/messagebroker"
	"github.com/postline/postline/internal/publisher"
	"github.com/postline/postline/internal/scheduler/app"
	"github.com/postline/postline/internal/scheduler/queue"
	schedpg "github.com/postline/postline/internal/scheduler/repository/postgres"
)

const serviceName = "postline-worker"

func main() {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.LogLevel)
	log.Info("Starting service")

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN)
	if err != nil {
		log.Error("Failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	log.Info("Database connection pool initialized")

	natsClient, err := messagebroker.NewNATSClient(cfg.NATSUrl, serviceName, log)
	if err != nil {
		log.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	log.Info("NATS connection initialized")

	postRepo := schedpg.NewPgScheduledPostRepository(dbPool, log)
	jobQueue := queue.NewPgJobQueue(dbPool, log)

	var platformPublisher publisher.Publisher
	if cfg.PlatformAPIURL != "" {
		platformPublisher = publisher.NewPlatformProvider(log, cfg.PlatformAPIURL, cfg.PlatformAPIToken, nil)
	} else {
		log.Warn("PLATFORM_API_URL not configured, using mock publisher")
		platformPublisher = publisher.NewMockPublisher(log, false, 0)
	}

	worker := app.NewPublishWorker(postRepo, jobQueue, platformPublisher, natsClient, log, cfg.PublishTimeout)
	dispatcher := app.NewDispatcher(jobQueue, worker, log, app.DispatcherConfig{
		PollInterval: cfg.PollInterval,
		JobBatchSize: cfg.JobBatchSize,
		WorkerCount:  cfg.WorkerCount,
	})
	reconciler := app.NewReconciler(postRepo, jobQueue, log, app.ReconcilerConfig{
		Interval:     cfg.ReconcileInterval,
		LeaseTimeout: cfg.JobLeaseTimeout,
	})

	// Metrics-only HTTP listener; the worker exposes no API.
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              ":9091",
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, groupCtx := errgroup.WithContext(mainCtx)
	g.Go(func() error { return dispatcher.Run(groupCtx) })
	g.Go(func() error { return reconciler.Run(groupCtx) })
	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("Received termination signal", "signal", sig.String())
	case <-groupCtx.Done():
	}
	mainCancel()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Service exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("Service shutdown complete")
}
