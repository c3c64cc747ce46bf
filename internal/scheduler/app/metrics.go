package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scheduler",
			Name:      "publish_jobs_processed_total",
			Help:      "Publish jobs processed by the worker pool, by outcome.",
		},
		[]string{"outcome"}, // posted, failed, discarded, error
	)
	publishDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scheduler",
			Name:      "publish_duration_seconds",
			Help:      "Duration of platform publish calls.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"content_type"},
	)
	reconcilerRequeuedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scheduler",
			Name:      "reconciler_requeued_total",
			Help:      "Jobs requeued by the reconciler (expired leases plus lost queue entries).",
		},
	)
)
