// Package metrics exposes the engine's operational counters. Partial
// results are accepted rather than retried, so the dropped-record
// counter is the place where that loss stays visible.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poliscope_analyses_total",
		Help: "Completed analysis calls by outcome.",
	}, []string{"outcome"})

	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "poliscope_analysis_duration_seconds",
		Help:    "Wall time of one analysis call including retries.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	})

	DroppedRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poliscope_dropped_records_total",
		Help: "Records discarded during response validation.",
	})

	BackendRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poliscope_backend_retries_total",
		Help: "Retries against an unavailable backend.",
	})
)

// Outcome labels for AnalysesTotal.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)
