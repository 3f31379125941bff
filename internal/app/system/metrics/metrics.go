// Package metrics exposes Prometheus instrumentation for enrollment and login.
//
// Collectors are registered once on the default registry at package init so
// that every component (and every test) shares the same instances.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voxsecure"

var (
	// LoginAttempts counts finalized login attempts by outcome.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Finalized login attempts by outcome.",
	}, []string{"outcome"})

	// Enrollments counts enrollment requests by result.
	Enrollments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "enrollments_total",
		Help:      "Enrollment requests by result.",
	}, []string{"result"})

	// StageDuration observes the latency of pipeline and verification stages.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Latency of pipeline and verification stages.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"stage"})

	// BestSimilarity observes the best cosine similarity of each voice check.
	BestSimilarity = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "best_similarity",
		Help:      "Best cosine similarity observed per voice check.",
		Buckets:   prometheus.LinearBuckets(-1, 0.1, 21),
	})

	// AuditWriteFailures counts login attempts whose audit record could not be persisted.
	AuditWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_write_failures_total",
		Help:      "Login attempt records that failed to persist.",
	})

	// TempCleanupFailures counts temp directories that could not be removed.
	TempCleanupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "temp_cleanup_failures_total",
		Help:      "Request-scoped temp directories that could not be removed.",
	})
)

// ObserveStage records the time elapsed since start for stage.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
