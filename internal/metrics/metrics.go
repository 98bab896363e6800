// Package metrics exposes the Prometheus collectors for the validation
// pipeline. Collectors register on the default registry; serve them with
// promhttp.Handler().
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ValidationRuns counts completed pipeline runs by overall status.
	ValidationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_validation_runs_total",
		Help: "Completed validation runs by overall status.",
	}, []string{"status"})

	// ValidationDuration observes end-to-end run time per scene.
	ValidationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scene_validation_duration_seconds",
		Help:    "End-to-end validation run duration.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	// AnalysisRetries counts retried content-analysis attempts.
	AnalysisRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scene_validation_analysis_retries_total",
		Help: "Content analysis attempts retried after transient failures.",
	})

	// BatchScenes counts batch entries by terminal kind.
	BatchScenes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_validation_batch_scenes_total",
		Help: "Batch scene entries by terminal result kind.",
	}, []string{"result"})
)
