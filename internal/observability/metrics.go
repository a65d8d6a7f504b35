package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// namespace defines the global prefix for all metrics (shelfmark_...).
const namespace = "shelfmark"

var (
	// RunsTotal counts pipeline runs by trigger and outcome.
	// Metric: shelfmark_pipeline_runs_total
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Total discount recomputation runs",
	}, []string{"trigger", "outcome"})

	// RunDuration measures end-to-end run latency.
	// Metric: shelfmark_pipeline_run_duration_seconds
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "run_duration_seconds",
		Help:      "Duration of discount recomputation runs",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms .. ~100s
	})

	// ItemsProcessed counts per-batch outcomes across all runs and workers.
	// Metric: shelfmark_pipeline_items_processed_total
	ItemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "items_processed_total",
		Help:      "Processed batches by outcome (created, updated, unchanged, error)",
	}, []string{"outcome"})

	// ChunksDispatched counts chunks pushed onto the worker queue.
	// Metric: shelfmark_pipeline_chunks_dispatched_total
	ChunksDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "chunks_dispatched_total",
		Help:      "Chunks dispatched to workers",
	})

	// RulesReloads counts rule document reloads by result.
	// Metric: shelfmark_rules_reloads_total
	RulesReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rules",
		Name:      "reloads_total",
		Help:      "Rule document reloads",
	}, []string{"result"})
)

// ObserveStats feeds a stats block into the per-item outcome counters.
func ObserveStats(created, updated, unchanged, errors int64) {
	ItemsProcessed.WithLabelValues("created").Add(float64(created))
	ItemsProcessed.WithLabelValues("updated").Add(float64(updated))
	ItemsProcessed.WithLabelValues("unchanged").Add(float64(unchanged))
	ItemsProcessed.WithLabelValues("error").Add(float64(errors))
}
