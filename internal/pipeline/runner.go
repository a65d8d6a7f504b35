package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mpontes/shelfmark/internal/discount"
	"github.com/mpontes/shelfmark/internal/inventory"
	"github.com/mpontes/shelfmark/internal/observability"
	"github.com/mpontes/shelfmark/internal/pricing"
)

// Runner executes recomputation runs in-process, chunk by chunk.
type Runner struct {
	source  inventory.Source
	decider pricing.Source
	manager *discount.Manager
	logger  *slog.Logger
}

// NewRunner wires a runner over its three collaborators.
func NewRunner(source inventory.Source, decider pricing.Source, manager *discount.Manager, logger *slog.Logger) *Runner {
	if source == nil || decider == nil || manager == nil {
		panic("pipeline: runner dependencies cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		source:  source,
		decider: decider,
		manager: manager,
		logger:  logger,
	}
}

// Run recomputes discounts for every batch expiring within daysThreshold days.
//
// Only the bulk fetch is fatal: once batches are in hand, per-item failures
// are counted and logged, never propagated, so one bad batch cannot sink the
// rest of the run.
func (r *Runner) Run(ctx context.Context, daysThreshold, chunkSize int) (RunStats, error) {
	if daysThreshold < 0 {
		return RunStats{}, fmt.Errorf("days threshold must be >= 0, got %d", daysThreshold)
	}
	if chunkSize < 1 {
		return RunStats{}, fmt.Errorf("chunk size must be >= 1, got %d", chunkSize)
	}

	start := time.Now()

	batches, err := r.source.FetchEligible(ctx, daysThreshold)
	if err != nil {
		observability.RunsTotal.WithLabelValues("sync", "error").Inc()
		return RunStats{}, fmt.Errorf("failed to fetch eligible batches: %w", err)
	}

	r.logger.Info("recomputation run started",
		slog.Int("eligible_batches", len(batches)),
		slog.Int("days_threshold", daysThreshold),
		slog.Int("chunk_size", chunkSize),
	)

	var stats RunStats
	for _, chunk := range Partition(batches, chunkSize) {
		stats.Merge(r.ProcessChunk(ctx, chunk))
	}

	// Every single item failing points at a systemic problem (database down,
	// broken rules), not at bad batches.
	if len(batches) > 0 && stats.Errors == stats.TotalProcessed {
		r.logger.Warn("recomputation run failed for every batch",
			slog.Int64("errors", stats.Errors),
		)
	}

	observability.RunsTotal.WithLabelValues("sync", "ok").Inc()
	observability.RunDuration.Observe(time.Since(start).Seconds())
	observability.ObserveStats(stats.Created, stats.Updated, stats.SkippedUnchanged, stats.Errors)

	r.logger.Info("recomputation run finished",
		slog.Int64("total_processed", stats.TotalProcessed),
		slog.Int64("created", stats.Created),
		slog.Int64("updated", stats.Updated),
		slog.Int64("skipped_unchanged", stats.SkippedUnchanged),
		slog.Int64("errors", stats.Errors),
		slog.Duration("elapsed", time.Since(start)),
	)
	return stats, nil
}

// ProcessChunk decides and applies a discount for each batch in the chunk.
// Item failures are isolated: they increment the error counter and the loop
// moves on.
func (r *Runner) ProcessChunk(ctx context.Context, chunk []inventory.Batch) RunStats {
	var stats RunStats
	for _, batch := range chunk {
		outcome, err := r.processOne(ctx, batch)
		if err != nil {
			stats.countError()
			r.logger.Error("failed to process batch",
				slog.Int64("batch_id", batch.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		stats.count(outcome.Action)
	}
	stats.ChunksProcessed++
	return stats
}

// RunOne recomputes the discount for a single batch, on demand.
func (r *Runner) RunOne(ctx context.Context, batchID int64) (discount.Outcome, error) {
	batch, err := r.source.FetchByID(ctx, batchID)
	if err != nil {
		return discount.Outcome{}, fmt.Errorf("failed to fetch batch %d: %w", batchID, err)
	}
	return r.processOne(ctx, batch)
}

func (r *Runner) processOne(ctx context.Context, batch inventory.Batch) (discount.Outcome, error) {
	decision, err := r.decider.Decide(ctx, batch)
	if err != nil {
		return discount.Outcome{}, fmt.Errorf("decide: %w", err)
	}
	outcome, err := r.manager.Apply(ctx, decision)
	if err != nil {
		return discount.Outcome{}, fmt.Errorf("apply: %w", err)
	}
	return outcome, nil
}
