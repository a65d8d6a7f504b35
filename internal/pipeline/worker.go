package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mpontes/shelfmark/internal/observability"
)

// Worker consumes chunk payloads from the Redis queue and folds its results
// into the owning job's hash. Multiple workers can run concurrently: chunks
// are disjoint by construction, and the stat counters fold with HINCRBY, so
// no coordination beyond the queue pop is needed.
type Worker struct {
	runner     *Runner
	client     *redis.Client
	logger     *slog.Logger
	popTimeout time.Duration
}

// NewWorker creates a worker that processes chunks with the given runner.
func NewWorker(runner *Runner, client *redis.Client, popTimeout time.Duration, logger *slog.Logger) *Worker {
	if runner == nil || client == nil {
		panic("pipeline: worker dependencies cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		runner:     runner,
		client:     client,
		logger:     logger,
		popTimeout: popTimeout,
	}
}

// Run blocks consuming chunks until the context is canceled. The blocking
// pop times out periodically so cancellation is noticed between chunks.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", slog.String("queue", chunkQueueKey))

	for {
		if err := ctx.Err(); err != nil {
			w.logger.Info("worker stopping")
			return nil
		}

		res, err := w.client.BRPop(ctx, w.popTimeout, chunkQueueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // queue empty, poll again
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				w.logger.Info("worker stopping")
				return nil
			}
			return fmt.Errorf("failed to pop chunk: %w", err)
		}

		// BRPop returns [key, value].
		if err := w.handle(ctx, []byte(res[1])); err != nil {
			w.logger.Error("failed to handle chunk", slog.String("error", err.Error()))
		}
	}
}

// handle processes one payload and accumulates its stats into the job hash.
func (w *Worker) handle(ctx context.Context, raw []byte) error {
	var payload chunkPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		// A malformed payload can never become processable; drop it.
		return fmt.Errorf("failed to decode chunk payload: %w", err)
	}

	stats := w.runner.ProcessChunk(ctx, payload.Batches)
	observability.ObserveStats(stats.Created, stats.Updated, stats.SkippedUnchanged, stats.Errors)

	key := jobKey(payload.JobID)
	pipe := w.client.TxPipeline()
	pipe.HIncrBy(ctx, key, "total_processed", stats.TotalProcessed)
	pipe.HIncrBy(ctx, key, "created", stats.Created)
	pipe.HIncrBy(ctx, key, "updated", stats.Updated)
	pipe.HIncrBy(ctx, key, "skipped_unchanged", stats.SkippedUnchanged)
	pipe.HIncrBy(ctx, key, "errors", stats.Errors)
	done := pipe.HIncrBy(ctx, key, "chunks_done", 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record stats for job %s: %w", payload.JobID, err)
	}

	total, err := w.client.HGet(ctx, key, "total_chunks").Int64()
	if err != nil {
		return fmt.Errorf("failed to read chunk total for job %s: %w", payload.JobID, err)
	}
	if done.Val() >= total {
		if err := w.client.HSet(ctx, key, "status", JobStatusCompleted).Err(); err != nil {
			return fmt.Errorf("failed to complete job %s: %w", payload.JobID, err)
		}
		w.logger.Info("job completed",
			slog.String("job_id", payload.JobID),
			slog.Int64("chunks", total),
		)
	}

	w.logger.Debug("chunk processed",
		slog.String("job_id", payload.JobID),
		slog.Int("seq", payload.Seq),
		slog.Int64("items", stats.TotalProcessed),
		slog.Int64("errors", stats.Errors),
	)
	return nil
}
