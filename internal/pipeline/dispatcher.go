package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mpontes/shelfmark/internal/inventory"
	"github.com/mpontes/shelfmark/internal/observability"
)

// chunkQueueKey is the Redis list the workers pop chunk payloads from.
const chunkQueueKey = "shelfmark:chunks"

// ErrJobNotFound is returned when a job id is unknown or its state expired.
var ErrJobNotFound = errors.New("job not found")

// Job statuses as stored in the Redis job hash.
const (
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
)

// chunkPayload is the wire format of one queued chunk.
type chunkPayload struct {
	JobID   string            `json:"job_id"`
	Seq     int               `json:"seq"`
	Batches []inventory.Batch `json:"batches"`
}

// JobStatus is the aggregated state of one dispatched run.
type JobStatus struct {
	JobID       string   `json:"job_id"`
	Status      string   `json:"status"`
	TotalChunks int64    `json:"total_chunks"`
	ChunksDone  int64    `json:"chunks_done"`
	Stats       RunStats `json:"stats"`
}

// Dispatcher fans a recomputation run out to workers through Redis.
// It fetches and partitions exactly like the in-process runner, but pushes
// the chunks onto a queue instead of processing them, and returns a job id
// the caller can poll.
type Dispatcher struct {
	source inventory.Source
	client *redis.Client
	logger *slog.Logger
	jobTTL time.Duration
}

// NewDispatcher creates a dispatcher over the given inventory source and
// Redis client.
func NewDispatcher(source inventory.Source, client *redis.Client, jobTTL time.Duration, logger *slog.Logger) *Dispatcher {
	if source == nil || client == nil {
		panic("pipeline: dispatcher dependencies cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		source: source,
		client: client,
		logger: logger,
		jobTTL: jobTTL,
	}
}

func jobKey(jobID string) string {
	return "shelfmark:job:" + jobID
}

// Dispatch fetches eligible batches, partitions them, and enqueues every
// chunk under a fresh job id. The job hash is written before the first chunk
// is pushed so a worker can never observe a chunk without its job.
func (d *Dispatcher) Dispatch(ctx context.Context, daysThreshold, chunkSize int) (string, int, error) {
	if daysThreshold < 0 {
		return "", 0, fmt.Errorf("days threshold must be >= 0, got %d", daysThreshold)
	}
	if chunkSize < 1 {
		return "", 0, fmt.Errorf("chunk size must be >= 1, got %d", chunkSize)
	}

	batches, err := d.source.FetchEligible(ctx, daysThreshold)
	if err != nil {
		return "", 0, fmt.Errorf("failed to fetch eligible batches: %w", err)
	}

	chunks := Partition(batches, chunkSize)
	jobID := uuid.New().String()

	key := jobKey(jobID)
	status := JobStatusRunning
	if len(chunks) == 0 {
		// Nothing to do: the job is born completed.
		status = JobStatusCompleted
	}
	if err := d.client.HSet(ctx, key, map[string]any{
		"status":            status,
		"total_chunks":      len(chunks),
		"chunks_done":       0,
		"total_processed":   0,
		"created":           0,
		"updated":           0,
		"skipped_unchanged": 0,
		"errors":            0,
	}).Err(); err != nil {
		return "", 0, fmt.Errorf("failed to initialize job %s: %w", jobID, err)
	}
	if err := d.client.Expire(ctx, key, d.jobTTL).Err(); err != nil {
		return "", 0, fmt.Errorf("failed to set TTL on job %s: %w", jobID, err)
	}

	for seq, chunk := range chunks {
		payload, err := json.Marshal(chunkPayload{JobID: jobID, Seq: seq, Batches: chunk})
		if err != nil {
			return "", 0, fmt.Errorf("failed to encode chunk %d of job %s: %w", seq, jobID, err)
		}
		if err := d.client.RPush(ctx, chunkQueueKey, payload).Err(); err != nil {
			return "", 0, fmt.Errorf("failed to enqueue chunk %d of job %s: %w", seq, jobID, err)
		}
		observability.ChunksDispatched.Inc()
	}

	observability.RunsTotal.WithLabelValues("dispatch", "ok").Inc()
	d.logger.Info("run dispatched",
		slog.String("job_id", jobID),
		slog.Int("eligible_batches", len(batches)),
		slog.Int("chunks", len(chunks)),
	)
	return jobID, len(chunks), nil
}

// Status reads the aggregated job state from Redis.
func (d *Dispatcher) Status(ctx context.Context, jobID string) (JobStatus, error) {
	fields, err := d.client.HGetAll(ctx, jobKey(jobID)).Result()
	if err != nil {
		return JobStatus{}, fmt.Errorf("failed to read job %s: %w", jobID, err)
	}
	if len(fields) == 0 {
		return JobStatus{}, fmt.Errorf("job %s: %w", jobID, ErrJobNotFound)
	}

	status := JobStatus{
		JobID:       jobID,
		Status:      fields["status"],
		TotalChunks: hashInt(fields, "total_chunks"),
		ChunksDone:  hashInt(fields, "chunks_done"),
		Stats: RunStats{
			TotalProcessed:   hashInt(fields, "total_processed"),
			Created:          hashInt(fields, "created"),
			Updated:          hashInt(fields, "updated"),
			SkippedUnchanged: hashInt(fields, "skipped_unchanged"),
			Errors:           hashInt(fields, "errors"),
			ChunksProcessed:  hashInt(fields, "chunks_done"),
		},
	}
	return status, nil
}

func hashInt(fields map[string]string, key string) int64 {
	n, _ := strconv.ParseInt(fields[key], 10, 64)
	return n
}
