//go:build integration

package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpontes/shelfmark/internal/discount"
	"github.com/mpontes/shelfmark/internal/inventory"
	"github.com/mpontes/shelfmark/internal/testsupport"
)

// TestDispatchAndWorker_Integration drives a full dispatched run against a
// real Redis: dispatch partitions and enqueues, a worker consumes the queue,
// and the job hash converges to completed with the right aggregate stats.
func TestDispatchAndWorker_Integration(t *testing.T) {
	ctx := context.Background()

	redisCtr, err := testsupport.StartRedisContainer(ctx)
	require.NoError(t, err)
	defer redisCtr.Terminate(ctx)

	var batches []inventory.Batch
	for i := 1; i <= 250; i++ {
		batches = append(batches, eligibleBatch(int64(i), "10.00"))
	}
	source := inventory.NewMemorySource(batches...)
	store := discount.NewMemoryStore()

	dispatcher := NewDispatcher(source, redisCtr.Client, time.Hour, nil)
	worker := NewWorker(newTestRunner(source, store), redisCtr.Client, time.Second, nil)

	jobID, chunks, err := dispatcher.Dispatch(ctx, 30, 100)
	require.NoError(t, err)
	assert.Equal(t, 3, chunks)

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = worker.Run(workerCtx) }()

	// Poll until the worker finishes all chunks.
	deadline := time.Now().Add(30 * time.Second)
	var status JobStatus
	for {
		status, err = dispatcher.Status(ctx, jobID)
		require.NoError(t, err)
		if status.Status == JobStatusCompleted || time.Now().After(deadline) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	require.Equal(t, JobStatusCompleted, status.Status)
	assert.Equal(t, int64(3), status.TotalChunks)
	assert.Equal(t, int64(3), status.ChunksDone)
	assert.Equal(t, int64(250), status.Stats.TotalProcessed)
	assert.Equal(t, int64(250), status.Stats.Created)
	assert.Equal(t, int64(0), status.Stats.Errors)
	assert.Equal(t, 250, store.Len())

	// A second dispatch over the same inventory is pure no-op writes.
	jobID2, _, err := dispatcher.Dispatch(ctx, 30, 100)
	require.NoError(t, err)

	deadline = time.Now().Add(30 * time.Second)
	for {
		status, err = dispatcher.Status(ctx, jobID2)
		require.NoError(t, err)
		if status.Status == JobStatusCompleted || time.Now().After(deadline) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	require.Equal(t, JobStatusCompleted, status.Status)
	assert.Equal(t, int64(250), status.Stats.SkippedUnchanged)
	assert.Equal(t, 250, store.Len(), "second dispatch must not create records")
}

// TestDispatcher_EmptyRun_Integration covers a dispatch with no eligible
// batches: the job is completed immediately with zero chunks.
func TestDispatcher_EmptyRun_Integration(t *testing.T) {
	ctx := context.Background()

	redisCtr, err := testsupport.StartRedisContainer(ctx)
	require.NoError(t, err)
	defer redisCtr.Terminate(ctx)

	dispatcher := NewDispatcher(inventory.NewMemorySource(), redisCtr.Client, time.Hour, nil)

	jobID, chunks, err := dispatcher.Dispatch(ctx, 30, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, chunks)

	status, err := dispatcher.Status(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, status.Status)
	assert.Equal(t, int64(0), status.TotalChunks)
}

func TestDispatcher_StatusUnknownJob_Integration(t *testing.T) {
	ctx := context.Background()

	redisCtr, err := testsupport.StartRedisContainer(ctx)
	require.NoError(t, err)
	defer redisCtr.Terminate(ctx)

	dispatcher := NewDispatcher(inventory.NewMemorySource(), redisCtr.Client, time.Hour, nil)

	_, err = dispatcher.Status(ctx, "no-such-job")
	assert.ErrorIs(t, err, ErrJobNotFound)
}
