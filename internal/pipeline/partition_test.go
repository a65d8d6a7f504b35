package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpontes/shelfmark/internal/inventory"
)

func makeBatches(n int) []inventory.Batch {
	batches := make([]inventory.Batch, n)
	for i := range batches {
		batches[i] = inventory.Batch{ID: int64(i + 1)}
	}
	return batches
}

func TestPartition(t *testing.T) {
	testCases := []struct {
		total      int
		chunkSize  int
		wantChunks int
	}{
		{total: 0, chunkSize: 10, wantChunks: 0},
		{total: 1, chunkSize: 10, wantChunks: 1},
		{total: 10, chunkSize: 10, wantChunks: 1},
		{total: 11, chunkSize: 10, wantChunks: 2},
		{total: 1000, chunkSize: 100, wantChunks: 10},
		{total: 7, chunkSize: 1, wantChunks: 7},
		{total: 5, chunkSize: 100, wantChunks: 1},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%d batches in chunks of %d", tc.total, tc.chunkSize), func(t *testing.T) {
			chunks := Partition(makeBatches(tc.total), tc.chunkSize)
			require.Len(t, chunks, tc.wantChunks)

			// The union of the chunks, in order, must be exactly the input,
			// which also proves disjointness: every id appears exactly once.
			var next int64 = 1
			for _, chunk := range chunks {
				assert.LessOrEqual(t, len(chunk), tc.chunkSize)
				assert.NotEmpty(t, chunk)
				for _, b := range chunk {
					assert.Equal(t, next, b.ID, "partition must preserve order without gaps")
					next++
				}
			}
			assert.Equal(t, int64(tc.total+1), next)
		})
	}
}

func TestPartition_NoBatchInTwoChunks(t *testing.T) {
	chunks := Partition(makeBatches(25), 10)

	seen := make(map[int64]int)
	for _, chunk := range chunks {
		for _, b := range chunk {
			seen[b.ID]++
		}
	}
	for id, count := range seen {
		assert.Equal(t, 1, count, "batch %d assigned to %d chunks", id, count)
	}
	assert.Len(t, seen, 25)
}
