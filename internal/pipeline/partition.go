package pipeline

import "github.com/mpontes/shelfmark/internal/inventory"

// Partition splits batches into order-preserving chunks of at most chunkSize.
// Chunks are subslices of the input, so they are pairwise disjoint by
// construction and their union is exactly the input. That disjointness is
// what makes parallel chunk execution safe without cross-chunk coordination:
// no batch id can ever be touched by two chunks.
//
// chunkSize must be >= 1; callers validate before partitioning.
func Partition(batches []inventory.Batch, chunkSize int) [][]inventory.Batch {
	if len(batches) == 0 {
		return nil
	}

	chunks := make([][]inventory.Batch, 0, (len(batches)+chunkSize-1)/chunkSize)
	for start := 0; start < len(batches); start += chunkSize {
		end := start + chunkSize
		if end > len(batches) {
			end = len(batches)
		}
		chunks = append(chunks, batches[start:end:end])
	}
	return chunks
}
