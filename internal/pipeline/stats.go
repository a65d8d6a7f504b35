// Package pipeline drives the chunked recomputation of batch discounts.
// It fetches eligible batches, partitions them into disjoint chunks, runs the
// price computation and the invariant manager per item, and aggregates run
// statistics. Chunks can be processed sequentially in-process or dispatched
// through Redis to independent workers.
package pipeline

import "github.com/mpontes/shelfmark/internal/discount"

// RunStats are the accumulated counters of one recomputation run.
// Counters only ever grow; partial failures are never rolled back.
type RunStats struct {
	TotalProcessed   int64 `json:"total_processed"`
	Created          int64 `json:"created"`
	Updated          int64 `json:"updated"`
	SkippedUnchanged int64 `json:"skipped_unchanged"`
	Errors           int64 `json:"errors"`
	ChunksProcessed  int64 `json:"chunks_processed"`
}

// Merge adds another stats block into this one. Plain counter addition is
// commutative, so the merge order across chunks does not matter.
func (s *RunStats) Merge(other RunStats) {
	s.TotalProcessed += other.TotalProcessed
	s.Created += other.Created
	s.Updated += other.Updated
	s.SkippedUnchanged += other.SkippedUnchanged
	s.Errors += other.Errors
	s.ChunksProcessed += other.ChunksProcessed
}

// count tallies one applied outcome.
func (s *RunStats) count(action discount.Action) {
	s.TotalProcessed++
	switch action {
	case discount.ActionCreated:
		s.Created++
	case discount.ActionUpdated:
		s.Updated++
	case discount.ActionUnchanged:
		s.SkippedUnchanged++
	}
}

// countError tallies one failed item.
func (s *RunStats) countError() {
	s.TotalProcessed++
	s.Errors++
}
