package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Compile-time check to verify that MemorySource implements Source.
var _ Source = (*MemorySource)(nil)

// MemorySource is an in-memory Source used by tests and local development.
// It applies the same eligibility filter the SQL query does.
type MemorySource struct {
	mu      sync.RWMutex
	batches map[int64]Batch

	now func() time.Time

	// FetchErr, when set, is returned by every fetch. Test hook for
	// exercising the fatal bulk-fetch path.
	FetchErr error
}

// NewMemorySource creates a source preloaded with the given batches.
func NewMemorySource(batches ...Batch) *MemorySource {
	s := &MemorySource{
		batches: make(map[int64]Batch, len(batches)),
		now:     time.Now,
	}
	for _, b := range batches {
		s.batches[b.ID] = b
	}
	return s
}

// WithClock overrides the time source. Test hook.
func (s *MemorySource) WithClock(now func() time.Time) *MemorySource {
	s.now = now
	return s
}

// Put inserts or replaces a batch.
func (s *MemorySource) Put(b Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[b.ID] = b
}

// FetchEligible returns batches expiring within daysThreshold days that still
// have stock, ordered by expiry date.
func (s *MemorySource) FetchEligible(_ context.Context, daysThreshold int) ([]Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.FetchErr != nil {
		return nil, s.FetchErr
	}

	now := s.now()
	var out []Batch
	for _, b := range s.batches {
		if b.Quantity > 0 && b.DaysToExpiry(now) <= daysThreshold {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Expiry.Equal(out[j].Expiry) {
			return out[i].Expiry.Before(out[j].Expiry)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// FetchByID returns a single batch by id.
func (s *MemorySource) FetchByID(_ context.Context, batchID int64) (Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.FetchErr != nil {
		return Batch{}, s.FetchErr
	}

	b, ok := s.batches[batchID]
	if !ok {
		return Batch{}, fmt.Errorf("batch %d: %w", batchID, ErrBatchNotFound)
	}
	return b, nil
}
