package discount

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Compile-time check to verify that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store used by tests and local development.
// It enforces the same at-most-one-active invariant the PostgreSQL schema
// backs with a partial unique index, and fails loudly when a caller breaks
// it: that signals a chunk partitioning bug, not a recoverable condition.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]*Record // keyed by record id

	// Expiries maps batch ids to expiry dates for InvalidateExpired.
	Expiries map[int64]time.Time

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory discount store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:   1,
		records:  make(map[int64]*Record),
		Expiries: make(map[int64]time.Time),
		now:      time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

// FindActive returns a copy of the active record for the batch, or nil.
func (s *MemoryStore) FindActive(_ context.Context, batchID int64) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.BatchID == batchID && r.ValidTo == nil {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

// Create inserts a new active record, failing if one already exists.
func (s *MemoryStore) Create(_ context.Context, r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.records {
		if existing.BatchID == r.BatchID && existing.ValidTo == nil {
			return fmt.Errorf("batch %d already has an active discount (record %d): partitioning invariant violated", r.BatchID, existing.ID)
		}
	}

	r.ID = s.nextID
	s.nextID++
	r.ValidFrom = s.now()

	cp := *r
	s.records[r.ID] = &cp
	return nil
}

// UpdatePricing rewrites the pricing fields of a stored record.
func (s *MemoryStore) UpdatePricing(_ context.Context, id int64, price, fraction decimal.Decimal, mlRecommended bool) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("discount %d: %w", id, ErrRecordNotFound)
	}

	r.ComputedPrice = price
	r.DiscountFraction = fraction
	r.MLRecommended = mlRecommended

	cp := *r
	return &cp, nil
}

// Invalidate closes the record's validity window.
func (s *MemoryStore) Invalidate(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("discount %d: %w", id, ErrRecordNotFound)
	}
	if r.ValidTo == nil {
		now := s.now()
		r.ValidTo = &now
	}
	return nil
}

// InvalidateExpired closes active records whose batch expiry has passed.
func (s *MemoryStore) InvalidateExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int64
	for _, r := range s.records {
		if r.ValidTo != nil {
			continue
		}
		expiry, ok := s.Expiries[r.BatchID]
		if ok && expiry.Before(now) {
			ts := now
			r.ValidTo = &ts
			n++
		}
	}
	return n, nil
}

// ActiveCount returns how many records for the batch are currently active.
// Test helper for asserting the at-most-one-active invariant.
func (s *MemoryStore) ActiveCount(batchID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, r := range s.records {
		if r.BatchID == batchID && r.ValidTo == nil {
			count++
		}
	}
	return count
}

// Len returns the total number of stored records, historical ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
