// Package discount owns persisted discount records and the invariant that at
// most one record per batch is active at any time. History is append-only:
// records are invalidated by closing their validity window, never deleted.
package discount

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Action describes what Apply did for a batch.
type Action string

const (
	ActionCreated   Action = "CREATED"
	ActionUpdated   Action = "UPDATED"
	ActionUnchanged Action = "UNCHANGED"
)

// Record is a persisted discount. A record with a nil ValidTo is the single
// active discount for its batch; all others are immutable history.
type Record struct {
	ID               int64           `json:"id"`
	BatchID          int64           `json:"batch_id"`
	ComputedPrice    decimal.Decimal `json:"computed_price"`
	DiscountFraction decimal.Decimal `json:"discount_fraction"`
	ValidFrom        time.Time       `json:"valid_from"`
	ValidTo          *time.Time      `json:"valid_to,omitempty"`
	MLRecommended    bool            `json:"ml_recommended"`
}

// Active reports whether the record is the current discount for its batch.
func (r *Record) Active() bool {
	return r.ValidTo == nil
}

// Store is the persistence contract for discount records. All operations are
// single-row; the pipeline's chunk partitioning guarantees no two workers
// touch the same batch concurrently.
type Store interface {
	// FindActive returns the active record for a batch, or nil when none exists.
	FindActive(ctx context.Context, batchID int64) (*Record, error)

	// Create inserts a new active record and populates ID and ValidFrom.
	Create(ctx context.Context, r *Record) error

	// UpdatePricing rewrites price, fraction and provenance of an existing
	// record in place. History is not duplicated for fine-grained re-pricing.
	UpdatePricing(ctx context.Context, id int64, price, fraction decimal.Decimal, mlRecommended bool) (*Record, error)

	// Invalidate closes a record's validity window (valid_to = now).
	Invalidate(ctx context.Context, id int64) error

	// InvalidateExpired closes all active records whose batch has passed its
	// expiry date, returning how many were closed.
	InvalidateExpired(ctx context.Context) (int64, error)
}
