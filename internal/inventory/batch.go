// Package inventory provides read access to perishable inventory batches.
// The pipeline consumes batches through the Source interface; the PostgreSQL
// implementation lives in this package as well.
package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrBatchNotFound is returned when a batch id does not exist.
var ErrBatchNotFound = errors.New("batch not found")

// Batch is a read-only view of one inventory batch joined with its product.
type Batch struct {
	ID        int64           `json:"id"`
	BasePrice decimal.Decimal `json:"base_price"`
	Category  string          `json:"category"`
	Quantity  int             `json:"quantity"`
	Expiry    time.Time       `json:"expiry"`
}

// DaysToExpiry returns the whole days between now and the batch expiry date.
// It is negative for already-expired batches.
func (b Batch) DaysToExpiry(now time.Time) int {
	// Compare calendar days, not 24h windows, so a batch expiring later today
	// still counts as 0 days out.
	y1, m1, d1 := now.Date()
	y2, m2, d2 := b.Expiry.Date()
	today := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	expiry := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(expiry.Sub(today).Hours() / 24)
}

// Source supplies eligible batches to the recomputation pipeline.
type Source interface {
	// FetchEligible returns all batches expiring within daysThreshold days
	// that still have stock, in expiry order. Filtering happens server-side.
	FetchEligible(ctx context.Context, daysThreshold int) ([]Batch, error)

	// FetchByID returns a single batch, for on-demand recomputation.
	FetchByID(ctx context.Context, batchID int64) (Batch, error)
}
