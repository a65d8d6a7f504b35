// Package pricing computes markdown prices for inventory batches.
// The computation is pure: money math uses shopspring/decimal, and all
// clamping (global bounds, price floors) happens here so every decision's
// discount fraction matches its actual price reduction.
package pricing

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/mpontes/shelfmark/internal/inventory"
)

// Decision reasons that are not rule names.
const (
	ReasonExpired       = "expired"
	ReasonNoRuleMatched = "no_rule_matched"
)

// ErrInvalidBasePrice marks a caller contract violation: computation rejects
// non-positive base prices instead of silently clamping them.
var ErrInvalidBasePrice = errors.New("base price must be positive")

// Decision is the pure output of a price computation, not yet persisted.
type Decision struct {
	BatchID          int64           `json:"batch_id"`
	ComputedPrice    decimal.Decimal `json:"computed_price"`
	DiscountFraction decimal.Decimal `json:"discount_fraction"`

	// Reason is the matched rule name, ReasonNoRuleMatched, or ReasonExpired.
	Reason string `json:"reason"`

	// MLRecommended is true when the decision came from the ML recommender
	// rather than the rule engine.
	MLRecommended bool `json:"ml_recommended"`
}

// Source produces a discount decision for a batch. The rule engine and the ML
// recommender both implement it; the invariant manager and the pipeline do not
// care which one produced a decision.
type Source interface {
	Decide(ctx context.Context, batch inventory.Batch) (Decision, error)
}
