package discount

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/mpontes/shelfmark/internal/pricing"
)

// priceTolerance is the minimum price delta required to rewrite an existing
// active record. Sub-cent drift between runs is treated as unchanged, which
// keeps repeated runs idempotent and avoids write amplification.
var priceTolerance = decimal.NewFromFloat(0.01)

// Outcome reports what Apply did and the record it left active.
type Outcome struct {
	Action Action  `json:"action"`
	Record *Record `json:"record"`
}

// Manager enforces the at-most-one-active invariant against the store.
// It decides create vs. update-in-place vs. no-op per decision.
type Manager struct {
	store  Store
	logger *slog.Logger
}

// NewManager creates an invariant manager over the given store.
func NewManager(store Store, logger *slog.Logger) *Manager {
	if store == nil {
		panic("discount: store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, logger: logger}
}

// Apply persists a pricing decision for its batch.
//
//   - No active record exists: create one. Action = CREATED.
//   - An active record exists and the price moved by more than the tolerance:
//     update price and fraction in place. Action = UPDATED.
//   - Otherwise: no write. Action = UNCHANGED.
func (m *Manager) Apply(ctx context.Context, decision pricing.Decision) (Outcome, error) {
	existing, err := m.store.FindActive(ctx, decision.BatchID)
	if err != nil {
		return Outcome{}, fmt.Errorf("batch %d: failed to look up active discount: %w", decision.BatchID, err)
	}

	if existing == nil {
		record := &Record{
			BatchID:          decision.BatchID,
			ComputedPrice:    decision.ComputedPrice,
			DiscountFraction: decision.DiscountFraction,
			MLRecommended:    decision.MLRecommended,
		}
		if err := m.store.Create(ctx, record); err != nil {
			return Outcome{}, fmt.Errorf("batch %d: failed to create discount: %w", decision.BatchID, err)
		}

		m.logger.Debug("discount created",
			slog.Int64("batch_id", decision.BatchID),
			slog.String("computed_price", decision.ComputedPrice.String()),
			slog.String("reason", decision.Reason),
		)
		return Outcome{Action: ActionCreated, Record: record}, nil
	}

	diff := existing.ComputedPrice.Sub(decision.ComputedPrice).Abs()
	if diff.LessThanOrEqual(priceTolerance) {
		return Outcome{Action: ActionUnchanged, Record: existing}, nil
	}

	updated, err := m.store.UpdatePricing(ctx, existing.ID, decision.ComputedPrice, decision.DiscountFraction, decision.MLRecommended)
	if err != nil {
		return Outcome{}, fmt.Errorf("batch %d: failed to update discount %d: %w", decision.BatchID, existing.ID, err)
	}

	m.logger.Debug("discount updated",
		slog.Int64("batch_id", decision.BatchID),
		slog.Int64("discount_id", existing.ID),
		slog.String("computed_price", decision.ComputedPrice.String()),
		slog.String("reason", decision.Reason),
	)
	return Outcome{Action: ActionUpdated, Record: updated}, nil
}

// Invalidate closes a record's validity window. It does not create a
// replacement; callers that want one call Apply again.
func (m *Manager) Invalidate(ctx context.Context, recordID int64) error {
	if err := m.store.Invalidate(ctx, recordID); err != nil {
		return fmt.Errorf("failed to invalidate discount %d: %w", recordID, err)
	}
	return nil
}

// InvalidateExpired closes every active discount whose batch has expired.
func (m *Manager) InvalidateExpired(ctx context.Context) (int64, error) {
	n, err := m.store.InvalidateExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate expired discounts: %w", err)
	}
	if n > 0 {
		m.logger.Info("expired discounts invalidated", slog.Int64("count", n))
	}
	return n, nil
}
