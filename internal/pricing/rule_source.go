package pricing

import (
	"context"
	"time"

	"github.com/mpontes/shelfmark/internal/inventory"
	"github.com/mpontes/shelfmark/internal/rules"
	"github.com/mpontes/shelfmark/internal/validation"
)

// Compile-time check to verify that RuleSource implements Source.
var _ Source = (*RuleSource)(nil)

// RuleSource is the rule-engine-backed decision source. It reads the current
// rule snapshot from the holder on every decision, so a reload takes effect
// on the next batch without affecting decisions already in flight.
type RuleSource struct {
	holder *rules.Holder
	now    func() time.Time
}

// NewRuleSource creates a decision source backed by the given rule holder.
func NewRuleSource(holder *rules.Holder) *RuleSource {
	validation.AssertNotNil(holder, "pricing: rule holder")
	return &RuleSource{
		holder: holder,
		now:    time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *RuleSource) WithClock(now func() time.Time) *RuleSource {
	s.now = now
	return s
}

// Decide computes a rule-based markdown decision for the batch.
func (s *RuleSource) Decide(_ context.Context, batch inventory.Batch) (Decision, error) {
	return Compute(Input{
		BatchID:      batch.ID,
		BasePrice:    batch.BasePrice,
		DaysToExpiry: batch.DaysToExpiry(s.now()),
		Quantity:     batch.Quantity,
		Category:     batch.Category,
	}, s.holder.Snapshot(), nil)
}
