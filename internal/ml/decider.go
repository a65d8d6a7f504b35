package ml

import (
	"context"
	"log/slog"
	"time"

	"github.com/mpontes/shelfmark/internal/inventory"
	"github.com/mpontes/shelfmark/internal/pricing"
	"github.com/mpontes/shelfmark/internal/rules"
)

// Compile-time check to verify that Decider implements pricing.Source.
var _ pricing.Source = (*Decider)(nil)

// Recommender is the slice of the client the decider needs.
type Recommender interface {
	Recommend(ctx context.Context, batchID int64, daysToExpiry, quantity int) ([]Recommendation, error)
}

// Decider turns recommender output into pricing decisions. The top
// recommendation's fraction is priced under the same global bounds and
// category floors the rule engine uses. When the recommender fails or has
// nothing to say, the decision falls through to the rule engine, so an
// outage degrades quality, not availability.
type Decider struct {
	recommender Recommender
	holder      *rules.Holder
	fallback    pricing.Source
	logger      *slog.Logger
	now         func() time.Time
}

// NewDecider wires a decider over the recommender, the rule holder for
// bounds, and the fallback decision source.
func NewDecider(recommender Recommender, holder *rules.Holder, fallback pricing.Source, logger *slog.Logger) *Decider {
	if recommender == nil || holder == nil || fallback == nil {
		panic("ml: decider dependencies cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Decider{
		recommender: recommender,
		holder:      holder,
		fallback:    fallback,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (d *Decider) WithClock(now func() time.Time) *Decider {
	d.now = now
	return d
}

// Decide produces an ML-backed decision for the batch.
// Expired batches always take the rule engine's expired path; the model is
// only consulted for sellable stock.
func (d *Decider) Decide(ctx context.Context, batch inventory.Batch) (pricing.Decision, error) {
	days := batch.DaysToExpiry(d.now())
	if days < 0 {
		return d.fallback.Decide(ctx, batch)
	}

	recs, err := d.recommender.Recommend(ctx, batch.ID, days, batch.Quantity)
	if err != nil {
		d.logger.Warn("recommender failed, falling back to rules",
			slog.Int64("batch_id", batch.ID),
			slog.String("error", err.Error()),
		)
		return d.fallback.Decide(ctx, batch)
	}
	best := pickBest(recs)
	if best == nil {
		return d.fallback.Decide(ctx, batch)
	}

	decision, err := pricing.ComputeWithFraction(pricing.Input{
		BatchID:      batch.ID,
		BasePrice:    batch.BasePrice,
		DaysToExpiry: days,
		Quantity:     batch.Quantity,
		Category:     batch.Category,
	}, d.holder.Snapshot(), best.DiscountFraction, best.Reason)
	if err != nil {
		return pricing.Decision{}, err
	}

	decision.MLRecommended = true
	return decision, nil
}

// pickBest returns the highest-probability recommendation, or nil.
func pickBest(recs []Recommendation) *Recommendation {
	var best *Recommendation
	for i := range recs {
		if best == nil || recs[i].Probability > best.Probability {
			best = &recs[i]
		}
	}
	return best
}
