package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mpontes/shelfmark/internal/rules"
)

// priceScale and fractionScale are the rounding precisions for computed
// prices (currency cents, half-up) and display fractions.
const (
	priceScale    = 2
	fractionScale = 4
)

var one = decimal.NewFromInt(1)

// Input carries the batch attributes the computation needs.
type Input struct {
	BatchID      int64
	BasePrice    decimal.Decimal
	DaysToExpiry int
	Quantity     int
	Category     string
}

// Compute derives a markdown decision for one batch from the rule snapshot.
// minPriceOverride, when non-nil, replaces the fraction-derived price floor
// with an absolute minimum price.
//
// The expired path (negative days to expiry) bypasses rule resolution and
// applies the global expired markdown directly.
func Compute(in Input, snap *rules.Snapshot, minPriceOverride *decimal.Decimal) (Decision, error) {
	if !in.BasePrice.IsPositive() {
		return Decision{}, fmt.Errorf("batch %d: %w (got %s)", in.BatchID, ErrInvalidBasePrice, in.BasePrice)
	}

	bounds := snap.Bounds()

	if in.DaysToExpiry < 0 {
		fraction := bounds.ExpiredMaxDiscount
		price := in.BasePrice.Mul(one.Sub(fraction))
		return Decision{
			BatchID:          in.BatchID,
			ComputedPrice:    price.Round(priceScale),
			DiscountFraction: fraction.Round(fractionScale),
			Reason:           ReasonExpired,
		}, nil
	}

	rule := snap.Resolve(in.DaysToExpiry, in.Quantity, in.Category)
	if rule == nil {
		return Decision{
			BatchID:          in.BatchID,
			ComputedPrice:    in.BasePrice.Round(priceScale),
			DiscountFraction: decimal.Zero,
			Reason:           ReasonNoRuleMatched,
		}, nil
	}

	fraction := clamp(rule.Discount, bounds.MinDiscount, bounds.MaxDiscount)
	price := in.BasePrice.Mul(one.Sub(fraction))

	floor := floorPrice(in, rule, snap, minPriceOverride)
	if price.LessThan(floor) {
		price = floor
		// Report the discount that was actually applied, not the one the
		// rule asked for.
		fraction = in.BasePrice.Sub(price).Div(in.BasePrice)
	}

	return Decision{
		BatchID:          in.BatchID,
		ComputedPrice:    price.Round(priceScale),
		DiscountFraction: fraction.Round(fractionScale),
		Reason:           rule.Name,
	}, nil
}

// ComputeWithFraction prices a batch from an externally supplied discount
// fraction instead of rule resolution. The fraction still goes through the
// global bounds, and the price through the category or default floor, so an
// aggressive external recommendation can never undercut policy.
func ComputeWithFraction(in Input, snap *rules.Snapshot, fraction decimal.Decimal, reason string) (Decision, error) {
	if !in.BasePrice.IsPositive() {
		return Decision{}, fmt.Errorf("batch %d: %w (got %s)", in.BatchID, ErrInvalidBasePrice, in.BasePrice)
	}

	bounds := snap.Bounds()
	fraction = clamp(fraction, bounds.MinDiscount, bounds.MaxDiscount)
	price := in.BasePrice.Mul(one.Sub(fraction))

	floorFraction := bounds.DefaultPriceFloor
	if catFloor, ok := snap.CategoryFloor(in.Category); ok {
		floorFraction = catFloor
	}
	if floor := in.BasePrice.Mul(floorFraction); price.LessThan(floor) {
		price = floor
		fraction = in.BasePrice.Sub(price).Div(in.BasePrice)
	}

	return Decision{
		BatchID:          in.BatchID,
		ComputedPrice:    price.Round(priceScale),
		DiscountFraction: fraction.Round(fractionScale),
		Reason:           reason,
	}, nil
}

// floorPrice resolves the minimum allowed price: an absolute override wins,
// then the rule's floor fraction, then the category floor, then the global
// default.
func floorPrice(in Input, rule *rules.Rule, snap *rules.Snapshot, override *decimal.Decimal) decimal.Decimal {
	if override != nil {
		return *override
	}

	fraction := rule.PriceFloor
	if fraction.IsZero() {
		if catFloor, ok := snap.CategoryFloor(in.Category); ok {
			fraction = catFloor
		} else {
			fraction = snap.Bounds().DefaultPriceFloor
		}
	}

	return in.BasePrice.Mul(fraction)
}

func clamp(v, min, max decimal.Decimal) decimal.Decimal {
	if v.LessThan(min) {
		return min
	}
	if v.GreaterThan(max) {
		return max
	}
	return v
}
