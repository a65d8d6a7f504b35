// Package rules provides the declarative rule engine for markdown pricing.
// Rule documents are parsed and compiled once at load time into an immutable
// Snapshot; evaluation is allocation-free and cannot fail at runtime.
package rules

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Field identifies a batch attribute a condition can target.
type Field string

const (
	FieldDaysToExpiry Field = "days_to_expiry"
	FieldQuantity     Field = "quantity"
)

// Comparator is a typed comparison operator, parsed once at config load.
type Comparator int8

const (
	CmpLT Comparator = iota
	CmpLTE
	CmpGT
	CmpGTE
	CmpEQ
)

// String returns the mnemonic form of the comparator.
func (c Comparator) String() string {
	switch c {
	case CmpLT:
		return "lt"
	case CmpLTE:
		return "lte"
	case CmpGT:
		return "gt"
	case CmpGTE:
		return "gte"
	case CmpEQ:
		return "eq"
	default:
		return fmt.Sprintf("Comparator(%d)", int8(c))
	}
}

// ParseComparator converts a config operator string into a typed Comparator.
// Both mnemonic ("lte") and symbolic ("<=") forms are accepted. Unknown
// operators are a load-time error, never a per-evaluation failure.
func ParseComparator(op string) (Comparator, error) {
	switch op {
	case "lt", "<":
		return CmpLT, nil
	case "lte", "<=":
		return CmpLTE, nil
	case "gt", ">":
		return CmpGT, nil
	case "gte", ">=":
		return CmpGTE, nil
	case "eq", "==", "=":
		return CmpEQ, nil
	default:
		return 0, fmt.Errorf("unknown comparison operator %q", op)
	}
}

// Condition is a single compiled numeric condition against a batch attribute.
type Condition struct {
	Field     Field
	Cmp       Comparator
	Threshold int
}

// Eval evaluates the condition against a value. It is pure and total for all
// integers, including negative days_to_expiry.
func (c Condition) Eval(value int) bool {
	switch c.Cmp {
	case CmpLT:
		return value < c.Threshold
	case CmpLTE:
		return value <= c.Threshold
	case CmpGT:
		return value > c.Threshold
	case CmpGTE:
		return value >= c.Threshold
	case CmpEQ:
		return value == c.Threshold
	default:
		// Unreachable: comparators are validated at load time.
		return false
	}
}

// Rule is a named condition -> discount mapping. Immutable once loaded.
type Rule struct {
	// Name identifies the rule in decisions and logs.
	Name string

	// Conditions is a conjunction; an empty list matches everything.
	Conditions []Condition

	// Category is an optional exact-match constraint (lowercased at load).
	// Empty means the rule applies to any category.
	Category string

	// Discount is the markdown fraction in [0, 1].
	Discount decimal.Decimal

	// PriceFloor is the minimum price as a fraction of base price.
	// Zero means "use the category or global default".
	PriceFloor decimal.Decimal

	// Priority orders rules within a list; higher wins. Ties keep config order.
	Priority int
}

// Matches reports whether all of the rule's conditions hold for the inputs.
func (r *Rule) Matches(daysToExpiry, quantity int, category string) bool {
	if r.Category != "" && r.Category != category {
		return false
	}
	for _, cond := range r.Conditions {
		var value int
		switch cond.Field {
		case FieldDaysToExpiry:
			value = daysToExpiry
		case FieldQuantity:
			value = quantity
		default:
			// Unreachable: fields are validated at load time.
			return false
		}
		if !cond.Eval(value) {
			return false
		}
	}
	return true
}

// GlobalBounds clamps and defaults applied on top of any matched rule.
type GlobalBounds struct {
	// MinDiscount and MaxDiscount bound the discount fraction of any match.
	MinDiscount decimal.Decimal
	MaxDiscount decimal.Decimal

	// DefaultPriceFloor is the floor fraction used when neither the rule nor
	// the category specifies one.
	DefaultPriceFloor decimal.Decimal

	// ExpiredMaxDiscount is applied directly to already-expired batches,
	// bypassing rule resolution.
	ExpiredMaxDiscount decimal.Decimal
}
