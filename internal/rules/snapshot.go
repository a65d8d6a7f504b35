package rules

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Snapshot is an immutable, fully compiled rule set. Snapshots may be shared
// freely across goroutines; a reload produces a new Snapshot rather than
// mutating one in place.
type Snapshot struct {
	general   []Rule
	overrides map[string][]Rule
	floors    map[string]decimal.Decimal
	bounds    GlobalBounds
}

// Bounds returns the global bounds of this snapshot.
func (s *Snapshot) Bounds() GlobalBounds {
	return s.bounds
}

// CategoryFloor returns the price floor fraction configured for a category
// and whether one exists.
func (s *Snapshot) CategoryFloor(category string) (decimal.Decimal, bool) {
	f, ok := s.floors[normalizeCategory(category)]
	return f, ok
}

// RuleCount returns the number of general and category-override rules loaded.
// Used for logging after load/reload.
func (s *Snapshot) RuleCount() (general, overrides int) {
	general = len(s.general)
	for _, list := range s.overrides {
		overrides += len(list)
	}
	return general, overrides
}

// Resolve returns the first rule whose conjunction of conditions is satisfied,
// or nil when nothing matches. When the category has overrides, the applicable
// list is the override rules followed by the general rules (override-and-
// fallback); otherwise only the general rules apply. The scan is linear and
// deterministic: lists are priority-sorted at load, ties keep document order.
func (s *Snapshot) Resolve(daysToExpiry, quantity int, category string) *Rule {
	category = normalizeCategory(category)

	if category != "" {
		if overrides, ok := s.overrides[category]; ok {
			for i := range overrides {
				if overrides[i].Matches(daysToExpiry, quantity, category) {
					return &overrides[i]
				}
			}
		}
	}

	for i := range s.general {
		if s.general[i].Matches(daysToExpiry, quantity, category) {
			return &s.general[i]
		}
	}

	return nil
}

func normalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}
