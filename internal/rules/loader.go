package rules

import (
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Document mirrors the YAML rule configuration file.
type Document struct {
	Global            GlobalDoc              `yaml:"global"`
	Rules             []RuleDoc              `yaml:"rules"`
	CategoryOverrides map[string]CategoryDoc `yaml:"category_overrides"`
}

// GlobalDoc holds the global bounds section.
type GlobalDoc struct {
	MinDiscount        float64 `yaml:"min_discount"`
	MaxDiscount        float64 `yaml:"max_discount"`
	DefaultPriceFloor  float64 `yaml:"default_price_floor_fraction"`
	ExpiredMaxDiscount float64 `yaml:"expired_max_discount"`
}

// RuleDoc is a single rule entry in the document.
type RuleDoc struct {
	Name       string                  `yaml:"name"`
	Category   string                  `yaml:"category"`
	Conditions map[string]ConditionDoc `yaml:"conditions"`
	Discount   float64                 `yaml:"discount"`
	PriceFloor float64                 `yaml:"price_floor_fraction"`
	Priority   int                     `yaml:"priority"`
}

// ConditionDoc is the {op, value} pair of a single condition.
type ConditionDoc struct {
	Op    string `yaml:"op"`
	Value int    `yaml:"value"`
}

// CategoryDoc holds override rules and an optional floor for one category.
type CategoryDoc struct {
	PriceFloor float64   `yaml:"price_floor_fraction"`
	Rules      []RuleDoc `yaml:"rules"`
}

// Load reads and compiles the rule document at path.
// Any malformed content is a fatal error: the engine must never start with a
// partially parsed rule set, and there is no silent empty-rules fallback.
func Load(path string) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules document %s: %w", path, err)
	}
	snap, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules document %s: %w", path, err)
	}
	return snap, nil
}

// Parse compiles a raw YAML rule document into an immutable Snapshot.
func Parse(raw []byte) (*Snapshot, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	bounds, err := compileBounds(doc.Global)
	if err != nil {
		return nil, err
	}

	general, err := compileRules(doc.Rules, "rules")
	if err != nil {
		return nil, err
	}

	overrides := make(map[string][]Rule, len(doc.CategoryOverrides))
	floors := make(map[string]decimal.Decimal, len(doc.CategoryOverrides))
	for category, catDoc := range doc.CategoryOverrides {
		key := normalizeCategory(category)
		if key == "" {
			return nil, fmt.Errorf("category_overrides: empty category name")
		}

		compiled, err := compileRules(catDoc.Rules, fmt.Sprintf("category_overrides.%s", category))
		if err != nil {
			return nil, err
		}
		overrides[key] = compiled

		if catDoc.PriceFloor != 0 {
			if err := validateFraction(catDoc.PriceFloor, fmt.Sprintf("category_overrides.%s.price_floor_fraction", category)); err != nil {
				return nil, err
			}
			floors[key] = decimal.NewFromFloat(catDoc.PriceFloor)
		}
	}

	return &Snapshot{
		general:   general,
		overrides: overrides,
		floors:    floors,
		bounds:    bounds,
	}, nil
}

func compileBounds(g GlobalDoc) (GlobalBounds, error) {
	for _, check := range []struct {
		name  string
		value float64
	}{
		{"global.min_discount", g.MinDiscount},
		{"global.max_discount", g.MaxDiscount},
		{"global.default_price_floor_fraction", g.DefaultPriceFloor},
		{"global.expired_max_discount", g.ExpiredMaxDiscount},
	} {
		if err := validateFraction(check.value, check.name); err != nil {
			return GlobalBounds{}, err
		}
	}

	if g.MinDiscount > g.MaxDiscount {
		return GlobalBounds{}, fmt.Errorf("global.min_discount (%v) cannot exceed global.max_discount (%v)", g.MinDiscount, g.MaxDiscount)
	}

	return GlobalBounds{
		MinDiscount:        decimal.NewFromFloat(g.MinDiscount),
		MaxDiscount:        decimal.NewFromFloat(g.MaxDiscount),
		DefaultPriceFloor:  decimal.NewFromFloat(g.DefaultPriceFloor),
		ExpiredMaxDiscount: decimal.NewFromFloat(g.ExpiredMaxDiscount),
	}, nil
}

// compileRules parses, validates and priority-sorts one rule list.
// The sort is stable: equal priorities keep document order, which makes
// resolution deterministic with respect to the config file.
func compileRules(docs []RuleDoc, section string) ([]Rule, error) {
	compiled := make([]Rule, 0, len(docs))

	for i, rd := range docs {
		where := fmt.Sprintf("%s[%d]", section, i)

		if rd.Name == "" {
			return nil, fmt.Errorf("%s: rule name is required", where)
		}
		if err := validateFraction(rd.Discount, where+".discount"); err != nil {
			return nil, err
		}
		if rd.PriceFloor != 0 {
			if err := validateFraction(rd.PriceFloor, where+".price_floor_fraction"); err != nil {
				return nil, err
			}
		}

		conditions := make([]Condition, 0, len(rd.Conditions))
		for field, cd := range rd.Conditions {
			switch Field(field) {
			case FieldDaysToExpiry, FieldQuantity:
			default:
				return nil, fmt.Errorf("%s: unknown condition field %q", where, field)
			}

			cmp, err := ParseComparator(cd.Op)
			if err != nil {
				return nil, fmt.Errorf("%s.conditions.%s: %w", where, field, err)
			}

			conditions = append(conditions, Condition{
				Field:     Field(field),
				Cmp:       cmp,
				Threshold: cd.Value,
			})
		}
		// Map iteration order is random; fix it so compiled rules compare
		// deterministically across loads.
		sort.Slice(conditions, func(a, b int) bool { return conditions[a].Field < conditions[b].Field })

		compiled = append(compiled, Rule{
			Name:       rd.Name,
			Conditions: conditions,
			Category:   normalizeCategory(rd.Category),
			Discount:   decimal.NewFromFloat(rd.Discount),
			PriceFloor: decimal.NewFromFloat(rd.PriceFloor),
			Priority:   rd.Priority,
		})
	}

	sort.SliceStable(compiled, func(a, b int) bool { return compiled[a].Priority > compiled[b].Priority })

	return compiled, nil
}

func validateFraction(v float64, name string) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be between 0 and 1, got %v", name, v)
	}
	return nil
}
