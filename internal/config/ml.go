package config

import (
	"fmt"
	"time"
)

// MLConfig configures the optional external discount recommender.
// When Endpoint is empty, ML-driven pricing is disabled and the rule engine
// is the only decision source.
type MLConfig struct {
	Endpoint string        `envconfig:"ENDPOINT"`
	Timeout  time.Duration `envconfig:"TIMEOUT" default:"3s" validate:"gt=0"`
	TopK     int           `envconfig:"TOP_K" default:"3" validate:"min=1"`
}

// Validate checks the ML configuration when a recommender endpoint is set.
func (c *MLConfig) Validate() error {
	if c.Endpoint == "" {
		return nil
	}
	if _, err := parseAndValidateURL(c.Endpoint, []string{"http", "https"}); err != nil {
		return fmt.Errorf("invalid ML endpoint: %w", err)
	}
	return nil
}

// IsConfigured returns true if an ML recommender endpoint is set.
func (c *MLConfig) IsConfigured() bool {
	return c.Endpoint != ""
}
