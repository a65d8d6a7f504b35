package config

import "fmt"

// PipelineConfig contains defaults and limits for the recomputation pipeline.
type PipelineConfig struct {
	// RulesPath points at the YAML discount rules document.
	RulesPath string `envconfig:"RULES_PATH" default:"config/discount_rules.yaml"`

	// DefaultDaysThreshold is the expiry window used when a trigger does not
	// specify one. Batches expiring within this many days are eligible.
	DefaultDaysThreshold int `envconfig:"DEFAULT_DAYS_THRESHOLD" default:"30" validate:"min=0"`

	// DefaultChunkSize is the number of batches per chunk when a trigger does
	// not specify one.
	DefaultChunkSize int `envconfig:"DEFAULT_CHUNK_SIZE" default:"100" validate:"min=1"`

	// MaxChunkSize caps caller-supplied chunk sizes.
	MaxChunkSize int `envconfig:"MAX_CHUNK_SIZE" default:"1000" validate:"min=1"`
}

// Validate checks PipelineConfig fields for correctness.
func (c *PipelineConfig) Validate() error {
	if c.RulesPath == "" {
		return fmt.Errorf("pipeline rules path cannot be empty")
	}
	if c.DefaultChunkSize > c.MaxChunkSize {
		return fmt.Errorf("default_chunk_size (%d) cannot be greater than max_chunk_size (%d)", c.DefaultChunkSize, c.MaxChunkSize)
	}
	return nil
}
