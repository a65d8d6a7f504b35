package api

import (
	"fmt"

	"github.com/mpontes/shelfmark/internal/config"
	"github.com/mpontes/shelfmark/internal/pipeline"
)

// RunRequest is the payload of the run and dispatch endpoints. Both fields
// are optional; omitted or zero values take the configured defaults.
type RunRequest struct {
	DaysThreshold *int `json:"days_threshold,omitempty"`
	ChunkSize     *int `json:"chunk_size,omitempty"`
}

// Resolve fills in defaults and validates against the configured limits.
// It returns the effective parameters or a structured error.
func (r *RunRequest) Resolve(cfg *config.PipelineConfig) (daysThreshold, chunkSize int, errResp *ErrorResponse) {
	daysThreshold = cfg.DefaultDaysThreshold
	if r.DaysThreshold != nil {
		daysThreshold = *r.DaysThreshold
	}
	chunkSize = cfg.DefaultChunkSize
	if r.ChunkSize != nil {
		chunkSize = *r.ChunkSize
	}

	if daysThreshold < 0 {
		return 0, 0, &ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "days_threshold must be >= 0",
		}
	}
	if chunkSize < 1 {
		return 0, 0, &ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "chunk_size must be >= 1",
		}
	}
	if chunkSize > cfg.MaxChunkSize {
		return 0, 0, &ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: fmt.Sprintf("chunk_size must be <= %d", cfg.MaxChunkSize),
		}
	}
	return daysThreshold, chunkSize, nil
}

// RunResponse reports the result of a synchronous run.
type RunResponse struct {
	Stats pipeline.RunStats `json:"stats"`
}

// DispatchResponse acknowledges an asynchronous run.
type DispatchResponse struct {
	JobID  string `json:"job_id"`
	Chunks int    `json:"chunks"`
}

// ReloadResponse reports the outcome of a rules reload.
type ReloadResponse struct {
	Rules int `json:"rules"`
}

// InvalidateExpiredResponse reports how many discounts were closed.
type InvalidateExpiredResponse struct {
	Invalidated int64 `json:"invalidated"`
}

// ErrorResponse is the standard structured API error.
type ErrorResponse struct {
	// Code is a machine-readable error code (e.g., "ERR_INVALID_INPUT").
	Code string `json:"code"`

	// Message is a human-readable description of the error.
	Message string `json:"message"`
}
