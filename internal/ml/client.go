// Package ml integrates the optional external discount recommender.
// The client talks to the recommender's HTTP API; the decider adapts its
// recommendations into pricing decisions, falling back to the rule engine
// when the recommender is unavailable.
package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/mpontes/shelfmark/internal/config"
)

// Recommendation is one candidate markdown from the recommender, scored by
// the model's confidence.
type Recommendation struct {
	DiscountFraction decimal.Decimal `json:"discount_fraction"`
	Probability      float64         `json:"probability"`
	Reason           string          `json:"reason"`
}

// Client calls the recommender's HTTP API.
type Client struct {
	endpoint string
	topK     int
	http     *http.Client
}

// NewClient creates a recommender client from configuration.
func NewClient(cfg *config.MLConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		topK:     cfg.TopK,
		http:     &http.Client{Timeout: cfg.Timeout},
	}
}

type recommendRequest struct {
	BatchID      int64 `json:"batch_id"`
	DaysToExpiry int   `json:"days_to_expiry"`
	Quantity     int   `json:"quantity"`
	TopK         int   `json:"top_k"`
}

type recommendResponse struct {
	Recommendations []Recommendation `json:"recommendations"`
}

// Recommend asks for the top-k discount candidates for a batch, ordered by
// probability descending.
func (c *Client) Recommend(ctx context.Context, batchID int64, daysToExpiry, quantity int) ([]Recommendation, error) {
	body, err := json.Marshal(recommendRequest{
		BatchID:      batchID,
		DaysToExpiry: daysToExpiry,
		Quantity:     quantity,
		TopK:         c.topK,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode recommend request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/recommend", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build recommend request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recommender unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a bounded amount so the connection can be reused.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("recommender returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out recommendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode recommend response: %w", err)
	}
	return out.Recommendations, nil
}
