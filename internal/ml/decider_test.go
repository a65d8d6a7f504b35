package ml

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpontes/shelfmark/internal/config"
	"github.com/mpontes/shelfmark/internal/inventory"
	"github.com/mpontes/shelfmark/internal/pricing"
	"github.com/mpontes/shelfmark/internal/rules"
)

const testRulesDoc = `
global:
  min_discount: 0.05
  max_discount: 0.8
  default_price_floor_fraction: 0.2
  expired_max_discount: 0.8
rules:
  - name: near-expiry
    conditions:
      days_to_expiry: {op: lte, value: 5}
    discount: 0.4
    priority: 10
`

func testHolder(t *testing.T) *rules.Holder {
	t.Helper()
	snap, err := rules.Parse([]byte(testRulesDoc))
	require.NoError(t, err)
	return rules.NewHolderFromSnapshot(snap)
}

type stubRecommender struct {
	recs []Recommendation
	err  error
}

func (s *stubRecommender) Recommend(context.Context, int64, int, int) ([]Recommendation, error) {
	return s.recs, s.err
}

func rec(fraction string, probability float64) Recommendation {
	return Recommendation{
		DiscountFraction: decimal.RequireFromString(fraction),
		Probability:      probability,
		Reason:           "model",
	}
}

func testBatch() inventory.Batch {
	return inventory.Batch{
		ID:        1,
		BasePrice: decimal.RequireFromString("10.00"),
		Category:  "produce",
		Quantity:  5,
		Expiry:    time.Now().AddDate(0, 0, 3),
	}
}

func newTestDecider(t *testing.T, r Recommender) *Decider {
	t.Helper()
	holder := testHolder(t)
	return NewDecider(r, holder, pricing.NewRuleSource(holder), nil)
}

func TestDecider_Decide(t *testing.T) {
	ctx := context.Background()

	t.Run("Should price the top recommendation", func(t *testing.T) {
		d := newTestDecider(t, &stubRecommender{recs: []Recommendation{
			rec("0.3", 0.4),
			rec("0.5", 0.9),
			rec("0.7", 0.2),
		}})

		got, err := d.Decide(ctx, testBatch())
		require.NoError(t, err)

		assert.True(t, got.MLRecommended)
		assert.True(t, got.ComputedPrice.Equal(decimal.RequireFromString("5.00")))
		assert.True(t, got.DiscountFraction.Equal(decimal.RequireFromString("0.5")))
		assert.Equal(t, "model", got.Reason)
	})

	t.Run("Should clamp recommendations to global bounds", func(t *testing.T) {
		d := newTestDecider(t, &stubRecommender{recs: []Recommendation{rec("0.99", 1)}})

		got, err := d.Decide(ctx, testBatch())
		require.NoError(t, err)

		// 0.99 clamps to max 0.8, which prices exactly at the 0.2 floor.
		assert.True(t, got.ComputedPrice.Equal(decimal.RequireFromString("2.00")))
		assert.True(t, got.DiscountFraction.Equal(decimal.RequireFromString("0.8")))
	})

	t.Run("Should fall back to rules when the recommender errors", func(t *testing.T) {
		d := newTestDecider(t, &stubRecommender{err: errors.New("timeout")})

		got, err := d.Decide(ctx, testBatch())
		require.NoError(t, err)

		assert.False(t, got.MLRecommended)
		assert.Equal(t, "near-expiry", got.Reason)
		assert.True(t, got.ComputedPrice.Equal(decimal.RequireFromString("6.00")))
	})

	t.Run("Should fall back to rules on an empty recommendation list", func(t *testing.T) {
		d := newTestDecider(t, &stubRecommender{})

		got, err := d.Decide(ctx, testBatch())
		require.NoError(t, err)
		assert.False(t, got.MLRecommended)
	})

	t.Run("Should never consult the model for expired batches", func(t *testing.T) {
		d := newTestDecider(t, &stubRecommender{recs: []Recommendation{rec("0.1", 1)}})

		b := testBatch()
		b.Expiry = time.Now().AddDate(0, 0, -2)

		got, err := d.Decide(ctx, b)
		require.NoError(t, err)

		assert.False(t, got.MLRecommended)
		assert.Equal(t, pricing.ReasonExpired, got.Reason)
	})
}

func TestClient_Recommend(t *testing.T) {
	t.Run("Should post the batch attributes and decode recommendations", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/recommend", r.URL.Path)

			var req map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.EqualValues(t, 7, req["batch_id"])
			assert.EqualValues(t, 3, req["top_k"])

			_ = json.NewEncoder(w).Encode(map[string]any{
				"recommendations": []map[string]any{
					{"discount_fraction": "0.4", "probability": 0.8, "reason": "model"},
				},
			})
		}))
		defer srv.Close()

		client := NewClient(&config.MLConfig{Endpoint: srv.URL, Timeout: time.Second, TopK: 3})
		recs, err := client.Recommend(context.Background(), 7, 2, 10)
		require.NoError(t, err)

		require.Len(t, recs, 1)
		assert.True(t, recs[0].DiscountFraction.Equal(decimal.RequireFromString("0.4")))
		assert.Equal(t, 0.8, recs[0].Probability)
	})

	t.Run("Should surface non-200 responses as errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not loaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		client := NewClient(&config.MLConfig{Endpoint: srv.URL, Timeout: time.Second, TopK: 3})
		_, err := client.Recommend(context.Background(), 7, 2, 10)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	})
}
