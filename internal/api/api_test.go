package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpontes/shelfmark/internal/config"
	"github.com/mpontes/shelfmark/internal/discount"
	"github.com/mpontes/shelfmark/internal/inventory"
	"github.com/mpontes/shelfmark/internal/pipeline"
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
      days_to_expiry: {op: lte, value: 10}
    discount: 0.4
    priority: 10
`

type testAPI struct {
	api       *API
	source    *inventory.MemorySource
	store     *discount.MemoryStore
	rulesPath string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(rulesPath, []byte(testRulesDoc), 0o600))

	holder, err := rules.NewHolder(rulesPath)
	require.NoError(t, err)

	source := inventory.NewMemorySource()
	store := discount.NewMemoryStore()
	runner := pipeline.NewRunner(source, pricing.NewRuleSource(holder), discount.NewManager(store, nil), nil)

	cfg := &config.PipelineConfig{
		RulesPath:            rulesPath,
		DefaultDaysThreshold: 30,
		DefaultChunkSize:     100,
		MaxChunkSize:         1000,
	}

	return &testAPI{
		api:       NewAPI(runner, nil, discount.NewManager(store, nil), holder, cfg),
		source:    source,
		store:     store,
		rulesPath: rulesPath,
	}
}

func (ta *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	ta.api.Router.ServeHTTP(rec, req)
	return rec
}

func seedBatch(ta *testAPI, id int64, price string, daysOut int) {
	ta.source.Put(inventory.Batch{
		ID:        id,
		BasePrice: decimal.RequireFromString(price),
		Category:  "produce",
		Quantity:  5,
		Expiry:    time.Now().AddDate(0, 0, daysOut),
	})
}

func TestAPI_HealthCheck(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAPI_Run(t *testing.T) {
	t.Run("Should run with defaults on an empty body", func(t *testing.T) {
		ta := newTestAPI(t)
		seedBatch(ta, 1, "10.00", 3)
		seedBatch(ta, 2, "20.00", 5)

		rec := ta.do(t, http.MethodPost, "/api/v1/runs", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp RunResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(2), resp.Stats.TotalProcessed)
		assert.Equal(t, int64(2), resp.Stats.Created)
		assert.Equal(t, 2, ta.store.Len())
	})

	t.Run("Should honor explicit parameters", func(t *testing.T) {
		ta := newTestAPI(t)
		seedBatch(ta, 1, "10.00", 3)
		seedBatch(ta, 2, "20.00", 25)

		// A 10 day window excludes the batch expiring in 25 days.
		rec := ta.do(t, http.MethodPost, "/api/v1/runs", RunRequest{DaysThreshold: intp(10), ChunkSize: intp(1)})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp RunResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(1), resp.Stats.TotalProcessed)
	})

	t.Run("Should reject an oversized chunk size", func(t *testing.T) {
		ta := newTestAPI(t)

		rec := ta.do(t, http.MethodPost, "/api/v1/runs", RunRequest{ChunkSize: intp(5000)})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "ERR_INVALID_INPUT")
	})

	t.Run("Should reject a negative days threshold", func(t *testing.T) {
		ta := newTestAPI(t)

		rec := ta.do(t, http.MethodPost, "/api/v1/runs", RunRequest{DaysThreshold: intp(-1)})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Should reject malformed JSON", func(t *testing.T) {
		ta := newTestAPI(t)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		ta.api.Router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "ERR_INVALID_JSON")
	})
}

func TestAPI_Recompute(t *testing.T) {
	t.Run("Should recompute a single batch", func(t *testing.T) {
		ta := newTestAPI(t)
		seedBatch(ta, 7, "10.00", 3)

		rec := ta.do(t, http.MethodPost, "/api/v1/batches/7/recompute", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var outcome discount.Outcome
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
		assert.Equal(t, discount.ActionCreated, outcome.Action)
		require.NotNil(t, outcome.Record)
		assert.True(t, outcome.Record.ComputedPrice.Equal(decimal.RequireFromString("6.00")))
	})

	t.Run("Should answer 404 for unknown batches", func(t *testing.T) {
		ta := newTestAPI(t)

		rec := ta.do(t, http.MethodPost, "/api/v1/batches/404/recompute", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "ERR_NOT_FOUND")
	})

	t.Run("Should answer 400 for non-numeric ids", func(t *testing.T) {
		ta := newTestAPI(t)

		rec := ta.do(t, http.MethodPost, "/api/v1/batches/banana/recompute", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAPI_RulesReload(t *testing.T) {
	t.Run("Should swap in an updated document", func(t *testing.T) {
		ta := newTestAPI(t)

		updated := testRulesDoc + `
  - name: deep-cut
    conditions:
      days_to_expiry: {op: lte, value: 2}
    discount: 0.6
    priority: 20
`
		require.NoError(t, os.WriteFile(ta.rulesPath, []byte(updated), 0o600))

		rec := ta.do(t, http.MethodPost, "/api/v1/rules/reload", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"rules":2}`, rec.Body.String())
	})

	t.Run("Should keep the old rules when the new document is invalid", func(t *testing.T) {
		ta := newTestAPI(t)
		seedBatch(ta, 1, "10.00", 3)

		require.NoError(t, os.WriteFile(ta.rulesPath, []byte("global: {min_discount: 2}"), 0o600))

		rec := ta.do(t, http.MethodPost, "/api/v1/rules/reload", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "ERR_INVALID_RULES")

		// The previously loaded rules must still decide prices.
		rec = ta.do(t, http.MethodPost, "/api/v1/batches/1/recompute", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var outcome discount.Outcome
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
		assert.True(t, outcome.Record.ComputedPrice.Equal(decimal.RequireFromString("6.00")))
	})
}

func TestAPI_InvalidateExpired(t *testing.T) {
	ta := newTestAPI(t)
	seedBatch(ta, 1, "10.00", 3)

	rec := ta.do(t, http.MethodPost, "/api/v1/batches/1/recompute", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	ta.store.Expiries[1] = time.Now().AddDate(0, 0, -1)

	rec = ta.do(t, http.MethodPost, "/api/v1/discounts/invalidate-expired", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"invalidated":1}`, rec.Body.String())
	assert.Equal(t, 0, ta.store.ActiveCount(1))
}

func TestAPI_DispatchWithoutRedis(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodPost, "/api/v1/runs/dispatch", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_DISPATCH_UNAVAILABLE")

	rec = ta.do(t, http.MethodGet, "/api/v1/jobs/some-id", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func intp(v int) *int { return &v }
