//go:build integration

package discount

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpontes/shelfmark/internal/testsupport"
)

// seedTestBatch inserts a product and one batch, returning the batch id.
func seedTestBatch(t *testing.T, ctx context.Context, ctr *testsupport.PostgresContainer, expiry time.Time) int64 {
	t.Helper()

	var productID int64
	err := ctr.DB.QueryRow(ctx, `
		INSERT INTO products (name, category, base_price)
		VALUES ('test yogurt', 'dairy', 4.50)
		RETURNING id
	`).Scan(&productID)
	require.NoError(t, err)

	var batchID int64
	err = ctr.DB.QueryRow(ctx, `
		INSERT INTO inventory_batches (product_id, quantity, expiry_date)
		VALUES ($1, 12, $2)
		RETURNING id
	`, productID, expiry).Scan(&batchID)
	require.NoError(t, err)

	return batchID
}

func TestPostgresStore_Integration(t *testing.T) {
	ctx := context.Background()

	ctr, err := testsupport.StartPostgresContainer(ctx, "../../migrations")
	require.NoError(t, err)
	defer ctr.Terminate(ctx)

	store := NewPostgresStore(ctr.DB)

	t.Run("Should round-trip a full record lifecycle", func(t *testing.T) {
		batchID := seedTestBatch(t, ctx, ctr, time.Now().AddDate(0, 0, 5))

		found, err := store.FindActive(ctx, batchID)
		require.NoError(t, err)
		assert.Nil(t, found, "no active record before create")

		rec := &Record{
			BatchID:          batchID,
			ComputedPrice:    decimal.RequireFromString("2.70"),
			DiscountFraction: decimal.RequireFromString("0.4"),
		}
		require.NoError(t, store.Create(ctx, rec))
		assert.NotZero(t, rec.ID)
		assert.False(t, rec.ValidFrom.IsZero())

		found, err = store.FindActive(ctx, batchID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.True(t, found.ComputedPrice.Equal(decimal.RequireFromString("2.70")))
		assert.True(t, found.Active())

		updated, err := store.UpdatePricing(ctx, rec.ID, decimal.RequireFromString("2.25"), decimal.RequireFromString("0.5"), true)
		require.NoError(t, err)
		assert.True(t, updated.ComputedPrice.Equal(decimal.RequireFromString("2.25")))
		assert.True(t, updated.MLRecommended)
		assert.Equal(t, rec.ID, updated.ID, "update must rewrite in place")

		require.NoError(t, store.Invalidate(ctx, rec.ID))
		found, err = store.FindActive(ctx, batchID)
		require.NoError(t, err)
		assert.Nil(t, found)

		// Invalidate is idempotent.
		require.NoError(t, store.Invalidate(ctx, rec.ID))
	})

	t.Run("Should enforce at most one active record per batch", func(t *testing.T) {
		batchID := seedTestBatch(t, ctx, ctr, time.Now().AddDate(0, 0, 5))

		first := &Record{BatchID: batchID, ComputedPrice: decimal.RequireFromString("3.00"), DiscountFraction: decimal.RequireFromString("0.3")}
		require.NoError(t, store.Create(ctx, first))

		second := &Record{BatchID: batchID, ComputedPrice: decimal.RequireFromString("2.00"), DiscountFraction: decimal.RequireFromString("0.5")}
		err := store.Create(ctx, second)
		require.Error(t, err, "partial unique index must reject a second active record")

		// After closing the first, a new active record is allowed.
		require.NoError(t, store.Invalidate(ctx, first.ID))
		require.NoError(t, store.Create(ctx, second))
	})

	t.Run("Should invalidate only discounts of expired batches", func(t *testing.T) {
		expiredID := seedTestBatch(t, ctx, ctr, time.Now().AddDate(0, 0, -1))
		freshID := seedTestBatch(t, ctx, ctr, time.Now().AddDate(0, 0, 10))

		for _, id := range []int64{expiredID, freshID} {
			rec := &Record{BatchID: id, ComputedPrice: decimal.RequireFromString("1.00"), DiscountFraction: decimal.RequireFromString("0.7")}
			require.NoError(t, store.Create(ctx, rec))
		}

		n, err := store.InvalidateExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		found, err := store.FindActive(ctx, expiredID)
		require.NoError(t, err)
		assert.Nil(t, found)

		found, err = store.FindActive(ctx, freshID)
		require.NoError(t, err)
		assert.NotNil(t, found)
	})

	t.Run("Should report missing records on update", func(t *testing.T) {
		_, err := store.UpdatePricing(ctx, 999999, decimal.RequireFromString("1.00"), decimal.RequireFromString("0.1"), false)
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})
}
