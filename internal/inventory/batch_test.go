package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatch_DaysToExpiry(t *testing.T) {
	now := time.Date(2026, time.March, 10, 14, 30, 0, 0, time.UTC)

	testCases := []struct {
		name   string
		expiry time.Time
		want   int
	}{
		{name: "expires later today", expiry: time.Date(2026, time.March, 10, 23, 0, 0, 0, time.UTC), want: 0},
		{name: "expires earlier today", expiry: time.Date(2026, time.March, 10, 1, 0, 0, 0, time.UTC), want: 0},
		{name: "expires tomorrow morning", expiry: time.Date(2026, time.March, 11, 6, 0, 0, 0, time.UTC), want: 1},
		{name: "expired yesterday", expiry: time.Date(2026, time.March, 9, 23, 59, 0, 0, time.UTC), want: -1},
		{name: "a week out", expiry: time.Date(2026, time.March, 17, 0, 0, 0, 0, time.UTC), want: 7},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := Batch{Expiry: tc.expiry}
			assert.Equal(t, tc.want, b.DaysToExpiry(now))
		})
	}
}

func TestMemorySource_FetchEligible(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	batch := func(id int64, quantity, daysOut int) Batch {
		return Batch{
			ID:        id,
			BasePrice: decimal.NewFromInt(10),
			Quantity:  quantity,
			Expiry:    now.AddDate(0, 0, daysOut),
		}
	}

	source := NewMemorySource(
		batch(1, 5, 2),
		batch(2, 5, 9),
		batch(3, 5, 40), // outside window
		batch(4, 0, 1),  // out of stock
	).WithClock(func() time.Time { return now })

	got, err := source.FetchEligible(context.Background(), 10)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID, "most urgent batch first")
	assert.Equal(t, int64(2), got[1].ID)
}
