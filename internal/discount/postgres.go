package discount

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mpontes/shelfmark/internal/validation"
)

// Compile-time check to verify that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// ErrRecordNotFound is returned for updates against a missing record id.
var ErrRecordNotFound = errors.New("discount record not found")

// PostgresStore persists discount records in the batch_discounts table.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new store instance with the given connection pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	validation.AssertNotNil(db, "discount: database pool")
	return &PostgresStore{db: db}
}

// FindActive returns the record with an open validity window for the batch.
// The partial unique index on (batch_id) WHERE valid_to IS NULL backs the
// at-most-one-active invariant, so at most one row can come back.
func (s *PostgresStore) FindActive(ctx context.Context, batchID int64) (*Record, error) {
	query := `
		SELECT id, batch_id, computed_price, discount_fraction, valid_from, valid_to, ml_recommended
		FROM batch_discounts
		WHERE batch_id = $1 AND valid_to IS NULL
	`

	var r Record
	err := s.db.QueryRow(ctx, query, batchID).Scan(
		&r.ID,
		&r.BatchID,
		&r.ComputedPrice,
		&r.DiscountFraction,
		&r.ValidFrom,
		&r.ValidTo,
		&r.MLRecommended,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active discount for batch %d: %w", batchID, err)
	}

	return &r, nil
}

// Create inserts a new active record. The RETURNING clause populates the
// server-generated id and valid_from.
func (s *PostgresStore) Create(ctx context.Context, r *Record) error {
	query := `
		INSERT INTO batch_discounts (batch_id, computed_price, discount_fraction, valid_from, ml_recommended)
		VALUES ($1, $2, $3, now(), $4)
		RETURNING id, valid_from
	`

	err := s.db.QueryRow(ctx, query,
		r.BatchID,
		r.ComputedPrice,
		r.DiscountFraction,
		r.MLRecommended,
	).Scan(&r.ID, &r.ValidFrom)
	if err != nil {
		return fmt.Errorf("failed to insert discount for batch %d: %w", r.BatchID, err)
	}

	return nil
}

// UpdatePricing rewrites the pricing fields of an existing record in place.
func (s *PostgresStore) UpdatePricing(ctx context.Context, id int64, price, fraction decimal.Decimal, mlRecommended bool) (*Record, error) {
	query := `
		UPDATE batch_discounts
		SET computed_price = $2, discount_fraction = $3, ml_recommended = $4
		WHERE id = $1
		RETURNING id, batch_id, computed_price, discount_fraction, valid_from, valid_to, ml_recommended
	`

	var r Record
	err := s.db.QueryRow(ctx, query, id, price, fraction, mlRecommended).Scan(
		&r.ID,
		&r.BatchID,
		&r.ComputedPrice,
		&r.DiscountFraction,
		&r.ValidFrom,
		&r.ValidTo,
		&r.MLRecommended,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("discount %d: %w", id, ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to update discount %d: %w", id, err)
	}

	return &r, nil
}

// Invalidate closes the record's validity window. Idempotent: an already
// closed record keeps its original valid_to.
func (s *PostgresStore) Invalidate(ctx context.Context, id int64) error {
	query := `
		UPDATE batch_discounts
		SET valid_to = now()
		WHERE id = $1 AND valid_to IS NULL
	`

	tag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to invalidate discount %d: %w", id, err)
	}

	// Distinguish "missing" from "already closed" cheaply: either way the
	// record is not active anymore, so zero rows is only an error when the
	// id does not exist at all.
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM batch_discounts WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check discount %d: %w", id, err)
		}
		if !exists {
			return fmt.Errorf("discount %d: %w", id, ErrRecordNotFound)
		}
	}

	return nil
}

// InvalidateExpired closes all active discounts whose batch expiry has passed.
// Records are kept for analytics, never deleted.
func (s *PostgresStore) InvalidateExpired(ctx context.Context) (int64, error) {
	query := `
		UPDATE batch_discounts d
		SET valid_to = now()
		FROM inventory_batches b
		WHERE d.batch_id = b.id
		  AND d.valid_to IS NULL
		  AND b.expiry_date < now()
	`

	tag, err := s.db.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate expired discounts: %w", err)
	}

	return tag.RowsAffected(), nil
}
