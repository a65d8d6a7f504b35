package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpontes/shelfmark/internal/validation"
)

// Compile-time check to verify that PostgresSource implements Source.
var _ Source = (*PostgresSource)(nil)

// PostgresSource reads inventory batches from PostgreSQL using the pgx driver.
type PostgresSource struct {
	db *pgxpool.Pool
}

// NewPostgresSource creates a new batch source with the given connection pool.
func NewPostgresSource(db *pgxpool.Pool) *PostgresSource {
	validation.AssertNotNil(db, "inventory: database pool")
	return &PostgresSource{db: db}
}

// FetchEligible returns batches expiring within daysThreshold days that still
// have stock. The filter runs server-side; results come back in expiry order
// so the most urgent batches are processed first.
func (s *PostgresSource) FetchEligible(ctx context.Context, daysThreshold int) ([]Batch, error) {
	query := `
		SELECT b.id, p.base_price, COALESCE(p.category, ''), b.quantity, b.expiry_date
		FROM inventory_batches b
		JOIN products p ON p.id = b.product_id
		WHERE b.expiry_date <= now() + make_interval(days => $1)
		  AND b.quantity > 0
		ORDER BY b.expiry_date ASC
	`

	rows, err := s.db.Query(ctx, query, daysThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch eligible batches: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.BasePrice, &b.Category, &b.Quantity, &b.Expiry); err != nil {
			return nil, fmt.Errorf("failed to scan batch row: %w", err)
		}
		batches = append(batches, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return batches, nil
}

// FetchByID returns a single batch joined with its product.
func (s *PostgresSource) FetchByID(ctx context.Context, batchID int64) (Batch, error) {
	query := `
		SELECT b.id, p.base_price, COALESCE(p.category, ''), b.quantity, b.expiry_date
		FROM inventory_batches b
		JOIN products p ON p.id = b.product_id
		WHERE b.id = $1
	`

	var b Batch
	err := s.db.QueryRow(ctx, query, batchID).Scan(&b.ID, &b.BasePrice, &b.Category, &b.Quantity, &b.Expiry)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Batch{}, fmt.Errorf("batch %d: %w", batchID, ErrBatchNotFound)
		}
		return Batch{}, fmt.Errorf("failed to fetch batch %d: %w", batchID, err)
	}

	return b, nil
}
