package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lchartrand/shelfprice/internal/domain"
)

// ComparisonStore implements domain.ComparisonStore using PostgreSQL.
type ComparisonStore struct {
	pool *pgxpool.Pool
}

// NewComparisonStore creates a new ComparisonStore backed by the given
// connection pool.
func NewComparisonStore(pool *pgxpool.Pool) *ComparisonStore {
	return &ComparisonStore{pool: pool}
}

// UpsertBatch inserts each comparison or, on a (product_id, snapshot_date)
// collision, overwrites the existing row. A failing row is recorded as a
// RowError and the batch continues.
func (s *ComparisonStore) UpsertBatch(ctx context.Context, comparisons []domain.PriceComparison) (int, []domain.RowError, error) {
	if len(comparisons) == 0 {
		return 0, nil, nil
	}

	const query = `
		INSERT INTO price_comparison (
			product_id, snapshot_date, cheapest_supplier, cheapest_price,
			most_expensive_supplier, most_expensive_price,
			price_spread, savings_pct, num_suppliers
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (product_id, snapshot_date) DO UPDATE SET
			cheapest_supplier       = EXCLUDED.cheapest_supplier,
			cheapest_price          = EXCLUDED.cheapest_price,
			most_expensive_supplier = EXCLUDED.most_expensive_supplier,
			most_expensive_price    = EXCLUDED.most_expensive_price,
			price_spread            = EXCLUDED.price_spread,
			savings_pct             = EXCLUDED.savings_pct,
			num_suppliers           = EXCLUDED.num_suppliers,
			computed_at             = NOW()`

	affected := 0
	var rowErrs []domain.RowError
	for i, c := range comparisons {
		_, err := s.pool.Exec(ctx, query,
			c.ProductID, c.SnapshotDate, c.CheapestSupplier, c.CheapestPrice,
			c.MostExpensiveSupplier, c.MostExpensivePrice,
			c.PriceSpread, c.SavingsPct, c.NumSuppliers,
		)
		if err != nil {
			if ctx.Err() != nil {
				return affected, rowErrs, fmt.Errorf("postgres: upsert comparisons: %w", ctx.Err())
			}
			rowErrs = append(rowErrs, domain.RowError{Index: i, Err: err})
			continue
		}
		affected++
	}
	return affected, rowErrs, nil
}

// List returns comparisons, optionally restricted to one snapshot date,
// ordered by snapshot_date then product_id.
func (s *ComparisonStore) List(ctx context.Context, snapshotDate *time.Time) ([]domain.PriceComparison, error) {
	query := `
		SELECT product_id, snapshot_date, cheapest_supplier, cheapest_price,
			most_expensive_supplier, most_expensive_price,
			price_spread, savings_pct, num_suppliers
		FROM price_comparison`
	args := []any{}

	if snapshotDate != nil {
		query += " WHERE snapshot_date = $1"
		args = append(args, *snapshotDate)
	}

	query += " ORDER BY snapshot_date, product_id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list comparisons: %w", err)
	}
	defer rows.Close()

	var comparisons []domain.PriceComparison
	for rows.Next() {
		var c domain.PriceComparison
		if err := rows.Scan(
			&c.ProductID, &c.SnapshotDate, &c.CheapestSupplier, &c.CheapestPrice,
			&c.MostExpensiveSupplier, &c.MostExpensivePrice,
			&c.PriceSpread, &c.SavingsPct, &c.NumSuppliers,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan comparisons: %w", err)
		}
		comparisons = append(comparisons, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list comparisons: %w", err)
	}
	return comparisons, nil
}
