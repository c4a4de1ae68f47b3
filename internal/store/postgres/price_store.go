package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lchartrand/shelfprice/internal/domain"
)

// PriceStore implements domain.PriceStore using PostgreSQL.
type PriceStore struct {
	pool *pgxpool.Pool
}

// NewPriceStore creates a new PriceStore backed by the given connection pool.
func NewPriceStore(pool *pgxpool.Pool) *PriceStore {
	return &PriceStore{pool: pool}
}

const priceSelectCols = `id, timestamp, supplier, product_id, price, currency,
	category, source_name, ingested_at`

func scanObservationRows(rows pgx.Rows) ([]domain.Observation, error) {
	var observations []domain.Observation
	for rows.Next() {
		var o domain.Observation
		if err := rows.Scan(
			&o.ID, &o.Timestamp, &o.Supplier, &o.ProductID,
			&o.Price, &o.Currency, &o.Category, &o.SourceName, &o.IngestedAt,
		); err != nil {
			return nil, err
		}
		observations = append(observations, o)
	}
	return observations, rows.Err()
}

// InsertBatch appends each observation as a new row. Rows are inserted one
// at a time so a single malformed row is recorded as a RowError and the rest
// of the batch continues; the returned count is the number of rows that
// succeeded. The non-nil error return is reserved for batch-level failures
// (an empty batch is not one).
func (s *PriceStore) InsertBatch(ctx context.Context, obs []domain.Observation) (int, []domain.RowError, error) {
	if len(obs) == 0 {
		return 0, nil, nil
	}

	const query = `
		INSERT INTO prices (timestamp, supplier, product_id, price, currency, category, source_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	inserted := 0
	var rowErrs []domain.RowError
	for i, o := range obs {
		_, err := s.pool.Exec(ctx, query,
			o.Timestamp, o.Supplier, o.ProductID, o.Price,
			o.Currency, o.Category, o.SourceName,
		)
		if err != nil {
			if ctx.Err() != nil {
				return inserted, rowErrs, fmt.Errorf("postgres: insert prices: %w", ctx.Err())
			}
			rowErrs = append(rowErrs, domain.RowError{Index: i, Err: err})
			continue
		}
		inserted++
	}
	return inserted, rowErrs, nil
}

// List returns observations matching the filter, ordered by timestamp,
// supplier, product_id for reproducible downstream computation.
func (s *PriceStore) List(ctx context.Context, f domain.PriceFilter) ([]domain.Observation, error) {
	query := `SELECT ` + priceSelectCols + ` FROM prices WHERE 1 = 1`
	args := []any{}
	argIdx := 1

	if f.Start != nil {
		query += fmt.Sprintf(" AND timestamp >= $%d", argIdx)
		args = append(args, *f.Start)
		argIdx++
	}
	if f.End != nil {
		query += fmt.Sprintf(" AND timestamp <= $%d", argIdx)
		args = append(args, *f.End)
		argIdx++
	}
	if f.ProductID != "" {
		query += fmt.Sprintf(" AND product_id = $%d", argIdx)
		args = append(args, f.ProductID)
		argIdx++
	}

	query += " ORDER BY timestamp, supplier, product_id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list prices: %w", err)
	}
	defer rows.Close()

	observations, err := scanObservationRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan prices: %w", err)
	}
	return observations, nil
}

// ListLatest returns the maximum-timestamp observation per
// (supplier, product_id), ordered by product_id then supplier. When two rows
// share the maximum timestamp the one inserted last (highest id) wins.
func (s *PriceStore) ListLatest(ctx context.Context) ([]domain.Observation, error) {
	query := `
		SELECT ` + priceSelectCols + ` FROM (
			SELECT DISTINCT ON (supplier, product_id) ` + priceSelectCols + `
			FROM prices
			ORDER BY supplier, product_id, timestamp DESC, id DESC
		) latest
		ORDER BY product_id, supplier`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list latest prices: %w", err)
	}
	defer rows.Close()

	observations, err := scanObservationRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan latest prices: %w", err)
	}
	return observations, nil
}
