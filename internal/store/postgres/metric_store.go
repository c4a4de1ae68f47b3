package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lchartrand/shelfprice/internal/domain"
)

// MetricStore implements domain.MetricStore using PostgreSQL.
type MetricStore struct {
	pool *pgxpool.Pool
}

// NewMetricStore creates a new MetricStore backed by the given connection
// pool.
func NewMetricStore(pool *pgxpool.Pool) *MetricStore {
	return &MetricStore{pool: pool}
}

// UpsertBatch inserts each metric or, on a (date, product_id, supplier)
// collision, overwrites every numeric field of the existing row. A failing
// row is recorded as a RowError and the batch continues.
func (s *MetricStore) UpsertBatch(ctx context.Context, metrics []domain.DailyMetric) (int, []domain.RowError, error) {
	if len(metrics) == 0 {
		return 0, nil, nil
	}

	const query = `
		INSERT INTO daily_metrics (
			date, supplier, product_id, open_price, close_price,
			high_price, low_price, daily_return, rolling_avg_7d, volatility_7d
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (date, product_id, supplier) DO UPDATE SET
			open_price     = EXCLUDED.open_price,
			close_price    = EXCLUDED.close_price,
			high_price     = EXCLUDED.high_price,
			low_price      = EXCLUDED.low_price,
			daily_return   = EXCLUDED.daily_return,
			rolling_avg_7d = EXCLUDED.rolling_avg_7d,
			volatility_7d  = EXCLUDED.volatility_7d,
			computed_at    = NOW()`

	affected := 0
	var rowErrs []domain.RowError
	for i, m := range metrics {
		_, err := s.pool.Exec(ctx, query,
			m.Date, m.Supplier, m.ProductID,
			m.OpenPrice, m.ClosePrice, m.HighPrice, m.LowPrice,
			m.DailyReturn, m.RollingAvg7d, m.Volatility7d,
		)
		if err != nil {
			if ctx.Err() != nil {
				return affected, rowErrs, fmt.Errorf("postgres: upsert metrics: %w", ctx.Err())
			}
			rowErrs = append(rowErrs, domain.RowError{Index: i, Err: err})
			continue
		}
		affected++
	}
	return affected, rowErrs, nil
}

// List returns metrics in the date range, ordered by date, supplier,
// product_id.
func (s *MetricStore) List(ctx context.Context, f domain.MetricFilter) ([]domain.DailyMetric, error) {
	query := `
		SELECT date, supplier, product_id, open_price, close_price,
			high_price, low_price, daily_return, rolling_avg_7d, volatility_7d
		FROM daily_metrics WHERE 1 = 1`
	args := []any{}
	argIdx := 1

	if f.Start != nil {
		query += fmt.Sprintf(" AND date >= $%d", argIdx)
		args = append(args, *f.Start)
		argIdx++
	}
	if f.End != nil {
		query += fmt.Sprintf(" AND date <= $%d", argIdx)
		args = append(args, *f.End)
		argIdx++
	}

	query += " ORDER BY date, supplier, product_id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list metrics: %w", err)
	}
	defer rows.Close()

	var metrics []domain.DailyMetric
	for rows.Next() {
		var m domain.DailyMetric
		if err := rows.Scan(
			&m.Date, &m.Supplier, &m.ProductID,
			&m.OpenPrice, &m.ClosePrice, &m.HighPrice, &m.LowPrice,
			&m.DailyReturn, &m.RollingAvg7d, &m.Volatility7d,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan metrics: %w", err)
		}
		metrics = append(metrics, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list metrics: %w", err)
	}
	return metrics, nil
}
