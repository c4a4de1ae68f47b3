package domain

import (
	"context"
	"time"
)

// PriceFilter narrows price queries. Nil fields mean "no filter".
type PriceFilter struct {
	Start     *time.Time
	End       *time.Time
	ProductID string
}

// MetricFilter narrows daily-metric queries by date range.
type MetricFilter struct {
	Start *time.Time
	End   *time.Time
}

// RowError records a single row's failure inside a batch write. Batch
// operations continue past failing rows and report them here instead of
// aborting.
type RowError struct {
	Index int
	Err   error
}

// PriceStore persists price observations. The price table is append-only:
// InsertBatch never collapses duplicates, so re-submitting the same batch
// creates new rows.
type PriceStore interface {
	// InsertBatch inserts each observation as a new row and returns the
	// number of rows that succeeded plus per-row errors for those that
	// did not.
	InsertBatch(ctx context.Context, obs []Observation) (int, []RowError, error)
	// List returns observations matching the filter, ordered by
	// timestamp, supplier, product_id.
	List(ctx context.Context, f PriceFilter) ([]Observation, error)
	// ListLatest returns, for every (supplier, product_id) pair, the
	// observation with the maximum timestamp, ordered by product_id then
	// supplier. A timestamp tie resolves to the most recently inserted row.
	ListLatest(ctx context.Context) ([]Observation, error)
}

// MetricStore persists daily metrics, keyed on (date, product_id, supplier).
type MetricStore interface {
	// UpsertBatch inserts each metric or, on a key collision, overwrites
	// all numeric fields of the existing row.
	UpsertBatch(ctx context.Context, metrics []DailyMetric) (int, []RowError, error)
	// List returns metrics matching the filter, ordered by date,
	// supplier, product_id.
	List(ctx context.Context, f MetricFilter) ([]DailyMetric, error)
}

// ComparisonStore persists price comparisons, keyed on
// (product_id, snapshot_date).
type ComparisonStore interface {
	UpsertBatch(ctx context.Context, comparisons []PriceComparison) (int, []RowError, error)
	// List returns comparisons, optionally restricted to one snapshot
	// date, ordered by snapshot_date then product_id.
	List(ctx context.Context, snapshotDate *time.Time) ([]PriceComparison, error)
}
