package domain

import "time"

// RawRecord is one row as produced by a source: an arbitrary column set with
// string values. Column names are normalized by the cleaning stage, not here.
type RawRecord map[string]string

// Observation is one supplier's quoted price for one product at one instant,
// in canonical form (trimmed strings, upper-cased product ID and currency).
type Observation struct {
	ID         int64
	Timestamp  time.Time
	Supplier   string
	ProductID  string
	Price      float64
	Currency   string
	Category   string
	SourceName string
	IngestedAt time.Time
}

// RejectedRecord is an observation that failed a validation rule, kept with
// the reason so it can be written to the audit side file.
type RejectedRecord struct {
	Observation Observation
	Reason      string
}

// DailyMetric is one day's aggregated statistics for a
// (date, product, supplier) triple. Undefined numeric values are 0, never
// null: a group's first day has DailyReturn 0, and fewer than two trailing
// returns yields Volatility7d 0.
type DailyMetric struct {
	Date         time.Time
	Supplier     string
	ProductID    string
	OpenPrice    float64
	ClosePrice   float64
	HighPrice    float64
	LowPrice     float64
	DailyReturn  float64
	RollingAvg7d float64
	Volatility7d float64
}

// PriceComparison is a cross-supplier snapshot for one product on one date.
type PriceComparison struct {
	ProductID             string
	SnapshotDate          time.Time
	CheapestSupplier      string
	CheapestPrice         float64
	MostExpensiveSupplier string
	MostExpensivePrice    float64
	PriceSpread           float64
	SavingsPct            float64
	NumSuppliers          int
}
