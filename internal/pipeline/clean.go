// Package pipeline implements the batch transformation stages: cleaning,
// validation, and the runner that sequences them with storage, analytics,
// and export.
package pipeline

import (
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lchartrand/shelfprice/internal/domain"
)

// requiredColumns are the fields a row must carry (with a parseable value)
// to survive cleaning.
var requiredColumns = []string{"timestamp", "supplier", "product_id", "price", "currency"}

// timestampLayouts are tried in order when coercing the timestamp column.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// candidate is a row mid-cleaning: typed columns that failed coercion are
// nil rather than an error, which later triggers the required-field drop.
type candidate struct {
	timestamp  *time.Time
	price      *float64
	supplier   string
	productID  string
	currency   string
	category   string
	sourceName string
}

// Clean normalizes a raw batch into canonical observations through explicit
// per-column passes: column-name normalization, string trimming, type
// coercion, and the required-field drop. It is pure and order-independent;
// the returned count is the number of rows dropped for missing required
// fields.
func Clean(batch []domain.RawRecord, logger *slog.Logger) ([]domain.Observation, int) {
	normalized := normalizeColumns(batch)
	trimValues(normalized)
	candidates := coerceTypes(normalized)
	observations, dropped := dropIncomplete(candidates)

	if dropped > 0 {
		logger.Info("dropped rows with missing required fields", slog.Int("dropped", dropped))
	}
	return observations, dropped
}

// normalizeColumns lower-cases and trims every column name. Later duplicates
// win on collision, matching map-assignment order.
func normalizeColumns(batch []domain.RawRecord) []domain.RawRecord {
	out := make([]domain.RawRecord, len(batch))
	for i, rec := range batch {
		norm := make(domain.RawRecord, len(rec))
		for col, val := range rec {
			norm[strings.TrimSpace(strings.ToLower(col))] = val
		}
		out[i] = norm
	}
	return out
}

// trimValues strips surrounding whitespace from every string value.
func trimValues(batch []domain.RawRecord) {
	for _, rec := range batch {
		for col, val := range rec {
			rec[col] = strings.TrimSpace(val)
		}
	}
}

// coerceTypes converts each column to its canonical type. Unparseable
// timestamps and prices become nil, never an error.
func coerceTypes(batch []domain.RawRecord) []candidate {
	out := make([]candidate, 0, len(batch))
	for _, rec := range batch {
		c := candidate{
			supplier:   rec["supplier"],
			productID:  strings.ToUpper(rec["product_id"]),
			currency:   strings.ToUpper(rec["currency"]),
			category:   rec["category"],
			sourceName: rec["source_name"],
		}
		if ts, ok := parseTimestamp(rec["timestamp"]); ok {
			c.timestamp = &ts
		}
		if raw := rec["price"]; raw != "" {
			// ParseFloat accepts "NaN" and "Inf" spellings; a non-finite
			// price is missing data, not a number.
			if price, err := strconv.ParseFloat(raw, 64); err == nil &&
				!math.IsNaN(price) && !math.IsInf(price, 0) {
				c.price = &price
			}
		}
		out = append(out, c)
	}
	return out
}

// dropIncomplete removes rows missing any required field and defaults the
// optional category column.
func dropIncomplete(candidates []candidate) ([]domain.Observation, int) {
	observations := make([]domain.Observation, 0, len(candidates))
	dropped := 0

	for _, c := range candidates {
		if c.timestamp == nil || c.price == nil ||
			c.supplier == "" || c.productID == "" || c.currency == "" {
			dropped++
			continue
		}
		category := c.category
		if category == "" {
			category = "Unknown"
		}
		observations = append(observations, domain.Observation{
			Timestamp:  *c.timestamp,
			Supplier:   c.supplier,
			ProductID:  c.productID,
			Price:      *c.price,
			Currency:   c.currency,
			Category:   category,
			SourceName: c.sourceName,
		})
	}
	return observations, dropped
}

func parseTimestamp(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
