package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/lchartrand/shelfprice/internal/config"
	"github.com/lchartrand/shelfprice/internal/domain"
	"github.com/lchartrand/shelfprice/internal/export"
	"github.com/lchartrand/shelfprice/internal/source"
)

type recordSource struct {
	name    string
	records []domain.RawRecord
}

func (s *recordSource) Name() string { return s.name }

func (s *recordSource) Fetch(ctx context.Context) ([]domain.RawRecord, error) {
	return s.records, nil
}

type memPriceStore struct {
	observations []domain.Observation
	failIndexes  map[int]bool
}

func (s *memPriceStore) InsertBatch(ctx context.Context, obs []domain.Observation) (int, []domain.RowError, error) {
	var rowErrs []domain.RowError
	inserted := 0
	for i, o := range obs {
		if s.failIndexes[i] {
			rowErrs = append(rowErrs, domain.RowError{Index: i, Err: fmt.Errorf("simulated row failure")})
			continue
		}
		o.ID = int64(len(s.observations) + 1)
		s.observations = append(s.observations, o)
		inserted++
	}
	return inserted, rowErrs, nil
}

func (s *memPriceStore) List(ctx context.Context, f domain.PriceFilter) ([]domain.Observation, error) {
	var out []domain.Observation
	for _, o := range s.observations {
		if f.Start != nil && o.Timestamp.Before(*f.Start) {
			continue
		}
		if f.End != nil && o.Timestamp.After(*f.End) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *memPriceStore) ListLatest(ctx context.Context) ([]domain.Observation, error) {
	type pair struct{ supplier, product string }
	latest := make(map[pair]domain.Observation)
	var order []pair
	for _, o := range s.observations {
		k := pair{o.Supplier, o.ProductID}
		cur, ok := latest[k]
		if !ok {
			order = append(order, k)
		}
		if !ok || !o.Timestamp.Before(cur.Timestamp) {
			latest[k] = o
		}
	}
	out := make([]domain.Observation, 0, len(order))
	for _, k := range order {
		out = append(out, latest[k])
	}
	return out, nil
}

type memMetricStore struct {
	metrics []domain.DailyMetric
}

func (s *memMetricStore) UpsertBatch(ctx context.Context, metrics []domain.DailyMetric) (int, []domain.RowError, error) {
	s.metrics = append(s.metrics, metrics...)
	return len(metrics), nil, nil
}

func (s *memMetricStore) List(ctx context.Context, f domain.MetricFilter) ([]domain.DailyMetric, error) {
	return s.metrics, nil
}

type memComparisonStore struct {
	comparisons []domain.PriceComparison
}

func (s *memComparisonStore) UpsertBatch(ctx context.Context, comparisons []domain.PriceComparison) (int, []domain.RowError, error) {
	s.comparisons = append(s.comparisons, comparisons...)
	return len(comparisons), nil, nil
}

func (s *memComparisonStore) List(ctx context.Context, snapshotDate *time.Time) ([]domain.PriceComparison, error) {
	return s.comparisons, nil
}

type memCache struct {
	entries map[string]domain.LatestPrice
}

func (c *memCache) SetLatest(ctx context.Context, p domain.LatestPrice) error {
	if c.entries == nil {
		c.entries = make(map[string]domain.LatestPrice)
	}
	c.entries[p.Supplier+":"+p.ProductID] = p
	return nil
}

func (c *memCache) GetLatest(ctx context.Context, supplier, productID string) (domain.LatestPrice, error) {
	p, ok := c.entries[supplier+":"+productID]
	if !ok {
		return domain.LatestPrice{}, domain.ErrNotFound
	}
	return p, nil
}

func runnerFixture(t *testing.T, records []domain.RawRecord) (*Runner, *memPriceStore, *memMetricStore, *memComparisonStore, *memCache) {
	t.Helper()

	cfg := config.Defaults()
	cfg.Export.OutputDir = t.TempDir()

	logger := testLogger()
	registry := source.NewRegistry(false, logger)
	registry.Register(&recordSource{name: "csv:test", records: records})

	prices := &memPriceStore{}
	metrics := &memMetricStore{}
	comparisons := &memComparisonStore{}
	cache := &memCache{}
	exporter := export.New(prices, metrics, comparisons, cfg.Export.OutputDir, nil, logger)

	runner := NewRunner(&cfg, registry, prices, metrics, comparisons, cache, exporter, logger)
	return runner, prices, metrics, comparisons, cache
}

func rawRow(ts, supplier, product, price, currency string) domain.RawRecord {
	return domain.RawRecord{
		"timestamp":  ts,
		"supplier":   supplier,
		"product_id": product,
		"price":      price,
		"currency":   currency,
		"category":   "Hair",
	}
}

func marchOpts(compare bool) RunOptions {
	return RunOptions{
		Start:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		End:     time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC),
		Compare: compare,
	}
}

func TestRunnerFullRun(t *testing.T) {
	records := []domain.RawRecord{
		rawRow("2024-03-01T10:00:00Z", "lamour", "shampoo-01", "19.99", "CAD"),
		rawRow("2024-03-02T10:00:00Z", "lamour", "shampoo-01", "21.99", "CAD"),
		rawRow("2024-03-02T10:00:00Z", "sukoshi", "shampoo-01", "24.99", "CAD"),
		rawRow("2024-03-02T10:00:00Z", "sukoshi", "shampoo-01", "-1", "CAD"), // rejected
	}

	runner, prices, metrics, comparisons, cache := runnerFixture(t, records)
	if err := runner.Run(context.Background(), marchOpts(true)); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(prices.observations) != 3 {
		t.Errorf("stored prices = %d, want 3", len(prices.observations))
	}
	if len(metrics.metrics) != 3 {
		t.Errorf("stored metrics = %d, want 3 (two lamour days, one sukoshi day)", len(metrics.metrics))
	}
	if len(comparisons.comparisons) != 1 {
		t.Fatalf("stored comparisons = %d, want 1", len(comparisons.comparisons))
	}

	c := comparisons.comparisons[0]
	if c.CheapestSupplier != "lamour" || c.MostExpensiveSupplier != "sukoshi" {
		t.Errorf("comparison = %s/%s, want lamour/sukoshi", c.CheapestSupplier, c.MostExpensiveSupplier)
	}
	if c.NumSuppliers != 2 {
		t.Errorf("suppliers = %d, want 2", c.NumSuppliers)
	}

	cached, err := cache.GetLatest(context.Background(), "lamour", "SHAMPOO-01")
	if err != nil {
		t.Fatalf("cache lookup: %v", err)
	}
	if cached.Price != 21.99 {
		t.Errorf("cached latest = %v, want 21.99 (the later quote)", cached.Price)
	}
}

func TestRunnerBackfillKeepsNewerCachedQuote(t *testing.T) {
	records := []domain.RawRecord{
		rawRow("2024-03-02T10:00:00Z", "lamour", "shampoo-01", "18.50", "CAD"),
	}
	runner, _, _, _, cache := runnerFixture(t, records)

	// A later run already cached a fresher quote than this backfill batch.
	newer := domain.LatestPrice{
		Supplier:  "lamour",
		ProductID: "SHAMPOO-01",
		Price:     21.99,
		Currency:  "CAD",
		Timestamp: time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC),
	}
	if err := cache.SetLatest(context.Background(), newer); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	if err := runner.Run(context.Background(), marchOpts(false)); err != nil {
		t.Fatalf("run: %v", err)
	}

	cached, err := cache.GetLatest(context.Background(), "lamour", "SHAMPOO-01")
	if err != nil {
		t.Fatalf("cache lookup: %v", err)
	}
	if cached.Price != 21.99 || !cached.Timestamp.Equal(newer.Timestamp) {
		t.Errorf("backfill overwrote newer cached quote: %+v", cached)
	}
}

func TestRunnerEmptyFetchIsCleanExit(t *testing.T) {
	runner, prices, metrics, _, _ := runnerFixture(t, nil)
	if err := runner.Run(context.Background(), marchOpts(false)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(prices.observations) != 0 || len(metrics.metrics) != 0 {
		t.Error("empty fetch should store nothing")
	}
}

func TestRunnerAllRejectedIsCleanExit(t *testing.T) {
	records := []domain.RawRecord{
		rawRow("2024-03-01T10:00:00Z", "lamour", "shampoo-01", "19.99", "EUR"),
	}
	runner, prices, _, _, _ := runnerFixture(t, records)
	if err := runner.Run(context.Background(), marchOpts(false)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(prices.observations) != 0 {
		t.Errorf("stored prices = %d, want 0", len(prices.observations))
	}
}

func TestRunnerSkipMetrics(t *testing.T) {
	records := []domain.RawRecord{
		rawRow("2024-03-01T10:00:00Z", "lamour", "shampoo-01", "19.99", "CAD"),
	}
	runner, _, metrics, _, _ := runnerFixture(t, records)

	opts := marchOpts(false)
	opts.SkipMetrics = true
	if err := runner.Run(context.Background(), opts); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(metrics.metrics) != 0 {
		t.Errorf("metrics stored despite skip flag: %d", len(metrics.metrics))
	}
}
