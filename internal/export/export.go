// Package export serializes stored pipeline results to CSV files and text
// reports, with optional archival to object storage. It consumes the domain
// store interfaces only; internal bookkeeping columns (row ids, ingestion
// and computation timestamps) never appear in the output.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/lchartrand/shelfprice/internal/analytics"
	"github.com/lchartrand/shelfprice/internal/domain"
)

const (
	pricesFile      = "prices.csv"
	metricsFile     = "daily_metrics.csv"
	comparisonsFile = "price_comparison.csv"
	reportFile      = "comparison_report.txt"
	rejectedFile    = "rejected_rows.csv"
)

// Exporter reads from the stores and writes flat files into the output
// directory. When a BlobWriter is set, every written file is also uploaded
// under exports/<date>/<name>.
type Exporter struct {
	prices      domain.PriceStore
	metrics     domain.MetricStore
	comparisons domain.ComparisonStore
	outputDir   string
	blob        domain.BlobWriter
	logger      *slog.Logger
}

// New creates an Exporter. blob may be nil to disable archival.
func New(
	prices domain.PriceStore,
	metrics domain.MetricStore,
	comparisons domain.ComparisonStore,
	outputDir string,
	blob domain.BlobWriter,
	logger *slog.Logger,
) *Exporter {
	return &Exporter{
		prices:      prices,
		metrics:     metrics,
		comparisons: comparisons,
		outputDir:   outputDir,
		blob:        blob,
		logger:      logger,
	}
}

// ExportAll writes the price, metric and comparison projections plus the
// comparison text report, and returns a name → path map of the files
// actually produced. Empty datasets are skipped, not errors.
func (e *Exporter) ExportAll(ctx context.Context, start, end time.Time) (map[string]string, error) {
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("export: create output dir: %w", err)
	}

	written := make(map[string]string)

	path, err := e.exportPrices(ctx, start, end)
	if err != nil {
		return written, err
	}
	if path != "" {
		written["prices"] = path
	}

	path, err = e.exportMetrics(ctx, start, end)
	if err != nil {
		return written, err
	}
	if path != "" {
		written["metrics"] = path
	}

	path, reportPath, err := e.exportComparisons(ctx)
	if err != nil {
		return written, err
	}
	if path != "" {
		written["comparison"] = path
	}
	if reportPath != "" {
		written["report"] = reportPath
	}

	for name, p := range written {
		e.archive(ctx, name, p)
	}
	return written, nil
}

func (e *Exporter) exportPrices(ctx context.Context, start, end time.Time) (string, error) {
	observations, err := e.prices.List(ctx, domain.PriceFilter{Start: &start, End: &end})
	if err != nil {
		return "", fmt.Errorf("export: query prices: %w", err)
	}
	if len(observations) == 0 {
		e.logger.Info("no price data to export")
		return "", nil
	}

	rows := [][]string{{"timestamp", "supplier", "product_id", "price", "currency", "category", "source_name"}}
	for _, o := range observations {
		rows = append(rows, []string{
			o.Timestamp.UTC().Format(time.RFC3339),
			o.Supplier,
			o.ProductID,
			formatFloat(o.Price),
			o.Currency,
			o.Category,
			o.SourceName,
		})
	}

	path := filepath.Join(e.outputDir, pricesFile)
	if err := writeCSV(path, rows); err != nil {
		return "", err
	}
	e.logger.Info("exported prices", slog.Int("rows", len(observations)), slog.String("path", path))
	return path, nil
}

func (e *Exporter) exportMetrics(ctx context.Context, start, end time.Time) (string, error) {
	metrics, err := e.metrics.List(ctx, domain.MetricFilter{Start: &start, End: &end})
	if err != nil {
		return "", fmt.Errorf("export: query metrics: %w", err)
	}
	if len(metrics) == 0 {
		e.logger.Info("no metrics data to export")
		return "", nil
	}

	rows := [][]string{{
		"date", "supplier", "product_id", "open_price", "close_price",
		"high_price", "low_price", "daily_return", "rolling_avg_7d", "volatility_7d",
	}}
	for _, m := range metrics {
		rows = append(rows, []string{
			m.Date.Format("2006-01-02"),
			m.Supplier,
			m.ProductID,
			formatFloat(m.OpenPrice),
			formatFloat(m.ClosePrice),
			formatFloat(m.HighPrice),
			formatFloat(m.LowPrice),
			formatFloat(m.DailyReturn),
			formatFloat(m.RollingAvg7d),
			formatFloat(m.Volatility7d),
		})
	}

	path := filepath.Join(e.outputDir, metricsFile)
	if err := writeCSV(path, rows); err != nil {
		return "", err
	}
	e.logger.Info("exported metrics", slog.Int("rows", len(metrics)), slog.String("path", path))
	return path, nil
}

func (e *Exporter) exportComparisons(ctx context.Context) (csvPath, reportPath string, err error) {
	comparisons, err := e.comparisons.List(ctx, nil)
	if err != nil {
		return "", "", fmt.Errorf("export: query comparisons: %w", err)
	}
	if len(comparisons) == 0 {
		e.logger.Info("no comparison data to export")
		return "", "", nil
	}

	rows := [][]string{{
		"product_id", "snapshot_date", "cheapest_supplier", "cheapest_price",
		"most_expensive_supplier", "most_expensive_price",
		"price_spread", "savings_pct", "num_suppliers",
	}}
	for _, c := range comparisons {
		rows = append(rows, []string{
			c.ProductID,
			c.SnapshotDate.Format("2006-01-02"),
			c.CheapestSupplier,
			formatFloat(c.CheapestPrice),
			c.MostExpensiveSupplier,
			formatFloat(c.MostExpensivePrice),
			formatFloat(c.PriceSpread),
			formatFloat(c.SavingsPct),
			strconv.Itoa(c.NumSuppliers),
		})
	}

	csvPath = filepath.Join(e.outputDir, comparisonsFile)
	if err := writeCSV(csvPath, rows); err != nil {
		return "", "", err
	}

	reportPath = filepath.Join(e.outputDir, reportFile)
	if err := os.WriteFile(reportPath, []byte(analytics.Report(comparisons)), 0o644); err != nil {
		return "", "", fmt.Errorf("export: write report: %w", err)
	}

	e.logger.Info("exported comparisons",
		slog.Int("rows", len(comparisons)),
		slog.String("csv", csvPath),
		slog.String("report", reportPath),
	)
	return csvPath, reportPath, nil
}

// WriteRejected writes validation rejects to the audit side file in the
// same canonical column shape as accepted rows, plus the rejection reason.
func (e *Exporter) WriteRejected(ctx context.Context, rejected []domain.RejectedRecord) (string, error) {
	if len(rejected) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("export: create output dir: %w", err)
	}

	rows := [][]string{{
		"timestamp", "supplier", "product_id", "price", "currency",
		"category", "source_name", "reason",
	}}
	for _, r := range rejected {
		o := r.Observation
		rows = append(rows, []string{
			o.Timestamp.UTC().Format(time.RFC3339),
			o.Supplier,
			o.ProductID,
			formatFloat(o.Price),
			o.Currency,
			o.Category,
			o.SourceName,
			r.Reason,
		})
	}

	path := filepath.Join(e.outputDir, rejectedFile)
	if err := writeCSV(path, rows); err != nil {
		return "", err
	}
	e.logger.Info("wrote rejected rows", slog.Int("rows", len(rejected)), slog.String("path", path))
	e.archive(ctx, "rejected", path)
	return path, nil
}

// archive uploads a written file to object storage. Failures are logged,
// never fatal: the local file already exists.
func (e *Exporter) archive(ctx context.Context, name, path string) {
	if e.blob == nil {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		e.logger.Warn("archive skipped", slog.String("file", name), slog.String("error", err.Error()))
		return
	}
	defer f.Close()

	key := fmt.Sprintf("exports/%s/%s", time.Now().UTC().Format("2006-01-02"), filepath.Base(path))
	contentType := "text/csv"
	if filepath.Ext(path) == ".txt" {
		contentType = "text/plain"
	}
	if err := e.blob.Put(ctx, key, f, contentType); err != nil {
		e.logger.Warn("archive upload failed", slog.String("file", name), slog.String("error", err.Error()))
		return
	}
	e.logger.Info("archived export", slog.String("file", name), slog.String("key", key))
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
