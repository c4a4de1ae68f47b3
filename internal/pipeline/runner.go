package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lchartrand/shelfprice/internal/analytics"
	"github.com/lchartrand/shelfprice/internal/config"
	"github.com/lchartrand/shelfprice/internal/domain"
	"github.com/lchartrand/shelfprice/internal/export"
	"github.com/lchartrand/shelfprice/internal/source"
)

// RunOptions are the per-run parameters from the command surface.
type RunOptions struct {
	Start       time.Time
	End         time.Time
	Compare     bool
	SkipMetrics bool
}

// Runner executes one linear batch run: ingest, clean, validate, store,
// metrics, comparison, export. Stages run strictly sequentially; an empty
// batch at any stage boundary is a reported clean exit, not an error.
type Runner struct {
	cfg         *config.Config
	registry    *source.Registry
	prices      domain.PriceStore
	metrics     domain.MetricStore
	comparisons domain.ComparisonStore
	cache       domain.LatestPriceCache
	exporter    *export.Exporter
	logger      *slog.Logger
}

// NewRunner wires a Runner. cache may be nil to disable the latest-price
// read model.
func NewRunner(
	cfg *config.Config,
	registry *source.Registry,
	prices domain.PriceStore,
	metrics domain.MetricStore,
	comparisons domain.ComparisonStore,
	cache domain.LatestPriceCache,
	exporter *export.Exporter,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		cfg:         cfg,
		registry:    registry,
		prices:      prices,
		metrics:     metrics,
		comparisons: comparisons,
		cache:       cache,
		exporter:    exporter,
		logger:      logger,
	}
}

// Run executes the pipeline once.
func (r *Runner) Run(ctx context.Context, opts RunOptions) error {
	runID := uuid.NewString()
	logger := r.logger.With(slog.String("run_id", runID))

	logger.Info("pipeline run starting",
		slog.Time("start", opts.Start),
		slog.Time("end", opts.End),
		slog.Any("sources", r.registry.Names()),
	)

	// 1. Ingest.
	if r.registry.Len() == 0 {
		logger.Warn("no sources configured, nothing to do")
		return nil
	}
	raw := r.registry.FetchAll(ctx)
	if len(raw) == 0 {
		logger.Warn("no data fetched from sources")
		return nil
	}
	logger.Info("fetched raw records", slog.Int("records", len(raw)))

	// 2. Clean.
	cleaned, dropped := Clean(raw, logger)
	logger.Info("cleaned batch",
		slog.Int("records", len(cleaned)),
		slog.Int("dropped", dropped),
	)

	// 3. Validate.
	accepted, rejected := Validate(cleaned, r.cfg.Pipeline, opts.Start, opts.End)
	logger.Info("validated batch",
		slog.Int("accepted", len(accepted)),
		slog.Int("rejected", len(rejected)),
	)
	if len(rejected) > 0 {
		if _, err := r.exporter.WriteRejected(ctx, rejected); err != nil {
			logger.Error("writing rejected rows failed", slog.String("error", err.Error()))
		}
	}
	if len(accepted) == 0 {
		logger.Warn("no valid data after validation")
		return nil
	}

	// 4. Store.
	inserted, rowErrs, err := r.prices.InsertBatch(ctx, accepted)
	if err != nil {
		return fmt.Errorf("pipeline: store prices: %w", err)
	}
	logRowErrors(logger, "price insert", rowErrs)
	logger.Info("stored price observations",
		slog.Int("inserted", inserted),
		slog.Int("failed", len(rowErrs)),
	)

	r.refreshLatestCache(ctx, logger, accepted)

	// 5. Metrics.
	if !opts.SkipMetrics {
		if err := r.computeMetrics(ctx, logger, opts); err != nil {
			return err
		}
	}

	// 6. Comparison.
	if opts.Compare {
		if err := r.compareSuppliers(ctx, logger); err != nil {
			return err
		}
	}

	// 7. Export.
	files, err := r.exporter.ExportAll(ctx, opts.Start, opts.End)
	if err != nil {
		return fmt.Errorf("pipeline: export: %w", err)
	}
	for name, path := range files {
		logger.Info("export written", slog.String("name", name), slog.String("path", path))
	}

	logger.Info("pipeline run complete")
	return nil
}

func (r *Runner) computeMetrics(ctx context.Context, logger *slog.Logger, opts RunOptions) error {
	observations, err := r.prices.List(ctx, domain.PriceFilter{Start: &opts.Start, End: &opts.End})
	if err != nil {
		return fmt.Errorf("pipeline: query prices for metrics: %w", err)
	}
	if len(observations) == 0 {
		logger.Info("no stored prices in range, skipping metrics")
		return nil
	}

	metrics := analytics.ComputeDailyMetrics(observations, r.cfg.Pipeline.RollingWindowDays)
	if len(metrics) == 0 {
		return nil
	}

	affected, rowErrs, err := r.metrics.UpsertBatch(ctx, metrics)
	if err != nil {
		return fmt.Errorf("pipeline: store metrics: %w", err)
	}
	logRowErrors(logger, "metric upsert", rowErrs)
	logger.Info("stored daily metrics", slog.Int("affected", affected))
	return nil
}

func (r *Runner) compareSuppliers(ctx context.Context, logger *slog.Logger) error {
	latest, err := r.prices.ListLatest(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: query latest prices: %w", err)
	}
	if len(latest) == 0 {
		logger.Info("no latest prices, skipping comparison")
		return nil
	}

	comparisons := analytics.Compare(latest, time.Now().UTC())
	if len(comparisons) == 0 {
		return nil
	}

	affected, rowErrs, err := r.comparisons.UpsertBatch(ctx, comparisons)
	if err != nil {
		return fmt.Errorf("pipeline: store comparisons: %w", err)
	}
	logRowErrors(logger, "comparison upsert", rowErrs)
	logger.Info("stored price comparisons", slog.Int("affected", affected))

	fmt.Print(analytics.Report(comparisons))
	return nil
}

// refreshLatestCache write-through-updates the latest-price read model from
// the accepted batch. Best effort: a cache failure never fails the run.
func (r *Runner) refreshLatestCache(ctx context.Context, logger *slog.Logger, accepted []domain.Observation) {
	if r.cache == nil {
		return
	}

	type pairKey struct{ supplier, productID string }
	latest := make(map[pairKey]domain.Observation)
	for _, obs := range accepted {
		k := pairKey{obs.Supplier, obs.ProductID}
		if cur, ok := latest[k]; !ok || obs.Timestamp.After(cur.Timestamp) {
			latest[k] = obs
		}
	}

	failures := 0
	for _, obs := range latest {
		// A backfill over historical files must not clobber a newer cached
		// quote.
		if cached, err := r.cache.GetLatest(ctx, obs.Supplier, obs.ProductID); err == nil &&
			cached.Timestamp.After(obs.Timestamp) {
			continue
		}
		err := r.cache.SetLatest(ctx, domain.LatestPrice{
			Supplier:  obs.Supplier,
			ProductID: obs.ProductID,
			Price:     obs.Price,
			Currency:  obs.Currency,
			Timestamp: obs.Timestamp,
		})
		if err != nil {
			failures++
		}
	}
	if failures > 0 {
		logger.Warn("latest-price cache updates failed", slog.Int("failures", failures))
	} else {
		logger.Debug("latest-price cache refreshed", slog.Int("pairs", len(latest)))
	}
}

func logRowErrors(logger *slog.Logger, op string, rowErrs []domain.RowError) {
	for _, re := range rowErrs {
		logger.Error(op+" row failed",
			slog.Int("row", re.Index),
			slog.String("error", re.Err.Error()),
		)
	}
}
