package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/lchartrand/shelfprice/internal/blob/s3"
	"github.com/lchartrand/shelfprice/internal/cache/redis"
	"github.com/lchartrand/shelfprice/internal/config"
	"github.com/lchartrand/shelfprice/internal/domain"
	"github.com/lchartrand/shelfprice/internal/export"
	"github.com/lchartrand/shelfprice/internal/pipeline"
	"github.com/lchartrand/shelfprice/internal/source"
	"github.com/lchartrand/shelfprice/internal/store/postgres"
)

// Wire constructs the application from configuration: the Postgres stores
// (schema migrated), the optional Redis latest-price cache and S3 archiver,
// the requested sources, and the runner. Storage initialization failure is
// the one fatal condition; cache and archival degrade to disabled with a
// warning.
func Wire(ctx context.Context, cfg *config.Config, sourceNames []string, searchTerm string, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("app: connect postgres: %w", err)
	}
	a.closers = append(a.closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("app: run migrations: %w", err)
		}
		logger.Info("database schema up to date")
	}

	priceStore := postgres.NewPriceStore(pgClient.Pool())
	metricStore := postgres.NewMetricStore(pgClient.Pool())
	comparisonStore := postgres.NewComparisonStore(pgClient.Pool())

	// --- Redis latest-price cache (optional) ---
	var cache domain.LatestPriceCache
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			logger.Warn("redis unavailable, latest-price cache disabled",
				slog.String("error", err.Error()))
		} else {
			a.closers = append(a.closers, func() { _ = redisClient.Close() })
			cache = redis.NewLatestCache(redisClient)
		}
	}

	// --- S3 export archival (optional) ---
	var blob domain.BlobWriter
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			logger.Warn("s3 unavailable, export archival disabled",
				slog.String("error", err.Error()))
		} else {
			blob = s3blob.NewWriter(s3Client)
		}
	}

	// --- Sources ---
	factory := source.NewFactory(cfg, searchTerm)
	registry, err := factory.Build(sourceNames, cfg.Pipeline.ParallelFetch, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: build sources: %w", err)
	}

	exporter := export.New(priceStore, metricStore, comparisonStore, cfg.Export.OutputDir, blob, logger)

	a.runner = pipeline.NewRunner(cfg, registry, priceStore, metricStore, comparisonStore, cache, exporter, logger)
	return a, nil
}
