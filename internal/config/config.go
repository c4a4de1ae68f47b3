// Package config defines the top-level configuration for the shelfprice
// pipeline and provides validation helpers.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SHELFPRICE_* environment variables.
type Config struct {
	Pipeline PipelineConfig `toml:"pipeline"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Sources  SourcesConfig  `toml:"sources"`
	Export   ExportConfig   `toml:"export"`
	LogLevel string         `toml:"log_level"`
}

// PipelineConfig holds the domain rules applied by the cleaning and
// validation stages and the metrics window length. It replaces what used to
// be module-level constants: the struct is built once at process start and
// passed explicitly to every stage that needs it.
type PipelineConfig struct {
	MinPrice          float64  `toml:"min_price"`
	MaxPrice          float64  `toml:"max_price"`
	ValidCurrencies   []string `toml:"valid_currencies"`
	Suppliers         []string `toml:"suppliers"`
	RollingWindowDays int      `toml:"rolling_window_days"`
	ParallelFetch     bool     `toml:"parallel_fetch"`
}

// CurrencySet returns the valid currencies as a lookup set, upper-cased.
func (p PipelineConfig) CurrencySet() map[string]struct{} {
	set := make(map[string]struct{}, len(p.ValidCurrencies))
	for _, c := range p.ValidCurrencies {
		set[strings.ToUpper(strings.TrimSpace(c))] = struct{}{}
	}
	return set
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds connection parameters for the latest-price cache.
type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	PoolSize int    `toml:"pool_size"`
}

// S3Config holds S3-compatible object storage parameters for export
// archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// SourcesConfig describes the producers the registry can activate.
type SourcesConfig struct {
	RawDir  string         `toml:"raw_dir"`
	Shopify []ShopifyVendor `toml:"shopify"`
}

// ShopifyVendor configures one Shopify-storefront vendor catalog.
type ShopifyVendor struct {
	Name     string `toml:"name"`
	Supplier string `toml:"supplier"`
	BaseURL  string `toml:"base_url"`
	Currency string `toml:"currency"`
	PageSize int    `toml:"page_size"`
}

// ExportConfig holds the output directory for CSV files and reports.
type ExportConfig struct {
	OutputDir string `toml:"output_dir"`
}

// Defaults returns the built-in configuration that a TOML file is merged
// over. The currency set and price bounds mirror the supplier catalogs this
// pipeline tracks.
func Defaults() Config {
	return Config{
		Pipeline: PipelineConfig{
			MinPrice:          0.01,
			MaxPrice:          1_000_000,
			ValidCurrencies:   []string{"CAD", "RMB", "KRW", "JPY", "USD"},
			Suppliers: []string{
				"sephora", "yesstyle", "sukoshi", "stylevana", "amazon",
				"oliveyoung", "kiokii", "shoppers", "lamour", "oomomo",
				"axiastation", "cosme", "kiyoko", "komiko",
			},
			RollingWindowDays: 7,
			ParallelFetch:     false,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "shelfprice",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			DB:       0,
			PoolSize: 10,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "shelfprice-exports",
			ForcePathStyle: true,
		},
		Sources: SourcesConfig{
			RawDir: "data/raw",
		},
		Export: ExportConfig{
			OutputDir: "data/processed",
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration for internal consistency and returns an
// error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Pipeline rules
	if c.Pipeline.MinPrice <= 0 {
		errs = append(errs, "pipeline: min_price must be > 0")
	}
	if c.Pipeline.MaxPrice <= c.Pipeline.MinPrice {
		errs = append(errs, fmt.Sprintf("pipeline: max_price (%g) must exceed min_price (%g)",
			c.Pipeline.MaxPrice, c.Pipeline.MinPrice))
	}
	if len(c.Pipeline.ValidCurrencies) == 0 {
		errs = append(errs, "pipeline: valid_currencies must not be empty")
	}
	if c.Pipeline.RollingWindowDays < 1 {
		errs = append(errs, "pipeline: rolling_window_days must be >= 1")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when enabled")
		}
	}

	// Shopify vendors
	for i, v := range c.Sources.Shopify {
		if v.Name == "" {
			errs = append(errs, fmt.Sprintf("sources: shopify[%d] missing name", i))
		}
		if v.Supplier == "" {
			errs = append(errs, fmt.Sprintf("sources: shopify[%d] missing supplier", i))
		}
		if !strings.HasPrefix(v.BaseURL, "http://") && !strings.HasPrefix(v.BaseURL, "https://") {
			errs = append(errs, fmt.Sprintf("sources: shopify[%d] base_url %q must be an http(s) URL", i, v.BaseURL))
		}
	}

	if c.Export.OutputDir == "" {
		errs = append(errs, "export: output_dir must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
