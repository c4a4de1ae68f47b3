package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SHELFPRICE_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load. A missing file is
// not an error: defaults plus environment overrides are used instead.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SHELFPRICE_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject credentials at deploy time without touching the
// TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Pipeline ──
	setFloat64(&cfg.Pipeline.MinPrice, "SHELFPRICE_PIPELINE_MIN_PRICE")
	setFloat64(&cfg.Pipeline.MaxPrice, "SHELFPRICE_PIPELINE_MAX_PRICE")
	setStringSlice(&cfg.Pipeline.ValidCurrencies, "SHELFPRICE_PIPELINE_VALID_CURRENCIES")
	setStringSlice(&cfg.Pipeline.Suppliers, "SHELFPRICE_PIPELINE_SUPPLIERS")
	setInt(&cfg.Pipeline.RollingWindowDays, "SHELFPRICE_PIPELINE_ROLLING_WINDOW_DAYS")
	setBool(&cfg.Pipeline.ParallelFetch, "SHELFPRICE_PIPELINE_PARALLEL_FETCH")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SHELFPRICE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SHELFPRICE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SHELFPRICE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SHELFPRICE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SHELFPRICE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SHELFPRICE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SHELFPRICE_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SHELFPRICE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SHELFPRICE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SHELFPRICE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "SHELFPRICE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SHELFPRICE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SHELFPRICE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SHELFPRICE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SHELFPRICE_REDIS_POOL_SIZE")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "SHELFPRICE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "SHELFPRICE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SHELFPRICE_S3_REGION")
	setStr(&cfg.S3.Bucket, "SHELFPRICE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SHELFPRICE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SHELFPRICE_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "SHELFPRICE_S3_FORCE_PATH_STYLE")

	// ── Sources / Export ──
	setStr(&cfg.Sources.RawDir, "SHELFPRICE_SOURCES_RAW_DIR")
	setStr(&cfg.Export.OutputDir, "SHELFPRICE_EXPORT_OUTPUT_DIR")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "SHELFPRICE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
