// Command shelfprice is the batch entry point for the beauty-supply market
// data pipeline. It loads configuration, validates it, wires dependencies,
// sets up signal handling, and executes one pipeline run.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lchartrand/shelfprice/internal/app"
	"github.com/lchartrand/shelfprice/internal/config"
	"github.com/lchartrand/shelfprice/internal/pipeline"
)

func main() {
	os.Exit(run())
}

// run carries the real entry point so deferred cleanup executes before the
// process exits.
func run() int {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	startArg := flag.String("start", "", "start date (YYYY-MM-DD, required)")
	endArg := flag.String("end", "", "end date (YYYY-MM-DD, required)")
	compare := flag.Bool("compare", false, "compute cross-supplier price comparisons")
	sourcesArg := flag.String("sources", "csv", "comma-separated source identifiers to activate")
	skipMetrics := flag.Bool("skip-metrics", false, "skip daily metric computation")
	search := flag.String("search", "", "search term forwarded to search-capable sources")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		return 1
	}

	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return 1
	}

	opts, err := parseRunOptions(*startArg, *endArg, *compare, *skipMetrics)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shelfprice: %v\n", err)
		flag.Usage()
		return 2
	}

	sourceNames := splitSources(*sourcesArg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.Wire(ctx, cfg, sourceNames, *search, logger)
	if err != nil {
		logger.Error("wiring failed", slog.String("error", err.Error()))
		return 1
	}
	defer application.Close()

	if err := application.Run(ctx, opts); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("run cancelled")
			return 0
		}
		logger.Error("pipeline run failed", slog.String("error", err.Error()))
		return 1
	}
	return 0
}

// parseRunOptions validates the date window flags. The end date is
// inclusive: observations any time that day pass the window filter.
func parseRunOptions(startArg, endArg string, compare, skipMetrics bool) (pipeline.RunOptions, error) {
	if startArg == "" || endArg == "" {
		return pipeline.RunOptions{}, errors.New("-start and -end are required")
	}
	start, err := time.ParseInLocation("2006-01-02", startArg, time.UTC)
	if err != nil {
		return pipeline.RunOptions{}, fmt.Errorf("invalid -start %q: %w", startArg, err)
	}
	end, err := time.ParseInLocation("2006-01-02", endArg, time.UTC)
	if err != nil {
		return pipeline.RunOptions{}, fmt.Errorf("invalid -end %q: %w", endArg, err)
	}
	if end.Before(start) {
		return pipeline.RunOptions{}, fmt.Errorf("-end %s precedes -start %s", endArg, startArg)
	}
	return pipeline.RunOptions{
		Start:       start,
		End:         end.Add(24*time.Hour - time.Nanosecond),
		Compare:     compare,
		SkipMetrics: skipMetrics,
	}, nil
}

func splitSources(arg string) []string {
	parts := strings.Split(arg, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names
}
