// Package app provides the top-level application lifecycle for the
// shelfprice pipeline. It wires together all dependencies (stores, cache,
// blob storage, sources, exporter) and executes a single batch run.
package app

import (
	"context"
	"log/slog"

	"github.com/lchartrand/shelfprice/internal/config"
	"github.com/lchartrand/shelfprice/internal/pipeline"
)

// App is the root application object. It owns the configuration, logger,
// the wired pipeline runner, and a list of cleanup functions called in
// reverse order on shutdown.
type App struct {
	cfg     *config.Config
	runner  *pipeline.Runner
	logger  *slog.Logger
	closers []func()
}

// Close releases every wired resource.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Run executes one pipeline run with the given options.
func (a *App) Run(ctx context.Context, opts pipeline.RunOptions) error {
	return a.runner.Run(ctx, opts)
}
