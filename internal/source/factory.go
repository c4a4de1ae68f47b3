package source

import (
	"fmt"
	"log/slog"

	"github.com/lchartrand/shelfprice/internal/config"
	"github.com/lchartrand/shelfprice/internal/domain"
)

// Factory constructs sources from their config-surface identifiers. It holds
// a fixed mapping from identifier to constructor; unknown identifiers are a
// configuration error, never silently ignored.
type Factory struct {
	cfg        *config.Config
	searchTerm string
	byName     map[string]func() domain.Source
}

// NewFactory builds a Factory over the configured source set. searchTerm is
// forwarded to search-capable sources and may be empty.
func NewFactory(cfg *config.Config, searchTerm string) *Factory {
	f := &Factory{
		cfg:        cfg,
		searchTerm: searchTerm,
		byName:     make(map[string]func() domain.Source),
	}

	f.byName["csv"] = func() domain.Source {
		return NewCSVDirectorySource(cfg.Sources.RawDir)
	}
	for _, vendor := range cfg.Sources.Shopify {
		f.byName[vendor.Name] = func() domain.Source {
			return NewShopifySource(vendor, searchTerm)
		}
	}

	return f
}

// Build resolves each identifier and registers the resulting source. It
// fails on the first unknown identifier.
func (f *Factory) Build(names []string, parallel bool, logger *slog.Logger) (*Registry, error) {
	registry := NewRegistry(parallel, logger)
	for _, name := range names {
		ctor, ok := f.byName[name]
		if !ok {
			return nil, fmt.Errorf("source: %q: %w", name, domain.ErrUnknownSource)
		}
		registry.Register(ctor())
	}
	return registry, nil
}
