// Package source implements the producers of raw price records and the
// registry that aggregates them into a single batch.
package source

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/lchartrand/shelfprice/internal/domain"
)

// sourceNameColumn is the provenance column stamped onto every record.
const sourceNameColumn = "source_name"

// Registry holds an ordered list of registered sources and concatenates
// their batches. Output order always follows registration order, even when
// fetches run in parallel.
type Registry struct {
	sources  []domain.Source
	parallel bool
	logger   *slog.Logger
}

// NewRegistry creates an empty Registry. When parallel is true, FetchAll
// runs independent source fetches concurrently as a pure performance
// optimization; concatenation order is unchanged.
func NewRegistry(parallel bool, logger *slog.Logger) *Registry {
	return &Registry{parallel: parallel, logger: logger}
}

// Register appends a source to the registry.
func (r *Registry) Register(s domain.Source) {
	r.sources = append(r.sources, s)
	r.logger.Info("registered source", slog.String("source", s.Name()))
}

// Names returns the registered source names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for _, s := range r.sources {
		names = append(names, s.Name())
	}
	return names
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	return len(r.sources)
}

// FetchAll fetches every registered source, stamps each record with its
// source's name, and concatenates all batches in registration order. A
// source that errors or yields no records is logged and skipped; it never
// aborts the aggregation of the others. An empty combined batch is a valid
// result the caller must handle.
func (r *Registry) FetchAll(ctx context.Context) []domain.RawRecord {
	batches := make([][]domain.RawRecord, len(r.sources))

	if r.parallel {
		g, gctx := errgroup.WithContext(ctx)
		for i, s := range r.sources {
			i, s := i, s
			g.Go(func() error {
				batches[i] = r.fetchOne(gctx, s)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, s := range r.sources {
			batches[i] = r.fetchOne(ctx, s)
		}
	}

	var combined []domain.RawRecord
	for i, b := range batches {
		if len(b) > 0 {
			r.logger.Debug("source batch collected",
				slog.String("source", r.sources[i].Name()),
				slog.Int("records", len(b)),
			)
			combined = append(combined, b...)
		}
	}
	return combined
}

// fetchOne runs a single source fetch and stamps provenance. Failures and
// empty batches are logged and reported as a nil batch.
func (r *Registry) fetchOne(ctx context.Context, s domain.Source) []domain.RawRecord {
	records, err := s.Fetch(ctx)
	if err != nil {
		r.logger.Warn("source fetch failed",
			slog.String("source", s.Name()),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if len(records) == 0 {
		r.logger.Info("source yielded no records", slog.String("source", s.Name()))
		return nil
	}
	for _, rec := range records {
		rec[sourceNameColumn] = s.Name()
	}
	return records
}
