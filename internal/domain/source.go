package domain

import "context"

// Source is a producer of raw price records. Implementations own their own
// timeout and retry policy and must return a (possibly empty) batch rather
// than block indefinitely.
type Source interface {
	// Name is a stable identifier used as the provenance tag on every
	// record the source produces.
	Name() string
	// Fetch returns one complete batch of raw records. Records carry at
	// minimum timestamp, supplier, product_id, price and currency columns;
	// extra columns are permitted.
	Fetch(ctx context.Context) ([]RawRecord, error)
}
