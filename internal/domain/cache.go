package domain

import (
	"context"
	"time"
)

// LatestPrice is the cached most-recent quote for one (supplier, product).
type LatestPrice struct {
	Supplier  string
	ProductID string
	Price     float64
	Currency  string
	Timestamp time.Time
}

// LatestPriceCache is a write-through read model of the most recent
// observation per (supplier, product). The relational store remains the
// source of truth; the cache only serves fast point lookups.
type LatestPriceCache interface {
	SetLatest(ctx context.Context, p LatestPrice) error
	// GetLatest returns ErrNotFound when no quote is cached for the pair.
	GetLatest(ctx context.Context, supplier, productID string) (LatestPrice, error)
}
