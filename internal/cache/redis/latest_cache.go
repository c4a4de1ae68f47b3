package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/lchartrand/shelfprice/internal/domain"
)

// LatestCache implements domain.LatestPriceCache using Redis hashes. Each
// (supplier, product) pair's most recent quote is stored as a hash at key
// "latest:{supplier}:{product}" with fields "price", "currency" and "ts"
// (Unix nanosecond timestamp).
type LatestCache struct {
	client *Client
}

// NewLatestCache creates a LatestCache backed by the given Client.
func NewLatestCache(c *Client) *LatestCache {
	return &LatestCache{client: c}
}

func latestKey(supplier, productID string) string {
	return "latest:" + supplier + ":" + productID
}

// SetLatest stores the most recent quote for a (supplier, product) pair.
func (lc *LatestCache) SetLatest(ctx context.Context, p domain.LatestPrice) error {
	key := latestKey(p.Supplier, p.ProductID)
	fields := map[string]interface{}{
		"price":    strconv.FormatFloat(p.Price, 'f', -1, 64),
		"currency": p.Currency,
		"ts":       strconv.FormatInt(p.Timestamp.UnixNano(), 10),
	}
	if err := lc.client.Underlying().HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("redis: set latest %s/%s: %w", p.Supplier, p.ProductID, err)
	}
	return nil
}

// GetLatest retrieves the cached quote for a (supplier, product) pair. It
// returns domain.ErrNotFound when no quote is cached.
func (lc *LatestCache) GetLatest(ctx context.Context, supplier, productID string) (domain.LatestPrice, error) {
	key := latestKey(supplier, productID)
	vals, err := lc.client.Underlying().HGetAll(ctx, key).Result()
	if err != nil {
		return domain.LatestPrice{}, fmt.Errorf("redis: get latest %s/%s: %w", supplier, productID, err)
	}
	if len(vals) == 0 {
		return domain.LatestPrice{}, domain.ErrNotFound
	}

	price, err := strconv.ParseFloat(vals["price"], 64)
	if err != nil {
		return domain.LatestPrice{}, fmt.Errorf("redis: parse price %s/%s: %w", supplier, productID, err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.LatestPrice{}, fmt.Errorf("redis: parse ts %s/%s: %w", supplier, productID, err)
	}

	return domain.LatestPrice{
		Supplier:  supplier,
		ProductID: productID,
		Price:     price,
		Currency:  vals["currency"],
		Timestamp: time.Unix(0, tsNano),
	}, nil
}
