package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lchartrand/shelfprice/internal/config"
	"github.com/lchartrand/shelfprice/internal/domain"
)

const (
	shopifyMaxPageSize = 250
	shopifyPageDelay   = 500 * time.Millisecond
	shopifyUserAgent   = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
)

// ShopifySource scrapes a Shopify-storefront vendor catalog through the
// public products.json endpoint. With a search term set it uses the
// storefront suggest API and fetches matching products individually;
// otherwise it paginates the full catalog.
type ShopifySource struct {
	vendor     config.ShopifyVendor
	searchTerm string
	client     *resty.Client
	pageSize   int
}

// NewShopifySource creates a scraper for one configured vendor.
func NewShopifySource(vendor config.ShopifyVendor, searchTerm string) *ShopifySource {
	pageSize := vendor.PageSize
	if pageSize <= 0 || pageSize > shopifyMaxPageSize {
		pageSize = shopifyMaxPageSize
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(vendor.BaseURL, "/")).
		SetTimeout(10 * time.Second).
		SetHeader("User-Agent", shopifyUserAgent).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)

	return &ShopifySource{
		vendor:     vendor,
		searchTerm: searchTerm,
		client:     client,
		pageSize:   pageSize,
	}
}

// Name returns the provenance tag for this vendor.
func (s *ShopifySource) Name() string {
	return s.vendor.Name + "_scraper"
}

type shopifyProduct struct {
	ID       int64  `json:"id"`
	Handle   string `json:"handle"`
	Title    string `json:"title"`
	Type     string `json:"product_type"`
	Variants []struct {
		Price string `json:"price"`
	} `json:"variants"`
}

type shopifyCatalogPage struct {
	Products []shopifyProduct `json:"products"`
}

type shopifyProductPage struct {
	Product shopifyProduct `json:"product"`
}

type shopifySuggestPage struct {
	Resources struct {
		Results struct {
			Products []struct {
				ID     int64  `json:"id"`
				Handle string `json:"handle"`
			} `json:"products"`
		} `json:"results"`
	} `json:"resources"`
}

// Fetch returns one record per product, priced from its first variant and
// stamped with the fetch time.
func (s *ShopifySource) Fetch(ctx context.Context) ([]domain.RawRecord, error) {
	var (
		products []shopifyProduct
		err      error
	)
	if s.searchTerm != "" {
		products, err = s.searchProducts(ctx, s.searchTerm)
	} else {
		products, err = s.allProducts(ctx)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	records := make([]domain.RawRecord, 0, len(products))
	for _, p := range products {
		if len(p.Variants) == 0 {
			continue
		}
		records = append(records, domain.RawRecord{
			"timestamp":  now,
			"supplier":   s.vendor.Supplier,
			"product_id": p.Handle,
			"price":      p.Variants[0].Price,
			"currency":   s.vendor.Currency,
			"category":   p.Type,
		})
	}
	return records, nil
}

// allProducts paginates through /products.json until a page comes back
// empty.
func (s *ShopifySource) allProducts(ctx context.Context) ([]shopifyProduct, error) {
	var all []shopifyProduct

	for page := 1; ; page++ {
		var body shopifyCatalogPage
		resp, err := s.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"limit": strconv.Itoa(s.pageSize),
				"page":  strconv.Itoa(page),
			}).
			SetResult(&body).
			Get("/products.json")
		if err != nil {
			return nil, fmt.Errorf("source: %s catalog page %d: %w", s.vendor.Name, page, err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("source: %s catalog page %d: status %s", s.vendor.Name, page, resp.Status())
		}
		if len(body.Products) == 0 {
			break
		}

		all = append(all, body.Products...)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(shopifyPageDelay):
		}
	}
	return all, nil
}

// searchProducts resolves a search term through the suggest API and fetches
// full product details per unique handle.
func (s *ShopifySource) searchProducts(ctx context.Context, term string) ([]shopifyProduct, error) {
	var body shopifySuggestPage
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":               term,
			"resources[type]": "product",
		}).
		SetResult(&body).
		Get("/search/suggest.json")
	if err != nil {
		return nil, fmt.Errorf("source: %s search %q: %w", s.vendor.Name, term, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("source: %s search %q: status %s", s.vendor.Name, term, resp.Status())
	}

	seen := make(map[int64]struct{})
	var all []shopifyProduct
	for _, hit := range body.Resources.Results.Products {
		if _, ok := seen[hit.ID]; ok {
			continue
		}
		seen[hit.ID] = struct{}{}

		var detail shopifyProductPage
		resp, err := s.client.R().
			SetContext(ctx).
			SetResult(&detail).
			Get("/products/" + hit.Handle + ".json")
		if err != nil || resp.IsError() {
			// One missing product page does not spoil the search batch.
			continue
		}
		all = append(all, detail.Product)
	}
	return all, nil
}
