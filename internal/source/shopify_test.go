package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lchartrand/shelfprice/internal/config"
)

func testVendor(baseURL string) config.ShopifyVendor {
	return config.ShopifyVendor{
		Name:     "lamour",
		Supplier: "lamour",
		BaseURL:  baseURL,
		Currency: "CAD",
		PageSize: 2,
	}
}

func TestShopifySourcePaginatesCatalog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, `{"products":[
				{"id":1,"handle":"shampoo-01","product_type":"Hair","variants":[{"price":"19.99"}]},
				{"id":2,"handle":"serum-02","product_type":"Skin","variants":[{"price":"42.00"}]}
			]}`)
		case "2":
			fmt.Fprint(w, `{"products":[
				{"id":3,"handle":"no-variants","product_type":"Misc","variants":[]}
			]}`)
		default:
			fmt.Fprint(w, `{"products":[]}`)
		}
	}))
	defer server.Close()

	s := NewShopifySource(testVendor(server.URL), "")
	records, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	// The variant-less product is skipped.
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	first := records[0]
	if first["product_id"] != "shampoo-01" {
		t.Errorf("product_id = %q, want shampoo-01", first["product_id"])
	}
	if first["price"] != "19.99" {
		t.Errorf("price = %q, want 19.99", first["price"])
	}
	if first["supplier"] != "lamour" || first["currency"] != "CAD" {
		t.Errorf("unexpected provenance fields: %v", first)
	}
	if first["category"] != "Hair" {
		t.Errorf("category = %q, want Hair", first["category"])
	}
	if first["timestamp"] == "" {
		t.Error("timestamp not stamped")
	}
}

func TestShopifySourceSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/search/suggest.json":
			if got := r.URL.Query().Get("q"); got != "shampoo" {
				t.Errorf("search term = %q, want shampoo", got)
			}
			fmt.Fprint(w, `{"resources":{"results":{"products":[
				{"id":1,"handle":"shampoo-01"},
				{"id":1,"handle":"shampoo-01"},
				{"id":2,"handle":"shampoo-zz"}
			]}}}`)
		case "/products/shampoo-01.json":
			fmt.Fprint(w, `{"product":{"id":1,"handle":"shampoo-01","product_type":"Hair","variants":[{"price":"19.99"}]}}`)
		case "/products/shampoo-zz.json":
			http.NotFound(w, r)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	s := NewShopifySource(testVendor(server.URL), "shampoo")
	records, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	// Duplicate hit deduplicated, failing detail page skipped.
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0]["product_id"] != "shampoo-01" {
		t.Errorf("product_id = %q, want shampoo-01", records[0]["product_id"])
	}
}

func TestShopifySourceCatalogError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	s := NewShopifySource(testVendor(server.URL), "")
	if _, err := s.Fetch(context.Background()); err == nil {
		t.Error("expected error on HTTP 403")
	}
}

func TestShopifySourceName(t *testing.T) {
	s := NewShopifySource(testVendor("https://example.com"), "")
	if got := s.Name(); got != "lamour_scraper" {
		t.Errorf("name = %q, want lamour_scraper", got)
	}
}
