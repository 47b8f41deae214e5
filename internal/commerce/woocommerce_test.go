package commerce

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func wooFromServer(t *testing.T, handler http.HandlerFunc) *WooCommerceProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewWooCommerceProvider(Credentials{
		WooCommerceURL:    server.URL,
		WooConsumerKey:    "ck",
		WooConsumerSecret: "cs",
	}, testLogger())
}

func TestWooSearchProducts(t *testing.T) {
	provider := wooFromServer(t, func(w http.ResponseWriter, r *http.Request) {
		if user, _, ok := r.BasicAuth(); !ok || user != "ck" {
			t.Errorf("missing basic auth, got %q", user)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": 7, "name": "Blue Widget", "price": "19.99", "sku": "BW-1", "stock_status": "instock", "stock_quantity": 4}]`))
	})

	result := provider.SearchProducts(context.Background(), "widget", 5)
	if !result.Success {
		t.Fatalf("expected success, got reason %q", result.Reason)
	}
	if len(result.Products) != 1 {
		t.Fatalf("expected 1 product, got %d", len(result.Products))
	}
	p := result.Products[0]
	if p.ID != "7" || p.SKU != "BW-1" || !p.InStock || p.StockCount != 4 {
		t.Fatalf("unexpected product: %+v", p)
	}
}

func TestWooBackendFailureIsStructured(t *testing.T) {
	provider := wooFromServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	result := provider.SearchProducts(context.Background(), "widget", 5)
	if result.Success {
		t.Fatal("backend failure must not report success")
	}
	if result.Reason == "" {
		t.Fatal("failure must carry a human-readable reason")
	}
}

func TestWooOrderLookupRequiresMatchingEmail(t *testing.T) {
	provider := wooFromServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": 42, "number": "1001", "status": "processing", "total": "50.00", "billing": {"email": "jo@example.com"}}]`))
	})

	if result := provider.LookupOrder(context.Background(), "1001", "other@example.com"); result.Success {
		t.Fatal("mismatched email must not disclose the order")
	}

	result := provider.LookupOrder(context.Background(), "1001", "JO@example.com")
	if !result.Success || result.Order == nil {
		t.Fatalf("expected order, got %+v", result)
	}
	if result.Order.Number != "1001" || result.Order.Status != "processing" {
		t.Fatalf("unexpected order: %+v", result.Order)
	}
}

func TestWooProductDetailsEscapesID(t *testing.T) {
	var gotPath string
	provider := wooFromServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 7, "name": "Blue Widget", "price": "19.99"}`))
	})

	result := provider.GetProductDetails(context.Background(), "../orders")
	if !result.Success {
		t.Fatalf("expected success, got reason %q", result.Reason)
	}
	if gotPath != "/wp-json/wc/v3/products/..%2Forders" {
		t.Fatalf("product id must stay a single path segment, got %q", gotPath)
	}
}
