// Package commerce resolves the order/product backend for a tenant and
// normalizes every platform behind one Provider interface. Not having a
// commerce backend is a routine outcome, not an error.
package commerce

import "context"

// Kind identifies the detected commerce platform. The set is closed; adding
// a platform means adding a detector and a constructor.
type Kind string

const (
	KindShopify     Kind = "shopify"
	KindWooCommerce Kind = "woocommerce"
	KindNone        Kind = "none"
)

// Credentials is the decrypted per-tenant commerce secret set. Field
// population depends on the platform.
type Credentials struct {
	TenantID string

	ShopifyDomain      string
	ShopifyAccessToken string

	WooCommerceURL    string
	WooConsumerKey    string
	WooConsumerSecret string
}

// Product is the platform-agnostic product shape.
type Product struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Price       string  `json:"price,omitempty"`
	Currency    string  `json:"currency,omitempty"`
	SKU         string  `json:"sku,omitempty"`
	URL         string  `json:"url,omitempty"`
	InStock     bool    `json:"in_stock"`
	StockCount  float64 `json:"stock_count,omitempty"`
}

// Order is the platform-agnostic order shape.
type Order struct {
	ID         string      `json:"id"`
	Number     string      `json:"number"`
	Status     string      `json:"status"`
	Total      string      `json:"total,omitempty"`
	Currency   string      `json:"currency,omitempty"`
	CreatedAt  string      `json:"created_at,omitempty"`
	TrackingNo string      `json:"tracking_number,omitempty"`
	Items      []OrderItem `json:"items,omitempty"`
}

type OrderItem struct {
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
	SKU      string `json:"sku,omitempty"`
}

// OpResult is the uniform outcome of every commerce operation. Backend
// failures land in Success=false with a human-readable Reason the model can
// relay; raw transport errors never cross this boundary.
type OpResult struct {
	Success  bool      `json:"success"`
	Reason   string    `json:"reason,omitempty"`
	Products []Product `json:"products,omitempty"`
	Order    *Order    `json:"order,omitempty"`
}

// Provider is the normalized commerce surface the orchestrator's tools call.
type Provider interface {
	Kind() Kind
	SearchProducts(ctx context.Context, query string, limit int) OpResult
	LookupOrder(ctx context.Context, orderNumber, email string) OpResult
	CheckStock(ctx context.Context, sku string) OpResult
	GetProductDetails(ctx context.Context, productID string) OpResult
}
