package commerce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/IDLEcreative/Omniops-sub014/internal/omniops"
	"github.com/IDLEcreative/Omniops-sub014/pkg/logging"
)

const shopifyAPIVersion = "2024-01"

// ShopifyProvider talks to the Shopify Admin REST API.
type ShopifyProvider struct {
	domain string
	token  string
	client *http.Client
	logger logging.Logger
}

func NewShopifyProvider(creds Credentials, logger logging.Logger) *ShopifyProvider {
	return &ShopifyProvider{
		domain: strings.TrimSuffix(creds.ShopifyDomain, "/"),
		token:  creds.ShopifyAccessToken,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

func (p *ShopifyProvider) Kind() Kind { return KindShopify }

func (p *ShopifyProvider) apiURL(path string, query url.Values) string {
	u := fmt.Sprintf("https://%s/admin/api/%s/%s", p.domain, shopifyAPIVersion, path)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (p *ShopifyProvider) get(ctx context.Context, rawURL string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Shopify-Access-Token", p.token)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("shopify returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

type shopifyVariant struct {
	ID                int64  `json:"id"`
	SKU               string `json:"sku"`
	Price             string `json:"price"`
	InventoryQuantity int    `json:"inventory_quantity"`
}

type shopifyProduct struct {
	ID       int64            `json:"id"`
	Title    string           `json:"title"`
	BodyHTML string           `json:"body_html"`
	Handle   string           `json:"handle"`
	Variants []shopifyVariant `json:"variants"`
}

func (p *ShopifyProvider) toProduct(sp shopifyProduct) Product {
	product := Product{
		ID:    fmt.Sprintf("%d", sp.ID),
		Title: sp.Title,
		URL:   fmt.Sprintf("https://%s/products/%s", p.domain, sp.Handle),
	}
	if len(sp.Variants) > 0 {
		v := sp.Variants[0]
		product.Price = v.Price
		product.SKU = v.SKU
		product.StockCount = float64(v.InventoryQuantity)
		product.InStock = v.InventoryQuantity > 0
	}
	return product
}

func (p *ShopifyProvider) SearchProducts(ctx context.Context, query string, limit int) OpResult {
	if limit <= 0 || limit > 20 {
		limit = 10
	}
	q := url.Values{}
	q.Set("title", query)
	q.Set("limit", fmt.Sprintf("%d", limit))

	var payload struct {
		Products []shopifyProduct `json:"products"`
	}
	if err := p.get(ctx, p.apiURL("products.json", q), &payload); err != nil {
		p.logger.WithError(err).WithField("tenant_id", omniops.GetTenantID(ctx)).Warn("Shopify product search failed")
		return OpResult{Reason: "product search is temporarily unavailable"}
	}

	products := make([]Product, 0, len(payload.Products))
	for _, sp := range payload.Products {
		products = append(products, p.toProduct(sp))
	}
	return OpResult{Success: true, Products: products}
}

func (p *ShopifyProvider) LookupOrder(ctx context.Context, orderNumber, email string) OpResult {
	q := url.Values{}
	q.Set("name", orderNumber)
	q.Set("status", "any")

	var payload struct {
		Orders []struct {
			ID        int64  `json:"id"`
			Name      string `json:"name"`
			Email     string `json:"email"`
			Status    string `json:"fulfillment_status"`
			Total     string `json:"total_price"`
			Currency  string `json:"currency"`
			CreatedAt string `json:"created_at"`
			LineItems []struct {
				Title    string `json:"title"`
				Quantity int    `json:"quantity"`
				SKU      string `json:"sku"`
			} `json:"line_items"`
			Fulfillments []struct {
				TrackingNumber string `json:"tracking_number"`
			} `json:"fulfillments"`
		} `json:"orders"`
	}
	if err := p.get(ctx, p.apiURL("orders.json", q), &payload); err != nil {
		p.logger.WithError(err).WithField("tenant_id", omniops.GetTenantID(ctx)).Warn("Shopify order lookup failed")
		return OpResult{Reason: "order lookup is temporarily unavailable"}
	}

	for _, o := range payload.Orders {
		// The email check gates order detail disclosure.
		if email != "" && !strings.EqualFold(o.Email, email) {
			continue
		}
		order := &Order{
			ID:        fmt.Sprintf("%d", o.ID),
			Number:    o.Name,
			Status:    o.Status,
			Total:     o.Total,
			Currency:  o.Currency,
			CreatedAt: o.CreatedAt,
		}
		if order.Status == "" {
			order.Status = "unfulfilled"
		}
		for _, item := range o.LineItems {
			order.Items = append(order.Items, OrderItem{Title: item.Title, Quantity: item.Quantity, SKU: item.SKU})
		}
		if len(o.Fulfillments) > 0 {
			order.TrackingNo = o.Fulfillments[0].TrackingNumber
		}
		return OpResult{Success: true, Order: order}
	}
	return OpResult{Reason: "no order found matching that number and email"}
}

func (p *ShopifyProvider) CheckStock(ctx context.Context, sku string) OpResult {
	result := p.SearchProducts(ctx, sku, 20)
	if !result.Success {
		return result
	}
	for _, product := range result.Products {
		if strings.EqualFold(product.SKU, sku) {
			return OpResult{Success: true, Products: []Product{product}}
		}
	}
	return OpResult{Reason: "no product found with that SKU"}
}

func (p *ShopifyProvider) GetProductDetails(ctx context.Context, productID string) OpResult {
	var payload struct {
		Product shopifyProduct `json:"product"`
	}
	if err := p.get(ctx, p.apiURL("products/"+url.PathEscape(productID)+".json", nil), &payload); err != nil {
		p.logger.WithError(err).WithField("tenant_id", omniops.GetTenantID(ctx)).Warn("Shopify product details failed")
		return OpResult{Reason: "product details are temporarily unavailable"}
	}
	product := p.toProduct(payload.Product)
	product.Description = payload.Product.BodyHTML
	return OpResult{Success: true, Products: []Product{product}}
}
