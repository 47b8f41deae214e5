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

// WooCommerceProvider talks to the WooCommerce REST API (wc/v3).
type WooCommerceProvider struct {
	baseURL string
	key     string
	secret  string
	client  *http.Client
	logger  logging.Logger
}

func NewWooCommerceProvider(creds Credentials, logger logging.Logger) *WooCommerceProvider {
	return &WooCommerceProvider{
		baseURL: strings.TrimSuffix(creds.WooCommerceURL, "/"),
		key:     creds.WooConsumerKey,
		secret:  creds.WooConsumerSecret,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

func (p *WooCommerceProvider) Kind() Kind { return KindWooCommerce }

func (p *WooCommerceProvider) get(ctx context.Context, path string, query url.Values, dest interface{}) error {
	rawURL := p.baseURL + "/wp-json/wc/v3/" + path
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(p.key, p.secret)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("woocommerce returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

type wooProduct struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	ShortDescription string  `json:"short_description"`
	Price            string  `json:"price"`
	SKU              string  `json:"sku"`
	Permalink        string  `json:"permalink"`
	StockStatus      string  `json:"stock_status"`
	StockQuantity    float64 `json:"stock_quantity"`
}

func toWooResult(wp wooProduct) Product {
	return Product{
		ID:          fmt.Sprintf("%d", wp.ID),
		Title:       wp.Name,
		Description: wp.ShortDescription,
		Price:       wp.Price,
		SKU:         wp.SKU,
		URL:         wp.Permalink,
		InStock:     wp.StockStatus == "instock",
		StockCount:  wp.StockQuantity,
	}
}

func (p *WooCommerceProvider) SearchProducts(ctx context.Context, query string, limit int) OpResult {
	if limit <= 0 || limit > 20 {
		limit = 10
	}
	q := url.Values{}
	q.Set("search", query)
	q.Set("per_page", fmt.Sprintf("%d", limit))

	var products []wooProduct
	if err := p.get(ctx, "products", q, &products); err != nil {
		p.logger.WithError(err).WithField("tenant_id", omniops.GetTenantID(ctx)).Warn("WooCommerce product search failed")
		return OpResult{Reason: "product search is temporarily unavailable"}
	}

	out := make([]Product, 0, len(products))
	for _, wp := range products {
		out = append(out, toWooResult(wp))
	}
	return OpResult{Success: true, Products: out}
}

func (p *WooCommerceProvider) LookupOrder(ctx context.Context, orderNumber, email string) OpResult {
	q := url.Values{}
	q.Set("search", orderNumber)

	var orders []struct {
		ID       int64  `json:"id"`
		Number   string `json:"number"`
		Status   string `json:"status"`
		Total    string `json:"total"`
		Currency string `json:"currency"`
		DateStr  string `json:"date_created"`
		Billing  struct {
			Email string `json:"email"`
		} `json:"billing"`
		LineItems []struct {
			Name     string `json:"name"`
			Quantity int    `json:"quantity"`
			SKU      string `json:"sku"`
		} `json:"line_items"`
	}
	if err := p.get(ctx, "orders", q, &orders); err != nil {
		p.logger.WithError(err).WithField("tenant_id", omniops.GetTenantID(ctx)).Warn("WooCommerce order lookup failed")
		return OpResult{Reason: "order lookup is temporarily unavailable"}
	}

	for _, o := range orders {
		if o.Number != orderNumber {
			continue
		}
		if email != "" && !strings.EqualFold(o.Billing.Email, email) {
			continue
		}
		order := &Order{
			ID:        fmt.Sprintf("%d", o.ID),
			Number:    o.Number,
			Status:    o.Status,
			Total:     o.Total,
			Currency:  o.Currency,
			CreatedAt: o.DateStr,
		}
		for _, item := range o.LineItems {
			order.Items = append(order.Items, OrderItem{Title: item.Name, Quantity: item.Quantity, SKU: item.SKU})
		}
		return OpResult{Success: true, Order: order}
	}
	return OpResult{Reason: "no order found matching that number and email"}
}

func (p *WooCommerceProvider) CheckStock(ctx context.Context, sku string) OpResult {
	q := url.Values{}
	q.Set("sku", sku)

	var products []wooProduct
	if err := p.get(ctx, "products", q, &products); err != nil {
		p.logger.WithError(err).WithField("tenant_id", omniops.GetTenantID(ctx)).Warn("WooCommerce stock check failed")
		return OpResult{Reason: "stock check is temporarily unavailable"}
	}
	if len(products) == 0 {
		return OpResult{Reason: "no product found with that SKU"}
	}
	return OpResult{Success: true, Products: []Product{toWooResult(products[0])}}
}

func (p *WooCommerceProvider) GetProductDetails(ctx context.Context, productID string) OpResult {
	var product wooProduct
	if err := p.get(ctx, "products/"+url.PathEscape(productID), nil, &product); err != nil {
		p.logger.WithError(err).WithField("tenant_id", omniops.GetTenantID(ctx)).Warn("WooCommerce product details failed")
		return OpResult{Reason: "product details are temporarily unavailable"}
	}
	return OpResult{Success: true, Products: []Product{toWooResult(product)}}
}
