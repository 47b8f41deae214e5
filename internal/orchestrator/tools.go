package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/IDLEcreative/Omniops-sub014/pkg/llm"
)

const (
	toolSearchKnowledge   = "search_knowledge"
	toolSearchProducts    = "search_products"
	toolLookupOrder       = "lookup_order"
	toolCheckStock        = "check_stock"
	toolGetProductDetails = "get_product_details"
)

func toolDefinitions() []llm.Tool {
	return []llm.Tool{
		{
			Name:        toolSearchKnowledge,
			Description: "Search the store's knowledge base (FAQs, policies, product documentation) for information relevant to the customer's question.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "What to search for.",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of results (optional).",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        toolSearchProducts,
			Description: "Search the store catalog for products matching a name or description.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "Product name or keywords.",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of results (optional).",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        toolLookupOrder,
			Description: "Look up a customer's order by order number. Requires the email on the order for verification.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"order_number": map[string]interface{}{
						"type":        "string",
						"description": "The order number the customer provided.",
					},
					"email": map[string]interface{}{
						"type":        "string",
						"description": "The email address on the order.",
					},
				},
				"required": []string{"order_number", "email"},
			},
		},
		{
			Name:        toolCheckStock,
			Description: "Check current stock for a product by SKU.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"sku": map[string]interface{}{
						"type":        "string",
						"description": "The product SKU.",
					},
				},
				"required": []string{"sku"},
			},
		},
		{
			Name:        toolGetProductDetails,
			Description: "Fetch full details for one product by its catalog id.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"product_id": map[string]interface{}{
						"type":        "string",
						"description": "The product id from an earlier search result.",
					},
				},
				"required": []string{"product_id"},
			},
		},
	}
}

type searchKnowledgeArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type searchProductsArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type lookupOrderArgs struct {
	OrderNumber string `json:"order_number"`
	Email       string `json:"email"`
}

type checkStockArgs struct {
	SKU string `json:"sku"`
}

type productDetailsArgs struct {
	ProductID string `json:"product_id"`
}

// argError describes malformed tool arguments. It is fed back to the model
// as the tool result rather than failing the turn.
type argError struct {
	tool   string
	reason string
}

func (e *argError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.tool, e.reason)
}

func decodeArgs(tool, raw string, dest interface{}) error {
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return &argError{tool: tool, reason: "arguments are not valid JSON"}
	}
	return nil
}

func validateRequired(tool, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &argError{tool: tool, reason: fmt.Sprintf("%q is required", field)}
	}
	return nil
}
