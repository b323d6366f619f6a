// Package picqer implements the WMS client against the Picqer REST API.
package picqer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/erp/wmssync/internal/domain/wms"
)

// maxResponseSize is the maximum allowed response size from the Picqer API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// pageSize is the fixed page size of Picqer list endpoints
const pageSize = 100

// Client talks to one Picqer account
type Client struct {
	config     *Config
	baseURL    string
	httpClient *http.Client
}

// Ensure Client implements wms.Client
var _ wms.Client = (*Client)(nil)

// NewClient creates a client. A nil httpClient gets one with the configured timeout.
func NewClient(config *Config, httpClient *http.Client) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		}
	}
	return &Client{
		config:     config,
		baseURL:    config.BaseURL(),
		httpClient: httpClient,
	}, nil
}

// WebhookSecret returns the secret hooks are registered with
func (c *Client) WebhookSecret() string {
	return c.config.WebhookSecret
}

// VerifySignature checks a webhook signature over the exact raw body
func (c *Client) VerifySignature(rawBody []byte, signature string) bool {
	return VerifySignature(c.config.WebhookSecret, rawBody, signature)
}

// ---------------------------------------------------------------------------
// Webhooks
// ---------------------------------------------------------------------------

// ListWebhooks lists all hooks of the account
func (c *Client) ListWebhooks(ctx context.Context) ([]wms.Webhook, error) {
	return listAll[wms.Webhook](ctx, c, "/hooks", nil)
}

// CreateWebhook registers a hook
func (c *Client) CreateWebhook(ctx context.Context, in wms.WebhookInput) (*wms.Webhook, error) {
	var hook wms.Webhook
	if err := c.doJSON(ctx, http.MethodPost, "/hooks", nil, in, &hook); err != nil {
		return nil, err
	}
	return &hook, nil
}

// DeactivateWebhook deactivates a hook. Picqer keeps deactivated hooks around.
func (c *Client) DeactivateWebhook(ctx context.Context, idHook int) error {
	return c.doJSON(ctx, http.MethodDelete, "/hooks/"+strconv.Itoa(idHook), nil, nil, nil)
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

// ListVATGroups lists the VAT groups of the account
func (c *Client) ListVATGroups(ctx context.Context) ([]wms.VATGroup, error) {
	var groups []wms.VATGroup
	if err := c.doJSON(ctx, http.MethodGet, "/vatgroups", nil, nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// GetProductBySKU returns the product with the productcode, or nil when absent
func (c *Client) GetProductBySKU(ctx context.Context, sku string) (*wms.Product, error) {
	var raw []json.RawMessage
	query := url.Values{"productcode": {sku}}
	if err := c.doJSON(ctx, http.MethodGet, "/products", query, nil, &raw); err != nil {
		return nil, err
	}
	products, err := decodeProducts(raw)
	if err != nil {
		return nil, err
	}
	for i := range products {
		// the filter is a prefix search on some accounts
		if products[i].ProductCode == sku {
			return &products[i], nil
		}
	}
	return nil, nil
}

// CreateOrUpdateProduct upserts a product by its productcode
func (c *Client) CreateOrUpdateProduct(ctx context.Context, sku string, in wms.ProductInput) (*wms.Product, error) {
	existing, err := c.GetProductBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	var product wms.Product
	if existing == nil {
		if err := c.doJSON(ctx, http.MethodPost, "/products", nil, in, &product); err != nil {
			return nil, err
		}
		return &product, nil
	}
	path := "/products/" + strconv.Itoa(existing.IDProduct)
	if err := c.doJSON(ctx, http.MethodPut, path, nil, in, &product); err != nil {
		return nil, err
	}
	if product.IDProduct == 0 {
		product.IDProduct = existing.IDProduct
	}
	if product.Images == nil {
		product.Images = existing.Images
	}
	return &product, nil
}

// AddProductImage uploads a base64 encoded image
func (c *Client) AddProductImage(ctx context.Context, idProduct int, base64Image string) error {
	body := map[string]string{"image": base64Image}
	return c.doJSON(ctx, http.MethodPost, "/products/"+strconv.Itoa(idProduct)+"/images", nil, body, nil)
}

// ListActiveProducts pages through all active products
func (c *Client) ListActiveProducts(ctx context.Context) ([]wms.Product, error) {
	raw, err := listAll[json.RawMessage](ctx, c, "/products", nil)
	if err != nil {
		return nil, err
	}
	products, err := decodeProducts(raw)
	if err != nil {
		return nil, err
	}
	active := products[:0]
	for _, p := range products {
		if p.Active {
			active = append(active, p)
		}
	}
	return active, nil
}

func decodeProducts(raw []json.RawMessage) ([]wms.Product, error) {
	products := make([]wms.Product, 0, len(raw))
	for _, item := range raw {
		var p wms.Product
		if err := json.Unmarshal(item, &p); err != nil {
			return nil, fmt.Errorf("%w: failed to parse product: %v", wms.ErrInvalidResponse, err)
		}
		p.Raw = item
		products = append(products, p)
	}
	return products, nil
}

// ---------------------------------------------------------------------------
// Customers and orders
// ---------------------------------------------------------------------------

// GetOrCreateMinimalCustomer finds a customer by email or creates one with
// only a name and email address
func (c *Client) GetOrCreateMinimalCustomer(ctx context.Context, email, name string) (*wms.Customer, error) {
	var found []wms.Customer
	if err := c.doJSON(ctx, http.MethodGet, "/customers", url.Values{"search": {email}}, nil, &found); err != nil {
		return nil, err
	}
	for i := range found {
		if strings.EqualFold(found[i].EmailAddress, email) {
			return &found[i], nil
		}
	}
	var created wms.Customer
	in := wms.CustomerInput{Name: name, EmailAddress: email}
	if err := c.doJSON(ctx, http.MethodPost, "/customers", nil, in, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateOrder creates an order in concept status
func (c *Client) CreateOrder(ctx context.Context, in wms.OrderInput) (*wms.Order, error) {
	var order wms.Order
	if err := c.doJSON(ctx, http.MethodPost, "/orders", nil, in, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// ProcessOrder moves a concept order to processing
func (c *Client) ProcessOrder(ctx context.Context, idOrder int) error {
	return c.doJSON(ctx, http.MethodPost, "/orders/"+strconv.Itoa(idOrder)+"/process", nil, nil, nil)
}

// AddOrderNote adds a note to an order
func (c *Client) AddOrderNote(ctx context.Context, idOrder int, note string) error {
	body := map[string]string{"note": note}
	return c.doJSON(ctx, http.MethodPost, "/orders/"+strconv.Itoa(idOrder)+"/notes", nil, body, nil)
}

// GetStats fetches account statistics
func (c *Client) GetStats(ctx context.Context) (wms.Stats, error) {
	var stats wms.Stats
	if err := c.doJSON(ctx, http.MethodGet, "/stats", nil, nil, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// listAll follows offset pagination until a short page is returned
func listAll[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var all []T
	for offset := 0; ; offset += pageSize {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		if offset > 0 {
			q.Set("offset", strconv.Itoa(offset))
		}
		var page []T
		if err := c.doJSON(ctx, http.MethodGet, path, q, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

// apiError is the error document returned by Picqer
type apiError struct {
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// doJSON sends in as JSON body and decodes the response into out when both are non-nil
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("picqer: failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	respBody, err := c.doRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: failed to parse response: %v", wms.ErrInvalidResponse, err)
	}
	return nil
}

// doRequest executes an HTTP request against the Picqer API
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("picqer: failed to create request: %w", err)
	}
	req.SetBasicAuth(c.config.APIKey, "")
	req.Header.Set("User-Agent", c.config.UserAgent())
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wms.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", wms.ErrPlatformUnavailable, err)
	}

	if resp.StatusCode >= 400 {
		return nil, statusError(method, path, resp.StatusCode, respBody)
	}
	return respBody, nil
}

func statusError(method, path string, status int, body []byte) error {
	var apiErr apiError
	msg := ""
	if json.Unmarshal(body, &apiErr) == nil && apiErr.ErrorMessage != "" {
		msg = ": " + apiErr.ErrorMessage
	}
	switch status {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s %s%s", wms.ErrRateLimited, method, path, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s %s%s", wms.ErrConflict, method, path, msg)
	}
	return fmt.Errorf("%w: %s %s: HTTP %d%s", wms.ErrPlatformRequestFailed, method, path, status, msg)
}
