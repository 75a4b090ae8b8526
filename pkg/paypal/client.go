package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/reddragons/storefront-backend/pkg/config"
	pkgerrors "github.com/reddragons/storefront-backend/pkg/errors"
	"github.com/reddragons/storefront-backend/pkg/metrics"
)

const (
	upstreamName            = "paypal"
	tokenPath               = "/v1/oauth2/token"
	ordersPath              = "/v2/checkout/orders"
	responseBodyLimit int64 = 1 << 20
)

// Client wraps the PayPal Orders v2 API. Access tokens are obtained and
// refreshed through the OAuth2 client-credentials flow.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *metrics.UpstreamMetrics
}

// Option configures optional client behavior.
type Option func(*options)

type options struct {
	base    *http.Client
	metrics *metrics.UpstreamMetrics
}

// WithHTTPClient sets the transport used for both token and API calls.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.base = client
		}
	}
}

func WithMetrics(m *metrics.UpstreamMetrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// NewClient builds a PayPal client from config.
func NewClient(cfg config.PayPalConfig, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, fmt.Errorf("paypal client id and secret are required")
	}
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if o.base == nil {
		o.base = &http.Client{Timeout: timeout}
	}

	baseURL := cfg.Endpoint()
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     baseURL + tokenPath,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, o.base)
	httpClient := cc.Client(tokenCtx)
	httpClient.Timeout = timeout

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		metrics:    o.metrics,
	}, nil
}

// CreateOrderInput is the amount to authorise, split into its breakdown.
type CreateOrderInput struct {
	Currency    string
	ItemTotal   decimal.Decimal
	Shipping    decimal.Decimal
	ReferenceID string
}

// Total returns ItemTotal + Shipping.
func (in CreateOrderInput) Total() decimal.Decimal {
	return in.ItemTotal.Add(in.Shipping)
}

// CreatedOrder is a payment intent awaiting shopper approval.
type CreatedOrder struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	ApproveURL string `json:"approve_url,omitempty"`
}

// Name is the payer's name as returned on capture.
type Name struct {
	GivenName string `json:"given_name"`
	Surname   string `json:"surname"`
}

// Address is the shipping address captured with the payment.
type Address struct {
	AddressLine1 string `json:"address_line_1"`
	AdminArea2   string `json:"admin_area_2"`
	AdminArea1   string `json:"admin_area_1"`
	PostalCode   string `json:"postal_code"`
	CountryCode  string `json:"country_code"`
}

// Capture is the outcome of capturing an approved order.
type Capture struct {
	OrderID       string
	Status        string
	CaptureID     string
	CaptureStatus string
	Payer         Name
	ShippingName  string
	Address       Address
	Raw           map[string]any
}

// CreateOrder creates a CAPTURE intent for the given amounts.
func (c *Client) CreateOrder(ctx context.Context, in CreateOrderInput) (*CreatedOrder, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "paypal client not configured")
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "currency is required")
	}
	if !in.Total().IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total must be positive")
	}

	unit := purchaseUnit{
		ReferenceID: in.ReferenceID,
		Amount: amountWithBreakdown{
			CurrencyCode: currency,
			Value:        in.Total().StringFixed(2),
			Breakdown: breakdown{
				ItemTotal: money{CurrencyCode: currency, Value: in.ItemTotal.StringFixed(2)},
				Shipping:  money{CurrencyCode: currency, Value: in.Shipping.StringFixed(2)},
			},
		},
	}
	body := map[string]any{
		"intent":         "CAPTURE",
		"purchase_units": []purchaseUnit{unit},
	}

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Links  []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if _, err := c.call(ctx, http.MethodPost, ordersPath, body, &resp, "create order"); err != nil {
		return nil, err
	}

	created := &CreatedOrder{ID: resp.ID, Status: resp.Status}
	for _, link := range resp.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			created.ApproveURL = link.Href
			break
		}
	}
	return created, nil
}

// CaptureOrder finalises an approved order.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*Capture, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "paypal client not configured")
	}
	trimmed := strings.TrimSpace(orderID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paypal order id is required")
	}

	var resp captureResponse
	raw, err := c.call(ctx, http.MethodPost, ordersPath+"/"+url.PathEscape(trimmed)+"/capture", map[string]any{}, &resp, "capture order")
	if err != nil {
		return nil, err
	}

	capture := &Capture{
		OrderID: resp.ID,
		Status:  resp.Status,
		Payer:   resp.Payer.Name,
		Raw:     raw,
	}
	if capture.OrderID == "" {
		capture.OrderID = trimmed
	}
	if len(resp.PurchaseUnits) > 0 {
		unit := resp.PurchaseUnits[0]
		capture.Address = unit.Shipping.Address
		capture.ShippingName = unit.Shipping.Name.FullName
		if len(unit.Payments.Captures) > 0 {
			capture.CaptureID = unit.Payments.Captures[0].ID
			capture.CaptureStatus = unit.Payments.Captures[0].Status
		}
	}
	if !strings.EqualFold(capture.Status, "COMPLETED") {
		return nil, pkgerrors.New(pkgerrors.CodePayment, fmt.Sprintf("capture not completed: %s", capture.Status)).
			WithDetails(map[string]any{"upstream": upstreamName, "paypal_status": capture.Status})
	}
	return capture, nil
}

func (c *Client) call(ctx context.Context, method, path string, body any, out any, op string) (map[string]any, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal "+op)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build "+op+" request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.Observe(upstreamName, "error", time.Since(start))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute "+op+" request")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	c.metrics.Observe(upstreamName, statusClass(resp.StatusCode), time.Since(start))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read "+op+" response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apiError(resp.StatusCode, data, op)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode "+op+" response")
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode "+op+" response")
	}
	return raw, nil
}

func apiError(status int, body []byte, op string) error {
	var apiErr struct {
		Name    string `json:"name"`
		Message string `json:"message"`
		DebugID string `json:"debug_id"`
		Details []struct {
			Issue       string `json:"issue"`
			Description string `json:"description"`
		} `json:"details"`
	}
	_ = json.Unmarshal(body, &apiErr)

	msg := apiErr.Message
	if len(apiErr.Details) > 0 && apiErr.Details[0].Description != "" {
		msg = apiErr.Details[0].Description
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	details := map[string]any{
		"upstream":        upstreamName,
		"upstream_status": status,
	}
	if apiErr.Name != "" {
		details["name"] = apiErr.Name
	}
	if apiErr.DebugID != "" {
		details["debug_id"] = apiErr.DebugID
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return pkgerrors.New(pkgerrors.CodeConfiguration, op+": paypal rejected credentials").WithDetails(details)
	case status >= 500:
		return pkgerrors.New(pkgerrors.CodeUpstream, op+": "+msg).WithDetails(details)
	default:
		return pkgerrors.New(pkgerrors.CodePayment, op+": "+msg).WithStatus(status).WithDetails(details)
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	default:
		return "ok"
	}
}

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type breakdown struct {
	ItemTotal money `json:"item_total"`
	Shipping  money `json:"shipping"`
}

type amountWithBreakdown struct {
	CurrencyCode string    `json:"currency_code"`
	Value        string    `json:"value"`
	Breakdown    breakdown `json:"breakdown"`
}

type purchaseUnit struct {
	ReferenceID string              `json:"reference_id,omitempty"`
	Amount      amountWithBreakdown `json:"amount"`
}

type captureResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Payer  struct {
		Name Name `json:"name"`
	} `json:"payer"`
	PurchaseUnits []struct {
		Shipping struct {
			Name struct {
				FullName string `json:"full_name"`
			} `json:"name"`
			Address Address `json:"address"`
		} `json:"shipping"`
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}
