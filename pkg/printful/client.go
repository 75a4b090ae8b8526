package printful

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	pkgerrors "github.com/reddragons/storefront-backend/pkg/errors"
	"github.com/reddragons/storefront-backend/pkg/config"
	"github.com/reddragons/storefront-backend/pkg/metrics"
)

const (
	defaultBaseURL          = "https://api.printful.com"
	upstreamName            = "printful"
	responseBodyLimit int64 = 4 << 20
	errorBodyLimit    int64 = 1024
)

// ErrMissingAPIKey is returned by every call when no credential is configured.
var ErrMissingAPIKey = errors.New("PRINTFUL_API_KEY is not set")

var errServerStatus = errors.New("printful server error")

// Response is an upstream reply, kept raw so the proxy can relay it.
type Response struct {
	Status int
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Result returns the "result" member of the Printful envelope, if any.
func (r *Response) Result() (json.RawMessage, bool) {
	if r == nil {
		return nil, false
	}
	var env struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(r.Body, &env); err != nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil, false
	}
	return env.Result, true
}

// ErrorBody returns the "error" member of the Printful envelope, if any.
func (r *Response) ErrorBody() (json.RawMessage, bool) {
	if r == nil {
		return nil, false
	}
	var env struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(r.Body, &env); err != nil || len(env.Error) == 0 || string(env.Error) == "null" {
		return nil, false
	}
	return env.Error, true
}

// Client talks to the Printful REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	breaker    *gobreaker.CircuitBreaker[*Response]
	metrics    *metrics.UpstreamMetrics
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the Printful base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// WithBreaker replaces the default circuit breaker settings.
func WithBreaker(settings BreakerSettings) Option {
	return func(c *Client) {
		c.breaker = newBreaker(settings)
	}
}

// WithMetrics records call latency per outcome.
func WithMetrics(m *metrics.UpstreamMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// BreakerSettings bounds how the client reacts to a failing upstream.
type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenFor             time.Duration
	HalfOpenRequests    uint32
}

// NewClient builds a Printful client. An empty key is accepted so the
// service can boot; calls then fail with ErrMissingAPIKey.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.breaker == nil {
		client.breaker = newBreaker(BreakerSettings{})
	}
	return client
}

// FromConfig builds the client both binaries use: configured base URL,
// timeout and breaker, plus any extra options.
func FromConfig(cfg config.PrintfulConfig, opts ...Option) *Client {
	base := []Option{
		WithBaseURL(cfg.BaseURL),
		WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		WithBreaker(BreakerSettings{
			ConsecutiveFailures: cfg.BreakerFailures,
			OpenFor:             cfg.BreakerOpenFor,
			HalfOpenRequests:    cfg.BreakerHalfProbe,
		}),
	}
	return NewClient(cfg.APIKey, append(base, opts...)...)
}

// Configured reports whether a credential is present.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

func newBreaker(s BreakerSettings) *gobreaker.CircuitBreaker[*Response] {
	failures := s.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	openFor := s.OpenFor
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        upstreamName,
		MaxRequests: s.HalfOpenRequests,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
	})
}

// Do sends a request and returns the upstream reply whatever its status.
// The error is non-nil only when no reply was obtained.
func (c *Client) Do(ctx context.Context, method, path string, payload []byte) (*Response, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "printful client not configured")
	}
	if c.apiKey == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConfiguration, ErrMissingAPIKey, "printful credential missing")
	}

	start := time.Now()
	resp, err := c.breaker.Execute(func() (*Response, error) {
		return c.send(ctx, method, path, payload)
	})
	if errors.Is(err, errServerStatus) && resp != nil {
		err = nil
	}
	c.metrics.Observe(upstreamName, outcome(resp, err), time.Since(start))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "printful request failed")
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) (*Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, responseBodyLimit))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	resp := &Response{Status: httpResp.StatusCode, Body: raw}
	if httpResp.StatusCode >= http.StatusInternalServerError {
		return resp, errServerStatus
	}
	return resp, nil
}

func (c *Client) buildURL(path string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(c.baseURL, "/"), strings.TrimLeft(path, "/"))
}

// ListProducts returns the store's sync products.
func (c *Client) ListProducts(ctx context.Context) ([]ProductSummary, error) {
	resp, err := c.Do(ctx, http.MethodGet, "store/products", nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, upstreamError(resp, "list products")
	}
	result, ok := resp.Result()
	if !ok {
		return []ProductSummary{}, nil
	}
	var products []ProductSummary
	if err := json.Unmarshal(result, &products); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode product list")
	}
	return products, nil
}

// GetProductRaw returns the detail payload for one product: the "result"
// member when present, the whole body otherwise.
func (c *Client) GetProductRaw(ctx context.Context, productID string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(productID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	resp, err := c.Do(ctx, http.MethodGet, "store/products/"+url.PathEscape(trimmed), nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, upstreamError(resp, "get product")
	}
	if result, ok := resp.Result(); ok {
		return result, nil
	}
	return json.RawMessage(resp.Body), nil
}

// GetProduct decodes the detail payload for one product.
func (c *Client) GetProduct(ctx context.Context, productID string) (*ProductDetail, error) {
	raw, err := c.GetProductRaw(ctx, productID)
	if err != nil {
		return nil, err
	}
	return DecodeProductDetail(raw)
}

// DecodeProductDetail parses a detail payload as returned by GetProductRaw.
func DecodeProductDetail(raw json.RawMessage) (*ProductDetail, error) {
	var detail ProductDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode product detail")
	}
	return &detail, nil
}

// CreateOrder submits a fulfillment order.
func (c *Client) CreateOrder(ctx context.Context, order OrderRequest) (*Order, error) {
	payload, err := json.Marshal(order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal order")
	}
	resp, err := c.Do(ctx, http.MethodPost, "orders", payload)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, upstreamError(resp, "create order")
	}
	var created Order
	if result, ok := resp.Result(); ok {
		if err := json.Unmarshal(result, &created); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode order")
		}
	}
	return &created, nil
}

func upstreamError(resp *Response, op string) error {
	msg := "Printful error"
	if raw, ok := resp.ErrorBody(); ok {
		msg = errorMessage(raw)
	}
	return pkgerrors.New(pkgerrors.CodeUpstream, fmt.Sprintf("%s: %s", op, msg)).
		WithStatus(resp.Status).
		WithDetails(map[string]any{
			"upstream":        upstreamName,
			"upstream_status": resp.Status,
		})
}

func errorMessage(raw json.RawMessage) string {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil && asString != "" {
		return asString
	}
	var asObject struct {
		Message string `json:"message"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal(raw, &asObject); err == nil {
		if asObject.Message != "" {
			return asObject.Message
		}
		if asObject.Reason != "" {
			return asObject.Reason
		}
	}
	if len(raw) > int(errorBodyLimit) {
		raw = raw[:errorBodyLimit]
	}
	return string(raw)
}

func outcome(resp *Response, err error) string {
	switch {
	case err != nil:
		return "error"
	case resp == nil:
		return "error"
	case resp.Status >= 500:
		return "5xx"
	case resp.Status >= 400:
		return "4xx"
	default:
		return "ok"
	}
}
