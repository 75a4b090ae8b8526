package printful

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/reddragons/storefront-backend/api/responses"
	"github.com/reddragons/storefront-backend/pkg/logger"
	pf "github.com/reddragons/storefront-backend/pkg/printful"
)

const (
	orderBodyLimit        int64 = 1 << 20
	internalErrorMessage        = "Internal Server Error"
	upstreamErrorFallback       = "Printful error"
)

type upstream interface {
	Do(ctx context.Context, method, path string, payload []byte) (*pf.Response, error)
}

type errorBody struct {
	Error any `json:"error"`
}

// Proxy relays a small subset of the Printful API to the browser so the
// API key never leaves the server. Its routes answer with bare JSON rather
// than the usual envelope.
type Proxy struct {
	client  upstream
	logg    *logger.Logger
	keyOnce sync.Once
}

func NewProxy(client upstream, logg *logger.Logger) *Proxy {
	return &Proxy{client: client, logg: logg}
}

// ListProducts answers with the upstream "result" list, or [] when absent.
func (p *Proxy) ListProducts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, ok := p.call(w, r, http.MethodGet, "store/products", nil)
		if !ok {
			return
		}
		if result, found := resp.Result(); found {
			responses.WriteRaw(w, http.StatusOK, result)
			return
		}
		responses.WriteRaw(w, http.StatusOK, []any{})
	}
}

// ProductDetail answers with the upstream "result", or the whole upstream
// body when it has none.
func (p *Proxy) ProductDetail() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		resp, ok := p.call(w, r, http.MethodGet, "store/products/"+url.PathEscape(id), nil)
		if !ok {
			return
		}
		if result, found := resp.Result(); found {
			responses.WriteRaw(w, http.StatusOK, result)
			return
		}
		responses.WriteRaw(w, http.StatusOK, json.RawMessage(resp.Body))
	}
}

// CreateOrder forwards the request body to Printful. A non-2xx reply keeps
// its status and is reduced to {"error": ...}.
func (p *Proxy) CreateOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			p.MethodNotAllowed()(w, r)
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, orderBodyLimit))
		if err != nil {
			p.fail(r.Context(), w, "printful.order.read_failed", err)
			return
		}
		if len(strings.TrimSpace(string(payload))) == 0 {
			payload = []byte("{}")
		}
		if !json.Valid(payload) {
			responses.WriteRaw(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
			return
		}

		resp, ok := p.call(w, r, http.MethodPost, "orders", payload)
		if !ok {
			return
		}
		if !resp.OK() {
			if upstreamErr, found := resp.ErrorBody(); found {
				responses.WriteRaw(w, resp.Status, errorBody{Error: upstreamErr})
				return
			}
			responses.WriteRaw(w, resp.Status, errorBody{Error: upstreamErrorFallback})
			return
		}
		if result, found := resp.Result(); found {
			responses.WriteRaw(w, http.StatusOK, result)
			return
		}
		responses.WriteRaw(w, http.StatusOK, json.RawMessage(resp.Body))
	}
}

func (p *Proxy) MethodNotAllowed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", http.MethodPost)
		responses.WriteRaw(w, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed"})
	}
}

// call performs the upstream request and writes the failure response
// itself; ok is false when the handler must stop. Bodies that are not JSON
// count as failures.
func (p *Proxy) call(w http.ResponseWriter, r *http.Request, method, path string, payload []byte) (*pf.Response, bool) {
	if p.client == nil {
		p.missingKey(w, r)
		return nil, false
	}
	resp, err := p.client.Do(r.Context(), method, path, payload)
	if errors.Is(err, pf.ErrMissingAPIKey) {
		p.missingKey(w, r)
		return nil, false
	}
	if err != nil {
		p.fail(r.Context(), w, "printful.proxy.failed", err)
		return nil, false
	}
	if !json.Valid(resp.Body) {
		ctx := r.Context()
		if p.logg != nil {
			ctx = p.logg.WithField(ctx, "upstream_status", resp.Status)
		}
		p.fail(ctx, w, "printful.proxy.invalid_body", errors.New("upstream body is not JSON"))
		return nil, false
	}
	return resp, true
}

func (p *Proxy) missingKey(w http.ResponseWriter, r *http.Request) {
	p.keyOnce.Do(func() {
		if p.logg != nil {
			p.logg.Error(r.Context(), "printful.api_key.missing", pf.ErrMissingAPIKey)
		}
	})
	responses.WriteRaw(w, http.StatusInternalServerError, errorBody{Error: pf.ErrMissingAPIKey.Error()})
}

func (p *Proxy) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if p.logg != nil {
		p.logg.Error(ctx, msg, err)
	}
	responses.WriteRaw(w, http.StatusInternalServerError, errorBody{Error: internalErrorMessage})
}
