package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/reddragons/storefront-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
	ttl  map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.data[key] = fmt.Sprint(value)
	f.ttl[key] = ttl
	return nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = fmt.Sprint(value)
	f.ttl[key] = ttl
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

const capturePath = "/api/v1/checkout/ORDER-1/capture"

func captureRequest(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, capturePath, strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	return req
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	return payload.Error.Code
}

func TestIdempotencyMiddlewareRequiresHeader(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	})

	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, captureRequest("", `{}`))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if handlerCalled {
		t.Fatalf("handler should not run without idempotency key")
	}
}

func TestIdempotencyMiddlewareWithoutStorePassesThrough(t *testing.T) {
	mw := Idempotency(nil, nil)
	resp := httptest.NewRecorder()
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(resp, captureRequest("", ""))

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected handler to run, got %d", resp.Code)
	}
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"COMPLETED"}`))
	})

	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, captureRequest("abc", `{}`))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected first response 200 got %d", resp.Code)
	}
	if resp.Header().Get(IdempotencyReplayHeader) != "" {
		t.Fatalf("first response must not be marked as replay")
	}
	key := store.IdempotencyKey("||POST|"+capturePath, "abc")
	if store.ttl[key] != captureIdempotencyTTL {
		t.Fatalf("expected record kept for %v, got %v", captureIdempotencyTTL, store.ttl[key])
	}

	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, captureRequest("abc", `{}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected replay status 200 got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected content-type header preserved")
	}
	if rec.Header().Get(IdempotencyReplayHeader) != "true" {
		t.Fatalf("expected replay header")
	}
	if strings.TrimSpace(rec.Body.String()) != `{"status":"COMPLETED"}` {
		t.Fatalf("expected stored body got %s", rec.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mw(handler).ServeHTTP(httptest.NewRecorder(), captureRequest("xyz", `{"note":"a"}`))

	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, captureRequest("xyz", `{"note":"b"}`))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, code)
	}
}

func TestIdempotencyMiddlewareRejectsConcurrentDuplicate(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)

	var inner *httptest.ResponseRecorder
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inner == nil {
			// a duplicate arrives while the first capture is still running
			inner = httptest.NewRecorder()
			mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatalf("duplicate must not reach the handler")
			})).ServeHTTP(inner, captureRequest("dup", `{}`))
		}
		w.WriteHeader(http.StatusOK)
	})

	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, captureRequest("dup", `{}`))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected first capture 200 got %d", resp.Code)
	}
	if inner.Code != http.StatusConflict {
		t.Fatalf("expected duplicate 409 got %d", inner.Code)
	}
}

func TestIdempotencyMiddlewareReleasesKeyOnServerError(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	first := httptest.NewRecorder()
	mw(handler).ServeHTTP(first, captureRequest("retry", `{}`))
	if first.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", first.Code)
	}

	second := httptest.NewRecorder()
	mw(handler).ServeHTTP(second, captureRequest("retry", `{}`))
	if second.Code != http.StatusOK {
		t.Fatalf("expected retry to run the handler, got %d", second.Code)
	}
	if calls != 2 {
		t.Fatalf("expected two executions, got %d", calls)
	}
}

func TestIdempotencyMiddlewareKeepsPaymentFailures(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusPaymentRequired)
	})

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		mw(handler).ServeHTTP(resp, captureRequest("declined", `{}`))
		if resp.Code != http.StatusPaymentRequired {
			t.Fatalf("expected 402 got %d", resp.Code)
		}
	}
	if calls != 1 {
		t.Fatalf("a declined capture must replay, got %d executions", calls)
	}
}
