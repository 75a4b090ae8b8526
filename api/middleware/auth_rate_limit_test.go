package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/reddragons/storefront-backend/pkg/errors"
)

type fakeRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: map[string]int64{}}
}

func (f *fakeRateStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, 0, f.err
	}
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func loginRequest(email, remote string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"`+email+`","password":"secret"}`))
	req.RemoteAddr = remote
	return req
}

func TestAuthRateLimitPreservesBodyForHandler(t *testing.T) {
	policy := NewAuthRateLimitPolicy("login", time.Minute, 2, 2)
	handler := AuthRateLimit(policy, newFakeRateStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Contains(t, string(body), `"email":"fan@reddragons.test"`)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("fan@reddragons.test", "1.2.3.4:5678"))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRateLimitBlocksByEmail(t *testing.T) {
	policy := NewAuthRateLimitPolicy("login", time.Minute, 0, 2)
	handler := AuthRateLimit(policy, newFakeRateStore(), nil)(okHandler())

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		// a different address each time; the email bucket still fills
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, loginRequest("blocked@reddragons.test", fmt.Sprintf("10.0.0.%d:80", i+1)))
		if i < 2 {
			require.Equal(t, http.StatusOK, last.Code)
		}
	}

	require.Equal(t, http.StatusTooManyRequests, last.Code)
	require.Equal(t, "60", last.Header().Get("Retry-After"))
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(last.Body.Bytes(), &payload))
	require.Equal(t, string(pkgerrors.CodeRateLimit), payload.Error.Code)
}

func TestAuthRateLimitBlocksByAddress(t *testing.T) {
	policy := NewAuthRateLimitPolicy("register", time.Minute, 1, 0)
	handler := AuthRateLimit(policy, newFakeRateStore(), nil)(okHandler())

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, loginRequest("a@reddragons.test", "5.6.7.8:1234"))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, loginRequest("b@reddragons.test", "5.6.7.8:4321"))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestAuthRateLimitUsesForwardedAddress(t *testing.T) {
	store := newFakeRateStore()
	policy := NewAuthRateLimitPolicy("login", time.Minute, 5, 0)
	handler := AuthRateLimit(policy, store, nil)(okHandler())

	req := loginRequest("fan@reddragons.test", "127.0.0.1:80")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Contains(t, store.counts, "auth:login:ip:203.0.113.9")
}

func TestAuthRateLimitEmailIsCaseInsensitiveAndHashed(t *testing.T) {
	store := newFakeRateStore()
	policy := NewAuthRateLimitPolicy("login", time.Minute, 0, 1)
	handler := AuthRateLimit(policy, store, nil)(okHandler())

	for _, email := range []string{"Fan@RedDragons.test", " fan@reddragons.test "} {
		handler.ServeHTTP(httptest.NewRecorder(), loginRequest(email, "1.1.1.1:1"))
	}

	require.Len(t, store.counts, 1)
	for scope, count := range store.counts {
		require.NotContains(t, scope, "reddragons")
		require.EqualValues(t, 2, count)
	}
}

func TestAuthRateLimitStoreFailure(t *testing.T) {
	store := newFakeRateStore()
	store.err = errors.New("redis down")
	policy := NewAuthRateLimitPolicy("login", time.Minute, 1, 1)
	handler := AuthRateLimit(policy, store, nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("fan@reddragons.test", "1.1.1.1:1"))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	store := newFakeRateStore()
	handler := AuthRateLimit(NewAuthRateLimitPolicy("", 0, 1, 1), store, nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("fan@reddragons.test", "1.1.1.1:1"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, store.counts)
}
