package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reddragons/storefront-backend/pkg/auth"
	"github.com/reddragons/storefront-backend/pkg/auth/session"
	"github.com/reddragons/storefront-backend/pkg/config"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejections(t *testing.T) {
	valid, _ := mintTestToken(t, uuid.New())
	expired, err := auth.MintAccessToken(testJWT, time.Now().Add(-2*time.Hour), auth.AccessTokenPayload{
		UserID: uuid.New(),
		JTI:    session.NewAccessID(),
	})
	require.NoError(t, err)

	cases := []struct {
		name     string
		header   string
		verifier stubSessionVerifier
		want     int
	}{
		{name: "missing token", verifier: stubSessionVerifier{ok: true}, want: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer invalid", verifier: stubSessionVerifier{ok: true}, want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + valid, verifier: stubSessionVerifier{ok: true}, want: http.StatusUnauthorized},
		{name: "expired token", header: "Bearer " + expired, verifier: stubSessionVerifier{ok: true}, want: http.StatusUnauthorized},
		{name: "revoked session", header: "Bearer " + valid, verifier: stubSessionVerifier{ok: false}, want: http.StatusUnauthorized},
		{name: "session store down", header: "Bearer " + valid, verifier: stubSessionVerifier{err: errors.New("redis down")}, want: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp := httptest.NewRecorder()
			Auth(testJWT, tc.verifier, nil)(okHandler()).ServeHTTP(resp, req)
			assert.Equal(t, tc.want, resp.Code)
		})
	}
}

func TestAuthSeedsContext(t *testing.T) {
	userID := uuid.New()
	token, accessID := mintTestToken(t, userID)

	var capturedUser, capturedAccess string
	handler := Auth(testJWT, stubSessionVerifier{ok: true}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedUser = UserIDFromContext(r.Context())
		capturedAccess = AccessIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, userID.String(), capturedUser)
	assert.Equal(t, accessID, capturedAccess)
}

func TestOptionalAuthPassesAnonymous(t *testing.T) {
	var capturedUser string
	called := false
	handler := OptionalAuth(testJWT, stubSessionVerifier{ok: true}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		capturedUser = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, called)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, capturedUser)

	bad := httptest.NewRequest(http.MethodGet, "/", nil)
	bad.Header.Set("Authorization", "Bearer nope")
	badResp := httptest.NewRecorder()
	handler.ServeHTTP(badResp, bad)
	assert.Equal(t, http.StatusUnauthorized, badResp.Code, "a bad token is rejected even on optional routes")
}

func TestContextAccessorsOnEmptyContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, UserIDFromContext(ctx))
	assert.Empty(t, AccessIDFromContext(ctx))
	assert.Empty(t, CartSessionFromContext(ctx))
	assert.Nil(t, CartStoreFromContext(ctx))

	ctx = WithCartStore(WithUserID(ctx, "u-1"), "cs-1", nil)
	assert.Equal(t, "u-1", UserIDFromContext(ctx))
	assert.Equal(t, "cs-1", CartSessionFromContext(ctx))
}

func mintTestToken(t *testing.T, userID uuid.UUID) (string, string) {
	t.Helper()
	accessID := session.NewAccessID()
	token, err := auth.MintAccessToken(testJWT, time.Now(), auth.AccessTokenPayload{
		UserID: userID,
		JTI:    accessID,
	})
	require.NoError(t, err)
	return token, accessID
}

type stubSessionVerifier struct {
	ok  bool
	err error
}

func (s stubSessionVerifier) HasSession(ctx context.Context, accessID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.ok, nil
}
