package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/reddragons/storefront-backend/api/middleware"
	"github.com/reddragons/storefront-backend/internal/auth"
	"github.com/reddragons/storefront-backend/internal/cart"
	"github.com/reddragons/storefront-backend/internal/users"
	pkgAuth "github.com/reddragons/storefront-backend/pkg/auth"
	"github.com/reddragons/storefront-backend/pkg/config"
	pkgerrors "github.com/reddragons/storefront-backend/pkg/errors"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 10}

type stubAuthService struct {
	resp *auth.TokenResponse
	user *users.Profile
	err  error

	lastRegister     auth.RegisterRequest
	lastLogin        auth.LoginRequest
	lastAccessToken  string
	lastRefreshToken string
	lastLogout       string
	lastMe           uuid.UUID
}

func (s *stubAuthService) Register(_ context.Context, req auth.RegisterRequest) (*auth.TokenResponse, error) {
	s.lastRegister = req
	return s.resp, s.err
}

func (s *stubAuthService) Login(_ context.Context, req auth.LoginRequest) (*auth.TokenResponse, error) {
	s.lastLogin = req
	return s.resp, s.err
}

func (s *stubAuthService) Refresh(_ context.Context, accessToken, refreshToken string) (*auth.TokenResponse, error) {
	s.lastAccessToken = accessToken
	s.lastRefreshToken = refreshToken
	return s.resp, s.err
}

func (s *stubAuthService) Logout(_ context.Context, accessID string) error {
	s.lastLogout = accessID
	return s.err
}

func (s *stubAuthService) Me(_ context.Context, userID uuid.UUID) (*users.Profile, error) {
	s.lastMe = userID
	return s.user, s.err
}

func tokens() *auth.TokenResponse {
	return &auth.TokenResponse{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		User:         &users.Profile{ID: uuid.New(), Email: "shopper@example.com"},
	}
}

func post(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRegisterReturnsCreatedWithToken(t *testing.T) {
	svc := &stubAuthService{resp: tokens()}
	resp := httptest.NewRecorder()
	Register(svc, nil).ServeHTTP(resp, post("/api/v1/auth/register", `{"email":"shopper@example.com","password":"long-enough"}`))

	require.Equal(t, http.StatusCreated, resp.Code)
	require.Equal(t, "access-token", resp.Header().Get(TokenHeader))
	require.Equal(t, "shopper@example.com", svc.lastRegister.Email)

	var envelope struct {
		Data auth.TokenResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Equal(t, "refresh-token", envelope.Data.RefreshToken)
}

func TestRegisterValidatesBody(t *testing.T) {
	svc := &stubAuthService{resp: tokens()}
	resp := httptest.NewRecorder()
	Register(svc, nil).ServeHTTP(resp, post("/api/v1/auth/register", `{"email":"not-an-email","password":"short"}`))

	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Empty(t, svc.lastRegister.Email)
}

func TestRegisterConflict(t *testing.T) {
	svc := &stubAuthService{err: pkgerrors.New(pkgerrors.CodeConflict, "email already registered")}
	resp := httptest.NewRecorder()
	Register(svc, nil).ServeHTTP(resp, post("/api/v1/auth/register", `{"email":"shopper@example.com","password":"long-enough"}`))

	require.Equal(t, http.StatusConflict, resp.Code)
}

func TestLoginUnauthorized(t *testing.T) {
	svc := &stubAuthService{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")}
	resp := httptest.NewRecorder()
	Login(svc, nil).ServeHTTP(resp, post("/api/v1/auth/login", `{"email":"shopper@example.com","password":"wrong"}`))

	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.Empty(t, resp.Header().Get(TokenHeader))
}

func TestLoginSuccess(t *testing.T) {
	svc := &stubAuthService{resp: tokens()}
	resp := httptest.NewRecorder()
	Login(svc, nil).ServeHTTP(resp, post("/api/v1/auth/login", `{"email":"shopper@example.com","password":"long-enough"}`))

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "access-token", resp.Header().Get(TokenHeader))
}

func TestRefreshPassesBearerAndBody(t *testing.T) {
	svc := &stubAuthService{resp: tokens()}
	req := post("/api/v1/auth/refresh", `{"refresh_token":"old-refresh"}`)
	req.Header.Set("Authorization", "Bearer stale-access")
	resp := httptest.NewRecorder()
	Refresh(svc, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "stale-access", svc.lastAccessToken)
	require.Equal(t, "old-refresh", svc.lastRefreshToken)
}

func TestRefreshRequiresBearer(t *testing.T) {
	svc := &stubAuthService{resp: tokens()}
	resp := httptest.NewRecorder()
	Refresh(svc, nil).ServeHTTP(resp, post("/api/v1/auth/refresh", `{"refresh_token":"old-refresh"}`))

	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestLogoutRevokesAndSignsCartOut(t *testing.T) {
	accessID := uuid.NewString()
	token, err := pkgAuth.MintAccessToken(testJWT, time.Now().Add(-time.Hour), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		JTI:    accessID,
	})
	require.NoError(t, err)

	store := cart.NewStore(nil, nil, nil)
	store.Authenticate(context.Background(), "user-1")
	_, err = store.AddItem(context.Background(), cart.NewItem{ID: "4011", Title: "Hoodie", Price: decimal.RequireFromString("45.00")})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req = req.WithContext(middleware.WithCartStore(req.Context(), uuid.NewString(), store))

	svc := &stubAuthService{}
	resp := httptest.NewRecorder()
	Logout(svc, testJWT, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, accessID, svc.lastLogout, "expired tokens still identify the session")
	require.True(t, store.Session().IsGuest())
	require.Zero(t, store.Count())
}

func TestLogoutRejectsForgedToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp := httptest.NewRecorder()
	svc := &stubAuthService{}
	Logout(svc, testJWT, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.Empty(t, svc.lastLogout)
}

func TestMeUsesContextUser(t *testing.T) {
	userID := uuid.New()
	svc := &stubAuthService{user: &users.Profile{ID: userID, Email: "shopper@example.com"}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	resp := httptest.NewRecorder()
	Me(svc, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, userID, svc.lastMe)
}

func TestMeWithoutUser(t *testing.T) {
	resp := httptest.NewRecorder()
	Me(&stubAuthService{}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))

	require.Equal(t, http.StatusUnauthorized, resp.Code)
}
