package checkout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/reddragons/storefront-backend/api/middleware"
	"github.com/reddragons/storefront-backend/internal/cart"
	checkoutsvc "github.com/reddragons/storefront-backend/internal/checkout"
	pkgerrors "github.com/reddragons/storefront-backend/pkg/errors"
)

type stubOrchestrator struct {
	intent  *checkoutsvc.PaymentIntent
	receipt *checkoutsvc.Receipt
	err     error

	capturedID    string
	capturedStore checkoutsvc.CartStore
}

func (s *stubOrchestrator) CreatePayment(_ context.Context, store checkoutsvc.CartStore) (*checkoutsvc.PaymentIntent, error) {
	if s.err != nil {
		return nil, s.err
	}
	if !checkoutsvc.Available(store.Snapshot()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	return s.intent, nil
}

func (s *stubOrchestrator) Capture(ctx context.Context, store checkoutsvc.CartStore, id string) (*checkoutsvc.Receipt, error) {
	s.capturedID = id
	s.capturedStore = store
	if s.err != nil {
		return nil, s.err
	}
	store.Clear(ctx)
	return s.receipt, nil
}

func newRouter(svc orchestrator, store *cart.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithCartStore(req.Context(), uuid.NewString(), store)))
		})
	})
	r.Post("/api/v1/checkout", CheckoutCreate(svc, nil))
	r.Post("/api/v1/checkout/{paypalOrderID}/capture", CheckoutCapture(svc, nil))
	return r
}

func seededStore(t *testing.T) *cart.Store {
	t.Helper()
	store := cart.NewStore(nil, nil, nil)
	_, err := store.AddItem(context.Background(), cart.NewItem{ID: "4011", Title: "Hoodie / M", Price: decimal.RequireFromString("45.00")})
	require.NoError(t, err)
	return store
}

func totals(subtotal string) checkoutsvc.Totals {
	return checkoutsvc.ComputeTotals([]cart.Item{{ID: "4011", Price: decimal.RequireFromString(subtotal), Quantity: 1}}, decimal.RequireFromString("5.00"))
}

func TestCheckoutCreateReturnsApproveLink(t *testing.T) {
	svc := &stubOrchestrator{intent: &checkoutsvc.PaymentIntent{
		PayPalOrderID: "5O190127TN364715T",
		Status:        "CREATED",
		ApproveURL:    "https://www.sandbox.paypal.com/checkoutnow?token=5O190127TN364715T",
		Currency:      "USD",
		Totals:        totals("45.00"),
	}}

	resp := httptest.NewRecorder()
	newRouter(svc, seededStore(t)).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil))
	require.Equal(t, http.StatusCreated, resp.Code)

	var envelope struct {
		Data paymentResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Equal(t, "5O190127TN364715T", envelope.Data.PayPalOrderID)
	require.Equal(t, "45.00", envelope.Data.Subtotal)
	require.Equal(t, "5.00", envelope.Data.Shipping)
	require.Equal(t, "50.00", envelope.Data.Total)
}

func TestCheckoutCreateRejectsEmptyCart(t *testing.T) {
	resp := httptest.NewRecorder()
	newRouter(&stubOrchestrator{}, cart.NewStore(nil, nil, nil)).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil))
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCheckoutCaptureClearsCartAndReportsReceipt(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrchestrator{receipt: &checkoutsvc.Receipt{
		PayPalOrderID:     "5O190127TN364715T",
		Status:            "COMPLETED",
		CaptureID:         "3C679366HH908993F",
		OrderID:           &orderID,
		Items:             []cart.Item{{ID: "4011", Title: "Hoodie / M", Price: decimal.RequireFromString("45.00"), Quantity: 1}},
		Totals:            totals("45.00"),
		Currency:          "USD",
		Recorded:          true,
		FulfillmentQueued: true,
	}}
	store := seededStore(t)

	resp := httptest.NewRecorder()
	newRouter(svc, store).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/checkout/5O190127TN364715T/capture", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "5O190127TN364715T", svc.capturedID)
	require.Zero(t, store.Count())

	var envelope struct {
		Data receiptResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Equal(t, &orderID, envelope.Data.OrderID)
	require.True(t, envelope.Data.Recorded)
	require.Len(t, envelope.Data.Items, 1)
	require.Equal(t, "50.00", envelope.Data.Total)
}

func TestCheckoutCaptureFailureLeavesCart(t *testing.T) {
	svc := &stubOrchestrator{err: pkgerrors.New(pkgerrors.CodePayment, "payment was declined")}
	store := seededStore(t)

	resp := httptest.NewRecorder()
	newRouter(svc, store).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/checkout/5O190127TN364715T/capture", nil))
	require.Equal(t, http.StatusPaymentRequired, resp.Code)
	require.Equal(t, 1, store.Count())
}
