package checkout

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/reddragons/storefront-backend/internal/cart"
	"github.com/reddragons/storefront-backend/internal/orders"
	"github.com/reddragons/storefront-backend/pkg/db/models"
	pkgerrors "github.com/reddragons/storefront-backend/pkg/errors"
	"github.com/reddragons/storefront-backend/pkg/logger"
	"github.com/reddragons/storefront-backend/pkg/metrics"
	"github.com/reddragons/storefront-backend/pkg/paypal"
	"github.com/reddragons/storefront-backend/pkg/printful"
	"github.com/reddragons/storefront-backend/pkg/tasks"
)

type stubPayments struct {
	createInput paypal.CreateOrderInput
	createErr   error
	captureErr  error
	captured    []string
}

func (s *stubPayments) CreateOrder(_ context.Context, in paypal.CreateOrderInput) (*paypal.CreatedOrder, error) {
	s.createInput = in
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &paypal.CreatedOrder{ID: "PAY-1", Status: "CREATED", ApproveURL: "https://paypal.test/approve"}, nil
}

func (s *stubPayments) CaptureOrder(_ context.Context, id string) (*paypal.Capture, error) {
	if s.captureErr != nil {
		return nil, s.captureErr
	}
	s.captured = append(s.captured, id)
	return &paypal.Capture{
		OrderID:   id,
		Status:    "COMPLETED",
		CaptureID: "CAP-1",
		Payer:     paypal.Name{GivenName: "Ada", Surname: "Lovelace"},
		Address: paypal.Address{
			AddressLine1: "1 Dragon Way",
			AdminArea2:   "Fort Bragg",
			AdminArea1:   "NC",
			PostalCode:   "28310",
			CountryCode:  "US",
		},
		Raw: map[string]any{"id": id, "status": "COMPLETED"},
	}, nil
}

type stubFulfillment struct {
	mu       sync.Mutex
	requests []printful.OrderRequest
	err      error
}

func (s *stubFulfillment) CreateOrder(_ context.Context, req printful.OrderRequest) (*printful.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return &printful.Order{ID: 77, ExternalID: req.ExternalID}, nil
}

type stubRecorder struct {
	inputs []orders.RecordInput
	err    error
}

func (s *stubRecorder) Record(_ context.Context, in orders.RecordInput) (*models.Order, error) {
	s.inputs = append(s.inputs, in)
	if s.err != nil {
		return nil, s.err
	}
	return &models.Order{ID: uuid.New(), PayPalOrderID: in.PayPalOrderID}, nil
}

type memoryQuotes struct {
	quotes map[string]PendingQuote
}

func (m *memoryQuotes) Save(_ context.Context, id string, q PendingQuote) error {
	m.quotes[id] = q
	return nil
}

func (m *memoryQuotes) Take(_ context.Context, id string) (*PendingQuote, error) {
	q, ok := m.quotes[id]
	if !ok {
		return nil, ErrQuoteNotFound
	}
	delete(m.quotes, id)
	return &q, nil
}

type syncRunner struct {
	errs []error
}

func (r *syncRunner) Go(ctx context.Context, _ string, fn tasks.Func) {
	r.errs = append(r.errs, fn(ctx))
}

type fixture struct {
	orch        *Orchestrator
	payments    *stubPayments
	fulfillment *stubFulfillment
	recorder    *stubRecorder
	quotes      *memoryQuotes
	runner      *syncRunner
	registry    *prometheus.Registry
	logs        *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		payments:    &stubPayments{},
		fulfillment: &stubFulfillment{},
		recorder:    &stubRecorder{},
		quotes:      &memoryQuotes{quotes: map[string]PendingQuote{}},
		runner:      &syncRunner{},
		registry:    prometheus.NewRegistry(),
		logs:        &bytes.Buffer{},
	}
	orch, err := NewOrchestrator(Params{
		Logger:      logger.New(logger.Options{ServiceName: "test", Output: f.logs}),
		Payments:    f.payments,
		Fulfillment: f.fulfillment,
		Orders:      f.recorder,
		Quotes:      f.quotes,
		Tasks:       f.runner,
		Metrics:     metrics.NewCheckoutMetrics(f.registry),
		ShippingFee: decimal.RequireFromString("5.00"),
		Currency:    "usd",
	})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	f.orch = orch
	return f
}

func (f *fixture) counter(t *testing.T, name string) float64 {
	t.Helper()
	mfs, err := f.registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name && len(mf.GetMetric()) > 0 {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func cartWith(t *testing.T, items ...cart.NewItem) *cart.Store {
	t.Helper()
	store := cart.NewStore(nil, nil, nil)
	for _, item := range items {
		if _, err := store.AddItem(context.Background(), item); err != nil {
			t.Fatalf("add item: %v", err)
		}
	}
	return store
}

func hoodieItem() cart.NewItem {
	return cart.NewItem{ID: "4011", Title: "Unisex Battalion Hoodie", Price: decimal.RequireFromString("45.00"), Image: "/hoodie.png"}
}

func TestCreatePaymentTotals(t *testing.T) {
	f := newFixture(t)
	store := cartWith(t, hoodieItem())

	intent, err := f.orch.CreatePayment(context.Background(), store)
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	in := f.payments.createInput
	if !in.ItemTotal.Equal(decimal.RequireFromString("45.00")) || !in.Shipping.Equal(decimal.RequireFromString("5.00")) {
		t.Fatalf("unexpected breakdown %s + %s", in.ItemTotal, in.Shipping)
	}
	if !in.Total().Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("expected total 50.00 got %s", in.Total())
	}
	if in.Currency != "USD" {
		t.Fatalf("expected USD got %s", in.Currency)
	}
	if intent.PayPalOrderID != "PAY-1" || !intent.Totals.Total.Equal(decimal.RequireFromString("50")) {
		t.Fatalf("unexpected intent %+v", intent)
	}
	if _, ok := f.quotes.quotes["PAY-1"]; !ok {
		t.Fatal("expected pending quote saved")
	}
	if store.Count() != 1 {
		t.Fatal("creating a payment must not touch the cart")
	}
}

func TestCreatePaymentRejectsEmptyCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.CreatePayment(context.Background(), cartWith(t))
	if err == nil {
		t.Fatal("expected error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.payments.createInput.Currency != "" {
		t.Fatal("payment provider must not be called for an empty cart")
	}
}

func TestCreatePaymentFailureLeavesCart(t *testing.T) {
	f := newFixture(t)
	f.payments.createErr = pkgerrors.New(pkgerrors.CodePayment, "declined")
	store := cartWith(t, hoodieItem())

	if _, err := f.orch.CreatePayment(context.Background(), store); err == nil {
		t.Fatal("expected error")
	}
	if store.Count() != 1 {
		t.Fatal("cart must be untouched")
	}
}

func TestCaptureHappyPath(t *testing.T) {
	f := newFixture(t)
	store := cartWith(t, hoodieItem(), hoodieItem())
	ctx := context.Background()
	if _, err := f.orch.CreatePayment(ctx, store); err != nil {
		t.Fatalf("create payment: %v", err)
	}

	receipt, err := f.orch.Capture(ctx, store, "PAY-1")
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if !receipt.Recorded || receipt.OrderID == nil || !receipt.FulfillmentQueued {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if !receipt.Totals.Total.Equal(decimal.RequireFromString("95.00")) {
		t.Fatalf("expected total 95 got %s", receipt.Totals.Total)
	}
	if store.Count() != 0 {
		t.Fatal("expected cart cleared")
	}

	rec := f.recorder.inputs[0]
	if rec.PayPalOrderID != "PAY-1" || rec.UserID != nil || len(rec.Items) != 1 || rec.Items[0].Quantity != 2 {
		t.Fatalf("unexpected record input %+v", rec)
	}

	req := f.fulfillment.requests[0]
	if req.ExternalID != "PAY-1" {
		t.Fatalf("unexpected external id %s", req.ExternalID)
	}
	if req.Shipping.Name != "Ada Lovelace" || req.Shipping.City != "Fort Bragg" || req.Shipping.StateCode != "NC" || req.Shipping.Zip != "28310" {
		t.Fatalf("unexpected shipping %+v", req.Shipping)
	}
	if len(req.Items) != 1 || req.Items[0].VariantID != 4011 || req.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items %+v", req.Items)
	}
	if f.counter(t, "storefront_payment_captures_total") != 1 {
		t.Fatal("expected capture counted")
	}
}

func TestCaptureFailureLeavesCartAndRecordsNothing(t *testing.T) {
	f := newFixture(t)
	f.payments.captureErr = pkgerrors.New(pkgerrors.CodePayment, "INSTRUMENT_DECLINED")
	store := cartWith(t, hoodieItem())

	if _, err := f.orch.Capture(context.Background(), store, "PAY-1"); err == nil {
		t.Fatal("expected error")
	}
	if store.Count() != 1 {
		t.Fatal("cart must be untouched")
	}
	if len(f.recorder.inputs) != 0 || len(f.fulfillment.requests) != 0 {
		t.Fatal("nothing may be recorded or dispatched after a failed capture")
	}
}

func TestCaptureRecordFailureStillDispatchesAndClears(t *testing.T) {
	f := newFixture(t)
	f.recorder.err = errors.New("database unavailable")
	store := cartWith(t, hoodieItem())

	receipt, err := f.orch.Capture(context.Background(), store, "PAY-1")
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if receipt.Recorded {
		t.Fatal("expected record failure reported on receipt")
	}
	if len(f.fulfillment.requests) != 1 {
		t.Fatal("expected fulfillment dispatch attempted")
	}
	if store.Count() != 0 {
		t.Fatal("expected cart cleared")
	}
	if f.counter(t, "storefront_order_record_failure_total") != 1 {
		t.Fatal("expected record failure counted")
	}
}

func TestCaptureDispatchFailureIsFlagged(t *testing.T) {
	f := newFixture(t)
	f.fulfillment.err = pkgerrors.New(pkgerrors.CodeUpstream, "Printful error")
	store := cartWith(t, hoodieItem())

	if _, err := f.orch.Capture(context.Background(), store, "PAY-7"); err != nil {
		t.Fatalf("capture must succeed, got %v", err)
	}
	if store.Count() != 0 {
		t.Fatal("expected cart cleared")
	}
	if f.counter(t, "storefront_fulfillment_dispatch_failure_total") != 1 {
		t.Fatal("expected dispatch failure counted")
	}
	logs := f.logs.String()
	if !strings.Contains(logs, "checkout.fulfillment.dispatch_failed") || !strings.Contains(logs, "PAY-7") {
		t.Fatalf("expected flagged log line, got %s", logs)
	}
	if len(f.fulfillment.requests) != 1 {
		t.Fatal("dispatch must not be retried")
	}
}

func TestCaptureUsesPendingQuoteOverCurrentCart(t *testing.T) {
	f := newFixture(t)
	store := cartWith(t, hoodieItem())
	ctx := context.Background()
	if _, err := f.orch.CreatePayment(ctx, store); err != nil {
		t.Fatalf("create payment: %v", err)
	}
	// cart changes while the shopper is on the approval page
	if _, err := store.AddItem(ctx, cart.NewItem{ID: "5000", Title: "Tank", Price: decimal.RequireFromString("20")}); err != nil {
		t.Fatalf("add: %v", err)
	}

	receipt, err := f.orch.Capture(ctx, store, "PAY-1")
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if len(receipt.Items) != 1 || !receipt.Totals.Total.Equal(decimal.RequireFromString("50")) {
		t.Fatalf("expected approved quote, got %+v", receipt)
	}
}

func TestCaptureFromAnotherUsersSessionKeepsThatCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payer := cartWith(t, hoodieItem())
	payer.Authenticate(ctx, "user-1")
	if _, err := f.orch.CreatePayment(ctx, payer); err != nil {
		t.Fatalf("create payment: %v", err)
	}

	other := cartWith(t, cart.NewItem{ID: "5000", Title: "Tank", Price: decimal.RequireFromString("20")})
	other.Authenticate(ctx, "user-2")

	receipt, err := f.orch.Capture(ctx, other, "PAY-1")
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if len(receipt.Items) != 1 || receipt.Items[0].ID != "4011" {
		t.Fatalf("expected the payer's quote, got %+v", receipt.Items)
	}
	if other.Count() != 1 {
		t.Fatal("a cart that did not pay must not be cleared")
	}
	if !strings.Contains(f.logs.String(), "checkout.capture.session_mismatch") {
		t.Fatalf("expected mismatch warning, logs: %s", f.logs.String())
	}
}

func TestCaptureSkipsNonVariantItems(t *testing.T) {
	f := newFixture(t)
	store := cartWith(t, cart.NewItem{ID: "Red Dragons Hat", Title: "Red Dragons Hat", Price: decimal.RequireFromString("20")})

	receipt, err := f.orch.Capture(context.Background(), store, "PAY-1")
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if receipt.FulfillmentQueued || len(f.fulfillment.requests) != 0 {
		t.Fatal("expected no dispatch for demo-only cart")
	}
	if store.Count() != 0 {
		t.Fatal("expected cart cleared")
	}
}

func TestAvailable(t *testing.T) {
	if Available(cart.Snapshot{}) {
		t.Fatal("empty cart must not offer checkout")
	}
	if !Available(cartWith(t, hoodieItem()).Snapshot()) {
		t.Fatal("non-empty cart should offer checkout")
	}
}
