package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
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
	"github.com/reddragons/storefront-backend/pkg/types"
)

const dispatchTaskName = "fulfillment-dispatch"

type paymentGateway interface {
	CreateOrder(ctx context.Context, in paypal.CreateOrderInput) (*paypal.CreatedOrder, error)
	CaptureOrder(ctx context.Context, orderID string) (*paypal.Capture, error)
}

type fulfillmentClient interface {
	CreateOrder(ctx context.Context, order printful.OrderRequest) (*printful.Order, error)
}

type orderRecorder interface {
	Record(ctx context.Context, input orders.RecordInput) (*models.Order, error)
}

type taskRunner interface {
	Go(ctx context.Context, name string, fn tasks.Func)
}

// CartStore is the part of a session cart checkout needs.
type CartStore interface {
	Snapshot() cart.Snapshot
	Clear(ctx context.Context) cart.Snapshot
}

// Params wires an Orchestrator.
type Params struct {
	Logger      *logger.Logger
	Payments    paymentGateway
	Fulfillment fulfillmentClient
	Orders      orderRecorder
	Quotes      QuoteStore
	Tasks       taskRunner
	Metrics     *metrics.CheckoutMetrics
	ShippingFee decimal.Decimal
	Currency    string
}

// Orchestrator runs payment creation and capture for a session cart.
// Capture is the commit point: once funds are captured, order recording and
// fulfillment dispatch are best effort and the cart is always cleared.
type Orchestrator struct {
	logg        *logger.Logger
	payments    paymentGateway
	fulfillment fulfillmentClient
	orders      orderRecorder
	quotes      QuoteStore
	tasks       taskRunner
	metrics     *metrics.CheckoutMetrics
	shippingFee decimal.Decimal
	currency    string
	now         func() time.Time
}

func NewOrchestrator(p Params) (*Orchestrator, error) {
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.Payments == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if p.Fulfillment == nil {
		return nil, fmt.Errorf("fulfillment client required")
	}
	if p.Orders == nil {
		return nil, fmt.Errorf("order recorder required")
	}
	if p.Tasks == nil {
		return nil, fmt.Errorf("task runner required")
	}
	if p.ShippingFee.IsNegative() {
		return nil, fmt.Errorf("shipping fee must not be negative")
	}
	currency := strings.ToUpper(strings.TrimSpace(p.Currency))
	if currency == "" {
		currency = "USD"
	}
	return &Orchestrator{
		logg:        p.Logger,
		payments:    p.Payments,
		fulfillment: p.Fulfillment,
		orders:      p.Orders,
		quotes:      p.Quotes,
		tasks:       p.Tasks,
		metrics:     p.Metrics,
		shippingFee: p.ShippingFee,
		currency:    currency,
		now:         time.Now,
	}, nil
}

// ShippingFee is the flat fee added to every order.
func (o *Orchestrator) ShippingFee() decimal.Decimal {
	return o.shippingFee
}

// Available reports whether checkout may be offered for snap.
func Available(snap cart.Snapshot) bool {
	return !snap.Empty()
}

// PaymentIntent is a created, not yet approved, payment.
type PaymentIntent struct {
	PayPalOrderID string
	Status        string
	ApproveURL    string
	Currency      string
	Totals        Totals
}

// CreatePayment asks the payment provider for an order covering the cart
// plus shipping. Nothing is charged and the cart is not touched.
func (o *Orchestrator) CreatePayment(ctx context.Context, store CartStore) (*PaymentIntent, error) {
	snap := store.Snapshot()
	if !Available(snap) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	totals := ComputeTotals(snap.Items, o.shippingFee)
	created, err := o.payments.CreateOrder(ctx, paypal.CreateOrderInput{
		Currency:  o.currency,
		ItemTotal: totals.Subtotal,
		Shipping:  totals.Shipping,
	})
	if err != nil {
		o.logg.Error(ctx, "checkout.payment.create_failed", err)
		return nil, err
	}

	ctx = o.logg.WithField(ctx, "paypal_order_id", created.ID)
	if o.quotes != nil {
		userID, _ := snap.Session.UserID()
		quote := PendingQuote{
			Items:     snap.Items,
			Subtotal:  totals.Subtotal,
			Shipping:  totals.Shipping,
			Total:     totals.Total,
			Currency:  o.currency,
			UserID:    userID,
			CreatedAt: o.now().UTC(),
		}
		if err := o.quotes.Save(ctx, created.ID, quote); err != nil {
			o.logg.Error(ctx, "checkout.quote.save_failed", err)
		}
	}
	o.logg.Info(ctx, "checkout.payment.created")

	return &PaymentIntent{
		PayPalOrderID: created.ID,
		Status:        created.Status,
		ApproveURL:    created.ApproveURL,
		Currency:      o.currency,
		Totals:        totals,
	}, nil
}

// Receipt describes a completed checkout.
type Receipt struct {
	PayPalOrderID     string
	Status            string
	CaptureID         string
	OrderID           *uuid.UUID
	Items             []cart.Item
	Totals            Totals
	Currency          string
	Recorded          bool
	FulfillmentQueued bool
}

// Capture captures an approved payment. A capture failure is returned and
// leaves the cart untouched. After a successful capture the order is
// recorded, fulfillment is dispatched in the background, and the cart is
// cleared when it belongs to the payer. Record and dispatch failures are
// logged and counted but never returned.
func (o *Orchestrator) Capture(ctx context.Context, store CartStore, paypalOrderID string) (*Receipt, error) {
	paypalOrderID = strings.TrimSpace(paypalOrderID)
	if paypalOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paypal order id is required")
	}
	ctx = o.logg.WithField(ctx, "paypal_order_id", paypalOrderID)

	capture, err := o.payments.CaptureOrder(ctx, paypalOrderID)
	if err != nil {
		o.logg.Error(ctx, "checkout.payment.capture_failed", err)
		return nil, err
	}
	o.metrics.IncCapture()

	quote := o.resolveQuote(ctx, store, paypalOrderID)
	receipt := &Receipt{
		PayPalOrderID: paypalOrderID,
		Status:        capture.Status,
		CaptureID:     capture.CaptureID,
		Items:         quote.Items,
		Totals:        quote.Totals(),
		Currency:      quote.Currency,
	}

	if order, err := o.record(ctx, capture, quote); err != nil {
		o.metrics.IncRecordFailure()
		o.logg.Error(ctx, "checkout.order_record.failed", err)
	} else {
		receipt.Recorded = true
		receipt.OrderID = &order.ID
	}

	receipt.FulfillmentQueued = o.dispatch(ctx, capture, quote.Items)

	if o.payerSession(ctx, store, quote) {
		store.Clear(ctx)
	}
	o.logg.Info(o.logg.WithField(ctx, "recorded", receipt.Recorded), "checkout.capture.complete")
	return receipt, nil
}

// payerSession reports whether store belongs to the user the quote was
// created for. Guest quotes match any session. A mismatched cart is left
// alone; the payer's own cart cannot be reached from here.
func (o *Orchestrator) payerSession(ctx context.Context, store CartStore, quote PendingQuote) bool {
	if quote.UserID == "" {
		return true
	}
	caller, _ := store.Snapshot().Session.UserID()
	if caller == quote.UserID {
		return true
	}
	o.logg.Warn(o.logg.WithFields(ctx, map[string]any{
		"quote_user_id":   quote.UserID,
		"session_user_id": caller,
	}), "checkout.capture.session_mismatch")
	return false
}

func (o *Orchestrator) resolveQuote(ctx context.Context, store CartStore, paypalOrderID string) PendingQuote {
	if o.quotes != nil {
		quote, err := o.quotes.Take(ctx, paypalOrderID)
		if err == nil {
			return *quote
		}
		if !errors.Is(err, ErrQuoteNotFound) {
			o.logg.Error(ctx, "checkout.quote.load_failed", err)
		} else {
			o.logg.Warn(ctx, "checkout.quote.missing")
		}
	}

	snap := store.Snapshot()
	totals := ComputeTotals(snap.Items, o.shippingFee)
	userID, _ := snap.Session.UserID()
	return PendingQuote{
		Items:    snap.Items,
		Subtotal: totals.Subtotal,
		Shipping: totals.Shipping,
		Total:    totals.Total,
		Currency: o.currency,
		UserID:   userID,
	}
}

func (o *Orchestrator) record(ctx context.Context, capture *paypal.Capture, quote PendingQuote) (*models.Order, error) {
	var userID *uuid.UUID
	if quote.UserID != "" {
		if parsed, err := uuid.Parse(quote.UserID); err == nil {
			userID = &parsed
		}
	}

	items := make([]types.OrderItem, 0, len(quote.Items))
	for _, item := range quote.Items {
		items = append(items, types.OrderItem{
			ID:       item.ID,
			Title:    item.Title,
			Price:    item.Price,
			Image:    item.Image,
			Quantity: item.Quantity,
		})
	}

	return o.orders.Record(ctx, orders.RecordInput{
		UserID:        userID,
		Items:         items,
		Subtotal:      quote.Subtotal,
		Shipping:      quote.Shipping,
		Total:         quote.Total,
		Currency:      quote.Currency,
		PayPalOrderID: capture.OrderID,
		PayPalDetails: capture.Raw,
	})
}

// dispatch queues the fulfillment order. It is never retried: a failure
// leaves a paid order without a fulfillment order, which is logged and
// counted for manual reconciliation.
func (o *Orchestrator) dispatch(ctx context.Context, capture *paypal.Capture, items []cart.Item) bool {
	req, skipped := BuildFulfillmentOrder(capture, items)
	if len(skipped) > 0 {
		o.logg.Warn(o.logg.WithField(ctx, "skipped_items", skipped), "checkout.fulfillment.items_skipped")
	}
	if len(req.Items) == 0 {
		o.logg.Warn(ctx, "checkout.fulfillment.nothing_to_dispatch")
		return false
	}

	o.tasks.Go(ctx, dispatchTaskName, func(taskCtx context.Context) error {
		order, err := o.fulfillment.CreateOrder(taskCtx, req)
		if err != nil {
			o.metrics.IncDispatchFailure()
			o.logg.Error(taskCtx, "checkout.fulfillment.dispatch_failed", err)
			return err
		}
		o.logg.Info(o.logg.WithField(taskCtx, "fulfillment_order_id", order.ID), "checkout.fulfillment.dispatched")
		return nil
	})
	return true
}
