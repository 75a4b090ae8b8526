package checkout

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/reddragons/storefront-backend/api/middleware"
	"github.com/reddragons/storefront-backend/api/responses"
	"github.com/reddragons/storefront-backend/api/validators"
	"github.com/reddragons/storefront-backend/internal/cart"
	checkoutsvc "github.com/reddragons/storefront-backend/internal/checkout"
	pkgerrors "github.com/reddragons/storefront-backend/pkg/errors"
	"github.com/reddragons/storefront-backend/pkg/logger"
)

type orchestrator interface {
	CreatePayment(ctx context.Context, store checkoutsvc.CartStore) (*checkoutsvc.PaymentIntent, error)
	Capture(ctx context.Context, store checkoutsvc.CartStore, paypalOrderID string) (*checkoutsvc.Receipt, error)
}

type paymentResponse struct {
	PayPalOrderID string `json:"paypal_order_id"`
	Status        string `json:"status"`
	ApproveURL    string `json:"approve_url,omitempty"`
	Currency      string `json:"currency"`
	Subtotal      string `json:"subtotal"`
	Shipping      string `json:"shipping"`
	Total         string `json:"total"`
}

type receiptLine struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
}

type receiptResponse struct {
	PayPalOrderID     string        `json:"paypal_order_id"`
	Status            string        `json:"status"`
	CaptureID         string        `json:"capture_id,omitempty"`
	OrderID           *uuid.UUID    `json:"order_id,omitempty"`
	Items             []receiptLine `json:"items"`
	Currency          string        `json:"currency"`
	Subtotal          string        `json:"subtotal"`
	Shipping          string        `json:"shipping"`
	Total             string        `json:"total"`
	Recorded          bool          `json:"recorded"`
	FulfillmentQueued bool          `json:"fulfillment_queued"`
}

// CheckoutCreate opens a PayPal order for the session cart. The shopper
// approves it on PayPal and comes back to capture.
func CheckoutCreate(svc orchestrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}
		store, err := storeFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		intent, err := svc.CreatePayment(r.Context(), store)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, paymentResponse{
			PayPalOrderID: intent.PayPalOrderID,
			Status:        intent.Status,
			ApproveURL:    intent.ApproveURL,
			Currency:      intent.Currency,
			Subtotal:      intent.Totals.Subtotal.StringFixed(2),
			Shipping:      intent.Totals.Shipping.StringFixed(2),
			Total:         intent.Totals.Total.StringFixed(2),
		})
	}
}

// CheckoutCapture captures an approved PayPal order. Once the capture
// succeeds the response is 200 even when recording or fulfillment failed;
// the receipt flags say which.
func CheckoutCapture(svc orchestrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}
		store, err := storeFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paypalOrderID, err := validators.PathParam(r, "paypalOrderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		receipt, err := svc.Capture(r.Context(), store, paypalOrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newReceipt(receipt))
	}
}

func storeFromContext(r *http.Request) (*cart.Store, error) {
	store := middleware.CartStoreFromContext(r.Context())
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart session missing")
	}
	return store, nil
}

func newReceipt(receipt *checkoutsvc.Receipt) receiptResponse {
	lines := make([]receiptLine, 0, len(receipt.Items))
	for _, item := range receipt.Items {
		lines = append(lines, receiptLine{
			ID:       item.ID,
			Title:    item.Title,
			Price:    item.Price.StringFixed(2),
			Quantity: item.Quantity,
		})
	}
	return receiptResponse{
		PayPalOrderID:     receipt.PayPalOrderID,
		Status:            receipt.Status,
		CaptureID:         receipt.CaptureID,
		OrderID:           receipt.OrderID,
		Items:             lines,
		Currency:          receipt.Currency,
		Subtotal:          receipt.Totals.Subtotal.StringFixed(2),
		Shipping:          receipt.Totals.Shipping.StringFixed(2),
		Total:             receipt.Totals.Total.StringFixed(2),
		Recorded:          receipt.Recorded,
		FulfillmentQueued: receipt.FulfillmentQueued,
	}
}
