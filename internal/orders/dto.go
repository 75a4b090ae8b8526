package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/reddragons/storefront-backend/pkg/db/models"
	"github.com/reddragons/storefront-backend/pkg/types"
)

const defaultStatus = "Paid"

// Summary is an order as shown in the shopper's order history.
type Summary struct {
	ID        uuid.UUID         `json:"id"`
	Reference string            `json:"reference"`
	Status    string            `json:"status"`
	Items     []types.OrderItem `json:"items"`
	Subtotal  string            `json:"subtotal"`
	Shipping  string            `json:"shipping"`
	Total     string            `json:"total"`
	Currency  string            `json:"currency"`
	CreatedAt time.Time         `json:"created_at"`
}

type HistoryPage struct {
	Orders     []Summary `json:"orders"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

func NewSummary(order models.Order) Summary {
	items := []types.OrderItem(order.Items)
	if items == nil {
		items = []types.OrderItem{}
	}
	return Summary{
		ID:        order.ID,
		Reference: Reference(order),
		Status:    DeriveStatus(order.PayPalDetails),
		Items:     items,
		Subtotal:  order.Subtotal.StringFixed(2),
		Shipping:  order.Shipping.StringFixed(2),
		Total:     order.Total.StringFixed(2),
		Currency:  order.Currency,
		CreatedAt: order.CreatedAt,
	}
}

// Reference is the PayPal order id, falling back to the record id.
func Reference(order models.Order) string {
	if order.PayPalOrderID != "" {
		return order.PayPalOrderID
	}
	return order.ID.String()
}

// DeriveStatus reads the order status from the stored capture payload:
// the top-level status, then the first capture's status, then "Paid".
func DeriveStatus(details map[string]any) string {
	if status, ok := details["status"].(string); ok && status != "" {
		return status
	}
	units, _ := details["purchase_units"].([]any)
	if len(units) > 0 {
		unit, _ := units[0].(map[string]any)
		payments, _ := unit["payments"].(map[string]any)
		captures, _ := payments["captures"].([]any)
		if len(captures) > 0 {
			capture, _ := captures[0].(map[string]any)
			if status, ok := capture["status"].(string); ok && status != "" {
				return status
			}
		}
	}
	return defaultStatus
}
