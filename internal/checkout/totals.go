package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/reddragons/storefront-backend/internal/cart"
)

// Totals is what the shopper is charged.
type Totals struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals returns subtotal = Σ price×quantity and total = subtotal +
// shipping.
func ComputeTotals(items []cart.Item, shipping decimal.Decimal) Totals {
	subtotal := cart.Subtotal(items)
	return Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Total:    subtotal.Add(shipping),
	}
}
