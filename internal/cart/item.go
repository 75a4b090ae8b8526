package cart

import (
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/reddragons/storefront-backend/pkg/errors"
)

// Item is one cart line. ID is unique within a cart: a fulfillment variant
// id for catalog products, the title for fixed demo products.
type Item struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Image    string          `json:"image"`
	Quantity int             `json:"quantity"`
}

// LineTotal is Price × Quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// NewItem is what a shopper adds. Quantity is owned by the store.
type NewItem struct {
	ID    string
	Title string
	Price decimal.Decimal
	Image string
}

func (n NewItem) normalize() (NewItem, error) {
	n.ID = strings.TrimSpace(n.ID)
	n.Title = strings.TrimSpace(n.Title)
	if n.ID == "" {
		return n, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	if n.Price.IsNegative() {
		return n, pkgerrors.New(pkgerrors.CodeValidation, "item price must not be negative")
	}
	// stored documents keep prices as numbers; cents survive that exactly
	if !n.Price.Equal(n.Price.Round(2)) {
		return n, pkgerrors.New(pkgerrors.CodeValidation, "item price must have at most two decimal places")
	}
	return n, nil
}

// Subtotal sums Price × Quantity over items.
func Subtotal(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// Count sums quantities; this is the number shown on the cart badge.
func Count(items []Item) int {
	n := 0
	for _, item := range items {
		n += item.Quantity
	}
	return n
}

func cloneItems(items []Item) []Item {
	if len(items) == 0 {
		return []Item{}
	}
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
