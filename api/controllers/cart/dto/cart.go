package cartdto

import (
	"github.com/shopspring/decimal"
)

// AddItemRequest adds one unit to the cart. A catalog product is named by
// product_id (plus variant_id when it has variants); otherwise the item is
// given explicitly.
type AddItemRequest struct {
	ProductID string           `json:"product_id,omitempty" validate:"required_without=ID,max=64"`
	VariantID *int64           `json:"variant_id,omitempty" validate:"omitempty,gt=0"`
	ID        string           `json:"id,omitempty" validate:"required_without=ProductID,max=128"`
	Title     string           `json:"title,omitempty" validate:"omitempty,max=200"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Image     string           `json:"image,omitempty" validate:"omitempty,max=2048"`
}

type CartLine struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Price     string `json:"price"`
	Image     string `json:"image"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"line_total"`
}

// Cart is the cart view returned by every cart endpoint.
type Cart struct {
	SessionID         string     `json:"session_id"`
	Items             []CartLine `json:"items"`
	Subtotal          string     `json:"subtotal"`
	Count             int        `json:"count"`
	CheckoutAvailable bool       `json:"checkout_available"`
}
