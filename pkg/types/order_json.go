package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderItem is a cart line frozen into an order record.
type OrderItem struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Image    string          `json:"image"`
	Quantity int             `json:"quantity"`
}

// OrderItems is the cart snapshot column. A nil slice is stored as [].
type OrderItems []OrderItem

func (o OrderItems) Value() (driver.Value, error) {
	if o == nil {
		return "[]", nil
	}
	return jsonValue([]OrderItem(o))
}

func (o *OrderItems) Scan(value any) error {
	items, err := scanJSON[[]OrderItem](value)
	if err != nil {
		return err
	}
	if items == nil {
		items = []OrderItem{}
	}
	*o = items
	return nil
}

// JSONMap holds the raw PayPal capture payload; NULL round-trips as nil.
type JSONMap map[string]any

func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return jsonValue(map[string]any(j))
}

func (j *JSONMap) Scan(value any) error {
	decoded, err := scanJSON[map[string]any](value)
	if err != nil {
		return err
	}
	*j = decoded
	return nil
}

func jsonValue(v any) (driver.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// scanJSON decodes a jsonb column, which drivers hand back as text or bytes.
func scanJSON[T any](value any) (T, error) {
	var out T
	var raw []byte
	switch v := value.(type) {
	case nil:
		return out, nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return out, fmt.Errorf("unsupported scan type %T", value)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}
