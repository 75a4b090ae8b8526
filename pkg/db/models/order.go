package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/reddragons/storefront-backend/pkg/types"
)

// Order is written once per captured payment and never updated.
type Order struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        *uuid.UUID       `gorm:"column:user_id;type:uuid"`
	Items         types.OrderItems `gorm:"column:items;type:jsonb;not null"`
	Subtotal      decimal.Decimal  `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Shipping      decimal.Decimal  `gorm:"column:shipping;type:numeric(12,2);not null"`
	Total         decimal.Decimal  `gorm:"column:total;type:numeric(12,2);not null"`
	Currency      string           `gorm:"column:currency;not null"`
	PayPalOrderID string           `gorm:"column:paypal_order_id;not null;uniqueIndex"`
	PayPalDetails types.JSONMap    `gorm:"column:paypal_details;type:jsonb"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (Order) TableName() string {
	return "orders"
}
