package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/reddragons/storefront-backend/internal/cart"
)

// ErrQuoteNotFound is returned when no pending quote exists for an order.
var ErrQuoteNotFound = errors.New("pending quote not found")

// PendingQuote freezes the cart and amounts sent to the payment provider so
// capture records exactly what was approved.
type PendingQuote struct {
	Items     []cart.Item     `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Shipping  decimal.Decimal `json:"shipping"`
	Total     decimal.Decimal `json:"total"`
	Currency  string          `json:"currency"`
	UserID    string          `json:"user_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func (q PendingQuote) Totals() Totals {
	return Totals{Subtotal: q.Subtotal, Shipping: q.Shipping, Total: q.Total}
}

// QuoteStore keeps pending quotes between payment creation and capture.
type QuoteStore interface {
	Save(ctx context.Context, paypalOrderID string, quote PendingQuote) error
	// Take returns and removes the quote.
	Take(ctx context.Context, paypalOrderID string) (*PendingQuote, error)
}

type quoteBackend interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	CheckoutQuoteKey(paymentOrderID string) string
}

// RedisQuoteStore stores quotes as JSON with a TTL.
type RedisQuoteStore struct {
	client quoteBackend
	ttl    time.Duration
}

func NewRedisQuoteStore(client quoteBackend, ttl time.Duration) *RedisQuoteStore {
	if ttl <= 0 {
		ttl = 3 * time.Hour
	}
	return &RedisQuoteStore{client: client, ttl: ttl}
}

func (s *RedisQuoteStore) Save(ctx context.Context, paypalOrderID string, quote PendingQuote) error {
	payload, err := json.Marshal(quote)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.client.CheckoutQuoteKey(paypalOrderID), payload, s.ttl)
}

func (s *RedisQuoteStore) Take(ctx context.Context, paypalOrderID string) (*PendingQuote, error) {
	key := s.client.CheckoutQuoteKey(paypalOrderID)
	raw, err := s.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrQuoteNotFound
		}
		return nil, err
	}
	var quote PendingQuote
	if err := json.Unmarshal([]byte(raw), &quote); err != nil {
		return nil, err
	}
	// a leftover key only costs memory until its TTL
	_ = s.client.Del(ctx, key)
	return &quote, nil
}
