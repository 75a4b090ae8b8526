package middleware

import (
	"context"

	"github.com/reddragons/storefront-backend/internal/cart"
)

type contextKey int

const (
	ctxUserID contextKey = iota
	ctxAccessID
	ctxCartSession
	ctxCartStore
)

func fromContext[T any](ctx context.Context, key contextKey) T {
	var zero T
	if ctx == nil {
		return zero
	}
	if v, ok := ctx.Value(key).(T); ok {
		return v
	}
	return zero
}

func withValue(ctx context.Context, key contextKey, value any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

// UserIDFromContext returns the signed-in user's id, or "" for guests.
func UserIDFromContext(ctx context.Context) string {
	return fromContext[string](ctx, ctxUserID)
}

// AccessIDFromContext returns the jti of the verified access token.
func AccessIDFromContext(ctx context.Context) string {
	return fromContext[string](ctx, ctxAccessID)
}

func CartSessionFromContext(ctx context.Context) string {
	return fromContext[string](ctx, ctxCartSession)
}

// CartStoreFromContext returns the cart bound to the request's cart session.
func CartStoreFromContext(ctx context.Context) *cart.Store {
	return fromContext[*cart.Store](ctx, ctxCartStore)
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return withValue(ctx, ctxUserID, userID)
}

func WithAccessID(ctx context.Context, accessID string) context.Context {
	return withValue(ctx, ctxAccessID, accessID)
}

// WithCartStore attaches a cart session and its store for downstream handlers.
func WithCartStore(ctx context.Context, sessionID string, store *cart.Store) context.Context {
	return withValue(withValue(ctx, ctxCartSession, sessionID), ctxCartStore, store)
}
