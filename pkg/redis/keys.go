package redis

import "strings"

const defaultNamespace = "sf"

// Keyspace builds the namespaced keys every Redis consumer in the
// storefront uses. The zero value uses the "sf" namespace.
type Keyspace struct {
	namespace string
}

func NewKeyspace(namespace string) Keyspace {
	return Keyspace{namespace: strings.Trim(strings.TrimSpace(namespace), ":")}
}

// IdempotencyKey holds the stored response of a capture request.
func (k Keyspace) IdempotencyKey(scope, id string) string {
	return k.join("idempotency", scope, id)
}

// RateLimitKey holds a fixed-window auth throttle counter.
func (k Keyspace) RateLimitKey(scope string) string {
	return k.join("rate_limit", scope)
}

// AccessSessionKey maps an access token jti to its refresh token.
func (k Keyspace) AccessSessionKey(accessID string) string {
	return k.join("session", "access", accessID)
}

// CatalogProductKey caches one Printful sync product detail.
func (k Keyspace) CatalogProductKey(productID string) string {
	return k.join("catalog", "product", productID)
}

// CheckoutQuoteKey holds the pending quote for a PayPal order.
func (k Keyspace) CheckoutQuoteKey(paymentOrderID string) string {
	return k.join("checkout", "quote", paymentOrderID)
}

func (k Keyspace) LockKey(name string) string {
	return k.join("lock", name)
}

func (k Keyspace) join(parts ...string) string {
	ns := k.namespace
	if ns == "" {
		ns = defaultNamespace
	}
	out := make([]string, 0, len(parts)+1)
	out = append(out, ns)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return strings.Join(out, ":")
}
