package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/reddragons/storefront-backend/pkg/logger"
	"github.com/reddragons/storefront-backend/pkg/printful"
)

const defaultDetailTTL = 10 * time.Minute

var errCacheMiss = errors.New("catalog cache miss")

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CatalogProductKey(productID string) string
}

// CachedSource keeps product details in Redis in front of an upstream
// Source. Listings are always fetched upstream. Cache failures fall through
// to the upstream call and are only logged.
type CachedSource struct {
	upstream Source
	cache    cacheStore
	ttl      time.Duration
	logg     *logger.Logger
}

func NewCachedSource(upstream Source, cache cacheStore, ttl time.Duration, logg *logger.Logger) *CachedSource {
	if ttl <= 0 {
		ttl = defaultDetailTTL
	}
	return &CachedSource{upstream: upstream, cache: cache, ttl: ttl, logg: logg}
}

func (c *CachedSource) ListProducts(ctx context.Context) ([]printful.ProductSummary, error) {
	return c.upstream.ListProducts(ctx)
}

func (c *CachedSource) GetProduct(ctx context.Context, productID string) (*printful.ProductDetail, error) {
	detail, err := c.get(ctx, productID)
	if err == nil {
		return detail, nil
	}
	if !errors.Is(err, errCacheMiss) {
		c.warn(ctx, productID, "catalog.cache.read_failed", err)
	}

	detail, err = c.upstream.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := c.set(ctx, productID, detail); err != nil {
		c.warn(ctx, productID, "catalog.cache.write_failed", err)
	}
	return detail, nil
}

// Refresh fetches upstream and overwrites the cached entry.
func (c *CachedSource) Refresh(ctx context.Context, productID string) error {
	detail, err := c.upstream.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	return c.set(ctx, productID, detail)
}

func (c *CachedSource) get(ctx context.Context, productID string) (*printful.ProductDetail, error) {
	if c.cache == nil {
		return nil, errCacheMiss
	}
	raw, err := c.cache.Get(ctx, c.cache.CatalogProductKey(productID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errCacheMiss
		}
		return nil, err
	}
	var detail printful.ProductDetail
	if err := json.Unmarshal([]byte(raw), &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *CachedSource) set(ctx context.Context, productID string, detail *printful.ProductDetail) error {
	if c.cache == nil {
		return nil
	}
	payload, err := json.Marshal(detail)
	if err != nil {
		return err
	}
	return c.cache.Set(ctx, c.cache.CatalogProductKey(productID), payload, c.ttl)
}

func (c *CachedSource) warn(ctx context.Context, productID, msg string, err error) {
	if c.logg == nil {
		return
	}
	ctx = c.logg.WithFields(ctx, map[string]any{
		"product_id": productID,
		"error":      err.Error(),
	})
	c.logg.Warn(ctx, msg)
}
