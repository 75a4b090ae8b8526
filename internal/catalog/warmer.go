package catalog

import (
	"context"
	"fmt"

	"github.com/reddragons/storefront-backend/pkg/logger"
)

const warmJobName = "catalog-warm"

type refresher interface {
	Source
	Refresh(ctx context.Context, productID string) error
}

// Warmer is a cron job that re-primes the detail cache for every listed
// product so storefront requests rarely reach the fulfillment API.
type Warmer struct {
	source refresher
	logg   *logger.Logger
}

func NewWarmer(source refresher, logg *logger.Logger) (*Warmer, error) {
	if source == nil {
		return nil, fmt.Errorf("catalog source required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Warmer{source: source, logg: logg}, nil
}

func (w *Warmer) Name() string {
	return warmJobName
}

// Run refreshes each product once. Individual failures are logged; the run
// fails only when the listing does.
func (w *Warmer) Run(ctx context.Context) error {
	summaries, err := w.source.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}

	warmed, failed := 0, 0
	for _, s := range summaries {
		id := printfulID(s.ID)
		if err := w.source.Refresh(ctx, id); err != nil {
			failed++
			w.logg.Error(w.logg.WithField(ctx, "product_id", id), "catalog.warm.product_failed", err)
			continue
		}
		warmed++
	}

	ctx = w.logg.WithFields(ctx, map[string]any{
		"warmed": warmed,
		"failed": failed,
	})
	w.logg.Info(ctx, "catalog.warm.complete")
	return nil
}
