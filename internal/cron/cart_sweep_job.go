package cron

import (
	"context"
	"errors"

	"github.com/reddragons/storefront-backend/pkg/logger"
)

type sessionSweeper interface {
	Sweep(ctx context.Context) int
}

// CartSweepJob evicts idle in-memory cart sessions.
type CartSweepJob struct {
	sessions sessionSweeper
	logg     *logger.Logger
}

func NewCartSweepJob(sessions sessionSweeper, logg *logger.Logger) (*CartSweepJob, error) {
	if sessions == nil {
		return nil, errors.New("cart session registry required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &CartSweepJob{sessions: sessions, logg: logg}, nil
}

func (j *CartSweepJob) Name() string { return "cart-session-sweep" }

func (j *CartSweepJob) Run(ctx context.Context) error {
	removed := j.sessions.Sweep(ctx)
	j.logg.Debug(j.logg.WithField(ctx, "removed", removed), "cron.cart_sweep.done")
	return nil
}
