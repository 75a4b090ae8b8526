package cron

import (
	"context"
	"testing"

	"github.com/reddragons/storefront-backend/pkg/logger"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls   int
	removed int
}

func (c *countingSweeper) Sweep(context.Context) int {
	c.calls++
	return c.removed
}

func TestCartSweepJobRunsSweep(t *testing.T) {
	sweeper := &countingSweeper{removed: 3}
	job, err := NewCartSweepJob(sweeper, logger.New(logger.Options{ServiceName: "cron-test"}))
	require.NoError(t, err)
	require.Equal(t, "cart-session-sweep", job.Name())

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 1, sweeper.calls)
}

func TestNewCartSweepJobRequiresDeps(t *testing.T) {
	_, err := NewCartSweepJob(nil, logger.New(logger.Options{ServiceName: "cron-test"}))
	require.Error(t, err)
	_, err = NewCartSweepJob(&countingSweeper{}, nil)
	require.Error(t, err)
}
