// Package cron runs the storefront's periodic housekeeping: warming the
// Printful catalog cache and sweeping idle cart sessions.
package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/reddragons/storefront-backend/pkg/logger"
	"github.com/reddragons/storefront-backend/pkg/metrics"
)

const defaultInterval = time.Hour

// Job is one unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger   *logger.Logger
	Jobs     []Job
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs every job once per interval, starting immediately. A cycle
// is skipped when another process holds the lock. Jobs in a cycle run
// concurrently and share a deadline of one interval, so a stuck upstream
// cannot stall the next cycle.
type Service struct {
	logg     *logger.Logger
	jobs     []Job
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Lock == nil {
		return nil, errors.New("lock required")
	}
	var jobs []Job
	for _, job := range params.Jobs {
		if job != nil {
			jobs = append(jobs, job)
		}
	}
	if len(jobs) == 0 {
		return nil, errors.New("at least one job required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		jobs:     jobs,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run blocks until ctx is cancelled and then returns ctx.Err().
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.runCycle(ctx); err != nil {
			s.logg.Error(ctx, "cron.cycle.failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron.stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runCycle returns the combined job failures; one failing job never stops
// the others.
func (s *Service) runCycle(ctx context.Context) (err error) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Debug(ctx, "cron.cycle.skipped")
		return nil
	}
	defer func() {
		// release even when the cycle was cancelled mid-flight
		err = multierr.Append(err, s.lock.Release(context.WithoutCancel(ctx)))
	}()

	cycleCtx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	failures := make([]error, len(s.jobs))
	var g errgroup.Group
	for i, job := range s.jobs {
		g.Go(func() error {
			failures[i] = s.runJob(cycleCtx, job)
			return nil
		})
	}
	_ = g.Wait()
	return multierr.Combine(failures...)
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	name := job.Name()
	jobCtx := s.logg.WithField(ctx, "job", name)
	start := time.Now()

	err := job.Run(jobCtx)

	elapsed := time.Since(start)
	s.metrics.Observe(name, elapsed, err)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	s.logg.Info(jobCtx, "cron.job.complete")
	return nil
}
