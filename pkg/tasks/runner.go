// Package tasks runs detached, best-effort side effects.
//
// A task is started from a request but must not be cancelled with it, must
// not block it, and must not surface its failure to the caller. Failures are
// logged and counted. Nothing is retried.
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/reddragons/storefront-backend/pkg/logger"
	"github.com/reddragons/storefront-backend/pkg/metrics"
)

const defaultTimeout = 30 * time.Second

// Func is the unit of work executed by a Runner.
type Func func(ctx context.Context) error

// Runner launches detached tasks and tracks them for shutdown.
type Runner struct {
	logg    *logger.Logger
	metrics *metrics.TaskMetrics
	timeout time.Duration
	wg      sync.WaitGroup
}

// Option customises a Runner.
type Option func(*Runner)

// WithTimeout bounds how long a single task may run.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMetrics records task outcomes.
func WithMetrics(m *metrics.TaskMetrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

func NewRunner(logg *logger.Logger, opts ...Option) *Runner {
	r := &Runner{logg: logg, timeout: defaultTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Go starts fn in the background. The task keeps the logging fields of ctx
// but not its cancellation.
func (r *Runner) Go(ctx context.Context, name string, fn Func) {
	if r == nil || fn == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	base := context.WithoutCancel(ctx)
	if r.logg != nil {
		base = r.logg.WithField(base, "task", name)
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(base, name, fn)
	}()
}

func (r *Runner) run(ctx context.Context, name string, fn Func) {
	taskCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err := safeCall(taskCtx, fn)
	r.metrics.ObserveDuration(name, time.Since(start))

	if err != nil {
		r.metrics.IncFailure(name)
		if r.logg != nil {
			r.logg.Error(r.logg.WithField(ctx, "duration_ms", time.Since(start).Milliseconds()), "task.failed", err)
		}
		return
	}
	r.metrics.IncSuccess(name)
	if r.logg != nil {
		r.logg.Debug(ctx, "task.complete")
	}
}

// Wait blocks until every started task has returned or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func safeCall(ctx context.Context, fn Func) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task panic: %v", rec)
		}
	}()
	return fn(ctx)
}
