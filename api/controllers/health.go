package controllers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/reddragons/storefront-backend/api/responses"
	"github.com/reddragons/storefront-backend/pkg/config"
	pkgerrors "github.com/reddragons/storefront-backend/pkg/errors"
	"github.com/reddragons/storefront-backend/pkg/logger"
)

const (
	envHeader        = "X-Storefront-Env"
	readinessTimeout = 2 * time.Second
)

// Pinger is any dependency the readiness probe can check.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency concurrently and reports 503 with the
// per-dependency result when any of them fails. Nil pingers are skipped.
func HealthReady(cfg *config.Config, deps map[string]Pinger, logg *logger.Logger) http.HandlerFunc {
	names := make([]string, 0, len(deps))
	for name, dep := range deps {
		if dep != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		var (
			mu     sync.Mutex
			checks = make(map[string]string, len(names))
			failed bool
		)
		var g errgroup.Group
		for _, name := range names {
			dep := deps[name]
			g.Go(func() error {
				status := "ok"
				if err := dep.Ping(ctx); err != nil {
					status = "unavailable"
					logg.Error(logg.WithField(r.Context(), "dependency", name), "health.ready.ping_failed", err)
				}
				mu.Lock()
				checks[name] = status
				if status != "ok" {
					failed = true
				}
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		if failed {
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").
				WithDetails(map[string]any{"checks": checks}))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
