package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/reddragons/storefront-backend/internal/catalog"
	"github.com/reddragons/storefront-backend/internal/cron"
	"github.com/reddragons/storefront-backend/pkg/config"
	"github.com/reddragons/storefront-backend/pkg/logger"
	"github.com/reddragons/storefront-backend/pkg/metrics"
	"github.com/reddragons/storefront-backend/pkg/printful"
	"github.com/reddragons/storefront-backend/pkg/redis"
)

// Any number of workers may run; the Redis lock keeps one warm cycle per
// interval across all of them.
const lockName = "catalog-warm"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: cfg.Service.Kind,
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	printfulClient := printful.FromConfig(cfg.Printful,
		printful.WithMetrics(metrics.NewUpstreamMetrics(prometheus.DefaultRegisterer)))
	if !printfulClient.Configured() {
		// nothing to warm without a credential
		return printful.ErrMissingAPIKey
	}

	warmer, err := catalog.NewWarmer(
		catalog.NewCachedSource(printfulClient, redisClient, cfg.Catalog.DetailCacheTTL, logg),
		logg,
	)
	if err != nil {
		return err
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName), 0)
	if err != nil {
		return err
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Jobs:     []cron.Job{warmer},
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
	return nil
}
