package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	printfulcontrollers "github.com/reddragons/storefront-backend/api/controllers/printful"
	"github.com/reddragons/storefront-backend/api/routes"
	"github.com/reddragons/storefront-backend/internal/auth"
	"github.com/reddragons/storefront-backend/internal/cart"
	"github.com/reddragons/storefront-backend/internal/catalog"
	"github.com/reddragons/storefront-backend/internal/checkout"
	"github.com/reddragons/storefront-backend/internal/cron"
	"github.com/reddragons/storefront-backend/internal/orders"
	"github.com/reddragons/storefront-backend/internal/users"
	"github.com/reddragons/storefront-backend/pkg/auth/session"
	"github.com/reddragons/storefront-backend/pkg/config"
	"github.com/reddragons/storefront-backend/pkg/db"
	"github.com/reddragons/storefront-backend/pkg/env"
	"github.com/reddragons/storefront-backend/pkg/logger"
	"github.com/reddragons/storefront-backend/pkg/metrics"
	"github.com/reddragons/storefront-backend/pkg/migrate"
	"github.com/reddragons/storefront-backend/pkg/mongodb"
	"github.com/reddragons/storefront-backend/pkg/paypal"
	"github.com/reddragons/storefront-backend/pkg/printful"
	"github.com/reddragons/storefront-backend/pkg/redis"
	"github.com/reddragons/storefront-backend/pkg/tasks"
)

const shutdownTimeout = 20 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	upstreamMetrics := metrics.NewUpstreamMetrics(registry)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	mongoClient, err := mongodb.New(ctx, cfg.Mongo, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, mongoClient.Close(context.Background())) }()

	runner := tasks.NewRunner(logg, tasks.WithMetrics(metrics.NewTaskMetrics(registry)))
	carts := cart.NewRegistry(
		cart.NewMongoDocumentStore(mongoClient.Collection(cfg.Mongo.CartsCollection), mongoClient.OpTimeout()),
		runner,
		logg,
		cart.WithIdleTTL(cfg.CartSessions.IdleTTL),
	)

	printfulClient := printful.FromConfig(cfg.Printful, printful.WithMetrics(upstreamMetrics))
	if !printfulClient.Configured() {
		logg.Warn(ctx, "printful.api_key.missing")
	}
	catalogSource := catalog.NewCachedSource(printfulClient, redisClient, cfg.Catalog.DetailCacheTTL, logg)
	catalogLoader := catalog.NewLoader(catalogSource, logg, catalog.WithDemoProducts(cfg.Catalog.IncludeDemo))

	paypalClient, err := paypal.NewClient(cfg.PayPal, paypal.WithMetrics(upstreamMetrics))
	if err != nil {
		return err
	}

	ordersService, err := orders.NewService(orders.NewRepository(dbClient.DB()))
	if err != nil {
		return err
	}

	shippingFee, err := cfg.Checkout.Fee()
	if err != nil {
		return err
	}
	orchestrator, err := checkout.NewOrchestrator(checkout.Params{
		Logger:      logg,
		Payments:    paypalClient,
		Fulfillment: printfulClient,
		Orders:      ordersService,
		Quotes:      checkout.NewRedisQuoteStore(redisClient, cfg.Checkout.QuoteTTL),
		Tasks:       runner,
		Metrics:     metrics.NewCheckoutMetrics(registry),
		ShippingFee: shippingFee,
		Currency:    cfg.PayPal.Currency,
	})
	if err != nil {
		return err
	}

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return err
	}

	sweeper, err := newSweeper(cfg, logg, carts, registry)
	if err != nil {
		return err
	}
	go func() {
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "cart session sweeper stopped", err)
		}
	}()

	// platforms such as Cloud Run inject PORT
	addr := ":" + env.Get("PORT", cfg.App.Port)
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			mongoClient,
			registry,
			sessionManager,
			authService,
			carts,
			catalogLoader,
			orchestrator,
			ordersService,
			printfulcontrollers.NewProxy(printfulClient, logg),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logg.Info(logCtx, "api server shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = multierr.Append(err, server.Shutdown(shutdownCtx))
	// cart writes and fulfillment dispatches still in flight
	err = multierr.Append(err, runner.Wait(shutdownCtx))
	return err
}

// newSweeper evicts idle cart sessions in-process. The registry lives in
// this process only, so a local lock is enough.
func newSweeper(cfg *config.Config, logg *logger.Logger, carts *cart.Registry, reg prometheus.Registerer) (*cron.Service, error) {
	job, err := cron.NewCartSweepJob(carts, logg)
	if err != nil {
		return nil, err
	}
	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Jobs:     []cron.Job{job},
		Lock:     &cron.LocalLock{},
		Metrics:  metrics.NewCronJobMetrics(reg),
		Interval: cfg.CartSessions.SweepInterval,
	})
}
