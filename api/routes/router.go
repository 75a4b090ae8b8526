package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reddragons/storefront-backend/api/controllers"
	authcontrollers "github.com/reddragons/storefront-backend/api/controllers/auth"
	cartcontrollers "github.com/reddragons/storefront-backend/api/controllers/cart"
	catalogcontrollers "github.com/reddragons/storefront-backend/api/controllers/catalog"
	checkoutcontrollers "github.com/reddragons/storefront-backend/api/controllers/checkout"
	ordercontrollers "github.com/reddragons/storefront-backend/api/controllers/orders"
	printfulcontrollers "github.com/reddragons/storefront-backend/api/controllers/printful"
	"github.com/reddragons/storefront-backend/api/middleware"
	"github.com/reddragons/storefront-backend/internal/auth"
	"github.com/reddragons/storefront-backend/internal/cart"
	"github.com/reddragons/storefront-backend/internal/catalog"
	checkoutsvc "github.com/reddragons/storefront-backend/internal/checkout"
	"github.com/reddragons/storefront-backend/internal/orders"
	"github.com/reddragons/storefront-backend/pkg/auth/session"
	"github.com/reddragons/storefront-backend/pkg/config"
	"github.com/reddragons/storefront-backend/pkg/logger"
	pkgredis "github.com/reddragons/storefront-backend/pkg/redis"
)

// RedisStore is the Redis surface the HTTP layer needs: idempotency
// records, auth throttling and the readiness ping.
type RedisStore interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

// CatalogLoader serves both the catalog routes and cart adds.
type CatalogLoader interface {
	ListProducts(ctx context.Context) ([]catalog.Product, error)
	Product(ctx context.Context, productID string) (catalog.Product, error)
}

type CheckoutService interface {
	CreatePayment(ctx context.Context, store checkoutsvc.CartStore) (*checkoutsvc.PaymentIntent, error)
	Capture(ctx context.Context, store checkoutsvc.CartStore, paypalOrderID string) (*checkoutsvc.Receipt, error)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisStore RedisStore,
	mongoP controllers.Pinger,
	gatherer prometheus.Gatherer,
	sessionChecker session.AccessSessionChecker,
	authService auth.Service,
	carts *cart.Registry,
	catalogLoader CatalogLoader,
	checkoutService CheckoutService,
	ordersService orders.Service,
	printfulProxy *printfulcontrollers.Proxy,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	deps := map[string]controllers.Pinger{"postgres": dbP, "mongo": mongoP}
	if redisStore != nil {
		deps["redis"] = redisStore
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps, logg))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/printful", func(r chi.Router) {
		r.Get("/products", printfulProxy.ListProducts())
		r.Get("/products/{id}", printfulProxy.ProductDetail())
		r.HandleFunc("/orders", printfulProxy.CreateOrder())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(loginPolicy, rateLimiter(redisStore), logg)).Post("/login", authcontrollers.Login(authService, logg))
			r.With(middleware.AuthRateLimit(registerPolicy, rateLimiter(redisStore), logg)).Post("/register", authcontrollers.Register(authService, logg))
			r.Post("/refresh", authcontrollers.Refresh(authService, logg))
			r.With(middleware.CartSession(carts, logg)).Post("/logout", authcontrollers.Logout(authService, cfg.JWT, logg))
			r.With(middleware.Auth(cfg.JWT, sessionChecker, logg)).Get("/me", authcontrollers.Me(authService, logg))
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/products", catalogcontrollers.ListProducts(catalogLoader, logg))
			r.Get("/products/{productID}", catalogcontrollers.ProductDetail(catalogLoader, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, sessionChecker, logg))
			r.Use(middleware.CartSession(carts, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.CartFetch(logg))
				r.Delete("/", cartcontrollers.CartClear(logg))
				r.Post("/items", cartcontrollers.CartAddItem(catalogLoader, logg))
				r.Delete("/items/{itemID}", cartcontrollers.CartRemoveItem(logg))
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/", checkoutcontrollers.CheckoutCreate(checkoutService, logg))
				r.With(middleware.Idempotency(idempotencyStore(redisStore), logg)).
					Post("/{paypalOrderID}/capture", checkoutcontrollers.CheckoutCapture(checkoutService, logg))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, sessionChecker, logg))
			r.Use(middleware.RequireUser(logg))
			r.Get("/orders", ordercontrollers.List(ordersService, logg))
		})
	})

	return r
}

// The middlewares treat a nil store as "disabled"; keep a nil RedisStore
// from turning into a non-nil interface holding nil.
func rateLimiter(store RedisStore) interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
} {
	if store == nil {
		return nil
	}
	return store
}

func idempotencyStore(store RedisStore) pkgredis.IdempotencyStore {
	if store == nil {
		return nil
	}
	return store
}
