package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	Mongo         MongoConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	CORS          CORSConfig
	Printful      PrintfulConfig
	PayPal        PayPalConfig
	Checkout      CheckoutConfig
	Catalog       CatalogConfig
	CartSessions  CartSessionsConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Checkout.Fee(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOREFRONT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"STOREFRONT_REDIS_KEY_PREFIX" default:"sf"`
}

// MongoConfig points at the document store holding per-user carts.
type MongoConfig struct {
	URI             string        `envconfig:"STOREFRONT_MONGO_URI" required:"true"`
	Database        string        `envconfig:"STOREFRONT_MONGO_DATABASE" default:"storefront"`
	CartsCollection string        `envconfig:"STOREFRONT_MONGO_CARTS_COLLECTION" default:"carts"`
	ConnectTimeout  time.Duration `envconfig:"STOREFRONT_MONGO_CONNECT_TIMEOUT" default:"10s"`
	OpTimeout       time.Duration `envconfig:"STOREFRONT_MONGO_OP_TIMEOUT" default:"5s"`
	MaxPoolSize     uint64        `envconfig:"STOREFRONT_MONGO_MAX_POOL_SIZE" default:"50"`
	MinPoolSize     uint64        `envconfig:"STOREFRONT_MONGO_MIN_POOL_SIZE" default:"5"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"STOREFRONT_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"STOREFRONT_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"STOREFRONT_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"STOREFRONT_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"STOREFRONT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"STOREFRONT_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STOREFRONT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"STOREFRONT_CORS_ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
}

// PrintfulConfig holds the fulfillment API credential. The key is not
// required at boot; requests fail with a configuration error when it is unset.
type PrintfulConfig struct {
	APIKey           string        `envconfig:"STOREFRONT_PRINTFUL_API_KEY"`
	BaseURL          string        `envconfig:"STOREFRONT_PRINTFUL_BASE_URL" default:"https://api.printful.com"`
	Timeout          time.Duration `envconfig:"STOREFRONT_PRINTFUL_TIMEOUT" default:"10s"`
	BreakerFailures  uint32        `envconfig:"STOREFRONT_PRINTFUL_BREAKER_FAILURES" default:"5"`
	BreakerOpenFor   time.Duration `envconfig:"STOREFRONT_PRINTFUL_BREAKER_OPEN_FOR" default:"30s"`
	BreakerHalfProbe uint32        `envconfig:"STOREFRONT_PRINTFUL_BREAKER_HALF_OPEN_REQUESTS" default:"1"`
}

type PayPalConfig struct {
	ClientID     string        `envconfig:"STOREFRONT_PAYPAL_CLIENT_ID" required:"true"`
	ClientSecret string        `envconfig:"STOREFRONT_PAYPAL_CLIENT_SECRET" required:"true"`
	Env          string        `envconfig:"STOREFRONT_PAYPAL_ENV" default:"sandbox"`
	BaseURL      string        `envconfig:"STOREFRONT_PAYPAL_BASE_URL"`
	Currency     string        `envconfig:"STOREFRONT_PAYPAL_CURRENCY" default:"USD"`
	Timeout      time.Duration `envconfig:"STOREFRONT_PAYPAL_TIMEOUT" default:"15s"`
}

// Endpoint returns the PayPal REST base URL, honoring an explicit override.
func (p PayPalConfig) Endpoint() string {
	if base := strings.TrimSpace(p.BaseURL); base != "" {
		return strings.TrimRight(base, "/")
	}
	if strings.EqualFold(strings.TrimSpace(p.Env), PayPalEnvLive) {
		return PayPalLiveURL
	}
	return PayPalSandboxURL
}

type CheckoutConfig struct {
	ShippingFee string        `envconfig:"STOREFRONT_CHECKOUT_SHIPPING_FEE" default:"5.00"`
	QuoteTTL    time.Duration `envconfig:"STOREFRONT_CHECKOUT_QUOTE_TTL" default:"3h"`
}

// Fee parses the flat shipping fee.
func (c CheckoutConfig) Fee() (decimal.Decimal, error) {
	fee, err := decimal.NewFromString(strings.TrimSpace(c.ShippingFee))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", EnvCheckoutShippingFee, err)
	}
	if fee.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must not be negative", EnvCheckoutShippingFee)
	}
	return fee, nil
}

type CatalogConfig struct {
	DetailCacheTTL time.Duration `envconfig:"STOREFRONT_CATALOG_DETAIL_CACHE_TTL" default:"10m"`
	IncludeDemo    bool          `envconfig:"STOREFRONT_CATALOG_INCLUDE_DEMO" default:"false"`
}

type CartSessionsConfig struct {
	IdleTTL       time.Duration `envconfig:"STOREFRONT_CART_SESSION_IDLE_TTL" default:"24h"`
	SweepInterval time.Duration `envconfig:"STOREFRONT_CART_SESSION_SWEEP_INTERVAL" default:"10m"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"STOREFRONT_CRON_INTERVAL" default:"15m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
