package config

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	PayPalEnvLive    = "live"
	PayPalLiveURL    = "https://api-m.paypal.com"
	PayPalSandboxURL = "https://api-m.sandbox.paypal.com"
)

const (
	EnvAppEnv                   = "STOREFRONT_APP_ENV"
	EnvPort                     = "STOREFRONT_APP_PORT"
	EnvDBDSN                    = "STOREFRONT_DB_DSN"
	EnvDBHost                   = "STOREFRONT_DB_HOST"
	EnvDBUser                   = "STOREFRONT_DB_USER"
	EnvDBName                   = "STOREFRONT_DB_NAME"
	EnvDBPassword               = "STOREFRONT_DB_PASSWORD"
	EnvRedisURL                 = "STOREFRONT_REDIS_URL"
	EnvMongoURI                 = "STOREFRONT_MONGO_URI"
	EnvJWTSecret                = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer                = "STOREFRONT_JWT_ISSUER"
	EnvJWTExpMins               = "STOREFRONT_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes   = "STOREFRONT_REFRESH_TOKEN_TTL_MINUTES"
	EnvPrintfulAPIKey           = "STOREFRONT_PRINTFUL_API_KEY"
	EnvPayPalClientID           = "STOREFRONT_PAYPAL_CLIENT_ID"
	EnvPayPalClientSecret       = "STOREFRONT_PAYPAL_CLIENT_SECRET"
	EnvPayPalEnv                = "STOREFRONT_PAYPAL_ENV"
	EnvCheckoutShippingFee      = "STOREFRONT_CHECKOUT_SHIPPING_FEE"
	EnvCartSessionIdleTTL       = "STOREFRONT_CART_SESSION_IDLE_TTL"
	EnvCartSessionSweepInterval = "STOREFRONT_CART_SESSION_SWEEP_INTERVAL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
