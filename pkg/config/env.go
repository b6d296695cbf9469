package config

const EnvPrefix = "ORDERDESK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "ORDERDESK_APP_ENV"
	EnvPort     = "ORDERDESK_APP_PORT"
	EnvLogLevel = "ORDERDESK_LOG_LEVEL"

	EnvDBDSN    = "ORDERDESK_DB_DSN"
	EnvDBDriver = "ORDERDESK_DB_DRIVER"
	EnvDBHost   = "ORDERDESK_DB_HOST"
	EnvDBUser   = "ORDERDESK_DB_USER"
	EnvDBName   = "ORDERDESK_DB_NAME"

	EnvRedisURL = "ORDERDESK_REDIS_URL"

	EnvAutoMigrate   = "ORDERDESK_AUTO_MIGRATE"
	EnvDeferredStore = "ORDERDESK_DEFERRED_STORE"

	EnvPricingSessionTTL      = "ORDERDESK_PRICING_SESSION_TTL"
	EnvPricingTaxRates        = "ORDERDESK_PRICING_TAX_RATES"
	EnvPricingShippingTaxable = "ORDERDESK_PRICING_SHIPPING_TAXABLE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
