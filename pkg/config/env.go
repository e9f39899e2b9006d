package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv        = "STOREFRONT_APP_ENV"
	EnvPort          = "STOREFRONT_APP_PORT"
	EnvPublicBaseURL = "STOREFRONT_PUBLIC_BASE_URL"
	EnvDBDSN         = "STOREFRONT_DB_DSN"
	EnvDBDriver      = "STOREFRONT_DB_DRIVER"
	EnvDBHost        = "STOREFRONT_DB_HOST"
	EnvDBUser        = "STOREFRONT_DB_USER"
	EnvDBName        = "STOREFRONT_DB_NAME"
	EnvDBPassword    = "STOREFRONT_DB_PASSWORD"
	EnvRedisURL      = "STOREFRONT_REDIS_URL"
	EnvAdminToken    = "STOREFRONT_ADMIN_TOKEN"
	EnvStripeSecret  = "STOREFRONT_STRIPE_SECRET_KEY"
	EnvStripeWebhook = "STOREFRONT_STRIPE_WEBHOOK_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
