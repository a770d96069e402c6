package config

const EnvPrefix = "CATALOG"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv      = "CATALOG_APP_ENV"
	EnvPort        = "CATALOG_APP_PORT"
	EnvLogLevel    = "CATALOG_LOG_LEVEL"
	EnvServiceKind = "CATALOG_SERVICE_KIND"

	EnvDBDSN  = "CATALOG_DB_DSN"
	EnvDBHost = "CATALOG_DB_HOST"
	EnvDBUser = "CATALOG_DB_USER"
	EnvDBName = "CATALOG_DB_NAME"

	EnvRedisURL = "CATALOG_REDIS_URL"

	EnvJWTSecret  = "CATALOG_JWT_SECRET"
	EnvJWTIssuer  = "CATALOG_JWT_ISSUER"
	EnvJWTExpMins = "CATALOG_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID = "CATALOG_GCP_PROJECT_ID"

	EnvPubSubProductTopic  = "CATALOG_PUBSUB_PRODUCT_TOPIC"
	EnvPubSubActivityTopic = "CATALOG_PUBSUB_ACTIVITY_TOPIC"
	EnvPubSubOffersSub     = "CATALOG_PUBSUB_OFFERS_SUBSCRIPTION"
	EnvPubSubReviewsSub    = "CATALOG_PUBSUB_REVIEWS_SUBSCRIPTION"

	EnvOutboxRetentionDays = "CATALOG_OUTBOX_RETENTION_DAYS"

	EnvCDNBaseURL  = "CATALOG_CDN_BASE_URL"
	EnvCDNCacheTTL = "CATALOG_CDN_CACHE_TTL"

	EnvShopHost = "CATALOG_SHOP_HOST"
	EnvDaysNew  = "CATALOG_DAYS_NEW"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
