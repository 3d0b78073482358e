package config

const EnvPrefix = "REWEAR"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "REWEAR_APP_ENV"
	EnvPort     = "REWEAR_APP_PORT"
	EnvLogLevel = "REWEAR_LOG_LEVEL"

	EnvDBDSN    = "REWEAR_DB_DSN"
	EnvDBDriver = "REWEAR_DB_DRIVER"
	EnvDBHost   = "REWEAR_DB_HOST"
	EnvDBUser   = "REWEAR_DB_USER"
	EnvDBName   = "REWEAR_DB_NAME"

	EnvRedisURL = "REWEAR_REDIS_URL"

	EnvJWTSecret  = "REWEAR_JWT_SECRET"
	EnvJWTIssuer  = "REWEAR_JWT_ISSUER"
	EnvJWTExpMins = "REWEAR_JWT_EXPIRATION_MINUTES"

	EnvMediaUploadDir = "REWEAR_MEDIA_UPLOAD_DIR"

	EnvPlatformAdminEmail    = "REWEAR_PLATFORM_ADMIN_EMAIL"
	EnvPlatformAdminPassword = "REWEAR_PLATFORM_ADMIN_PASSWORD"
	EnvSwapPointsFeeRate     = "REWEAR_SWAP_POINTS_FEE_RATE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
