package config

const EnvPrefix = "MABAR"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	UserStorePostgres = "postgres"
	UserStoreSQLite   = "sqlite"
	UserStoreMemory   = "memory"
)

const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

const (
	EnvAppEnv         = "MABAR_APP_ENV"
	EnvPort           = "MABAR_APP_PORT"
	EnvLogLevel       = "MABAR_LOG_LEVEL"
	EnvLogWarnStack   = "MABAR_LOG_WARN_STACK"
	EnvCORSOrigins    = "MABAR_CORS_ORIGINS"
	EnvTrustedProxies = "MABAR_TRUSTED_PROXIES"

	EnvDBDSN      = "MABAR_DB_DSN"
	EnvDBHost     = "MABAR_DB_HOST"
	EnvDBPort     = "MABAR_DB_PORT"
	EnvDBUser     = "MABAR_DB_USER"
	EnvDBPassword = "MABAR_DB_PASSWORD"
	EnvDBName     = "MABAR_DB_NAME"
	EnvDBSSLMode  = "MABAR_DB_SSLMODE"

	EnvRedisURL  = "MABAR_REDIS_URL"
	EnvRedisAddr = "MABAR_REDIS_ADDR"

	EnvJWTSecret   = "MABAR_JWT_SECRET"
	EnvJWTIssuer   = "MABAR_JWT_ISSUER"
	EnvJWTLifetime = "MABAR_JWT_LIFETIME"
	EnvJWTMaxAge   = "MABAR_JWT_MAX_AGE"

	EnvPasswordProfile       = "MABAR_PASSWORD_PROFILE"
	EnvPasswordMaxConcurrent = "MABAR_PASSWORD_MAX_CONCURRENT_HASHES"

	EnvRateLimitBackend    = "MABAR_RATE_LIMIT_BACKEND"
	EnvRateLimitAuthLimit  = "MABAR_RATE_LIMIT_AUTH_LIMIT"
	EnvRateLimitAuthWindow = "MABAR_RATE_LIMIT_AUTH_WINDOW"
	EnvRateLimitAPILimit   = "MABAR_RATE_LIMIT_API_LIMIT"
	EnvRateLimitAPIWindow  = "MABAR_RATE_LIMIT_API_WINDOW"

	EnvUserCacheTTL  = "MABAR_USER_CACHE_TTL"
	EnvUserCacheSize = "MABAR_USER_CACHE_SIZE"

	EnvAdminEmail    = "MABAR_ADMIN_EMAIL"
	EnvAdminPassword = "MABAR_ADMIN_PASSWORD"

	EnvGoogleClientID     = "MABAR_GOOGLE_CLIENT_ID"
	EnvGoogleClientSecret = "MABAR_GOOGLE_CLIENT_SECRET"
	EnvGoogleRedirectURL  = "MABAR_GOOGLE_REDIRECT_URL"
	EnvFrontendURL        = "MABAR_FRONTEND_URL"

	EnvUserStore   = "MABAR_USER_STORE"
	EnvAutoMigrate = "MABAR_AUTO_MIGRATE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
