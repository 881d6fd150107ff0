package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// DefaultIssuer is stamped into every session token.
const DefaultIssuer = "MaBar-Auth-Service"

const minProdSecretLen = 32

var tokenLifetimePresets = map[string]time.Duration{
	"7d":  7 * 24 * time.Hour,
	"1d":  24 * time.Hour,
	"1h":  time.Hour,
	"15m": 15 * time.Minute,
}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	RateLimit    RateLimitConfig
	Cache        CacheConfig
	Admin        AdminConfig
	OAuth        OAuthConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.FeatureFlags.UserStore = strings.ToLower(strings.TrimSpace(cfg.FeatureFlags.UserStore))
	cfg.RateLimit.Backend = strings.ToLower(strings.TrimSpace(cfg.RateLimit.Backend))

	if cfg.FeatureFlags.UsesDatabase() {
		cfg.DB.Driver = cfg.FeatureFlags.UserStore
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the cross-field rules envconfig tags cannot express.
func (c *Config) Validate() error {
	if !c.App.IsDev() && !c.App.IsProd() {
		return fmt.Errorf("%s must be %q or %q, got %q", EnvAppEnv, AppEnvDev, AppEnvProd, c.App.Env)
	}
	if _, err := c.JWT.TokenLifetime(); err != nil {
		return err
	}
	if c.App.IsProd() && len(c.JWT.Secret) < minProdSecretLen {
		return fmt.Errorf("%s must be at least %d bytes in production", EnvJWTSecret, minProdSecretLen)
	}

	switch c.FeatureFlags.UserStore {
	case UserStorePostgres, UserStoreSQLite:
	case UserStoreMemory:
		if !c.App.IsDev() {
			return fmt.Errorf("%s=%s is only allowed when %s=%s", EnvUserStore, UserStoreMemory, EnvAppEnv, AppEnvDev)
		}
	default:
		return fmt.Errorf("unknown %s %q", EnvUserStore, c.FeatureFlags.UserStore)
	}

	switch c.RateLimit.Backend {
	case RateLimitBackendMemory:
	case RateLimitBackendRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return fmt.Errorf("%s=%s requires %s or %s", EnvRateLimitBackend, RateLimitBackendRedis, EnvRedisURL, EnvRedisAddr)
		}
	default:
		return fmt.Errorf("unknown %s %q", EnvRateLimitBackend, c.RateLimit.Backend)
	}

	if (c.Admin.Email == "") != (c.Admin.Password == "") {
		return fmt.Errorf("%s and %s must be set together", EnvAdminEmail, EnvAdminPassword)
	}

	switch strings.ToLower(strings.TrimSpace(c.Password.Profile)) {
	case "", AppEnvDev, AppEnvProd:
	default:
		return fmt.Errorf("unknown %s %q", EnvPasswordProfile, c.Password.Profile)
	}
	return nil
}

type AppConfig struct {
	Env          string   `envconfig:"MABAR_APP_ENV" required:"true"`
	Port         string   `envconfig:"MABAR_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"MABAR_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"MABAR_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"MABAR_CORS_ORIGINS" default:"http://localhost:3000"`
	// TrustedProxies lists the peer addresses or CIDRs whose forwarding
	// headers are believed. Empty means the socket address is always used.
	TrustedProxies []string `envconfig:"MABAR_TRUSTED_PROXIES"`
}

func (a AppConfig) IsDev() bool {
	switch strings.ToLower(strings.TrimSpace(a.Env)) {
	case AppEnvDev, "dev", "local":
		return true
	}
	return false
}

func (a AppConfig) IsProd() bool {
	switch strings.ToLower(strings.TrimSpace(a.Env)) {
	case AppEnvProd, "prod":
		return true
	}
	return false
}

type DBConfig struct {
	DSN    string `envconfig:"MABAR_DB_DSN"`
	Driver string `ignored:"true"`

	LegacyHost     string `envconfig:"MABAR_DB_HOST"`
	LegacyPort     int    `envconfig:"MABAR_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MABAR_DB_USER"`
	LegacyPassword string `envconfig:"MABAR_DB_PASSWORD"`
	LegacyName     string `envconfig:"MABAR_DB_NAME"`
	LegacySSLMode  string `envconfig:"MABAR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MABAR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MABAR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MABAR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MABAR_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	QueryTimeout    time.Duration `envconfig:"MABAR_DB_QUERY_TIMEOUT" default:"3s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MABAR_REDIS_URL"`
	Address      string        `envconfig:"MABAR_REDIS_ADDR"`
	Password     string        `envconfig:"MABAR_REDIS_PASSWORD"`
	DB           int           `envconfig:"MABAR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MABAR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MABAR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MABAR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MABAR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MABAR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type JWTConfig struct {
	Secret   string        `envconfig:"MABAR_JWT_SECRET" required:"true"`
	Issuer   string        `envconfig:"MABAR_JWT_ISSUER" default:"MaBar-Auth-Service"`
	Lifetime string        `envconfig:"MABAR_JWT_LIFETIME" default:"7d"`
	MaxAge   time.Duration `envconfig:"MABAR_JWT_MAX_AGE" default:"168h"`
}

// TokenLifetime resolves the configured lifetime preset.
func (j JWTConfig) TokenLifetime() (time.Duration, error) {
	preset := strings.ToLower(strings.TrimSpace(j.Lifetime))
	if preset == "" {
		preset = "7d"
	}
	d, ok := tokenLifetimePresets[preset]
	if !ok {
		return 0, fmt.Errorf("unknown %s preset %q (want 7d, 1d, 1h or 15m)", EnvJWTLifetime, j.Lifetime)
	}
	return d, nil
}

type PasswordConfig struct {
	// Profile overrides the policy derived from the app env when set.
	Profile             string `envconfig:"MABAR_PASSWORD_PROFILE"`
	MaxConcurrentHashes int64  `envconfig:"MABAR_PASSWORD_MAX_CONCURRENT_HASHES" default:"4"`
}

// ResolvedProfile returns the policy profile name for the given app config.
func (p PasswordConfig) ResolvedProfile(app AppConfig) string {
	switch strings.ToLower(strings.TrimSpace(p.Profile)) {
	case AppEnvProd:
		return AppEnvProd
	case AppEnvDev:
		return AppEnvDev
	}
	if app.IsProd() {
		return AppEnvProd
	}
	return AppEnvDev
}

type RateLimitConfig struct {
	Backend       string        `envconfig:"MABAR_RATE_LIMIT_BACKEND" default:"memory"`
	AuthLimit     int           `envconfig:"MABAR_RATE_LIMIT_AUTH_LIMIT" default:"5"`
	AuthWindow    time.Duration `envconfig:"MABAR_RATE_LIMIT_AUTH_WINDOW" default:"15m"`
	APILimit      int           `envconfig:"MABAR_RATE_LIMIT_API_LIMIT" default:"100"`
	APIWindow     time.Duration `envconfig:"MABAR_RATE_LIMIT_API_WINDOW" default:"15m"`
	SweepInterval time.Duration `envconfig:"MABAR_RATE_LIMIT_SWEEP_INTERVAL" default:"5m"`
}

type CacheConfig struct {
	UserTTL  time.Duration `envconfig:"MABAR_USER_CACHE_TTL" default:"30s"`
	UserSize int           `envconfig:"MABAR_USER_CACHE_SIZE" default:"1024"`
}

type AdminConfig struct {
	Email     string `envconfig:"MABAR_ADMIN_EMAIL"`
	Password  string `envconfig:"MABAR_ADMIN_PASSWORD"`
	FirstName string `envconfig:"MABAR_ADMIN_FIRST_NAME" default:"Admin"`
	LastName  string `envconfig:"MABAR_ADMIN_LAST_NAME" default:"User"`
}

type OAuthConfig struct {
	GoogleClientID     string `envconfig:"MABAR_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `envconfig:"MABAR_GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `envconfig:"MABAR_GOOGLE_REDIRECT_URL" default:"http://localhost:8080/auth/google/callback"`
	FrontendURL        string `envconfig:"MABAR_FRONTEND_URL" default:"http://localhost:3000"`
}

// GoogleEnabled reports whether google sign-in credentials are present.
func (o OAuthConfig) GoogleEnabled() bool {
	return o.GoogleClientID != "" && o.GoogleClientSecret != ""
}

type FeatureFlagsConfig struct {
	UserStore   string `envconfig:"MABAR_USER_STORE" default:"postgres"`
	AutoMigrate bool   `envconfig:"MABAR_AUTO_MIGRATE" default:"false"`
}

// UsesDatabase reports whether users are persisted through gorm.
func (f FeatureFlagsConfig) UsesDatabase() bool {
	return f.UserStore == UserStorePostgres || f.UserStore == UserStoreSQLite
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.Driver == UserStoreSQLite {
		db.DSN = "file:mabar.db?cache=shared&_fk=1"
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
