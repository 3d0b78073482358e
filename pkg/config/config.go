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
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Media         MediaConfig
	Swap          SwapConfig
	PlatformAdmin PlatformAdminConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.DB.Driver) {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", EnvDBDriver, DriverPostgres, DriverSQLite, c.DB.Driver)
	}
	if c.JWT.ExpirationMinutes <= 0 {
		return fmt.Errorf("%s must be positive", EnvJWTExpMins)
	}
	if err := c.Swap.validate(); err != nil {
		return err
	}
	if c.Media.MaxFiles <= 0 || c.Media.MaxFileBytes <= 0 {
		return fmt.Errorf("media upload limits must be positive")
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"REWEAR_APP_ENV" required:"true"`
	Port         string `envconfig:"REWEAR_APP_PORT" default:"5000"`
	LogLevel     string `envconfig:"REWEAR_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"REWEAR_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"REWEAR_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DBConfig struct {
	DSN    string `envconfig:"REWEAR_DB_DSN"`
	Driver string `envconfig:"REWEAR_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"REWEAR_DB_HOST"`
	LegacyPort     int    `envconfig:"REWEAR_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"REWEAR_DB_USER"`
	LegacyPassword string `envconfig:"REWEAR_DB_PASSWORD"`
	LegacyName     string `envconfig:"REWEAR_DB_NAME"`
	LegacySSLMode  string `envconfig:"REWEAR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"REWEAR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"REWEAR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"REWEAR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"REWEAR_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"REWEAR_REDIS_URL"`
	Address      string        `envconfig:"REWEAR_REDIS_ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"REWEAR_REDIS_PASSWORD"`
	DB           int           `envconfig:"REWEAR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"REWEAR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REWEAR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REWEAR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REWEAR_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REWEAR_REDIS_WRITE_TIMEOUT" default:"3s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"REWEAR_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"REWEAR_JWT_ISSUER" default:"rewear"`
	ExpirationMinutes int    `envconfig:"REWEAR_JWT_EXPIRATION_MINUTES" default:"1440"`
}

// AccessTokenTTL returns the access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"REWEAR_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"REWEAR_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"REWEAR_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"REWEAR_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"REWEAR_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"REWEAR_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"REWEAR_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"REWEAR_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"REWEAR_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"REWEAR_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"REWEAR_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate       bool `envconfig:"REWEAR_AUTO_MIGRATE" default:"false"`
	SeedPlatformAdmin bool `envconfig:"REWEAR_SEED_PLATFORM_ADMIN" default:"true"`
}

type MediaConfig struct {
	UploadDir       string `envconfig:"REWEAR_MEDIA_UPLOAD_DIR" default:"uploads"`
	PublicPrefix    string `envconfig:"REWEAR_MEDIA_PUBLIC_PREFIX" default:"/uploads"`
	MaxFileBytes    int64  `envconfig:"REWEAR_MEDIA_MAX_FILE_BYTES" default:"5242880"`
	MaxFiles        int    `envconfig:"REWEAR_MEDIA_MAX_FILES" default:"5"`
	ImageMaxSize    int    `envconfig:"REWEAR_MEDIA_IMAGE_MAX_SIZE" default:"1024"`
	ImageQuality    int    `envconfig:"REWEAR_MEDIA_IMAGE_QUALITY" default:"85"`
}

// MaxRequestBytes bounds a multipart item upload: every file at its cap plus
// room for the text fields.
func (m MediaConfig) MaxRequestBytes() int64 {
	return m.MaxFileBytes*int64(m.MaxFiles) + 1<<20
}

// SwapConfig holds the point pricing applied by the swap ledger.
type SwapConfig struct {
	StartingPoints int             `envconfig:"REWEAR_SWAP_STARTING_POINTS" default:"100"`
	PointsPrice    int64           `envconfig:"REWEAR_SWAP_POINTS_PRICE" default:"50"`
	PointsFeeRate  decimal.Decimal `envconfig:"REWEAR_SWAP_POINTS_FEE_RATE" default:"0.10"`
	DirectFee      int64           `envconfig:"REWEAR_SWAP_DIRECT_FEE" default:"10"`
	DirectFeeRate  decimal.Decimal `envconfig:"REWEAR_SWAP_DIRECT_FEE_RATE" default:"0.10"`
	MinAdminFee    int64           `envconfig:"REWEAR_SWAP_MIN_ADMIN_FEE" default:"1"`
	FeeMultiplier  int64           `envconfig:"REWEAR_SWAP_FEE_MULTIPLIER" default:"2"`
}

func (s SwapConfig) validate() error {
	if s.PointsPrice <= 0 || s.DirectFee <= 0 {
		return fmt.Errorf("swap prices must be positive")
	}
	if s.StartingPoints < 0 || s.MinAdminFee < 0 || s.FeeMultiplier < 0 {
		return fmt.Errorf("swap point settings must not be negative")
	}
	for _, rate := range []decimal.Decimal{s.PointsFeeRate, s.DirectFeeRate} {
		if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("%s must be between 0 and 1", EnvSwapPointsFeeRate)
		}
	}
	return nil
}

// PlatformAdminConfig identifies the account that collects swap fees.
type PlatformAdminConfig struct {
	Email          string `envconfig:"REWEAR_PLATFORM_ADMIN_EMAIL" default:"admin@rewear.com"`
	Password       string `envconfig:"REWEAR_PLATFORM_ADMIN_PASSWORD" default:"admin123"`
	Name           string `envconfig:"REWEAR_PLATFORM_ADMIN_NAME" default:"Admin User"`
	StartingPoints int    `envconfig:"REWEAR_PLATFORM_ADMIN_POINTS" default:"1000"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if strings.EqualFold(db.Driver, DriverSQLite) {
		db.DSN = "file:rewear.db?_foreign_keys=on"
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
