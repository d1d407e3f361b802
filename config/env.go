package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

// AppConfig holds every setting read from the environment.
type AppConfig struct {
	ServerPort  string `env:"SERVER_PORT,default=8080"`
	GinMode     string `env:"GIN_MODE,default=debug"`
	Environment string `env:"ENVIRONMENT,default=development"`

	DBDriver   string `env:"DB_DRIVER,default=mysql"`
	DBHost     string `env:"DB_HOST,default=127.0.0.1"`
	DBPort     string `env:"DB_PORT,default=3306"`
	DBDatabase string `env:"DB_DATABASE,default=scholarship_aid"`
	DBUsername string `env:"DB_USERNAME,default=root"`
	DBPassword string `env:"DB_PASSWORD"`
	SQLitePath string `env:"DB_SQLITE_PATH,default=aid.db"`
	DebugSQL   bool   `env:"DEBUG_SQL,default=false"`

	JWTSecret          string `env:"JWT_SECRET"`
	LogsToken          string `env:"LOGS_TOKEN"`
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:3000"`
	RateLimitRPS       int    `env:"RATE_LIMIT_RPS,default=20"`
	RateLimitBurst     int    `env:"RATE_LIMIT_BURST,default=40"`

	DefaultCurrency               string        `env:"DEFAULT_CURRENCY,default=PHP"`
	RequireEnrollmentVerification bool          `env:"REQUIRE_ENROLLMENT_VERIFICATION,default=true"`
	ProcessingLockTTL             time.Duration `env:"PROCESSING_LOCK_TTL,default=5m"`
	LockSweepSpec                 string        `env:"LOCK_SWEEP_SPEC,default=@every 5m"`
}

var current = defaultConfig()

func defaultConfig() *AppConfig {
	return &AppConfig{
		ServerPort:                    "8080",
		GinMode:                       "debug",
		Environment:                   "development",
		DBDriver:                      "mysql",
		DefaultCurrency:               "PHP",
		RequireEnrollmentVerification: true,
		ProcessingLockTTL:             5 * time.Minute,
		LockSweepSpec:                 "@every 5m",
		RateLimitRPS:                  20,
		RateLimitBurst:                40,
	}
}

// Load decodes the environment into the process-wide configuration.
func Load() (*AppConfig, error) {
	cfg := defaultConfig()
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, err
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	cfg.DefaultCurrency = strings.ToUpper(strings.TrimSpace(cfg.DefaultCurrency))
	current = cfg
	return cfg, nil
}

// Current returns the configuration loaded by Load, or defaults before that.
func Current() *AppConfig {
	return current
}

// ErrMissingJWTSecret is returned when the API is started without a signing key.
var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set")

// RequireJWTSecret fails unless a non-blank JWT_SECRET was loaded.
func (c *AppConfig) RequireJWTSecret() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return ErrMissingJWTSecret
	}
	return nil
}

// IsProduction reports whether ENVIRONMENT=production.
func (c *AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *AppConfig) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
