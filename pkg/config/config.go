package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Pricing  PricingConfig
	Orders   OrdersConfig
	Stripe   StripeConfig
	Features FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"THREADLINE_APP_ENV" required:"true"`
	Port         string `envconfig:"THREADLINE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"THREADLINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"THREADLINE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"THREADLINE_DB_DSN"`
	Driver string `envconfig:"THREADLINE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"THREADLINE_DB_HOST"`
	Port     int    `envconfig:"THREADLINE_DB_PORT" default:"5432"`
	User     string `envconfig:"THREADLINE_DB_USER"`
	Password string `envconfig:"THREADLINE_DB_PASSWORD"`
	Name     string `envconfig:"THREADLINE_DB_NAME"`
	SSLMode  string `envconfig:"THREADLINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"THREADLINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"THREADLINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"THREADLINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"THREADLINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"THREADLINE_REDIS_URL" required:"true"`
	Password     string        `envconfig:"THREADLINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"THREADLINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"THREADLINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"THREADLINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"THREADLINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"THREADLINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"THREADLINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"THREADLINE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"THREADLINE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"THREADLINE_JWT_EXPIRATION_MINUTES" default:"60"`
}

// PricingConfig carries the order total policy. The values are injected into
// the pricing calculator so tests can construct policies directly.
type PricingConfig struct {
	TaxRate                    string `envconfig:"THREADLINE_PRICING_TAX_RATE" default:"0.08"`
	FreeShippingThresholdCents int64  `envconfig:"THREADLINE_PRICING_FREE_SHIPPING_THRESHOLD_CENTS" default:"5000"`
	FlatShippingCents          int64  `envconfig:"THREADLINE_PRICING_FLAT_SHIPPING_CENTS" default:"999"`
}

type OrdersConfig struct {
	// PendingExpiry bounds how long stock stays reserved for an unpaid order
	// before the cron worker cancels it and restores inventory.
	PendingExpiry      time.Duration `envconfig:"THREADLINE_ORDER_PENDING_EXPIRY" default:"24h"`
	WebhookDedupTTL    time.Duration `envconfig:"THREADLINE_WEBHOOK_DEDUP_TTL" default:"720h"`
	IdempotencyTTL     time.Duration `envconfig:"THREADLINE_REQUEST_IDEMPOTENCY_TTL" default:"24h"`
	NumberRetryBudget  int           `envconfig:"THREADLINE_ORDER_NUMBER_RETRIES" default:"5"`
	ExpirySweepBatch   int           `envconfig:"THREADLINE_ORDER_EXPIRY_SWEEP_BATCH" default:"100"`
	ExpirySweepEnabled bool          `envconfig:"THREADLINE_ORDER_EXPIRY_SWEEP_ENABLED" default:"true"`
}

type StripeConfig struct {
	APIKey string `envconfig:"THREADLINE_STRIPE_API_KEY"`
	Secret string `envconfig:"THREADLINE_STRIPE_SECRET"`
	Env    string `envconfig:"THREADLINE_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"THREADLINE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range componentDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
