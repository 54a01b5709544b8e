package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "CARDHAUS_DB_DSN"
	EnvDBHost = "CARDHAUS_DB_HOST"
	EnvDBUser = "CARDHAUS_DB_USER"
	EnvDBName = "CARDHAUS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Stripe       StripeConfig
	Outbox       OutboxConfig
	Settlement   SettlementConfig
	Shipping     ShippingConfig
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
	Env          string `envconfig:"CARDHAUS_APP_ENV" required:"true"`
	Port         string `envconfig:"CARDHAUS_APP_PORT" required:"true"`
	BaseURL      string `envconfig:"CARDHAUS_APP_BASE_URL" default:"http://localhost:3000"`
	LogLevel     string `envconfig:"CARDHAUS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CARDHAUS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CARDHAUS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CARDHAUS_DB_DSN"`
	Driver string `envconfig:"CARDHAUS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CARDHAUS_DB_HOST"`
	LegacyPort     int    `envconfig:"CARDHAUS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CARDHAUS_DB_USER"`
	LegacyPassword string `envconfig:"CARDHAUS_DB_PASSWORD"`
	LegacyName     string `envconfig:"CARDHAUS_DB_NAME"`
	LegacySSLMode  string `envconfig:"CARDHAUS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CARDHAUS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CARDHAUS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CARDHAUS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CARDHAUS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CARDHAUS_REDIS_URL" required:"true"`
	Password     string        `envconfig:"CARDHAUS_REDIS_PASSWORD"`
	DB           int           `envconfig:"CARDHAUS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CARDHAUS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CARDHAUS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CARDHAUS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CARDHAUS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CARDHAUS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CARDHAUS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CARDHAUS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CARDHAUS_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CARDHAUS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CARDHAUS_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	WebhookIdempotencyTTL  time.Duration `envconfig:"CARDHAUS_EVENTING_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
	ConsumerIdempotencyTTL time.Duration `envconfig:"CARDHAUS_EVENTING_CONSUMER_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CARDHAUS_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"CARDHAUS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CARDHAUS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic              string `envconfig:"CARDHAUS_PUBSUB_DOMAIN_TOPIC" default:"ch-domain-events"`
	NotificationSubscription string `envconfig:"CARDHAUS_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"ch-notification-events"`
}

type StripeConfig struct {
	APIKey string `envconfig:"CARDHAUS_STRIPE_API_KEY"`
	Secret string `envconfig:"CARDHAUS_STRIPE_SECRET"`
	Env    string `envconfig:"CARDHAUS_STRIPE_ENV" default:"test"`

	CheckoutSuccessPath string `envconfig:"CARDHAUS_STRIPE_CHECKOUT_SUCCESS_PATH" default:"/checkout/success"`
	CheckoutCancelPath  string `envconfig:"CARDHAUS_STRIPE_CHECKOUT_CANCEL_PATH" default:"/checkout/cancel"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CARDHAUS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CARDHAUS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CARDHAUS_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type SettlementConfig struct {
	MaxConcurrentTransfers int `envconfig:"CARDHAUS_SETTLEMENT_MAX_CONCURRENT_TRANSFERS" default:"4"`
}

type ShippingConfig struct {
	FlatRateCents int `envconfig:"CARDHAUS_SHIPPING_FLAT_RATE_CENTS" default:"350"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
