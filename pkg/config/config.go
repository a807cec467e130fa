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
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	Books    BooksConfig
	Currency CurrencyConfig
	PubSub   PubSubConfig
	Cron     CronConfig
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
	Env          string `envconfig:"BRIDGE_APP_ENV" required:"true"`
	Port         string `envconfig:"BRIDGE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BRIDGE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BRIDGE_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"BRIDGE_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BRIDGE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BRIDGE_DB_DSN"`
	Driver string `envconfig:"BRIDGE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BRIDGE_DB_HOST"`
	LegacyPort     int    `envconfig:"BRIDGE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BRIDGE_DB_USER"`
	LegacyPassword string `envconfig:"BRIDGE_DB_PASSWORD"`
	LegacyName     string `envconfig:"BRIDGE_DB_NAME"`
	LegacySSLMode  string `envconfig:"BRIDGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BRIDGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BRIDGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BRIDGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BRIDGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BRIDGE_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"BRIDGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BRIDGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BRIDGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BRIDGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BRIDGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// BooksConfig configures the accounting ledger client.
type BooksConfig struct {
	ClientID     string        `envconfig:"BRIDGE_BOOKS_CLIENT_ID" required:"true"`
	ClientSecret string        `envconfig:"BRIDGE_BOOKS_CLIENT_SECRET" required:"true"`
	Env          string        `envconfig:"BRIDGE_BOOKS_ENV" default:"sandbox"`
	APIBaseURL   string        `envconfig:"BRIDGE_BOOKS_API_BASE_URL"`
	TokenURL     string        `envconfig:"BRIDGE_BOOKS_TOKEN_URL"`
	HTTPTimeout  time.Duration `envconfig:"BRIDGE_BOOKS_HTTP_TIMEOUT" default:"30s"`

	// BridgeAccountName is the bank account each company settles through.
	BridgeAccountName string `envconfig:"BRIDGE_BOOKS_BRIDGE_ACCOUNT_NAME" default:"Left Coast Financial"`
	EquityAccountName string `envconfig:"BRIDGE_BOOKS_EQUITY_ACCOUNT_NAME" default:"Opening Balance Equity"`
}

// Environment returns the normalized books environment (sandbox/production).
func (b BooksConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(b.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

// CurrencyConfig configures the community-currency balance service client.
type CurrencyConfig struct {
	BaseURL     string        `envconfig:"BRIDGE_CURRENCY_BASE_URL" required:"true"`
	HTTPTimeout time.Duration `envconfig:"BRIDGE_CURRENCY_HTTP_TIMEOUT" default:"10s"`
}

type PubSubConfig struct {
	GCPProjectID         string `envconfig:"BRIDGE_GCP_PROJECT_ID" required:"true"`
	PurchaseTopic        string `envconfig:"BRIDGE_PUBSUB_PURCHASE_TOPIC" required:"true"`
	PurchaseSubscription string `envconfig:"BRIDGE_PUBSUB_PURCHASE_SUBSCRIPTION" required:"true"`
	PaymentTopic         string `envconfig:"BRIDGE_PUBSUB_PAYMENT_TOPIC" required:"true"`
	PaymentSubscription  string `envconfig:"BRIDGE_PUBSUB_PAYMENT_SUBSCRIPTION" required:"true"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"BRIDGE_CRON_INTERVAL" default:"24h"`
	LockTTL  time.Duration `envconfig:"BRIDGE_CRON_LOCK_TTL" default:"25h"`
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
