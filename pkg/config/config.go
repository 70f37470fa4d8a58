package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "entrega"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "ENTREGA_DB_DSN"
	EnvDBHost = "ENTREGA_DB_HOST"
	EnvDBUser = "ENTREGA_DB_USER"
	EnvDBName = "ENTREGA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App         AppConfig
	DB          DBConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Cache       CacheConfig
	Dispatch    DispatchConfig
	Idempotency IdempotencyConfig
	Cron        CronConfig
	PubSub      PubSubConfig
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
	Env          string `envconfig:"ENTREGA_APP_ENV" required:"true"`
	Port         string `envconfig:"ENTREGA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ENTREGA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ENTREGA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"ENTREGA_DB_DSN"`
	Driver string `envconfig:"ENTREGA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ENTREGA_DB_HOST"`
	LegacyPort     int    `envconfig:"ENTREGA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ENTREGA_DB_USER"`
	LegacyPassword string `envconfig:"ENTREGA_DB_PASSWORD"`
	LegacyName     string `envconfig:"ENTREGA_DB_NAME"`
	LegacySSLMode  string `envconfig:"ENTREGA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ENTREGA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ENTREGA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ENTREGA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ENTREGA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ENTREGA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ENTREGA_REDIS_ADDR"`
	Password     string        `envconfig:"ENTREGA_REDIS_PASSWORD"`
	DB           int           `envconfig:"ENTREGA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ENTREGA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ENTREGA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ENTREGA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ENTREGA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ENTREGA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"ENTREGA_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"ENTREGA_JWT_ISSUER" required:"true"`
}

// CacheConfig carries the TTL tiers for cached entities. Volatile aggregates
// (available orders, active drivers) stay short; slow-changing entities longer.
type CacheConfig struct {
	OpTimeout          time.Duration `envconfig:"ENTREGA_CACHE_OP_TIMEOUT" default:"250ms"`
	EntityTTL          time.Duration `envconfig:"ENTREGA_CACHE_ENTITY_TTL" default:"5m"`
	OrderTTL           time.Duration `envconfig:"ENTREGA_CACHE_ORDER_TTL" default:"1m"`
	DriverDeliveryTTL  time.Duration `envconfig:"ENTREGA_CACHE_DRIVER_DELIVERY_TTL" default:"60s"`
	VolatileListTTL    time.Duration `envconfig:"ENTREGA_CACHE_VOLATILE_LIST_TTL" default:"30s"`
	DriverStatsTTL     time.Duration `envconfig:"ENTREGA_CACHE_DRIVER_STATS_TTL" default:"5m"`
}

type DispatchConfig struct {
	AssignmentExpiry time.Duration `envconfig:"ENTREGA_DISPATCH_ASSIGNMENT_EXPIRY" default:"10m"`
}

type IdempotencyConfig struct {
	TTL       time.Duration `envconfig:"ENTREGA_IDEMPOTENCY_TTL" default:"24h"`
	Retention time.Duration `envconfig:"ENTREGA_IDEMPOTENCY_RETENTION" default:"72h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"ENTREGA_CRON_INTERVAL" default:"60s"`
	LockKey  string        `envconfig:"ENTREGA_CRON_LOCK_KEY" default:"cron:leader"`
	LockTTL  time.Duration `envconfig:"ENTREGA_CRON_LOCK_TTL" default:"55s"`
}

type PubSubConfig struct {
	ProjectID        string `envconfig:"ENTREGA_GCP_PROJECT_ID"`
	OrderEventsTopic string `envconfig:"ENTREGA_PUBSUB_ORDER_EVENTS_TOPIC" default:"order-status-events"`
}

// Enabled reports whether the Pub/Sub notifier should be wired at all.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.ProjectID) != "" && strings.TrimSpace(p.OrderEventsTopic) != ""
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
