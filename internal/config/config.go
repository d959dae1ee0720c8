package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	// ConfigFile is the optional YAML/TOML/JSON file layered under the environment.
	ConfigFile string
	// NodeID seeds the snowflake generator; each replica needs its own.
	NodeID int64

	AuthJWTSecret string

	Database      DatabaseConfig
	Redis         RedisConfig
	Posting       PostingConfig
	RateLimit     RateLimitConfig
	Observability ObservabilityConfig

	VatCacheTTL time.Duration
}

type DatabaseConfig struct {
	Type            string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime int
	ConnMaxIdleTime int
	Metrics         bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

type PostingConfig struct {
	Timeout             time.Duration
	MaxAttempts         int
	BackoffBase         time.Duration
	MissingPeriodPolicy string
}

// RateLimitConfig bounds posting throughput per organization. It needs Redis.
type RateLimitConfig struct {
	Enabled         bool
	PostingOrgRate  float64
	PostingOrgBurst int
}

type ObservabilityConfig struct {
	LogLevel          string
	LogFormat         string
	OtelEnabled       bool
	OtelEndpoint      string
	OtelProtocol      string
	OtelSamplingRatio float64
}

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Load loads configuration from environment variables, the .env file and
// the optional file named by BOOKKEEPING_CONFIG. A named file that cannot
// be read or parsed is an error; defaults are never silently substituted.
func Load() (Config, error) {
	_ = godotenv.Load()
	v, err := newViper()
	if err != nil {
		return Config{}, err
	}
	return fromViper(v), nil
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if file := strings.TrimSpace(v.GetString("bookkeeping.config")); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "bookkeeping")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("environment", EnvDevelopment)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("bookkeeping.config", "")
	v.SetDefault("node.id", 1)

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("database.type", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "bookkeeping")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conn", 10)
	v.SetDefault("database.max_open_conn", 50)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.conn_max_idle_time", 60)
	v.SetDefault("database.metrics", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("posting.timeout", "10s")
	v.SetDefault("posting.max_attempts", 5)
	v.SetDefault("posting.backoff_base", "20ms")
	v.SetDefault("posting.missing_period_policy", "open")

	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.posting_org_rate", 20)
	v.SetDefault("ratelimit.posting_org_burst", 40)

	v.SetDefault("vat.cache_ttl", "5m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.exporter_endpoint", "localhost:4317")
	v.SetDefault("otel.exporter_protocol", "grpc")
	v.SetDefault("otel.sampling_ratio", 0.1)
}

func fromViper(v *viper.Viper) Config {
	maxAttempts := v.GetInt("posting.max_attempts")
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return Config{
		AppName:       strings.TrimSpace(v.GetString("app.name")),
		AppVersion:    strings.TrimSpace(v.GetString("app.version")),
		Environment:   strings.ToLower(strings.TrimSpace(v.GetString("environment"))),
		HTTPAddr:      strings.TrimSpace(v.GetString("http.addr")),
		ConfigFile:    strings.TrimSpace(v.GetString("bookkeeping.config")),
		NodeID:        v.GetInt64("node.id"),
		AuthJWTSecret: strings.TrimSpace(v.GetString("auth.jwt_secret")),
		Database: DatabaseConfig{
			Type:            strings.ToLower(strings.TrimSpace(v.GetString("database.type"))),
			Host:            v.GetString("database.host"),
			Port:            v.GetString("database.port"),
			Name:            v.GetString("database.name"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxIdleConn:     v.GetInt("database.max_idle_conn"),
			MaxOpenConn:     v.GetInt("database.max_open_conn"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			Metrics:         v.GetBool("database.metrics"),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(v.GetString("redis.addr")),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Posting: PostingConfig{
			Timeout:             v.GetDuration("posting.timeout"),
			MaxAttempts:         maxAttempts,
			BackoffBase:         v.GetDuration("posting.backoff_base"),
			MissingPeriodPolicy: strings.ToLower(strings.TrimSpace(v.GetString("posting.missing_period_policy"))),
		},
		RateLimit: RateLimitConfig{
			Enabled:         v.GetBool("ratelimit.enabled"),
			PostingOrgRate:  v.GetFloat64("ratelimit.posting_org_rate"),
			PostingOrgBurst: v.GetInt("ratelimit.posting_org_burst"),
		},
		Observability: ObservabilityConfig{
			LogLevel:          strings.ToLower(strings.TrimSpace(v.GetString("log.level"))),
			LogFormat:         strings.ToLower(strings.TrimSpace(v.GetString("log.format"))),
			OtelEnabled:       v.GetBool("otel.enabled"),
			OtelEndpoint:      strings.TrimSpace(v.GetString("otel.exporter_endpoint")),
			OtelProtocol:      strings.ToLower(strings.TrimSpace(v.GetString("otel.exporter_protocol"))),
			OtelSamplingRatio: v.GetFloat64("otel.sampling_ratio"),
		},
		VatCacheTTL: v.GetDuration("vat.cache_ttl"),
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == EnvProduction
}
