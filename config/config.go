// Package config loads service configuration from the environment.
//
// Values are read from an optional .env file first (joho/godotenv), then from
// process environment through viper. Every key has a default so the service
// starts locally with only the JWT secrets set.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Cache drivers.
const (
	CacheDriverRedis = "redis"
	CacheDriverLocal = "local"
	CacheDriverNone  = "none"
)

// minSecretLength is the shortest accepted HMAC secret.
const minSecretLength = 32

// Config is the root configuration structure.
type Config struct {
	Service   ServiceConfig
	Logging   LoggingConfig
	Tracing   TracingConfig
	Profiling ProfilingConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Shutdown  ShutdownConfig
}

// ServiceConfig identifies the running service.
type ServiceConfig struct {
	Name    string
	Version string
	Env     string
	Port    string
}

// LoggingConfig controls zerolog.
type LoggingConfig struct {
	Level string
}

// TracingConfig controls the OpenTelemetry exporter.
type TracingConfig struct {
	Enabled    bool
	Endpoint   string
	SampleRate float64
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled  bool
	Endpoint string
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	Driver         string
	Host           string
	Port           int
	Name           string
	User           string
	Password       string
	SSLMode        string
	MaxConns       int32
	AcquireTimeout time.Duration
	AutoMigrate    bool
}

// JWTConfig holds the two independent token secrets and their lifetimes.
type JWTConfig struct {
	Secret        string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// RedisConfig holds the cache backend address.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig controls the read-view cache.
type CacheConfig struct {
	Driver            string
	TTL               time.Duration
	Timeout           time.Duration
	InvalidateTimeout time.Duration
	LocalMaxSize      int
}

// ShutdownConfig controls graceful shutdown.
type ShutdownConfig struct {
	ReadinessDrainDelay string
	Timeout             string
}

// Load reads configuration from .env (if present) and the environment.
func Load() *Config {
	// Missing .env is the normal case in containers.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return &Config{
		Service: ServiceConfig{
			Name:    v.GetString("SERVICE_NAME"),
			Version: v.GetString("SERVICE_VERSION"),
			Env:     v.GetString("ENV"),
			Port:    v.GetString("PORT"),
		},
		Logging: LoggingConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
		Tracing: TracingConfig{
			Enabled:    v.GetBool("TRACING_ENABLED"),
			Endpoint:   v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			SampleRate: v.GetFloat64("OTEL_SAMPLE_RATE"),
		},
		Profiling: ProfilingConfig{
			Enabled:  v.GetBool("PROFILING_ENABLED"),
			Endpoint: v.GetString("PYROSCOPE_ENDPOINT"),
		},
		Database: DatabaseConfig{
			Driver:         strings.ToLower(v.GetString("STORE_DRIVER")),
			Host:           v.GetString("DB_HOST"),
			Port:           v.GetInt("DB_PORT"),
			Name:           v.GetString("DB_NAME"),
			User:           v.GetString("DB_USER"),
			Password:       v.GetString("DB_PASSWORD"),
			SSLMode:        v.GetString("DB_SSLMODE"),
			MaxConns:       v.GetInt32("DB_POOL_MAX_CONNECTIONS"),
			AcquireTimeout: v.GetDuration("DB_ACQUIRE_TIMEOUT"),
			AutoMigrate:    v.GetBool("DB_AUTO_MIGRATE"),
		},
		JWT: JWTConfig{
			Secret:        v.GetString("JWT_SECRET"),
			RefreshSecret: v.GetString("JWT_REFRESH_SECRET"),
			AccessTTL:     v.GetDuration("JWT_ACCESS_TTL"),
			RefreshTTL:    v.GetDuration("JWT_REFRESH_TTL"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Cache: CacheConfig{
			Driver:            strings.ToLower(v.GetString("CACHE_DRIVER")),
			TTL:               v.GetDuration("CACHE_TTL"),
			Timeout:           v.GetDuration("CACHE_TIMEOUT"),
			InvalidateTimeout: v.GetDuration("CACHE_INVALIDATE_TIMEOUT"),
			LocalMaxSize:      v.GetInt("CACHE_LOCAL_MAX_SIZE"),
		},
		Shutdown: ShutdownConfig{
			ReadinessDrainDelay: v.GetString("READINESS_DRAIN_DELAY"),
			Timeout:             v.GetString("SHUTDOWN_TIMEOUT"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "qa-service")
	v.SetDefault("SERVICE_VERSION", "dev")
	v.SetDefault("ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")
	v.SetDefault("OTEL_SAMPLE_RATE", 0.1)
	v.SetDefault("PROFILING_ENABLED", false)
	v.SetDefault("PYROSCOPE_ENDPOINT", "http://localhost:4040")

	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_NAME", "qa")
	v.SetDefault("DB_USER", "qa")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_POOL_MAX_CONNECTIONS", 20)
	v.SetDefault("DB_ACQUIRE_TIMEOUT", "3s")
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h")

	v.SetDefault("REDIS_HOST", "")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("CACHE_DRIVER", CacheDriverLocal)
	v.SetDefault("CACHE_TTL", "5m")
	v.SetDefault("CACHE_TIMEOUT", "200ms")
	v.SetDefault("CACHE_INVALIDATE_TIMEOUT", "5s")
	v.SetDefault("CACHE_LOCAL_MAX_SIZE", 1024)

	v.SetDefault("READINESS_DRAIN_DELAY", "5s")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := strconv.Atoi(c.Service.Port); err != nil {
		errs = append(errs, fmt.Errorf("PORT %q is not a number", c.Service.Port))
	}

	switch c.Database.Driver {
	case StoreDriverPostgres:
		if c.Database.Host == "" {
			errs = append(errs, errors.New("DB_HOST is required"))
		}
		if c.Database.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required"))
		}
		if c.Database.User == "" {
			errs = append(errs, errors.New("DB_USER is required"))
		}
		if c.Database.MaxConns <= 0 {
			errs = append(errs, errors.New("DB_POOL_MAX_CONNECTIONS must be positive"))
		}
		if c.Database.AcquireTimeout <= 0 {
			errs = append(errs, errors.New("DB_ACQUIRE_TIMEOUT must be positive"))
		}
	case StoreDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q is not one of postgres, memory", c.Database.Driver))
	}

	if len(c.JWT.Secret) < minSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLength))
	}
	if len(c.JWT.RefreshSecret) < minSecretLength {
		errs = append(errs, fmt.Errorf("JWT_REFRESH_SECRET must be at least %d characters", minSecretLength))
	}
	if c.JWT.Secret != "" && c.JWT.Secret == c.JWT.RefreshSecret {
		errs = append(errs, errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ"))
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		errs = append(errs, errors.New("JWT_ACCESS_TTL and JWT_REFRESH_TTL must be positive"))
	}

	switch c.Cache.Driver {
	case CacheDriverRedis:
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("REDIS_HOST is required when CACHE_DRIVER=redis"))
		}
	case CacheDriverLocal, CacheDriverNone:
	default:
		errs = append(errs, fmt.Errorf("CACHE_DRIVER %q is not one of redis, local, none", c.Cache.Driver))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive"))
	}
	if c.Cache.Timeout <= 0 {
		errs = append(errs, errors.New("CACHE_TIMEOUT must be positive"))
	}
	if c.Cache.InvalidateTimeout < c.Cache.Timeout {
		errs = append(errs, errors.New("CACHE_INVALIDATE_TIMEOUT must not be shorter than CACHE_TIMEOUT"))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, errors.New("OTEL_SAMPLE_RATE must be within [0, 1]"))
	}

	return errors.Join(errs...)
}

// DSN returns the pgx connection string with every component escaped.
func (d DatabaseConfig) DSN() string {
	q := url.Values{}
	q.Set("sslmode", d.SSLMode)
	q.Set("pool_max_conns", strconv.Itoa(int(d.MaxConns)))
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Addr returns the redis host:port pair, empty when redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// GetReadinessDrainDelayDuration parses READINESS_DRAIN_DELAY, falling back to 5s.
func (c *Config) GetReadinessDrainDelayDuration() time.Duration {
	return parseDurationOr(c.Shutdown.ReadinessDrainDelay, 5*time.Second)
}

// GetShutdownTimeoutDuration parses SHUTDOWN_TIMEOUT, falling back to 10s.
func (c *Config) GetShutdownTimeoutDuration() time.Duration {
	return parseDurationOr(c.Shutdown.Timeout, 10*time.Second)
}

func parseDurationOr(raw string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return def
	}
	return d
}
