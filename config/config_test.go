package config

import (
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func validConfig() *Config {
	return &Config{
		Service: ServiceConfig{Name: "qa-service", Port: "8080"},
		Database: DatabaseConfig{
			Driver:         StoreDriverPostgres,
			Host:           "localhost",
			Port:           5432,
			Name:           "qa",
			User:           "qa",
			SSLMode:        "disable",
			MaxConns:       10,
			AcquireTimeout: 3 * time.Second,
		},
		JWT: JWTConfig{
			Secret:        strings.Repeat("a", 32),
			RefreshSecret: strings.Repeat("b", 32),
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
		},
		Cache: CacheConfig{
			Driver:            CacheDriverLocal,
			TTL:               5 * time.Minute,
			Timeout:           200 * time.Millisecond,
			InvalidateTimeout: 5 * time.Second,
		},
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]struct {
		mutate  func(*Config)
		wantErr string
	}{
		"valid": {
			mutate: func(*Config) {},
		},
		"memory store skips db settings": {
			mutate: func(c *Config) {
				c.Database = DatabaseConfig{Driver: StoreDriverMemory}
			},
		},
		"short access secret": {
			mutate:  func(c *Config) { c.JWT.Secret = "short" },
			wantErr: "JWT_SECRET must be at least",
		},
		"short refresh secret": {
			mutate:  func(c *Config) { c.JWT.RefreshSecret = "short" },
			wantErr: "JWT_REFRESH_SECRET must be at least",
		},
		"shared secret": {
			mutate:  func(c *Config) { c.JWT.RefreshSecret = c.JWT.Secret },
			wantErr: "must differ",
		},
		"unknown cache driver": {
			mutate:  func(c *Config) { c.Cache.Driver = "memcached" },
			wantErr: "CACHE_DRIVER",
		},
		"redis without host": {
			mutate:  func(c *Config) { c.Cache.Driver = CacheDriverRedis },
			wantErr: "REDIS_HOST is required",
		},
		"redis with host": {
			mutate: func(c *Config) {
				c.Cache.Driver = CacheDriverRedis
				c.Redis = RedisConfig{Host: "cache", Port: 6379}
			},
		},
		"invalidate timeout below call timeout": {
			mutate:  func(c *Config) { c.Cache.InvalidateTimeout = 100 * time.Millisecond },
			wantErr: "CACHE_INVALIDATE_TIMEOUT",
		},
		"unknown store driver": {
			mutate:  func(c *Config) { c.Database.Driver = "mysql" },
			wantErr: "STORE_DRIVER",
		},
		"bad port": {
			mutate:  func(c *Config) { c.Service.Port = "http" },
			wantErr: "PORT",
		},
		"missing db host": {
			mutate:  func(c *Config) { c.Database.Host = "" },
			wantErr: "DB_HOST is required",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %s", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("want error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", strings.Repeat("s", 40))
	t.Setenv("JWT_REFRESH_SECRET", strings.Repeat("r", 40))
	t.Setenv("CACHE_DRIVER", "LOCAL")

	cfg := Load()

	if cfg.Service.Port != "8080" {
		t.Errorf("want default port 8080, got %q", cfg.Service.Port)
	}
	if cfg.JWT.AccessTTL != 15*time.Minute {
		t.Errorf("want 15m access ttl, got %s", cfg.JWT.AccessTTL)
	}
	if cfg.JWT.RefreshTTL != 168*time.Hour {
		t.Errorf("want 168h refresh ttl, got %s", cfg.JWT.RefreshTTL)
	}
	if cfg.Cache.Driver != CacheDriverLocal {
		t.Errorf("want lower-cased cache driver, got %q", cfg.Cache.Driver)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults with secrets must validate: %s", err)
	}
}

func TestLoadCacheDefaults(t *testing.T) {
	t.Setenv("CACHE_DRIVER", "")
	t.Setenv("REDIS_HOST", "")

	cfg := Load()

	if cfg.Cache.Driver != CacheDriverLocal {
		t.Errorf("without a redis host the cache must default to local, got %q", cfg.Cache.Driver)
	}
	if cfg.Cache.InvalidateTimeout != 5*time.Second {
		t.Errorf("want 5s invalidate timeout, got %s", cfg.Cache.InvalidateTimeout)
	}
}

func TestDSNEscapesCredentials(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		Name:     "qa",
		User:     "qa user",
		Password: "p@ss/w#rd?:%",
		SSLMode:  "require",
		MaxConns: 7,
	}

	pc, err := pgxpool.ParseConfig(d.DSN())
	if err != nil {
		t.Fatalf("parse %q: %s", d.DSN(), err)
	}
	cc := pc.ConnConfig
	if cc.Host != "db.internal" || cc.Port != 5433 || cc.Database != "qa" {
		t.Errorf("wrong target %s:%d/%s", cc.Host, cc.Port, cc.Database)
	}
	if cc.User != d.User || cc.Password != d.Password {
		t.Errorf("credentials mangled: user %q password %q", cc.User, cc.Password)
	}
	if pc.MaxConns != 7 {
		t.Errorf("want 7 max conns, got %d", pc.MaxConns)
	}
}

func TestShutdownDurations(t *testing.T) {
	cfg := &Config{Shutdown: ShutdownConfig{ReadinessDrainDelay: "2s", Timeout: "garbage"}}

	if got := cfg.GetReadinessDrainDelayDuration(); got != 2*time.Second {
		t.Errorf("want 2s, got %s", got)
	}
	if got := cfg.GetShutdownTimeoutDuration(); got != 10*time.Second {
		t.Errorf("want fallback 10s, got %s", got)
	}
}

func TestRedisAddr(t *testing.T) {
	if got := (RedisConfig{}).Addr(); got != "" {
		t.Errorf("unconfigured redis must have empty addr, got %q", got)
	}
	if got := (RedisConfig{Host: "cache", Port: 6380}).Addr(); got != "cache:6380" {
		t.Errorf("want cache:6380, got %q", got)
	}
}
