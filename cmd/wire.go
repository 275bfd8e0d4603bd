package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/duynhne/qa-service/config"
	database "github.com/duynhne/qa-service/internal/core"
	"github.com/duynhne/qa-service/internal/core/cache"
	"github.com/duynhne/qa-service/internal/core/domain"
	"github.com/duynhne/qa-service/internal/core/repository"
	"github.com/duynhne/qa-service/internal/core/repository/memory"
)

// stores bundles the repositories of one store driver.
type stores struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
	votes    domain.VoteRepository
	content  domain.ContentRepository
	profiles domain.ProfileRepository
	tx       domain.Transactor
	ping     func(ctx context.Context) error
	close    func()
}

func openStores(ctx context.Context, cfg config.DatabaseConfig) (*stores, error) {
	if cfg.Driver == config.StoreDriverMemory {
		log.Warn().Msg("Using in-memory store, data is lost on restart")
		m := memory.New()
		return &stores{
			users:    m.Users(),
			sessions: m.Sessions(),
			votes:    m.Votes(),
			content:  m.Content(),
			profiles: m.Profiles(),
			tx:       m,
			ping:     func(context.Context) error { return nil },
			close:    func() {},
		}, nil
	}

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info().Str("host", cfg.Host).Str("database", cfg.Name).Msg("Database connection pool established")

	if cfg.AutoMigrate {
		if err := database.LoadSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info().Msg("Database schema applied")
	}

	db := repository.NewDB(pool, cfg.AcquireTimeout)
	return &stores{
		users:    repository.NewUserRepository(db),
		sessions: repository.NewSessionRepository(db),
		votes:    repository.NewVoteRepository(db),
		content:  repository.NewContentRepository(db),
		profiles: repository.NewProfileRepository(db),
		tx:       db,
		ping:     pool.Ping,
		close:    pool.Close,
	}, nil
}

// openCache never fails: an unreachable Redis is logged and used anyway,
// since every cache call fails open.
func openCache(ctx context.Context, cfg *config.Config) (*cache.Service, func()) {
	invalidateTimeout := cache.WithInvalidateTimeout(cfg.Cache.InvalidateTimeout)
	switch cfg.Cache.Driver {
	case config.CacheDriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  cfg.Cache.Timeout,
			ReadTimeout:  cfg.Cache.Timeout,
			WriteTimeout: cfg.Cache.Timeout,
		})
		backend := cache.NewRedisBackend(client)

		pingCtx, cancel := context.WithTimeout(ctx, cfg.Cache.Timeout)
		defer cancel()
		if err := backend.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr()).Msg("Redis unreachable, cache degraded until it recovers")
		} else {
			log.Info().Str("addr", cfg.Redis.Addr()).Msg("Redis cache connected")
		}
		return cache.New(backend, cfg.Cache.Timeout, invalidateTimeout), func() {
			if err := client.Close(); err != nil {
				log.Error().Err(err).Msg("Redis client close error")
			}
		}
	case config.CacheDriverLocal:
		log.Info().Int("max_size", cfg.Cache.LocalMaxSize).Msg("Using in-process cache")
		return cache.New(cache.NewLocalBackend(cfg.Cache.LocalMaxSize), cfg.Cache.Timeout, invalidateTimeout), func() {}
	default:
		log.Info().Msg("Cache disabled (CACHE_DRIVER=none)")
		return cache.New(cache.NoopBackend{}, cfg.Cache.Timeout), func() {}
	}
}

func describeStore(cfg config.DatabaseConfig) string {
	if cfg.Driver == config.StoreDriverMemory {
		return "memory"
	}
	return fmt.Sprintf("postgres://%s:%d/%s", cfg.Host, cfg.Port, cfg.Name)
}
