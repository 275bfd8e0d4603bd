package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/duynhne/qa-service/config"
	"github.com/duynhne/qa-service/internal/logger"
	logicv1 "github.com/duynhne/qa-service/internal/logic/v1"
	v1 "github.com/duynhne/qa-service/internal/web/v1"
	"github.com/duynhne/qa-service/middleware"
)

const startupTimeout = 30 * time.Second

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		panic("Configuration validation failed: " + err.Error())
	}
	logger.Setup(cfg.Logging.Level)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("Service stopped with error")
	}
	log.Info().Msg("Graceful shutdown complete")
}

func run(cfg *config.Config) error {
	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("env", cfg.Service.Env).
		Str("store", describeStore(cfg.Database)).
		Str("cache", cfg.Cache.Driver).
		Msg("Service starting")

	stopTelemetry := startTelemetry(cfg)

	startCtx, cancelStart := context.WithTimeout(context.Background(), startupTimeout)
	defer cancelStart()

	st, err := openStores(startCtx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.close()

	queryCache, closeCache := openCache(startCtx, cfg)
	defer closeCache()

	tokens := logicv1.NewTokenService(cfg.JWT)
	invalidation := logicv1.NewInvalidationPolicy(queryCache)
	api := v1.NewHandler(
		logicv1.NewAuthService(st.users, st.sessions, st.tx, tokens),
		logicv1.NewVoteService(st.votes, st.content, st.tx, invalidation),
		logicv1.NewContentService(st.content, st.tx, queryCache, invalidation, cfg.Cache.TTL),
		logicv1.NewUserService(st.profiles),
	)

	var draining atomic.Bool
	srv := &http.Server{
		Addr:              ":" + cfg.Service.Port,
		Handler:           newRouter(cfg, api, st, &draining),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Service.Port).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	case <-sigCtx.Done():
		log.Info().Msg("Shutdown signal received")
	}

	// Readiness flips first so the load balancer stops routing before
	// in-flight requests are drained.
	draining.Store(true)
	if delay := cfg.GetReadinessDrainDelayDuration(); delay > 0 {
		log.Info().Dur("delay", delay).Msg("Waiting for readiness to propagate")
		time.Sleep(delay)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeoutDuration())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	stopTelemetry(shutdownCtx)
	return nil
}

// startTelemetry enables tracing and profiling as configured. Failures are
// logged; the service runs without them.
func startTelemetry(cfg *config.Config) func(context.Context) {
	var stops []func(context.Context)

	if cfg.Tracing.Enabled {
		tp, err := middleware.InitTracing(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing")
		} else {
			log.Info().
				Str("endpoint", cfg.Tracing.Endpoint).
				Float64("sample_rate", cfg.Tracing.SampleRate).
				Msg("Tracing initialized")
			stops = append(stops, func(ctx context.Context) {
				if err := tp.Shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Tracer shutdown error")
				}
			})
		}
	}

	if cfg.Profiling.Enabled {
		if err := middleware.InitProfiling(cfg); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize profiling")
		} else {
			log.Info().Str("endpoint", cfg.Profiling.Endpoint).Msg("Profiling initialized")
			stops = append(stops, func(context.Context) { middleware.StopProfiling() })
		}
	}

	return func(ctx context.Context) {
		for _, stop := range stops {
			stop(ctx)
		}
	}
}

func newRouter(cfg *config.Config, api *v1.Handler, st *stores, draining *atomic.Bool) *gin.Engine {
	if cfg.Service.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.TracingMiddleware(),
		middleware.LoggingMiddleware(),
		middleware.PrometheusMiddleware(),
	)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if draining.Load() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "shutting_down"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.Database.AcquireTimeout)
		defer cancel()
		if err := st.ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store_unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api.RegisterRoutes(r.Group("/api/v1"))
	return r
}
