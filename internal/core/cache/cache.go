package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/duynhne/qa-service/internal/logger"
	"github.com/duynhne/qa-service/middleware"
)

// DefaultInvalidateTimeout bounds a pattern invalidation unless
// WithInvalidateTimeout says otherwise.
const DefaultInvalidateTimeout = 5 * time.Second

// Service implements domain.Cache over a Backend. Get and Set are bounded by
// timeout, InvalidatePattern by the separate invalidate timeout; failures are
// logged, counted and swallowed.
type Service struct {
	backend           Backend
	timeout           time.Duration
	invalidateTimeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithInvalidateTimeout bounds InvalidatePattern, which walks the keyspace
// and needs more time than a single Get or Set.
func WithInvalidateTimeout(d time.Duration) Option {
	return func(s *Service) { s.invalidateTimeout = d }
}

// New creates a Service. A nil backend behaves as NoopBackend. The invalidate
// timeout is never shorter than timeout.
func New(backend Backend, timeout time.Duration, opts ...Option) *Service {
	if backend == nil {
		backend = NoopBackend{}
	}
	s := &Service{
		backend:           backend,
		timeout:           timeout,
		invalidateTimeout: DefaultInvalidateTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.invalidateTimeout = max(s.invalidateTimeout, timeout)
	return s
}

// Get decodes the cached value for key into dest and reports a hit.
func (s *Service) Get(ctx context.Context, key string, dest any) bool {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.backend.Get(cctx, key)
	switch {
	case errors.Is(err, ErrMiss):
		middleware.CacheOperationsTotal.WithLabelValues("get", "miss").Inc()
		return false
	case err != nil:
		middleware.CacheOperationsTotal.WithLabelValues("get", "error").Inc()
		logger.FromContext(ctx).Warn().Err(err).Str("key", key).Msg("Cache get failed, treating as miss")
		return false
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		middleware.CacheOperationsTotal.WithLabelValues("get", "error").Inc()
		logger.FromContext(ctx).Warn().Err(err).Str("key", key).Msg("Cache entry undecodable, treating as miss")
		return false
	}
	middleware.CacheOperationsTotal.WithLabelValues("get", "hit").Inc()
	return true
}

// Set stores value under key for ttl. It survives cancellation of ctx.
func (s *Service) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		middleware.CacheOperationsTotal.WithLabelValues("set", "error").Inc()
		logger.FromContext(ctx).Warn().Err(err).Str("key", key).Msg("Cache value not encodable, skipping")
		return
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if err := s.backend.Set(cctx, key, raw, ttl); err != nil {
		middleware.CacheOperationsTotal.WithLabelValues("set", "error").Inc()
		logger.FromContext(ctx).Warn().Err(err).Str("key", key).Msg("Cache set failed, skipping")
		return
	}
	middleware.CacheOperationsTotal.WithLabelValues("set", "ok").Inc()
}

// InvalidatePattern deletes every key matching pattern. It survives
// cancellation of ctx: an invalidation following a committed write must run
// even if the client went away.
func (s *Service) InvalidatePattern(ctx context.Context, pattern string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.invalidateTimeout)
	defer cancel()

	n, err := s.backend.DeletePattern(cctx, pattern)
	if err != nil {
		middleware.CacheOperationsTotal.WithLabelValues("invalidate", "error").Inc()
		logger.FromContext(ctx).Warn().Err(err).Str("pattern", pattern).Msg("Cache invalidation failed")
		return
	}
	middleware.CacheOperationsTotal.WithLabelValues("invalidate", "ok").Inc()
	logger.FromContext(ctx).Debug().Str("pattern", pattern).Int("deleted", n).Msg("Cache invalidated")
}
