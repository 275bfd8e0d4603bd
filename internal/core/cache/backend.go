// Package cache implements the read-view cache. Backends store raw bytes and
// report errors; Service wraps a backend, encodes values as JSON and absorbs
// every backend failure so the cache can only ever make the service slower,
// never incorrect.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMiss is returned by Backend.Get when the key is absent or expired.
	ErrMiss = errors.New("cache miss")

	// ErrUnavailable is returned by backends that cannot reach their server.
	// It never leaves this package: Service logs and absorbs it.
	ErrUnavailable = errors.New("cache unavailable")
)

// Backend is a byte-oriented key/value store with TTL and glob deletion.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeletePattern removes every key matching the glob pattern and returns
	// how many were removed.
	DeletePattern(ctx context.Context, pattern string) (int, error)
}

// NoopBackend always misses. It is used when no cache is configured.
type NoopBackend struct{}

func (NoopBackend) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }

func (NoopBackend) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NoopBackend) DeletePattern(context.Context, string) (int, error) { return 0, nil }
