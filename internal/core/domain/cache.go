package domain

import (
	"context"
	"time"
)

// Cache is the read-view cache. Implementations fail open: Get misses and
// Set/InvalidatePattern are skipped when the backend is unreachable, so
// callers never handle cache errors.
type Cache interface {
	// Get decodes the cached value for key into dest and reports a hit.
	Get(ctx context.Context, key string, dest any) bool

	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value any, ttl time.Duration)

	// InvalidatePattern deletes every key matching the glob pattern.
	InvalidatePattern(ctx context.Context, pattern string)
}
