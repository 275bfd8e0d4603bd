package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanBatch bounds both SCAN page size and the number of keys per DEL.
const scanBatch = 500

// RedisBackend stores entries in Redis.
type RedisBackend struct {
	client redis.UniversalClient
}

// NewRedisBackend wraps an existing client. The caller owns the client.
func NewRedisBackend(client redis.UniversalClient) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %q: %v", ErrUnavailable, key, err)
	}
	return raw, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %q: %v", ErrUnavailable, key, err)
	}
	return nil
}

// DeletePattern collects every match with SCAN before deleting anything, then
// deletes in batches. Deleting between SCAN pages would move keys under the
// cursor and skip matches. SCAN is used rather than KEYS so large keyspaces
// do not block the server.
func (b *RedisBackend) DeletePattern(ctx context.Context, pattern string) (int, error) {
	var keys []string
	iter := b.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("%w: scan %q: %v", ErrUnavailable, pattern, err)
	}
	// SCAN may return a key more than once.
	slices.Sort(keys)
	keys = slices.Compact(keys)

	deleted := 0
	for batch := range slices.Chunk(keys, scanBatch) {
		n, err := b.client.Del(ctx, batch...).Result()
		if err != nil {
			return deleted, fmt.Errorf("%w: del: %v", ErrUnavailable, err)
		}
		deleted += int(n)
	}
	return deleted, nil
}

// Ping reports whether the server answers.
func (b *RedisBackend) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
