package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisBackend(t *testing.T) (*RedisBackend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr:        mr.Addr(),
		DialTimeout: 100 * time.Millisecond,
		ReadTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisBackend(client), mr
}

func TestRedisBackendGetSet(t *testing.T) {
	ctx := context.Background()
	b, mr := newRedisBackend(t)

	if _, err := b.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("want miss, got %v", err)
	}
	if err := b.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %s", err)
	}
	got, err := b.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("want v, got %q, %v", got, err)
	}

	mr.FastForward(time.Minute)
	if _, err := b.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("want expired miss, got %v", err)
	}
}

func TestRedisBackendDeletePatternAcrossBatches(t *testing.T) {
	ctx := context.Background()
	b, mr := newRedisBackend(t)

	// Several SCAN pages, interleaved with keys that must survive.
	const n = 2*scanBatch + 17
	for i := 0; i < n; i++ {
		if err := mr.Set(fmt.Sprintf("questions:%d", i), "x"); err != nil {
			t.Fatal(err)
		}
		if i%100 == 0 {
			if err := mr.Set(fmt.Sprintf("users:%d", i), "x"); err != nil {
				t.Fatal(err)
			}
		}
	}

	deleted, err := b.DeletePattern(ctx, "questions:*")
	if err != nil {
		t.Fatalf("delete: %s", err)
	}
	if deleted != n {
		t.Fatalf("want %d deleted, got %d", n, deleted)
	}
	for _, key := range mr.Keys() {
		if !strings.HasPrefix(key, "users:") {
			t.Fatalf("%s survived invalidation", key)
		}
	}
	if got := len(mr.Keys()); got != (n+99)/100 {
		t.Fatalf("want %d unrelated keys kept, got %d", (n+99)/100, got)
	}

	deleted, err = b.DeletePattern(ctx, "questions:*")
	if err != nil || deleted != 0 {
		t.Fatalf("second pass: want 0 deleted, got %d, %v", deleted, err)
	}
}

func TestRedisBackendUnavailable(t *testing.T) {
	ctx := context.Background()
	b, mr := newRedisBackend(t)
	mr.Close()

	if _, err := b.Get(ctx, "k"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("get: want ErrUnavailable, got %v", err)
	}
	if err := b.Set(ctx, "k", []byte("v"), time.Minute); !errors.Is(err, ErrUnavailable) {
		t.Errorf("set: want ErrUnavailable, got %v", err)
	}
	if _, err := b.DeletePattern(ctx, "*"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("delete: want ErrUnavailable, got %v", err)
	}
	if err := b.Ping(ctx); !errors.Is(err, ErrUnavailable) {
		t.Errorf("ping: want ErrUnavailable, got %v", err)
	}
}
