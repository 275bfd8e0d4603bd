package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLocalBackendEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewLocalBackend(2)

	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), 0)
	if _, err := c.Get(ctx, "a"); err != nil {
		t.Fatalf("get a: %s", err)
	}
	_ = c.Set(ctx, "c", []byte("3"), 0)

	if _, err := c.Get(ctx, "b"); !errors.Is(err, ErrMiss) {
		t.Fatalf("b must be evicted, got %v", err)
	}
	for _, key := range []string{"a", "c"} {
		if _, err := c.Get(ctx, key); err != nil {
			t.Fatalf("%s must survive: %s", key, err)
		}
	}
}

func TestLocalBackendExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLocalBackend(10)
	c.now = func() time.Time { return now }

	_ = c.Set(ctx, "k", []byte("v"), time.Minute)
	if got, err := c.Get(ctx, "k"); err != nil || string(got) != "v" {
		t.Fatalf("want v, got %q, %v", got, err)
	}

	now = now.Add(time.Minute)
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("want expired miss, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry must be dropped, len %d", c.Len())
	}
}

func TestLocalBackendDeletePattern(t *testing.T) {
	ctx := context.Background()
	c := NewLocalBackend(10)
	_ = c.Set(ctx, "questions:a", []byte("1"), 0)
	_ = c.Set(ctx, "questions:b", []byte("2"), 0)
	_ = c.Set(ctx, "users:1", []byte("3"), 0)

	n, err := c.DeletePattern(ctx, "questions:*")
	if err != nil || n != 2 {
		t.Fatalf("want 2 deleted, got %d, %v", n, err)
	}
	if _, err := c.Get(ctx, "users:1"); err != nil {
		t.Fatalf("unrelated key must survive: %s", err)
	}
}
