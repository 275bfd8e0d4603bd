package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"

	"github.com/duynhne/qa-service/middleware"
)

type page struct {
	Items []string `json:"items"`
	Total int      `json:"total"`
}

type failingBackend struct{}

func (failingBackend) Get(context.Context, string) ([]byte, error) { return nil, ErrUnavailable }

func (failingBackend) Set(context.Context, string, []byte, time.Duration) error {
	return ErrUnavailable
}

func (failingBackend) DeletePattern(context.Context, string) (int, error) {
	return 0, ErrUnavailable
}

func TestServiceRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New(NewLocalBackend(8), time.Second)

	var miss page
	if s.Get(ctx, "questions:1", &miss) {
		t.Fatal("empty cache must miss")
	}

	s.Set(ctx, "questions:1", page{Items: []string{"a"}, Total: 1}, time.Minute)
	var got page
	if !s.Get(ctx, "questions:1", &got) || got.Total != 1 || got.Items[0] != "a" {
		t.Fatalf("want hit with stored value, got %+v", got)
	}

	s.InvalidatePattern(ctx, "questions:*")
	if s.Get(ctx, "questions:1", &got) {
		t.Fatal("invalidated key must miss")
	}
}

func TestServiceFailsOpen(t *testing.T) {
	ctx := context.Background()
	s := New(failingBackend{}, time.Second)
	errorsBefore := testutil.ToFloat64(middleware.CacheOperationsTotal.WithLabelValues("get", "error"))

	var got page
	if s.Get(ctx, "k", &got) {
		t.Fatal("failing backend must miss")
	}
	s.Set(ctx, "k", page{Total: 1}, time.Minute)
	s.InvalidatePattern(ctx, "*")

	if after := testutil.ToFloat64(middleware.CacheOperationsTotal.WithLabelValues("get", "error")); after != errorsBefore+1 {
		t.Fatalf("get error must be counted, before %v after %v", errorsBefore, after)
	}
}

func TestServiceUndecodableEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	b := NewLocalBackend(8)
	_ = b.Set(ctx, "k", []byte("not json"), 0)

	var got page
	if New(b, time.Second).Get(ctx, "k", &got) {
		t.Fatal("undecodable entry must miss")
	}
}

func TestServiceInvalidatesAfterCancel(t *testing.T) {
	b := NewLocalBackend(8)
	_ = b.Set(context.Background(), "questions:1", []byte("{}"), 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	New(b, time.Second).InvalidatePattern(ctx, "questions:*")

	if b.Len() != 0 {
		t.Fatal("invalidation must run on a cancelled request context")
	}
}

func TestServiceRedisOutage(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	defer client.Close()
	s := New(NewRedisBackend(client), 200*time.Millisecond)

	s.Set(ctx, "questions:1", page{Total: 3}, time.Minute)
	var got page
	if !s.Get(ctx, "questions:1", &got) || got.Total != 3 {
		t.Fatalf("want hit, got %+v", got)
	}

	mr.Close()
	if s.Get(ctx, "questions:1", &got) {
		t.Fatal("unreachable redis must miss")
	}
	s.InvalidatePattern(ctx, "questions:*")
}

func TestNilBackendIsNoop(t *testing.T) {
	s := New(nil, time.Second)
	var got page
	s.Set(context.Background(), "k", page{}, time.Minute)
	if s.Get(context.Background(), "k", &got) {
		t.Fatal("noop cache must always miss")
	}
}

// deadlineBackend records how much time each call was given.
type deadlineBackend struct {
	NoopBackend
	getBudget, deleteBudget time.Duration
}

func (b *deadlineBackend) Get(ctx context.Context, _ string) ([]byte, error) {
	b.getBudget = budget(ctx)
	return nil, ErrMiss
}

func (b *deadlineBackend) DeletePattern(ctx context.Context, _ string) (int, error) {
	b.deleteBudget = budget(ctx)
	return 0, nil
}

func budget(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	return time.Until(deadline)
}

func TestServiceInvalidateTimeout(t *testing.T) {
	ctx := context.Background()
	var got page

	b := &deadlineBackend{}
	s := New(b, 200*time.Millisecond, WithInvalidateTimeout(3*time.Second))
	s.Get(ctx, "k", &got)
	s.InvalidatePattern(ctx, "questions:*")
	if b.getBudget > 200*time.Millisecond {
		t.Errorf("get budget %s exceeds the call timeout", b.getBudget)
	}
	if b.deleteBudget <= 2*time.Second {
		t.Errorf("invalidation got %s, want the longer invalidate timeout", b.deleteBudget)
	}

	b = &deadlineBackend{}
	New(b, 200*time.Millisecond).InvalidatePattern(ctx, "questions:*")
	if b.deleteBudget <= DefaultInvalidateTimeout-time.Second {
		t.Errorf("invalidation got %s, want the default %s", b.deleteBudget, DefaultInvalidateTimeout)
	}

	b = &deadlineBackend{}
	New(b, 10*time.Second, WithInvalidateTimeout(time.Millisecond)).InvalidatePattern(ctx, "questions:*")
	if b.deleteBudget <= 9*time.Second {
		t.Errorf("invalidate timeout must not undercut the call timeout, got %s", b.deleteBudget)
	}
}
