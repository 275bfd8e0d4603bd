package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// LocalBackend is a bounded in-process LRU with per-entry TTL.
type LocalBackend struct {
	mu      sync.Mutex
	maxsize int
	idx     map[string]*item
	order   *list.List
	now     func() time.Time
}

type item struct {
	key     string
	val     []byte
	expires time.Time
	el      *list.Element
}

// NewLocalBackend returns an LRU holding at most maxsize entries.
func NewLocalBackend(maxsize int) *LocalBackend {
	if maxsize <= 0 {
		maxsize = 1
	}
	return &LocalBackend{
		idx:     make(map[string]*item, maxsize),
		maxsize: maxsize,
		order:   list.New(),
		now:     time.Now,
	}
}

func (c *LocalBackend) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.idx[key]
	if !ok {
		return nil, ErrMiss
	}
	if !it.expires.IsZero() && !c.now().Before(it.expires) {
		c.remove(it)
		return nil, ErrMiss
	}
	c.order.MoveToFront(it.el)
	return it.val, nil
}

func (c *LocalBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.idx[key]; ok {
		c.remove(old)
	}
	it := &item{key: key, val: value}
	if ttl > 0 {
		it.expires = c.now().Add(ttl)
	}
	it.el = c.order.PushFront(it)
	c.idx[key] = it

	for len(c.idx) > c.maxsize {
		c.remove(c.order.Back().Value.(*item))
	}
	return nil
}

func (c *LocalBackend) DeletePattern(_ context.Context, pattern string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, it := range c.idx {
		if matchGlob(pattern, key) {
			c.remove(it)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored entries, expired ones included.
func (c *LocalBackend) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.idx)
}

func (c *LocalBackend) remove(it *item) {
	c.order.Remove(it.el)
	delete(c.idx, it.key)
}
