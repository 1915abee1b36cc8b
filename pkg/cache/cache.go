package cache

import (
	"sync"
	"time"
)

type Item[V any] struct {
	Value      V
	Expiration time.Time
}

// Cache is an in-process TTL map. Expired items are never returned and are
// swept by a background goroutine until Stop is called.
type Cache[V any] struct {
	items map[string]Item[V]
	mu    sync.RWMutex
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
}

func New[V any](sweepEvery time.Duration) *Cache[V] {
	c := &Cache[V]{
		items: make(map[string]Item[V]),
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	if sweepEvery > 0 {
		go c.sweep(sweepEvery)
	}
	return c
}

func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = Item[V]{
		Value:      value,
		Expiration: c.now().Add(ttl),
	}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, found := c.items[key]
	if !found || !c.now().Before(item.Expiration) {
		var zero V
		return zero, false
	}
	return item.Value, true
}

func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *Cache[V]) Stop() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Cache[V]) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *Cache[V]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, v := range c.items {
		if !now.Before(v.Expiration) {
			delete(c.items, k)
		}
	}
}
