// Package ratelimit implements fixed-window request budgets keyed by an
// arbitrary identifier such as a client address or an email.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result describes the state of one key's window after a hit.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is how long the caller should wait before the window resets.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if d := r.ResetAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

func newResult(count int64, limit int, resetAt time.Time) Result {
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// RedisLimiter shares budgets across instances. The first hit in a window
// sets the key's TTL.
type RedisLimiter struct {
	rdb    redis.Cmdable
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(rdb redis.Cmdable, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, prefix: prefix, limit: limit, window: window, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	redisKey := l.prefix + key

	pipe := l.rdb.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limit %s: %w", redisKey, err)
	}

	remainingTTL := ttl.Val()
	if incr.Val() == 1 || remainingTTL < 0 {
		if err := l.rdb.PExpire(ctx, redisKey, l.window).Err(); err != nil {
			return Result{}, fmt.Errorf("rate limit %s: %w", redisKey, err)
		}
		remainingTTL = l.window
	}
	return newResult(incr.Val(), l.limit, l.now().Add(remainingTTL)), nil
}

type window struct {
	count   int64
	resetAt time.Time
}

// MemoryLimiter keeps windows in process. It is used when Redis is
// disabled and only limits a single instance. Expired windows are swept by a
// background goroutine until Stop is called.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	window  time.Duration
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

func NewMemoryLimiter(limit int, w time.Duration) *MemoryLimiter {
	l := &MemoryLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		window:  w,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if w > 0 {
		go l.sweep(w)
	}
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.window)}
		l.windows[key] = w
	}
	w.count++
	return newResult(w.count, l.limit, w.resetAt), nil
}

func (l *MemoryLimiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

// Len reports the number of tracked windows, expired or not.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

func (l *MemoryLimiter) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.removeExpired()
		}
	}
}

func (l *MemoryLimiter) removeExpired() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
		}
	}
}
