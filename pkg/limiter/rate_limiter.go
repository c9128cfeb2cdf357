package limiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimiter rate limiter interface
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Rate a token bucket refill rate and burst
type Rate struct {
	PerSecond float64
	Burst     int
}

// KeyedLimiter keeps one in-process token bucket per key, e.g. per platform
type KeyedLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	defaults  Rate
	overrides map[string]Rate
}

// NewKeyedLimiter creates a KeyedLimiter; overrides replace defaults for matching keys
func NewKeyedLimiter(defaults Rate, overrides map[string]Rate) *KeyedLimiter {
	if overrides == nil {
		overrides = make(map[string]Rate)
	}
	return &KeyedLimiter{
		limiters:  make(map[string]*rate.Limiter),
		defaults:  defaults,
		overrides: overrides,
	}
}

func (l *KeyedLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.limiters[key]; ok {
		return lim
	}

	r := l.defaults
	if o, ok := l.overrides[key]; ok {
		r = o
	}
	limit := rate.Limit(r.PerSecond)
	if r.PerSecond <= 0 {
		limit = rate.Inf
	}
	burst := r.Burst
	if burst <= 0 {
		burst = 1
	}

	lim := rate.NewLimiter(limit, burst)
	l.limiters[key] = lim
	return lim
}

// Allow takes a token without waiting
func (l *KeyedLimiter) Allow(_ context.Context, key string) (bool, error) {
	return l.get(key).Allow(), nil
}

// Wait blocks until a token is available or ctx is done
func (l *KeyedLimiter) Wait(ctx context.Context, key string) error {
	if err := l.get(key).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", key, err)
	}
	return nil
}

var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local ttl_ms = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, 0, window_start)

	local current = redis.call('ZCARD', key)
	if current < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, ttl_ms)
		return 1
	end
	return 0
`)

// SlidingWindowLimiter counts requests per key over a rolling window shared through Redis
type SlidingWindowLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter
func NewSlidingWindowLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow checks if the request is allowed
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := l.now().UnixMilli()
	windowStart := now - l.window.Milliseconds()

	result, err := slidingWindowScript.Run(ctx, l.client,
		[]string{l.prefix + key},
		now,
		windowStart,
		l.limit,
		l.window.Milliseconds(),
		fmt.Sprintf("%d-%s", now, uuid.NewString()),
	).Int()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}
