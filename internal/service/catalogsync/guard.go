package catalogsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"socialsync/internal/model"
	"socialsync/pkg/lock"
	"socialsync/pkg/log"
)

// ErrGuardBusy another holder owns the key
var ErrGuardBusy = errors.New("sync guard busy")

// Guard grants at most one in-flight sync per key. Acquisition never waits:
// an occupied key fails with ErrGuardBusy.
type Guard interface {
	TryAcquire(ctx context.Context, key string) (release func(), err error)
}

// GuardKey key of one (sku, platform) pair
func GuardKey(sku string, platform model.Platform) string {
	return fmt.Sprintf("%s:%s", sku, platform)
}

// MemoryGuard in-process guard for single-instance deployments
type MemoryGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryGuard creates an in-process guard
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{held: make(map[string]struct{})}
}

// TryAcquire marks key held
func (g *MemoryGuard) TryAcquire(_ context.Context, key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.held[key]; busy {
		return nil, ErrGuardBusy
	}
	g.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, nil
}

// Held reports whether key is currently held
func (g *MemoryGuard) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.held[key]
	return ok
}

// RedisGuard guard shared by every instance through a Redis lock.
// The lock TTL bounds how long a crashed holder blocks the key.
type RedisGuard struct {
	locker         *lock.Locker
	releaseTimeout time.Duration
}

// NewRedisGuard creates a guard on locker
func NewRedisGuard(locker *lock.Locker) *RedisGuard {
	return &RedisGuard{locker: locker, releaseTimeout: 3 * time.Second}
}

// TryAcquire obtains the Redis lock of key
func (g *RedisGuard) TryAcquire(ctx context.Context, key string) (func(), error) {
	l, err := g.locker.Obtain(ctx, key)
	if err != nil {
		if errors.Is(err, lock.ErrNotObtained) {
			return nil, ErrGuardBusy
		}
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.releaseTimeout)
			defer cancel()
			if err := l.Release(releaseCtx); err != nil {
				log.WithFields(log.Fields{
					"key":   key,
					"error": err.Error(),
				}).Warn("Failed to release sync guard, it expires with its TTL")
			}
		})
	}, nil
}
