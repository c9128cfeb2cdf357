package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotObtained the key is held by another owner
	ErrNotObtained = errors.New("lock not obtained")
	// ErrLockNotHeld lock expired or was taken over
	ErrLockNotHeld = errors.New("lock not held")
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Locker hands out owner-tokened locks under a common key prefix
type Locker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewLocker creates a Locker. ttl bounds how long a crashed owner can keep a key.
func NewLocker(client redis.UniversalClient, prefix string, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Obtain makes a single SETNX attempt and returns ErrNotObtained when the key is taken
func (l *Locker) Obtain(ctx context.Context, key string) (*Lock, error) {
	lk := &Lock{
		client: l.client,
		key:    l.prefix + key,
		token:  uuid.NewString(),
	}

	ok, err := l.client.SetNX(ctx, lk.key, lk.token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("setnx %s: %w", lk.key, err)
	}
	if !ok {
		return nil, ErrNotObtained
	}
	return lk, nil
}

// Lock a held key
type Lock struct {
	client redis.UniversalClient
	key    string
	token  string
}

// Release deletes the key only if this owner still holds it
func (l *Lock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}
