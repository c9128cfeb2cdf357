package catalogsync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialsync/internal/model"
	"socialsync/pkg/lock"
)

func TestGuardKey(t *testing.T) {
	assert.Equal(t, "SKU-1:facebook", GuardKey("SKU-1", model.PlatformFacebook))
}

func TestMemoryGuard(t *testing.T) {
	g := NewMemoryGuard()
	ctx := context.Background()

	release, err := g.TryAcquire(ctx, "a")
	require.NoError(t, err)
	assert.True(t, g.Held("a"))

	_, err = g.TryAcquire(ctx, "a")
	assert.ErrorIs(t, err, ErrGuardBusy)

	other, err := g.TryAcquire(ctx, "b")
	require.NoError(t, err)
	other()

	release()
	release()
	assert.False(t, g.Held("a"))

	again, err := g.TryAcquire(ctx, "a")
	require.NoError(t, err)
	again()
}

func TestRedisGuard(t *testing.T) {
	mr, client := setupRedis(t)
	g := NewRedisGuard(lock.NewLocker(client, "sync:lock:", 30*time.Second))
	ctx := context.Background()

	release, err := g.TryAcquire(ctx, "SKU-1:facebook")
	require.NoError(t, err)
	assert.True(t, mr.Exists("sync:lock:SKU-1:facebook"))

	_, err = g.TryAcquire(ctx, "SKU-1:facebook")
	assert.ErrorIs(t, err, ErrGuardBusy)

	release()
	assert.False(t, mr.Exists("sync:lock:SKU-1:facebook"))

	again, err := g.TryAcquire(ctx, "SKU-1:facebook")
	require.NoError(t, err)
	again()
}

func TestRedisGuardExpires(t *testing.T) {
	mr, client := setupRedis(t)
	g := NewRedisGuard(lock.NewLocker(client, "sync:lock:", 5*time.Second))
	ctx := context.Background()

	_, err := g.TryAcquire(ctx, "k")
	require.NoError(t, err)

	mr.FastForward(6 * time.Second)

	release, err := g.TryAcquire(ctx, "k")
	require.NoError(t, err, "a crashed holder blocks the key only until the TTL")
	release()
}

func TestRedisGuardUnavailable(t *testing.T) {
	mr, client := setupRedis(t)
	g := NewRedisGuard(lock.NewLocker(client, "sync:lock:", time.Second))
	mr.Close()

	_, err := g.TryAcquire(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrGuardBusy)
}
