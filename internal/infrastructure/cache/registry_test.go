package cache

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	appinvoice "github.com/erp/invoicedesk/internal/application/invoice"
	"github.com/erp/invoicedesk/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// unreachable points at a closed local port so every command fails fast
var unreachable = config.RedisConfig{Host: "127.0.0.1", Port: 1}

func newUnreachableClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        unreachable.Addr(),
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
}

func TestRedisLoadingRegistry_Key(t *testing.T) {
	t.Run("default prefix", func(t *testing.T) {
		r := NewRedisLoadingRegistryWithClient(newUnreachableClient(), "", time.Minute)
		defer r.Close()
		assert.Equal(t, "desk:busy:status:42", r.key(appinvoice.BusyStatus, 42))
	})

	t.Run("custom prefix", func(t *testing.T) {
		r := NewRedisLoadingRegistryWithClient(newUnreachableClient(), "test:", time.Minute)
		defer r.Close()
		assert.Equal(t, "test:deposit:7", r.key(appinvoice.BusyDeposit, 7))
	})
}

func newTestRegistry(t *testing.T, ttl time.Duration) (*RedisLoadingRegistry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r := NewRedisLoadingRegistryWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "", ttl)
	t.Cleanup(func() { _ = r.Close() })
	return r, mr
}

func TestRedisLoadingRegistry(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRegistry(t, time.Minute)

	busy, err := r.IsBusy(ctx, appinvoice.BusyStatus, 1)
	require.NoError(t, err)
	assert.False(t, busy, "absent key is not busy")

	lease, ok, err := r.TryAcquire(ctx, appinvoice.BusyStatus, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, lease.Token)

	stored, err := mr.Get("desk:busy:status:1")
	require.NoError(t, err)
	assert.Equal(t, lease.Token, stored)
	assert.Equal(t, time.Minute, mr.TTL("desk:busy:status:1"))

	_, ok, err = r.TryAcquire(ctx, appinvoice.BusyStatus, 1)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire on the same key fails")

	_, ok, _ = r.TryAcquire(ctx, appinvoice.BusyDelete, 1)
	assert.True(t, ok, "other class on the same id is independent")

	busy, _ = r.IsBusy(ctx, appinvoice.BusyStatus, 1)
	assert.True(t, busy)

	require.NoError(t, r.Release(ctx, lease))
	busy, _ = r.IsBusy(ctx, appinvoice.BusyStatus, 1)
	assert.False(t, busy)
	busy, _ = r.IsBusy(ctx, appinvoice.BusyDelete, 1)
	assert.True(t, busy)

	assert.ErrorIs(t, r.Release(ctx, lease), appinvoice.ErrLeaseLost)
}

func TestRedisLoadingRegistry_Expiry(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRegistry(t, 2*time.Minute)

	_, ok, err := r.TryAcquire(ctx, appinvoice.BusyDeposit, 9)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2*time.Minute + time.Second)

	busy, err := r.IsBusy(ctx, appinvoice.BusyDeposit, 9)
	require.NoError(t, err)
	assert.False(t, busy, "a crashed holder's flag expires")

	_, ok, err = r.TryAcquire(ctx, appinvoice.BusyDeposit, 9)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLoadingRegistry_StaleReleaseKeepsNewHolder(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRegistry(t, time.Minute)

	first, ok, err := r.TryAcquire(ctx, appinvoice.BusyDelete, 5)
	require.NoError(t, err)
	require.True(t, ok)

	// the first request outlives its flag and a second caller takes the key
	mr.FastForward(time.Minute + time.Second)
	second, ok, err := r.TryAcquire(ctx, appinvoice.BusyDelete, 5)
	require.NoError(t, err)
	require.True(t, ok)

	assert.ErrorIs(t, r.Release(ctx, first), appinvoice.ErrLeaseLost)
	assert.ErrorIs(t, r.Extend(ctx, first), appinvoice.ErrLeaseLost)

	_, ok, err = r.TryAcquire(ctx, appinvoice.BusyDelete, 5)
	require.NoError(t, err)
	assert.False(t, ok, "the second caller still holds the flag")

	require.NoError(t, r.Release(ctx, second))
	busy, _ := r.IsBusy(ctx, appinvoice.BusyDelete, 5)
	assert.False(t, busy)
}

func TestRedisLoadingRegistry_Extend(t *testing.T) {
	ctx := context.Background()

	t.Run("resets the ttl", func(t *testing.T) {
		r, mr := newTestRegistry(t, time.Minute)
		lease, ok, err := r.TryAcquire(ctx, appinvoice.BusyDelete, 3)
		require.NoError(t, err)
		require.True(t, ok)

		mr.FastForward(50 * time.Second)
		require.NoError(t, r.Extend(ctx, lease))
		assert.Equal(t, time.Minute, mr.TTL("desk:busy:delete:3"))

		mr.FastForward(50 * time.Second)
		busy, _ := r.IsBusy(ctx, appinvoice.BusyDelete, 3)
		assert.True(t, busy, "an extended flag survives its first ttl")
	})

	t.Run("flags without ttl check the owner", func(t *testing.T) {
		r, mr := newTestRegistry(t, 0)
		lease, ok, err := r.TryAcquire(ctx, appinvoice.BusyStatus, 4)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Zero(t, mr.TTL("desk:busy:status:4"))

		require.NoError(t, r.Extend(ctx, lease))
		assert.True(t, mr.Exists("desk:busy:status:4"))

		require.NoError(t, r.Release(ctx, lease))
		assert.ErrorIs(t, r.Extend(ctx, lease), appinvoice.ErrLeaseLost)
	})
}

func TestRedisLoadingRegistry_ConcurrentAcquire(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t, time.Minute)

	var winners int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, err := r.TryAcquire(ctx, appinvoice.BusyStatus, 7); err == nil && ok {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners)
}

func TestRedisLoadingRegistry_Errors(t *testing.T) {
	r := NewRedisLoadingRegistryWithClient(newUnreachableClient(), "", time.Minute)
	defer r.Close()
	ctx := context.Background()

	_, ok, err := r.TryAcquire(ctx, appinvoice.BusyDelete, 1)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "failed to acquire busy flag")

	busy, err := r.IsBusy(ctx, appinvoice.BusyDelete, 1)
	require.Error(t, err)
	assert.False(t, busy)

	lease := appinvoice.Lease{Class: appinvoice.BusyDelete, ID: 1, Token: "t"}
	err = r.Release(ctx, lease)
	require.Error(t, err)
	assert.NotErrorIs(t, err, appinvoice.ErrLeaseLost)
	assert.Contains(t, err.Error(), "failed to release busy flag")

	err = r.Extend(ctx, lease)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to extend busy flag")
}

func TestRegistryFactory_Create(t *testing.T) {
	t.Run("memory backend", func(t *testing.T) {
		f := NewRegistryFactory(unreachable, config.RegistryConfig{Backend: config.RegistryMemory})
		registry, err := f.Create()
		require.NoError(t, err)
		assert.IsType(t, &appinvoice.MemoryLoadingRegistry{}, registry)
	})

	t.Run("redis backend", func(t *testing.T) {
		mr := miniredis.RunT(t)
		port, err := strconv.Atoi(mr.Port())
		require.NoError(t, err)
		f := NewRegistryFactory(config.RedisConfig{Host: mr.Host(), Port: port},
			config.RegistryConfig{Backend: config.RegistryRedis, TTL: time.Minute})
		registry, err := f.Create()
		require.NoError(t, err)
		require.IsType(t, &RedisLoadingRegistry{}, registry)
		defer registry.(*RedisLoadingRegistry).Close()

		_, ok, err := registry.TryAcquire(context.Background(), appinvoice.BusyStatus, 1)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, mr.Exists("desk:busy:status:1"))
	})

	t.Run("redis unavailable without fallback", func(t *testing.T) {
		f := NewRegistryFactory(unreachable, config.RegistryConfig{Backend: config.RegistryRedis, TTL: time.Minute})
		_, err := f.Create()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Redis required")
	})

	t.Run("redis unavailable with fallback", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		f := NewRegistryFactory(unreachable,
			config.RegistryConfig{Backend: config.RegistryRedis, TTL: time.Minute},
			WithLogger(zap.New(core)),
			WithInMemoryFallback(true),
		)
		registry, err := f.Create()
		require.NoError(t, err)
		assert.IsType(t, &appinvoice.MemoryLoadingRegistry{}, registry)
		assert.Equal(t, 1, logs.FilterMessageSnippet("falling back").Len())
	})
}
