package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	appinvoice "github.com/erp/invoicedesk/internal/application/invoice"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "desk:busy:"

// RedisLoadingRegistry implements LoadingRegistry using Redis.
// Flags are shared by every server instance and expire after ttl
// so a crashed holder cannot pin a document forever. Each flag stores
// the token of its lease and only that lease can release or extend it.
type RedisLoadingRegistry struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisLoadingRegistry connects to Redis and verifies the connection
func NewRedisLoadingRegistry(addr, password string, db int, ttl time.Duration) (*RedisLoadingRegistry, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisLoadingRegistryWithClient(client, "", ttl), nil
}

// NewRedisLoadingRegistryWithClient creates a registry with an existing Redis client
func NewRedisLoadingRegistryWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisLoadingRegistry {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisLoadingRegistry{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

func (r *RedisLoadingRegistry) key(class appinvoice.BusyClass, id int64) string {
	return fmt.Sprintf("%s%s:%d", r.keyPrefix, class, id)
}

// releaseScript deletes the flag only while it still carries the caller's token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the expiry only while the flag carries the caller's token
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// TryAcquire sets the flag with SETNX under a fresh token; false means another holder owns it
func (r *RedisLoadingRegistry) TryAcquire(ctx context.Context, class appinvoice.BusyClass, id int64) (appinvoice.Lease, bool, error) {
	lease := appinvoice.Lease{Class: class, ID: id, Token: uuid.NewString()}
	ok, err := r.client.SetNX(ctx, r.key(class, id), lease.Token, r.ttl).Result()
	if err != nil {
		return appinvoice.Lease{}, false, fmt.Errorf("failed to acquire busy flag: %w", err)
	}
	if !ok {
		return appinvoice.Lease{}, false, nil
	}
	return lease, true, nil
}

// Release clears the flag if the lease still owns it
func (r *RedisLoadingRegistry) Release(ctx context.Context, lease appinvoice.Lease) error {
	n, err := releaseScript.Run(ctx, r.client, []string{r.key(lease.Class, lease.ID)}, lease.Token).Int()
	if err != nil {
		return fmt.Errorf("failed to release busy flag: %w", err)
	}
	if n == 0 {
		return appinvoice.ErrLeaseLost
	}
	return nil
}

// Extend gives the flag a full ttl again. Flags without a ttl only have their owner checked.
func (r *RedisLoadingRegistry) Extend(ctx context.Context, lease appinvoice.Lease) error {
	key := r.key(lease.Class, lease.ID)
	if r.ttl <= 0 {
		token, err := r.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) || (err == nil && token != lease.Token) {
			return appinvoice.ErrLeaseLost
		}
		if err != nil {
			return fmt.Errorf("failed to extend busy flag: %w", err)
		}
		return nil
	}
	n, err := extendScript.Run(ctx, r.client, []string{key}, lease.Token, r.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to extend busy flag: %w", err)
	}
	if n == 0 {
		return appinvoice.ErrLeaseLost
	}
	return nil
}

// IsBusy reports whether the flag is held
func (r *RedisLoadingRegistry) IsBusy(ctx context.Context, class appinvoice.BusyClass, id int64) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(class, id)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read busy flag: %w", err)
	}
	return n > 0, nil
}

// Close closes the Redis client
func (r *RedisLoadingRegistry) Close() error {
	return r.client.Close()
}

var _ appinvoice.LoadingRegistry = (*RedisLoadingRegistry)(nil)
