package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrementScript increments a fixed-window counter and starts its expiry
// on the first event. It returns the new count and the remaining TTL in
// milliseconds.
var incrementScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisConfig holds the connection settings of a RedisStore.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}

// RedisStore is a fixed-window Store shared by every process connected to
// the same Redis. Each increment runs as a single script and is atomic.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisStoreWithClient(client, cfg.Prefix), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "bugreport:ratelimit:"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

// Increment implements Store.
func (s *RedisStore) Increment(ctx context.Context, key string, w Window) (Result, error) {
	values, err := incrementScript.Run(ctx, s.client, []string{s.prefix + counterKey(key, w)}, w.Interval.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("redis increment %q: %w", key, err)
	}
	if len(values) != 2 {
		return Result{}, fmt.Errorf("redis increment %q: unexpected reply %v", key, values)
	}

	count := int(values[0])
	return Result{
		Count:    count,
		Exceeded: count > w.Limit,
		ResetIn:  time.Duration(values[1]) * time.Millisecond,
	}, nil
}

// Ping checks the connection, for the readiness endpoint.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
