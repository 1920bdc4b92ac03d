package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the Redis-backed key store shared by the page cache and the
// notification guard.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Delete removes keys. Keys that do not exist are ignored.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.prefix + k
	}

	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("delete keys: %w", err)
	}
	return nil
}

// Once runs fn unless key has already been claimed. A failing fn releases the
// claim so a later attempt can retry. The returned bool reports whether fn ran.
func (s *RedisStore) Once(ctx context.Context, key string, ttl time.Duration, fn func() error) (bool, error) {
	key = s.prefix + key

	ok, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim key: %w", err)
	}
	if !ok {
		return false, nil
	}

	if err := fn(); err != nil {
		_ = s.client.Del(context.WithoutCancel(ctx), key).Err()
		return true, err
	}
	return true, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
