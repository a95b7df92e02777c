package agentiface

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDedupeStore is a Redis-backed DedupeStore. Grounded on
// internal/orchestrator/dedupe.go's RedisDedupeStore, reused here directly
// since its correlation-key/TTL shape fits HandleCommand unchanged.
type RedisDedupeStore struct {
	client *redis.Client
}

// NewRedisDedupeStore dials addr and pings it to fail fast on misconfiguration.
func NewRedisDedupeStore(addr string) (*RedisDedupeStore, error) {
	c := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("agentiface: dedupe redis ping failed: %w", err)
	}
	return &RedisDedupeStore{client: c}, nil
}

func (s *RedisDedupeStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func (s *RedisDedupeStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisDedupeStore) Close() error {
	return s.client.Close()
}
