package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChunkDedupe suppresses duplicate Q/A synthesis for a chunk that is
// resubmitted before its previous task has expired from the result store,
// e.g. a caller re-running a dataset after a partial failure. Grounded on
// internal/orchestrator/dedupe.go's DedupeStore/RedisDedupeStore pair,
// narrowed from a generic correlation-key store to one keyed by
// chunk+provider and returning the earlier task id instead of an opaque
// value.
type ChunkDedupe struct {
	client *redis.Client
	ttl    time.Duration
}

// NewChunkDedupe dials addr and pings it to fail fast on misconfiguration.
func NewChunkDedupe(addr string, ttl time.Duration) (*ChunkDedupe, error) {
	c := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("dispatcher: dedupe redis ping failed: %w", err)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ChunkDedupe{client: c, ttl: ttl}, nil
}

func (d *ChunkDedupe) key(chunkID, providerTag string) string {
	return "qagen:dedupe:" + providerTag + ":" + chunkID
}

// Reserve returns (existingTaskID, true) if chunkID was already reserved for
// providerTag within the TTL window; otherwise it reserves taskID for
// chunkID and returns ("", false).
func (d *ChunkDedupe) Reserve(ctx context.Context, chunkID, providerTag, taskID string) (string, bool, error) {
	ok, err := d.client.SetNX(ctx, d.key(chunkID, providerTag), taskID, d.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("dispatcher: dedupe reserve: %w", err)
	}
	if ok {
		return "", false, nil
	}
	existing, err := d.client.Get(ctx, d.key(chunkID, providerTag)).Result()
	if err != nil {
		return "", false, fmt.Errorf("dispatcher: dedupe read: %w", err)
	}
	return existing, true, nil
}

// Close releases the underlying Redis client.
func (d *ChunkDedupe) Close() error {
	return d.client.Close()
}
