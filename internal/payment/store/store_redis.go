package store

import (
	"context"
	"fmt"
	"time"

	platformredis "akashic/internal/platform/redis"
	"akashic/pkg/platform/sentinel"
)

const redisKeyPrefix = "webhook:event:"

// RedisStore is a Redis-backed EventStore, shared across replicas. A marker
// key with the retention window as TTL is written atomically with SET NX, so
// concurrent redeliveries resolve to exactly one winner.
type RedisStore struct {
	client *platformredis.Client
}

// NewRedis constructs a Redis-backed event store.
func NewRedis(client *platformredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// MarkProcessed writes the marker key if absent and reports whether this
// call created it.
func (s *RedisStore) MarkProcessed(ctx context.Context, eventID string, retention time.Duration) (bool, error) {
	created, err := s.client.SetNX(ctx, redisKeyPrefix+eventID, "1", retention).Result()
	if err != nil {
		return false, fmt.Errorf("%w: mark webhook event: %v", sentinel.ErrUnavailable, err)
	}
	return created, nil
}
