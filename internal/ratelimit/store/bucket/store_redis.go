package bucket

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "rate:"

// RedisStore implements Store with a fixed window counter in Redis. This is
// the implementation for deployments where several instances share budgets.
type RedisStore struct {
	client *redis.Client
	clock  func() time.Time
}

type RedisOption func(*RedisStore)

// WithRedisClock sets the clock function for testability.
func WithRedisClock(clock func() time.Time) RedisOption {
	return func(s *RedisStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Allow increments the counter for the current window slice and compares it
// against the limit. The key carries the window index, so slices expire on
// their own; TTL is a safety net for abandoned keys.
func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	slice := s.clock().UnixMilli() / window.Milliseconds()
	windowKey := fmt.Sprintf("%s%s:%d", redisKeyPrefix, key, slice)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, 2*window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate window incr: %w", err)
	}
	return incr.Val() <= int64(limit), nil
}
