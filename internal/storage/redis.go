package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore remembers recently crawled URLs with a TTL so the queue
// can skip re-crawling them unless explicitly forced.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(addr string, ttl time.Duration) *RedisStore {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return &RedisStore{client: rdb, ttl: ttl}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// MarkAsCrawled sets a key with the configured TTL.
func (s *RedisStore) MarkAsCrawled(ctx context.Context, url string) error {
	key := fmt.Sprintf("crawled:%s", url)
	return s.client.Set(ctx, key, "1", s.ttl).Err()
}

// IsRecentlyCrawled checks whether a URL was crawled within the TTL.
func (s *RedisStore) IsRecentlyCrawled(ctx context.Context, url string) (bool, error) {
	key := fmt.Sprintf("crawled:%s", url)
	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return val == 1, nil
}
