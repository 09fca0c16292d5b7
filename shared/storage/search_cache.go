package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"postgame-agent/internal/models"

	"github.com/redis/go-redis/v9"
)

const searchKeyPrefix = "postgame:search"

// SearchCache stores per-query search results so a re-run inside the same
// window does not spend API quota again
type SearchCache interface {
	Get(ctx context.Context, key string) ([]*models.Post, bool, error)
	Set(ctx context.Context, key string, posts []*models.Post) error
}

type redisSearchCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSearchCache wraps an existing client
func NewRedisSearchCache(client *redis.Client, ttl time.Duration) SearchCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &redisSearchCache{client: client, ttl: ttl}
}

// SearchKey builds the cache key for a query and window start. The start is
// truncated to the hour so runs a few minutes apart share entries.
func SearchKey(query string, windowStart time.Time) string {
	return fmt.Sprintf("%s:%s:%s", searchKeyPrefix, windowStart.UTC().Truncate(time.Hour).Format("2006010215"), query)
}

func (c *redisSearchCache) Get(ctx context.Context, key string) ([]*models.Post, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached search: %w", err)
	}

	var posts []*models.Post
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached search: %w", err)
	}
	return posts, true, nil
}

func (c *redisSearchCache) Set(ctx context.Context, key string, posts []*models.Post) error {
	data, err := json.Marshal(posts)
	if err != nil {
		return fmt.Errorf("failed to encode search results: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache search results: %w", err)
	}
	return nil
}
