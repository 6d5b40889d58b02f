// Package rediscache keeps collection listings in Redis between invalidations.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/evanschultz/reeldesk/internal/domain"
)

// keyPrefix namespaces every listing hash.
const keyPrefix = "reeldesk:items:"

// Cache stores one hash per collection, keyed by filter.
type Cache struct {
	redis *redis.Client
	ttl   time.Duration
}

// New returns a cache over client. A nil client or zero ttl disables writes.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{redis: client, ttl: ttl}
}

// Load returns the cached listing for filter.
func (c *Cache) Load(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, bool) {
	if c == nil || c.redis == nil {
		return nil, false
	}
	key := collectionKey(filter.Collection)
	data, err := c.redis.HGet(ctx, key, filter.Key()).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			// Fall back to the repository and drop whatever is there.
			_ = c.redis.Del(ctx, key).Err()
		}
		return nil, false
	}
	var items []domain.Item
	if err := json.Unmarshal(data, &items); err != nil {
		_ = c.redis.HDel(ctx, key, filter.Key()).Err()
		return nil, false
	}
	return items, true
}

// Store caches items for filter and refreshes the collection TTL.
func (c *Cache) Store(ctx context.Context, filter domain.ItemFilter, items []domain.Item) {
	if c == nil || c.redis == nil || c.ttl == 0 {
		return
	}
	if items == nil {
		items = []domain.Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return
	}
	key := collectionKey(filter.Collection)
	_, _ = c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, filter.Key(), data)
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
}

// Evict drops every cached listing of collection.
func (c *Cache) Evict(ctx context.Context, collection domain.Collection) {
	if c == nil || c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, collectionKey(collection)).Result()
}

// Ping reports whether the Redis server answers.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil || c.redis == nil {
		return errors.New("redis cache is not configured")
	}
	return c.redis.Ping(ctx).Err()
}

func collectionKey(collection domain.Collection) string {
	return keyPrefix + string(collection)
}
