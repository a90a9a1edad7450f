package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redismgr "MuseShare/service/storage/redis"

	"github.com/redis/go-redis/v9"
)

// ResponseCache is a small JSON cache with TTL for read-heavy endpoints
// (trending tracks and friends).
type ResponseCache struct {
	rdb *redis.Client
}

func NewResponseCache() *ResponseCache {
	return &ResponseCache{rdb: redismgr.GetRedis()}
}

// GetJSON loads key into dest; ok=false on miss.
func (c *ResponseCache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores v under key with a TTL.
func (c *ResponseCache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, raw, ttl).Err()
}

// Invalidate drops keys after a write.
func (c *ResponseCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}
