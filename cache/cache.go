package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

var errNoClient = errors.New("Redis client is not initialized")

type Cache struct {
	client *redis.Client
}

// NewCache wraps an initialized Redis client.
func NewCache(client *redis.Client) (*Cache, error) {
	if client == nil {
		return nil, errNoClient
	}
	return &Cache{client: client}, nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil {
		return errNoClient
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// DeletePattern removes every key matching pattern.
func (c *Cache) DeletePattern(ctx context.Context, pattern string) error {
	if c.client == nil {
		return errNoClient
	}
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// SetJSON stores value encoded as JSON.
func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if c.client == nil {
		return errNoClient
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, expiration).Err()
}

// GetJSON decodes the cached value into dest. It reports false when the key
// does not exist.
func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c.client == nil {
		return false, errNoClient
	}
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}
