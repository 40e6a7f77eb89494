package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const versionPrefix = "version"

// Cache stores JSON values under versioned keys. Bumping a namespace version
// orphans every key built from the previous version.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func versionKey(namespace string) string {
	return versionPrefix + ":" + namespace
}

// Version returns the current version of namespace, initialising when missing.
func (c *Cache) Version(ctx context.Context, namespace string) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	key := versionKey(namespace)
	ver, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) || (err == nil && ver <= 0) {
		if _, err := c.client.SetNX(ctx, key, 1, 0).Result(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, key).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes namespace, parts and the namespace version.
func (c *Cache) BuildKey(ctx context.Context, namespace string, parts ...string) (string, error) {
	joined := strings.Join(append([]string{namespace}, parts...), ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx, namespace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", joined, ver), nil
}

// FetchJSON loads key into dest, or populates it from loader on a miss.
// The returned flag reports a cache hit.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) (bool, error) {
	if loader == nil {
		return false, errors.New("cache: loader required")
	}
	if c != nil && c.client != nil {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return true, json.Unmarshal(payload, dest)
		}
		if !errors.Is(err, redis.Nil) {
			return false, err
		}
	}
	value, err := loader(ctx)
	if err != nil {
		return false, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	if c != nil && c.client != nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return false, err
		}
	}
	return false, json.Unmarshal(raw, dest)
}

// Bump invalidates every key of namespace.
func (c *Cache) Bump(ctx context.Context, namespace string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if _, err := c.Version(ctx, namespace); err != nil {
		return err
	}
	return c.client.Incr(ctx, versionKey(namespace)).Err()
}
