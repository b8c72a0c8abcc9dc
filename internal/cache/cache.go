// Package cache provides a Redis-backed response cache for the read-side
// listing endpoints.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/karlosatvar19/movies-app/internal/config"
	"github.com/karlosatvar19/movies-app/internal/logger"
)

const (
	connectionTimeout = 2 * time.Second

	// keyPrefix namespaces every cache key written by this service.
	keyPrefix = "movies:"

	// ListTTL is how long full listings stay cached.
	ListTTL = time.Hour
	// SearchTTL is how long search results stay cached; searches change
	// more often than full listings.
	SearchTTL = 30 * time.Minute
)

// NewClient creates a Redis client and verifies the connection.
func NewClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if pingErr := client.Ping(pingCtx).Err(); pingErr != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", pingErr)
	}

	return client, nil
}

// Cache wraps a Redis client with JSON serialization and key namespacing.
type Cache struct {
	client *redis.Client
	logger logger.Logger
}

// New creates a new Cache.
func New(client *redis.Client, log logger.Logger) *Cache {
	return &Cache{
		client: client,
		logger: log,
	}
}

// Ping verifies the Redis connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get loads the value stored under key into dest. Returns true on a hit.
// Infrastructure failures are logged and reported as a miss so the caller
// falls back to the datastore.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Cache get failed",
				logger.String("key", key),
				logger.Error(err),
			)
		}
		return false
	}

	if unmarshalErr := json.Unmarshal(data, dest); unmarshalErr != nil {
		c.logger.Warn("Cache entry is not valid JSON, dropping",
			logger.String("key", key),
			logger.Error(unmarshalErr),
		)
		_ = c.client.Del(ctx, keyPrefix+key).Err()
		return false
	}

	c.logger.Debug("Cache hit", logger.String("key", key))
	return true
}

// Set stores value under key with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if setErr := c.client.Set(ctx, keyPrefix+key, data, ttl).Err(); setErr != nil {
		return fmt.Errorf("cache set %s: %w", key, setErr)
	}

	c.logger.Debug("Cache set", logger.String("key", key), logger.Duration("ttl", ttl))
	return nil
}

// Delete removes a single key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("cache delete %s: %w", key, err)
	}
	return nil
}

// DeleteByPattern removes every key containing pattern, scanning
// incrementally to avoid blocking Redis. Returns the number of keys removed.
func (c *Cache) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	match := keyPrefix + "*" + pattern + "*"
	deleted := 0

	iter := c.client.Scan(ctx, 0, match, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, fmt.Errorf("cache delete %s: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("cache scan %s: %w", match, err)
	}

	if deleted > 0 {
		c.logger.Info("Cache entries invalidated",
			logger.String("pattern", pattern),
			logger.Int("count", deleted),
		)
	}

	return deleted, nil
}
