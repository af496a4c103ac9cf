package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"example.com/backstage/services/eventlog/config"
	"example.com/backstage/services/eventlog/internal/event"
)

// ErrMiss is returned when a payload is not cached
var ErrMiss = errors.New("key not found in cache")

// RedisCache caches encoded event payloads by event id
type RedisCache struct {
	client  *redis.Client
	ttl     time.Duration
	enabled bool
}

// NewRedisCache creates a new Redis cache. A disabled config yields a cache
// that always misses.
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	if !cfg.Enabled {
		return &RedisCache{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return NewWithClient(client, cfg.TTL), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, enabled: true}
}

// GetPayload returns the cached payload of an event
func (c *RedisCache) GetPayload(ctx context.Context, id event.ID) ([]byte, error) {
	if !c.enabled {
		return nil, ErrMiss
	}

	data, err := c.client.Get(ctx, PayloadKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrMiss
		}
		return nil, errors.Wrap(err, "failed to get payload from Redis")
	}
	return data, nil
}

// SetPayload caches the payload of an event
func (c *RedisCache) SetPayload(ctx context.Context, id event.ID, payload []byte) error {
	if !c.enabled {
		return nil
	}

	if err := c.client.Set(ctx, PayloadKey(id), payload, c.ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to set payload in Redis")
	}
	return nil
}

// Invalidate drops cached payloads for the given events
func (c *RedisCache) Invalidate(ctx context.Context, ids ...event.ID) error {
	if !c.enabled || len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = PayloadKey(id)
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "failed to invalidate payloads in Redis")
	}
	return nil
}

// PayloadKey generates the cache key for an event payload
func PayloadKey(id event.ID) string {
	return fmt.Sprintf("event:payload:%s", id.String())
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	if !c.enabled || c.client == nil {
		return nil
	}
	return c.client.Close()
}
