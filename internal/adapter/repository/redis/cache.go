package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/ledgerclose/internal/infrastructure/metrics"
)

// Cache implements usecase.Cache using Redis. Comparison results are its
// main tenant.
type Cache struct {
	client  *redis.Client
	prefix  string
	metrics *metrics.Metrics
}

// NewCache creates a new Cache.
func NewCache(client *redis.Client) *Cache {
	return &Cache{
		client: client,
		prefix: "ledgerclose:cache:",
	}
}

// WithMetrics counts cache operations and failures.
func (c *Cache) WithMetrics(m *metrics.Metrics) *Cache {
	c.metrics = m
	return c
}

// Get returns the cached value, or nil on a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.observe("get", nil)
		return nil, nil
	}
	c.observe("get", err)
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores a value with TTL. A zero ttl keeps the key until deleted.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := c.client.Set(ctx, c.prefix+key, value, ttl).Err()
	c.observe("set", err)
	return err
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	err := c.client.Del(ctx, c.prefix+key).Err()
	c.observe("delete", err)
	return err
}

func (c *Cache) observe(op string, err error) {
	if c.metrics == nil {
		return
	}
	c.metrics.RedisOperations.WithLabelValues(op).Inc()
	if err != nil {
		c.metrics.RedisErrors.WithLabelValues(op).Inc()
	}
}
