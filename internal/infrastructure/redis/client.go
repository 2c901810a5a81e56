package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NewClient creates a new Redis client and verifies the connection.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// HealthCheck reports whether Redis answers pings.
type HealthCheck struct {
	Client *redis.Client
}

// Name identifies the check in readiness output.
func (HealthCheck) Name() string { return "redis" }

// Check pings Redis.
func (h HealthCheck) Check(ctx context.Context) error {
	return h.Client.Ping(ctx).Err()
}
