package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kibikalo/dash-streaming-microservice/internal/config"
	"github.com/kibikalo/dash-streaming-microservice/pkg/models"
)

// Cache holds short-lived audio status views so the read API doesn't hit
// the status store for every poll. Staleness is bounded by the TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a new cache instance
func New(cfg config.RedisConfig) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := cfg.ViewTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return &Cache{client: client, ttl: ttl}, nil
}

// NewWithClient wraps an existing client; for tests.
func NewWithClient(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

func statusKey(audioID string) string {
	return "audio:status:" + audioID
}

// SetStatusView caches the external view of an audio item
func (c *Cache) SetStatusView(ctx context.Context, view models.AudioStatusView) error {
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to marshal status view: %w", err)
	}

	return c.client.Set(ctx, statusKey(view.ID), data, c.ttl).Err()
}

// GetStatusView retrieves a cached view. A cache miss returns (nil, nil).
func (c *Cache) GetStatusView(ctx context.Context, audioID string) (*models.AudioStatusView, error) {
	data, err := c.client.Get(ctx, statusKey(audioID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get status view from cache: %w", err)
	}

	var view models.AudioStatusView
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status view: %w", err)
	}

	return &view, nil
}

// DeleteStatusView drops a cached view
func (c *Cache) DeleteStatusView(ctx context.Context, audioID string) error {
	return c.client.Del(ctx, statusKey(audioID)).Err()
}
