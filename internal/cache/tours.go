// Package cache keeps read-through copies of tours in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ploop3/Natours/internal/domain"
)

const tourKeyPrefix = "tour:"

// ErrMiss is returned by Get when the tour is not cached.
var ErrMiss = errors.New("cache miss")

// Tours caches tours by id.
type Tours struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTours creates a tour cache whose entries expire after ttl.
func NewTours(client *redis.Client, ttl time.Duration) *Tours {
	return &Tours{client: client, ttl: ttl}
}

// Get returns the cached tour or ErrMiss.
func (c *Tours) Get(ctx context.Context, id string) (*domain.Tour, error) {
	data, err := c.client.Get(ctx, tourKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("redis get tour: %w", err)
	}

	var t domain.Tour
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("unmarshal tour: %w", err)
	}
	return &t, nil
}

// Set stores t.
func (c *Tours) Set(ctx context.Context, t *domain.Tour) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal tour: %w", err)
	}
	if err := c.client.Set(ctx, tourKeyPrefix+t.ID, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set tour: %w", err)
	}
	return nil
}

// Invalidate removes the cached tour.
func (c *Tours) Invalidate(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, tourKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis del tour: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (c *Tours) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
