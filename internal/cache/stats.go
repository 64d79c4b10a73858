// Package cache provides a Redis-backed cache for product review stats.
// Stats are read far more often than they change, so reads go through the
// cache and every refresh invalidates the affected products.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/review-service/internal/domain"
)

const statsKeyPrefix = "review:stats:"

// StatsCache caches per-product review stats in Redis.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatsCache creates a stats cache with the given TTL.
func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	return &StatsCache{client: client, ttl: ttl}
}

func statsKey(productID string) string {
	return statsKeyPrefix + productID
}

// Get returns the cached stats for a product, or (nil, nil) on a miss.
func (c *StatsCache) Get(ctx context.Context, productID string) (*domain.ProductReviewStats, error) {
	data, err := c.client.Get(ctx, statsKey(productID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached stats: %w", err)
	}

	var stats domain.ProductReviewStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshal cached stats: %w", err)
	}

	return &stats, nil
}

// Set stores the stats for a product with the configured TTL.
func (c *StatsCache) Set(ctx context.Context, stats *domain.ProductReviewStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}

	if err := c.client.Set(ctx, statsKey(stats.ProductID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached stats: %w", err)
	}

	return nil
}

// Invalidate removes the cached stats for the given products.
func (c *StatsCache) Invalidate(ctx context.Context, productIDs ...string) error {
	if len(productIDs) == 0 {
		return nil
	}

	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = statsKey(id)
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate cached stats: %w", err)
	}

	return nil
}
