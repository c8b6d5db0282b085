package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tradebit/internal/brokerage"
)

// CacheService provides short-TTL caching for live brokerage data and
// computed performance summaries. A cache failure is never fatal to the
// caller; misses and errors both mean "go to the source".
type CacheService struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewCacheService creates a new cache service
func NewCacheService(redis *RedisCache, ttl time.Duration) *CacheService {
	return &CacheService{
		redis: redis,
		ttl:   ttl,
	}
}

// PortfolioKey returns the cache key for a user's live positions
func PortfolioKey(userID string) string {
	return fmt.Sprintf("portfolio:%s", userID)
}

// PerformanceKey returns the cache key for a user's performance summary
func PerformanceKey(userID string) string {
	return fmt.Sprintf("performance:%s", userID)
}

// GetPortfolio returns cached positions, or (nil, false) on a miss
func (c *CacheService) GetPortfolio(ctx context.Context, userID string) ([]brokerage.StockPosition, bool) {
	raw, err := c.redis.Get(ctx, PortfolioKey(userID))
	if err != nil {
		return nil, false
	}

	var positions []brokerage.StockPosition
	if err := json.Unmarshal([]byte(raw), &positions); err != nil {
		return nil, false
	}
	return positions, true
}

// SetPortfolio caches live positions for the configured TTL
func (c *CacheService) SetPortfolio(ctx context.Context, userID string, positions []brokerage.StockPosition) error {
	data, err := json.Marshal(positions)
	if err != nil {
		return fmt.Errorf("failed to marshal positions: %w", err)
	}
	return c.redis.Set(ctx, PortfolioKey(userID), data, c.ttl)
}

// GetPerformance returns a cached performance summary into out,
// reporting whether the key was present
func (c *CacheService) GetPerformance(ctx context.Context, userID string, out interface{}) bool {
	raw, err := c.redis.Get(ctx, PerformanceKey(userID))
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(raw), out) == nil
}

// SetPerformance caches a computed performance summary
func (c *CacheService) SetPerformance(ctx context.Context, userID string, summary interface{}) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal performance summary: %w", err)
	}
	return c.redis.Set(ctx, PerformanceKey(userID), data, c.ttl)
}

// InvalidateUser drops all cached entries for a user. Called after a
// snapshot write or a credential disconnect so stale figures are not
// served.
func (c *CacheService) InvalidateUser(ctx context.Context, userID string) error {
	return c.redis.Del(ctx, PortfolioKey(userID), PerformanceKey(userID))
}
