package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradebit/internal/brokerage"
)

func newTestCache(t *testing.T) (*CacheService, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCacheService(NewRedisCacheFromClient(client), time.Minute), mr
}

func TestCacheService_PortfolioRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	positions := []brokerage.StockPosition{
		{Symbol: "NVDA", Shares: decimal.NewFromInt(2), USDBalance: decimal.NewFromInt(400)},
	}

	require.NoError(t, cache.SetPortfolio(ctx, "user-1", positions))

	got, ok := cache.GetPortfolio(ctx, "user-1")
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "NVDA", got[0].Symbol)
	assert.True(t, got[0].USDBalance.Equal(decimal.NewFromInt(400)))
}

func TestCacheService_PortfolioMiss(t *testing.T) {
	cache, _ := newTestCache(t)

	_, ok := cache.GetPortfolio(context.Background(), "nobody")
	assert.False(t, ok)
}

func TestCacheService_PortfolioExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetPortfolio(ctx, "user-1", []brokerage.StockPosition{{Symbol: "AAPL"}}))

	mr.FastForward(2 * time.Minute)

	_, ok := cache.GetPortfolio(ctx, "user-1")
	assert.False(t, ok)
}

func TestCacheService_PerformanceRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	type summary struct {
		Day *string `json:"day"`
	}
	day := "10.00"
	require.NoError(t, cache.SetPerformance(ctx, "user-1", summary{Day: &day}))

	var got summary
	require.True(t, cache.GetPerformance(ctx, "user-1", &got))
	require.NotNil(t, got.Day)
	assert.Equal(t, "10.00", *got.Day)
}

func TestCacheService_InvalidateUser(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetPortfolio(ctx, "user-1", []brokerage.StockPosition{{Symbol: "AAPL"}}))
	require.NoError(t, cache.SetPerformance(ctx, "user-1", map[string]string{"day": "1.00"}))

	require.NoError(t, cache.InvalidateUser(ctx, "user-1"))

	_, ok := cache.GetPortfolio(ctx, "user-1")
	assert.False(t, ok)

	var out map[string]string
	assert.False(t, cache.GetPerformance(ctx, "user-1", &out))
}
