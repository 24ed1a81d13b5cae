package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/config"
	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsHash(t *testing.T) {
	assert.Equal(t, "default", paramsHash(nil))
	assert.Equal(t, "default", paramsHash(map[string]string{"product": "  "}))

	a := paramsHash(map[string]string{"product": "sku-1", "horizon": "30"})
	b := paramsHash(map[string]string{"horizon": "30", "Product": "sku-1"})
	c := paramsHash(map[string]string{"product": "sku-2", "horizon": "30"})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 40)
}

func TestBuildKey(t *testing.T) {
	key := buildKey(simulationKeyPrefix, map[string]string{"product": "sku-1"})
	assert.True(t, strings.HasPrefix(key, "analysis:simulation:"))
	assert.True(t, strings.HasPrefix(latestReportKey, analysisKeyPrefix))
	assert.True(t, strings.HasPrefix(dashboardKeyPrefix, analysisKeyPrefix))
}

func TestBuildRedisOptions(t *testing.T) {
	opts, err := redisOptions(config.CacheConfig{RedisHost: "cache", RedisPort: "6380", RedisDB: 2})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)

	opts, err = redisOptions(config.CacheConfig{})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6379", opts.Addr)

	opts, err = redisOptions(config.CacheConfig{RedisURL: "redis://:secret@redis.internal:6379/4"})
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6379", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 4, opts.DB)

	_, err = redisOptions(config.CacheConfig{RedisURL: "http://nope"})
	assert.Error(t, err)
}

func TestEntryTTLs(t *testing.T) {
	ttls := entryTTLs(config.CacheConfig{})
	assert.Equal(t, 5*time.Minute, ttls[kindLatest])
	assert.Equal(t, 2*time.Minute, ttls[kindDashboard])
	assert.Equal(t, time.Minute, ttls[kindSimulation])

	ttls = entryTTLs(config.CacheConfig{AnalysisTTLSeconds: 600, SimulationTTLSeconds: 15, DashboardTTLSeconds: -1})
	assert.Equal(t, 10*time.Minute, ttls[kindLatest])
	assert.Equal(t, 2*time.Minute, ttls[kindDashboard])
	assert.Equal(t, 15*time.Second, ttls[kindSimulation])

	// defaults stay untouched
	assert.Equal(t, 5*time.Minute, defaultTTLs[kindLatest])
}

func TestDisabledCacheIsNoop(t *testing.T) {
	ctx := context.Background()
	c, err := NewAnalysisCache(config.CacheConfig{Enabled: false})
	require.NoError(t, err)

	require.NoError(t, c.SetLatest(ctx, &domain.AnalysisReport{}))
	report, found, err := c.GetLatest(ctx)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, report)

	require.NoError(t, c.SetDashboard(ctx, nil, &domain.Dashboard{}))
	_, found, err = c.GetDashboard(ctx, nil)
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = c.GetSimulation(ctx, map[string]string{"product": "a"})
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, c.InvalidateAll(ctx))
}
