package cache

import (
	"context"
	"testing"
	"time"

	"github.com/SteveArevalo/CS499-CapStone/config"

	"github.com/stretchr/testify/require"
)

func TestDisabledCache(t *testing.T) {
	c, err := NewRedisCache(config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	require.False(t, c.Enabled())

	ctx := context.Background()
	var out []string
	require.ErrorIs(t, c.Get(ctx, AdoptionsReportKey, &out), ErrCacheDisabled)
	require.ErrorIs(t, c.Set(ctx, AdoptionsReportKey, out, time.Minute), ErrCacheDisabled)
	require.ErrorIs(t, c.Delete(ctx, AdoptionsReportKey), ErrCacheDisabled)
	require.ErrorIs(t, c.Ping(ctx), ErrCacheDisabled)
	require.NoError(t, c.Close())
}

func TestNilCacheIsDisabled(t *testing.T) {
	var c *RedisCache
	require.False(t, c.Enabled())
	require.NoError(t, c.Close())
}

func TestNewRedisCacheUnreachable(t *testing.T) {
	_, err := NewRedisCache(config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1})
	require.ErrorContains(t, err, "failed to connect to Redis")
}

func TestReportKeys(t *testing.T) {
	require.Equal(t, "report:adoptions", AdoptionsReportKey)
	require.Equal(t, "report:seasonal:date_of_birth", SeasonalReportKey("date_of_birth"))
	require.Equal(t, "report:seasonal:datetime", SeasonalReportKey("datetime"))
}
