package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-signal/pkg/config"
)

func TestNewClient_Disabled(t *testing.T) {
	client, err := New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Close())
}

func TestCache_Disabled(t *testing.T) {
	client, _ := New(&config.Config{})
	cache := NewCache(client, "test", time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", map[string]int{"a": 1}))

	var out map[string]int
	found, err := cache.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_NilIsNoop(t *testing.T) {
	var cache *Cache
	found, err := cache.Get(context.Background(), "k", &struct{}{})
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestCache_RoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set, skipping integration test")
	}

	client, err := Dial(addr, "", 0)
	require.NoError(t, err)
	defer client.Close()

	cache := NewCache(client, "aegis-signal-test", time.Minute)
	ctx := context.Background()

	type payload struct{ Sharpe float64 }
	require.NoError(t, cache.Set(ctx, ReportKey("run-1"), payload{Sharpe: 1.5}))

	var got payload
	found, err := cache.Get(ctx, ReportKey("run-1"), &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1.5, got.Sharpe)
}
