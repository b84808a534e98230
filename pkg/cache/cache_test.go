package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/pkg/cache"
)

func TestNilCacheDegrades(t *testing.T) {
	var c *cache.Cache
	ctx := context.Background()

	var out string
	assert.False(t, c.Get(ctx, "k", &out))
	assert.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	assert.NoError(t, c.Del(ctx, "k"))
	assert.NoError(t, c.Close())
	assert.Nil(t, c.Client())
}

func TestConnectUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := cache.Connect(ctx, "127.0.0.1:1", "")
	require.Error(t, err)
	assert.Nil(t, c)
}

func TestRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()

	c, err := cache.Connect(ctx, addr, os.Getenv("REDIS_PASSWORD"))
	require.NoError(t, err)
	defer c.Close()

	type entry struct{ URL string }
	require.NoError(t, c.Set(ctx, "storefront:test", entry{URL: "https://x/y.jpg"}, time.Minute))

	var got entry
	require.True(t, c.Get(ctx, "storefront:test", &got))
	assert.Equal(t, "https://x/y.jpg", got.URL)

	require.NoError(t, c.Del(ctx, "storefront:test"))
	assert.False(t, c.Get(ctx, "storefront:test", &got))
}
