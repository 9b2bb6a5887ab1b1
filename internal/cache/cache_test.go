package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheSetGet(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "FLOW-1-0001", "running", time.Minute))

	status, ok := c.Get(ctx, "FLOW-1-0001")
	assert.True(t, ok)
	assert.Equal(t, "running", status)
}

func TestMemoryCacheMiss(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Close()

	_, ok := c.Get(context.Background(), "FLOW-1-9999")
	assert.False(t, ok)
}

func TestMemoryCacheExpiry(t *testing.T) {
	// A long sweep interval so expiry is enforced by Get, not the janitor.
	c := NewMemoryCache(time.Hour)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "FLOW-1-0001", "completed", 10*time.Millisecond))

	_, ok := c.Get(ctx, "FLOW-1-0001")
	assert.True(t, ok)

	time.Sleep(30 * time.Millisecond)

	_, ok = c.Get(ctx, "FLOW-1-0001")
	assert.False(t, ok, "expired entry must not be returned")
}

func TestMemoryCacheOverwrite(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "FLOW-1-0001", "running", time.Minute))
	require.NoError(t, c.Set(ctx, "FLOW-1-0001", "completed", time.Minute))

	status, ok := c.Get(ctx, "FLOW-1-0001")
	assert.True(t, ok)
	assert.Equal(t, "completed", status)
}

func TestMemoryCacheConcurrentAccess(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("FLOW-1-%04d", i)
			_ = c.Set(ctx, key, "running", time.Minute)
			_, _ = c.Get(ctx, key)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		status, ok := c.Get(ctx, fmt.Sprintf("FLOW-1-%04d", i))
		assert.True(t, ok)
		assert.Equal(t, "running", status)
	}
}

func TestMemoryCacheCloseIdempotent(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	c.Close()
	c.Close()
}
