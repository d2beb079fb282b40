package kvcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUCache_SetThenGet(t *testing.T) {
	c := NewLRUCache(16)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", "v1", 60))

	value, hit, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "v1", value)
}

func TestLRUCache_MissOnUnknownKey(t *testing.T) {
	c := NewLRUCache(16)

	_, hit, err := c.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestLRUCache_ExpiresAfterTTL(t *testing.T) {
	c := NewLRUCache(16)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", "v1", 0))
	time.Sleep(5 * time.Millisecond)

	_, hit, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, hit, "a zero-second TTL entry must already be expired")
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache(2)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "1", 60))
	require.NoError(t, c.Set(ctx, "b", "2", 60))

	// touch "a" so "b" becomes the least recently used entry
	_, _, _ = c.Get(ctx, "a")

	require.NoError(t, c.Set(ctx, "c", "3", 60))

	_, hitB, _ := c.Get(ctx, "b")
	_, hitA, _ := c.Get(ctx, "a")
	_, hitC, _ := c.Get(ctx, "c")

	assert.False(t, hitB, "b should have been evicted as least recently used")
	assert.True(t, hitA)
	assert.True(t, hitC)
}

func TestLRUCache_OverwriteRefreshesTTL(t *testing.T) {
	c := NewLRUCache(16)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", "v1", 0))
	require.NoError(t, c.Set(ctx, "k1", "v2", 60))

	value, hit, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "v2", value)
}
