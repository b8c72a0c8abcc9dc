package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karlosatvar19/movies-app/internal/logger"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, logger.NewNop()), mr
}

func TestCache_SetAndGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "movies_findAll_0_10", payload{Name: "list", Count: 3}, time.Hour))

	var got payload
	require.True(t, c.Get(ctx, "movies_findAll_0_10", &got))
	assert.Equal(t, payload{Name: "list", Count: 3}, got)
}

func TestCache_MissReturnsFalse(t *testing.T) {
	c, _ := newTestCache(t)

	var got payload
	assert.False(t, c.Get(context.Background(), "nope", &got))
}

func TestCache_CorruptEntryIsDropped(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("movies:bad", "{not json"))

	var got payload
	assert.False(t, c.Get(ctx, "bad", &got))

	// The broken entry was removed.
	assert.False(t, mr.Exists("movies:bad"))
}

func TestCache_SetHonorsTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "expiring", payload{Name: "x"}, time.Minute))

	mr.FastForward(2 * time.Minute)

	var got payload
	assert.False(t, c.Get(ctx, "expiring", &got))
}

func TestCache_Delete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "doomed", payload{}, time.Hour))
	require.NoError(t, c.Delete(ctx, "doomed"))

	var got payload
	assert.False(t, c.Get(ctx, "doomed", &got))
}

func TestCache_DeleteByPattern(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "movies_findAll_0_10", payload{}, time.Hour))
	require.NoError(t, c.Set(ctx, "movies_search_space_0_10", payload{}, time.Hour))
	require.NoError(t, c.Set(ctx, "other_key", payload{}, time.Hour))

	deleted, err := c.DeleteByPattern(ctx, "movies_")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	var got payload
	assert.False(t, c.Get(ctx, "movies_findAll_0_10", &got))
	assert.False(t, c.Get(ctx, "movies_search_space_0_10", &got))
	assert.True(t, c.Get(ctx, "other_key", &got))
}
