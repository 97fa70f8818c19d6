package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type cachedList struct {
	IDs []string `json:"ids"`
}

func TestLocalCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewLocalCache(10)
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "ranking:all", cachedList{IDs: []string{"a", "b"}}, time.Minute))

	var got cachedList
	ok, err := c.Get(ctx, "ranking:all", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"a", "b"}, got.IDs)

	ok, err = c.Get(ctx, "missing", &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLocalCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewLocalCache(10)
	require.NoError(t, err)

	now := time.Now()
	c.now = func() time.Time { return now }
	require.NoError(t, c.Set(ctx, "k", cachedList{IDs: []string{"a"}}, time.Second))

	c.now = func() time.Time { return now.Add(2 * time.Second) }
	var got cachedList
	ok, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLocalCacheDeletePrefix(t *testing.T) {
	ctx := context.Background()
	c, err := NewLocalCache(10)
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "ranking:all", cachedList{}, time.Minute))
	require.NoError(t, c.Set(ctx, "ranking:bc1", cachedList{}, time.Minute))
	require.NoError(t, c.Set(ctx, "bootcamps", cachedList{}, time.Minute))

	require.NoError(t, c.DeletePrefix(ctx, "ranking:"))

	var got cachedList
	ok, _ := c.Get(ctx, "ranking:all", &got)
	require.False(t, ok)
	ok, _ = c.Get(ctx, "ranking:bc1", &got)
	require.False(t, ok)
	ok, _ = c.Get(ctx, "bootcamps", &got)
	require.True(t, ok)
}
