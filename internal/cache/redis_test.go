// SPDX-License-Identifier: MIT

package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/docport/docport/internal/config"
	"github.com/docport/docport/internal/log"
)

func newRedisTestCache(t *testing.T) (Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	c, err := NewRedisCache(config.RedisConfig{Addr: mr.Addr()}, log.WithComponent("test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCache_SetGet(t *testing.T) {
	c, _ := newRedisTestCache(t)

	c.Set("page:intro:abc", []byte("<h1>Intro</h1>"), time.Minute)

	got, ok := c.Get("page:intro:abc")
	require.True(t, ok)
	require.Equal(t, []byte("<h1>Intro</h1>"), got)

	_, ok = c.Get("missing")
	require.False(t, ok)
}

func TestRedisCache_TTL(t *testing.T) {
	c, mr := newRedisTestCache(t)

	c.Set("k", []byte("v"), time.Minute)
	mr.FastForward(2 * time.Minute)

	_, ok := c.Get("k")
	require.False(t, ok)
}

func TestRedisCache_DeleteAndClear(t *testing.T) {
	c, _ := newRedisTestCache(t)

	c.Set("a", []byte("1"), time.Minute)
	c.Set("b", []byte("2"), time.Minute)

	c.Delete("a")
	_, ok := c.Get("a")
	require.False(t, ok)

	c.Clear()
	_, ok = c.Get("b")
	require.False(t, ok)
}

func TestRedisCache_Stats(t *testing.T) {
	c, _ := newRedisTestCache(t)

	c.Set("k", []byte("v"), time.Minute)
	c.Get("k")
	c.Get("missing")

	stats := c.Stats()
	require.Equal(t, "redis", stats.Backend)
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
	require.Equal(t, 1, stats.CurrentSize)
}

func TestNewRedisCache_ConnectionFailure(t *testing.T) {
	_, err := NewRedisCache(config.RedisConfig{Addr: "127.0.0.1:1"}, log.WithComponent("test"))
	require.Error(t, err)
}
