// SPDX-License-Identifier: MIT

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/docport/docport/internal/config"
	"github.com/docport/docport/internal/log"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache(0)
	t.Cleanup(func() { _ = c.Close() })

	c.Set("page:intro:abc", []byte("<h1>Intro</h1>"), time.Minute)

	got, ok := c.Get("page:intro:abc")
	require.True(t, ok)
	require.Equal(t, []byte("<h1>Intro</h1>"), got)

	_, ok = c.Get("page:other:def")
	require.False(t, ok)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(0)
	t.Cleanup(func() { _ = c.Close() })

	c.Set("k", []byte("v"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get("k")
	require.False(t, ok)
}

func TestMemoryCache_DeleteAndClear(t *testing.T) {
	c := NewMemoryCache(0)
	t.Cleanup(func() { _ = c.Close() })

	c.Set("a", []byte("1"), time.Minute)
	c.Set("b", []byte("2"), time.Minute)

	c.Delete("a")
	_, ok := c.Get("a")
	require.False(t, ok)

	c.Clear()
	_, ok = c.Get("b")
	require.False(t, ok)
	require.Equal(t, 0, c.Stats().CurrentSize)
}

func TestMemoryCache_Stats(t *testing.T) {
	c := NewMemoryCache(0)
	t.Cleanup(func() { _ = c.Close() })

	c.Set("k", []byte("v"), time.Minute)
	c.Get("k")
	c.Get("missing")

	stats := c.Stats()
	require.Equal(t, "memory", stats.Backend)
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
	require.Equal(t, int64(1), stats.Sets)
	require.Equal(t, 1, stats.CurrentSize)
}

func TestMemoryCache_JanitorEvicts(t *testing.T) {
	c := NewMemoryCache(20 * time.Millisecond)
	t.Cleanup(func() { _ = c.Close() })

	c.Set("k", []byte("v"), 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return c.Stats().Evictions >= 1
	}, time.Second, 10*time.Millisecond)
}

func TestPageKey(t *testing.T) {
	shell := ShellFingerprint("Docport")
	require.Equal(t, "page:integration-guide:deadbeef:"+shell,
		PageKey("integration-guide", "deadbeef", shell))
}

func TestShellFingerprint_ChangesWithTitle(t *testing.T) {
	a := ShellFingerprint("Docport")
	b := ShellFingerprint("Renamed Portal")
	require.NotEqual(t, a, b)
	require.Equal(t, a, ShellFingerprint("Docport"))
}

func TestNoOpCache(t *testing.T) {
	c := NewNoOpCache()
	c.Set("k", []byte("v"), time.Minute)
	_, ok := c.Get("k")
	require.False(t, ok)
	require.Equal(t, "none", c.Stats().Backend)
	require.NoError(t, c.Close())
}

func TestNew_BackendSelection(t *testing.T) {
	logger := log.WithComponent("test")

	c, err := New(&config.AppConfig{CacheBackend: config.CacheBackendMemory}, logger)
	require.NoError(t, err)
	require.Equal(t, "memory", c.Stats().Backend)
	_ = c.Close()

	c, err = New(&config.AppConfig{
		CacheBackend: config.CacheBackendBadger,
		CachePath:    t.TempDir(),
	}, logger)
	require.NoError(t, err)
	require.Equal(t, "badger", c.Stats().Backend)
	_ = c.Close()

	_, err = New(&config.AppConfig{CacheBackend: "bogus"}, logger)
	require.Error(t, err)
}
