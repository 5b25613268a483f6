// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolder_GetReturnsInitial(t *testing.T) {
	loader := NewLoader("", "test")
	cfg, err := loader.Load()
	require.NoError(t, err)

	holder := NewHolder(cfg, loader, "")
	assert.Equal(t, cfg.APIListenAddr, holder.Get().APIListenAddr)
}

func TestHolder_ReloadSwapsConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("site:\n  title: First\n"), 0o600))

	loader := NewLoader(path, "test")
	cfg, err := loader.Load()
	require.NoError(t, err)
	require.Equal(t, "First", cfg.SiteTitle)

	holder := NewHolder(cfg, loader, path)

	require.NoError(t, os.WriteFile(path, []byte("site:\n  title: Second\n"), 0o600))
	require.NoError(t, holder.Reload(context.Background()))
	assert.Equal(t, "Second", holder.Get().SiteTitle)
}

func TestHolder_ReloadKeepsOldConfigOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("site:\n  title: Good\n"), 0o600))

	loader := NewLoader(path, "test")
	cfg, err := loader.Load()
	require.NoError(t, err)

	holder := NewHolder(cfg, loader, path)

	// Unknown field makes the strict parse fail.
	require.NoError(t, os.WriteFile(path, []byte("nonsense: true\n"), 0o600))
	require.Error(t, holder.Reload(context.Background()))
	assert.Equal(t, "Good", holder.Get().SiteTitle)
}

func TestHolder_SubscribeReceivesReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("site:\n  title: Before\n"), 0o600))

	loader := NewLoader(path, "test")
	cfg, err := loader.Load()
	require.NoError(t, err)

	holder := NewHolder(cfg, loader, path)
	ch := make(chan AppConfig, 1)
	holder.Subscribe(ch)

	require.NoError(t, os.WriteFile(path, []byte("site:\n  title: After\n"), 0o600))
	require.NoError(t, holder.Reload(context.Background()))

	select {
	case got := <-ch:
		assert.Equal(t, "After", got.SiteTitle)
	case <-time.After(time.Second):
		t.Fatal("expected reload notification")
	}
}
