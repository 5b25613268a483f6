// SPDX-License-Identifier: MIT

package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfineRelPath(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "page.md"), []byte("x"), 0o600))

	tests := []struct {
		name    string
		rel     string
		wantErr bool
	}{
		{"plain file", "sub/page.md", false},
		{"cleaned dots", "sub/../sub/page.md", false},
		{"nonexistent inside root", "sub/new.md", false},
		{"escape via dotdot", "../etc/passwd", true},
		{"bare dotdot", "..", true},
		{"absolute target", "/etc/passwd", true},
		{"backslash", `sub\page.md`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConfineRelPath(root, tt.rel)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.True(t, filepath.IsAbs(got))
		})
	}
}

func TestConfineRelPath_SymlinkEscape(t *testing.T) {
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret"), []byte("x"), 0o600))

	root := t.TempDir()
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret"), filepath.Join(root, "link")))

	_, err := ConfineRelPath(root, "link")
	require.Error(t, err)
}

func TestIsRegularFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	require.NoError(t, IsRegularFile(file))
	require.Error(t, IsRegularFile(dir))
	require.Error(t, IsRegularFile(filepath.Join(dir, "missing")))
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())

	require.Error(t, EnsureDir(""))
}
