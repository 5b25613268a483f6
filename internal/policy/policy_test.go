// SPDX-License-Identifier: MIT

package policy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/docport/docport/internal/render"
)

func writePolicy(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestManager_LoadAndServe(t *testing.T) {
	terms := writePolicy(t, "terms.md",
		"# Terms of Service\n\nBe excellent to each other.\n\n<div class=\"legal\">Embedded HTML stays.</div>\n")

	m := NewManager(render.New(), terms, "")
	m.stability = time.Millisecond
	m.Load(context.Background())

	doc, err := m.Document(KindTerms)
	require.NoError(t, err)
	require.Equal(t, "Terms of Service", doc.Title)
	require.Contains(t, string(doc.HTML), `<div class="legal">`)

	_, err = m.Document(KindPrivacy)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestManager_TitleFallback(t *testing.T) {
	privacy := writePolicy(t, "privacy.md", "We collect nothing.\n")

	m := NewManager(render.New(), "", privacy)
	m.stability = time.Millisecond
	m.Load(context.Background())

	doc, err := m.Document(KindPrivacy)
	require.NoError(t, err)
	require.Equal(t, "Privacy Policy", doc.Title)
}

func TestManager_UnreadableFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "terms.md")

	m := NewManager(render.New(), missing, "")
	m.stability = time.Millisecond
	m.Load(context.Background())

	_, err := m.Document(KindTerms)
	require.ErrorIs(t, err, ErrUnavailable)
	require.Error(t, m.Healthy())
}

func TestManager_FailureDropsPreviousCopy(t *testing.T) {
	path := writePolicy(t, "terms.md", "# Terms\n")

	m := NewManager(render.New(), path, "")
	m.stability = time.Millisecond
	ctx := context.Background()
	m.Load(ctx)

	_, err := m.Document(KindTerms)
	require.NoError(t, err)
	require.NoError(t, m.Healthy())

	require.NoError(t, os.Remove(path))
	require.Error(t, m.loadOne(ctx, KindTerms))

	_, err = m.Document(KindTerms)
	require.ErrorIs(t, err, ErrUnavailable)
	require.Error(t, m.Healthy())
}

func TestManager_Unconfigured(t *testing.T) {
	m := NewManager(render.New(), "", "")
	m.Load(context.Background())

	require.False(t, m.Configured())
	require.NoError(t, m.Healthy())

	_, err := m.Document(KindTerms)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestManager_WatchReloadsOnWrite(t *testing.T) {
	path := writePolicy(t, "terms.md", "# Terms\n\nversion one\n")

	m := NewManager(render.New(), path, "")
	m.stability = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Load(ctx)

	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("# Terms\n\nversion two\n"), 0o600))

	require.Eventually(t, func() bool {
		doc, err := m.Document(KindTerms)
		return err == nil && strings.Contains(string(doc.HTML), "version two")
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}
