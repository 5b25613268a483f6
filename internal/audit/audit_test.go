// SPDX-License-Identifier: MIT

package audit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docport/docport/internal/content"
	"github.com/docport/docport/internal/log"
	"github.com/docport/docport/internal/render"
)

func buildCorpus(t *testing.T, pages map[string]string) *content.Corpus {
	t.Helper()
	root := t.TempDir()
	for name, body := range pages {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(body), 0o600))
	}
	sources, err := content.Scan(context.Background(), root)
	require.NoError(t, err)
	corpus, err := content.Build(context.Background(), render.New(), sources, 2)
	require.NoError(t, err)
	return corpus
}

func TestRun_ReusesRunIDFromContext(t *testing.T) {
	corpus := buildCorpus(t, map[string]string{
		"page.md": "# Page\n\nBody.\n",
	})

	ctx := log.ContextWithRunID(context.Background(), "0b51a9c4")
	rep, err := New().Run(ctx, corpus)
	require.NoError(t, err)
	require.Equal(t, "0b51a9c4", rep.RunID)
}

func TestRun_GeneratesRunIDWithoutContext(t *testing.T) {
	corpus := buildCorpus(t, map[string]string{
		"page.md": "# Page\n\nBody.\n",
	})

	rep, err := New().Run(context.Background(), corpus)
	require.NoError(t, err)
	require.NotEmpty(t, rep.RunID)
}

func TestRun_CleanCorpus(t *testing.T) {
	corpus := buildCorpus(t, map[string]string{
		"integration-guide.md":            "# Integration guide\n\n## Setup\n\nSee [security](prod-maintain-secure-upgrade.md#security).\n",
		"prod-maintain-secure-upgrade.md": "# Maintain and upgrade\n\n## Security\n\nBack to [the guide](integration-guide.md).\n",
	})

	rep, err := New().Run(context.Background(), corpus)
	require.NoError(t, err)
	require.True(t, rep.Clean())
	require.Empty(t, rep.Findings)
	require.Equal(t, 2, rep.Pages)
	require.Equal(t, 2, rep.Links)
}

func TestRun_UnresolvedLink(t *testing.T) {
	corpus := buildCorpus(t, map[string]string{
		"start.md": "# Start\n\nRead [the missing page](gone.html).\n",
	})

	rep, err := New().Run(context.Background(), corpus)
	require.NoError(t, err)
	require.False(t, rep.Clean())
	require.Len(t, rep.Findings, 1)

	f := rep.Findings[0]
	require.Equal(t, CheckLinkUnresolved, f.Check)
	require.Equal(t, SeverityError, f.Severity)
	require.Equal(t, "start", f.Slug)
	require.Equal(t, "gone.html", f.Href)
}

func TestRun_UnresolvedFragment(t *testing.T) {
	corpus := buildCorpus(t, map[string]string{
		"start.md": "# Start\n\nSee [details](other.md#nonexistent).\n",
		"other.md": "# Other\n\n## Real Section\n",
	})

	rep, err := New().Run(context.Background(), corpus)
	require.NoError(t, err)
	require.Len(t, rep.Findings, 1)
	require.Equal(t, CheckFragmentUnresolved, rep.Findings[0].Check)
	require.Equal(t, 1, rep.ByCheck[CheckFragmentUnresolved])
}

func TestRun_SelfFragment(t *testing.T) {
	corpus := buildCorpus(t, map[string]string{
		"page.md": "# Page\n\n- [Setup](#setup)\n- [Broken](#missing)\n\n## Setup\n",
	})

	rep, err := New().Run(context.Background(), corpus)
	require.NoError(t, err)
	require.Len(t, rep.Findings, 1)

	f := rep.Findings[0]
	require.Equal(t, CheckFragmentUnresolved, f.Check)
	require.Equal(t, "#missing", f.Href)
}

func TestRun_TOCMismatchIsWarning(t *testing.T) {
	corpus := buildCorpus(t, map[string]string{
		"page.md": "# Page\n\n- [Old section name](#installation)\n\n## Installation\n",
	})

	rep, err := New().Run(context.Background(), corpus)
	require.NoError(t, err)
	require.True(t, rep.Clean(), "toc drift must not fail the audit")
	require.Equal(t, 1, rep.Warnings)
	require.Len(t, rep.Findings, 1)
	require.Equal(t, CheckTOCMismatch, rep.Findings[0].Check)
}

func TestRun_BodyCrossReferenceIsNotTOC(t *testing.T) {
	corpus := buildCorpus(t, map[string]string{
		"page.md": "# Page\n\n- [Setup](#setup)\n\n## Setup\n\nInstall things.\n\n" +
			"## Usage\n\nSee [the details above](#setup) before running.\n",
	})

	rep, err := New().Run(context.Background(), corpus)
	require.NoError(t, err)
	require.Empty(t, rep.Findings, "a cross reference after the first H2 may word its text freely")
	require.Zero(t, rep.Warnings)
}

func TestRun_TOCCaseInsensitiveMatch(t *testing.T) {
	corpus := buildCorpus(t, map[string]string{
		"page.md": "# Page\n\n- [installation](#installation)\n\n## Installation\n",
	})

	rep, err := New().Run(context.Background(), corpus)
	require.NoError(t, err)
	require.Empty(t, rep.Findings)
}

func TestRun_ExternalAndAppLinksCounted(t *testing.T) {
	corpus := buildCorpus(t, map[string]string{
		"page.md": "# Page\n\nSee [upstream](https://example.com/docs) and " +
			"[your organization settings](/#organization).\n",
	})

	rep, err := New().Run(context.Background(), corpus)
	require.NoError(t, err)
	require.True(t, rep.Clean())
	require.Equal(t, 1, rep.ExternalLinks)
	require.Equal(t, 1, rep.AppLinks)
}

func TestAnchorIDs(t *testing.T) {
	src := []byte(`<h2 id="setup">Setup</h2><a name="legacy"></a><p id="setup">dup</p>`)
	ids, dups, err := anchorIDs(src)
	require.NoError(t, err)
	require.Contains(t, ids, "setup")
	require.Contains(t, ids, "legacy")
	require.Equal(t, []string{"setup"}, dups)
}

func TestRun_FindingsSortedBySlugAndLine(t *testing.T) {
	corpus := buildCorpus(t, map[string]string{
		"bbb.md": "# B\n\n[one](zz.html)\n\n[two](yy.html)\n",
		"aaa.md": "# A\n\n[three](xx.html)\n",
	})

	rep, err := New().Run(context.Background(), corpus)
	require.NoError(t, err)
	require.Len(t, rep.Findings, 3)
	require.Equal(t, "aaa", rep.Findings[0].Slug)
	require.Equal(t, "bbb", rep.Findings[1].Slug)
	require.Less(t, rep.Findings[1].Line, rep.Findings[2].Line)
}
