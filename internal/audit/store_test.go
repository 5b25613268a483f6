// SPDX-License-Identifier: MIT

package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testReport(startedAt time.Time, errors int) *Report {
	rep := &Report{
		RunID:      uuid.NewString(),
		StartedAt:  startedAt,
		DurationMS: 12,
		Pages:      3,
		Links:      10,
		ByCheck:    make(map[Check]int),
	}
	for i := 0; i < errors; i++ {
		rep.add(Finding{
			Check:    CheckLinkUnresolved,
			Severity: SeverityError,
			Slug:     "start",
			Line:     4 + i,
			Href:     "gone.html",
			Detail:   `no page "gone" in the guide`,
		})
	}
	return rep
}

func TestStore_SaveAndLoad(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "audit.db"), 10)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	rep := testReport(time.Now().UTC(), 2)
	require.NoError(t, store.SaveReport(ctx, rep))

	runs, err := store.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, rep.RunID, runs[0].RunID)
	require.Equal(t, 2, runs[0].Errors)
	require.WithinDuration(t, rep.StartedAt, runs[0].StartedAt, time.Second)

	findings, err := store.Findings(ctx, rep.RunID)
	require.NoError(t, err)
	require.Len(t, findings, 2)
	require.Equal(t, CheckLinkUnresolved, findings[0].Check)
	require.Equal(t, "gone.html", findings[0].Href)
}

func TestStore_PruneKeepsNewestRuns(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "audit.db"), 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	var oldest *Report
	for i := 0; i < 3; i++ {
		rep := testReport(base.Add(time.Duration(i)*time.Minute), 1)
		if i == 0 {
			oldest = rep
		}
		require.NoError(t, store.SaveReport(ctx, rep))
	}

	runs, err := store.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, r := range runs {
		require.NotEqual(t, oldest.RunID, r.RunID)
	}

	// Findings of pruned runs are gone too.
	findings, err := store.Findings(ctx, oldest.RunID)
	require.NoError(t, err)
	require.Empty(t, findings)
}

func TestStore_HistoryDefaultLimit(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "audit.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.SaveReport(ctx, testReport(time.Now().UTC(), 0)))
	require.NoError(t, store.Ping(ctx))

	runs, err := store.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
}
