// SPDX-License-Identifier: MIT

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)
)

// RunSummary is one row of the audit history.
type RunSummary struct {
	RunID      string    `json:"runId"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMS int64     `json:"durationMs"`
	Pages      int       `json:"pages"`
	Links      int       `json:"links"`
	Errors     int       `json:"errors"`
	Warnings   int       `json:"warnings"`
}

// Store persists audit reports to SQLite so regressions between refreshes
// stay inspectable.
type Store struct {
	db       *sql.DB
	keepRuns int
}

// NewStore opens the audit database and runs migrations. WAL mode and a
// busy timeout keep concurrent readers from tripping over a running save.
func NewStore(dbPath string, keepRuns int) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}

	store := &Store{db: db, keepRuns: keepRuns}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_runs (
		run_id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		pages INTEGER NOT NULL,
		links INTEGER NOT NULL,
		errors INTEGER NOT NULL,
		warnings INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_findings (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		check_name TEXT NOT NULL,
		severity TEXT NOT NULL CHECK(severity IN ('error', 'warning')),
		slug TEXT NOT NULL,
		line INTEGER NOT NULL DEFAULT 0,
		href TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_audit_runs_started ON audit_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_audit_findings_run ON audit_findings(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveReport stores a report and its findings, then prunes history beyond
// the configured retention.
func (s *Store) SaveReport(ctx context.Context, rep *Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO audit_runs (run_id, started_at, duration_ms, pages, links, errors, warnings)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rep.RunID,
		rep.StartedAt.UTC().Format(time.RFC3339Nano),
		rep.DurationMS,
		rep.Pages,
		rep.Links,
		rep.Errors,
		rep.Warnings,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, f := range rep.Findings {
		_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_findings (run_id, seq, check_name, severity, slug, line, href, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rep.RunID, i, string(f.Check), string(f.Severity), f.Slug, f.Line, f.Href, f.Detail,
		)
		if err != nil {
			return fmt.Errorf("insert finding %d: %w", i, err)
		}
	}

	if err := s.prune(ctx, tx); err != nil {
		return fmt.Errorf("prune history: %w", err)
	}

	return tx.Commit()
}

// prune deletes the oldest runs beyond keepRuns, findings first.
func (s *Store) prune(ctx context.Context, tx *sql.Tx) error {
	if s.keepRuns <= 0 {
		return nil
	}
	stale := `
	SELECT run_id FROM audit_runs
	ORDER BY started_at DESC
	LIMIT -1 OFFSET ?`

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM audit_findings WHERE run_id IN (`+stale+`)`, s.keepRuns); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx,
		`DELETE FROM audit_runs WHERE run_id IN (`+stale+`)`, s.keepRuns)
	return err
}

// History returns the most recent run summaries, newest first.
func (s *Store) History(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
	SELECT run_id, started_at, duration_ms, pages, links, errors, warnings
	FROM audit_runs
	ORDER BY started_at DESC
	LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var startedAt string
		if err := rows.Scan(&r.RunID, &startedAt, &r.DurationMS, &r.Pages, &r.Links, &r.Errors, &r.Warnings); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parse started_at for run %s: %w", r.RunID, err)
		}
		r.StartedAt = t
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Findings returns the findings recorded for one run, in stored order.
func (s *Store) Findings(ctx context.Context, runID string) ([]Finding, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT check_name, severity, slug, line, href, detail
	FROM audit_findings
	WHERE run_id = ?
	ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var findings []Finding
	for rows.Next() {
		var f Finding
		var check, severity string
		if err := rows.Scan(&check, &severity, &f.Slug, &f.Line, &f.Href, &f.Detail); err != nil {
			return nil, err
		}
		f.Check = Check(check)
		f.Severity = Severity(severity)
		findings = append(findings, f)
	}
	return findings, rows.Err()
}
