// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/docport/docport/internal/audit"
	"github.com/docport/docport/internal/content"
	"github.com/docport/docport/internal/log"
	"github.com/docport/docport/internal/metrics"
	"github.com/docport/docport/internal/render"
	"github.com/docport/docport/internal/telemetry"
)

// ErrBusy is returned when a refresh is already in flight.
var ErrBusy = errors.New("refresh already running")

// Config holds the per-run settings for the pipeline.
type Config struct {
	GuideRoot string
	DataDir   string
	Workers   int
}

// Runner executes refreshes one at a time and remembers the last outcome.
type Runner struct {
	getCfg   func() Config
	renderer *render.Renderer
	auditor  *audit.Auditor
	store    *audit.Store // nil disables history
	publish  func(*content.Corpus)

	tracer trace.Tracer

	inFlight atomic.Bool

	mu         sync.RWMutex
	last       Status
	lastReport *audit.Report
}

// NewRunner builds a Runner. publish is called with every successfully
// audited corpus; store may be nil.
func NewRunner(getCfg func() Config, renderer *render.Renderer, auditor *audit.Auditor, store *audit.Store, publish func(*content.Corpus)) *Runner {
	return &Runner{
		getCfg:   getCfg,
		renderer: renderer,
		auditor:  auditor,
		store:    store,
		publish:  publish,
		tracer:   telemetry.Tracer("jobs"),
	}
}

// Refresh runs the full pipeline. Concurrent calls fail fast with ErrBusy
// rather than queueing: the second caller would only republish the same
// tree.
func (r *Runner) Refresh(ctx context.Context) (*Status, error) {
	if !r.inFlight.CompareAndSwap(false, true) {
		metrics.IncRefresh("busy")
		return nil, ErrBusy
	}
	defer r.inFlight.Store(false)

	// One run ID for the whole pipeline. The auditor picks it up from the
	// context, so logs and the stored report correlate.
	runID := uuid.NewString()
	ctx = log.ContextWithRunID(ctx, runID)
	ctx, span := r.tracer.Start(ctx, "refresh")
	defer span.End()

	logger := log.WithComponentFromContext(ctx, "jobs")
	start := time.Now()
	cfg := r.getCfg()

	logger.Info().
		Str(log.FieldEvent, "refresh.start").
		Str(log.FieldPath, cfg.GuideRoot).
		Msg("starting refresh")

	status, err := r.run(ctx, cfg)
	duration := time.Since(start)

	if err != nil {
		metrics.IncRefresh("failure")
		r.recordFailure(err, duration)
		span.SetAttributes(telemetry.ErrorAttributes(err, "refresh")...)
		logger.Error().Err(err).
			Str(log.FieldEvent, "refresh.failed").
			Dur("duration", duration).
			Msg("refresh failed")
		return nil, err
	}

	status.DurationMS = duration.Milliseconds()
	metrics.IncRefresh("success")
	metrics.ObserveRefreshDuration(duration.Seconds())
	span.SetAttributes(telemetry.RefreshAttributes(status.RunID, status.Pages, status.DurationMS)...)
	span.SetAttributes(telemetry.AuditAttributes(status.AuditErrors, status.AuditWarnings)...)

	r.mu.Lock()
	r.last = *status
	r.mu.Unlock()

	logger.Info().
		Str(log.FieldEvent, "refresh.success").
		Int("pages", status.Pages).
		Int("audit_errors", status.AuditErrors).
		Dur("duration", duration).
		Msg("refresh complete")
	return status, nil
}

func (r *Runner) run(ctx context.Context, cfg Config) (*Status, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	sources, err := content.Scan(ctx, cfg.GuideRoot)
	if err != nil {
		metrics.IncRefreshFailure("scan")
		return nil, fmt.Errorf("scan guide: %w", err)
	}

	corpus, err := content.Build(ctx, r.renderer, sources, workers)
	if err != nil {
		metrics.IncRefreshFailure("render")
		metrics.IncRenderFailure()
		return nil, fmt.Errorf("render pages: %w", err)
	}
	for range corpus.Pages() {
		metrics.IncPageRendered()
	}

	report, err := r.auditor.Run(ctx, corpus)
	if err != nil {
		metrics.IncRefreshFailure("audit")
		return nil, fmt.Errorf("audit corpus: %w", err)
	}

	byCheck := make(map[string]int, len(report.ByCheck))
	for check, n := range report.ByCheck {
		byCheck[string(check)] = n
	}
	metrics.RecordAudit(byCheck, report.Errors)
	metrics.RecordPagesCount(corpus.Len())

	if r.store != nil {
		if err := r.store.SaveReport(ctx, report); err != nil {
			// History is best effort. The corpus still ships.
			logger := log.WithComponentFromContext(ctx, "jobs")
			logger.Warn().Err(err).
				Str(log.FieldRunID, report.RunID).
				Msg("saving audit report failed")
		}
	}

	if err := writeManifest(ctx, cfg.DataDir, buildManifest(corpus, report)); err != nil {
		metrics.IncRefreshFailure("manifest")
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	r.publish(corpus)

	r.mu.Lock()
	r.lastReport = report
	r.mu.Unlock()

	return &Status{
		RunID:         report.RunID,
		LastRun:       time.Now().UTC(),
		Pages:         corpus.Len(),
		AuditErrors:   report.Errors,
		AuditWarnings: report.Warnings,
	}, nil
}

func (r *Runner) recordFailure(err error, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last.Error = err.Error()
	r.last.DurationMS = duration.Milliseconds()
}

// Status returns a copy of the last refresh outcome.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// LastReport returns the audit report of the last successful refresh, or
// nil when none has completed yet.
func (r *Runner) LastReport() *audit.Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastReport
}

// LastRun feeds the readiness checker.
func (r *Runner) LastRun() (time.Time, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last.LastRun, r.last.Error
}

func buildManifest(corpus *content.Corpus, report *audit.Report) *Manifest {
	m := &Manifest{
		RunID:       report.RunID,
		GeneratedAt: time.Now().UTC(),
		Pages:       make([]ManifestPage, 0, corpus.Len()),
		Audit: ManifestAudit{
			Errors:   report.Errors,
			Warnings: report.Warnings,
			Findings: len(report.Findings),
		},
	}
	for _, page := range corpus.Pages() {
		m.Pages = append(m.Pages, ManifestPage{
			Slug:    page.Slug,
			Title:   page.Title,
			Hash:    page.Hash,
			Size:    page.Size,
			ModTime: page.ModTime.UTC(),
		})
	}
	return m
}
