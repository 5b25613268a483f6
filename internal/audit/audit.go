// SPDX-License-Identifier: MIT

// Package audit validates a rendered guide corpus: every internal link must
// resolve to an existing page, every fragment to an anchor the rendered HTML
// actually carries, and tables of contents must match the sections they list.
package audit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/docport/docport/internal/content"
	"github.com/docport/docport/internal/log"
)

// Check identifies one kind of audit finding.
type Check string

const (
	CheckLinkUnresolved     Check = "link_unresolved"
	CheckFragmentUnresolved Check = "fragment_unresolved"
	CheckTOCMismatch        Check = "toc_mismatch"
	CheckDuplicateAnchor    Check = "duplicate_anchor"
)

// Severity grades a finding. Errors fail the audit, warnings do not.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one problem detected in one page.
type Finding struct {
	Check    Check    `json:"check"`
	Severity Severity `json:"severity"`
	Slug     string   `json:"slug"`
	Line     int      `json:"line,omitempty"`
	Href     string   `json:"href,omitempty"`
	Detail   string   `json:"detail"`
}

// Report is the outcome of auditing a complete corpus.
type Report struct {
	RunID         string        `json:"runId"`
	StartedAt     time.Time     `json:"startedAt"`
	Duration      time.Duration `json:"-"`
	DurationMS    int64         `json:"durationMs"`
	Pages         int           `json:"pages"`
	Links         int           `json:"links"`
	ExternalLinks int           `json:"externalLinks"`
	AppLinks      int           `json:"appLinks"`
	Errors        int           `json:"errors"`
	Warnings      int           `json:"warnings"`
	ByCheck       map[Check]int `json:"byCheck"`
	Findings      []Finding     `json:"findings"`
}

// Clean reports whether the audit passed, warnings permitted.
func (r *Report) Clean() bool { return r.Errors == 0 }

// Auditor runs corpus audits.
type Auditor struct {
	log zerolog.Logger
}

func New() *Auditor {
	return &Auditor{log: log.WithComponent("audit")}
}

// Run audits every page of the corpus and returns a report. A run ID
// already carried in ctx is reused so refresh and audit share one; the
// context is checked between pages so a shutdown does not wait on a large
// corpus.
func (a *Auditor) Run(ctx context.Context, corpus *content.Corpus) (*Report, error) {
	start := time.Now()
	runID := log.RunIDFromContext(ctx)
	if runID == "" {
		runID = uuid.NewString()
	}
	rep := &Report{
		RunID:     runID,
		StartedAt: start.UTC(),
		Pages:     corpus.Len(),
		ByCheck:   make(map[Check]int),
	}

	// Anchors are taken from the rendered HTML, not the Markdown source, so
	// the audit verifies exactly what a browser would try to scroll to.
	anchors := make(map[string]map[string]struct{}, corpus.Len())
	for _, page := range corpus.Pages() {
		ids, dups, err := anchorIDs(page.HTML)
		if err != nil {
			return nil, fmt.Errorf("parse rendered html for %q: %w", page.Slug, err)
		}
		anchors[page.Slug] = ids
		for _, id := range dups {
			rep.add(Finding{
				Check:    CheckDuplicateAnchor,
				Severity: SeverityError,
				Slug:     page.Slug,
				Detail:   fmt.Sprintf("anchor %q appears more than once", id),
			})
		}
	}

	for _, page := range corpus.Pages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a.auditPage(rep, page, anchors)
	}

	rep.Duration = time.Since(start)
	rep.DurationMS = rep.Duration.Milliseconds()
	sort.SliceStable(rep.Findings, func(i, j int) bool {
		if rep.Findings[i].Slug != rep.Findings[j].Slug {
			return rep.Findings[i].Slug < rep.Findings[j].Slug
		}
		return rep.Findings[i].Line < rep.Findings[j].Line
	})

	a.log.Info().
		Str(log.FieldRunID, rep.RunID).
		Int("pages", rep.Pages).
		Int("links", rep.Links).
		Int("errors", rep.Errors).
		Int("warnings", rep.Warnings).
		Dur("duration", rep.Duration).
		Str(log.FieldEvent, "audit.complete").
		Msg("audit complete")
	return rep, nil
}

func (a *Auditor) auditPage(rep *Report, page *content.Page, anchors map[string]map[string]struct{}) {
	headingText := make(map[string]string, len(page.Headings))
	firstH2 := 0
	for _, h := range page.Headings {
		headingText[h.ID] = h.Text
		if h.Level == 2 && firstH2 == 0 {
			firstH2 = h.Line
		}
	}

	for _, link := range page.Links {
		rep.Links++
		target := content.ClassifyHref(link.Href)

		switch target.Kind {
		case content.LinkExternal:
			rep.ExternalLinks++

		case content.LinkAppPath:
			// Links into the application shell (for example /#organization)
			// cannot be resolved against the guide corpus. Counted only.
			rep.AppLinks++

		case content.LinkInternal:
			ids, ok := anchors[target.Slug]
			if !ok {
				rep.add(Finding{
					Check:    CheckLinkUnresolved,
					Severity: SeverityError,
					Slug:     page.Slug,
					Line:     link.Line,
					Href:     link.Href,
					Detail:   fmt.Sprintf("no page %q in the guide", target.Slug),
				})
				continue
			}
			if target.Fragment != "" {
				if _, ok := ids[target.Fragment]; !ok {
					rep.add(Finding{
						Check:    CheckFragmentUnresolved,
						Severity: SeverityError,
						Slug:     page.Slug,
						Line:     link.Line,
						Href:     link.Href,
						Detail:   fmt.Sprintf("page %q has no anchor %q", target.Slug, target.Fragment),
					})
				}
			}

		case content.LinkSelfFragment:
			own := anchors[page.Slug]
			if _, ok := own[target.Fragment]; !ok {
				rep.add(Finding{
					Check:    CheckFragmentUnresolved,
					Severity: SeverityError,
					Slug:     page.Slug,
					Line:     link.Line,
					Href:     link.Href,
					Detail:   fmt.Sprintf("no anchor %q on this page", target.Fragment),
				})
				continue
			}
			// A contents entry whose text drifted from its section heading
			// still scrolls, but misleads the reader. Only the leading
			// contents list, before the first H2, is held to that. Cross
			// references later in the body may word the link freely.
			inContents := firstH2 == 0 || (link.Line > 0 && link.Line < firstH2)
			if want, ok := headingText[target.Fragment]; ok && link.Text != "" && inContents {
				if !strings.EqualFold(strings.TrimSpace(link.Text), strings.TrimSpace(want)) {
					rep.add(Finding{
						Check:    CheckTOCMismatch,
						Severity: SeverityWarning,
						Slug:     page.Slug,
						Line:     link.Line,
						Href:     link.Href,
						Detail:   fmt.Sprintf("entry %q does not match section heading %q", link.Text, want),
					})
				}
			}
		}
	}
}

func (r *Report) add(f Finding) {
	r.Findings = append(r.Findings, f)
	r.ByCheck[f.Check]++
	switch f.Severity {
	case SeverityError:
		r.Errors++
	case SeverityWarning:
		r.Warnings++
	}
}
