// SPDX-License-Identifier: MIT

// Package jobs runs the refresh pipeline: scan the guide tree, render every
// page, audit the result and publish the new corpus atomically.
package jobs

import (
	"time"
)

// Status represents the outcome of the most recent refresh.
type Status struct {
	RunID         string    `json:"runId,omitempty"`
	LastRun       time.Time `json:"lastRun"`
	DurationMS    int64     `json:"durationMs"`
	Pages         int       `json:"pages"`
	AuditErrors   int       `json:"auditErrors"`
	AuditWarnings int       `json:"auditWarnings"`
	Error         string    `json:"error,omitempty"`
}

// Manifest is the machine-readable snapshot of one published corpus. It is
// written atomically next to the audit database after every refresh.
type Manifest struct {
	RunID       string         `json:"runId"`
	GeneratedAt time.Time      `json:"generatedAt"`
	Pages       []ManifestPage `json:"pages"`
	Audit       ManifestAudit  `json:"audit"`
}

// ManifestPage describes one published page.
type ManifestPage struct {
	Slug    string    `json:"slug"`
	Title   string    `json:"title"`
	Hash    string    `json:"hash"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// ManifestAudit summarizes the audit of the published corpus.
type ManifestAudit struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Findings int `json:"findings"`
}
