// SPDX-License-Identifier: MIT

// Package policy serves the legal-notice documents. Operators point the
// server at Markdown files (optionally containing embedded HTML) and the
// rendered results appear at /terms and /privacy.
package policy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/docport/docport/internal/log"
	"github.com/docport/docport/internal/render"
)

// Kind names one legal-notice document.
type Kind string

const (
	KindTerms   Kind = "terms"
	KindPrivacy Kind = "privacy"
)

var (
	// ErrNotConfigured means no file path was set for the document.
	ErrNotConfigured = errors.New("policy document not configured")
	// ErrUnavailable means a path is set but the file could not be
	// read or rendered.
	ErrUnavailable = errors.New("policy document unavailable")
)

// defaultTitles are used when the document has no leading H1.
var defaultTitles = map[Kind]string{
	KindTerms:   "Terms of Service",
	KindPrivacy: "Privacy Policy",
}

// Document is one rendered legal notice.
type Document struct {
	Kind     Kind      `json:"kind"`
	Path     string    `json:"path"`
	Title    string    `json:"title"`
	HTML     []byte    `json:"-"`
	LoadedAt time.Time `json:"loadedAt"`
}

// Manager loads, caches and reloads the legal-notice documents.
type Manager struct {
	renderer  *render.Renderer
	logger    zerolog.Logger
	stability time.Duration

	mu    sync.RWMutex
	paths map[Kind]string
	docs  map[Kind]*Document
	fails map[Kind]error
}

// NewManager builds a Manager for the given file paths. Empty paths leave
// the corresponding document unconfigured.
func NewManager(renderer *render.Renderer, termsPath, privacyPath string) *Manager {
	m := &Manager{
		renderer:  renderer,
		logger:    log.WithComponent("policy"),
		stability: 100 * time.Millisecond,
		paths:     make(map[Kind]string),
		docs:      make(map[Kind]*Document),
		fails:     make(map[Kind]error),
	}
	if termsPath != "" {
		m.paths[KindTerms] = termsPath
	}
	if privacyPath != "" {
		m.paths[KindPrivacy] = privacyPath
	}
	return m
}

// Load reads and renders every configured document. Failures are recorded
// per document and reported by Document and Healthy; a broken terms file
// must not take the privacy page down with it.
func (m *Manager) Load(ctx context.Context) {
	m.mu.RLock()
	kinds := make([]Kind, 0, len(m.paths))
	for kind := range m.paths {
		kinds = append(kinds, kind)
	}
	m.mu.RUnlock()

	for _, kind := range kinds {
		if err := m.loadOne(ctx, kind); err != nil {
			m.logger.Error().Err(err).
				Str("kind", string(kind)).
				Msg("policy document load failed")
		}
	}
}

func (m *Manager) loadOne(ctx context.Context, kind Kind) error {
	m.mu.RLock()
	path, ok := m.paths[kind]
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	src, err := m.readStable(ctx, path)
	if err != nil {
		m.setFailure(kind, fmt.Errorf("read %s: %w", path, err))
		return err
	}

	res, err := m.renderer.Policy(src)
	if err != nil {
		m.setFailure(kind, fmt.Errorf("render %s: %w", path, err))
		return err
	}

	title := res.Title
	if title == "" {
		title = defaultTitles[kind]
	}

	doc := &Document{
		Kind:     kind,
		Path:     path,
		Title:    title,
		HTML:     res.HTML,
		LoadedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.docs[kind] = doc
	delete(m.fails, kind)
	m.mu.Unlock()

	m.logger.Info().
		Str("kind", string(kind)).
		Str(log.FieldPath, path).
		Str("title", title).
		Msg("policy document loaded")
	return nil
}

func (m *Manager) setFailure(kind Kind, err error) {
	m.mu.Lock()
	m.fails[kind] = err
	// A previously loaded copy is dropped: serving a stale legal notice
	// is worse than a temporary 503.
	delete(m.docs, kind)
	m.mu.Unlock()
}

// readStable reads path twice across a short window and only returns once
// both reads agree, so a half-written file is never rendered.
func (m *Manager) readStable(ctx context.Context, path string) ([]byte, error) {
	deadline := time.Now().Add(5 * time.Second)

	for {
		b1, err := os.ReadFile(path) // #nosec G304 -- operator-configured path
		if err != nil {
			return nil, err
		}
		info1, err := os.Stat(path)
		if err != nil {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.stability):
		}

		b2, err := os.ReadFile(path) // #nosec G304
		if err != nil {
			return nil, err
		}
		info2, err := os.Stat(path)
		if err != nil {
			return nil, err
		}

		if info2.Size() == info1.Size() && info2.ModTime().Equal(info1.ModTime()) && bytes.Equal(b1, b2) {
			return b2, nil
		}
		if time.Now().After(deadline) {
			return nil, errors.New("file kept changing during read")
		}
	}
}

// Document returns the rendered document for kind. ErrNotConfigured when no
// path is set, ErrUnavailable (wrapping the cause) when loading failed.
func (m *Manager) Document(kind Kind) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.paths[kind]; !ok {
		return nil, ErrNotConfigured
	}
	if doc, ok := m.docs[kind]; ok {
		return doc, nil
	}
	if cause, ok := m.fails[kind]; ok {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, cause)
	}
	return nil, ErrUnavailable
}

// Configured reports whether any document path is set.
func (m *Manager) Configured() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.paths) > 0
}

// Healthy returns nil when every configured document is loaded. Used by the
// readiness probe so broken legal notices mark the instance degraded.
func (m *Manager) Healthy() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for kind := range m.paths {
		if _, ok := m.docs[kind]; !ok {
			if cause, ok := m.fails[kind]; ok {
				return fmt.Errorf("%s: %w", kind, cause)
			}
			return fmt.Errorf("%s: not loaded", kind)
		}
	}
	return nil
}
