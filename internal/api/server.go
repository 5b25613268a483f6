// SPDX-License-Identifier: MIT

// Package api is the HTTP surface of the portal: rendered guide pages, the
// legal notices, health probes and the JSON management API.
package api

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/docport/docport/internal/audit"
	"github.com/docport/docport/internal/cache"
	"github.com/docport/docport/internal/config"
	"github.com/docport/docport/internal/content"
	"github.com/docport/docport/internal/health"
	"github.com/docport/docport/internal/jobs"
	"github.com/docport/docport/internal/policy"
	"github.com/docport/docport/internal/render"
)

// Refresher triggers refresh runs and reports on past ones.
type Refresher interface {
	Refresh(ctx context.Context) (*jobs.Status, error)
	Status() jobs.Status
	LastReport() *audit.Report
}

// Server holds the handler dependencies. The corpus pointer is swapped
// atomically by the refresh pipeline; in-flight requests keep serving the
// snapshot they started with.
type Server struct {
	holder    *config.Holder
	renderer  *render.Renderer
	cache     cache.Cache
	policies  *policy.Manager
	health    *health.Manager
	refresher Refresher
	store     *audit.Store // nil disables history endpoints
	version   string

	corpus atomic.Pointer[content.Corpus]
}

// New wires a Server.
func New(holder *config.Holder, renderer *render.Renderer, pageCache cache.Cache, policies *policy.Manager, healthMgr *health.Manager, refresher Refresher, store *audit.Store, version string) *Server {
	return &Server{
		holder:    holder,
		renderer:  renderer,
		cache:     pageCache,
		policies:  policies,
		health:    healthMgr,
		refresher: refresher,
		store:     store,
		version:   version,
	}
}

// SetCorpus publishes a new corpus snapshot.
func (s *Server) SetCorpus(c *content.Corpus) {
	s.corpus.Store(c)
}

// Corpus returns the current snapshot, nil before the first refresh.
func (s *Server) Corpus() *content.Corpus {
	return s.corpus.Load()
}

// CorpusSnapshot feeds the readiness checker.
func (s *Server) CorpusSnapshot() (int, time.Time, bool) {
	c := s.corpus.Load()
	if c == nil {
		return 0, time.Time{}, false
	}
	return c.Len(), c.BuiltAt(), true
}
