// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/docport/docport/internal/api/middleware"
)

// Router builds the chi router with the canonical middleware stack and all
// portal routes.
func (s *Server) Router() http.Handler {
	cfg := s.holder.Get()

	tracingService := ""
	if cfg.TracingEnabled {
		tracingService = "docport-api"
	}

	r := mw.NewRouter(mw.StackConfig{
		EnableCORS:            true,
		AllowedOrigins:        cfg.AllowedOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        tracingService,
		EnableLogging:         true,
		EnableRateLimit:       cfg.RateLimitEnabled,
		RateLimitGlobalRPM:    cfg.RateLimitGlobal,
		RateLimitBurst:        cfg.RateLimitBurst,
	})

	// Probes
	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)

	// Pages
	r.Get("/", s.handleIndex)
	r.Get("/terms", s.handleTerms)
	r.Get("/privacy", s.handlePrivacy)
	r.Handle("/static/*", http.StripPrefix("/static/", s.secureFileServer()))

	// Management API
	r.Route("/api", func(api chi.Router) {
		api.Get("/status", s.handleStatus)
		api.Get("/pages", s.handlePages)
		api.Get("/audit", s.handleAudit)
		api.Get("/audit/history", s.handleAuditHistory)
		api.Get("/audit/history/{runID}", s.handleAuditFindings)
		api.With(mw.RefreshRateLimit(), s.authMiddleware).Post("/refresh", s.handleRefresh)
	})

	// Guide pages last: chi prefers static routes, so /terms and /api never
	// fall through to the slug handlers.
	r.Get("/{slug}.html", s.handlePage)
	r.Get("/{slug}", s.handlePage)

	return r
}
