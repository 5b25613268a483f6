// SPDX-License-Identifier: MIT

package api

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/docport/docport/internal/cache"
	"github.com/docport/docport/internal/log"
	"github.com/docport/docport/internal/metrics"
	"github.com/docport/docport/internal/render"
	"github.com/docport/docport/internal/telemetry"
)

// handlePage serves one rendered guide page. Both /{slug}.html and the
// extensionless /{slug} land here.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	corpus := s.Corpus()
	if corpus == nil {
		http.Error(w, "Service warming up", http.StatusServiceUnavailable)
		return
	}

	slug := chi.URLParam(r, "slug")
	page, ok := corpus.Get(slug)
	if !ok {
		logger.Debug().Str(log.FieldSlug, slug).Msg("page not found")
		http.NotFound(w, r)
		return
	}

	etag := fmt.Sprintf(`W/"%s"`, page.Hash)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=300")
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	cfg := s.holder.Get()
	key := cache.PageKey(slug, page.Hash, cache.ShellFingerprint(cfg.SiteTitle))

	body, hit := s.cache.Get(key)
	trace.SpanFromContext(r.Context()).SetAttributes(telemetry.PageAttributes(slug, hit)...)
	if hit {
		metrics.IncCacheHit()
	} else {
		metrics.IncCacheMiss()
		var err error
		body, err = render.Shell(render.ShellData{
			SiteTitle: cfg.SiteTitle,
			PageTitle: page.Title,
			Body:      template.HTML(page.HTML),
		})
		if err != nil {
			logger.Error().Err(err).Str(log.FieldSlug, slug).Msg("page shell failed")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		s.cache.Set(key, body, cfg.CacheTTL)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(body)
}

// handleIndex serves the corpus listing at /.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	corpus := s.Corpus()
	if corpus == nil {
		http.Error(w, "Service warming up", http.StatusServiceUnavailable)
		return
	}

	cfg := s.holder.Get()

	var b strings.Builder
	b.WriteString("<h1>")
	b.WriteString(template.HTMLEscapeString(cfg.SiteTitle))
	b.WriteString("</h1>\n<ul class=\"index\">\n")
	for _, page := range corpus.Pages() {
		fmt.Fprintf(&b, "<li><a href=\"/%s.html\">%s</a></li>\n",
			page.Slug, template.HTMLEscapeString(page.Title))
	}
	b.WriteString("</ul>\n")

	body, err := render.Shell(render.ShellData{
		SiteTitle: cfg.SiteTitle,
		Body:      template.HTML(b.String()),
	})
	if err != nil {
		logger.Error().Err(err).Msg("index shell failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(body)
}
