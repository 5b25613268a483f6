// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/docport/docport/internal/log"
	"github.com/docport/docport/internal/metrics"
	"github.com/docport/docport/internal/policy"
	"github.com/docport/docport/internal/render"
)

func (s *Server) handleTerms(w http.ResponseWriter, r *http.Request) {
	s.servePolicy(w, r, policy.KindTerms)
}

func (s *Server) handlePrivacy(w http.ResponseWriter, r *http.Request) {
	s.servePolicy(w, r, policy.KindPrivacy)
}

// servePolicy serves one legal-notice document. Unconfigured documents are
// 404; configured but unreadable ones are 503 so operators notice.
func (s *Server) servePolicy(w http.ResponseWriter, r *http.Request, kind policy.Kind) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	doc, err := s.policies.Document(kind)
	switch {
	case errors.Is(err, policy.ErrNotConfigured):
		metrics.IncPolicyRequest(string(kind), "unconfigured")
		http.NotFound(w, r)
		return
	case errors.Is(err, policy.ErrUnavailable):
		metrics.IncPolicyRequest(string(kind), "unavailable")
		logger.Warn().Err(err).Str("kind", string(kind)).Msg("policy document unavailable")
		http.Error(w, "Document temporarily unavailable", http.StatusServiceUnavailable)
		return
	case err != nil:
		logger.Error().Err(err).Str("kind", string(kind)).Msg("policy lookup failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	body, err := render.Shell(render.ShellData{
		SiteTitle: s.holder.Get().SiteTitle,
		PageTitle: doc.Title,
		Body:      template.HTML(doc.HTML),
	})
	if err != nil {
		logger.Error().Err(err).Str("kind", string(kind)).Msg("policy shell failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	metrics.IncPolicyRequest(string(kind), "served")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(body)
}
