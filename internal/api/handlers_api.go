// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/docport/docport/internal/jobs"
	"github.com/docport/docport/internal/log"
)

// statusResponse is the /api/status payload.
type statusResponse struct {
	Version string      `json:"version"`
	Refresh jobs.Status `json:"refresh"`
	Pages   int         `json:"pages"`
	BuiltAt *time.Time  `json:"builtAt,omitempty"`
	Cache   any         `json:"cache"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Version: s.version,
		Refresh: s.refresher.Status(),
		Cache:   s.cache.Stats(),
	}
	if corpus := s.Corpus(); corpus != nil {
		resp.Pages = corpus.Len()
		builtAt := corpus.BuiltAt()
		resp.BuiltAt = &builtAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePages(w http.ResponseWriter, r *http.Request) {
	corpus := s.Corpus()
	if corpus == nil {
		respondError(w, r, http.StatusServiceUnavailable, "corpus not ready", "no refresh has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pages": corpus.Pages(),
		"count": corpus.Len(),
	})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	report := s.refresher.LastReport()
	if report == nil {
		respondError(w, r, http.StatusNotFound, "no audit report", "no refresh has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAuditHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, r, http.StatusNotFound, "audit history disabled", "")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			respondError(w, r, http.StatusBadRequest, "invalid limit", "limit must be an integer between 1 and 500")
			return
		}
		limit = n
	}

	runs, err := s.store.History(r.Context(), limit)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Msg("audit history query failed")
		respondError(w, r, http.StatusInternalServerError, "history query failed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleAuditFindings(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, r, http.StatusNotFound, "audit history disabled", "")
		return
	}

	runID := chi.URLParam(r, "runID")
	findings, err := s.store.Findings(r.Context(), runID)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Msg("audit findings query failed")
		respondError(w, r, http.StatusInternalServerError, "findings query failed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runId":    runID,
		"findings": findings,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	status, err := s.refresher.Refresh(r.Context())
	if err != nil {
		if errors.Is(err, jobs.ErrBusy) {
			respondError(w, r, http.StatusConflict, "refresh already running", "a refresh is in progress; retry when it completes")
			return
		}
		logger.Error().Err(err).Str(log.FieldEvent, "refresh.api_failed").Msg("refresh failed")
		respondError(w, r, http.StatusInternalServerError, "refresh failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, status)
}
