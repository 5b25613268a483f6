// SPDX-License-Identifier: MIT

package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/docport/docport/internal/log"
)

// authMiddleware enforces the Bearer token on mutating endpoints. With no
// token configured the endpoint stays open, which suits single-operator
// deployments behind a trusted proxy.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := s.holder.Get().APIToken
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		logger := log.WithComponentFromContext(r.Context(), "auth")

		reqToken := bearerToken(r)
		if reqToken == "" {
			logger.Warn().Str(log.FieldEvent, "auth.missing_header").Msg("authorization header missing")
			respondError(w, r, http.StatusUnauthorized, "unauthorized", "")
			return
		}

		if subtle.ConstantTimeCompare([]byte(reqToken), []byte(token)) != 1 {
			logger.Warn().Str(log.FieldEvent, "auth.invalid_token").Msg("invalid api token")
			respondError(w, r, http.StatusUnauthorized, "unauthorized", "")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return h[len(prefix):]
	}
	return ""
}
