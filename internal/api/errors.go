// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"

	"github.com/docport/docport/internal/log"
)

// errorBody is the JSON error envelope shared by every endpoint.
type errorBody struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError writes the JSON error envelope.
func respondError(w http.ResponseWriter, r *http.Request, code int, msg, detail string) {
	writeJSON(w, code, errorBody{
		Error:     msg,
		Detail:    detail,
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}
