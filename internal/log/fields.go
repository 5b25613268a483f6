// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldRunID     = "run_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Corpus fields
	FieldSlug    = "slug"
	FieldPath    = "path"
	FieldBaseURL = "base_url"

	// HTTP fields
	FieldMethod = "method"
	FieldStatus = "status"
	FieldRemote = "remote_addr"
)
