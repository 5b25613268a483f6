// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys used across portal spans.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	PageSlugKey  = "page.slug"
	PageCacheKey = "page.cache" // hit|miss

	RefreshRunIDKey    = "refresh.run_id"
	RefreshPagesKey    = "refresh.pages"
	RefreshDurationKey = "refresh.duration_ms"

	AuditErrorsKey   = "audit.errors"
	AuditWarningsKey = "audit.warnings"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// PageAttributes creates page-serving span attributes.
func PageAttributes(slug string, cacheHit bool) []attribute.KeyValue {
	state := "miss"
	if cacheHit {
		state = "hit"
	}
	return []attribute.KeyValue{
		attribute.String(PageSlugKey, slug),
		attribute.String(PageCacheKey, state),
	}
}

// RefreshAttributes creates refresh-pipeline span attributes.
func RefreshAttributes(runID string, pages int, durationMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RefreshRunIDKey, runID),
		attribute.Int(RefreshPagesKey, pages),
		attribute.Int64(RefreshDurationKey, durationMS),
	}
}

// AuditAttributes creates audit span attributes.
func AuditAttributes(errors, warnings int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AuditErrorsKey, errors),
		attribute.Int(AuditWarningsKey, warnings),
	}
}

// ErrorAttributes creates error span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
