// SPDX-License-Identifier: MIT

// Package metrics exposes the Prometheus collectors for the portal.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Corpus metrics
	pagesTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "docport_pages_total",
		Help: "Number of guide pages in the current corpus (last refresh)",
	})

	pagesRendered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docport_pages_rendered_total",
		Help: "Total number of Markdown pages rendered",
	})

	renderFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docport_render_failures_total",
		Help: "Total number of Markdown render failures",
	})

	// Refresh metrics
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docport_refresh_total",
		Help: "Refresh pipeline runs by outcome",
	}, []string{"outcome"}) // outcome=success|failure|busy

	refreshFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docport_refresh_failures_total",
		Help: "Refresh pipeline failures by stage",
	}, []string{"stage"}) // stage=scan|render|audit|manifest

	refreshDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docport_refresh_duration_seconds",
		Help:    "Time spent on a full scan, render and audit cycle",
		Buckets: prometheus.DefBuckets,
	})

	// Audit metrics
	auditFindings = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "docport_audit_findings",
		Help: "Findings of the last audit run by check",
	}, []string{"check"})

	auditErrors = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "docport_audit_errors",
		Help: "Error-severity findings of the last audit run",
	})

	// Serving metrics
	cacheOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docport_page_cache_ops_total",
		Help: "Page cache lookups by outcome",
	}, []string{"outcome"}) // outcome=hit|miss

	policyRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docport_policy_requests_total",
		Help: "Legal-notice page requests by document and status",
	}, []string{"kind", "status"}) // status=served|unconfigured|unavailable

	staticDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docport_static_denied_total",
		Help: "Static file requests denied by reason",
	}, []string{"reason"}) // reason=path_escape|directory_listing|method_not_allowed|not_found|internal_error
)

func RecordPagesCount(n int)    { pagesTotal.Set(float64(n)) }
func IncPageRendered()          { pagesRendered.Inc() }
func IncRenderFailure()         { renderFailures.Inc() }
func IncRefresh(outcome string) { refreshTotal.WithLabelValues(outcome).Inc() }
func IncRefreshFailure(stage string) {
	refreshFailuresTotal.WithLabelValues(stage).Inc()
}
func ObserveRefreshDuration(seconds float64) { refreshDurationSeconds.Observe(seconds) }

// RecordAudit publishes the outcome of the latest audit run.
func RecordAudit(byCheck map[string]int, errors int) {
	auditFindings.Reset()
	for check, n := range byCheck {
		auditFindings.WithLabelValues(check).Set(float64(n))
	}
	auditErrors.Set(float64(errors))
}

func IncCacheHit()  { cacheOps.WithLabelValues("hit").Inc() }
func IncCacheMiss() { cacheOps.WithLabelValues("miss").Inc() }

func IncPolicyRequest(kind, status string) {
	policyRequests.WithLabelValues(kind, status).Inc()
}

func IncStaticDenied(reason string) { staticDenied.WithLabelValues(reason).Inc() }
