// SPDX-License-Identifier: MIT

// Package health provides liveness and readiness checks for deployments.
// It supports Docker HEALTHCHECK and Kubernetes probes with per-component
// status.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/docport/docport/internal/log"
)

// Status represents the overall health/readiness status.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the result of one component check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// ReadinessResponse is the readiness payload.
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker is one component health check.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager runs the registered checks.
type Manager struct {
	version  string
	checkers []Checker
}

// NewManager creates a health check manager.
func NewManager(version string) *Manager {
	return &Manager{
		version:  version,
		checkers: make([]Checker, 0),
	}
}

// RegisterChecker adds a component check.
func (m *Manager) RegisterChecker(checker Checker) {
	m.checkers = append(m.checkers, checker)
}

// Health performs a liveness check. The process being able to answer is
// enough; component state only appears in verbose mode.
func (m *Manager) Health(ctx context.Context, verbose bool) HealthResponse {
	resp := HealthResponse{
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: time.Now(),
	}

	if verbose && len(m.checkers) > 0 {
		resp.Checks = make(map[string]CheckResult)
		hasUnhealthy := false
		hasDegraded := false

		for _, checker := range m.checkers {
			result := checker.Check(ctx)
			resp.Checks[checker.Name()] = result

			switch result.Status {
			case StatusUnhealthy:
				hasUnhealthy = true
			case StatusDegraded:
				hasDegraded = true
			}
		}

		if hasUnhealthy {
			resp.Status = StatusUnhealthy
		} else if hasDegraded {
			resp.Status = StatusDegraded
		}
	}

	return resp
}

// Ready performs a readiness check. Unhealthy components take the instance
// out of rotation; degraded ones keep it serving.
func (m *Manager) Ready(ctx context.Context) ReadinessResponse {
	resp := ReadinessResponse{
		Ready:     true,
		Status:    StatusHealthy,
		Timestamp: time.Now(),
	}

	if len(m.checkers) == 0 {
		return resp
	}

	resp.Checks = make(map[string]CheckResult)
	hasUnhealthy := false
	hasDegraded := false

	for _, checker := range m.checkers {
		result := checker.Check(ctx)
		resp.Checks[checker.Name()] = result

		switch result.Status {
		case StatusUnhealthy:
			hasUnhealthy = true
			resp.Ready = false
		case StatusDegraded:
			hasDegraded = true
		}
	}

	if hasUnhealthy {
		resp.Status = StatusUnhealthy
	} else if hasDegraded {
		resp.Status = StatusDegraded
	}

	return resp
}

// ServeHealth handles HTTP liveness requests.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "health")
	verbose := r.URL.Query().Get("verbose") == "true"

	resp := m.Health(r.Context(), verbose)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK) // Always 200 for liveness

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "health.encode_error").Msg("failed to encode health response")
	}
}

// ServeReady handles HTTP readiness requests.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "readiness")

	resp := m.Ready(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if resp.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "readiness.encode_error").Msg("failed to encode readiness response")
	}
}

// CorpusChecker reports whether a guide corpus has been built.
type CorpusChecker struct {
	snapshot func() (pages int, builtAt time.Time, ok bool)
}

// NewCorpusChecker creates a checker backed by a corpus snapshot function.
func NewCorpusChecker(snapshot func() (int, time.Time, bool)) *CorpusChecker {
	return &CorpusChecker{snapshot: snapshot}
}

func (c *CorpusChecker) Name() string { return "corpus" }

func (c *CorpusChecker) Check(_ context.Context) CheckResult {
	pages, builtAt, ok := c.snapshot()
	if !ok {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: "no corpus built yet",
		}
	}
	if pages == 0 {
		return CheckResult{
			Status:  StatusDegraded,
			Message: "corpus is empty",
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: fmt.Sprintf("%d pages, built %s", pages, builtAt.UTC().Format(time.RFC3339)),
	}
}

// PolicyChecker reports the state of the legal-notice documents. Broken
// documents degrade the instance without pulling it out of rotation: the
// guide itself is still servable.
type PolicyChecker struct {
	healthy func() error
}

// NewPolicyChecker wraps the policy manager's health function.
func NewPolicyChecker(healthy func() error) *PolicyChecker {
	return &PolicyChecker{healthy: healthy}
}

func (c *PolicyChecker) Name() string { return "policy" }

func (c *PolicyChecker) Check(_ context.Context) CheckResult {
	if err := c.healthy(); err != nil {
		return CheckResult{
			Status: StatusDegraded,
			Error:  err.Error(),
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: "all configured documents loaded",
	}
}

// StoreChecker pings the audit history database.
type StoreChecker struct {
	ping func(ctx context.Context) error
}

// NewStoreChecker wraps a database ping.
func NewStoreChecker(ping func(ctx context.Context) error) *StoreChecker {
	return &StoreChecker{ping: ping}
}

func (c *StoreChecker) Name() string { return "audit_store" }

func (c *StoreChecker) Check(ctx context.Context) CheckResult {
	if err := c.ping(ctx); err != nil {
		return CheckResult{
			Status: StatusDegraded,
			Error:  err.Error(),
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: "database reachable",
	}
}

// RefreshChecker reports on the last refresh run.
type RefreshChecker struct {
	lastRun func() (time.Time, string)
	maxAge  time.Duration
}

// NewRefreshChecker creates a checker for the last refresh outcome. maxAge
// of zero disables the staleness check.
func NewRefreshChecker(lastRun func() (time.Time, string), maxAge time.Duration) *RefreshChecker {
	return &RefreshChecker{lastRun: lastRun, maxAge: maxAge}
}

func (c *RefreshChecker) Name() string { return "last_refresh" }

func (c *RefreshChecker) Check(_ context.Context) CheckResult {
	lastRun, lastError := c.lastRun()

	if lastRun.IsZero() {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: "no successful refresh yet",
		}
	}
	if lastError != "" {
		return CheckResult{
			Status:  StatusDegraded,
			Error:   lastError,
			Message: "last refresh failed",
		}
	}
	if c.maxAge > 0 && time.Since(lastRun) > c.maxAge {
		return CheckResult{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("last successful refresh over %s ago", c.maxAge),
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: "last refresh successful",
	}
}
