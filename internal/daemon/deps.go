// SPDX-License-Identifier: MIT

// Package daemon owns the process lifecycle: the HTTP servers, background
// subsystems and graceful shutdown.
package daemon

import (
	"net/http"

	"github.com/rs/zerolog"
)

// Deps contains the dependencies the Manager needs. Keeping them in one
// struct makes test wiring straightforward.
type Deps struct {
	// Logger is the structured logger for the daemon.
	Logger zerolog.Logger

	// APIHandler serves the portal and the management API.
	APIHandler http.Handler

	// MetricsHandler serves Prometheus metrics. Nil disables the metrics
	// server.
	MetricsHandler http.Handler

	// MetricsAddr is the metrics listen address. Empty disables the
	// metrics server even when a handler is set.
	MetricsAddr string

	// TLSCert and TLSKey enable HTTPS on the API server when both are set.
	TLSCert string
	TLSKey  string
}

// Validate checks the dependencies.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	return nil
}
