// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate checks the resolved configuration for contradictions and
// unusable values. It is the last step of Loader.Load.
func Validate(cfg AppConfig) error {
	if cfg.DataDir == "" {
		return fmt.Errorf("dataDir must not be empty")
	}
	if cfg.GuideRoot == "" {
		return fmt.Errorf("guideRoot must not be empty")
	}

	if err := validateListenAddr("api.listenAddr", cfg.APIListenAddr); err != nil {
		return err
	}
	if cfg.MetricsEnabled {
		if err := validateListenAddr("metrics.listenAddr", cfg.MetricsAddr); err != nil {
			return err
		}
		if cfg.MetricsAddr == cfg.APIListenAddr {
			return fmt.Errorf("metrics.listenAddr must differ from api.listenAddr")
		}
	}

	switch cfg.CacheBackend {
	case CacheBackendMemory, CacheBackendBadger:
	case CacheBackendRedis:
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown cache backend %q (memory, redis, badger)", cfg.CacheBackend)
	}
	if cfg.CacheTTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}

	if cfg.RateLimitEnabled {
		if cfg.RateLimitGlobal <= 0 {
			return fmt.Errorf("rateLimit.global must be positive when rate limiting is enabled")
		}
		if cfg.RateLimitBurst < 0 {
			return fmt.Errorf("rateLimit.burst must not be negative")
		}
	}

	// TLS: cert and key come as a pair. Both empty is fine (self-signed
	// certificates are generated on demand).
	if cfg.TLSEnabled {
		if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
			return fmt.Errorf("tls.cert and tls.key must be set together")
		}
	}

	if cfg.WatchEnabled && cfg.WatchDebounce <= 0 {
		return fmt.Errorf("watch.debounce must be positive")
	}

	if cfg.AuditKeepRuns <= 0 {
		return fmt.Errorf("audit.keepRuns must be positive")
	}

	if cfg.TracingEnabled {
		switch cfg.TracingExporter {
		case "grpc", "http":
		default:
			return fmt.Errorf("unknown tracing exporter %q (grpc, http)", cfg.TracingExporter)
		}
		if cfg.TracingEndpoint == "" {
			return fmt.Errorf("tracing.endpoint is required when tracing is enabled")
		}
		if cfg.TracingSamplingRate < 0 || cfg.TracingSamplingRate > 1 {
			return fmt.Errorf("tracing.samplingRate must be within [0,1]")
		}
	}

	return nil
}

func validateListenAddr(field, addr string) error {
	if addr == "" {
		return fmt.Errorf("%s must not be empty", field)
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%s: invalid listen address %q: %w", field, addr, err)
	}
	if port == "" {
		return fmt.Errorf("%s: missing port in %q", field, addr)
	}
	if host != "" && strings.ContainsAny(host, " \t") {
		return fmt.Errorf("%s: invalid host in %q", field, addr)
	}
	return nil
}
