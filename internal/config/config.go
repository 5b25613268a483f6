// SPDX-License-Identifier: MIT

// Package config provides configuration management for docport.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Cache backend identifiers.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendBadger = "badger"
)

// FileConfig represents the YAML configuration structure.
type FileConfig struct {
	Version   string `yaml:"version,omitempty"`
	DataDir   string `yaml:"dataDir,omitempty"`
	GuideRoot string `yaml:"guideRoot,omitempty"`
	LogLevel  string `yaml:"logLevel,omitempty"`

	Site    SiteConfig    `yaml:"site,omitempty"`
	Policy  PolicyConfig  `yaml:"policy,omitempty"`
	API     APIConfig     `yaml:"api,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
	TLS     TLSConfig     `yaml:"tls,omitempty"`
	Cache   CacheConfig   `yaml:"cache,omitempty"`
	Watch   WatchConfig   `yaml:"watch,omitempty"`
	Audit   AuditConfig   `yaml:"audit,omitempty"`
	Tracing TracingConfig `yaml:"tracing,omitempty"`
}

// SiteConfig holds presentation settings for the rendered portal.
type SiteConfig struct {
	Title   string `yaml:"title,omitempty"`
	BaseURL string `yaml:"baseUrl,omitempty"`
}

// PolicyConfig holds the legal-notice page sources.
// Each value is a filesystem path to a Markdown document, optionally
// containing embedded HTML, served at /terms and /privacy.
type PolicyConfig struct {
	TermsOfService string `yaml:"termsOfService,omitempty"`
	PrivacyPolicy  string `yaml:"privacyPolicy,omitempty"`
}

// APIConfig holds HTTP server configuration.
type APIConfig struct {
	Token          string          `yaml:"token,omitempty"`
	ListenAddr     string          `yaml:"listenAddr,omitempty"`
	RateLimit      RateLimitConfig `yaml:"rateLimit,omitempty"`
	AllowedOrigins []string        `yaml:"allowedOrigins,omitempty"`
}

// RateLimitConfig holds rate limiting settings.
// Uses pointers to distinguish "not set" from explicit zero values.
type RateLimitConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`
	Global  *int  `yaml:"global,omitempty"` // Requests per minute
	Burst   *int  `yaml:"burst,omitempty"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled    *bool  `yaml:"enabled,omitempty"`
	ListenAddr string `yaml:"listenAddr,omitempty"`
}

// TLSConfig holds TLS settings.
type TLSConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Cert    string `yaml:"cert,omitempty"`
	Key     string `yaml:"key,omitempty"`
}

// CacheConfig selects and tunes the rendered-page cache backend.
type CacheConfig struct {
	Backend string      `yaml:"backend,omitempty"` // memory|redis|badger
	TTL     string      `yaml:"ttl,omitempty"`     // e.g. "10m"
	Path    string      `yaml:"path,omitempty"`    // badger directory
	Redis   RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig holds Redis connection settings for the cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// WatchConfig controls the guide-root file watcher.
type WatchConfig struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	Debounce string `yaml:"debounce,omitempty"` // e.g. "2s"
}

// AuditConfig holds audit history settings.
type AuditConfig struct {
	DBPath   string `yaml:"dbPath,omitempty"`
	KeepRuns int    `yaml:"keepRuns,omitempty"`
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled      *bool   `yaml:"enabled,omitempty"`
	Exporter     string  `yaml:"exporter,omitempty"` // grpc|http
	Endpoint     string  `yaml:"endpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty"`
	Environment  string  `yaml:"environment,omitempty"`
}

// AppConfig holds all resolved configuration for the application.
type AppConfig struct {
	Version    string
	DataDir    string
	GuideRoot  string
	LogLevel   string
	LogService string

	SiteTitle string
	BaseURL   string

	// Legal-notice page sources (TERMS_OF_SERVICE / PRIVACY_POLICY)
	TermsPath   string
	PrivacyPath string

	APIToken       string
	APIListenAddr  string
	AllowedOrigins []string

	RateLimitEnabled bool
	RateLimitGlobal  int // requests per minute
	RateLimitBurst   int

	MetricsEnabled bool
	MetricsAddr    string

	TLSEnabled bool
	TLSCert    string
	TLSKey     string

	CacheBackend string
	CacheTTL     time.Duration
	CachePath    string
	Redis        RedisConfig

	WatchEnabled  bool
	WatchDebounce time.Duration

	AuditDBPath   string
	AuditKeepRuns int

	TracingEnabled      bool
	TracingExporter     string
	TracingEndpoint     string
	TracingSamplingRate float64
	TracingEnvironment  string
}

// Loader handles configuration loading with precedence ENV > File > Defaults.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a new configuration loader.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath: configPath,
		version:    version,
	}
}

// Load loads configuration with precedence: ENV > File > Defaults.
// It enforces a strict validated order: parse file (strict) -> apply env -> validate.
func (l *Loader) Load() (AppConfig, error) {
	cfg := AppConfig{}

	// 1. Defaults
	l.setDefaults(&cfg)

	// 2. File (if provided)
	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := l.mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	// 3. Environment variables (highest priority)
	l.mergeEnvConfig(&cfg)

	// 4. DataDir must be absolute to keep path confinement checks sound
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if cfg.GuideRoot != "" {
		if abs, err := filepath.Abs(cfg.GuideRoot); err == nil {
			cfg.GuideRoot = abs
		}
	}

	// 5. Derived defaults that depend on DataDir
	if cfg.AuditDBPath == "" {
		cfg.AuditDBPath = filepath.Join(cfg.DataDir, "audit.db")
	}
	if cfg.CacheBackend == CacheBackendBadger && cfg.CachePath == "" {
		cfg.CachePath = filepath.Join(cfg.DataDir, "pagecache")
	}

	cfg.Version = l.version

	// 6. Validate final configuration
	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values for configuration.
func (l *Loader) setDefaults(cfg *AppConfig) {
	cfg.DataDir = "/var/lib/docport"
	cfg.GuideRoot = "guide"
	cfg.LogLevel = "info"
	cfg.LogService = "docport"
	cfg.SiteTitle = "Documentation"
	cfg.APIListenAddr = ":8080"
	cfg.RateLimitEnabled = true
	cfg.RateLimitGlobal = 600
	cfg.RateLimitBurst = 60
	cfg.CacheBackend = CacheBackendMemory
	cfg.CacheTTL = 15 * time.Minute
	cfg.WatchEnabled = true
	cfg.WatchDebounce = 2 * time.Second
	cfg.AuditKeepRuns = 50
	cfg.TracingExporter = "http"
	cfg.TracingSamplingRate = 0.1
	cfg.TracingEnvironment = "production"
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields

	if err := dec.Decode(&fileCfg); err != nil {
		if err == io.EOF {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	// Strict: no multiple documents or trailing content
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fileCfg, nil
}

// mergeFileConfig merges file configuration into AppConfig.
func (l *Loader) mergeFileConfig(dst *AppConfig, src *FileConfig) error {
	if src.DataDir != "" {
		dst.DataDir = expandEnv(src.DataDir)
	}
	if src.GuideRoot != "" {
		dst.GuideRoot = expandEnv(src.GuideRoot)
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}

	// Site
	if src.Site.Title != "" {
		dst.SiteTitle = src.Site.Title
	}
	if src.Site.BaseURL != "" {
		dst.BaseURL = expandEnv(src.Site.BaseURL)
	}

	// Policy pages
	if src.Policy.TermsOfService != "" {
		dst.TermsPath = expandEnv(src.Policy.TermsOfService)
	}
	if src.Policy.PrivacyPolicy != "" {
		dst.PrivacyPath = expandEnv(src.Policy.PrivacyPolicy)
	}

	// API
	if src.API.Token != "" {
		dst.APIToken = expandEnv(src.API.Token)
	}
	if src.API.ListenAddr != "" {
		dst.APIListenAddr = expandEnv(src.API.ListenAddr)
	}
	if src.API.RateLimit.Enabled != nil {
		dst.RateLimitEnabled = *src.API.RateLimit.Enabled
	}
	if src.API.RateLimit.Global != nil {
		dst.RateLimitGlobal = *src.API.RateLimit.Global
	}
	if src.API.RateLimit.Burst != nil {
		dst.RateLimitBurst = *src.API.RateLimit.Burst
	}
	if len(src.API.AllowedOrigins) > 0 {
		dst.AllowedOrigins = append([]string(nil), src.API.AllowedOrigins...)
	}

	// Metrics
	if src.Metrics.Enabled != nil {
		dst.MetricsEnabled = *src.Metrics.Enabled
	}
	if src.Metrics.ListenAddr != "" {
		dst.MetricsAddr = expandEnv(src.Metrics.ListenAddr)
	}

	// TLS
	if src.TLS.Enabled != nil {
		dst.TLSEnabled = *src.TLS.Enabled
	}
	if src.TLS.Cert != "" {
		dst.TLSCert = expandEnv(src.TLS.Cert)
	}
	if src.TLS.Key != "" {
		dst.TLSKey = expandEnv(src.TLS.Key)
	}

	// Cache
	if src.Cache.Backend != "" {
		dst.CacheBackend = src.Cache.Backend
	}
	if src.Cache.TTL != "" {
		d, err := time.ParseDuration(src.Cache.TTL)
		if err != nil {
			return fmt.Errorf("invalid cache.ttl: %w", err)
		}
		dst.CacheTTL = d
	}
	if src.Cache.Path != "" {
		dst.CachePath = expandEnv(src.Cache.Path)
	}
	if src.Cache.Redis.Addr != "" {
		dst.Redis.Addr = expandEnv(src.Cache.Redis.Addr)
	}
	if src.Cache.Redis.Password != "" {
		dst.Redis.Password = expandEnv(src.Cache.Redis.Password)
	}
	if src.Cache.Redis.DB > 0 {
		dst.Redis.DB = src.Cache.Redis.DB
	}

	// Watch
	if src.Watch.Enabled != nil {
		dst.WatchEnabled = *src.Watch.Enabled
	}
	if src.Watch.Debounce != "" {
		d, err := time.ParseDuration(src.Watch.Debounce)
		if err != nil {
			return fmt.Errorf("invalid watch.debounce: %w", err)
		}
		dst.WatchDebounce = d
	}

	// Audit
	if src.Audit.DBPath != "" {
		dst.AuditDBPath = expandEnv(src.Audit.DBPath)
	}
	if src.Audit.KeepRuns > 0 {
		dst.AuditKeepRuns = src.Audit.KeepRuns
	}

	// Tracing
	if src.Tracing.Enabled != nil {
		dst.TracingEnabled = *src.Tracing.Enabled
	}
	if src.Tracing.Exporter != "" {
		dst.TracingExporter = src.Tracing.Exporter
	}
	if src.Tracing.Endpoint != "" {
		dst.TracingEndpoint = expandEnv(src.Tracing.Endpoint)
	}
	if src.Tracing.SamplingRate > 0 {
		dst.TracingSamplingRate = src.Tracing.SamplingRate
	}
	if src.Tracing.Environment != "" {
		dst.TracingEnvironment = src.Tracing.Environment
	}

	return nil
}

// mergeEnvConfig merges environment variables into AppConfig.
// ENV variables have the highest precedence.
func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.DataDir = ParseString("DOCPORT_DATA", cfg.DataDir)
	cfg.GuideRoot = ParseString("DOCPORT_GUIDE_ROOT", cfg.GuideRoot)
	cfg.LogLevel = ParseString("DOCPORT_LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = ParseString("DOCPORT_LOG_SERVICE", cfg.LogService)

	cfg.SiteTitle = ParseString("DOCPORT_SITE_TITLE", cfg.SiteTitle)
	cfg.BaseURL = ParseString("DOCPORT_BASE_URL", cfg.BaseURL)

	// Policy pages. The unprefixed names are the setting names used by the
	// chat server these guides document; accept them as aliases so a shared
	// deployment environment needs no duplication.
	cfg.TermsPath = ParseString("TERMS_OF_SERVICE", cfg.TermsPath)
	cfg.TermsPath = ParseString("DOCPORT_TERMS_OF_SERVICE", cfg.TermsPath)
	cfg.PrivacyPath = ParseString("PRIVACY_POLICY", cfg.PrivacyPath)
	cfg.PrivacyPath = ParseString("DOCPORT_PRIVACY_POLICY", cfg.PrivacyPath)

	cfg.APIToken = ParseString("DOCPORT_API_TOKEN", cfg.APIToken)
	cfg.APIListenAddr = ParseString("DOCPORT_LISTEN", cfg.APIListenAddr)
	if origins := ParseString("DOCPORT_ALLOWED_ORIGINS", ""); origins != "" {
		cfg.AllowedOrigins = parseCommaSeparated(origins, cfg.AllowedOrigins)
	}

	cfg.RateLimitEnabled = ParseBool("DOCPORT_RATE_LIMIT_ENABLED", cfg.RateLimitEnabled)
	cfg.RateLimitGlobal = ParseInt("DOCPORT_RATE_LIMIT_GLOBAL", cfg.RateLimitGlobal)
	cfg.RateLimitBurst = ParseInt("DOCPORT_RATE_LIMIT_BURST", cfg.RateLimitBurst)

	if metricsAddr := ParseString("DOCPORT_METRICS_LISTEN", ""); metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
		cfg.MetricsEnabled = true
	}

	cfg.TLSEnabled = ParseBool("DOCPORT_TLS_ENABLED", cfg.TLSEnabled)
	cfg.TLSCert = ParseString("DOCPORT_TLS_CERT", cfg.TLSCert)
	cfg.TLSKey = ParseString("DOCPORT_TLS_KEY", cfg.TLSKey)

	cfg.CacheBackend = ParseString("DOCPORT_CACHE_BACKEND", cfg.CacheBackend)
	cfg.CacheTTL = ParseDuration("DOCPORT_CACHE_TTL", cfg.CacheTTL)
	cfg.CachePath = ParseString("DOCPORT_CACHE_PATH", cfg.CachePath)
	cfg.Redis.Addr = ParseString("DOCPORT_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = ParseString("DOCPORT_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = ParseInt("DOCPORT_REDIS_DB", cfg.Redis.DB)

	cfg.WatchEnabled = ParseBool("DOCPORT_WATCH_ENABLED", cfg.WatchEnabled)
	cfg.WatchDebounce = ParseDuration("DOCPORT_WATCH_DEBOUNCE", cfg.WatchDebounce)

	cfg.AuditDBPath = ParseString("DOCPORT_AUDIT_DB", cfg.AuditDBPath)
	cfg.AuditKeepRuns = ParseInt("DOCPORT_AUDIT_KEEP_RUNS", cfg.AuditKeepRuns)

	cfg.TracingEnabled = ParseBool("DOCPORT_TRACING_ENABLED", cfg.TracingEnabled)
	cfg.TracingExporter = ParseString("DOCPORT_TRACING_EXPORTER", cfg.TracingExporter)
	cfg.TracingEndpoint = ParseString("DOCPORT_TRACING_ENDPOINT", cfg.TracingEndpoint)
	cfg.TracingSamplingRate = ParseFloat("DOCPORT_TRACING_SAMPLING", cfg.TracingSamplingRate)
	cfg.TracingEnvironment = ParseString("DOCPORT_TRACING_ENVIRONMENT", cfg.TracingEnvironment)
}

// expandEnv expands environment variables in the format ${VAR} or $VAR.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// parseCommaSeparated parses a comma-separated list, trimming whitespace.
func parseCommaSeparated(envVal string, defaults []string) []string {
	if envVal == "" {
		return defaults
	}
	var out []string
	for _, p := range strings.Split(envVal, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// String implements fmt.Stringer with secrets redacted so the config can be
// logged without leaking tokens or passwords.
func (c AppConfig) String() string {
	masked := c
	if masked.APIToken != "" {
		masked.APIToken = "[REDACTED]"
	}
	if masked.Redis.Password != "" {
		masked.Redis.Password = "[REDACTED]"
	}
	return fmt.Sprintf("%+v", struct {
		Version, DataDir, GuideRoot, Listen, CacheBackend string
		Terms, Privacy                                    string
		APIToken                                          string
	}{
		Version: masked.Version, DataDir: masked.DataDir, GuideRoot: masked.GuideRoot,
		Listen: masked.APIListenAddr, CacheBackend: masked.CacheBackend,
		Terms: masked.TermsPath, Privacy: masked.PrivacyPath,
		APIToken: masked.APIToken,
	})
}
