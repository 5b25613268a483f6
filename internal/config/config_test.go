// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoader_Defaults(t *testing.T) {
	loader := NewLoader("", "v1.2.3")
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "v1.2.3", cfg.Version)
	assert.Equal(t, ":8080", cfg.APIListenAddr)
	assert.Equal(t, CacheBackendMemory, cfg.CacheBackend)
	assert.Equal(t, 15*time.Minute, cfg.CacheTTL)
	assert.True(t, cfg.WatchEnabled)
	assert.True(t, filepath.IsAbs(cfg.DataDir), "data dir must be absolute")
	assert.Equal(t, filepath.Join(cfg.DataDir, "audit.db"), cfg.AuditDBPath)
}

func TestLoader_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
dataDir: /tmp/docport-test
guideRoot: /srv/guide
site:
  title: "Admin Guide"
  baseUrl: "https://docs.example.com"
policy:
  termsOfService: /etc/docport/terms.md
  privacyPolicy: /etc/docport/privacy.md
api:
  listenAddr: ":9090"
  rateLimit:
    enabled: false
cache:
  backend: badger
  ttl: 5m
watch:
  debounce: 750ms
`)

	loader := NewLoader(path, "test")
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/docport-test", cfg.DataDir)
	assert.Equal(t, "/srv/guide", cfg.GuideRoot)
	assert.Equal(t, "Admin Guide", cfg.SiteTitle)
	assert.Equal(t, "https://docs.example.com", cfg.BaseURL)
	assert.Equal(t, "/etc/docport/terms.md", cfg.TermsPath)
	assert.Equal(t, "/etc/docport/privacy.md", cfg.PrivacyPath)
	assert.Equal(t, ":9090", cfg.APIListenAddr)
	assert.False(t, cfg.RateLimitEnabled)
	assert.Equal(t, CacheBackendBadger, cfg.CacheBackend)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 750*time.Millisecond, cfg.WatchDebounce)
	assert.Equal(t, filepath.Join("/tmp/docport-test", "pagecache"), cfg.CachePath)
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
api:
  listenAddr: ":9090"
policy:
  termsOfService: /from/file/terms.md
`)

	t.Setenv("DOCPORT_LISTEN", ":7070")
	t.Setenv("DOCPORT_TERMS_OF_SERVICE", "/from/env/terms.md")

	loader := NewLoader(path, "test")
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.APIListenAddr)
	assert.Equal(t, "/from/env/terms.md", cfg.TermsPath)
}

func TestLoader_UpstreamPolicyAliases(t *testing.T) {
	// The unprefixed names are the chat server's own setting names.
	t.Setenv("TERMS_OF_SERVICE", "/etc/zserver/terms.md")
	t.Setenv("PRIVACY_POLICY", "/etc/zserver/privacy.md")

	loader := NewLoader("", "test")
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "/etc/zserver/terms.md", cfg.TermsPath)
	assert.Equal(t, "/etc/zserver/privacy.md", cfg.PrivacyPath)
}

func TestLoader_PrefixedAliasWinsOverUpstream(t *testing.T) {
	t.Setenv("TERMS_OF_SERVICE", "/upstream/terms.md")
	t.Setenv("DOCPORT_TERMS_OF_SERVICE", "/docport/terms.md")

	loader := NewLoader("", "test")
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "/docport/terms.md", cfg.TermsPath)
}

func TestLoader_StrictRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
dataDir: /tmp/x
bouquets: ["not", "ours"]
`)

	loader := NewLoader(path, "test")
	_, err := loader.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strict config parse error")
}

func TestLoader_RejectsNonYAMLExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	loader := NewLoader(path, "test")
	_, err := loader.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config format")
}

func TestLoader_EmptyFileIsValid(t *testing.T) {
	path := writeConfig(t, "")
	loader := NewLoader(path, "test")
	_, err := loader.Load()
	require.NoError(t, err)
}

func TestValidate(t *testing.T) {
	base := func() AppConfig {
		loader := NewLoader("", "test")
		cfg, err := loader.Load()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *AppConfig) {},
		},
		{
			name:    "bad listen addr",
			mutate:  func(c *AppConfig) { c.APIListenAddr = "no-port" },
			wantErr: "invalid listen address",
		},
		{
			name:    "redis backend without addr",
			mutate:  func(c *AppConfig) { c.CacheBackend = CacheBackendRedis },
			wantErr: "cache.redis.addr",
		},
		{
			name:    "unknown cache backend",
			mutate:  func(c *AppConfig) { c.CacheBackend = "memcached" },
			wantErr: "unknown cache backend",
		},
		{
			name:    "tls cert without key",
			mutate:  func(c *AppConfig) { c.TLSEnabled = true; c.TLSCert = "/x.crt" },
			wantErr: "tls.cert and tls.key",
		},
		{
			name: "metrics addr collides with api addr",
			mutate: func(c *AppConfig) {
				c.MetricsEnabled = true
				c.MetricsAddr = c.APIListenAddr
			},
			wantErr: "must differ",
		},
		{
			name: "tracing enabled without endpoint",
			mutate: func(c *AppConfig) {
				c.TracingEnabled = true
				c.TracingEndpoint = ""
			},
			wantErr: "tracing.endpoint",
		},
		{
			name:    "zero cache ttl",
			mutate:  func(c *AppConfig) { c.CacheTTL = 0 },
			wantErr: "cache.ttl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAppConfig_StringRedactsSecrets(t *testing.T) {
	loader := NewLoader("", "test")
	cfg, err := loader.Load()
	require.NoError(t, err)
	cfg.APIToken = "super-secret-token"

	s := cfg.String()
	assert.NotContains(t, s, "super-secret-token")
	assert.Contains(t, s, "[REDACTED]")
}
