// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/docport/docport/internal/api"
	"github.com/docport/docport/internal/audit"
	"github.com/docport/docport/internal/cache"
	"github.com/docport/docport/internal/config"
	"github.com/docport/docport/internal/content"
	"github.com/docport/docport/internal/daemon"
	"github.com/docport/docport/internal/fsutil"
	"github.com/docport/docport/internal/health"
	"github.com/docport/docport/internal/jobs"
	"github.com/docport/docport/internal/log"
	"github.com/docport/docport/internal/policy"
	"github.com/docport/docport/internal/render"
	"github.com/docport/docport/internal/telemetry"
	dptls "github.com/docport/docport/internal/tls"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(runHealthcheck(os.Args[2:]))
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	log.Configure(log.Config{Service: "docport", Version: version})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Config path: explicit flag, otherwise ${DOCPORT_DATA}/config.yaml when
	// it exists so API-saved config persists across restarts.
	effectiveConfigPath := strings.TrimSpace(*configPath)
	if effectiveConfigPath == "" {
		dataDir := strings.TrimSpace(config.ParseString("DOCPORT_DATA", ""))
		if dataDir != "" {
			autoPath := filepath.Join(dataDir, "config.yaml")
			if _, err := os.Stat(autoPath); err == nil {
				effectiveConfigPath = autoPath
			}
		}
	}

	loader := config.NewLoader(effectiveConfigPath, version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if effectiveConfigPath != "" {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file").
			Str("path", effectiveConfigPath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	if err := fsutil.EnsureDir(cfg.DataDir); err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("failed to create data dir")
	}
	if _, err := os.Stat(cfg.GuideRoot); err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.GuideRoot).Msg("guide root is not readable")
	}

	tracing, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.TracingEnabled,
		ServiceName:    "docport",
		ServiceVersion: version,
		Environment:    cfg.TracingEnvironment,
		ExporterType:   cfg.TracingExporter,
		Endpoint:       cfg.TracingEndpoint,
		SamplingRate:   cfg.TracingSamplingRate,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("event", "tracing.init_failed").Msg("failed to initialise tracing")
	}

	// TLS: explicit pair wins, otherwise self-signed on demand.
	if cfg.TLSEnabled && (cfg.TLSCert == "" || cfg.TLSKey == "") {
		certPath, keyPath, err := dptls.EnsureCertificates(dptls.Config{
			CertPath: filepath.Join(cfg.DataDir, dptls.DefaultCertPath),
			KeyPath:  filepath.Join(cfg.DataDir, dptls.DefaultKeyPath),
			Logger:   logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Str("event", "tls.ensure.failed").Msg("failed to ensure TLS certificates")
		}
		cfg.TLSCert = certPath
		cfg.TLSKey = keyPath
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", cfg.APIListenAddr).
		Msg("starting docport")

	logger.Info().Msgf("→ Guide root: %s", cfg.GuideRoot)
	logger.Info().Msgf("→ Data dir: %s", cfg.DataDir)
	logger.Info().Msgf("→ Cache: %s (ttl %s)", cfg.CacheBackend, cfg.CacheTTL)
	if cfg.TermsPath != "" {
		logger.Info().Msgf("→ Terms of service: %s", cfg.TermsPath)
	}
	if cfg.PrivacyPath != "" {
		logger.Info().Msgf("→ Privacy policy: %s", cfg.PrivacyPath)
	}
	if cfg.APIToken != "" {
		logger.Info().Msg("→ API token: configured")
	} else {
		logger.Warn().Msg("→ API token: NOT configured, /api/refresh is open. Set DOCPORT_API_TOKEN to restrict it.")
	}

	holder := config.NewHolder(cfg, config.NewLoader(effectiveConfigPath, version), effectiveConfigPath)

	renderer := render.New()

	pageCache, err := cache.New(&cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "cache.init_failed").Msg("failed to initialise page cache")
	}

	policies := policy.NewManager(renderer, cfg.TermsPath, cfg.PrivacyPath)
	policies.Load(ctx)

	auditStore, err := audit.NewStore(cfg.AuditDBPath, cfg.AuditKeepRuns)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "audit.store_init_failed").Str("path", cfg.AuditDBPath).Msg("failed to open audit store")
	}

	var srv *api.Server
	runner := jobs.NewRunner(func() jobs.Config {
		current := holder.Get()
		return jobs.Config{
			GuideRoot: current.GuideRoot,
			DataDir:   current.DataDir,
		}
	}, renderer, audit.New(), auditStore, func(c *content.Corpus) {
		srv.SetCorpus(c)
	})

	healthMgr := health.NewManager(version)
	srv = api.New(holder, renderer, pageCache, policies, healthMgr, runner, auditStore, version)

	healthMgr.RegisterChecker(health.NewCorpusChecker(srv.CorpusSnapshot))
	healthMgr.RegisterChecker(health.NewPolicyChecker(policies.Healthy))
	healthMgr.RegisterChecker(health.NewStoreChecker(auditStore.Ping))
	healthMgr.RegisterChecker(health.NewRefreshChecker(runner.LastRun, 24*time.Hour))

	// Initial refresh so the portal is ready before the first request.
	if config.ParseBool("DOCPORT_INITIAL_REFRESH", true) {
		logger.Info().Msg("performing initial refresh on startup")
		if _, err := runner.Refresh(ctx); err != nil {
			logger.Error().Err(err).Msg("initial refresh failed")
			logger.Warn().Msg("→ Portal stays unready until a refresh succeeds. Trigger one via POST /api/refresh")
		} else {
			logger.Info().Msg("initial refresh completed")
		}
	} else {
		logger.Warn().Msg("initial refresh disabled (DOCPORT_INITIAL_REFRESH=false)")
	}

	metricsAddr := ""
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		metricsAddr = strings.TrimSpace(cfg.MetricsAddr)
		if metricsAddr == "" {
			metricsAddr = ":9090"
		}
		metricsHandler = promhttp.Handler()
	}

	mgr, err := daemon.NewManager(config.ParseServerConfig(cfg), daemon.Deps{
		Logger:         logger,
		APIHandler:     srv.Router(),
		MetricsHandler: metricsHandler,
		MetricsAddr:    metricsAddr,
		TLSCert:        cfg.TLSCert,
		TLSKey:         cfg.TLSKey,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("event", "manager.creation.failed").Msg("failed to create daemon manager")
	}

	mgr.RegisterShutdownHook("tracing", tracing.Shutdown)
	mgr.RegisterShutdownHook("audit-store", func(context.Context) error { return auditStore.Close() })
	mgr.RegisterShutdownHook("page-cache", func(context.Context) error { return pageCache.Close() })

	app := daemon.NewApp(logger, mgr, holder)

	if policies.Configured() {
		app.AddBackground("policy-watcher", policies.Watch)
	}

	if cfg.WatchEnabled {
		watcher := content.NewWatcher(cfg.GuideRoot, cfg.WatchDebounce, func(ctx context.Context) {
			if _, err := runner.Refresh(ctx); err != nil {
				logger.Warn().Err(err).Str("event", "watch.refresh_failed").Msg("watch-triggered refresh failed")
			}
		})
		app.AddBackground("guide-watcher", watcher.Run)
	}

	if err := app.Run(ctx); err != nil {
		logger.Fatal().Err(err).Str("event", "daemon.failed").Msg("daemon failed")
	}

	logger.Info().Msg("server exiting")
}

// runHealthcheck probes the local liveness endpoint. Exit code 0 means
// healthy, suitable for container HEALTHCHECK directives.
func runHealthcheck(args []string) int {
	fs := flag.NewFlagSet("healthcheck", flag.ExitOnError)
	addr := fs.String("addr", "http://127.0.0.1:8080", "base URL of the running daemon")
	timeout := fs.Duration("timeout", 3*time.Second, "probe timeout")
	_ = fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(*addr, "/")+"/healthz", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck: %v\n", err)
		return 1
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck: %v\n", err)
		return 1
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "healthcheck: unexpected status %d\n", resp.StatusCode)
		return 1
	}
	return 0
}
