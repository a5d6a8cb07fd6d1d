// Package main is the entry point for the canonmorph transformation
// service.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/canonmorph/canonmorph/internal/api"
	"github.com/canonmorph/canonmorph/internal/catalog"
	"github.com/canonmorph/canonmorph/internal/config"
	"github.com/canonmorph/canonmorph/internal/engine"
	"github.com/canonmorph/canonmorph/internal/expr"
	"github.com/canonmorph/canonmorph/internal/health"
	"github.com/canonmorph/canonmorph/internal/middleware"
	"github.com/canonmorph/canonmorph/internal/observability"
	"github.com/canonmorph/canonmorph/internal/schema"
	"github.com/canonmorph/canonmorph/internal/secrets"
	"github.com/canonmorph/canonmorph/internal/storage"
	"github.com/canonmorph/canonmorph/internal/template"
	"github.com/canonmorph/canonmorph/internal/transform"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// passwordPlaceholder is replaced in the postgres DSN when a password
// secret is configured.
const passwordPlaceholder = "__PASSWORD__"

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg := loadAndValidateConfig(flags.configPath, logger)
	app := initApplication(context.Background(), cfg, logger)

	runService(app, flags.configPath, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("CANONMORPH_CONFIG_PATH", "configs/morphd.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("CANONMORPH_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("CANONMORPH_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("morphd version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// loadAndValidateConfig loads and validates the configuration.
func loadAndValidateConfig(configPath string, logger observability.Logger) *config.ServiceConfig {
	logger.Info("starting morphd",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}

	if err := config.ValidateConfig(cfg); err != nil {
		logger.Fatal("invalid configuration", observability.Error(err))
	}

	logger.Info("configuration loaded",
		observability.String("listen", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)),
		observability.String("storage_backend", cfg.Storage.Backend),
		observability.String("catalog_backend", cfg.Catalog.Backend),
		observability.Int("catalog_entries", len(cfg.Catalog.Entries)),
		observability.String("compatibility_mode", cfg.SchemaRegistry.CompatibilityMode),
		observability.String("auth_mode", cfg.Auth.Mode),
		observability.Bool("validate_payloads", cfg.Transform.ValidatePayloads),
	)

	return cfg
}

// application holds all application components.
type application struct {
	server         *api.Server
	healthHandler  *health.Handler
	tracer         *observability.Tracer
	rateLimiter    *middleware.RateLimiter
	registry       *prometheus.Registry
	secretsProv    secrets.Provider
	pool           *pgxpool.Pool
	templateStore  template.Store
	schemaStore    schema.Store
	catalogStore   catalog.Store
	config         *config.ServiceConfig
}

// initApplication initializes all application components.
func initApplication(ctx context.Context, cfg *config.ServiceConfig, logger observability.Logger) *application {
	registry := initMetricsRegistry()
	tracer := initTracer(cfg, logger)

	secretsProv := initSecretsProvider(ctx, cfg, logger)
	templateStore, schemaStore, pool := initStores(ctx, cfg, secretsProv, logger)
	catalogStore := initCatalog(ctx, cfg, secretsProv, logger)

	engineRegistry := buildEngineRegistry(catalogStore, logger)
	resolver := schema.NewResolver(schemaStore, logger)

	templateSvc := template.NewService(templateStore, engineRegistry, resolver, logger)
	transformSvc := transform.NewService(templateSvc, schemaStore, engineRegistry, &cfg.Transform, logger)

	compatMode, err := schema.ParseMode(cfg.SchemaRegistry.CompatibilityMode)
	if err != nil {
		logger.Fatal("invalid compatibility mode", observability.Error(err))
	}

	authMW, err := middleware.AuthFromConfig(&cfg.Auth, logger)
	if err != nil {
		logger.Fatal("failed to configure authentication", observability.Error(err))
	}

	rateLimitMW, rateLimiter := middleware.RateLimitFromConfig(&cfg.RateLimit, logger)

	healthHandler := health.NewHandler(version, logger)
	if pool != nil {
		healthHandler.AddCheck(health.PostgresCheck("postgres", pool))
	}
	healthHandler.AddCheck(health.CatalogCheck("catalog", catalogStore))

	server := api.NewServer(&cfg.Server, logger)
	server.Use(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.LoggingWithConfig(middleware.LoggingConfig{
			Logger:          logger,
			SkipHealthCheck: true,
		}),
		middleware.Tracing(serviceName(cfg)),
		middleware.Metrics(),
		rateLimitMW,
	)

	healthHandler.RegisterRoutes(server.Engine())

	apiHandler := api.NewHandler(api.HandlerConfig{
		Transform:         transformSvc,
		Templates:         templateSvc,
		Schemas:           schemaStore,
		Catalog:           catalogStore,
		Compat:            schema.NewAllowAllChecker(logger),
		CompatibilityMode: compatMode,
		Auth:              authMW,
		Logger:            logger,
	})
	apiHandler.RegisterRoutes(server.Engine())

	return &application{
		server:        server,
		healthHandler: healthHandler,
		tracer:        tracer,
		rateLimiter:   rateLimiter,
		registry:      registry,
		secretsProv:   secretsProv,
		pool:          pool,
		templateStore: templateStore,
		schemaStore:   schemaStore,
		catalogStore:  catalogStore,
		config:        cfg,
	}
}

// initMetricsRegistry builds the Prometheus registry and registers
// every collector the service exposes.
func initMetricsRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	buildInfo := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "canonmorph",
		Name:      "build_info",
		Help:      "Build information.",
	}, []string{"version", "git_commit", "build_time"})
	registry.MustRegister(buildInfo)
	buildInfo.WithLabelValues(version, gitCommit, buildTime).Set(1)

	catalog.GetCatalogMetrics().MustRegister(registry)
	catalog.GetCatalogMetrics().Init()
	engine.GetEngineMetrics().MustRegister(registry)
	engine.GetEngineMetrics().Init()
	template.GetTemplateMetrics().MustRegister(registry)
	template.GetTemplateMetrics().Init()
	transform.GetTransformMetrics().MustRegister(registry)
	transform.GetTransformMetrics().Init()
	middleware.GetHTTPMetrics().MustRegister(registry)
	middleware.GetHTTPMetrics().Init()
	secrets.GetSecretsMetrics().MustRegister(registry)
	secrets.GetSecretsMetrics().Init()
	health.GetHealthMetrics().MustRegister(registry)
	health.GetHealthMetrics().Init()

	return registry
}

// initTracer initializes the tracer.
func initTracer(cfg *config.ServiceConfig, logger observability.Logger) *observability.Tracer {
	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  serviceName(cfg),
		Enabled:      cfg.Observability.Tracing.Enabled,
		OTLPEndpoint: cfg.Observability.Tracing.Endpoint,
		SamplingRate: cfg.Observability.Tracing.SamplingRate,
	})
	if err != nil {
		logger.Fatal("failed to initialize tracer", observability.Error(err))
	}

	return tracer
}

// serviceName returns the configured tracing service name.
func serviceName(cfg *config.ServiceConfig) string {
	if cfg.Observability.Tracing.ServiceName != "" {
		return cfg.Observability.Tracing.ServiceName
	}
	return "canonmorph"
}

// initSecretsProvider initializes the secrets provider. Provider "none"
// yields nil and secret references become configuration errors.
func initSecretsProvider(ctx context.Context, cfg *config.ServiceConfig, logger observability.Logger) secrets.Provider {
	provider, err := secrets.NewProviderFromConfig(ctx, &cfg.Secrets, logger)
	if err != nil {
		logger.Fatal("failed to initialize secrets provider", observability.Error(err))
	}

	if provider != nil {
		logger.Info("secrets provider initialized",
			observability.String("provider", cfg.Secrets.Provider))
	}

	return provider
}

// resolveSecret fetches a secret reference, terminating on failure.
func resolveSecret(ctx context.Context, provider secrets.Provider, ref, name string,
	logger observability.Logger) string {
	value, err := secrets.ResolveString(ctx, provider, ref)
	if err != nil {
		logger.Fatal("failed to resolve secret",
			observability.String("secret", name),
			observability.Error(err))
	}
	return value
}

// initStores builds the template and schema stores for the configured
// storage backend. The returned pool is nil for the memory backend.
func initStores(ctx context.Context, cfg *config.ServiceConfig, provider secrets.Provider,
	logger observability.Logger) (template.Store, schema.Store, *pgxpool.Pool) {
	switch cfg.Storage.Backend {
	case "memory", "":
		return template.NewMemoryStore(logger), schema.NewMemoryStore(logger), nil

	case "postgres":
		pgCfg := cfg.Storage.Postgres
		if pgCfg.PasswordSecret != "" {
			password := resolveSecret(ctx, provider, pgCfg.PasswordSecret, "postgres password", logger)
			pgCfg.DSN = strings.ReplaceAll(pgCfg.DSN, passwordPlaceholder, password)
		}

		pool, err := storage.NewPool(ctx, &pgCfg, logger)
		if err != nil {
			logger.Fatal("failed to connect to postgres", observability.Error(err))
		}

		templateStore, err := template.NewPostgresStore(ctx, pool, logger)
		if err != nil {
			logger.Fatal("failed to initialize template store", observability.Error(err))
		}

		schemaStore, err := schema.NewPostgresStore(ctx, pool, logger)
		if err != nil {
			logger.Fatal("failed to initialize schema store", observability.Error(err))
		}

		return templateStore, schemaStore, pool

	default:
		logger.Fatal("unknown storage backend",
			observability.String("backend", cfg.Storage.Backend))
		return nil, nil, nil
	}
}

// initCatalog builds the transformation catalog for the configured
// backend.
func initCatalog(ctx context.Context, cfg *config.ServiceConfig, provider secrets.Provider,
	logger observability.Logger) catalog.Store {
	switch cfg.Catalog.Backend {
	case "memory", "":
		store, err := catalog.NewMemoryStore(&cfg.Catalog, logger)
		if err != nil {
			logger.Fatal("failed to initialize catalog", observability.Error(err))
		}
		return store

	case "redis":
		var opts []catalog.StoreOption
		if cfg.Catalog.Redis.PasswordSecret != "" {
			password := resolveSecret(ctx, provider,
				cfg.Catalog.Redis.PasswordSecret, "redis password", logger)
			opts = append(opts, catalog.WithPassword(password))
		}

		store, err := catalog.NewRedisStore(&cfg.Catalog, logger, opts...)
		if err != nil {
			logger.Fatal("failed to connect to redis catalog", observability.Error(err))
		}
		return store

	default:
		logger.Fatal("unknown catalog backend",
			observability.String("backend", cfg.Catalog.Backend))
		return nil
	}
}

// buildEngineRegistry wires the three transformation engines over the
// shared expression evaluator and catalog.
func buildEngineRegistry(cat catalog.Catalog, logger observability.Logger) *engine.Registry {
	validator, err := engine.NewConfigValidator()
	if err != nil {
		logger.Fatal("failed to compile engine configuration schemas", observability.Error(err))
	}

	evaluator := expr.NewEvaluator(nil, expr.WithLogger(logger))
	direct := engine.NewDirect(evaluator, logger)
	router := engine.NewRouter(cat, direct, validator, logger)
	pipeline := engine.NewPipeline(cat, direct, validator, logger)

	return engine.NewRegistry(direct, router, pipeline)
}

// runService runs the HTTP server and handles shutdown.
func runService(app *application, configPath string, logger observability.Logger) {
	ctx := context.Background()

	go func() {
		if err := app.server.Start(ctx); err != nil {
			logger.Fatal("server failed", observability.Error(err))
		}
	}()

	startMetricsServerIfEnabled(app, logger)
	watcher := startConfigWatcher(app, configPath, logger)

	waitForShutdown(app, watcher, logger)
}

// startMetricsServerIfEnabled starts the metrics server if enabled.
func startMetricsServerIfEnabled(app *application, logger observability.Logger) {
	metricsCfg := app.config.Observability.Metrics
	if !metricsCfg.Enabled {
		return
	}

	metricsPath := metricsCfg.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	metricsPort := metricsCfg.Port
	if metricsPort == 0 {
		metricsPort = 9091
	}

	go startMetricsServer(metricsPort, metricsPath, app.registry, logger)
}

// startMetricsServer starts the metrics HTTP server.
func startMetricsServer(port int, path string, registry *prometheus.Registry,
	logger observability.Logger) {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	addr := fmt.Sprintf(":%d", port)
	logger.Info("starting metrics server",
		observability.String("address", addr),
		observability.String("metrics_path", path),
	)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server error", observability.Error(err))
	}
}

// startConfigWatcher starts the configuration watcher. Configuration
// changes are surfaced in the log; stores and listeners are built at
// startup, so changed settings apply on the next restart.
func startConfigWatcher(app *application, configPath string, logger observability.Logger) *config.Watcher {
	watcher, err := config.NewWatcher(configPath, func(newCfg *config.ServiceConfig) {
		logger.Info("configuration file changed",
			observability.String("storage_backend", newCfg.Storage.Backend),
			observability.String("catalog_backend", newCfg.Catalog.Backend))
		logger.Warn("configuration changes take effect after restart")
	}, config.WithLogger(logger))
	if err != nil {
		logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(context.Background()); err != nil {
		logger.Warn("failed to start config watcher", observability.Error(err))
	}

	return watcher
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown.
func waitForShutdown(app *application, watcher *config.Watcher, logger observability.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", observability.String("signal", sig.String()))

	shutdownTimeout := app.config.Server.ShutdownTimeout.Duration()
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if watcher != nil {
		_ = watcher.Stop()
	}

	if err := app.server.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop server gracefully", observability.Error(err))
	}

	if app.rateLimiter != nil {
		app.rateLimiter.Stop()
	}

	if err := app.catalogStore.Close(); err != nil {
		logger.Error("failed to close catalog store", observability.Error(err))
	}
	if err := app.templateStore.Close(); err != nil {
		logger.Error("failed to close template store", observability.Error(err))
	}
	if err := app.schemaStore.Close(); err != nil {
		logger.Error("failed to close schema store", observability.Error(err))
	}
	if app.pool != nil {
		app.pool.Close()
	}

	if app.secretsProv != nil {
		if err := app.secretsProv.Close(); err != nil {
			logger.Error("failed to close secrets provider", observability.Error(err))
		}
	}

	if err := app.tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	logger.Info("morphd stopped")
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
