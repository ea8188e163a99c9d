// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/olegiv/siteflow/internal/audit"
	"github.com/olegiv/siteflow/internal/auth"
	"github.com/olegiv/siteflow/internal/config"
	"github.com/olegiv/siteflow/internal/handler"
	"github.com/olegiv/siteflow/internal/logging"
	"github.com/olegiv/siteflow/internal/metrics"
	"github.com/olegiv/siteflow/internal/middleware"
	"github.com/olegiv/siteflow/internal/model"
	"github.com/olegiv/siteflow/internal/ratelimit"
	"github.com/olegiv/siteflow/internal/scheduler"
	"github.com/olegiv/siteflow/internal/session"
	"github.com/olegiv/siteflow/internal/store"
	"github.com/olegiv/siteflow/internal/version"
	"github.com/olegiv/siteflow/internal/workflow"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

// Flood guard: requests per second per client address, and burst.
const (
	floodGuardRPS   = 20
	floodGuardBurst = 40
)

func main() {
	// Parse CLI flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "siteflow - editorial workflow and access-control backend\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SITEFLOW_SESSION_SECRET        Session encryption key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SITEFLOW_DB_PATH               SQLite database path (default: ./data/siteflow.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SITEFLOW_SERVER_PORT           Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SITEFLOW_ENV                   Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SITEFLOW_DB_TIMEOUT            Per datastore call timeout (default: 5s)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SITEFLOW_TRUSTED_PROXIES       Comma-separated proxy addresses allowed to set client IP headers\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SITEFLOW_TRUSTED_ORIGINS       Comma-separated host[:port] values allowed to call the API cross-origin\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SITEFLOW_AUDIT_RETENTION_DAYS  Days of audit log to keep, 0 keeps everything (default: 90)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	versionInfo := version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}

	if *showVersion {
		_, _ = fmt.Println(versionInfo.String())
		os.Exit(0)
	}

	if err := run(versionInfo); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(versionInfo version.Info) error {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	logger := slog.New(textHandler)
	slog.SetDefault(logger)

	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	dbCfg := store.DefaultDBConfig()
	dbCfg.BusyTimeout = cfg.DBTimeout
	db, err := store.NewDBWithConfig(cfg.DBPath, dbCfg)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	st := store.New(db, store.WithTimeout(cfg.DBTimeout))

	// Upgrade logger to also write ERROR records to the audit log
	logger = slog.New(logging.NewAuditHandler(textHandler, st))
	slog.SetDefault(logger)
	slog.Info("database ready", "audit_log_min_level", "error")

	ctx := context.Background()
	if cfg.DoSeed {
		if err := store.Seed(ctx, st, store.SeedOptions{
			AdminEmail:    cfg.AdminEmail,
			AdminPassword: cfg.AdminPassword,
		}); err != nil {
			return fmt.Errorf("seeding database: %w", err)
		}
	}
	if admins, err := st.CountUsersByRole(ctx, model.RoleAdmin); err != nil {
		return fmt.Errorf("counting admins: %w", err)
	} else if admins == 0 {
		slog.Warn("no admin user exists, set SITEFLOW_DO_SEED=true to create one")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	limiter := ratelimit.New(nil)
	recorder := audit.New(st, logger, audit.WithMetrics(m))
	engine := workflow.New(st, limiter, recorder,
		workflow.WithMetrics(m),
		workflow.WithLogger(logger),
	)

	sessionManager := session.New(db, cfg.IsDevelopment())
	identities := session.NewIdentities(sessionManager)
	resolver := auth.NewResolver(identities, st)
	slog.Info("session manager initialized")

	floodGuard := middleware.NewFloodGuard(floodGuardRPS, floodGuardBurst)

	sched := scheduler.New(st, scheduler.Sweepers{limiter, floodGuard}, logger, scheduler.Options{
		PurgeSchedule: cfg.AuditPurgeSchedule,
		Retention:     cfg.AuditRetention(),
		Metrics:       m,
	})
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()
	for _, j := range sched.List() {
		slog.Info("scheduled job", "name", j.Name, "schedule", j.Schedule, "next_run", j.NextRun)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.ClientIP(cfg.TrustedProxies))
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(m.Middleware)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))

	healthHandler := handler.NewHealthHandler(db, versionInfo.Short())
	apiHandler := handler.New(engine, identities, logger)

	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)
	r.Get("/metrics", m.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(sessionManager.LoadAndSave)
		r.Use(middleware.LoadIdentity(resolver))

		// Health returns additional details for signed-in callers
		r.Get("/health", healthHandler.Health)

		r.Route("/api", func(r chi.Router) {
			r.Use(floodGuard.Middleware())
			r.Use(middleware.CSRF(middleware.CSRFConfig{
				Key:            []byte(cfg.SessionSecret),
				TrustedOrigins: cfg.CSRFTrustedOrigins(),
			}))
			r.Use(middleware.Timeout(cfg.RequestTimeout))
			apiHandler.Routes(r)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteAPIError(w, http.StatusNotFound, "not_found", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteAPIError(w, http.StatusMethodNotAllowed, "validation_failed", "Method not allowed", nil)
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", versionInfo.Short())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
