// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/olegiv/oadmin-go/internal/auth"
	"github.com/olegiv/oadmin-go/internal/config"
	"github.com/olegiv/oadmin-go/internal/handler"
	"github.com/olegiv/oadmin-go/internal/middleware"
	"github.com/olegiv/oadmin-go/internal/registry"
	"github.com/olegiv/oadmin-go/internal/store"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

// Login endpoint throttle: sustained rate and burst per client IP.
const (
	loginRatePerSecond = 1
	loginBurst         = 5
)

func main() {
	// Parse CLI flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "oAdmin - PostgreSQL administration backend\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OADMIN_SECRET_KEY        Token signing key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OADMIN_DATABASE_URL      Full Postgres DSN (overrides the parts below)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OADMIN_POSTGRES_HOST     Database host (default: localhost)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OADMIN_POSTGRES_PORT     Database port (default: 5432)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OADMIN_POSTGRES_DB       Database name (default: admin_db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OADMIN_SERVER_PORT       Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OADMIN_ENV               Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "\nFor more information, see: https://github.com/olegiv/oadmin-go\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		_, _ = fmt.Printf("oadmin %s (commit: %s, built: %s)\n", appVersion, appGitCommit, appBuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Open the primary connection pool. The pool connects lazily, so an
	// unreachable database does not fail startup; the initializer below
	// keeps retrying in the background and /health reports progress.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.NewPool(ctx, cfg.DatabaseURL())
	if err != nil {
		return fmt.Errorf("opening connection pool: %w", err)
	}
	defer pool.Close()

	sqlDB := store.OpenSQLDB(pool)
	defer func() { _ = sqlDB.Close() }()

	queries := store.New(sqlDB)

	dbInit := store.NewInitializer(func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("pinging database: %w", err)
		}
		if err := store.Migrate(sqlDB); err != nil {
			return err
		}
		return store.Seed(ctx, sqlDB, cfg.DoSeed)
	}, time.Duration(cfg.DBInitIntervalSeconds)*time.Second, cfg.DBInitMaxAttempts)
	go dbInit.Run(ctx)

	tokens, err := auth.NewTokenManager(cfg.SecretKey, cfg.JWTAlgorithm,
		time.Duration(cfg.AccessTokenExpireMinutes)*time.Minute)
	if err != nil {
		return fmt.Errorf("creating token manager: %w", err)
	}

	reg := registry.New(pool, "primary")
	defer reg.Close()

	h := handler.NewHandler(queries, tokens, reg, dbInit)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	// Accept both /admin/users and /admin/users/
	r.Use(chimw.StripSlashes)
	r.Use(middleware.Timeout(60 * time.Second))

	// Public routes
	r.Get("/health", h.Health)

	loginLimiter := middleware.NewLoginRateLimiter(loginRatePerSecond, loginBurst)
	r.Group(func(r chi.Router) {
		r.Use(loginLimiter.Middleware())
		r.Post("/auth/token", h.Token)
	})

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(tokens, queries))

		r.Get("/auth/me", h.Me)

		r.Get("/admin/users", h.ListUsers)
		r.Post("/admin/users", h.CreateUser)
		r.Get("/admin/users/{id}", h.GetUser)
		r.Put("/admin/users/{id}", h.UpdateUser)
		r.Delete("/admin/users/{id}", h.DeleteUser)

		// Table browser and connection registry require admin
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)

			r.Get("/admin/db/tables", h.ListTables)
			r.Get("/admin/db/table/{schema}/{table}", h.ReadTable)
			r.Get("/admin/db/table/{schema}/{table}/meta", h.TableMeta)
			r.Post("/admin/db/table/{schema}/{table}/rows", h.InsertRow)
			r.Put("/admin/db/table/{schema}/{table}/rows", h.UpdateRow)
			r.Delete("/admin/db/table/{schema}/{table}/rows", h.DeleteRows)

			r.Get("/admin/db/connections", h.ListConnections)
			r.Post("/admin/db/connections", h.RegisterConnection)
			r.Post("/admin/db/connections/test", h.TestConnection)
			r.Post("/admin/db/connections/{id}/activate", h.ActivateConnection)
		})
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB max header size
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
