// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/civicmap/internal/api"
	"github.com/tomtom215/civicmap/internal/audit"
	"github.com/tomtom215/civicmap/internal/auth"
	"github.com/tomtom215/civicmap/internal/config"
	"github.com/tomtom215/civicmap/internal/database"
	"github.com/tomtom215/civicmap/internal/logging"
	"github.com/tomtom215/civicmap/internal/middleware"
	"github.com/tomtom215/civicmap/internal/supervisor"
	"github.com/tomtom215/civicmap/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Caller:  cfg.Logging.Caller,
		Service: "civicmap",
	})

	logging.Info().
		Str("version", version).
		Str("db_path", cfg.Database.Path).
		Str("ledger", cfg.Ledger.Backend).
		Str("events", cfg.Events.Transport).
		Msg("Starting Civicmap")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	if cfg.Database.SeedDemo {
		logging.Info().Msg("Demo data seeding enabled (SEED_DEMO_DATA=true)")
		if err := db.SeedDemoData(context.Background()); err != nil {
			logging.Error().Err(err).Msg("Failed to seed demo data")
			return
		}
	}

	keys, closeKeys, err := buildKeyStore(cfg, db)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to initialize key store")
		return
	}
	defer closeKeys()

	ledger, err := openLedger(&cfg.Ledger, db)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to open token ledger")
		return
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing token ledger")
		}
	}()

	validator, err := auth.NewValidator(auth.ValidatorConfig{
		Keys:            keys,
		Ledger:          ledger,
		Users:           auth.NewBreakerDirectory(db, cfg.Security.DirectoryBreaker),
		FreshnessWindow: cfg.Security.FreshnessWindow,
		MinSecretLength: cfg.Security.MinSecretLength,
	})
	if err != nil {
		logging.Error().Err(err).Msg("Failed to create token validator")
		return
	}

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}
	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS is configured with a wildcard origin in production; set CORS_ORIGINS")
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.Timeout,
	})
	if err != nil {
		logging.Error().Err(err).Msg("Failed to create supervisor tree")
		return
	}

	events, err := buildEventStream(&cfg.Events, cfg.Server.Timeout)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to initialize auth event stream")
		return
	}
	defer events.close()
	if events.embedded != nil {
		tree.Add(supervisor.LayerMessaging, services.NewEmbeddedNATSService(events.embedded, cfg.Server.Timeout))
	}

	recorder := audit.NewRecorder(events.transport, cfg.Events.Retain)
	if cfg.Events.Persist {
		store := audit.NewDuckDBStore(db.Conn())
		if err := store.CreateTable(context.Background()); err != nil {
			logging.Error().Err(err).Msg("Failed to create auth_events table")
			return
		}
		recorder.WithStore(store)
		if cfg.Events.PersistRetention > 0 {
			tree.Add(supervisor.LayerData, services.NewRetentionService(store, cfg.Events.PersistRetention, time.Hour))
		}
		logging.Info().Dur("retention", cfg.Events.PersistRetention).Msg("Auth events persisted to DuckDB")
	}
	tree.Add(supervisor.LayerMessaging, recorder)

	perf := middleware.NewPerformanceMonitor(1000, time.Second)
	handler := api.NewHandler(api.HandlerConfig{
		Issues:   db,
		Comments: db,
		DB:       db,
		Perf:     perf,
		Comment:  cfg.Comments,
		Version:  version,
	})
	router := api.NewRouter(
		handler,
		api.NewRequestAuthenticator(validator, events.transport),
		api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(&cfg.Security)),
		perf,
		cfg.Security.AuthFailureStatus,
	)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}
	tree.Add(supervisor.LayerAPI, services.NewHTTPServerService(server, cfg.Server.Timeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}

	logging.Info().Msg("Application stopped gracefully")
}
