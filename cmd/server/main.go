// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mototwist/mototwist/docs" // generated swagger spec
	"github.com/mototwist/mototwist/internal/api"
	"github.com/mototwist/mototwist/internal/audit"
	"github.com/mototwist/mototwist/internal/auth"
	"github.com/mototwist/mototwist/internal/authz"
	"github.com/mototwist/mototwist/internal/backup"
	"github.com/mototwist/mototwist/internal/capture"
	"github.com/mototwist/mototwist/internal/config"
	"github.com/mototwist/mototwist/internal/database"
	"github.com/mototwist/mototwist/internal/events"
	"github.com/mototwist/mototwist/internal/logging"
	"github.com/mototwist/mototwist/internal/maplayers"
	"github.com/mototwist/mototwist/internal/routing"
	"github.com/mototwist/mototwist/internal/supervisor"
	"github.com/mototwist/mototwist/internal/visstore"
	ws "github.com/mototwist/mototwist/internal/websocket"
)

// badgerGCInterval is how often the value-log garbage collectors run on
// the BadgerDB stores (visible-set state and, in badger mode, sessions).
const badgerGCInterval = 10 * time.Minute

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting MotoTwist with supervisor tree")
	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("osrm_url", cfg.Routing.OSRMURL).
		Str("auth_mode", cfg.Security.AuthMode).
		Str("events_backend", cfg.Events.Backend).
		Msg("Configuration loaded")

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

	// Per-rider visible-set state lives in its own BadgerDB, separate from
	// the catalog: losing it costs map preferences, not data.
	visStore, err := visstore.Open(cfg.Visibility.StorePath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open visibility store")
	}
	defer func() {
		if err := visStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing visibility store")
		}
	}()

	// OSRM client behind a circuit breaker so a dead routing service
	// degrades capture sessions instead of cascading.
	osrm := routing.NewCircuitBreakerRouter(&cfg.Routing)
	if err := osrm.Ping(context.Background()); err != nil {
		logging.Warn().Err(err).Str("url", cfg.Routing.OSRMURL).Msg("Failed to reach OSRM (will retry on demand)")
	} else {
		logging.Info().Str("url", cfg.Routing.OSRMURL).Msg("Connected to OSRM successfully")
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	// The hub must exist before the capture and layer engines: they push
	// map commands through its bridge.
	wsHub := ws.NewHub()
	bridge := ws.NewBridge(wsHub)

	captureManager := capture.NewManager(osrm, bridge, bridge, cfg.Capture.SessionTTL)
	layerManager := maplayers.NewManager(db, visStore, bridge, bridge, captureManager)

	// When a rider's last connection drops, their attachment state is
	// forgotten so a reconnect after a hub restart re-attaches cleanly.
	wsHub.SetPresence(layerManager)

	bus, err := newEventBus(&cfg.Events)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize event bus")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()
	forwarder := events.NewForwarder(bus, layerManager, wsHub)

	authService, err := auth.NewService(ctx, &cfg.Security, db)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authentication")
	}
	defer func() {
		if err := authService.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing auth service")
		}
	}()
	if err := authService.EnsureAdmin(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to bootstrap admin user")
	}
	logAuthMode(cfg)

	enforcer, err := authz.NewEnforcer(&cfg.Security.Casbin)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authorization")
	}

	// Audit trail. The typed-nil dance keeps the authz sink a true nil
	// interface when auditing is off.
	var auditLogger *audit.Logger
	var auditSink authz.AuditSink
	if cfg.Audit.Enabled {
		auditLogger = audit.NewLogger(db, &cfg.Audit)
		defer func() {
			if err := auditLogger.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing audit logger")
			}
		}()
		auditSink = auditLogger
		tree.AddDataService(audit.NewJanitor(db, cfg.Audit.RetentionDays, cfg.Audit.CleanupInterval))
		logging.Info().Int("retention_days", cfg.Audit.RetentionDays).Msg("Audit trail enabled")
	} else {
		logging.Info().Msg("Audit trail disabled (AUDIT_ENABLED=false)")
	}

	authzService := authz.NewService(enforcer, auditSink)

	handler := api.NewHandler(api.HandlerDeps{
		DB:      db,
		Config:  cfg,
		Routing: osrm,
		Capture: captureManager,
		Layers:  layerManager,
		Visible: visStore,
		WSHub:   wsHub,
		Auth:    authService,
		Authz:   authzService,
		Audit:   auditLogger,
		Bus:     bus,
	})
	if seeded, err := handler.SeedSuggestions(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to seed twist name suggestions")
	} else {
		logging.Info().Int("names", seeded).Msg("Twist name suggestions seeded")
	}

	router := api.NewRouter(handler, authService.Middleware(), authz.NewMiddleware(authzService))

	server := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      router.Routes(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// === DATA LAYER SERVICES ===

	if janitor := authService.Janitor(); janitor != nil {
		tree.AddDataService(janitor)
	}
	tree.AddDataService(supervisor.NewBadgerGC("visstore-gc", badgerGCInterval, visStore.RunGC))
	if cfg.Security.SessionStore == "badger" {
		tree.AddDataService(supervisor.NewBadgerGC("session-gc", badgerGCInterval, authService.RunGC))
	}
	if cfg.Backup.Enabled {
		tree.AddDataService(backup.NewScheduler(backup.NewManager(db, &cfg.Backup)))
		logging.Info().
			Str("dir", cfg.Backup.Dir).
			Dur("interval", cfg.Backup.Interval).
			Int("retention", cfg.Backup.Retention).
			Msg("Backup scheduler enabled")
	} else {
		logging.Info().Msg("Backup functionality disabled (BACKUP_ENABLED=false)")
	}

	// The capture manager's Serve loop sweeps idle sessions, so it sits
	// with the other janitors.
	tree.AddDataService(captureManager)

	// === MESSAGING LAYER SERVICES ===

	tree.AddMessagingService(wsHub)
	tree.AddMessagingService(forwarder)

	// === API LAYER SERVICES ===

	tree.AddAPIService(supervisor.NewHTTPService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === START SUPERVISOR TREE ===

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}

// logAuthMode logs the security posture of the configured auth mode.
func logAuthMode(cfg *config.Config) {
	switch cfg.Security.AuthMode {
	case "jwt":
		logging.Info().Msg("JWT authentication enabled")
	case "basic":
		logging.Info().Msg("Basic authentication enabled")
		logging.Warn().Msg("Basic Auth transmits credentials with each request. Use HTTPS in production!")
	case "oidc":
		logging.Info().Str("issuer", cfg.Security.OIDC.IssuerURL).Msg("OIDC authentication enabled")
	case "none":
		logging.Warn().Msg("============================================================")
		logging.Warn().Msg("  SECURITY WARNING: Authentication is DISABLED (AUTH_MODE=none)")
		logging.Warn().Msg("  ")
		logging.Warn().Msg("  All endpoints are publicly accessible without authentication!")
		logging.Warn().Msg("  This mode should ONLY be used for:")
		logging.Warn().Msg("    - Local development")
		logging.Warn().Msg("    - Completely isolated private networks")
		logging.Warn().Msg("    - CI/CD testing environments")
		logging.Warn().Msg("  ")
		logging.Warn().Msg("  NEVER use AUTH_MODE=none in production or on public networks!")
		logging.Warn().Msg("============================================================")
	}

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("SECURITY WARNING: CORS is configured with wildcard origin (CORS_ORIGINS=*)")
		logging.Warn().Msg("With authentication enabled this lets any website call the API. Set specific origins in production.")
	}

	if cfg.Security.SessionStore == "memory" && !cfg.IsDevelopment() {
		logging.Warn().Msg("Session store is 'memory': sessions are lost on restart. Consider SESSION_STORE=badger with SESSION_STORE_PATH set.")
	}
}
