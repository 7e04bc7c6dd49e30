// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

// Package main is the entry point for the Auscultor server.
//
// Auscultor measures listener engagement with shared playlists: listeners
// connect to a tracking link via OAuth consent, a periodic sweep pulls their
// recently-played feeds from the streaming provider, and the service derives
// listening sessions, day aggregates, and cohort retention per link.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered loading (defaults < config.yaml < env)
//  2. Database: embedded DuckDB, schema created in-code
//  3. Spotify client: rate-limited HTTP client behind a circuit breaker
//  4. Sweep manager: ticker-driven ingestion over active connections
//  5. HTTP server: Chi router with read endpoints, job triggers, health,
//     and Prometheus exposition
//
// The sweep manager and HTTP server run under a suture supervisor tree; a
// crash in the ingest layer does not take down the read API.
//
// # Configuration
//
// Required environment variables:
//   - SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET: provider app credentials
//   - SECURITY_CRON_KEY: shared secret for the job trigger endpoints
//
// Common optional variables:
//   - DATABASE_PATH: DuckDB file path (default data/auscultor.db)
//   - SWEEP_INTERVAL: time between automatic sweeps (default 15m)
//   - ANALYTICS_TIMEZONE: IANA zone for day bucketing (default Europe/Copenhagen)
//   - SERVER_PORT: HTTP listen port (default 8080)
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: the HTTP server
// drains in-flight requests (10s timeout), the sweep manager finishes or
// abandons the current pass, and the database is checkpointed and closed.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/auscultor/internal/api"
	"github.com/tomtom215/auscultor/internal/config"
	"github.com/tomtom215/auscultor/internal/database"
	"github.com/tomtom215/auscultor/internal/daybucket"
	"github.com/tomtom215/auscultor/internal/logging"
	"github.com/tomtom215/auscultor/internal/spotify"
	"github.com/tomtom215/auscultor/internal/supervisor"
	"github.com/tomtom215/auscultor/internal/supervisor/services"
	"github.com/tomtom215/auscultor/internal/sweep"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("timezone", cfg.Analytics.Timezone).
		Dur("sweep_interval", cfg.Sweep.Interval).
		Msg("Starting Auscultor")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized")

	bucket, err := daybucket.New(cfg.Analytics.Timezone)
	if err != nil {
		logging.Fatal().Err(err).Str("timezone", cfg.Analytics.Timezone).Msg("Invalid analytics timezone")
	}

	// The circuit breaker opens on repeated upstream failures so a provider
	// outage degrades to skipped sweeps instead of hammering the API.
	client := spotify.NewCircuitBreakerClient(&cfg.Spotify)

	manager := sweep.NewManager(db, client, cfg, bucket)

	handler := api.NewHandler(db, manager, cfg, bucket)
	router := api.NewRouter(handler, cfg)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddIngestService(services.NewSweepService(manager))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("Services added to supervisor tree")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Auscultor stopped gracefully")
}
