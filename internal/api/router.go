// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/auscultor/internal/config"
	"github.com/tomtom215/auscultor/internal/middleware"
)

// Rate limits per endpoint class. Health is permissive for monitoring
// probes; job triggers are tight because a scheduler calls them a handful of
// times an hour at most.
var (
	rateLimitHealth = struct {
		requests int
		window   time.Duration
	}{1000, time.Minute}

	rateLimitJobs = struct {
		requests int
		window   time.Duration
	}{10, time.Minute}
)

// Router builds the HTTP handler tree.
type Router struct {
	handler *Handler
	cfg     *config.Config
}

// NewRouter creates a router around the given handler.
func NewRouter(handler *Handler, cfg *config.Config) *Router {
	return &Router{handler: handler, cfg: cfg}
}

// chiAdapter adapts http.HandlerFunc middleware to Chi's
// func(http.Handler) http.Handler shape.
func chiAdapter(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Setup configures all routes and returns the root handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chiAdapter(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: router.cfg.Security.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-CRON-KEY", "X-Request-ID"},
		MaxAge:         86400,
	}))

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(rateLimitHealth.requests, rateLimitHealth.window))
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1/jobs", func(r chi.Router) {
		r.Use(httprate.LimitByIP(rateLimitJobs.requests, rateLimitJobs.window))
		r.Use(chiAdapter(middleware.PrometheusMetrics))
		r.Use(chiAdapter(middleware.CronKey(router.cfg.Security.CronKey)))

		r.Post("/poll", router.handler.TriggerPoll)
		r.Post("/retention-sweep", router.handler.TriggerRetentionSweep)
		r.Post("/refresh-playlists", router.handler.TriggerRefreshPlaylists)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.readRateLimit())
		r.Use(chiAdapter(middleware.PrometheusMetrics))
		r.Use(chiAdapter(middleware.Compression))

		r.Get("/links/{id}/metrics", router.handler.LinkMetrics)
		r.Get("/links/{id}/daily", router.handler.LinkDaily)
		r.Get("/links/{id}/retention", router.handler.LinkRetention)
		r.Get("/connections/{id}/metrics", router.handler.ConnectionMetrics)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// readRateLimit builds the rate limiter for the read endpoints from the
// security config, or a no-op when disabled.
func (router *Router) readRateLimit() func(http.Handler) http.Handler {
	sec := router.cfg.Security
	if sec.RateLimitDisabled || sec.RateLimitReqs <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.LimitByIP(sec.RateLimitReqs, sec.RateLimitWindow)
}
