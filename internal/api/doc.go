// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

/*
Package api provides the HTTP surface: a Chi router, the read endpoints for
link and connection metrics, the cron-gated job trigger endpoints, and the
health and Prometheus endpoints.

Routes:

	POST /api/v1/jobs/poll               trigger an ingestion sweep (X-CRON-KEY)
	POST /api/v1/jobs/retention-sweep    deactivate connections past the window (X-CRON-KEY)
	POST /api/v1/jobs/refresh-playlists  refresh playlist snapshots (X-CRON-KEY)
	GET  /api/v1/links/{id}/metrics      link rollup: totals, last 7 days, recent activity
	GET  /api/v1/links/{id}/daily        per-day series, zero-filled (?days=N)
	GET  /api/v1/links/{id}/retention    cohort retention grid (?days=N)
	GET  /api/v1/connections/{id}/metrics  per-listener totals and flags
	GET  /api/v1/health/live             liveness probe
	GET  /api/v1/health/ready            readiness probe (pings the database)
	GET  /metrics                        Prometheus exposition

All JSON responses use the models.APIResponse envelope.
*/
package api
