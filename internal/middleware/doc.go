// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

/*
Package middleware provides HTTP middleware components in http.HandlerFunc
form. The api package adapts them to Chi's func(http.Handler) http.Handler
shape where needed.

Key Components:

  - RequestID: per-request ID, honored from X-Request-ID or generated,
    echoed in the response header and stored in the request context
  - PrometheusMetrics: request counts, latencies, and in-flight gauge,
    labeled by the matched Chi route pattern rather than the raw path
  - CronKey: constant-time shared-secret gate for the job trigger endpoints
  - Compression: gzip response bodies for clients that accept it
*/
package middleware
