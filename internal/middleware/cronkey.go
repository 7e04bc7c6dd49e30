// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/tomtom215/auscultor/internal/logging"
)

// CronKey gates an endpoint behind a shared secret presented in the
// X-CRON-KEY header. The comparison is constant-time. A missing or wrong
// key yields 401 before the handler runs, so a rejected request has no
// side effects. An empty configured key rejects every request, which keeps
// the job endpoints closed on a misconfigured deployment.
func CronKey(key string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get("X-CRON-KEY")
			if key == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
				logging.Warn().
					Str("path", r.URL.Path).
					Str("remote_addr", r.RemoteAddr).
					Msg("Rejected job trigger with invalid cron key")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}
}
