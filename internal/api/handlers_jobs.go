// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

package api

import (
	"net/http"
	"time"
)

// TriggerPoll runs one ingestion sweep synchronously and returns its summary.
// Serialized against the ticker loop inside the sweep manager, so an external
// scheduler firing during an automatic sweep waits rather than overlapping.
func (h *Handler) TriggerPoll(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	summary, err := h.sweeper.TriggerSweep(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "SWEEP_FAILED", "Sweep failed", err)
		return
	}

	respondSuccess(w, summary, start)
}

// TriggerRetentionSweep deactivates connections that joined before the
// retention window and returns the counts.
func (h *Handler) TriggerRetentionSweep(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	summary, err := h.sweeper.RunRetentionSweep(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "RETENTION_SWEEP_FAILED", "Retention sweep failed", err)
		return
	}

	respondSuccess(w, summary, start)
}

// TriggerRefreshPlaylists refreshes playlist snapshots and track sets for all
// tracking links and returns the counts.
func (h *Handler) TriggerRefreshPlaylists(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	summary, err := h.sweeper.RefreshPlaylists(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "PLAYLIST_REFRESH_FAILED", "Playlist refresh failed", err)
		return
	}

	respondSuccess(w, summary, start)
}
