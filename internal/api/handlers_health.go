// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/auscultor/internal/models"
)

// HealthLive reports process liveness. It never touches dependencies; a
// response at all means the process is up.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   map[string]string{"status": "alive"},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// HealthReady reports readiness: the database must answer a ping. A sweep
// manager that has never swept does not fail readiness, the first sweep may
// simply not have fired yet.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	dbConnected := h.db != nil && h.db.Ping(r.Context()) == nil

	status := "ready"
	httpStatus := http.StatusOK
	if !dbConnected {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	var lastSweep *time.Time
	if h.sweeper != nil {
		if t := h.sweeper.LastSweepTime(); !t.IsZero() {
			lastSweep = &t
		}
	}

	respondJSON(w, httpStatus, &models.APIResponse{
		Status: "success",
		Data: models.HealthStatus{
			Status:            status,
			Version:           Version,
			DatabaseConnected: dbConnected,
			LastSweepTime:     lastSweep,
			UptimeSeconds:     time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}
