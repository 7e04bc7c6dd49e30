// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/auscultor/internal/database"
	"github.com/tomtom215/auscultor/internal/validation"
)

// daysQuery validates the ?days= parameter for the series endpoints.
type daysQuery struct {
	Days int `validate:"min=1"`
}

// parseIDParam extracts and parses the {id} route parameter. A malformed ID
// is reported as a validation error, not a 404.
func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid id: must be a UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

// parseDaysParam reads ?days=, defaulting and capping per the API config.
func (h *Handler) parseDaysParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return h.cfg.API.DefaultDays, true
	}

	days, err := strconv.Atoi(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid days: must be an integer", nil)
		return 0, false
	}
	if verr := validation.ValidateStruct(&daysQuery{Days: days}); verr != nil {
		respondValidationError(w, verr)
		return 0, false
	}
	if days > h.cfg.API.MaxDays {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			fmt.Sprintf("Invalid days: must be at most %d", h.cfg.API.MaxDays), nil)
		return 0, false
	}
	return days, true
}

// LinkMetrics returns the link rollup: lifetime totals, the last-7-day
// window, and recent connections.
func (h *Handler) LinkMetrics(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	linkID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	linkMetrics, err := h.db.GetLinkMetrics(r.Context(), linkID, h.metricsWindow())
	if err != nil {
		if errors.Is(err, database.ErrLinkNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Tracking link not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load link metrics", err)
		return
	}

	respondSuccess(w, linkMetrics, start)
}

// LinkDaily returns the per-day series for a link over the last N day keys,
// zero-filled for days with no activity.
func (h *Handler) LinkDaily(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	linkID, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	days, ok := h.parseDaysParam(w, r)
	if !ok {
		return
	}

	if _, err := h.db.GetTrackingLink(r.Context(), linkID); err != nil {
		if errors.Is(err, database.ErrLinkNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Tracking link not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load tracking link", err)
		return
	}

	series, err := h.db.GetDailyMetrics(r.Context(), linkID, h.bucket.LastN(days))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load daily metrics", err)
		return
	}

	respondSuccess(w, series, start)
}

// LinkRetention returns the cohort retention grid for a link: connections
// grouped by join day, retained fraction per day in the window.
func (h *Handler) LinkRetention(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	linkID, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	days, ok := h.parseDaysParam(w, r)
	if !ok {
		return
	}

	if _, err := h.db.GetTrackingLink(r.Context(), linkID); err != nil {
		if errors.Is(err, database.ErrLinkNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Tracking link not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load tracking link", err)
		return
	}

	cohorts, err := h.db.GetCohortRetention(r.Context(), linkID, h.bucket.LastN(days), h.bucket.Key)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load cohort retention", err)
		return
	}

	respondSuccess(w, cohorts, start)
}

// ConnectionMetrics returns one listener's totals: plays, minutes, sessions,
// super-listener days, and engagement flags.
func (h *Handler) ConnectionMetrics(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	connectionID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	userMetrics, err := h.db.GetUserMetrics(r.Context(), connectionID)
	if err != nil {
		if errors.Is(err, database.ErrConnectionNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Connection not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load connection metrics", err)
		return
	}

	respondSuccess(w, userMetrics, start)
}
