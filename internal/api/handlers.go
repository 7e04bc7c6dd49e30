// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

package api

import (
	"context"
	"time"

	"github.com/tomtom215/auscultor/internal/config"
	"github.com/tomtom215/auscultor/internal/database"
	"github.com/tomtom215/auscultor/internal/daybucket"
	"github.com/tomtom215/auscultor/internal/models"
)

// Version is the reported service version. Overridden at build time via
// -ldflags "-X github.com/tomtom215/auscultor/internal/api.Version=...".
var Version = "dev"

// Sweeper is the subset of the sweep manager the handlers trigger and
// inspect. The sweep package's Manager satisfies it.
type Sweeper interface {
	TriggerSweep(ctx context.Context) (*models.SweepSummary, error)
	RunRetentionSweep(ctx context.Context) (*models.RetentionSweepSummary, error)
	RefreshPlaylists(ctx context.Context) (*models.PlaylistRefreshSummary, error)
	LastSweepTime() time.Time
}

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	db        *database.DB
	sweeper   Sweeper
	cfg       *config.Config
	bucket    *daybucket.Bucketer
	startTime time.Time
}

// NewHandler creates a handler with the given dependencies.
func NewHandler(db *database.DB, sweeper Sweeper, cfg *config.Config, bucket *daybucket.Bucketer) *Handler {
	return &Handler{
		db:        db,
		sweeper:   sweeper,
		cfg:       cfg,
		bucket:    bucket,
		startTime: time.Now(),
	}
}

// metricsWindow builds the time window for link metrics queries: the last-7
// window spans the oldest of the last 7 day keys through the end of today's
// bucket, and the retention cutoff bounds which connections count as active.
func (h *Handler) metricsWindow() database.MetricsWindow {
	last7 := h.bucket.LastN(7)
	_, todayEnd := h.bucket.Range(h.bucket.Today())
	return database.MetricsWindow{
		Last7Start:      last7[0],
		TodayEnd:        todayEnd,
		RetentionCutoff: time.Now().AddDate(0, 0, -h.cfg.Analytics.RetentionDays),
	}
}
