// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

package models

import (
	"time"

	"github.com/google/uuid"
)

// WindowMetrics holds engagement totals over some time window (all-time or a
// trailing N-day window).
type WindowMetrics struct {
	NewConnections  int     `json:"new_connections"`
	TracksPlayed    int     `json:"tracks_played"`
	MinutesListened float64 `json:"minutes_listened"`
	ActiveListeners int     `json:"active_listeners"`
	SuperListeners  int     `json:"super_listeners"`
}

// RecentConnection is a lightweight view of a connection for the link metrics
// response.
type RecentConnection struct {
	ID           uuid.UUID `json:"id"`
	DisplayName  string    `json:"display_name,omitempty"`
	ConnectedAt  time.Time `json:"connected_at"`
	IsActive     bool      `json:"is_active"`
	TracksPlayed int       `json:"tracks_played"`
}

// LinkMetrics is the engagement summary for a tracking link.
type LinkMetrics struct {
	LinkID            uuid.UUID          `json:"link_id"`
	PlaylistName      string             `json:"playlist_name"`
	TotalConnections  int                `json:"total_connections"`
	ActiveConnections int                `json:"active_connections"`
	Totals            WindowMetrics      `json:"totals"`
	Last7Days         WindowMetrics      `json:"last_7_days"`
	RecentConnections []RecentConnection `json:"recent_connections"`
}

// UserMetrics is the engagement summary for a single connection.
type UserMetrics struct {
	ConnectionID      uuid.UUID  `json:"connection_id"`
	DisplayName       string     `json:"display_name,omitempty"`
	ConnectedAt       time.Time  `json:"connected_at"`
	IsActive          bool       `json:"is_active"`
	TracksPlayed      int        `json:"tracks_played"`
	MinutesListened   float64    `json:"minutes_listened"`
	SessionCount      int        `json:"session_count"`
	SuperListenerDays int        `json:"super_listener_days"`
	FollowsPlaylist   bool       `json:"follows_playlist"`
	SavedAny          bool       `json:"saved_any"`
	FirstPlayAt       *time.Time `json:"first_play_at,omitempty"`
	LastPlayAt        *time.Time `json:"last_play_at,omitempty"`
}

// DailyMetric is one day's row of a link's daily engagement series. Days with
// no recorded activity are present with zero values so charts render
// contiguous ranges.
type DailyMetric struct {
	Day             time.Time `json:"day"`
	TracksPlayed    int       `json:"tracks_played"`
	MinutesListened float64   `json:"minutes_listened"`
	ActiveListeners int       `json:"active_listeners"`
	SuperListeners  int       `json:"super_listeners"`
}

// CohortRetention is one connection cohort's retention measurement: of the
// connections created during the cohort day/week, what fraction were still
// active N periods later.
type CohortRetention struct {
	CohortStart time.Time `json:"cohort_start"`
	CohortSize  int       `json:"cohort_size"`
	// Retention[i] is the retained fraction in period i, each value in
	// [0, 1]. Period 0 covers the cohort period itself and can be below
	// 1.0: a member that connected but never played that day is not
	// retained.
	Retention []float64 `json:"retention"`
}

// SweepSummary reports the outcome of one poll sweep across connections.
type SweepSummary struct {
	Processed         int `json:"processed"`
	PlaysAdded        int `json:"plays_added"`
	DuplicatesSkipped int `json:"duplicates_skipped"`
	SessionsDerived   int `json:"sessions_derived"`
	Errors            int `json:"errors"`
}

// RetentionSweepSummary reports the outcome of one retention sweep.
type RetentionSweepSummary struct {
	Examined    int `json:"examined"`
	Deactivated int `json:"deactivated"`
}

// PlaylistRefreshSummary reports the outcome of one playlist metadata refresh.
type PlaylistRefreshSummary struct {
	Links     int `json:"links"`
	Refreshed int `json:"refreshed"`
	Unchanged int `json:"unchanged"`
	Errors    int `json:"errors"`
}
