// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

// Package models defines data structures used throughout the Auscultor
// application: listener connections, play events, derived listening sessions,
// day aggregates, and API response shapes.
package models

import (
	"time"

	"github.com/google/uuid"
)

// TrackingLink represents a shareable playlist link whose engagement is tracked.
//
// Each link points at one upstream playlist. The playlist's track set is
// snapshotted locally (see PlaylistTrack) so incoming plays can be classified
// as matched/unmatched without an upstream round trip. SnapshotID is the
// upstream playlist version marker; refresh is skipped when it is unchanged.
type TrackingLink struct {
	ID           uuid.UUID `json:"id"`
	Slug         string    `json:"slug"`
	PlaylistID   string    `json:"playlist_id"`
	PlaylistName string    `json:"playlist_name"`
	OwnerName    string    `json:"owner_name,omitempty"`
	ImageURL     string    `json:"image_url,omitempty"`
	SnapshotID   string    `json:"snapshot_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// PlaylistTrack is one track of a tracking link's playlist snapshot.
type PlaylistTrack struct {
	LinkID     uuid.UUID `json:"link_id"`
	TrackID    string    `json:"track_id"`
	Name       string    `json:"name,omitempty"`
	ArtistName string    `json:"artist_name,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	AddedAt    time.Time `json:"added_at"`
}

// Connection represents one listener's consent-based connection to a tracking
// link.
//
// Lifecycle: created on first successful link (OAuth consent), polled by the
// periodic sweep while active, and marked inactive by the retention sweep once
// ConnectedAt is older than the retention window. Inactive connections are
// excluded from "active" counts but remain part of historical totals.
type Connection struct {
	ID           uuid.UUID  `json:"id"`
	LinkID       uuid.UUID  `json:"link_id"`
	ListenerID   string     `json:"listener_id"`
	DisplayName  string     `json:"display_name,omitempty"`
	Email        string     `json:"email,omitempty"`
	RefreshToken string     `json:"-"`
	AccessToken  string     `json:"-"`
	TokenExpiry  time.Time  `json:"-"`
	ConnectedAt  time.Time  `json:"connected_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	IsActive     bool       `json:"is_active"`
	LastPolledAt *time.Time `json:"last_polled_at,omitempty"`
}

// PlayEvent is a single recorded instance of a track being played by a
// listener. Immutable once persisted; deduplicated on ingest (same connection,
// same track, timestamps within the dedup tolerance collapse to the
// first-seen event).
type PlayEvent struct {
	ID              uuid.UUID `json:"id"`
	ConnectionID    uuid.UUID `json:"connection_id"`
	TrackID         string    `json:"track_id"`
	PlayedAt        time.Time `json:"played_at"`
	DurationMs      int64     `json:"duration_ms"`
	MatchedPlaylist bool      `json:"matched_playlist"`
	CreatedAt       time.Time `json:"created_at"`
}

// ListeningSession is a maximal run of one connection's plays where
// consecutive plays are no more than the session gap (30 minutes) apart.
//
// Sessions are derived, never authored: the full set for a connection is
// recomputed from its play set and replaced wholesale on every refresh.
// StartedAt <= EndedAt always holds; a single-play session has
// StartedAt == EndedAt.
type ListeningSession struct {
	ID               uuid.UUID `json:"id"`
	ConnectionID     uuid.UUID `json:"connection_id"`
	StartedAt        time.Time `json:"started_at"`
	EndedAt          time.Time `json:"ended_at"`
	TrackCount       int       `json:"track_count"`
	TotalMinutes     float64   `json:"total_minutes"`
	SuperListenerHit bool      `json:"super_listener_hit"`
}

// UserDayAggregate is the per-connection-per-day rollup. One row per
// (connection, day); recomputation overwrites the row (upsert), never
// accumulates, so sweep reruns are idempotent.
//
// Day is the canonical day key: the UTC instant of local midnight in the
// configured target timezone.
type UserDayAggregate struct {
	ConnectionID     uuid.UUID `json:"connection_id"`
	Day              time.Time `json:"day"`
	TracksPlayed     int       `json:"tracks_played"`
	MinutesListened  float64   `json:"minutes_listened"`
	SuperListenerDay bool      `json:"super_listener_day"`
	FollowsPlaylist  bool      `json:"follows_playlist"`
	SavedAny         bool      `json:"saved_any"`
}

// LinkDayAggregate is the per-link-per-day rollup across all of the link's
// connections. Same upsert semantics as UserDayAggregate.
type LinkDayAggregate struct {
	LinkID          uuid.UUID `json:"link_id"`
	Day             time.Time `json:"day"`
	ConnectionsNew  int       `json:"connections_new"`
	ActiveListeners int       `json:"active_listeners"`
	TracksPlayed    int       `json:"tracks_played"`
	MinutesListened float64   `json:"minutes_listened"`
	SuperListeners  int       `json:"super_listeners"`
}
