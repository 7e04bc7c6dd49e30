// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

/*
schema.go - Database Schema Management

Tables:
  - tracking_links: shareable playlist links with cached playlist metadata
  - playlist_tracks: the current track set of each link's playlist, used to
    classify incoming plays as matched/unmatched
  - connections: listener Spotify connections made through a link
  - play_events: deduplicated recently-played events per connection
  - listening_sessions: sessions derived from play_events (replaced wholesale
    on every sweep)
  - user_day_aggregates: per-connection per-day rollups
  - link_day_aggregates: per-link per-day rollups

All timestamps are stored as UTC instants. Day keys are the UTC instant of
local midnight in the configured reporting timezone, computed by the
daybucket package before they reach this layer.

All columns are defined in the initial CREATE TABLE statements; there is no
migration machinery yet.
*/
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS tracking_links (
			id UUID PRIMARY KEY,
			slug TEXT NOT NULL UNIQUE,
			playlist_id TEXT NOT NULL,
			playlist_name TEXT NOT NULL,
			owner_name TEXT,
			image_url TEXT,
			snapshot_id TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS playlist_tracks (
			link_id UUID NOT NULL,
			track_id TEXT NOT NULL,
			name TEXT NOT NULL,
			artist_name TEXT,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			added_at TIMESTAMP,
			PRIMARY KEY (link_id, track_id)
		);`,

		`CREATE TABLE IF NOT EXISTS connections (
			id UUID PRIMARY KEY,
			link_id UUID NOT NULL,
			listener_id TEXT NOT NULL,
			display_name TEXT,
			email TEXT,
			refresh_token TEXT NOT NULL,
			access_token TEXT,
			token_expiry TIMESTAMP,
			connected_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_polled_at TIMESTAMP
		);`,

		// The UNIQUE constraint is a second line of defense behind the
		// PlayExistsNear tolerance check: exact replays from overlapping
		// recently-played pages hit ON CONFLICT DO NOTHING.
		`CREATE TABLE IF NOT EXISTS play_events (
			id UUID PRIMARY KEY,
			connection_id UUID NOT NULL,
			track_id TEXT NOT NULL,
			played_at TIMESTAMP NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			matched_playlist BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (connection_id, track_id, played_at)
		);`,

		`CREATE TABLE IF NOT EXISTS listening_sessions (
			id UUID PRIMARY KEY,
			connection_id UUID NOT NULL,
			started_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP NOT NULL,
			track_count INTEGER NOT NULL,
			total_minutes DOUBLE NOT NULL,
			super_listener_hit BOOLEAN NOT NULL DEFAULT FALSE
		);`,

		`CREATE TABLE IF NOT EXISTS user_day_aggregates (
			connection_id UUID NOT NULL,
			day TIMESTAMP NOT NULL,
			tracks_played INTEGER NOT NULL DEFAULT 0,
			minutes_listened DOUBLE NOT NULL DEFAULT 0,
			super_listener_day BOOLEAN NOT NULL DEFAULT FALSE,
			follows_playlist BOOLEAN NOT NULL DEFAULT FALSE,
			saved_any BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (connection_id, day)
		);`,

		`CREATE TABLE IF NOT EXISTS link_day_aggregates (
			link_id UUID NOT NULL,
			day TIMESTAMP NOT NULL,
			connections_new INTEGER NOT NULL DEFAULT 0,
			active_listeners INTEGER NOT NULL DEFAULT 0,
			tracks_played INTEGER NOT NULL DEFAULT 0,
			minutes_listened DOUBLE NOT NULL DEFAULT 0,
			super_listeners INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (link_id, day)
		);`,
	}
}

// createIndexes creates indexes for the common query patterns: sweep
// (active connections, per-connection plays by time), link rollups, and the
// day-aggregate reads.
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := []string{
		`CREATE INDEX IF NOT EXISTS idx_connections_link_id ON connections(link_id);`,
		`CREATE INDEX IF NOT EXISTS idx_connections_active ON connections(is_active);`,
		`CREATE INDEX IF NOT EXISTS idx_connections_connected_at ON connections(connected_at DESC);`,

		`CREATE INDEX IF NOT EXISTS idx_play_events_connection ON play_events(connection_id, played_at);`,
		`CREATE INDEX IF NOT EXISTS idx_play_events_connection_track ON play_events(connection_id, track_id, played_at);`,

		`CREATE INDEX IF NOT EXISTS idx_sessions_connection ON listening_sessions(connection_id, started_at);`,

		`CREATE INDEX IF NOT EXISTS idx_user_day_aggregates_day ON user_day_aggregates(day);`,
		`CREATE INDEX IF NOT EXISTS idx_link_day_aggregates_day ON link_day_aggregates(link_id, day);`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", query, err)
		}
	}
	return nil
}
