// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tomtom215/auscultor/internal/models"
)

// UpsertUserDayAggregate writes a connection's rollup for one day. Counters
// are overwritten, never accumulated: the sweep recomputes each touched day
// from the full play set, so re-running a sweep is idempotent.
//
// The engagement flags (follows_playlist, saved_any) are NOT part of the
// conflict update: they are written once per sweep by SetDayEngagement, and a
// later recompute of the same day must not reset them.
func (db *DB) UpsertUserDayAggregate(ctx context.Context, agg *models.UserDayAggregate) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `INSERT INTO user_day_aggregates (
		connection_id, day, tracks_played, minutes_listened, super_listener_day, follows_playlist, saved_any
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (connection_id, day) DO UPDATE SET
		tracks_played = excluded.tracks_played,
		minutes_listened = excluded.minutes_listened,
		super_listener_day = excluded.super_listener_day`

	_, err := db.conn.ExecContext(ctx, query,
		agg.ConnectionID, agg.Day, agg.TracksPlayed, agg.MinutesListened,
		agg.SuperListenerDay, agg.FollowsPlaylist, agg.SavedAny,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user day aggregate: %w", err)
	}
	return nil
}

// SetDayEngagement records the best-effort engagement signals on a
// connection's day aggregate. The row is created if the connection had no
// plays that day.
func (db *DB) SetDayEngagement(ctx context.Context, connectionID uuid.UUID, day time.Time, follows, savedAny bool) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `INSERT INTO user_day_aggregates (
		connection_id, day, tracks_played, minutes_listened, super_listener_day, follows_playlist, saved_any
	) VALUES (?, ?, 0, 0, FALSE, ?, ?)
	ON CONFLICT (connection_id, day) DO UPDATE SET
		follows_playlist = excluded.follows_playlist,
		saved_any = excluded.saved_any`

	if _, err := db.conn.ExecContext(ctx, query, connectionID, day, follows, savedAny); err != nil {
		return fmt.Errorf("failed to set day engagement: %w", err)
	}
	return nil
}

// GetUserDayAggregates returns a connection's day rollups in ascending day
// order.
func (db *DB) GetUserDayAggregates(ctx context.Context, connectionID uuid.UUID) ([]models.UserDayAggregate, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT connection_id, day, tracks_played, minutes_listened, super_listener_day, follows_playlist, saved_any
		FROM user_day_aggregates WHERE connection_id = ? ORDER BY day ASC`

	rows, err := db.conn.QueryContext(ctx, query, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user day aggregates: %w", err)
	}
	defer rows.Close()

	var aggs []models.UserDayAggregate
	for rows.Next() {
		var agg models.UserDayAggregate
		if err := rows.Scan(
			&agg.ConnectionID, &agg.Day, &agg.TracksPlayed, &agg.MinutesListened,
			&agg.SuperListenerDay, &agg.FollowsPlaylist, &agg.SavedAny,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user day aggregate: %w", err)
		}
		aggs = append(aggs, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user day aggregates: %w", err)
	}
	return aggs, nil
}

// RecomputeLinkDayAggregate rebuilds a link's rollup for one day from its
// connections' day aggregates and upserts it. day and nextDay bound the day
// bucket as a half-open interval [day, nextDay) for the new-connections
// count; the per-listener figures join on the exact day key.
func (db *DB) RecomputeLinkDayAggregate(ctx context.Context, linkID uuid.UUID, day, nextDay time.Time) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var agg models.LinkDayAggregate
	agg.LinkID = linkID
	agg.Day = day

	statsQuery := `SELECT
		COUNT(*) FILTER (WHERE uda.tracks_played > 0),
		COALESCE(SUM(uda.tracks_played), 0),
		COALESCE(SUM(uda.minutes_listened), 0),
		COUNT(*) FILTER (WHERE uda.super_listener_day)
	FROM user_day_aggregates uda
	JOIN connections c ON c.id = uda.connection_id
	WHERE c.link_id = ? AND uda.day = ?`

	err := db.conn.QueryRowContext(ctx, statsQuery, linkID, day).Scan(
		&agg.ActiveListeners, &agg.TracksPlayed, &agg.MinutesListened, &agg.SuperListeners,
	)
	if err != nil {
		return fmt.Errorf("failed to compute link day stats: %w", err)
	}

	newQuery := `SELECT COUNT(*) FROM connections
		WHERE link_id = ? AND connected_at >= ? AND connected_at < ?`
	if err := db.conn.QueryRowContext(ctx, newQuery, linkID, day, nextDay).Scan(&agg.ConnectionsNew); err != nil {
		return fmt.Errorf("failed to count new connections: %w", err)
	}

	return db.UpsertLinkDayAggregate(ctx, &agg)
}

// UpsertLinkDayAggregate writes a link's rollup for one day, overwriting any
// existing row.
func (db *DB) UpsertLinkDayAggregate(ctx context.Context, agg *models.LinkDayAggregate) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `INSERT INTO link_day_aggregates (
		link_id, day, connections_new, active_listeners, tracks_played, minutes_listened, super_listeners
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (link_id, day) DO UPDATE SET
		connections_new = excluded.connections_new,
		active_listeners = excluded.active_listeners,
		tracks_played = excluded.tracks_played,
		minutes_listened = excluded.minutes_listened,
		super_listeners = excluded.super_listeners`

	_, err := db.conn.ExecContext(ctx, query,
		agg.LinkID, agg.Day, agg.ConnectionsNew, agg.ActiveListeners,
		agg.TracksPlayed, agg.MinutesListened, agg.SuperListeners,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert link day aggregate: %w", err)
	}
	return nil
}
