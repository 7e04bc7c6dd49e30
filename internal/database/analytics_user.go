// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

package database

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/tomtom215/auscultor/internal/models"
)

// GetUserMetrics assembles the engagement summary for one connection. Unlike
// link rollups this counts every play, matched or not: the per-listener view
// answers "how much does this person listen", not "how much of the playlist".
func (db *DB) GetUserMetrics(ctx context.Context, connectionID uuid.UUID) (*models.UserMetrics, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	conn, err := db.GetConnection(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	um := &models.UserMetrics{
		ConnectionID: conn.ID,
		DisplayName:  conn.DisplayName,
		ConnectedAt:  conn.ConnectedAt,
		IsActive:     conn.IsActive,
	}

	playQuery := `SELECT
		COUNT(*),
		COALESCE(SUM(duration_ms), 0),
		MIN(played_at),
		MAX(played_at)
	FROM play_events WHERE connection_id = ?`
	var totalMs int64
	if err := db.conn.QueryRowContext(ctx, playQuery, connectionID).Scan(
		&um.TracksPlayed, &totalMs, &um.FirstPlayAt, &um.LastPlayAt,
	); err != nil {
		return nil, fmt.Errorf("failed to compute play totals: %w", err)
	}
	// Reported minutes are whole numbers; only the stored events keep raw
	// millisecond precision.
	um.MinutesListened = math.Round(float64(totalMs) / 60000.0)

	sessionQuery := `SELECT COUNT(*) FROM listening_sessions WHERE connection_id = ?`
	if err := db.conn.QueryRowContext(ctx, sessionQuery, connectionID).Scan(&um.SessionCount); err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}

	dayQuery := `SELECT
		COUNT(*) FILTER (WHERE super_listener_day),
		COALESCE(BOOL_OR(follows_playlist), FALSE),
		COALESCE(BOOL_OR(saved_any), FALSE)
	FROM user_day_aggregates WHERE connection_id = ?`
	if err := db.conn.QueryRowContext(ctx, dayQuery, connectionID).Scan(
		&um.SuperListenerDays, &um.FollowsPlaylist, &um.SavedAny,
	); err != nil {
		return nil, fmt.Errorf("failed to compute day aggregates: %w", err)
	}

	return um, nil
}
