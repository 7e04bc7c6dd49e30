// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

package database

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/tomtom215/auscultor/internal/metrics"
	"github.com/tomtom215/auscultor/internal/models"
)

const recentConnectionsLimit = 10

// MetricsWindow carries the time boundaries for a link metrics read. The
// caller computes them with the day bucketer so the trailing window aligns
// with local calendar days, not rolling 24-hour periods.
type MetricsWindow struct {
	// Last7Start is the day key of the oldest of the last seven days.
	Last7Start time.Time
	// TodayEnd is the exclusive end of today's day bucket.
	TodayEnd time.Time
	// RetentionCutoff excludes connections older than the retention window
	// from the currently-active count.
	RetentionCutoff time.Time
}

// GetLinkMetrics assembles the engagement summary for a tracking link:
// all-time totals, a trailing seven-day window, and the most recent
// connections. Only matched plays (tracks on the link's playlist) count
// toward play and minute figures.
func (db *DB) GetLinkMetrics(ctx context.Context, linkID uuid.UUID, win MetricsWindow) (*models.LinkMetrics, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	link, err := db.GetTrackingLink(ctx, linkID)
	if err != nil {
		return nil, err
	}

	lm := &models.LinkMetrics{
		LinkID:       link.ID,
		PlaylistName: link.PlaylistName,
	}

	if err := db.fillLinkTotals(ctx, linkID, win, lm); err != nil {
		return nil, err
	}
	if err := db.fillLinkLast7(ctx, linkID, win, &lm.Last7Days); err != nil {
		return nil, err
	}
	recent, err := db.recentConnections(ctx, linkID, win.Last7Start)
	if err != nil {
		return nil, err
	}
	lm.RecentConnections = recent

	metrics.RecordDBQuery("select", "link_metrics", time.Since(start), nil)
	return lm, nil
}

func (db *DB) fillLinkTotals(ctx context.Context, linkID uuid.UUID, win MetricsWindow, lm *models.LinkMetrics) error {
	connQuery := `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE is_active AND connected_at >= ?)
	FROM connections WHERE link_id = ?`
	if err := db.conn.QueryRowContext(ctx, connQuery, win.RetentionCutoff, linkID).Scan(
		&lm.TotalConnections, &lm.ActiveConnections,
	); err != nil {
		return fmt.Errorf("failed to count connections: %w", err)
	}

	playQuery := `SELECT
		COUNT(*),
		COALESCE(SUM(pe.duration_ms), 0),
		COUNT(DISTINCT pe.connection_id)
	FROM play_events pe
	JOIN connections c ON c.id = pe.connection_id
	WHERE c.link_id = ? AND pe.matched_playlist`
	var totalMs int64
	if err := db.conn.QueryRowContext(ctx, playQuery, linkID).Scan(
		&lm.Totals.TracksPlayed, &totalMs, &lm.Totals.ActiveListeners,
	); err != nil {
		return fmt.Errorf("failed to compute play totals: %w", err)
	}
	// Minute figures round to whole minutes at the reporting edge;
	// accumulation stays in raw milliseconds.
	lm.Totals.MinutesListened = math.Round(float64(totalMs) / 60000.0)
	lm.Totals.NewConnections = lm.TotalConnections

	superQuery := `SELECT COUNT(DISTINCT uda.connection_id)
	FROM user_day_aggregates uda
	JOIN connections c ON c.id = uda.connection_id
	WHERE c.link_id = ? AND uda.super_listener_day`
	if err := db.conn.QueryRowContext(ctx, superQuery, linkID).Scan(&lm.Totals.SuperListeners); err != nil {
		return fmt.Errorf("failed to count super listeners: %w", err)
	}
	return nil
}

func (db *DB) fillLinkLast7(ctx context.Context, linkID uuid.UUID, win MetricsWindow, wm *models.WindowMetrics) error {
	newQuery := `SELECT COUNT(*) FROM connections
		WHERE link_id = ? AND connected_at >= ? AND connected_at < ?`
	if err := db.conn.QueryRowContext(ctx, newQuery, linkID, win.Last7Start, win.TodayEnd).Scan(&wm.NewConnections); err != nil {
		return fmt.Errorf("failed to count new connections: %w", err)
	}

	playQuery := `SELECT
		COUNT(*),
		COALESCE(SUM(pe.duration_ms), 0),
		COUNT(DISTINCT pe.connection_id)
	FROM play_events pe
	JOIN connections c ON c.id = pe.connection_id
	WHERE c.link_id = ? AND pe.matched_playlist
		AND pe.played_at >= ? AND pe.played_at < ?`
	var windowMs int64
	if err := db.conn.QueryRowContext(ctx, playQuery, linkID, win.Last7Start, win.TodayEnd).Scan(
		&wm.TracksPlayed, &windowMs, &wm.ActiveListeners,
	); err != nil {
		return fmt.Errorf("failed to compute window plays: %w", err)
	}
	wm.MinutesListened = math.Round(float64(windowMs) / 60000.0)

	// Day-hits, not distinct listeners: three super days by one listener
	// count as three.
	superQuery := `SELECT COUNT(*)
	FROM user_day_aggregates uda
	JOIN connections c ON c.id = uda.connection_id
	WHERE c.link_id = ? AND uda.super_listener_day AND uda.day >= ?`
	if err := db.conn.QueryRowContext(ctx, superQuery, linkID, win.Last7Start).Scan(&wm.SuperListeners); err != nil {
		return fmt.Errorf("failed to count super listener days: %w", err)
	}
	return nil
}

func (db *DB) recentConnections(ctx context.Context, linkID uuid.UUID, since time.Time) ([]models.RecentConnection, error) {
	query := `SELECT c.id, c.display_name, c.connected_at, c.is_active, COUNT(pe.id)
	FROM connections c
	LEFT JOIN play_events pe ON pe.connection_id = c.id
	WHERE c.link_id = ? AND c.connected_at >= ?
	GROUP BY c.id, c.display_name, c.connected_at, c.is_active
	ORDER BY c.connected_at DESC
	LIMIT ?`

	rows, err := db.conn.QueryContext(ctx, query, linkID, since, recentConnectionsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent connections: %w", err)
	}
	defer rows.Close()

	var recent []models.RecentConnection
	for rows.Next() {
		var rc models.RecentConnection
		if err := rows.Scan(&rc.ID, &rc.DisplayName, &rc.ConnectedAt, &rc.IsActive, &rc.TracksPlayed); err != nil {
			return nil, fmt.Errorf("failed to scan recent connection: %w", err)
		}
		recent = append(recent, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recent connections: %w", err)
	}
	return recent, nil
}
