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
	"github.com/tomtom215/auscultor/internal/metrics"
	"github.com/tomtom215/auscultor/internal/models"
)

// playExistsNearQuery is prepared once and cached: it runs for every
// candidate play in every sweep.
const playExistsNearQuery = `SELECT EXISTS (
	SELECT 1 FROM play_events
	WHERE connection_id = ? AND track_id = ? AND played_at BETWEEN ? AND ?
)`

// PlayExistsNear reports whether a play for the same connection and track
// already exists within tolerance of playedAt. The sweep calls this before
// every insert; a true result means the candidate is a duplicate and is
// dropped.
func (db *DB) PlayExistsNear(ctx context.Context, connectionID uuid.UUID, trackID string, playedAt time.Time, tolerance time.Duration) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	stmt, err := db.getStmt(ctx, playExistsNearQuery)
	if err != nil {
		return false, err
	}

	var exists bool
	err = stmt.QueryRowContext(ctx,
		connectionID, trackID, playedAt.Add(-tolerance), playedAt.Add(tolerance),
	).Scan(&exists)
	metrics.RecordDBQuery("select", "play_events", time.Since(start), err)
	if err != nil {
		return false, fmt.Errorf("failed to check play existence: %w", err)
	}
	return exists, nil
}

// InsertPlayEvent persists a play. Exact replays of an already stored event
// (same connection, track, and instant) are ignored via ON CONFLICT DO
// NOTHING; near-duplicates are expected to have been filtered by
// PlayExistsNear first.
func (db *DB) InsertPlayEvent(ctx context.Context, play *models.PlayEvent) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if play.ID == uuid.Nil {
		play.ID = uuid.New()
	}
	if play.CreatedAt.IsZero() {
		play.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO play_events (
		id, connection_id, track_id, played_at, duration_ms, matched_playlist, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT DO NOTHING`

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, query,
		play.ID, play.ConnectionID, play.TrackID, play.PlayedAt,
		play.DurationMs, play.MatchedPlaylist, play.CreatedAt,
	)
	metrics.RecordDBQuery("insert", "play_events", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to insert play event: %w", err)
	}
	return nil
}

// ListPlaysByConnection returns every play for a connection in chronological
// order. Session derivation consumes the full set.
func (db *DB) ListPlaysByConnection(ctx context.Context, connectionID uuid.UUID) ([]models.PlayEvent, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT id, connection_id, track_id, played_at, duration_ms, matched_playlist, created_at
		FROM play_events WHERE connection_id = ? ORDER BY played_at ASC`

	rows, err := db.conn.QueryContext(ctx, query, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plays: %w", err)
	}
	defer rows.Close()

	var plays []models.PlayEvent
	for rows.Next() {
		var play models.PlayEvent
		if err := rows.Scan(
			&play.ID, &play.ConnectionID, &play.TrackID, &play.PlayedAt,
			&play.DurationMs, &play.MatchedPlaylist, &play.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan play event: %w", err)
		}
		plays = append(plays, play)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating play events: %w", err)
	}
	return plays, nil
}

// LatestPlayTime returns the most recent played_at for a connection, or nil
// when the connection has no plays yet. The sweep uses it as the "after"
// cursor for the recently-played fetch.
func (db *DB) LatestPlayTime(ctx context.Context, connectionID uuid.UUID) (*time.Time, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var latest *time.Time
	err := db.conn.QueryRowContext(ctx,
		`SELECT MAX(played_at) FROM play_events WHERE connection_id = ?`, connectionID,
	).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest play time: %w", err)
	}
	return latest, nil
}
