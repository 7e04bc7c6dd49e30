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

// ReplaceSessions replaces a connection's derived sessions wholesale inside
// one transaction. Sessions are always re-derived from the full play set, so
// partial updates are never valid.
func (db *DB) ReplaceSessions(ctx context.Context, connectionID uuid.UUID, sessions []models.ListeningSession) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM listening_sessions WHERE connection_id = ?`, connectionID,
	); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}

	insert := `INSERT INTO listening_sessions (
		id, connection_id, started_at, ended_at, track_count, total_minutes, super_listener_hit
	) VALUES (?, ?, ?, ?, ?, ?, ?)`
	for i := range sessions {
		session := &sessions[i]
		if session.ID == uuid.Nil {
			session.ID = uuid.New()
		}
		if _, err := tx.ExecContext(ctx, insert,
			session.ID, connectionID, session.StartedAt, session.EndedAt,
			session.TrackCount, session.TotalMinutes, session.SuperListenerHit,
		); err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}
	}

	err = tx.Commit()
	metrics.RecordDBQuery("replace", "listening_sessions", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to commit sessions: %w", err)
	}
	return nil
}

// ListSessionsByConnection returns a connection's sessions in chronological
// order.
func (db *DB) ListSessionsByConnection(ctx context.Context, connectionID uuid.UUID) ([]models.ListeningSession, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT id, connection_id, started_at, ended_at, track_count, total_minutes, super_listener_hit
		FROM listening_sessions WHERE connection_id = ? ORDER BY started_at ASC`

	rows, err := db.conn.QueryContext(ctx, query, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.ListeningSession
	for rows.Next() {
		var session models.ListeningSession
		if err := rows.Scan(
			&session.ID, &session.ConnectionID, &session.StartedAt, &session.EndedAt,
			&session.TrackCount, &session.TotalMinutes, &session.SuperListenerHit,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}
