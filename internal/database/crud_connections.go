// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tomtom215/auscultor/internal/logging"
	"github.com/tomtom215/auscultor/internal/models"
)

const connectionColumns = `id, link_id, listener_id, display_name, email,
	refresh_token, access_token, token_expiry,
	connected_at, ended_at, is_active, last_polled_at`

// InsertConnection inserts a new listener connection.
func (db *DB) InsertConnection(ctx context.Context, conn *models.Connection) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}
	if conn.ConnectedAt.IsZero() {
		conn.ConnectedAt = time.Now().UTC()
	}

	query := `INSERT INTO connections (` + connectionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.conn.ExecContext(ctx, query,
		conn.ID, conn.LinkID, conn.ListenerID, conn.DisplayName, conn.Email,
		conn.RefreshToken, conn.AccessToken, conn.TokenExpiry,
		conn.ConnectedAt, conn.EndedAt, conn.IsActive, conn.LastPolledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert connection: %w", err)
	}
	return nil
}

func scanConnection(row interface{ Scan(...any) error }) (*models.Connection, error) {
	conn := &models.Connection{}
	err := row.Scan(
		&conn.ID, &conn.LinkID, &conn.ListenerID, &conn.DisplayName, &conn.Email,
		&conn.RefreshToken, &conn.AccessToken, &conn.TokenExpiry,
		&conn.ConnectedAt, &conn.EndedAt, &conn.IsActive, &conn.LastPolledAt,
	)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// GetConnection retrieves a connection by id.
func (db *DB) GetConnection(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = ?`
	conn, err := scanConnection(db.conn.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrConnectionNotFound, id)
		}
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return conn, nil
}

// ListActiveConnections returns all active connections ordered by connect
// time, oldest first so long-waiting connections are swept first.
func (db *DB) ListActiveConnections(ctx context.Context) ([]*models.Connection, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT ` + connectionColumns + ` FROM connections
		WHERE is_active ORDER BY connected_at ASC`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active connections: %w", err)
	}
	defer rows.Close()

	var conns []*models.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		conns = append(conns, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating connections: %w", err)
	}
	return conns, nil
}

// UpdateConnectionTokens stores the refreshed token material for a connection.
// Spotify may rotate the refresh token on use, so all three fields are written.
func (db *DB) UpdateConnectionTokens(ctx context.Context, id uuid.UUID, accessToken, refreshToken string, expiry time.Time) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `UPDATE connections SET access_token = ?, refresh_token = ?, token_expiry = ? WHERE id = ?`
	result, err := db.conn.ExecContext(ctx, query, accessToken, refreshToken, expiry, id)
	if err != nil {
		return fmt.Errorf("failed to update connection tokens: %w", err)
	}
	return requireAffected(result, ErrConnectionNotFound, id)
}

// UpdateConnectionLastPolled records when a connection was last swept.
func (db *DB) UpdateConnectionLastPolled(ctx context.Context, id uuid.UUID, polledAt time.Time) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE connections SET last_polled_at = ? WHERE id = ?`, polledAt, id)
	if err != nil {
		return fmt.Errorf("failed to update last polled: %w", err)
	}
	return requireAffected(result, ErrConnectionNotFound, id)
}

// CountActiveConnections returns the number of currently active connections.
func (db *DB) CountActiveConnections(ctx context.Context) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var count int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM connections WHERE is_active`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active connections: %w", err)
	}
	return count, nil
}

// DeactivateConnectionsBefore marks every active connection that joined
// before cutoff as ended. Returns the number of connections deactivated.
// Historical data (plays, sessions, aggregates) is kept.
func (db *DB) DeactivateConnectionsBefore(ctx context.Context, cutoff, endedAt time.Time) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `UPDATE connections SET is_active = FALSE, ended_at = ?
		WHERE is_active AND connected_at < ?`
	result, err := db.conn.ExecContext(ctx, query, endedAt, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate connections: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected > 0 {
		logging.Info().
			Int64("deactivated", affected).
			Time("cutoff", cutoff).
			Msg("Deactivated connections past the retention window")
	}
	return affected, nil
}

// requireAffected converts a zero-row UPDATE into the given sentinel error.
func requireAffected(result sql.Result, sentinel error, id uuid.UUID) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", sentinel, id)
	}
	return nil
}
