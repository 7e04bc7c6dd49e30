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
	"github.com/tomtom215/auscultor/internal/models"
)

// UpsertTrackingLink inserts a tracking link or refreshes its cached playlist
// metadata (name, owner, image, snapshot id) when the id already exists.
func (db *DB) UpsertTrackingLink(ctx context.Context, link *models.TrackingLink) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO tracking_links (
		id, slug, playlist_id, playlist_name, owner_name, image_url, snapshot_id, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		playlist_name = excluded.playlist_name,
		owner_name = excluded.owner_name,
		image_url = excluded.image_url,
		snapshot_id = excluded.snapshot_id`

	_, err := db.conn.ExecContext(ctx, query,
		link.ID, link.Slug, link.PlaylistID, link.PlaylistName,
		link.OwnerName, link.ImageURL, link.SnapshotID, link.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert tracking link: %w", err)
	}
	return nil
}

// GetTrackingLink retrieves a tracking link by id.
func (db *DB) GetTrackingLink(ctx context.Context, id uuid.UUID) (*models.TrackingLink, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT id, slug, playlist_id, playlist_name, owner_name, image_url, snapshot_id, created_at
		FROM tracking_links WHERE id = ?`

	link := &models.TrackingLink{}
	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&link.ID, &link.Slug, &link.PlaylistID, &link.PlaylistName,
		&link.OwnerName, &link.ImageURL, &link.SnapshotID, &link.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrLinkNotFound, id)
		}
		return nil, fmt.Errorf("failed to get tracking link: %w", err)
	}
	return link, nil
}

// ListTrackingLinks returns all tracking links, newest first.
func (db *DB) ListTrackingLinks(ctx context.Context) ([]*models.TrackingLink, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT id, slug, playlist_id, playlist_name, owner_name, image_url, snapshot_id, created_at
		FROM tracking_links ORDER BY created_at DESC`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracking links: %w", err)
	}
	defer rows.Close()

	var links []*models.TrackingLink
	for rows.Next() {
		link := &models.TrackingLink{}
		if err := rows.Scan(
			&link.ID, &link.Slug, &link.PlaylistID, &link.PlaylistName,
			&link.OwnerName, &link.ImageURL, &link.SnapshotID, &link.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan tracking link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tracking links: %w", err)
	}
	return links, nil
}

// ReplacePlaylistTracks replaces a link's stored track set wholesale inside a
// single transaction. Called by the playlist refresh job when the snapshot id
// changes.
func (db *DB) ReplacePlaylistTracks(ctx context.Context, linkID uuid.UUID, tracks []models.PlaylistTrack) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_tracks WHERE link_id = ?`, linkID); err != nil {
		return fmt.Errorf("failed to delete playlist tracks: %w", err)
	}

	insert := `INSERT INTO playlist_tracks (link_id, track_id, name, artist_name, duration_ms, added_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	for i := range tracks {
		track := &tracks[i]
		if _, err := tx.ExecContext(ctx, insert,
			linkID, track.TrackID, track.Name, track.ArtistName, track.DurationMs, track.AddedAt,
		); err != nil {
			return fmt.Errorf("failed to insert playlist track %s: %w", track.TrackID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit playlist tracks: %w", err)
	}
	return nil
}

// GetPlaylistTrackIDs returns the link's current track id set, used to flag
// incoming plays as matched/unmatched.
func (db *DB) GetPlaylistTrackIDs(ctx context.Context, linkID uuid.UUID) (map[string]struct{}, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT track_id FROM playlist_tracks WHERE link_id = ?`, linkID)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist track ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan track id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating track ids: %w", err)
	}
	return ids, nil
}
