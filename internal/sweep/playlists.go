// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

package sweep

import (
	"context"
	"fmt"

	"github.com/tomtom215/auscultor/internal/logging"
	"github.com/tomtom215/auscultor/internal/models"
)

// RefreshPlaylists re-fetches every tracking link's playlist metadata and,
// when the upstream snapshot id changed, its full track set. Per-link
// failures are counted and logged; the job as a whole keeps going.
func (m *Manager) RefreshPlaylists(ctx context.Context) (*models.PlaylistRefreshSummary, error) {
	links, err := m.db.ListTrackingLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracking links: %w", err)
	}

	summary := &models.PlaylistRefreshSummary{Links: len(links)}
	for _, link := range links {
		refreshed, err := m.refreshLink(ctx, link)
		switch {
		case err != nil:
			summary.Errors++
			logging.Warn().Err(err).
				Str("link_id", link.ID.String()).
				Str("playlist_id", link.PlaylistID).
				Msg("Playlist refresh failed")
		case refreshed:
			summary.Refreshed++
		default:
			summary.Unchanged++
		}
	}

	logging.Info().
		Int("links", summary.Links).
		Int("refreshed", summary.Refreshed).
		Int("unchanged", summary.Unchanged).
		Int("errors", summary.Errors).
		Msg("Playlist refresh completed")
	return summary, nil
}

// refreshLink updates one link from upstream. Returns true when the snapshot
// changed and the track set was replaced.
func (m *Manager) refreshLink(ctx context.Context, link *models.TrackingLink) (bool, error) {
	playlist, err := m.client.GetPlaylist(ctx, link.PlaylistID)
	if err != nil {
		return false, err
	}

	if playlist.SnapshotID != "" && playlist.SnapshotID == link.SnapshotID {
		return false, nil
	}

	upstreamTracks, err := m.client.GetPlaylistTracks(ctx, link.PlaylistID)
	if err != nil {
		return false, err
	}

	tracks := make([]models.PlaylistTrack, 0, len(upstreamTracks))
	for _, ut := range upstreamTracks {
		tracks = append(tracks, models.PlaylistTrack{
			LinkID:     link.ID,
			TrackID:    ut.TrackID,
			Name:       ut.Name,
			ArtistName: ut.ArtistName,
			DurationMs: ut.DurationMs,
			AddedAt:    ut.AddedAt,
		})
	}
	if err := m.db.ReplacePlaylistTracks(ctx, link.ID, tracks); err != nil {
		return false, &PersistenceError{Op: "playlist track replace", Err: err}
	}

	link.PlaylistName = playlist.Name
	link.OwnerName = playlist.OwnerName
	link.ImageURL = playlist.ImageURL
	link.SnapshotID = playlist.SnapshotID
	if err := m.db.UpsertTrackingLink(ctx, link); err != nil {
		return false, &PersistenceError{Op: "link metadata update", Err: err}
	}

	logging.Debug().
		Str("link_id", link.ID.String()).
		Str("snapshot_id", playlist.SnapshotID).
		Int("tracks", len(tracks)).
		Msg("Playlist snapshot refreshed")
	return true, nil
}
