// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

package spotify

import "time"

// Token is a provider access token with its expiry. RefreshToken is set only
// when the provider rotated it; callers persist the new value when present.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// RecentPlay is one entry of a listener's recently-played feed.
type RecentPlay struct {
	TrackID    string
	TrackName  string
	ArtistName string
	DurationMs int64
	PlayedAt   time.Time
}

// Playlist is the metadata snapshot of an upstream playlist.
type Playlist struct {
	ID         string
	Name       string
	OwnerName  string
	ImageURL   string
	SnapshotID string
}

// PlaylistTrack is one track of an upstream playlist's track listing.
type PlaylistTrack struct {
	TrackID    string
	Name       string
	ArtistName string
	DurationMs int64
	AddedAt    time.Time
}

// Wire formats below mirror the provider's JSON bodies.

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

type artistJSON struct {
	Name string `json:"name"`
}

type trackJSON struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	DurationMs int64        `json:"duration_ms"`
	Artists    []artistJSON `json:"artists"`
}

type recentlyPlayedItemJSON struct {
	Track    trackJSON `json:"track"`
	PlayedAt string    `json:"played_at"`
}

type recentlyPlayedJSON struct {
	Items []recentlyPlayedItemJSON `json:"items"`
}

type imageJSON struct {
	URL string `json:"url"`
}

type playlistJSON struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	SnapshotID string      `json:"snapshot_id"`
	Owner      ownerJSON   `json:"owner"`
	Images     []imageJSON `json:"images"`
}

type ownerJSON struct {
	DisplayName string `json:"display_name"`
}

type playlistTrackItemJSON struct {
	AddedAt string    `json:"added_at"`
	Track   trackJSON `json:"track"`
}

type playlistTracksJSON struct {
	Items []playlistTrackItemJSON `json:"items"`
	Next  string                  `json:"next"`
}

// firstArtist returns the primary artist name, empty when the provider sent none.
func firstArtist(artists []artistJSON) string {
	if len(artists) == 0 {
		return ""
	}
	return artists[0].Name
}
