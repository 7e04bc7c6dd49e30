// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

package spotify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/auscultor/internal/config"
)

// newTestClient builds a Client pointed at the given test servers with fast
// retry timing.
func newTestClient(t *testing.T, apiURL, accountsURL string) *Client {
	t.Helper()
	c := NewClient(&config.SpotifyConfig{
		ClientID:      "test-id",
		ClientSecret:  "test-secret",
		APIURL:        apiURL,
		AccountsURL:   accountsURL,
		Timeout:       5 * time.Second,
		RateLimit:     1000,
		RateBurst:     1000,
		RecentlyLimit: 50,
	})
	c.retryBaseDelay = time.Millisecond
	return c
}

func TestRefreshUserToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/token" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "test-id" || pass != "test-secret" {
			t.Error("Expected basic auth with app credentials")
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm failed: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q, want refresh_token", got)
		}
		if got := r.PostForm.Get("refresh_token"); got != "rt-1" {
			t.Errorf("refresh_token = %q, want rt-1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","expires_in":3600}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, srv.URL)
	token, err := client.RefreshUserToken(context.Background(), "rt-1")
	if err != nil {
		t.Fatalf("RefreshUserToken failed: %v", err)
	}
	if token.AccessToken != "at-1" {
		t.Errorf("AccessToken = %q, want at-1", token.AccessToken)
	}
	if token.RefreshToken != "" {
		t.Errorf("Expected no rotated refresh token, got %q", token.RefreshToken)
	}
	if until := time.Until(token.ExpiresAt); until < 59*time.Minute || until > 61*time.Minute {
		t.Errorf("ExpiresAt %v not about an hour out", token.ExpiresAt)
	}
}

func TestRefreshUserTokenRevoked(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, srv.URL)
	_, err := client.RefreshUserToken(context.Background(), "revoked")
	if !IsAuthError(err) {
		t.Errorf("Expected AuthError for revoked token, got %v", err)
	}
}

func TestGetRecentlyPlayed(t *testing.T) {
	t.Parallel()

	after := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/player/recently-played" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer at-1" {
			t.Errorf("Authorization = %q, want Bearer at-1", got)
		}
		if got := r.URL.Query().Get("after"); got != "1768471200000" {
			t.Errorf("after = %q, want 1768471200000", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"items": [
				{"track":{"id":"t2","name":"Two","duration_ms":200000,"artists":[{"name":"B"}]},"played_at":"2026-01-15T11:00:00.123Z"},
				{"track":{"id":"","name":"Local","duration_ms":1000,"artists":[]},"played_at":"2026-01-15T10:30:00Z"},
				{"track":{"id":"t1","name":"One","duration_ms":180000,"artists":[{"name":"A"},{"name":"C"}]},"played_at":"2026-01-15T10:05:00Z"}
			]
		}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, srv.URL)
	plays, err := client.GetRecentlyPlayed(context.Background(), "at-1", after)
	if err != nil {
		t.Fatalf("GetRecentlyPlayed failed: %v", err)
	}
	if len(plays) != 2 {
		t.Fatalf("Expected 2 plays (local track dropped), got %d", len(plays))
	}
	if plays[0].TrackID != "t2" || plays[0].ArtistName != "B" {
		t.Errorf("First play = %+v", plays[0])
	}
	if plays[1].ArtistName != "A" {
		t.Errorf("Expected primary artist A, got %q", plays[1].ArtistName)
	}
	wantPlayed := time.Date(2026, 1, 15, 11, 0, 0, 123000000, time.UTC)
	if !plays[0].PlayedAt.Equal(wantPlayed) {
		t.Errorf("PlayedAt = %v, want %v", plays[0].PlayedAt, wantPlayed)
	}
}

func TestGetRecentlyPlayedExpiredToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, srv.URL)
	_, err := client.GetRecentlyPlayed(context.Background(), "expired", time.Time{})
	if !IsAuthError(err) {
		t.Errorf("Expected AuthError for 401, got %v", err)
	}
}

func TestGetRecentlyPlayedServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, srv.URL)
	_, err := client.GetRecentlyPlayed(context.Background(), "at-1", time.Time{})
	if !IsUpstreamError(err) {
		t.Errorf("Expected UpstreamError for 500, got %v", err)
	}
}

func TestRateLimitRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, srv.URL)
	plays, err := client.GetRecentlyPlayed(context.Background(), "at-1", time.Time{})
	if err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
	if len(plays) != 0 {
		t.Errorf("Expected empty feed, got %d plays", len(plays))
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestGetPlaylistTracksPagination(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/token" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"app-token","expires_in":3600}`))
			return
		}
		if r.URL.Path != "/playlists/pl1/tracks" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer app-token" {
			t.Errorf("Authorization = %q, want Bearer app-token", got)
		}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("offset") == "0" {
			_, _ = w.Write([]byte(`{
				"items":[{"added_at":"2026-01-01T00:00:00Z","track":{"id":"t1","name":"One","duration_ms":1000,"artists":[{"name":"A"}]}}],
				"next":"https://next.page"
			}`))
			return
		}
		_, _ = w.Write([]byte(`{
			"items":[{"added_at":"2026-01-02T00:00:00Z","track":{"id":"t2","name":"Two","duration_ms":2000,"artists":[{"name":"B"}]}}],
			"next":""
		}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, srv.URL)
	tracks, err := client.GetPlaylistTracks(context.Background(), "pl1")
	if err != nil {
		t.Fatalf("GetPlaylistTracks failed: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("Expected 2 tracks across pages, got %d", len(tracks))
	}
	if tracks[0].TrackID != "t1" || tracks[1].TrackID != "t2" {
		t.Errorf("Tracks = %+v", tracks)
	}
}

func TestGetPlaylistUsesCachedAppToken(t *testing.T) {
	t.Parallel()

	var tokenCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/token" {
			tokenCalls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"app-token","expires_in":3600}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pl1","name":"Mix","snapshot_id":"snap-1","owner":{"display_name":"Owner"},"images":[{"url":"https://img"}]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, srv.URL)
	for i := 0; i < 3; i++ {
		playlist, err := client.GetPlaylist(context.Background(), "pl1")
		if err != nil {
			t.Fatalf("GetPlaylist failed: %v", err)
		}
		if playlist.SnapshotID != "snap-1" || playlist.OwnerName != "Owner" || playlist.ImageURL != "https://img" {
			t.Errorf("Playlist = %+v", playlist)
		}
	}
	if got := tokenCalls.Load(); got != 1 {
		t.Errorf("Expected 1 token request, got %d", got)
	}
}

func TestSavedTracksContain(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ids"); got != "t1,t2" {
			t.Errorf("ids = %q, want t1,t2", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[true,false]`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, srv.URL)
	saved, err := client.SavedTracksContain(context.Background(), "at-1", []string{"t1", "t2"})
	if err != nil {
		t.Fatalf("SavedTracksContain failed: %v", err)
	}
	if len(saved) != 2 || !saved[0] || saved[1] {
		t.Errorf("saved = %v, want [true false]", saved)
	}

	// Empty input short-circuits without a request.
	saved, err = client.SavedTracksContain(context.Background(), "at-1", nil)
	if err != nil || saved != nil {
		t.Errorf("Expected nil, nil for empty input, got %v, %v", saved, err)
	}
}
