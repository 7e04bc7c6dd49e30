// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

// Package spotify provides the streaming provider API client used by the
// ingestion sweep.
//
// Client Features:
//   - OAuth token refresh for listener connections (refresh_token grant)
//   - Cached client-credentials token for playlist metadata reads
//   - Token-bucket rate limiting toward the provider (x/time/rate)
//   - Automatic HTTP 429 handling with exponential backoff and Retry-After
//   - Typed error classification (AuthError vs UpstreamError)
//   - Context support for cancellation and timeouts
//
// Thread Safety: all methods are safe for concurrent use.
package spotify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/auscultor/internal/config"
	"github.com/tomtom215/auscultor/internal/metrics"
)

// maxErrorBodySize limits how much of an error response body is read for
// diagnostics.
const maxErrorBodySize = 64 * 1024 // 64KB

// appTokenSlack is subtracted from the provider's expiry so a token is never
// used within the final stretch of its lifetime.
const appTokenSlack = time.Minute

// ClientInterface defines the provider operations the sweep and refresh jobs
// need. Implemented by Client for production and by fakes in tests.
type ClientInterface interface {
	// RefreshUserToken exchanges a connection's refresh token for a fresh
	// access token. Token.RefreshToken is non-empty only when rotated.
	RefreshUserToken(ctx context.Context, refreshToken string) (*Token, error)

	// GetRecentlyPlayed fetches the listener's recently-played feed, newest
	// first, for plays after the given instant (zero value = provider default).
	GetRecentlyPlayed(ctx context.Context, accessToken string, after time.Time) ([]RecentPlay, error)

	// GetPlaylist fetches playlist metadata using app credentials.
	GetPlaylist(ctx context.Context, playlistID string) (*Playlist, error)

	// GetPlaylistTracks fetches the complete track listing using app
	// credentials, following pagination.
	GetPlaylistTracks(ctx context.Context, playlistID string) ([]PlaylistTrack, error)

	// FollowsPlaylist reports whether the listener follows the playlist.
	FollowsPlaylist(ctx context.Context, accessToken, playlistID, listenerID string) (bool, error)

	// SavedTracksContain reports, per track id, whether the listener has
	// saved the track to their library. At most 50 ids per call.
	SavedTracksContain(ctx context.Context, accessToken string, trackIDs []string) ([]bool, error)
}

// Client talks to the streaming provider's REST API.
type Client struct {
	apiURL        string
	accountsURL   string
	clientID      string
	clientSecret  string
	client        *http.Client
	limiter       *rate.Limiter
	recentlyLimit int

	maxRetries     int
	retryBaseDelay time.Duration

	// Cached client-credentials token for playlist reads.
	appMu       sync.Mutex
	appToken    string
	appTokenExp time.Time
}

// NewClient creates a provider API client from configuration.
func NewClient(cfg *config.SpotifyConfig) *Client {
	return &Client{
		apiURL:        strings.TrimRight(cfg.APIURL, "/"),
		accountsURL:   strings.TrimRight(cfg.AccountsURL, "/"),
		clientID:      cfg.ClientID,
		clientSecret:  cfg.ClientSecret,
		client:        &http.Client{Timeout: cfg.Timeout},
		limiter:       rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		recentlyLimit: cfg.RecentlyLimit,

		maxRetries:     5,
		retryBaseDelay: 1 * time.Second,
	}
}

// readBodyForError reads a response body for error reporting (max 64KB).
func readBodyForError(r io.Reader) []byte {
	limitedReader := io.LimitReader(r, maxErrorBodySize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// doRequestWithRateLimit performs an HTTP request with the local rate limiter
// applied and automatic HTTP 429 backoff (1s, 2s, 4s, 8s, 16s, honoring
// Retry-After when present).
func (c *Client) doRequestWithRateLimit(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		attemptReq := req.Clone(ctx)
		if req.GetBody != nil {
			// Clone shares the original body reader; rewind for retries.
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("failed to rewind request body: %w", err)
			}
			attemptReq.Body = body
		}

		resp, err := c.client.Do(attemptReq)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		_ = resp.Body.Close() // retrying anyway

		if attempt == c.maxRetries {
			lastErr = fmt.Errorf("rate limit exceeded after %d retries (HTTP 429)", c.maxRetries)
			break
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// apiGet performs an authenticated GET against the provider API and decodes
// the JSON body into result. Errors are classified: 401/403 become AuthError,
// everything else becomes UpstreamError.
func (c *Client) apiGet(ctx context.Context, operation, accessToken, path string, params url.Values, result interface{}) error {
	start := time.Now()
	err := c.apiGetInner(ctx, operation, accessToken, path, params, result)
	metrics.RecordSpotifyRequest(operation, time.Since(start), classifyForMetrics(err))
	return err
}

func (c *Client) apiGetInner(ctx context.Context, operation, accessToken, path string, params url.Values, result interface{}) error {
	reqURL := c.apiURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return &UpstreamError{Operation: operation, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.doRequestWithRateLimit(ctx, req)
	if err != nil {
		return &UpstreamError{Operation: operation, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		body := readBodyForError(resp.Body)
		return &AuthError{Operation: operation, Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body))}
	case resp.StatusCode != http.StatusOK:
		return &UpstreamError{Operation: operation, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &UpstreamError{Operation: operation, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// classifyForMetrics maps an error onto the metrics error_type label.
func classifyForMetrics(err error) string {
	switch {
	case err == nil:
		return ""
	case IsAuthError(err):
		return "auth"
	default:
		return "upstream"
	}
}

// requestToken posts to the accounts token endpoint with Basic app
// credentials and the given form body.
func (c *Client) requestToken(ctx context.Context, operation string, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.accountsURL+"/api/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &UpstreamError{Operation: operation, Err: err}
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.doRequestWithRateLimit(ctx, req)
	if err != nil {
		return nil, &UpstreamError{Operation: operation, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// The provider answers 400 invalid_grant for revoked refresh tokens.
		body := readBodyForError(resp.Body)
		return nil, &AuthError{Operation: operation, Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body))}
	case resp.StatusCode != http.StatusOK:
		return nil, &UpstreamError{Operation: operation, StatusCode: resp.StatusCode}
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, &UpstreamError{Operation: operation, Err: fmt.Errorf("failed to decode token response: %w", err)}
	}
	if token.AccessToken == "" {
		return nil, &AuthError{Operation: operation, Err: fmt.Errorf("empty access token in response")}
	}
	return &token, nil
}

// RefreshUserToken exchanges a connection's refresh token for a fresh access
// token.
func (c *Client) RefreshUserToken(ctx context.Context, refreshToken string) (*Token, error) {
	start := time.Now()
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	resp, err := c.requestToken(ctx, "refresh_token", form)
	metrics.RecordSpotifyRequest("refresh_token", time.Since(start), classifyForMetrics(err))
	if err != nil {
		return nil, err
	}

	return &Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}, nil
}

// appAccessToken returns a valid client-credentials token, requesting a new
// one only when the cached token is missing or near expiry.
func (c *Client) appAccessToken(ctx context.Context) (string, error) {
	c.appMu.Lock()
	defer c.appMu.Unlock()

	if c.appToken != "" && time.Now().Before(c.appTokenExp.Add(-appTokenSlack)) {
		return c.appToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	resp, err := c.requestToken(ctx, "client_credentials", form)
	if err != nil {
		return "", err
	}

	c.appToken = resp.AccessToken
	c.appTokenExp = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	return c.appToken, nil
}

// GetRecentlyPlayed fetches the listener's recently-played feed.
func (c *Client) GetRecentlyPlayed(ctx context.Context, accessToken string, after time.Time) ([]RecentPlay, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(c.recentlyLimit))
	if !after.IsZero() {
		params.Set("after", strconv.FormatInt(after.UnixMilli(), 10))
	}

	var body recentlyPlayedJSON
	if err := c.apiGet(ctx, "recently_played", accessToken, "/me/player/recently-played", params, &body); err != nil {
		return nil, err
	}

	plays := make([]RecentPlay, 0, len(body.Items))
	for _, item := range body.Items {
		// Local tracks and podcast rows come through without a track id;
		// they carry no playlist signal and are dropped.
		if item.Track.ID == "" {
			continue
		}
		playedAt, err := time.Parse(time.RFC3339, item.PlayedAt)
		if err != nil {
			return nil, &UpstreamError{Operation: "recently_played", Err: fmt.Errorf("bad played_at %q: %w", item.PlayedAt, err)}
		}
		plays = append(plays, RecentPlay{
			TrackID:    item.Track.ID,
			TrackName:  item.Track.Name,
			ArtistName: firstArtist(item.Track.Artists),
			DurationMs: item.Track.DurationMs,
			PlayedAt:   playedAt.UTC(),
		})
	}
	return plays, nil
}

// GetPlaylist fetches playlist metadata using app credentials.
func (c *Client) GetPlaylist(ctx context.Context, playlistID string) (*Playlist, error) {
	token, err := c.appAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	var body playlistJSON
	if err := c.apiGet(ctx, "playlist", token, "/playlists/"+url.PathEscape(playlistID), nil, &body); err != nil {
		return nil, err
	}

	playlist := &Playlist{
		ID:         body.ID,
		Name:       body.Name,
		OwnerName:  body.Owner.DisplayName,
		SnapshotID: body.SnapshotID,
	}
	if len(body.Images) > 0 {
		playlist.ImageURL = body.Images[0].URL
	}
	return playlist, nil
}

// GetPlaylistTracks fetches the complete track listing, following pagination.
func (c *Client) GetPlaylistTracks(ctx context.Context, playlistID string) ([]PlaylistTrack, error) {
	token, err := c.appAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	var tracks []PlaylistTrack
	offset := 0
	for {
		params := url.Values{}
		params.Set("limit", "100")
		params.Set("offset", strconv.Itoa(offset))

		var page playlistTracksJSON
		if err := c.apiGet(ctx, "playlist_tracks", token, "/playlists/"+url.PathEscape(playlistID)+"/tracks", params, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if item.Track.ID == "" {
				continue
			}
			addedAt, err := time.Parse(time.RFC3339, item.AddedAt)
			if err != nil {
				addedAt = time.Time{}
			}
			tracks = append(tracks, PlaylistTrack{
				TrackID:    item.Track.ID,
				Name:       item.Track.Name,
				ArtistName: firstArtist(item.Track.Artists),
				DurationMs: item.Track.DurationMs,
				AddedAt:    addedAt.UTC(),
			})
		}

		if page.Next == "" || len(page.Items) == 0 {
			return tracks, nil
		}
		offset += len(page.Items)
	}
}

// FollowsPlaylist reports whether the listener follows the playlist.
func (c *Client) FollowsPlaylist(ctx context.Context, accessToken, playlistID, listenerID string) (bool, error) {
	params := url.Values{}
	params.Set("ids", listenerID)

	var body []bool
	path := "/playlists/" + url.PathEscape(playlistID) + "/followers/contains"
	if err := c.apiGet(ctx, "follows_playlist", accessToken, path, params, &body); err != nil {
		return false, err
	}
	if len(body) == 0 {
		return false, nil
	}
	return body[0], nil
}

// SavedTracksContain reports, per track id, whether the listener saved the
// track. The provider caps ids at 50 per request; callers slice accordingly.
func (c *Client) SavedTracksContain(ctx context.Context, accessToken string, trackIDs []string) ([]bool, error) {
	if len(trackIDs) == 0 {
		return nil, nil
	}
	params := url.Values{}
	params.Set("ids", strings.Join(trackIDs, ","))

	var body []bool
	if err := c.apiGet(ctx, "saved_tracks", accessToken, "/me/tracks/contains", params, &body); err != nil {
		return nil, err
	}
	return body, nil
}
