// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

package spotify

import (
	"context"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/auscultor/internal/config"
	"github.com/tomtom215/auscultor/internal/logging"
	"github.com/tomtom215/auscultor/internal/metrics"
)

// CircuitBreakerClient wraps Client with the circuit breaker pattern so a
// provider outage fails fast instead of stalling every sweep worker on
// timeouts.
//
// DETERMINISM NOTE: the breaker uses real time (via sony/gobreaker) for its
// interval and timeout calculations. The timing determines when to recover
// from failures, not data integrity. Unit tests should exercise the wrapped
// client directly.
type CircuitBreakerClient struct {
	client ClientInterface
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// NewCircuitBreakerClient creates a provider client with circuit breaker.
// Circuit breaker configuration:
//   - Max 3 concurrent requests in half-open state
//   - 1 minute measurement window
//   - 2 minute timeout before attempting recovery
//   - Opens after 60% failure rate with minimum 10 requests
//
// AuthErrors do not count as breaker failures: one listener's revoked token
// says nothing about provider availability.
func NewCircuitBreakerClient(cfg *config.SpotifyConfig) *CircuitBreakerClient {
	return wrapWithBreaker(NewClient(cfg))
}

func wrapWithBreaker(client ClientInterface) *CircuitBreakerClient {
	cbName := "spotify-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6

			if shouldTrip {
				logging.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", failureRatio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
			}

			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},

		// Revoked listener tokens are expected in steady state and must not
		// open the circuit for everyone else.
		IsSuccessful: func(err error) bool {
			return err == nil || IsAuthError(err)
		},
	})

	return &CircuitBreakerClient{
		client: client,
		cb:     cb,
		name:   cbName,
	}
}

// execute wraps a provider call with circuit breaker protection.
func (cbc *CircuitBreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := cbc.cb.Execute(fn)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// castResult safely type-casts the circuit breaker result.
func castResult[T any](result interface{}, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to string for logging
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// RefreshUserToken refreshes a listener token with circuit breaker protection.
func (cbc *CircuitBreakerClient) RefreshUserToken(ctx context.Context, refreshToken string) (*Token, error) {
	return castResult[*Token](cbc.execute(func() (interface{}, error) {
		return cbc.client.RefreshUserToken(ctx, refreshToken)
	}))
}

// GetRecentlyPlayed fetches recent plays with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetRecentlyPlayed(ctx context.Context, accessToken string, after time.Time) ([]RecentPlay, error) {
	return castResult[[]RecentPlay](cbc.execute(func() (interface{}, error) {
		return cbc.client.GetRecentlyPlayed(ctx, accessToken, after)
	}))
}

// GetPlaylist fetches playlist metadata with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetPlaylist(ctx context.Context, playlistID string) (*Playlist, error) {
	return castResult[*Playlist](cbc.execute(func() (interface{}, error) {
		return cbc.client.GetPlaylist(ctx, playlistID)
	}))
}

// GetPlaylistTracks fetches the track listing with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetPlaylistTracks(ctx context.Context, playlistID string) ([]PlaylistTrack, error) {
	return castResult[[]PlaylistTrack](cbc.execute(func() (interface{}, error) {
		return cbc.client.GetPlaylistTracks(ctx, playlistID)
	}))
}

// FollowsPlaylist checks playlist follow state with circuit breaker protection.
func (cbc *CircuitBreakerClient) FollowsPlaylist(ctx context.Context, accessToken, playlistID, listenerID string) (bool, error) {
	return castResult[bool](cbc.execute(func() (interface{}, error) {
		return cbc.client.FollowsPlaylist(ctx, accessToken, playlistID, listenerID)
	}))
}

// SavedTracksContain checks library saves with circuit breaker protection.
func (cbc *CircuitBreakerClient) SavedTracksContain(ctx context.Context, accessToken string, trackIDs []string) ([]bool, error) {
	return castResult[[]bool](cbc.execute(func() (interface{}, error) {
		return cbc.client.SavedTracksContain(ctx, accessToken, trackIDs)
	}))
}
