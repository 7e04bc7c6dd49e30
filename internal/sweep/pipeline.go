// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tomtom215/auscultor/internal/logging"
	"github.com/tomtom215/auscultor/internal/metrics"
	"github.com/tomtom215/auscultor/internal/models"
	"github.com/tomtom215/auscultor/internal/sessions"
	"github.com/tomtom215/auscultor/internal/spotify"
)

// tokenSlack refreshes access tokens slightly before their recorded expiry so
// a token never expires mid-pipeline.
const tokenSlack = time.Minute

// savedCheckLimit caps how many track ids one saved-tracks probe sends.
const savedCheckLimit = 50

// connStats is one connection's contribution to the sweep summary.
type connStats struct {
	playsAdded        int
	duplicatesSkipped int
	sessionsDerived   int
}

// sweep runs one full pass over all active connections using a bounded worker
// pool. Individual connection failures are logged and counted; the sweep as a
// whole only fails when the connection list itself cannot be loaded.
func (m *Manager) sweep(ctx context.Context) (*models.SweepSummary, error) {
	start := time.Now()

	conns, err := m.db.ListActiveConnections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active connections: %w", err)
	}

	summary := &models.SweepSummary{}
	if len(conns) == 0 {
		logging.Debug().Msg("Sweep found no active connections")
		return summary, nil
	}

	trackSets, err := m.loadTrackSets(ctx, conns)
	if err != nil {
		return nil, err
	}

	workers := m.cfg.Sweep.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(conns) {
		workers = len(conns)
	}

	jobs := make(chan *models.Connection)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for conn := range jobs {
				stats, err := m.processConnectionBounded(ctx, conn, trackSets[conn.LinkID])
				mu.Lock()
				// Counted at completion so a cancelled sweep never claims
				// connections it never touched.
				summary.Processed++
				if err != nil {
					summary.Errors++
					m.recordConnectionError(conn.ID, err)
				}
				summary.PlaysAdded += stats.playsAdded
				summary.DuplicatesSkipped += stats.duplicatesSkipped
				summary.SessionsDerived += stats.sessionsDerived
				mu.Unlock()
			}
		}()
	}

	for _, conn := range conns {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		case jobs <- conn:
		}
	}
	close(jobs)
	wg.Wait()

	duration := time.Since(start)
	metrics.RecordSweep(duration, summary.Processed, summary.PlaysAdded,
		summary.DuplicatesSkipped, summary.SessionsDerived, summary.Errors)

	logging.Info().
		Int("processed", summary.Processed).
		Int("plays_added", summary.PlaysAdded).
		Int("duplicates_skipped", summary.DuplicatesSkipped).
		Int("sessions_derived", summary.SessionsDerived).
		Int("errors", summary.Errors).
		Dur("duration", duration).
		Msg("Sweep completed")
	return summary, nil
}

// loadTrackSets fetches each referenced link's track id set once per sweep
// instead of per connection.
func (m *Manager) loadTrackSets(ctx context.Context, conns []*models.Connection) (map[uuid.UUID]map[string]struct{}, error) {
	trackSets := make(map[uuid.UUID]map[string]struct{})
	for _, conn := range conns {
		if _, ok := trackSets[conn.LinkID]; ok {
			continue
		}
		ids, err := m.db.GetPlaylistTrackIDs(ctx, conn.LinkID)
		if err != nil {
			return nil, fmt.Errorf("failed to load track set for link %s: %w", conn.LinkID, err)
		}
		trackSets[conn.LinkID] = ids
	}
	return trackSets, nil
}

// recordConnectionError classifies a per-connection failure for logs and
// metrics. AuthError means the listener revoked access or the refresh token
// is invalid; the connection is skipped but never auto-deactivated.
func (m *Manager) recordConnectionError(connectionID uuid.UUID, err error) {
	var persistErr *PersistenceError
	switch {
	case spotify.IsAuthError(err):
		metrics.RecordSweepError("auth")
		logging.Warn().Err(err).Str("connection_id", connectionID.String()).
			Msg("Connection skipped: authorization failed")
	case spotify.IsUpstreamError(err):
		metrics.RecordSweepError("upstream")
		logging.Warn().Err(err).Str("connection_id", connectionID.String()).
			Msg("Connection skipped: upstream failure, will retry next sweep")
	case errors.As(err, &persistErr):
		metrics.RecordSweepError("persistence")
		logging.Error().Err(err).Str("connection_id", connectionID.String()).
			Msg("Connection skipped: persistence failure")
	case errors.Is(err, sessions.ErrEmptySessionGroup):
		metrics.RecordSweepError("invariant")
		logging.Error().Err(err).Str("connection_id", connectionID.String()).
			Msg("Session derivation invariant violated")
	default:
		metrics.RecordSweepError("other")
		logging.Error().Err(err).Str("connection_id", connectionID.String()).
			Msg("Connection sweep failed")
	}
}

// processConnectionBounded applies the per-connection timeout around the
// pipeline.
func (m *Manager) processConnectionBounded(ctx context.Context, conn *models.Connection, trackIDs map[string]struct{}) (connStats, error) {
	if timeout := m.cfg.Sweep.ConnectionTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return m.processConnection(ctx, conn, trackIDs)
}

// processConnection runs the full pipeline for one connection: token refresh,
// fetch, dedup, persist, session re-derivation, day aggregate recompute,
// engagement probe, and the last-polled bookkeeping. Partial progress is
// fine: everything downstream is derived from persisted plays, so the next
// sweep repairs whatever this one did not finish.
func (m *Manager) processConnection(ctx context.Context, conn *models.Connection, trackIDs map[string]struct{}) (connStats, error) {
	var stats connStats

	accessToken, err := m.ensureAccessToken(ctx, conn)
	if err != nil {
		return stats, err
	}

	after := time.Time{}
	latest, err := m.db.LatestPlayTime(ctx, conn.ID)
	if err != nil {
		return stats, &PersistenceError{Op: "latest play lookup", Err: err}
	}
	if latest != nil {
		after = *latest
	}

	recent, err := m.client.GetRecentlyPlayed(ctx, accessToken, after)
	if err != nil {
		return stats, err
	}

	added, err := m.persistNewPlays(ctx, conn, recent, trackIDs, &stats)
	if err != nil {
		return stats, err
	}

	if len(added) > 0 {
		if err := m.rebuildDerivedData(ctx, conn, added, &stats); err != nil {
			return stats, err
		}
	}

	m.probeEngagement(ctx, conn, accessToken, recent, trackIDs)

	if err := m.db.UpdateConnectionLastPolled(ctx, conn.ID, time.Now().UTC()); err != nil {
		return stats, &PersistenceError{Op: "last polled update", Err: err}
	}
	return stats, nil
}

// ensureAccessToken returns a usable access token, refreshing and persisting
// it when the stored one is expired or missing.
func (m *Manager) ensureAccessToken(ctx context.Context, conn *models.Connection) (string, error) {
	if conn.AccessToken != "" && time.Now().Add(tokenSlack).Before(conn.TokenExpiry) {
		return conn.AccessToken, nil
	}

	token, err := m.client.RefreshUserToken(ctx, conn.RefreshToken)
	if err != nil {
		return "", err
	}

	refreshToken := conn.RefreshToken
	if token.RefreshToken != "" {
		refreshToken = token.RefreshToken
	}
	if err := m.db.UpdateConnectionTokens(ctx, conn.ID, token.AccessToken, refreshToken, token.ExpiresAt); err != nil {
		return "", &PersistenceError{Op: "token update", Err: err}
	}
	conn.AccessToken = token.AccessToken
	conn.RefreshToken = refreshToken
	conn.TokenExpiry = token.ExpiresAt
	return token.AccessToken, nil
}

// persistNewPlays runs every candidate through the tolerance dedup and
// persists the survivors, flagged with the matched-playlist classification.
// Returns the plays that were actually added.
func (m *Manager) persistNewPlays(ctx context.Context, conn *models.Connection, recent []spotify.RecentPlay, trackIDs map[string]struct{}, stats *connStats) ([]models.PlayEvent, error) {
	var added []models.PlayEvent
	for _, rp := range recent {
		exists, err := m.db.PlayExistsNear(ctx, conn.ID, rp.TrackID, rp.PlayedAt, m.cfg.Analytics.DedupTolerance)
		if err != nil {
			return added, &PersistenceError{Op: "dedup check", Err: err}
		}
		if exists {
			stats.duplicatesSkipped++
			continue
		}

		_, matched := trackIDs[rp.TrackID]
		play := models.PlayEvent{
			ConnectionID:    conn.ID,
			TrackID:         rp.TrackID,
			PlayedAt:        rp.PlayedAt,
			DurationMs:      rp.DurationMs,
			MatchedPlaylist: matched,
		}
		if err := m.db.InsertPlayEvent(ctx, &play); err != nil {
			return added, &PersistenceError{Op: "play insert", Err: err}
		}
		stats.playsAdded++
		added = append(added, play)
	}
	return added, nil
}

// rebuildDerivedData re-derives sessions from the connection's full play set
// and recomputes the day aggregates for every day the new plays touched.
func (m *Manager) rebuildDerivedData(ctx context.Context, conn *models.Connection, added []models.PlayEvent, stats *connStats) error {
	full, err := m.db.ListPlaysByConnection(ctx, conn.ID)
	if err != nil {
		return &PersistenceError{Op: "play listing", Err: err}
	}

	derived, err := sessions.DeriveSessions(conn.ID, full)
	if err != nil {
		return err
	}
	if err := m.db.ReplaceSessions(ctx, conn.ID, derived); err != nil {
		return &PersistenceError{Op: "session replace", Err: err}
	}
	stats.sessionsDerived = len(derived)

	touched := make(map[time.Time]struct{})
	for _, play := range added {
		touched[m.bucket.Key(play.PlayedAt)] = struct{}{}
	}
	byDay := sessions.GroupPlaysByDay(full, m.bucket.Key)

	for day := range touched {
		if err := m.recomputeDay(ctx, conn, day, byDay[day]); err != nil {
			return err
		}
	}
	return nil
}

// recomputeDay overwrites one (connection, day) aggregate from the day's full
// play set, then rolls the change up into the link's day aggregate.
func (m *Manager) recomputeDay(ctx context.Context, conn *models.Connection, day time.Time, plays []models.PlayEvent) error {
	super, err := sessions.IsSuperListenerDay(conn.ID, plays)
	if err != nil {
		return err
	}

	var totalMs int64
	for _, play := range plays {
		totalMs += play.DurationMs
	}
	agg := &models.UserDayAggregate{
		ConnectionID:     conn.ID,
		Day:              day,
		TracksPlayed:     len(plays),
		MinutesListened:  sessions.Minutes(totalMs),
		SuperListenerDay: super,
	}
	if err := m.db.UpsertUserDayAggregate(ctx, agg); err != nil {
		return &PersistenceError{Op: "user day aggregate upsert", Err: err}
	}

	dayStart, dayEnd := m.bucket.Range(day)
	if err := m.db.RecomputeLinkDayAggregate(ctx, conn.LinkID, dayStart, dayEnd); err != nil {
		return &PersistenceError{Op: "link day aggregate recompute", Err: err}
	}
	return nil
}

// probeEngagement runs the best-effort follows/saved checks and stores the
// result on today's day aggregate. Failures are logged at debug and never
// fail the connection's sweep.
func (m *Manager) probeEngagement(ctx context.Context, conn *models.Connection, accessToken string, recent []spotify.RecentPlay, trackIDs map[string]struct{}) {
	link, err := m.db.GetTrackingLink(ctx, conn.LinkID)
	if err != nil {
		logging.Debug().Err(err).Str("connection_id", conn.ID.String()).
			Msg("Engagement probe skipped: link lookup failed")
		return
	}

	follows, err := m.client.FollowsPlaylist(ctx, accessToken, link.PlaylistID, conn.ListenerID)
	if err != nil {
		logging.Debug().Err(err).Str("connection_id", conn.ID.String()).
			Msg("Follows check failed")
		follows = false
	}

	savedAny := false
	if probe := matchedTrackIDs(recent, trackIDs); len(probe) > 0 {
		saved, err := m.client.SavedTracksContain(ctx, accessToken, probe)
		if err != nil {
			logging.Debug().Err(err).Str("connection_id", conn.ID.String()).
				Msg("Saved tracks check failed")
		}
		for _, s := range saved {
			if s {
				savedAny = true
				break
			}
		}
	}

	if !follows && !savedAny {
		return
	}
	if err := m.db.SetDayEngagement(ctx, conn.ID, m.bucket.Today(), follows, savedAny); err != nil {
		logging.Debug().Err(err).Str("connection_id", conn.ID.String()).
			Msg("Failed to store engagement signals")
	}
}

// matchedTrackIDs collects the distinct playlist tracks the listener just
// played, capped at the saved-check batch limit.
func matchedTrackIDs(recent []spotify.RecentPlay, trackIDs map[string]struct{}) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, rp := range recent {
		if _, ok := trackIDs[rp.TrackID]; !ok {
			continue
		}
		if _, dup := seen[rp.TrackID]; dup {
			continue
		}
		seen[rp.TrackID] = struct{}{}
		ids = append(ids, rp.TrackID)
		if len(ids) == savedCheckLimit {
			break
		}
	}
	return ids
}
