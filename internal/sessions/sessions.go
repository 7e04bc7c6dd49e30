// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

// Package sessions derives listening sessions from a connection's play
// events.
//
// A listening session is a maximal run of plays where each consecutive pair
// is no more than SessionGap apart. Derivation is a pure function of the
// play set: callers re-derive the full session list from a connection's
// complete play history and replace the stored sessions wholesale, so the
// derived data never drifts from the plays it summarizes.
package sessions

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/auscultor/internal/models"
)

const (
	// SessionGap is the maximum silence between two plays that still
	// belong to the same session.
	SessionGap = 30 * time.Minute

	// SuperListenerThreshold is the minimum track count that marks a
	// session (or a day) as super-listener engagement.
	SuperListenerThreshold = 15
)

// ErrEmptySessionGroup indicates a logic defect: session construction was
// attempted on zero plays. Callers treat it as an internal invariant
// violation, log it loudly and isolate it to the connection being processed.
var ErrEmptySessionGroup = errors.New("sessions: cannot build session from empty play group")

// DeriveSessions computes the full session list for one connection from its
// complete play set. Input order does not matter. The result is in
// chronological order. Empty input yields an empty result.
//
// Grouping scans plays most-recent-first and compares each play against the
// last play added to the current group, not the group's newest play, so a
// long session of closely spaced plays is never split by its total length.
func DeriveSessions(connectionID uuid.UUID, plays []models.PlayEvent) ([]models.ListeningSession, error) {
	if len(plays) == 0 {
		return nil, nil
	}

	sorted := make([]models.PlayEvent, len(plays))
	copy(sorted, plays)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].PlayedAt.After(sorted[j].PlayedAt)
	})

	var groups [][]models.PlayEvent
	current := []models.PlayEvent{sorted[0]}
	for _, play := range sorted[1:] {
		last := current[len(current)-1]
		if last.PlayedAt.Sub(play.PlayedAt) <= SessionGap {
			current = append(current, play)
		} else {
			groups = append(groups, current)
			current = []models.PlayEvent{play}
		}
	}
	groups = append(groups, current)

	// Groups were collected newest-first; emit chronological.
	result := make([]models.ListeningSession, 0, len(groups))
	for i := len(groups) - 1; i >= 0; i-- {
		session, err := sessionFromPlays(connectionID, groups[i])
		if err != nil {
			return nil, fmt.Errorf("derive sessions for connection %s: %w", connectionID, err)
		}
		result = append(result, session)
	}
	return result, nil
}

// sessionFromPlays collapses one play group into a session. The group is in
// descending playedAt order as produced by DeriveSessions.
func sessionFromPlays(connectionID uuid.UUID, group []models.PlayEvent) (models.ListeningSession, error) {
	if len(group) == 0 {
		return models.ListeningSession{}, ErrEmptySessionGroup
	}

	var totalMs int64
	for _, play := range group {
		totalMs += play.DurationMs
	}

	return models.ListeningSession{
		ID:               uuid.New(),
		ConnectionID:     connectionID,
		StartedAt:        group[len(group)-1].PlayedAt,
		EndedAt:          group[0].PlayedAt,
		TrackCount:       len(group),
		TotalMinutes:     float64(totalMs) / 60000.0,
		SuperListenerHit: len(group) >= SuperListenerThreshold,
	}, nil
}

// IsSuperListenerDay reports whether one day's plays qualify as
// super-listener engagement: either the day contains a super-listener
// session, or the day's total play count reaches the threshold across
// sessions.
func IsSuperListenerDay(connectionID uuid.UUID, plays []models.PlayEvent) (bool, error) {
	if len(plays) >= SuperListenerThreshold {
		return true, nil
	}
	derived, err := DeriveSessions(connectionID, plays)
	if err != nil {
		return false, err
	}
	for _, s := range derived {
		if s.SuperListenerHit {
			return true, nil
		}
	}
	return false, nil
}

// GroupPlaysByDay buckets plays by the day key produced by keyFn, typically
// daybucket.Bucketer.Key. Map values preserve the input's relative order.
func GroupPlaysByDay(plays []models.PlayEvent, keyFn func(time.Time) time.Time) map[time.Time][]models.PlayEvent {
	byDay := make(map[time.Time][]models.PlayEvent)
	for _, play := range plays {
		key := keyFn(play.PlayedAt)
		byDay[key] = append(byDay[key], play)
	}
	return byDay
}

// Minutes converts a summed play duration in milliseconds to minutes.
// Conversion happens once at the reporting edge; storage keeps raw
// milliseconds so repeated aggregation never compounds rounding.
func Minutes(durationMs int64) float64 {
	return float64(durationMs) / 60000.0
}
