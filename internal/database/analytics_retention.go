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
	"github.com/tomtom215/auscultor/internal/models"
)

// GetCohortRetention computes day-granularity cohort retention for a link.
//
// days is the ascending lookback window of day keys (from the day bucketer)
// and keyFn maps an instant to its day key. Cohort assignment happens here in
// Go rather than SQL because day keys are timezone dependent: DATE_TRUNC over
// UTC timestamps would misplace joins near local midnight.
//
// One cohort is emitted per window day. A cohort's Retention[i] is the
// fraction of its connections that have a day-aggregate row on days[i],
// exactly 0 for empty cohorts. Nothing is persisted.
func (db *DB) GetCohortRetention(ctx context.Context, linkID uuid.UUID, days []time.Time, keyFn func(time.Time) time.Time) ([]models.CohortRetention, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if len(days) == 0 {
		return []models.CohortRetention{}, nil
	}

	cohorts, err := db.cohortMembers(ctx, linkID, keyFn)
	if err != nil {
		return nil, err
	}
	activity, err := db.activityDays(ctx, linkID, days[0], days[len(days)-1])
	if err != nil {
		return nil, err
	}

	dayIndex := make(map[time.Time]int, len(days))
	for i, day := range days {
		dayIndex[day.UTC()] = i
	}

	result := make([]models.CohortRetention, 0, len(days))
	for _, cohortDay := range days {
		members := cohorts[cohortDay.UTC()]
		cr := models.CohortRetention{
			CohortStart: cohortDay,
			CohortSize:  len(members),
			Retention:   make([]float64, len(days)),
		}
		if len(members) > 0 {
			retained := make([]int, len(days))
			for _, connID := range members {
				for _, activityDay := range activity[connID] {
					if i, ok := dayIndex[activityDay]; ok {
						retained[i]++
					}
				}
			}
			for i, count := range retained {
				cr.Retention[i] = float64(count) / float64(len(members))
			}
		}
		result = append(result, cr)
	}
	return result, nil
}

// cohortMembers groups a link's connections by the day key of their join
// instant.
func (db *DB) cohortMembers(ctx context.Context, linkID uuid.UUID, keyFn func(time.Time) time.Time) (map[time.Time][]uuid.UUID, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, connected_at FROM connections WHERE link_id = ?`, linkID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cohort members: %w", err)
	}
	defer rows.Close()

	cohorts := make(map[time.Time][]uuid.UUID)
	for rows.Next() {
		var id uuid.UUID
		var connectedAt time.Time
		if err := rows.Scan(&id, &connectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cohort member: %w", err)
		}
		key := keyFn(connectedAt).UTC()
		cohorts[key] = append(cohorts[key], id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cohort members: %w", err)
	}
	return cohorts, nil
}

// activityDays returns, per connection of the link, the day keys inside
// [firstDay, lastDay] that have a day-aggregate row.
func (db *DB) activityDays(ctx context.Context, linkID uuid.UUID, firstDay, lastDay time.Time) (map[uuid.UUID][]time.Time, error) {
	query := `SELECT uda.connection_id, uda.day
	FROM user_day_aggregates uda
	JOIN connections c ON c.id = uda.connection_id
	WHERE c.link_id = ? AND uda.day >= ? AND uda.day <= ?`

	rows, err := db.conn.QueryContext(ctx, query, linkID, firstDay, lastDay)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity days: %w", err)
	}
	defer rows.Close()

	activity := make(map[uuid.UUID][]time.Time)
	for rows.Next() {
		var connID uuid.UUID
		var day time.Time
		if err := rows.Scan(&connID, &day); err != nil {
			return nil, fmt.Errorf("failed to scan activity day: %w", err)
		}
		activity[connID] = append(activity[connID], day.UTC())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity days: %w", err)
	}
	return activity, nil
}
