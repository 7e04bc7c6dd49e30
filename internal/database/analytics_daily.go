// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

package database

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/tomtom215/auscultor/internal/models"
)

// GetDailyMetrics returns the link's day series for the given day keys
// (ascending, as produced by the day bucketer's LastN). Days with no stored
// aggregate appear as zero rows so the series is contiguous.
func (db *DB) GetDailyMetrics(ctx context.Context, linkID uuid.UUID, days []time.Time) ([]models.DailyMetric, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if len(days) == 0 {
		return []models.DailyMetric{}, nil
	}

	query := `SELECT day, tracks_played, minutes_listened, active_listeners, super_listeners
		FROM link_day_aggregates
		WHERE link_id = ? AND day >= ? AND day <= ?`

	rows, err := db.conn.QueryContext(ctx, query, linkID, days[0], days[len(days)-1])
	if err != nil {
		return nil, fmt.Errorf("failed to query daily metrics: %w", err)
	}
	defer rows.Close()

	byDay := make(map[time.Time]models.DailyMetric, len(days))
	for rows.Next() {
		var dm models.DailyMetric
		if err := rows.Scan(&dm.Day, &dm.TracksPlayed, &dm.MinutesListened, &dm.ActiveListeners, &dm.SuperListeners); err != nil {
			return nil, fmt.Errorf("failed to scan daily metric: %w", err)
		}
		byDay[dm.Day.UTC()] = dm
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily metrics: %w", err)
	}

	series := make([]models.DailyMetric, 0, len(days))
	for _, day := range days {
		if dm, ok := byDay[day.UTC()]; ok {
			dm.Day = day
			// Stored aggregates keep fractional minutes; the series reports
			// whole minutes.
			dm.MinutesListened = math.Round(dm.MinutesListened)
			series = append(series, dm)
			continue
		}
		series = append(series, models.DailyMetric{Day: day})
	}
	return series, nil
}
