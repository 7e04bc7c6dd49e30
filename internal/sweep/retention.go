// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/auscultor/internal/logging"
	"github.com/tomtom215/auscultor/internal/metrics"
	"github.com/tomtom215/auscultor/internal/models"
)

// RunRetentionSweep ends every active connection that joined more than the
// retention window ago. Ended connections stop being polled and drop out of
// "active" counts, but their plays, sessions, and aggregates are kept.
func (m *Manager) RunRetentionSweep(ctx context.Context) (*models.RetentionSweepSummary, error) {
	examined, err := m.db.CountActiveConnections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count active connections: %w", err)
	}

	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -m.cfg.Analytics.RetentionDays)
	deactivated, err := m.db.DeactivateConnectionsBefore(ctx, cutoff, now)
	if err != nil {
		return nil, fmt.Errorf("retention sweep failed: %w", err)
	}
	metrics.RetentionDeactivated.Add(float64(deactivated))

	summary := &models.RetentionSweepSummary{
		Examined:    examined,
		Deactivated: int(deactivated),
	}
	logging.Info().
		Int("examined", summary.Examined).
		Int("deactivated", summary.Deactivated).
		Int("retention_days", m.cfg.Analytics.RetentionDays).
		Msg("Retention sweep completed")
	return summary, nil
}
