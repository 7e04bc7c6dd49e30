// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

/*
manager.go - Sweep Manager Lifecycle and Orchestration

The sweep manager owns the periodic ingestion pipeline: it polls every active
connection's recently-played feed, deduplicates and persists new plays,
re-derives listening sessions, and recomputes the day aggregates the read API
serves. It also hosts the two maintenance jobs (retention sweep, playlist
refresh) that share its dependencies.

Lifecycle:
  - NewManager(): wire database, provider client, config, and day bucketer
  - Start(): begin the periodic sweep loop
  - Stop(): graceful shutdown, waits for an in-flight sweep to finish
  - TriggerSweep(): manual execution (mutex-protected against the loop)

Thread safety:
  - sweepMu serializes sweep execution (ticker vs. manual trigger)
  - mu protects running and lastSweep
*/

//nolint:staticcheck // File documentation, not package doc
package sweep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/auscultor/internal/config"
	"github.com/tomtom215/auscultor/internal/database"
	"github.com/tomtom215/auscultor/internal/daybucket"
	"github.com/tomtom215/auscultor/internal/logging"
	"github.com/tomtom215/auscultor/internal/models"
	"github.com/tomtom215/auscultor/internal/spotify"
)

// Manager orchestrates the periodic poll sweep across active connections.
type Manager struct {
	db     *database.DB
	client spotify.ClientInterface
	cfg    *config.Config
	bucket *daybucket.Bucketer

	lastSweep time.Time
	running   bool
	mu        sync.RWMutex
	sweepMu   sync.Mutex
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewManager creates a sweep manager. The client is the circuit-breaker
// wrapped provider client; the bucketer carries the reporting timezone.
func NewManager(db *database.DB, client spotify.ClientInterface, cfg *config.Config, bucket *daybucket.Bucketer) *Manager {
	logging.Info().
		Dur("interval", cfg.Sweep.Interval).
		Int("workers", cfg.Sweep.Workers).
		Dur("connection_timeout", cfg.Sweep.ConnectionTimeout).
		Str("timezone", cfg.Analytics.Timezone).
		Msg("Sweep manager config loaded")

	return &Manager{
		db:       db,
		client:   client,
		cfg:      cfg,
		bucket:   bucket,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic sweep loop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("sweep manager is already running")
	}
	m.running = true
	m.mu.Unlock()

	logging.Info().Msg("Starting sweep manager...")
	m.wg.Add(1)
	go m.sweepLoop(ctx)
	return nil
}

// Stop gracefully stops the sweep loop, waiting for an in-flight sweep.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return fmt.Errorf("sweep manager is not running")
	}
	m.running = false
	m.mu.Unlock()

	logging.Info().Msg("Stopping sweep manager...")
	close(m.stopChan)
	m.wg.Wait()
	logging.Info().Msg("Sweep manager stopped")
	return nil
}

func (m *Manager) sweepLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Sweep.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-ticker.C:
			if _, err := m.TriggerSweep(ctx); err != nil {
				logging.Error().Err(err).Msg("Sweep failed")
			}
		}
	}
}

// TriggerSweep runs one sweep now. Concurrent invocations (manual trigger vs.
// ticker) are serialized; a rerun over the same data is a no-op thanks to
// dedup and overwrite-upserts.
func (m *Manager) TriggerSweep(ctx context.Context) (*models.SweepSummary, error) {
	m.sweepMu.Lock()
	defer m.sweepMu.Unlock()

	summary, err := m.sweep(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.lastSweep = time.Now()
	m.mu.Unlock()
	return summary, nil
}

// LastSweepTime returns when the last sweep completed, zero if none has run.
func (m *Manager) LastSweepTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSweep
}
