// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

package services

import (
	"context"

	"github.com/tomtom215/auscultor/internal/logging"
)

// SweepManager matches the sweep.Manager lifecycle, avoiding a direct import
// so tests can substitute a mock.
type SweepManager interface {
	Start(ctx context.Context) error
	Stop() error
}

// SweepService wraps the sweep manager as a supervised service. The manager
// runs its own ticker loop; this wrapper starts it, blocks until the context
// is canceled, then stops it.
type SweepService struct {
	manager SweepManager
	name    string
}

// NewSweepService creates a sweep manager service wrapper.
func NewSweepService(manager SweepManager) *SweepService {
	return &SweepService{
		manager: manager,
		name:    "sweep-manager",
	}
}

// Serve implements suture.Service.
func (s *SweepService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	if err := s.manager.Stop(); err != nil {
		logging.Warn().Err(err).Msg("Error stopping sweep manager")
	}
	return ctx.Err()
}

// String implements fmt.Stringer; suture uses it in log messages.
func (s *SweepService) String() string {
	return s.name
}
