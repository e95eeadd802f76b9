// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package backup

import (
	"context"
	"time"

	"github.com/mototwist/mototwist/internal/logging"
)

// Scheduler runs periodic snapshots. It implements suture.Service and
// sits in the data layer of the supervision tree; the tree only adds
// it when BACKUP_ENABLED is set.
type Scheduler struct {
	manager  *Manager
	interval time.Duration
}

// NewScheduler creates a scheduler over the manager's configured
// interval. A zero interval defaults to 24 hours.
func NewScheduler(manager *Manager) *Scheduler {
	interval := manager.cfg.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Scheduler{manager: manager, interval: interval}
}

// String names the scheduler in supervisor logs.
func (s *Scheduler) String() string {
	return "backup-scheduler"
}

// Serve snapshots on the configured interval until the context is
// cancelled. When the newest snapshot is already older than one
// interval (or none exists) it catches up immediately.
func (s *Scheduler) Serve(ctx context.Context) error {
	if s.due() {
		s.run(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *Scheduler) due() bool {
	latest, err := s.manager.Latest()
	if err != nil || latest == nil {
		return true
	}
	return time.Since(latest.CreatedAt) >= s.interval
}

func (s *Scheduler) run(ctx context.Context) {
	if _, err := s.manager.Create(ctx); err != nil {
		// Create already logged and counted the failure.
		return
	}
	if _, err := s.manager.Prune(); err != nil {
		logging.Warn().Err(err).Msg("Snapshot retention prune failed")
	}
}
