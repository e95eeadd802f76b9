// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package audit

import (
	"context"
	"time"

	"github.com/mototwist/mototwist/internal/logging"
)

// Janitor prunes audit events past the retention window. It implements
// suture.Service and runs under the data layer of the supervision
// tree.
type Janitor struct {
	store     Store
	retention time.Duration
	interval  time.Duration
}

// NewJanitor creates a retention janitor. retentionDays at or below
// zero defaults to 90 days; a zero interval defaults to six hours.
func NewJanitor(store Store, retentionDays int, interval time.Duration) *Janitor {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &Janitor{
		store:     store,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  interval,
	}
}

// String names the janitor in supervisor logs.
func (j *Janitor) String() string {
	return "audit-janitor"
}

// Serve runs the prune loop until the context is cancelled.
func (j *Janitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.prune(ctx)
		}
	}
}

func (j *Janitor) prune(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-j.retention)
	pruned, err := j.store.PruneAuditEvents(ctx, cutoff)
	if err != nil {
		logging.Warn().Err(err).Msg("Audit retention prune failed")
		return
	}
	if pruned > 0 {
		logging.Info().
			Int64("removed", pruned).
			Time("cutoff", cutoff).
			Msg("Pruned expired audit events")
	}
}
