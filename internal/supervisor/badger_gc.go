// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package supervisor

import (
	"context"
	"time"

	"github.com/mototwist/mototwist/internal/logging"
)

// BadgerGC periodically runs value-log garbage collection for one of
// the BadgerDB stores (visible sets, sessions). BadgerDB never
// reclaims value-log space on its own; something has to tick.
type BadgerGC struct {
	name     string
	interval time.Duration
	run      func() error
}

// NewBadgerGC wraps a store's GC function as a supervised service.
// A zero interval defaults to ten minutes.
func NewBadgerGC(name string, interval time.Duration, run func() error) *BadgerGC {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &BadgerGC{name: name, interval: interval, run: run}
}

// String names the service in supervisor logs.
func (g *BadgerGC) String() string {
	return g.name
}

// Serve ticks GC until the context is cancelled. GC errors are logged
// and the loop keeps going; a store with nothing to rewrite is not an
// error.
func (g *BadgerGC) Serve(ctx context.Context) error {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := g.run(); err != nil {
				logging.Debug().Err(err).Str("store", g.name).Msg("Badger value-log GC failed")
			}
		}
	}
}
