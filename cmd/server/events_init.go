// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package main

import (
	"fmt"

	"github.com/mototwist/mototwist/internal/config"
	"github.com/mototwist/mototwist/internal/events"
	"github.com/mototwist/mototwist/internal/logging"
)

// newEventBus creates the domain event bus for the configured backend.
//
// The default "channel" backend is an in-process Watermill GoChannel and
// needs no external broker. The "nats" backend requires a binary built
// with -tags nats; without the tag events.NewNATSBus returns
// events.ErrNATSNotEnabled and startup fails, rather than silently
// degrading a multi-instance deployment to per-instance delivery.
func newEventBus(cfg *config.EventsConfig) (*events.Bus, error) {
	switch cfg.Backend {
	case "", "channel":
		logging.Info().Msg("Event bus: in-process channel backend")
		return events.NewChannelBus(), nil
	case "nats":
		bus, err := events.NewNATSBus(events.NATSConfig{
			URL:      cfg.NATSURL,
			Embedded: cfg.EmbeddedServer,
			StoreDir: cfg.StoreDir,
		})
		if err != nil {
			return nil, err
		}
		logging.Info().
			Bool("embedded", cfg.EmbeddedServer).
			Msg("Event bus: NATS JetStream backend")
		return bus, nil
	default:
		return nil, fmt.Errorf("unknown events backend %q (want channel or nats)", cfg.Backend)
	}
}
