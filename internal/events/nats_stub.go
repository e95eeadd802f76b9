// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

//go:build !nats

package events

// NewNATSBus is unavailable without the nats build tag. Builds that skip
// the tag keep the NATS server and client out of the binary entirely.
func NewNATSBus(cfg NATSConfig) (*Bus, error) {
	return nil, ErrNATSNotEnabled
}
