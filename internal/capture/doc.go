// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

// Package capture turns a rider's sequence of map clicks into a validated,
// road-snapped route payload ready for twist creation.
//
// A Session is an explicit state machine (idle, capturing, finalized,
// cancelled). While capturing, every waypoint coordinate change re-derives
// the geometry through the routing client under a replace-on-latest policy:
// the previous in-flight request is cancelled before a new one is issued, so
// at most one outstanding result can ever render and results apply in
// issuance order without sequence bookkeeping. Cancelled requests are
// discarded silently; genuine routing failures raise a notification and
// leave the last drawn geometry untouched.
//
// The Manager keys sessions by user, enforces the one-session-per-rider
// invariant, collapses an active session when a created route arrives, and
// expires sessions nobody has touched for the configured TTL.
package capture
