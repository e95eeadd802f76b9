// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

// Package routing provides the OSRM client that computes road-snapped
// route geometry for capture sessions.
//
// The client speaks the OSRM HTTP API:
//
//	GET {base}/route/v1/driving/{lng},{lat};{lng},{lat};...?overview=full&geometries=geojson
//
// OSRM takes and returns coordinates in (lng, lat) order; this package
// reorders to the (lat, lng) order used everywhere else in MotoTwist, so
// the wire format never leaks past the client.
//
// Resilience:
//   - Rate limiting: an x/time/rate limiter paces outbound requests
//     (required etiquette against the public OSRM demo server).
//   - Retries: HTTP 429 responses retry with exponential backoff,
//     honoring Retry-After when present.
//   - Circuit breaker: CircuitBreakerRouter opens after a 60% failure
//     rate over at least 10 requests; cancelled calls never count as
//     failures.
//   - Caching: identical waypoint sequences are served from an LRU
//     response cache without a network round trip.
//
// Cancellation contract: when the caller's context is cancelled (a capture
// session superseding its own in-flight request), the returned error
// satisfies errors.Is(err, context.Canceled) so callers can distinguish
// supersession from genuine routing failure.
package routing
