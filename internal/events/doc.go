// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

// Package events is the domain event bus. Write-path handlers publish
// twist lifecycle events (added, deleted, rated) and a forwarder fans
// them out to the WebSocket hub and the map layer manager, so the HTTP
// response never waits on UI propagation.
//
// The default backend is an in-process Watermill GoChannel pub/sub. For
// multi-instance deployments, building with the nats tag swaps in NATS
// JetStream, optionally on an embedded server. Both backends carry the
// same JSON-serialized Event on a single subject, so publishers and
// subscribers are unaware of the transport.
//
// Delivery to UI sinks is at-most-once: the forwarder acks every message
// it decodes, because the database write has already committed and a
// missed signal only costs a page refresh. Decode failures and unknown
// event types are counted and dropped, never redelivered.
package events
