// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

// Package audit records the security audit trail: who logged in (or
// failed to), who created or deleted twists and ratings, which
// requests authorization refused, and what admins did to user
// accounts.
//
// Events land in the DuckDB audit_events table through an async
// buffered writer so the request path never blocks on the trail:
//
//	Logger.Record() -> buffered channel -> write loop -> database
//
// The channel send is non-blocking. When the buffer is full the event
// is dropped, counted in audit_events_dropped_total and noted in the
// server log; the audit trail degrades before the API does. Close
// drains the buffer so shutdown keeps every event already accepted.
//
// Every event is also mirrored to the structured log (warn level for
// failures and denials) so operators see it without querying the
// table.
//
// A Janitor runs under the supervision tree and prunes events older
// than AUDIT_RETENTION_DAYS every AUDIT_CLEANUP_INTERVAL.
package audit
