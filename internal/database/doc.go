// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

// Package database provides DuckDB-backed persistence for the Twist
// catalog: users, twists, and the two per-surface rating tables.
//
// The package owns the schema. Tables, sequences, and indexes are created
// at open, followed by versioned migrations tracked in schema_migrations.
// Waypoints and route geometry are stored as JSON text columns and
// round-tripped through goccy/go-json at the CRUD boundary, so callers
// only ever see models types.
//
// Write paths retry on DuckDB optimistic-concurrency conflicts with
// exponential backoff; INTERNAL errors fail immediately. Hot single-row
// reads go through a prepared-statement cache keyed by SQL text.
//
// Distance-from-center ordering in ListTwists extracts the first geometry
// point with json_extract, which needs the DuckDB json extension. The
// extension is verified at open and the ordering silently degrades to
// name order when it is unavailable.
package database
