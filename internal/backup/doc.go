// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

// Package backup writes scheduled snapshots of the DuckDB database.
//
// A snapshot is a gzip-compressed copy of the checkpointed database
// file:
//
//	{BACKUP_DIR}/mototwist-{timestamp}-{id}.duckdb.gz
//	{BACKUP_DIR}/mototwist-{timestamp}-{id}.duckdb.gz.sha256
//
// The sidecar holds the SHA-256 of the compressed file in sha256sum
// format, so `sha256sum -c` and Verify can both check integrity.
//
// Manager performs the individual operations (Create, List, Prune,
// Latest); Scheduler is a suture.Service that runs Create and Prune
// every BACKUP_INTERVAL, catching up immediately at start when the
// newest snapshot is older than one interval. Retention is
// count-based: Prune keeps the BACKUP_RETENTION newest snapshots and
// removes the rest.
//
// Restores are manual: stop the server, gunzip a snapshot over
// DUCKDB_PATH, start the server.
package backup
