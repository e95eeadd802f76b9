// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/mototwist/mototwist/internal/logging"
)

// jsonVerifyQuery exercises json_extract so availability reflects a
// working extension, not just a successful LOAD.
const jsonVerifyQuery = `SELECT json_extract('{"name":"test"}', '$.name')::VARCHAR`

// extensionTimeout returns the timeout for extension operations,
// configurable via DUCKDB_EXTENSION_TIMEOUT (e.g. "30s", "1m").
func extensionTimeout() time.Duration {
	if timeoutStr := os.Getenv("DUCKDB_EXTENSION_TIMEOUT"); timeoutStr != "" {
		if d, err := time.ParseDuration(timeoutStr); err == nil && d > 0 {
			return d
		}
	}
	return 30 * time.Second
}

// execWithHardTimeout executes a SQL statement with a goroutine-based hard
// timeout. DuckDB CGO calls don't respect context cancellation, so the
// context alone cannot bound INSTALL/LOAD; the select enforces the limit
// even when the CGO call keeps running.
func (db *DB) execWithHardTimeout(query string) error {
	resultCh := make(chan error, 1)

	ctx, cancel := context.WithTimeout(context.Background(), extensionTimeout())
	defer cancel()

	go func() {
		_, err := db.conn.ExecContext(ctx, query)
		resultCh <- err
	}()

	select {
	case err := <-resultCh:
		return err
	case <-time.After(extensionTimeout()):
		return fmt.Errorf("operation timed out after %v", extensionTimeout())
	}
}

// preloadExtensions loads the json extension in a throwaway in-memory
// database before the main database file opens. DuckDB caches loaded
// extensions per-process, so this makes json functions available during
// WAL replay of the main file.
//
// Skipped in CI where extensions may not be installed; ListTwists falls
// back to name ordering there anyway.
func preloadExtensions() error {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		logging.Debug().Msg("Skipping extension preload in CI environment")
		return nil
	}

	conn, err := sql.Open("duckdb", ":memory:?autoinstall_known_extensions=false&autoload_known_extensions=false")
	if err != nil {
		return fmt.Errorf("failed to open in-memory database for extension preload: %w", err)
	}
	defer func() {
		conn.SetConnMaxLifetime(0)
		conn.SetMaxIdleConns(0)
		conn.SetMaxOpenConns(0)
		closeQuietly(conn)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := conn.ExecContext(ctx, "LOAD json;"); err != nil {
		logging.Debug().Err(err).Msg("Failed to preload json extension")
	}

	return nil
}

// installExtensions loads the json extension and records availability.
// json is the only extension MotoTwist uses; it backs json_extract in the
// distance-ordered catalog query. Recent duckdb-go builds link it
// statically, so the verify-first path usually succeeds without any
// INSTALL/LOAD round trip.
//
// Unavailability is never fatal: distance ordering degrades to name
// ordering and everything else works without the extension.
func (db *DB) installExtensions() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var probe string
	if err := db.conn.QueryRowContext(ctx, jsonVerifyQuery).Scan(&probe); err == nil {
		db.jsonAvailable = true
		return nil
	}

	if err := db.execWithHardTimeout("INSTALL json;"); err != nil {
		logging.Debug().Err(err).Msg("Failed to install json extension")
	}
	if err := db.execWithHardTimeout("LOAD json;"); err != nil {
		logging.Warn().Err(err).Msg("JSON extension unavailable, distance ordering will fall back to name ordering")
		db.jsonAvailable = false
		return nil
	}

	verifyCtx, verifyCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer verifyCancel()
	if err := db.conn.QueryRowContext(verifyCtx, jsonVerifyQuery).Scan(&probe); err != nil {
		logging.Warn().Err(err).Msg("JSON extension loaded but not functional, distance ordering will fall back to name ordering")
		db.jsonAvailable = false
		return nil
	}

	db.jsonAvailable = true
	return nil
}
