// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// getTableCreationQueries returns the DDL for all core tables, in
// dependency order. DuckDB has no AUTO_INCREMENT, so integer keys draw
// from explicit sequences.
//
// Referential integrity is enforced in the CRUD layer rather than with
// FOREIGN KEY constraints: DuckDB has no cascading deletes, so DeleteTwist
// removes the twist's ratings inside the same transaction.
func getTableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'rider',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE SEQUENCE IF NOT EXISTS seq_twist_id START 1;`,

		// waypoints and route_geometry hold JSON text:
		// [{"lat":..,"lng":..,"name":".."}] and [{"lat":..,"lng":..}].
		// simplification_tolerance_m records the Douglas-Peucker tolerance
		// applied at creation time.
		`CREATE TABLE IF NOT EXISTS twists (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_twist_id'),
			author_id TEXT NOT NULL,
			name TEXT NOT NULL,
			is_paved BOOLEAN NOT NULL DEFAULT true,
			waypoints TEXT NOT NULL,
			route_geometry TEXT NOT NULL,
			simplification_tolerance_m DOUBLE NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE SEQUENCE IF NOT EXISTS seq_paved_rating_id START 1;`,

		`CREATE TABLE IF NOT EXISTS paved_ratings (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_paved_rating_id'),
			twist_id BIGINT NOT NULL,
			author_id TEXT NOT NULL,
			rating_date DATE NOT NULL DEFAULT CURRENT_DATE,
			traffic SMALLINT NOT NULL,
			scenery SMALLINT NOT NULL,
			pavement SMALLINT NOT NULL,
			twistyness SMALLINT NOT NULL,
			intensity SMALLINT NOT NULL
		);`,

		`CREATE SEQUENCE IF NOT EXISTS seq_unpaved_rating_id START 1;`,

		`CREATE TABLE IF NOT EXISTS unpaved_ratings (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_unpaved_rating_id'),
			twist_id BIGINT NOT NULL,
			author_id TEXT NOT NULL,
			rating_date DATE NOT NULL DEFAULT CURRENT_DATE,
			traffic SMALLINT NOT NULL,
			scenery SMALLINT NOT NULL,
			surface_consistency SMALLINT NOT NULL,
			technicality SMALLINT NOT NULL,
			flow SMALLINT NOT NULL
		);`,

		// Security audit trail: login outcomes, twist/rating mutations,
		// authorization denials. Written by internal/audit.
		`CREATE TABLE IF NOT EXISTS audit_events (
			id TEXT PRIMARY KEY,
			event_time TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			category TEXT NOT NULL,
			action TEXT NOT NULL,
			outcome TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			actor_name TEXT NOT NULL DEFAULT '',
			resource TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT '',
			ip_address TEXT NOT NULL DEFAULT '',
			request_id TEXT NOT NULL DEFAULT ''
		);`,
	}
}

// createTables creates the core database tables.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range getTableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// createIndexes creates secondary indexes. The catalog list filters on
// name, ownership, and per-user rating existence, so those columns carry
// indexes. UNIQUE constraints already index users.username.
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_twists_name ON twists(name);`,
		`CREATE INDEX IF NOT EXISTS idx_twists_author ON twists(author_id);`,
		`CREATE INDEX IF NOT EXISTS idx_paved_ratings_twist ON paved_ratings(twist_id);`,
		`CREATE INDEX IF NOT EXISTS idx_paved_ratings_author ON paved_ratings(author_id);`,
		`CREATE INDEX IF NOT EXISTS idx_unpaved_ratings_twist ON unpaved_ratings(twist_id);`,
		`CREATE INDEX IF NOT EXISTS idx_unpaved_ratings_author ON unpaved_ratings(author_id);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_time ON audit_events(event_time);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_actor ON audit_events(actor_id);`,
	}

	for _, query := range indexes {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
