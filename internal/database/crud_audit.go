// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mototwist/mototwist/internal/metrics"
	"github.com/mototwist/mototwist/internal/models"
)

const auditColumns = `id, event_time, category, action, outcome, actor_id, actor_name, resource, detail, ip_address, request_id`

// InsertAuditEvent appends one event to the audit trail. A missing ID
// gets a fresh UUID and a zero EventTime is stamped now.
func (db *DB) InsertAuditEvent(ctx context.Context, event *models.AuditEvent) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.EventTime.IsZero() {
		event.EventTime = time.Now().UTC()
	}

	start := time.Now()
	err := withConflictRetry(ctx, "insert audit event", func() error {
		_, err := db.conn.ExecContext(ctx,
			`INSERT INTO audit_events (`+auditColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			event.ID, event.EventTime, event.Category, event.Action, event.Outcome,
			event.ActorID, event.ActorName, event.Resource, event.Detail,
			event.IPAddress, event.RequestID)
		return err
	})
	metrics.RecordDBQuery("insert", "audit_events", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// AuditFilter narrows ListAuditEvents. Zero values mean no filter; a
// zero Limit returns the newest 100 events.
type AuditFilter struct {
	Category string
	ActorID  string
	Limit    int
}

// ListAuditEvents returns audit events newest first.
func (db *DB) ListAuditEvents(ctx context.Context, filter AuditFilter) ([]models.AuditEvent, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT ` + auditColumns + ` FROM audit_events`
	var args []interface{}
	var where []string

	if filter.Category != "" {
		where = append(where, `category = ?`)
		args = append(args, filter.Category)
	}
	if filter.ActorID != "" {
		where = append(where, `actor_id = ?`)
		args = append(args, filter.ActorID)
	}
	for i, clause := range where {
		if i == 0 {
			query += ` WHERE ` + clause
		} else {
			query += ` AND ` + clause
		}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY event_time DESC LIMIT ?`
	args = append(args, limit)

	start := time.Now()
	events, err := queryAndScan(ctx, db.conn, query, args,
		func(rows *sql.Rows) (models.AuditEvent, error) {
			var e models.AuditEvent
			err := rows.Scan(&e.ID, &e.EventTime, &e.Category, &e.Action, &e.Outcome,
				&e.ActorID, &e.ActorName, &e.Resource, &e.Detail, &e.IPAddress, &e.RequestID)
			return e, err
		})
	metrics.RecordDBQuery("select", "audit_events", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	return events, nil
}

// PruneAuditEvents deletes events older than the cutoff and returns the
// number removed. The audit logger calls this on its retention schedule.
func (db *DB) PruneAuditEvents(ctx context.Context, olderThan time.Time) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var pruned int64
	start := time.Now()
	err := withConflictRetry(ctx, "prune audit events", func() error {
		res, err := db.conn.ExecContext(ctx,
			`DELETE FROM audit_events WHERE event_time < ?`, olderThan)
		if err != nil {
			return err
		}
		pruned, err = res.RowsAffected()
		return err
	})
	metrics.RecordDBQuery("delete", "audit_events", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit events: %w", err)
	}
	return pruned, nil
}
