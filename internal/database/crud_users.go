// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mototwist/mototwist/internal/metrics"
	"github.com/mototwist/mototwist/internal/models"
)

const getUserColumns = `id, username, name, password_hash, role, created_at`

// CreateUser stores a new rider. A missing ID gets a fresh UUID and a
// missing role defaults to rider; the password must already be hashed.
// Returns ErrDuplicateUsername when the username is taken.
func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = models.RoleRider
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	start := time.Now()
	err := withConflictRetry(ctx, "create user", func() error {
		_, err := db.conn.ExecContext(ctx,
			`INSERT INTO users (id, username, name, password_hash, role, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			user.ID, user.Username, user.Name, user.PasswordHash, user.Role, user.CreatedAt)
		return err
	})
	if isUniqueViolation(err) {
		metrics.RecordDBQuery("insert", "users", time.Since(start), nil)
		return fmt.Errorf("username %q: %w", user.Username, ErrDuplicateUsername)
	}
	metrics.RecordDBQuery("insert", "users", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByID returns a user by UUID. Returns ErrNotFound if absent.
func (db *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return db.getUser(ctx, `SELECT `+getUserColumns+` FROM users WHERE id = ?`, id)
}

// GetUserByUsername returns a user by login name. Returns ErrNotFound if
// absent.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return db.getUser(ctx, `SELECT `+getUserColumns+` FROM users WHERE username = ?`, username)
}

func (db *DB) getUser(ctx context.Context, query string, key interface{}) (*models.User, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	stmt, err := db.stmt(ctx, query)
	if err != nil {
		return nil, err
	}

	var user models.User
	start := time.Now()
	err = stmt.QueryRowContext(ctx, key).Scan(
		&user.ID, &user.Username, &user.Name, &user.PasswordHash, &user.Role, &user.CreatedAt)
	metrics.RecordDBQuery("select", "users", time.Since(start), metricErr(err))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %v: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// ListUsers returns all users ordered by username. Password hashes ride
// along for in-process use and are excluded from JSON by the model.
func (db *DB) ListUsers(ctx context.Context) ([]models.User, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	users, err := queryAndScan(ctx, db.conn,
		`SELECT `+getUserColumns+` FROM users ORDER BY username`, nil,
		func(rows *sql.Rows) (models.User, error) {
			var u models.User
			err := rows.Scan(&u.ID, &u.Username, &u.Name, &u.PasswordHash, &u.Role, &u.CreatedAt)
			return u, err
		})
	metrics.RecordDBQuery("select", "users", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// CountUsers returns the total number of users. The auth bootstrap uses
// this to decide whether to create the initial admin.
func (db *DB) CountUsers(ctx context.Context) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var count int64
	start := time.Now()
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	metrics.RecordDBQuery("count", "users", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// UpdateUserPassword replaces a user's password hash. Returns ErrNotFound
// if no user has the given id.
func (db *DB) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	err := withConflictRetry(ctx, "update user password", func() error {
		res, err := db.conn.ExecContext(ctx,
			`UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
		if err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil
	})
	metrics.RecordDBQuery("update", "users", time.Since(start), metricErr(err))
	return err
}

// UpdateUserRole changes a user's role. The caller is responsible for
// invalidating any cached authorization decisions for the user. Returns
// ErrNotFound if no user has the given id.
func (db *DB) UpdateUserRole(ctx context.Context, id, role string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if !models.IsValidRole(role) {
		return fmt.Errorf("invalid role %q", role)
	}

	start := time.Now()
	err := withConflictRetry(ctx, "update user role", func() error {
		res, err := db.conn.ExecContext(ctx,
			`UPDATE users SET role = ? WHERE id = ?`, role, id)
		if err != nil {
			return fmt.Errorf("failed to update role: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil
	})
	metrics.RecordDBQuery("update", "users", time.Since(start), metricErr(err))
	return err
}

// DeleteUser removes a user row. Twists and ratings authored by the user
// stay in the catalog, attributed to a deleted rider. Returns ErrNotFound
// if no user has the given id.
func (db *DB) DeleteUser(ctx context.Context, id string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	err := withConflictRetry(ctx, "delete user", func() error {
		res, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil
	})
	metrics.RecordDBQuery("delete", "users", time.Since(start), metricErr(err))
	return err
}
