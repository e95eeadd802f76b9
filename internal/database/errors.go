// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mototwist/mototwist/internal/logging"
)

// Sentinel errors returned by CRUD operations. Handlers translate these
// into HTTP status codes, so they must survive error wrapping (errors.Is).
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateUsername indicates a username collision on user creation.
	ErrDuplicateUsername = errors.New("username already taken")
)

// closeWithLog closes a resource and logs any error. Use this for cleanup
// operations where errors should be acknowledged but not fail the operation.
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}

// closeQuietly closes a resource and explicitly ignores any error.
// Use this in error paths where Close() errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close() // Explicitly ignore error - cleanup is best-effort
	}
}

// isTransactionConflict checks if an error is a DuckDB optimistic
// concurrency conflict. These are expected under concurrent writes and
// safe to retry.
func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "Transaction conflict") ||
		strings.Contains(errStr, "Conflict on update") ||
		strings.Contains(errStr, "cannot update a table that has been altered")
}

// isInternalError checks if an error is a DuckDB INTERNAL error. These
// indicate engine bugs and must never be retried.
func isInternalError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "INTERNAL Error")
}

// isUniqueViolation checks if an error is a DuckDB unique constraint
// violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "Duplicate key") ||
		strings.Contains(errStr, "violates unique constraint")
}

// maxWriteRetries bounds the retry loop for conflicting writes.
const maxWriteRetries = 3

// withConflictRetry runs a write operation, retrying transaction conflicts
// with exponential backoff (1ms, 2ms, 4ms). INTERNAL errors fail
// immediately, as do context cancellation and every other error class.
func withConflictRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if ctx.Err() != nil {
			return fmt.Errorf("operation timed out or canceled: %w", ctx.Err())
		}

		if isInternalError(err) {
			return fmt.Errorf("FATAL: DuckDB internal error during %s: %w", op, err)
		}

		if isTransactionConflict(err) {
			if attempt < maxWriteRetries-1 {
				backoff := time.Millisecond * time.Duration(1<<uint(attempt))
				select {
				case <-time.After(backoff):
					continue
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			continue
		}

		// Other errors (constraint violations, database closed, ...) are
		// not retryable.
		return err
	}

	return fmt.Errorf("%s: max retries exceeded: %w", op, lastErr)
}
