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
	"strings"
	"time"

	"github.com/mototwist/mototwist/internal/metrics"
	"github.com/mototwist/mototwist/internal/models"
)

// ratingTable returns the rating table for a surface class. Only these
// two constants ever reach query text; user input never does.
func ratingTable(isPaved bool) string {
	if isPaved {
		return "paved_ratings"
	}
	return "unpaved_ratings"
}

// InsertPavedRating stores one rider's scoring of a paved twist and fills
// in the assigned ID. RatingDate defaults to today when zero. The caller
// validates criteria bounds and that the twist really is paved.
func (db *DB) InsertPavedRating(ctx context.Context, rating *models.PavedRating) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if rating.RatingDate.IsZero() {
		rating.RatingDate = time.Now().UTC()
	}

	start := time.Now()
	err := withConflictRetry(ctx, "insert paved rating", func() error {
		return db.conn.QueryRowContext(ctx,
			`INSERT INTO paved_ratings (twist_id, author_id, rating_date, traffic, scenery, pavement, twistyness, intensity)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 RETURNING id`,
			rating.TwistID, rating.AuthorID, rating.RatingDate,
			rating.Traffic, rating.Scenery, rating.Pavement, rating.Twistyness, rating.Intensity,
		).Scan(&rating.ID)
	})
	metrics.RecordDBQuery("insert", "paved_ratings", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to insert paved rating: %w", err)
	}
	return nil
}

// InsertUnpavedRating stores one rider's scoring of an unpaved twist and
// fills in the assigned ID. RatingDate defaults to today when zero.
func (db *DB) InsertUnpavedRating(ctx context.Context, rating *models.UnpavedRating) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if rating.RatingDate.IsZero() {
		rating.RatingDate = time.Now().UTC()
	}

	start := time.Now()
	err := withConflictRetry(ctx, "insert unpaved rating", func() error {
		return db.conn.QueryRowContext(ctx,
			`INSERT INTO unpaved_ratings (twist_id, author_id, rating_date, traffic, scenery, surface_consistency, technicality, flow)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 RETURNING id`,
			rating.TwistID, rating.AuthorID, rating.RatingDate,
			rating.Traffic, rating.Scenery, rating.SurfaceConsistency, rating.Technicality, rating.Flow,
		).Scan(&rating.ID)
	})
	metrics.RecordDBQuery("insert", "unpaved_ratings", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to insert unpaved rating: %w", err)
	}
	return nil
}

// ListRatings returns all ratings for a twist, newest first, shaped for
// display. CanDelete is resolved per row against the viewer (owners and
// admins may delete). The caller supplies the twist's surface class, which
// selects the table and criteria set.
func (db *DB) ListRatings(ctx context.Context, twistID int64, isPaved bool, viewer *models.User) (*models.RatingsResponse, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	table := ratingTable(isPaved)
	criteria := models.CriteriaFor(isPaved)

	columns := make([]string, len(criteria))
	for i, c := range criteria {
		columns[i] = "r." + c.Name
	}

	// LEFT JOIN so ratings outlive their author's account.
	query := fmt.Sprintf(
		`SELECT r.id, r.author_id, COALESCE(u.name, 'deleted rider') AS author_name, r.rating_date, %s
		 FROM %s r LEFT JOIN users u ON u.id = r.author_id
		 WHERE r.twist_id = ?
		 ORDER BY r.rating_date DESC, r.id DESC`,
		strings.Join(columns, ", "), table)

	start := time.Now()
	items, err := queryAndScan(ctx, db.conn, query, []interface{}{twistID},
		func(rows *sql.Rows) (models.RatingListItem, error) {
			var item models.RatingListItem
			var authorID string
			scores := make([]int, len(criteria))

			dest := []interface{}{&item.ID, &authorID, &item.AuthorName, &item.RatingDate}
			for i := range scores {
				dest = append(dest, &scores[i])
			}
			if err := rows.Scan(dest...); err != nil {
				return item, err
			}

			item.Criteria = make(map[string]int, len(criteria))
			for i, c := range criteria {
				item.Criteria[c.Name] = scores[i]
			}
			item.CanDelete = viewer != nil && viewer.CanDelete(authorID)
			return item, nil
		})
	metrics.RecordDBQuery("select", table, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings for twist %d: %w", twistID, err)
	}

	if items == nil {
		items = []models.RatingListItem{}
	}

	return &models.RatingsResponse{
		TwistID:  twistID,
		IsPaved:  isPaved,
		Ratings:  items,
		Criteria: criteria,
	}, nil
}

// RatingAuthorID returns the author of a rating for ownership checks.
// Returns ErrNotFound if no rating has the given id in the surface's table.
func (db *DB) RatingAuthorID(ctx context.Context, ratingID int64, isPaved bool) (string, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	table := ratingTable(isPaved)

	var authorID string
	start := time.Now()
	err := db.conn.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT author_id FROM %s WHERE id = ?`, table), ratingID,
	).Scan(&authorID)
	metrics.RecordDBQuery("select", table, time.Since(start), metricErr(err))
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("rating %d: %w", ratingID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get rating author %d: %w", ratingID, err)
	}
	return authorID, nil
}

// DeleteRating removes a rating. The twist id is part of the key so a
// rating can only be deleted through the twist it belongs to. Returns
// ErrNotFound when no row matches; ownership is the caller's concern.
func (db *DB) DeleteRating(ctx context.Context, twistID, ratingID int64, isPaved bool) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	table := ratingTable(isPaved)

	start := time.Now()
	err := withConflictRetry(ctx, "delete rating", func() error {
		res, err := db.conn.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE id = ? AND twist_id = ?`, table),
			ratingID, twistID)
		if err != nil {
			return fmt.Errorf("failed to delete rating: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("rating %d for twist %d: %w", ratingID, twistID, ErrNotFound)
		}
		return nil
	})
	metrics.RecordDBQuery("delete", table, time.Since(start), metricErr(err))
	return err
}

// CountRatings returns how many ratings a twist has in its surface's
// table. The delete endpoint reports the remaining count so clients can
// refresh their badge without a second request.
func (db *DB) CountRatings(ctx context.Context, twistID int64, isPaved bool) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	table := ratingTable(isPaved)

	var count int
	start := time.Now()
	err := db.conn.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE twist_id = ?`, table), twistID,
	).Scan(&count)
	metrics.RecordDBQuery("count", table, time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to count ratings for twist %d: %w", twistID, err)
	}
	return count, nil
}
