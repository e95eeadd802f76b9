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

	"github.com/goccy/go-json"

	"github.com/mototwist/mototwist/internal/logging"
	"github.com/mototwist/mototwist/internal/metrics"
	"github.com/mototwist/mototwist/internal/models"
)

// defaultPageSize bounds catalog pages when the request carries none.
const defaultPageSize = 50

// TwistName is a minimal (id, name) projection used to seed the
// autocomplete index at startup.
type TwistName struct {
	ID   int64
	Name string
}

const getTwistQuery = `SELECT id, author_id, name, is_paved, waypoints, route_geometry, simplification_tolerance_m, created_at
FROM twists WHERE id = ?`

const getTwistGeometryQuery = `SELECT id, name, is_paved, waypoints, route_geometry
FROM twists WHERE id = ?`

// haversineFromFirstPoint computes great-circle meters from the request's
// center to a twist's first geometry point, directly in SQL so ORDER BY
// and LIMIT stay in the database. Parameters, in order: center lat,
// center lat, center lng. Requires the json extension for json_extract.
const haversineFromFirstPoint = `2.0 * 6371000.0 * asin(sqrt(
	pow(sin(radians(CAST(json_extract(t.route_geometry, '$[0].lat') AS DOUBLE) - ?) / 2.0), 2)
	+ cos(radians(?)) * cos(radians(CAST(json_extract(t.route_geometry, '$[0].lat') AS DOUBLE)))
	* pow(sin(radians(CAST(json_extract(t.route_geometry, '$[0].lng') AS DOUBLE) - ?) / 2.0), 2)
))`

// InsertTwist stores a new twist and fills in its assigned ID and creation
// time. Waypoints and geometry are serialized to the JSON columns here;
// callers pass fully validated, snapped, simplified data.
func (db *DB) InsertTwist(ctx context.Context, twist *models.Twist) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	waypointsJSON, err := json.Marshal(twist.Waypoints)
	if err != nil {
		return fmt.Errorf("failed to marshal waypoints: %w", err)
	}
	geometryJSON, err := json.Marshal(twist.RouteGeometry)
	if err != nil {
		return fmt.Errorf("failed to marshal route geometry: %w", err)
	}

	if twist.CreatedAt.IsZero() {
		twist.CreatedAt = time.Now().UTC()
	}

	start := time.Now()
	err = withConflictRetry(ctx, "insert twist", func() error {
		return db.conn.QueryRowContext(ctx,
			`INSERT INTO twists (author_id, name, is_paved, waypoints, route_geometry, simplification_tolerance_m, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 RETURNING id`,
			twist.AuthorID, twist.Name, twist.IsPaved,
			string(waypointsJSON), string(geometryJSON),
			twist.SimplificationToleranceM, twist.CreatedAt,
		).Scan(&twist.ID)
	})
	metrics.RecordDBQuery("insert", "twists", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to insert twist: %w", err)
	}
	return nil
}

// GetTwist returns a full twist row including waypoints and geometry.
// Returns ErrNotFound if no twist has the given id.
func (db *DB) GetTwist(ctx context.Context, id int64) (*models.Twist, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	stmt, err := db.stmt(ctx, getTwistQuery)
	if err != nil {
		return nil, err
	}

	var twist models.Twist
	var waypointsJSON, geometryJSON string

	start := time.Now()
	err = stmt.QueryRowContext(ctx, id).Scan(
		&twist.ID, &twist.AuthorID, &twist.Name, &twist.IsPaved,
		&waypointsJSON, &geometryJSON,
		&twist.SimplificationToleranceM, &twist.CreatedAt,
	)
	metrics.RecordDBQuery("select", "twists", time.Since(start), metricErr(err))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("twist %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get twist %d: %w", id, err)
	}

	if err := json.Unmarshal([]byte(waypointsJSON), &twist.Waypoints); err != nil {
		return nil, fmt.Errorf("failed to unmarshal waypoints for twist %d: %w", id, err)
	}
	if err := json.Unmarshal([]byte(geometryJSON), &twist.RouteGeometry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal route geometry for twist %d: %w", id, err)
	}
	return &twist, nil
}

// GetTwistGeometry returns the map-drawing payload for a twist: the
// polyline plus named markers. Returns ErrNotFound if no twist has the
// given id.
func (db *DB) GetTwistGeometry(ctx context.Context, id int64) (*models.TwistGeometry, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	stmt, err := db.stmt(ctx, getTwistGeometryQuery)
	if err != nil {
		return nil, err
	}

	var geom models.TwistGeometry
	var waypointsJSON, geometryJSON string

	start := time.Now()
	err = stmt.QueryRowContext(ctx, id).Scan(&geom.ID, &geom.Name, &geom.IsPaved, &waypointsJSON, &geometryJSON)
	metrics.RecordDBQuery("select", "twists", time.Since(start), metricErr(err))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("twist %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get twist geometry %d: %w", id, err)
	}

	if err := json.Unmarshal([]byte(waypointsJSON), &geom.Waypoints); err != nil {
		return nil, fmt.Errorf("failed to unmarshal waypoints for twist %d: %w", id, err)
	}
	if err := json.Unmarshal([]byte(geometryJSON), &geom.RouteGeometry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal route geometry for twist %d: %w", id, err)
	}
	return &geom, nil
}

// TwistAuthorID returns the author of a twist for ownership checks.
// Returns ErrNotFound if no twist has the given id.
func (db *DB) TwistAuthorID(ctx context.Context, id int64) (string, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	stmt, err := db.stmt(ctx, `SELECT author_id FROM twists WHERE id = ?`)
	if err != nil {
		return "", err
	}

	var authorID string
	start := time.Now()
	err = stmt.QueryRowContext(ctx, id).Scan(&authorID)
	metrics.RecordDBQuery("select", "twists", time.Since(start), metricErr(err))
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("twist %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get twist author %d: %w", id, err)
	}
	return authorID, nil
}

// TwistIsPaved returns the surface class of a twist, which selects the
// rating table and criteria set. Returns ErrNotFound if no twist has the
// given id.
func (db *DB) TwistIsPaved(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	stmt, err := db.stmt(ctx, `SELECT is_paved FROM twists WHERE id = ?`)
	if err != nil {
		return false, err
	}

	var isPaved bool
	start := time.Now()
	err = stmt.QueryRowContext(ctx, id).Scan(&isPaved)
	metrics.RecordDBQuery("select", "twists", time.Since(start), metricErr(err))
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("twist %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("failed to get twist surface %d: %w", id, err)
	}
	return isPaved, nil
}

// DeleteTwist removes a twist and all its ratings in one transaction.
// DuckDB has no cascading deletes, so the rating tables are cleared
// explicitly. Returns ErrNotFound if no twist has the given id; ownership
// is the caller's concern.
func (db *DB) DeleteTwist(ctx context.Context, id int64) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	err := withConflictRetry(ctx, "delete twist", func() error {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `DELETE FROM paved_ratings WHERE twist_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete paved ratings: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM unpaved_ratings WHERE twist_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete unpaved ratings: %w", err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM twists WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete twist: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("twist %d: %w", id, ErrNotFound)
		}

		return tx.Commit()
	})
	metrics.RecordDBQuery("delete", "twists", time.Since(start), metricErr(err))
	return err
}

// ListTwists returns one catalog page matching the filter, resolved for
// the given viewer (nil for anonymous callers). Visibility flags come from
// filter.VisibleIDs; distance ordering activates when filter.Center is set
// and the json extension is available, otherwise rows order by name.
func (db *DB) ListTwists(ctx context.Context, filter models.TwistFilter, viewer *models.User) (*models.TwistsResponse, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	where, whereArgs := buildTwistFilters(filter, viewer)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	var total int
	start := time.Now()
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM twists t"+where, whereArgs...).Scan(&total)
	metrics.RecordDBQuery("count", "twists", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to count twists: %w", err)
	}

	distanceExpr := "CAST(NULL AS DOUBLE)"
	var distanceArgs []interface{}
	orderBy := " ORDER BY t.name ASC"
	if filter.Center != nil {
		if db.jsonAvailable {
			distanceExpr = haversineFromFirstPoint
			distanceArgs = []interface{}{filter.Center.Lat, filter.Center.Lat, filter.Center.Lng}
			orderBy = " ORDER BY distance_m ASC NULLS LAST, t.name ASC"
		} else {
			logging.Warn().Msg("Distance ordering requested but json extension unavailable, ordering by name")
		}
	}

	// LEFT JOIN so twists outlive their author's account.
	query := "SELECT t.id, t.name, t.is_paved, t.author_id, COALESCE(u.name, 'deleted rider') AS author_name, " +
		distanceExpr + " AS distance_m" +
		" FROM twists t LEFT JOIN users u ON u.id = t.author_id" +
		where + orderBy + " LIMIT ? OFFSET ?"

	args := make([]interface{}, 0, len(distanceArgs)+len(whereArgs)+2)
	args = append(args, distanceArgs...)
	args = append(args, whereArgs...)
	args = append(args, pageSize, (page-1)*pageSize)

	start = time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("select", "twists", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list twists: %w", err)
	}
	defer rows.Close()

	visible := make(map[int64]struct{}, len(filter.VisibleIDs))
	for _, id := range filter.VisibleIDs {
		visible[id] = struct{}{}
	}

	items := make([]models.TwistListItem, 0, pageSize)
	for rows.Next() {
		var item models.TwistListItem
		var authorID string
		var distance sql.NullFloat64
		if err := rows.Scan(&item.ID, &item.Name, &item.IsPaved, &authorID, &item.AuthorName, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan twist row: %w", err)
		}
		item.ViewerIsAuthor = viewer != nil && viewer.ID == authorID
		_, item.Visible = visible[item.ID]
		if distance.Valid {
			d := distance.Float64
			item.DistanceM = &d
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate twist rows: %w", err)
	}

	return &models.TwistsResponse{
		Twists: items,
		Pagination: models.PaginationInfo{
			Page:       page,
			PageSize:   pageSize,
			TotalCount: total,
			HasMore:    page*pageSize < total,
		},
	}, nil
}

// buildTwistFilters renders the WHERE clause for the catalog listing and
// count queries. The returned clause is empty or starts with " WHERE".
func buildTwistFilters(filter models.TwistFilter, viewer *models.User) (string, []interface{}) {
	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 8)

	if filter.Search != "" {
		conditions = append(conditions, `t.name ILIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(filter.Search)+"%")
	}

	if filter.Ownership == models.OwnershipOwn {
		if viewer == nil {
			// Anonymous callers own nothing.
			conditions = append(conditions, "1 = 0")
		} else {
			conditions = append(conditions, "t.author_id = ?")
			args = append(args, viewer.ID)
		}
	}

	switch filter.Rated {
	case models.RatedRated:
		if viewer == nil {
			// Anonymous callers have rated nothing.
			conditions = append(conditions, "1 = 0")
		} else {
			conditions = append(conditions,
				`(EXISTS (SELECT 1 FROM paved_ratings pr WHERE pr.twist_id = t.id AND pr.author_id = ?)`+
					` OR EXISTS (SELECT 1 FROM unpaved_ratings ur WHERE ur.twist_id = t.id AND ur.author_id = ?))`)
			args = append(args, viewer.ID, viewer.ID)
		}
	case models.RatedUnrated:
		// For anonymous callers every twist counts as unrated, so the
		// filter only applies to authenticated viewers.
		if viewer != nil {
			conditions = append(conditions,
				`(NOT EXISTS (SELECT 1 FROM paved_ratings pr WHERE pr.twist_id = t.id AND pr.author_id = ?)`+
					` AND NOT EXISTS (SELECT 1 FROM unpaved_ratings ur WHERE ur.twist_id = t.id AND ur.author_id = ?))`)
			args = append(args, viewer.ID, viewer.ID)
		}
	}

	// Visibility filtering only applies when the caller has a stored
	// visible-set at all; VisibleIDs == nil means no set, no filter.
	if filter.VisibleIDs != nil {
		switch filter.Visibility {
		case models.VisibilityVisible:
			if len(filter.VisibleIDs) == 0 {
				conditions = append(conditions, "1 = 0")
			} else {
				conditions = append(conditions, fmt.Sprintf("t.id IN (%s)", placeholders(len(filter.VisibleIDs))))
				for _, id := range filter.VisibleIDs {
					args = append(args, id)
				}
			}
		case models.VisibilityHidden:
			if len(filter.VisibleIDs) > 0 {
				conditions = append(conditions, fmt.Sprintf("t.id NOT IN (%s)", placeholders(len(filter.VisibleIDs))))
				for _, id := range filter.VisibleIDs {
					args = append(args, id)
				}
			}
		}
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// TwistNames returns every twist's id and name, ordered by name, for
// seeding the suggestion index.
func (db *DB) TwistNames(ctx context.Context) ([]TwistName, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	names, err := queryAndScan(ctx, db.conn, `SELECT id, name FROM twists ORDER BY name`, nil,
		func(rows *sql.Rows) (TwistName, error) {
			var tn TwistName
			err := rows.Scan(&tn.ID, &tn.Name)
			return tn, err
		})
	metrics.RecordDBQuery("select", "twists", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list twist names: %w", err)
	}
	return names, nil
}
