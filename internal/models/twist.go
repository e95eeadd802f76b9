// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package models

import (
	"fmt"
	"time"
)

// LatLng is a WGS84 coordinate pair. The field order (lat, lng) is the
// canonical order everywhere inside MotoTwist; only the OSRM wire format
// uses (lng, lat), and the routing client reorders at that boundary.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate lies within WGS84 bounds.
func (c LatLng) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Waypoint is a named point along a Twist. Waypoints persisted with a Twist
// are always the non-suppressed subset captured during route creation;
// suppression itself is a capture-session concept and never stored.
type Waypoint struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Name string  `json:"name"`
}

// LatLng returns the waypoint's coordinate pair.
func (w Waypoint) LatLng() LatLng {
	return LatLng{Lat: w.Lat, Lng: w.Lng}
}

// Twist represents a stored motorcycle route: an ordered set of named
// waypoints plus the simplified road geometry connecting them.
//
// Fields:
//   - ID: Sequence-assigned identifier (stable across renames)
//   - AuthorID: UUID of the user who created the Twist
//   - Name: Display name (unique per author not enforced; free text)
//   - IsPaved: Road surface class; selects the rating criteria set
//   - Waypoints: Non-suppressed named points, snapped onto the geometry
//   - RouteGeometry: Simplified polyline of the riding line
//   - SimplificationToleranceM: Douglas-Peucker tolerance (meters) that was
//     applied to RouteGeometry at creation time, kept for provenance
//   - CreatedAt: Row insertion timestamp
//
// Waypoints and RouteGeometry are stored as JSON columns; DuckDB holds them
// as serialized text and the database layer round-trips them through
// goccy/go-json.
type Twist struct {
	ID                       int64      `json:"id"`
	AuthorID                 string     `json:"author_id"`
	Name                     string     `json:"name"`
	IsPaved                  bool       `json:"is_paved"`
	Waypoints                []Waypoint `json:"waypoints"`
	RouteGeometry            []LatLng   `json:"route_geometry"`
	SimplificationToleranceM float64    `json:"simplification_tolerance_m"`
	CreatedAt                time.Time  `json:"created_at"`
}

// String implements fmt.Stringer for log lines.
func (t *Twist) String() string {
	surface := "Paved"
	if !t.IsPaved {
		surface = "Unpaved"
	}
	return fmt.Sprintf("[%d] %s (%s)", t.ID, t.Name, surface)
}

// TwistGeometry is the payload served by GET /api/v1/twists/{id}/geometry.
// It is the exact data a map client needs to draw the route layer: the
// polyline plus the named markers. Consumers cache this per Twist ID and
// fetch it at most once per layer lifetime.
type TwistGeometry struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	IsPaved       bool       `json:"is_paved"`
	Waypoints     []Waypoint `json:"waypoints"`
	RouteGeometry []LatLng   `json:"route_geometry"`
}

// TwistListItem is a single row in the catalog listing. ViewerIsAuthor is
// computed per request against the authenticated user so clients can show
// owner-only controls without a second round trip.
type TwistListItem struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	IsPaved        bool   `json:"is_paved"`
	AuthorName     string `json:"author_name"`
	ViewerIsAuthor bool   `json:"viewer_is_author"`
	Visible        bool   `json:"visible"`
	// DistanceM is the haversine distance in meters from the requested map
	// center to the Twist's first geometry point. Present only when the
	// list request carried center coordinates.
	DistanceM *float64 `json:"distance_m,omitempty"`
}

// TwistsResponse wraps a catalog page with pagination metadata.
type TwistsResponse struct {
	Twists     []TwistListItem `json:"twists"`
	Pagination PaginationInfo  `json:"pagination"`
}

// Ownership filter values for the catalog listing.
const (
	OwnershipAll = "all"
	OwnershipOwn = "own"
)

// Rated filter values for the catalog listing.
const (
	RatedAll     = "all"
	RatedRated   = "rated"
	RatedUnrated = "unrated"
)

// Visibility filter values for the catalog listing. Visibility is resolved
// server-side against the caller's persisted visible-set.
const (
	VisibilityAll     = "all"
	VisibilityVisible = "visible"
	VisibilityHidden  = "hidden"
)

// TwistFilter carries the catalog listing filters after request validation.
// Zero values mean "no filtering" except Ownership/Rated/Visibility which
// default to their *All constants.
type TwistFilter struct {
	Search     string
	Ownership  string
	Rated      string
	Visibility string

	// VisibleIDs is the caller's visible-set, resolved from the visibility
	// store before the query runs. Nil means the caller has no stored set.
	VisibleIDs []int64

	// Center enables distance-from-map-center ordering when non-nil.
	Center *LatLng

	Page     int
	PageSize int
}
