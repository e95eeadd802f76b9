// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package capture

import (
	"errors"

	"github.com/mototwist/mototwist/internal/models"
)

// State is a capture session lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateCapturing State = "capturing"
	StateFinalized State = "finalized"
	StateCancelled State = "cancelled"
)

// Session state errors. Handlers map these onto CAPTURE_ERROR responses.
var (
	// ErrNotCapturing is returned by operations that require an active
	// capture session.
	ErrNotCapturing = errors.New("no capture session in progress")

	// ErrAlreadyCapturing is returned by Start while a session is active.
	ErrAlreadyCapturing = errors.New("a capture session is already in progress")

	// ErrNoValidRoute is returned by Finalize when the session holds fewer
	// than 2 waypoints or no computed geometry.
	ErrNoValidRoute = errors.New("no valid route")

	// ErrNotFinalized is returned by Payload before a successful Finalize.
	ErrNotFinalized = errors.New("capture session is not finalized")

	// ErrWaypointIndex is returned for out-of-range waypoint indexes.
	ErrWaypointIndex = errors.New("waypoint index out of range")

	// ErrInvalidCoordinate is returned for coordinates outside WGS84 bounds.
	ErrInvalidCoordinate = errors.New("coordinate out of WGS84 bounds")
)

// Waypoint is a capture-session waypoint. Unlike the persisted
// models.Waypoint it carries the suppressed flag: a suppressed waypoint
// still constrains the routing call (it shapes the road-snapped line) but
// is excluded from the finalized payload. Suppression is explicit, never
// inferred from an empty name.
type Waypoint struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Name       string  `json:"name"`
	Suppressed bool    `json:"suppressed"`
}

// Snapshot is a point-in-time copy of a session, served by the capture
// status endpoint and pushed to the rider's map page after every change.
// Seq counts issued routing requests and exists for observability only.
type Snapshot struct {
	State     State           `json:"state"`
	Waypoints []Waypoint      `json:"waypoints"`
	Geometry  []models.LatLng `json:"geometry"`
	Seq       uint64          `json:"seq"`
}

// Payload is the finalized capture result the twist create handler merges
// into the incoming request body: waypoints with suppressed entries
// excluded, plus the computed route geometry.
type Payload struct {
	Waypoints     []models.Waypoint `json:"waypoints"`
	RouteGeometry []models.LatLng   `json:"route_geometry"`
}

// Notifier delivers transient user-facing notices for failures that happen
// after the triggering HTTP request has already been answered.
type Notifier interface {
	Notify(userID, level, message string)
}

// View receives capture session snapshots destined for the rider's map
// page. Implementations must not block; the session calls it from both
// request handlers and routing-response goroutines.
type View interface {
	CaptureUpdate(userID string, snap Snapshot)
}

func idleSnapshot() Snapshot {
	return Snapshot{
		State:     StateIdle,
		Waypoints: []Waypoint{},
		Geometry:  []models.LatLng{},
	}
}
