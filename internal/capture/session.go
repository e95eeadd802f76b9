// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mototwist/mototwist/internal/logging"
	"github.com/mototwist/mototwist/internal/metrics"
	"github.com/mototwist/mototwist/internal/models"
	"github.com/mototwist/mototwist/internal/routing"
)

// Session is one rider's in-progress route capture. All methods are safe
// for concurrent callers; routing results are applied under the session
// mutex only if their request was not superseded in the meantime.
type Session struct {
	userID string

	router   routing.Router
	notifier Notifier
	view     View

	mu        sync.Mutex
	state     State
	waypoints []Waypoint
	geometry  []models.LatLng
	cancelFn  context.CancelFunc // cancels the in-flight routing request
	seq       uint64             // issued routing requests, observability only
}

// AddWaypoint appends a waypoint at the clicked coordinate (empty name,
// not suppressed) and triggers a geometry recompute.
func (s *Session) AddWaypoint(ctx context.Context, lat, lng float64) (Snapshot, error) {
	if !(models.LatLng{Lat: lat, Lng: lng}).Valid() {
		return Snapshot{}, fmt.Errorf("%w: (%f, %f)", ErrInvalidCoordinate, lat, lng)
	}

	s.mu.Lock()
	if s.state != StateCapturing {
		s.mu.Unlock()
		return Snapshot{}, ErrNotCapturing
	}
	s.waypoints = append(s.waypoints, Waypoint{Lat: lat, Lng: lng})
	s.updateGeometryLocked(ctx)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.pushView(snap)
	return snap, nil
}

// MoveWaypoint updates the coordinate of the waypoint at index (marker
// drag) and triggers a geometry recompute.
func (s *Session) MoveWaypoint(ctx context.Context, index int, lat, lng float64) (Snapshot, error) {
	if !(models.LatLng{Lat: lat, Lng: lng}).Valid() {
		return Snapshot{}, fmt.Errorf("%w: (%f, %f)", ErrInvalidCoordinate, lat, lng)
	}

	s.mu.Lock()
	if s.state != StateCapturing {
		s.mu.Unlock()
		return Snapshot{}, ErrNotCapturing
	}
	if index < 0 || index >= len(s.waypoints) {
		s.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: %d", ErrWaypointIndex, index)
	}
	s.waypoints[index].Lat = lat
	s.waypoints[index].Lng = lng
	s.updateGeometryLocked(ctx)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.pushView(snap)
	return snap, nil
}

// UpdateWaypoint sets the name and suppressed flag of the waypoint at
// index (marker popup edit). A pure local mutation: geometry depends only
// on coordinates, so no recompute is triggered.
func (s *Session) UpdateWaypoint(index int, name string, suppressed bool) (Snapshot, error) {
	s.mu.Lock()
	if s.state != StateCapturing {
		s.mu.Unlock()
		return Snapshot{}, ErrNotCapturing
	}
	if index < 0 || index >= len(s.waypoints) {
		s.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: %d", ErrWaypointIndex, index)
	}
	s.waypoints[index].Name = name
	s.waypoints[index].Suppressed = suppressed
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.pushView(snap)
	return snap, nil
}

// RemoveWaypoint deletes the waypoint at index and triggers a geometry
// recompute.
func (s *Session) RemoveWaypoint(ctx context.Context, index int) (Snapshot, error) {
	s.mu.Lock()
	if s.state != StateCapturing {
		s.mu.Unlock()
		return Snapshot{}, ErrNotCapturing
	}
	if index < 0 || index >= len(s.waypoints) {
		s.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: %d", ErrWaypointIndex, index)
	}
	s.waypoints = append(s.waypoints[:index], s.waypoints[index+1:]...)
	s.updateGeometryLocked(ctx)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.pushView(snap)
	return snap, nil
}

// Finalize moves the session to the finalized state. It requires at least
// 2 waypoints and a computed geometry; otherwise the session stays
// capturing and ErrNoValidRoute is returned. The second return value
// counts non-suppressed waypoints without a name, which is a warning for
// the rider but never blocks.
func (s *Session) Finalize() (Snapshot, int, error) {
	s.mu.Lock()
	if s.state != StateCapturing {
		s.mu.Unlock()
		return Snapshot{}, 0, ErrNotCapturing
	}
	if len(s.waypoints) < 2 || len(s.geometry) == 0 {
		s.mu.Unlock()
		return Snapshot{}, 0, ErrNoValidRoute
	}

	unnamed := 0
	for _, wp := range s.waypoints {
		if !wp.Suppressed && wp.Name == "" {
			unnamed++
		}
	}

	// A recompute still in flight can no longer render; the payload is the
	// last drawn geometry.
	if s.cancelFn != nil {
		s.cancelFn()
		s.cancelFn = nil
	}

	s.state = StateFinalized
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.pushView(snap)
	return snap, unnamed, nil
}

// Payload returns the finalized capture result for the twist create path.
func (s *Session) Payload() (Payload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateFinalized {
		return Payload{}, ErrNotFinalized
	}

	waypoints := make([]models.Waypoint, 0, len(s.waypoints))
	for _, wp := range s.waypoints {
		if wp.Suppressed {
			continue
		}
		waypoints = append(waypoints, models.Waypoint{Lat: wp.Lat, Lng: wp.Lng, Name: wp.Name})
	}

	geometry := make([]models.LatLng, len(s.geometry))
	copy(geometry, s.geometry)

	return Payload{Waypoints: waypoints, RouteGeometry: geometry}, nil
}

// Snapshot returns a point-in-time copy of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// end aborts any in-flight routing request, clears all waypoint and
// geometry state and marks the session cancelled. Reports whether the
// session was still capturing when ended.
func (s *Session) end() (bool, Snapshot) {
	s.mu.Lock()
	wasCapturing := s.state == StateCapturing
	if s.cancelFn != nil {
		s.cancelFn()
		s.cancelFn = nil
	}
	s.state = StateCancelled
	s.waypoints = nil
	s.geometry = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	return wasCapturing, snap
}

// updateGeometryLocked re-derives the geometry for the current waypoint
// sequence. Replace-on-latest: the previous in-flight request is cancelled
// before a new one is issued, so at most one outstanding result can ever
// apply. With fewer than 2 waypoints no request is issued and the drawn
// geometry is cleared. Caller holds s.mu.
func (s *Session) updateGeometryLocked(ctx context.Context) {
	if s.cancelFn != nil {
		s.cancelFn()
		s.cancelFn = nil
	}

	if len(s.waypoints) < 2 {
		s.geometry = nil
		metrics.RecordCaptureGeometryUpdate("skipped")
		return
	}

	coords := make([]models.LatLng, len(s.waypoints))
	for i, wp := range s.waypoints {
		coords[i] = models.LatLng{Lat: wp.Lat, Lng: wp.Lng}
	}

	s.seq++

	// The request must outlive the HTTP handler that triggered it; only
	// the session's own cancel ends it early.
	reqCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelFn = cancel

	go s.routeAndApply(reqCtx, s.seq, coords)
}

// routeAndApply runs one routing request and applies its result unless the
// request was superseded while in flight. A cancelled request's response or
// error is discarded silently; a genuine failure notifies the rider and
// leaves the last drawn geometry untouched.
func (s *Session) routeAndApply(ctx context.Context, seq uint64, coords []models.LatLng) {
	geometry, err := s.router.Route(ctx, coords)

	s.mu.Lock()

	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		s.mu.Unlock()
		metrics.RecordCaptureGeometryUpdate("superseded")
		return
	}

	// Not superseded, so the registered cancel func is still this
	// request's own; the request is over either way.
	if s.cancelFn != nil {
		s.cancelFn()
		s.cancelFn = nil
	}

	if err != nil {
		s.mu.Unlock()
		metrics.RecordCaptureGeometryUpdate("failed")
		logging.Warn().
			Err(err).
			Str("user_id", s.userID).
			Uint64("seq", seq).
			Int("waypoints", len(coords)).
			Msg("Capture geometry update failed")
		s.notify("error", routingFailureMessage(err))
		return
	}

	s.geometry = geometry
	snap := s.snapshotLocked()
	s.mu.Unlock()

	metrics.RecordCaptureGeometryUpdate("applied")
	s.pushView(snap)
}

func (s *Session) snapshotLocked() Snapshot {
	waypoints := make([]Waypoint, len(s.waypoints))
	copy(waypoints, s.waypoints)
	geometry := make([]models.LatLng, len(s.geometry))
	copy(geometry, s.geometry)

	return Snapshot{
		State:     s.state,
		Waypoints: waypoints,
		Geometry:  geometry,
		Seq:       s.seq,
	}
}

func (s *Session) pushView(snap Snapshot) {
	if s.view != nil {
		s.view.CaptureUpdate(s.userID, snap)
	}
}

func (s *Session) notify(level, message string) {
	if s.notifier != nil {
		s.notifier.Notify(s.userID, level, message)
	}
}

func routingFailureMessage(err error) string {
	if errors.Is(err, routing.ErrNoRoute) {
		return "No route found between the waypoints"
	}
	return "Route calculation failed"
}
