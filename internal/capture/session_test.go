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
	"sync/atomic"
	"testing"
	"time"

	"github.com/mototwist/mototwist/internal/models"
	"github.com/mototwist/mototwist/internal/routing"
)

const testRider = "rider-1"

// fakeRouter counts calls and delegates to fn; without fn it echoes the
// waypoint coordinates back as the geometry.
type fakeRouter struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, coords []models.LatLng) ([]models.LatLng, error)
}

func (f *fakeRouter) Route(ctx context.Context, coords []models.LatLng) ([]models.LatLng, error) {
	f.mu.Lock()
	f.calls++
	fn := f.fn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, coords)
	}
	return echo(coords), nil
}

func (f *fakeRouter) Ping(ctx context.Context) error { return nil }

func (f *fakeRouter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func echo(coords []models.LatLng) []models.LatLng {
	out := make([]models.LatLng, len(coords))
	copy(out, coords)
	return out
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (f *fakeNotifier) Notify(userID, level, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, level+": "+message)
}

func (f *fakeNotifier) Messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.msgs...)
}

type fakeView struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (f *fakeView) CaptureUpdate(userID string, snap Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps = append(f.snaps, snap)
}

func (f *fakeView) Last() (Snapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.snaps) == 0 {
		return Snapshot{}, false
	}
	return f.snaps[len(f.snaps)-1], true
}

func newTestManager(t *testing.T, router routing.Router) (*Manager, *fakeNotifier, *fakeView) {
	t.Helper()

	notifier := &fakeNotifier{}
	view := &fakeView{}
	return NewManager(router, notifier, view, time.Minute), notifier, view
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStartLifecycle(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeRouter{})
	ctx := context.Background()

	if snap := m.Snapshot(testRider); snap.State != StateIdle {
		t.Errorf("initial state = %q, want %q", snap.State, StateIdle)
	}

	snap, err := m.Start(ctx, testRider)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if snap.State != StateCapturing {
		t.Errorf("state after Start = %q, want %q", snap.State, StateCapturing)
	}
	if len(snap.Waypoints) != 0 || len(snap.Geometry) != 0 {
		t.Errorf("Start did not clear residue: %d waypoints, %d geometry points",
			len(snap.Waypoints), len(snap.Geometry))
	}

	if _, err := m.Start(ctx, testRider); !errors.Is(err, ErrAlreadyCapturing) {
		t.Errorf("second Start error = %v, want ErrAlreadyCapturing", err)
	}
}

func TestOperationsRequireSession(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeRouter{})
	ctx := context.Background()

	ops := []struct {
		name string
		fn   func() error
	}{
		{"AddWaypoint", func() error { _, err := m.AddWaypoint(ctx, testRider, 48, 16); return err }},
		{"MoveWaypoint", func() error { _, err := m.MoveWaypoint(ctx, testRider, 0, 48, 16); return err }},
		{"UpdateWaypoint", func() error { _, err := m.UpdateWaypoint(testRider, 0, "x", false); return err }},
		{"RemoveWaypoint", func() error { _, err := m.RemoveWaypoint(ctx, testRider, 0); return err }},
		{"Finalize", func() error { _, _, err := m.Finalize(testRider); return err }},
		{"Payload", func() error { _, err := m.Payload(testRider); return err }},
	}

	for _, op := range ops {
		t.Run(op.name, func(t *testing.T) {
			if err := op.fn(); !errors.Is(err, ErrNotCapturing) {
				t.Errorf("error = %v, want ErrNotCapturing", err)
			}
		})
	}
}

func TestSingleWaypointSkipsRouting(t *testing.T) {
	router := &fakeRouter{}
	m, _, _ := newTestManager(t, router)
	ctx := context.Background()

	if _, err := m.Start(ctx, testRider); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	snap, err := m.AddWaypoint(ctx, testRider, 48.0, 16.0)
	if err != nil {
		t.Fatalf("AddWaypoint failed: %v", err)
	}

	if len(snap.Waypoints) != 1 {
		t.Errorf("waypoints = %d, want 1", len(snap.Waypoints))
	}
	if len(snap.Geometry) != 0 {
		t.Errorf("geometry = %v, want empty with a single waypoint", snap.Geometry)
	}
	if snap.Seq != 0 {
		t.Errorf("seq = %d, want 0 (no routing request issued)", snap.Seq)
	}
	if router.Calls() != 0 {
		t.Errorf("router calls = %d, want 0", router.Calls())
	}
}

func TestGeometryComputedAtTwoWaypoints(t *testing.T) {
	router := &fakeRouter{}
	m, _, _ := newTestManager(t, router)
	ctx := context.Background()

	if _, err := m.Start(ctx, testRider); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := m.AddWaypoint(ctx, testRider, 48.0, 16.0); err != nil {
		t.Fatalf("AddWaypoint failed: %v", err)
	}
	snap, err := m.AddWaypoint(ctx, testRider, 48.1, 16.1)
	if err != nil {
		t.Fatalf("AddWaypoint failed: %v", err)
	}
	if snap.Seq != 1 {
		t.Errorf("seq = %d, want 1 after first routing request", snap.Seq)
	}

	waitFor(t, "geometry to apply", func() bool {
		return len(m.Snapshot(testRider).Geometry) == 2
	})

	got := m.Snapshot(testRider).Geometry
	want := []models.LatLng{{Lat: 48.0, Lng: 16.0}, {Lat: 48.1, Lng: 16.1}}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("geometry[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if router.Calls() != 1 {
		t.Errorf("router calls = %d, want 1", router.Calls())
	}
}

func TestMoveWaypointRecomputes(t *testing.T) {
	router := &fakeRouter{}
	m, _, _ := newTestManager(t, router)
	ctx := context.Background()

	if _, err := m.Start(ctx, testRider); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := m.AddWaypoint(ctx, testRider, 48.0, 16.0); err != nil {
		t.Fatalf("AddWaypoint failed: %v", err)
	}
	if _, err := m.AddWaypoint(ctx, testRider, 48.1, 16.1); err != nil {
		t.Fatalf("AddWaypoint failed: %v", err)
	}
	waitFor(t, "initial geometry", func() bool {
		return len(m.Snapshot(testRider).Geometry) == 2
	})

	if _, err := m.MoveWaypoint(ctx, testRider, 0, 48.5, 16.5); err != nil {
		t.Fatalf("MoveWaypoint failed: %v", err)
	}
	waitFor(t, "moved geometry", func() bool {
		geo := m.Snapshot(testRider).Geometry
		return len(geo) == 2 && geo[0].Lat == 48.5
	})

	if _, err := m.MoveWaypoint(ctx, testRider, 5, 48.0, 16.0); !errors.Is(err, ErrWaypointIndex) {
		t.Errorf("MoveWaypoint(5) error = %v, want ErrWaypointIndex", err)
	}
}

func TestUpdateWaypointIsLocalOnly(t *testing.T) {
	router := &fakeRouter{}
	m, _, _ := newTestManager(t, router)
	ctx := context.Background()

	if _, err := m.Start(ctx, testRider); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := m.AddWaypoint(ctx, testRider, 48.0, 16.0); err != nil {
		t.Fatalf("AddWaypoint failed: %v", err)
	}
	if _, err := m.AddWaypoint(ctx, testRider, 48.1, 16.1); err != nil {
		t.Fatalf("AddWaypoint failed: %v", err)
	}
	waitFor(t, "geometry", func() bool {
		return len(m.Snapshot(testRider).Geometry) == 2
	})
	before := router.Calls()

	snap, err := m.UpdateWaypoint(testRider, 1, "Kalte Kuchl", true)
	if err != nil {
		t.Fatalf("UpdateWaypoint failed: %v", err)
	}
	if wp := snap.Waypoints[1]; wp.Name != "Kalte Kuchl" || !wp.Suppressed {
		t.Errorf("waypoint = %+v, want name and suppressed applied", wp)
	}
	if snap.Seq != 1 {
		t.Errorf("seq = %d, want unchanged 1", snap.Seq)
	}
	if got := router.Calls(); got != before {
		t.Errorf("router calls = %d, want %d (no recompute on popup edit)", got, before)
	}

	if _, err := m.UpdateWaypoint(testRider, 9, "x", false); !errors.Is(err, ErrWaypointIndex) {
		t.Errorf("UpdateWaypoint(9) error = %v, want ErrWaypointIndex", err)
	}
}

func TestRemoveWaypointBelowTwoClearsGeometry(t *testing.T) {
	router := &fakeRouter{}
	m, _, _ := newTestManager(t, router)
	ctx := context.Background()

	if _, err := m.Start(ctx, testRider); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := m.AddWaypoint(ctx, testRider, 48.0, 16.0); err != nil {
		t.Fatalf("AddWaypoint failed: %v", err)
	}
	if _, err := m.AddWaypoint(ctx, testRider, 48.1, 16.1); err != nil {
		t.Fatalf("AddWaypoint failed: %v", err)
	}
	waitFor(t, "geometry", func() bool {
		return len(m.Snapshot(testRider).Geometry) == 2
	})
	before := router.Calls()

	snap, err := m.RemoveWaypoint(ctx, testRider, 1)
	if err != nil {
		t.Fatalf("RemoveWaypoint failed: %v", err)
	}
	if len(snap.Waypoints) != 1 {
		t.Errorf("waypoints = %d, want 1", len(snap.Waypoints))
	}
	if len(snap.Geometry) != 0 {
		t.Errorf("geometry = %v, want cleared below 2 waypoints", snap.Geometry)
	}
	if got := router.Calls(); got != before {
		t.Errorf("router calls = %d, want %d (no request below 2 waypoints)", got, before)
	}

	if _, err := m.RemoveWaypoint(ctx, testRider, 3); !errors.Is(err, ErrWaypointIndex) {
		t.Errorf("RemoveWaypoint(3) error = %v, want ErrWaypointIndex", err)
	}
}

func TestInvalidCoordinatesRejected(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeRouter{})
	ctx := context.Background()

	if _, err := m.Start(ctx, testRider); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := m.AddWaypoint(ctx, testRider, 91.0, 16.0); !errors.Is(err, ErrInvalidCoordinate) {
		t.Errorf("AddWaypoint(91, 16) error = %v, want ErrInvalidCoordinate", err)
	}
	if _, err := m.AddWaypoint(ctx, testRider, 48.0, 181.0); !errors.Is(err, ErrInvalidCoordinate) {
		t.Errorf("AddWaypoint(48, 181) error = %v, want ErrInvalidCoordinate", err)
	}
	if _, err := m.AddWaypoint(ctx, testRider, 48.0, 16.0); err != nil {
		t.Fatalf("valid AddWaypoint failed: %v", err)
	}
	if _, err := m.MoveWaypoint(ctx, testRider, 0, -91.0, 16.0); !errors.Is(err, ErrInvalidCoordinate) {
		t.Errorf("MoveWaypoint(-91, 16) error = %v, want ErrInvalidCoordinate", err)
	}
}

// TestOutOfOrderResponsesNeverRegress covers the interleaving where the
// response for waypoints A,B arrives after the response for A,B,C: the
// drawn line must reflect A,B,C only, because issuing the A,B,C request
// cancelled the A,B one.
func TestOutOfOrderResponsesNeverRegress(t *testing.T) {
	release := make(chan struct{})
	var call int32

	router := &fakeRouter{}
	router.fn = func(ctx context.Context, coords []models.LatLng) ([]models.LatLng, error) {
		if atomic.AddInt32(&call, 1) == 1 {
			// The A,B response is stalled until after A,B,C applied. It
			// then returns successfully, simulating a response that was
			// already on the wire when its request was cancelled.
			<-release
			return echo(coords), nil
		}
		return echo(coords), nil
	}

	m, _, _ := newTestManager(t, router)
	ctx := context.Background()

	if _, err := m.Start(ctx, testRider); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := m.AddWaypoint(ctx, testRider, 48.0, 16.0); err != nil {
		t.Fatalf("AddWaypoint A failed: %v", err)
	}
	if _, err := m.AddWaypoint(ctx, testRider, 48.1, 16.1); err != nil {
		t.Fatalf("AddWaypoint B failed: %v", err)
	}
	if _, err := m.AddWaypoint(ctx, testRider, 48.2, 16.2); err != nil {
		t.Fatalf("AddWaypoint C failed: %v", err)
	}

	waitFor(t, "A,B,C geometry", func() bool {
		return len(m.Snapshot(testRider).Geometry) == 3
	})

	close(release)
	time.Sleep(100 * time.Millisecond)

	if got := len(m.Snapshot(testRider).Geometry); got != 3 {
		t.Errorf("geometry has %d points after late A,B response, want 3", got)
	}
	if got := router.Calls(); got != 2 {
		t.Errorf("router calls = %d, want 2", got)
	}
}

func TestRoutingFailureKeepsLastGeometry(t *testing.T) {
	var call int32
	router := &fakeRouter{}
	router.fn = func(ctx context.Context, coords []models.LatLng) ([]models.LatLng, error) {
		if atomic.AddInt32(&call, 1) == 1 {
			return echo(coords), nil
		}
		return nil, errors.New("osrm: 500 Internal Server Error")
	}

	m, notifier, _ := newTestManager(t, router)
	ctx := context.Background()

	if _, err := m.Start(ctx, testRider); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := m.AddWaypoint(ctx, testRider, 48.0, 16.0); err != nil {
		t.Fatalf("AddWaypoint failed: %v", err)
	}
	if _, err := m.AddWaypoint(ctx, testRider, 48.1, 16.1); err != nil {
		t.Fatalf("AddWaypoint failed: %v", err)
	}
	waitFor(t, "initial geometry", func() bool {
		return len(m.Snapshot(testRider).Geometry) == 2
	})

	if _, err := m.MoveWaypoint(ctx, testRider, 1, 48.9, 16.9); err != nil {
		t.Fatalf("MoveWaypoint failed: %v", err)
	}
	waitFor(t, "failure notification", func() bool {
		return len(notifier.Messages()) > 0
	})

	if msgs := notifier.Messages(); msgs[0] != "error: Route calculation failed" {
		t.Errorf("notification = %q, want generic routing failure", msgs[0])
	}

	snap := m.Snapshot(testRider)
	if snap.Waypoints[1].Lat != 48.9 {
		t.Errorf("waypoint not moved: %+v", snap.Waypoints[1])
	}
	if len(snap.Geometry) != 2 || snap.Geometry[1].Lat != 48.1 {
		t.Errorf("geometry = %v, want last drawn line untouched", snap.Geometry)
	}
	if snap.State != StateCapturing {
		t.Errorf("state = %q, want still capturing after failure", snap.State)
	}
}

func TestNoRouteNotification(t *testing.T) {
	router := &fakeRouter{}
	router.fn = func(ctx context.Context, coords []models.LatLng) ([]models.LatLng, error) {
		return nil, fmt.Errorf("route over water: %w", routing.ErrNoRoute)
	}

	m, notifier, _ := newTestManager(t, router)
	ctx := context.Background()

	if _, err := m.Start(ctx, testRider); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := m.AddWaypoint(ctx, testRider, 48.0, 16.0); err != nil {
		t.Fatalf("AddWaypoint failed: %v", err)
	}
	if _, err := m.AddWaypoint(ctx, testRider, 10.0, -30.0); err != nil {
		t.Fatalf("AddWaypoint failed: %v", err)
	}

	waitFor(t, "no-route notification", func() bool {
		return len(notifier.Messages()) > 0
	})
	if msgs := notifier.Messages(); msgs[0] != "error: No route found between the waypoints" {
		t.Errorf("notification = %q, want no-route message", msgs[0])
	}

	// No geometry was ever computed, so the session cannot finalize.
	if _, _, err := m.Finalize(testRider); !errors.Is(err, ErrNoValidRoute) {
		t.Errorf("Finalize error = %v, want ErrNoValidRoute", err)
	}
}

func TestFinalize(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeRouter{})
	ctx := context.Background()

	if _, err := m.Start(ctx, testRider); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := m.AddWaypoint(ctx, testRider, 48.0, 16.0); err != nil {
		t.Fatalf("AddWaypoint failed: %v", err)
	}

	// One waypoint is never a valid route.
	if _, _, err := m.Finalize(testRider); !errors.Is(err, ErrNoValidRoute) {
		t.Errorf("Finalize error = %v, want ErrNoValidRoute", err)
	}
	if snap := m.Snapshot(testRider); snap.State != StateCapturing {
		t.Errorf("state = %q, want still capturing after failed finalize", snap.State)
	}

	if _, err := m.AddWaypoint(ctx, testRider, 48.1, 16.1); err != nil {
		t.Fatalf("AddWaypoint failed: %v", err)
	}
	waitFor(t, "geometry", func() bool {
		return len(m.Snapshot(testRider).Geometry) == 2
	})
	if _, err := m.UpdateWaypoint(testRider, 0, "Anfang", false); err != nil {
		t.Fatalf("UpdateWaypoint failed: %v", err)
	}

	snap, unnamed, err := m.Finalize(testRider)
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if snap.State != StateFinalized {
		t.Errorf("state = %q, want %q", snap.State, StateFinalized)
	}
	if unnamed != 1 {
		t.Errorf("unnamed = %d, want 1 (second waypoint has no name)", unnamed)
	}

	// The session is no longer capturing.
	if _, err := m.AddWaypoint(ctx, testRider, 48.2, 16.2); !errors.Is(err, ErrNotCapturing) {
		t.Errorf("AddWaypoint after finalize error = %v, want ErrNotCapturing", err)
	}

	// Starting again discards the finalized residue.
	fresh, err := m.Start(ctx, testRider)
	if err != nil {
		t.Fatalf("Start after finalize failed: %v", err)
	}
	if fresh.State != StateCapturing || len(fresh.Waypoints) != 0 {
		t.Errorf("fresh session = %+v, want empty capturing session", fresh)
	}
}

func TestFinalizeCountsOnlyNonSuppressedUnnamed(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeRouter{})
	ctx := context.Background()

	if _, err := m.Start(ctx, testRider); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for _, c := range []models.LatLng{{Lat: 48.0, Lng: 16.0}, {Lat: 48.1, Lng: 16.1}, {Lat: 48.2, Lng: 16.2}} {
		if _, err := m.AddWaypoint(ctx, testRider, c.Lat, c.Lng); err != nil {
			t.Fatalf("AddWaypoint failed: %v", err)
		}
	}
	waitFor(t, "geometry", func() bool {
		return len(m.Snapshot(testRider).Geometry) == 3
	})

	if _, err := m.UpdateWaypoint(testRider, 0, "Anfang", false); err != nil {
		t.Fatalf("UpdateWaypoint failed: %v", err)
	}
	// Unnamed but suppressed: shapes the route, never persisted, no warning.
	if _, err := m.UpdateWaypoint(testRider, 1, "", true); err != nil {
		t.Fatalf("UpdateWaypoint failed: %v", err)
	}

	_, unnamed, err := m.Finalize(testRider)
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if unnamed != 1 {
		t.Errorf("unnamed = %d, want 1 (only the last waypoint counts)", unnamed)
	}
}

func TestPayload(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeRouter{})
	ctx := context.Background()

	if _, err := m.Start(ctx, testRider); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for _, c := range []models.LatLng{{Lat: 48.0, Lng: 16.0}, {Lat: 48.1, Lng: 16.1}, {Lat: 48.2, Lng: 16.2}} {
		if _, err := m.AddWaypoint(ctx, testRider, c.Lat, c.Lng); err != nil {
			t.Fatalf("AddWaypoint failed: %v", err)
		}
	}
	waitFor(t, "geometry", func() bool {
		return len(m.Snapshot(testRider).Geometry) == 3
	})
	if _, err := m.UpdateWaypoint(testRider, 0, "Anfang", false); err != nil {
		t.Fatalf("UpdateWaypoint failed: %v", err)
	}
	if _, err := m.UpdateWaypoint(testRider, 1, "shaping point", true); err != nil {
		t.Fatalf("UpdateWaypoint failed: %v", err)
	}
	if _, err := m.UpdateWaypoint(testRider, 2, "Ende", false); err != nil {
		t.Fatalf("UpdateWaypoint failed: %v", err)
	}

	// Payload requires a finalized session.
	if _, err := m.Payload(testRider); !errors.Is(err, ErrNotFinalized) {
		t.Errorf("Payload before finalize error = %v, want ErrNotFinalized", err)
	}

	if _, _, err := m.Finalize(testRider); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	payload, err := m.Payload(testRider)
	if err != nil {
		t.Fatalf("Payload failed: %v", err)
	}
	if len(payload.Waypoints) != 2 {
		t.Fatalf("payload waypoints = %d, want 2 (suppressed excluded)", len(payload.Waypoints))
	}
	if payload.Waypoints[0].Name != "Anfang" || payload.Waypoints[1].Name != "Ende" {
		t.Errorf("payload waypoints = %+v, want Anfang and Ende in order", payload.Waypoints)
	}
	if len(payload.RouteGeometry) != 3 {
		t.Errorf("payload geometry = %d points, want the full drawn line (3)", len(payload.RouteGeometry))
	}

	m.Consume(testRider)
	if snap := m.Snapshot(testRider); snap.State != StateIdle {
		t.Errorf("state after Consume = %q, want idle", snap.State)
	}
	if _, err := m.Payload(testRider); !errors.Is(err, ErrNotCapturing) {
		t.Errorf("Payload after Consume error = %v, want ErrNotCapturing", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d after Consume, want 0", m.Len())
	}
}

func TestRoutingFailureMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"no route", routing.ErrNoRoute, "No route found between the waypoints"},
		{"wrapped no route", fmt.Errorf("osrm: %w", routing.ErrNoRoute), "No route found between the waypoints"},
		{"transport failure", errors.New("connection refused"), "Route calculation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := routingFailureMessage(tt.err); got != tt.want {
				t.Errorf("routingFailureMessage(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
