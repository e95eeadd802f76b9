// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mototwist/mototwist/internal/models"
)

func TestCancelIdempotent(t *testing.T) {
	m, _, view := newTestManager(t, &fakeRouter{})
	ctx := context.Background()

	// Cancelling with no session is a no-op.
	if err := m.Cancel(ctx, testRider); err != nil {
		t.Fatalf("Cancel without session failed: %v", err)
	}

	if _, err := m.Start(ctx, testRider); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := m.AddWaypoint(ctx, testRider, 48.0, 16.0); err != nil {
		t.Fatalf("AddWaypoint failed: %v", err)
	}

	if err := m.Cancel(ctx, testRider); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	last, ok := view.Last()
	if !ok || last.State != StateCancelled {
		t.Errorf("last view update = %+v, want cancelled snapshot", last)
	}
	if len(last.Waypoints) != 0 || len(last.Geometry) != 0 {
		t.Errorf("cancelled snapshot not cleared: %+v", last)
	}
	if snap := m.Snapshot(testRider); snap.State != StateIdle {
		t.Errorf("state after Cancel = %q, want idle", snap.State)
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d after Cancel, want 0", m.Len())
	}

	if err := m.Cancel(ctx, testRider); err != nil {
		t.Errorf("repeat Cancel failed: %v", err)
	}
}

func TestCancelAbortsInFlightRouting(t *testing.T) {
	started := make(chan struct{}, 1)
	router := &fakeRouter{}
	router.fn = func(ctx context.Context, coords []models.LatLng) ([]models.LatLng, error) {
		started <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
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

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("routing request never started")
	}

	if err := m.Cancel(ctx, testRider); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	// The aborted request's error is an intentional cancellation and must
	// not surface as a rider-facing failure.
	time.Sleep(50 * time.Millisecond)
	if msgs := notifier.Messages(); len(msgs) != 0 {
		t.Errorf("notifications after cancel = %v, want none", msgs)
	}
}

func TestCollapse(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeRouter{})
	ctx := context.Background()

	if _, err := m.Start(ctx, testRider); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := m.AddWaypoint(ctx, testRider, 48.0, 16.0); err != nil {
		t.Fatalf("AddWaypoint failed: %v", err)
	}

	// A created route collapses the in-progress capture.
	if err := m.Collapse(ctx, testRider); err != nil {
		t.Fatalf("Collapse failed: %v", err)
	}
	if snap := m.Snapshot(testRider); snap.State != StateIdle {
		t.Errorf("state after Collapse = %q, want idle", snap.State)
	}
	if err := m.Collapse(ctx, testRider); err != nil {
		t.Errorf("repeat Collapse failed: %v", err)
	}
}

func TestPerRiderIsolation(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeRouter{})
	ctx := context.Background()

	if _, err := m.Start(ctx, "rider-a"); err != nil {
		t.Fatalf("Start a failed: %v", err)
	}
	if _, err := m.Start(ctx, "rider-b"); err != nil {
		t.Fatalf("Start b failed: %v", err)
	}
	if _, err := m.AddWaypoint(ctx, "rider-a", 48.0, 16.0); err != nil {
		t.Fatalf("AddWaypoint failed: %v", err)
	}

	if got := len(m.Snapshot("rider-b").Waypoints); got != 0 {
		t.Errorf("rider-b has %d waypoints, want 0", got)
	}

	if err := m.Cancel(ctx, "rider-a"); err != nil {
		t.Fatalf("Cancel a failed: %v", err)
	}
	if snap := m.Snapshot("rider-b"); snap.State != StateCapturing {
		t.Errorf("rider-b state = %q after rider-a cancel, want capturing", snap.State)
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
}

func TestExpireIdle(t *testing.T) {
	t.Run("ExpiresStale", func(t *testing.T) {
		router := &fakeRouter{}
		m := NewManager(router, &fakeNotifier{}, &fakeView{}, 30*time.Millisecond)
		ctx := context.Background()

		if _, err := m.Start(ctx, "stale"); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		time.Sleep(60 * time.Millisecond)
		if _, err := m.Start(ctx, "fresh"); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		if got := m.ExpireIdle(); got != 1 {
			t.Errorf("ExpireIdle = %d, want 1", got)
		}
		if snap := m.Snapshot("stale"); snap.State != StateIdle {
			t.Errorf("stale session state = %q, want idle", snap.State)
		}
		if snap := m.Snapshot("fresh"); snap.State != StateCapturing {
			t.Errorf("fresh session state = %q, want capturing", snap.State)
		}
	})

	t.Run("KeepsTouched", func(t *testing.T) {
		router := &fakeRouter{}
		m := NewManager(router, &fakeNotifier{}, &fakeView{}, 80*time.Millisecond)
		ctx := context.Background()

		if _, err := m.Start(ctx, testRider); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
		// Any session operation refreshes the idle clock.
		if _, err := m.AddWaypoint(ctx, testRider, 48.0, 16.0); err != nil {
			t.Fatalf("AddWaypoint failed: %v", err)
		}
		time.Sleep(50 * time.Millisecond)

		if got := m.ExpireIdle(); got != 0 {
			t.Errorf("ExpireIdle = %d, want 0 for recently touched session", got)
		}
		if snap := m.Snapshot(testRider); snap.State != StateCapturing {
			t.Errorf("state = %q, want still capturing", snap.State)
		}
	})
}

func TestServeExpiresSessions(t *testing.T) {
	router := &fakeRouter{}
	m := NewManager(router, &fakeNotifier{}, &fakeView{}, 30*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx) }()

	if _, err := m.Start(context.Background(), testRider); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, "janitor to expire the session", func() bool {
		return m.Snapshot(testRider).State == StateIdle
	})

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop on context cancel")
	}
}
