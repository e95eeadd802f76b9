// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mototwist/mototwist/internal/websocket"
)

type fakeRouteSink struct {
	mu      sync.Mutex
	added   []string
	deleted []int64
	addErr  error
}

func (f *fakeRouteSink) OnRouteAdded(_ context.Context, userID string, routeID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, fmt.Sprintf("%s:%d", userID, routeID))
	return f.addErr
}

func (f *fakeRouteSink) OnRouteDeleted(_ context.Context, routeID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, routeID)
	return nil
}

func (f *fakeRouteSink) hasAdded(entry string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.added {
		if a == entry {
			return true
		}
	}
	return false
}

func (f *fakeRouteSink) hasDeleted(routeID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.deleted {
		if d == routeID {
			return true
		}
	}
	return false
}

func (f *fakeRouteSink) addedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.added)
}

func (f *fakeRouteSink) deletedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deleted)
}

type fakeSignals struct {
	mu        sync.Mutex
	broadcast []string
	direct    []string
}

func (f *fakeSignals) BroadcastSignal(signal string, _ any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcast = append(f.broadcast, signal)
}

func (f *fakeSignals) SendSignal(userID, signal string, _ any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.direct = append(f.direct, userID+":"+signal)
}

func (f *fakeSignals) hasBroadcast(signal string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.broadcast {
		if b == signal {
			return true
		}
	}
	return false
}

func (f *fakeSignals) hasDirect(entry string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.direct {
		if d == entry {
			return true
		}
	}
	return false
}

func (f *fakeSignals) directCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.direct)
}

type forwarderFixture struct {
	bus     *Bus
	sink    *fakeRouteSink
	signals *fakeSignals
	cancel  context.CancelFunc
	done    chan error
}

// startForwarder runs a forwarder against a fresh channel bus and waits
// briefly so the subscription is live before tests publish.
func startForwarder(t *testing.T) *forwarderFixture {
	t.Helper()

	fx := &forwarderFixture{
		bus:     NewChannelBus(),
		sink:    &fakeRouteSink{},
		signals: &fakeSignals{},
		done:    make(chan error, 1),
	}

	ctx, cancel := context.WithCancel(context.Background())
	fx.cancel = cancel

	fwd := NewForwarder(fx.bus, fx.sink, fx.signals)
	go func() { fx.done <- fwd.Serve(ctx) }()
	time.Sleep(50 * time.Millisecond)

	t.Cleanup(func() {
		cancel()
		select {
		case <-fx.done:
		case <-time.After(2 * time.Second):
			t.Error("forwarder did not stop after cancel")
		}
		_ = fx.bus.Close()
	})
	return fx
}

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

func TestForwarderTwistAdded(t *testing.T) {
	t.Parallel()

	fx := startForwarder(t)

	event := NewEvent(EventTwistAdded, 7)
	event.ActorID = "rider-1"
	if err := fx.bus.PublishEvent(context.Background(), event); err != nil {
		t.Fatalf("PublishEvent error: %v", err)
	}

	waitFor(t, "route sink add", func() bool { return fx.sink.hasAdded("rider-1:7") })

	if !fx.signals.hasBroadcast(EventTwistAdded) {
		t.Error("expected twist.added broadcast")
	}
	if !fx.signals.hasDirect("rider-1:" + websocket.SignalModalClose) {
		t.Error("expected modal close signal for the actor")
	}
}

func TestForwarderTwistAddedWithoutActor(t *testing.T) {
	t.Parallel()

	fx := startForwarder(t)

	if err := fx.bus.PublishEvent(context.Background(), NewEvent(EventTwistAdded, 3)); err != nil {
		t.Fatalf("PublishEvent error: %v", err)
	}

	waitFor(t, "broadcast", func() bool { return fx.signals.hasBroadcast(EventTwistAdded) })

	if n := fx.sink.addedCount(); n != 0 {
		t.Errorf("route sink called %d times for actorless event, want 0", n)
	}
	if n := fx.signals.directCount(); n != 0 {
		t.Errorf("direct signals = %d, want 0", n)
	}
}

func TestForwarderTwistDeleted(t *testing.T) {
	t.Parallel()

	fx := startForwarder(t)

	event := NewEvent(EventTwistDeleted, 9)
	event.ActorID = "rider-1"
	if err := fx.bus.PublishEvent(context.Background(), event); err != nil {
		t.Fatalf("PublishEvent error: %v", err)
	}

	waitFor(t, "route sink delete", func() bool { return fx.sink.hasDeleted(9) })

	if !fx.signals.hasBroadcast(EventTwistDeleted) {
		t.Error("expected twist.deleted broadcast")
	}
	if n := fx.signals.directCount(); n != 0 {
		t.Errorf("direct signals = %d, want 0", n)
	}
}

func TestForwarderTwistRated(t *testing.T) {
	t.Parallel()

	fx := startForwarder(t)

	event := NewEvent(EventTwistRated, 4)
	event.Criterion = "scenery"
	event.Score = 5
	if err := fx.bus.PublishEvent(context.Background(), event); err != nil {
		t.Fatalf("PublishEvent error: %v", err)
	}

	waitFor(t, "broadcast", func() bool { return fx.signals.hasBroadcast(EventTwistRated) })

	if n := fx.sink.addedCount() + fx.sink.deletedCount(); n != 0 {
		t.Errorf("route sink called %d times for rating event, want 0", n)
	}
}

func TestForwarderDropsUnknownType(t *testing.T) {
	t.Parallel()

	fx := startForwarder(t)
	ctx := context.Background()

	if err := fx.bus.PublishEvent(ctx, NewEvent("twist.renamed", 5)); err != nil {
		t.Fatalf("PublishEvent error: %v", err)
	}
	// A known event behind it proves the loop survived the unknown one.
	if err := fx.bus.PublishEvent(ctx, NewEvent(EventTwistRated, 6)); err != nil {
		t.Fatalf("PublishEvent error: %v", err)
	}

	waitFor(t, "trailing broadcast", func() bool { return fx.signals.hasBroadcast(EventTwistRated) })

	if fx.signals.hasBroadcast("twist.renamed") {
		t.Error("unknown event type must not be broadcast")
	}
}

func TestForwarderSinkErrorStillBroadcasts(t *testing.T) {
	t.Parallel()

	fx := startForwarder(t)
	fx.sink.addErr = errors.New("layer cache unavailable")

	event := NewEvent(EventTwistAdded, 11)
	event.ActorID = "rider-1"
	if err := fx.bus.PublishEvent(context.Background(), event); err != nil {
		t.Fatalf("PublishEvent error: %v", err)
	}

	waitFor(t, "route sink attempt", func() bool { return fx.sink.addedCount() >= 1 })

	if !fx.signals.hasBroadcast(EventTwistAdded) {
		t.Error("sink failure must not suppress the broadcast")
	}
	if !fx.signals.hasDirect("rider-1:" + websocket.SignalModalClose) {
		t.Error("sink failure must not suppress the modal close")
	}
}

func TestForwarderStopsOnCancel(t *testing.T) {
	t.Parallel()

	fx := startForwarder(t)
	fx.cancel()

	select {
	case err := <-fx.done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
		// Refill so cleanup's receive does not block.
		fx.done <- err
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestForwarderString(t *testing.T) {
	t.Parallel()

	fwd := NewForwarder(NewChannelBus(), &fakeRouteSink{}, &fakeSignals{})
	if got := fwd.String(); got != "event-forwarder" {
		t.Errorf("String() = %q, want event-forwarder", got)
	}
}
