// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package audit

import (
	"context"
	"errors"
	"testing"
	"time"
)

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

func TestJanitorPrunes(t *testing.T) {
	store := &fakeStore{pruneN: 3}
	janitor := NewJanitor(store, 30, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- janitor.Serve(ctx) }()

	waitFor(t, "a prune pass", func() bool { return store.prunes() >= 1 })
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	store.mu.Lock()
	cutoffs := append([]time.Time(nil), store.cutoffs...)
	store.mu.Unlock()
	if len(cutoffs) == 0 {
		t.Fatal("no prune cutoffs recorded")
	}
	wantCutoff := time.Now().UTC().AddDate(0, 0, -30)
	if diff := wantCutoff.Sub(cutoffs[0]); diff < -time.Minute || diff > time.Minute {
		t.Errorf("cutoff = %v, want about 30 days ago", cutoffs[0])
	}
}

func TestJanitorSurvivesPruneErrors(t *testing.T) {
	store := &fakeStore{failErr: errors.New("db locked")}
	janitor := NewJanitor(store, 30, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- janitor.Serve(ctx) }()

	waitFor(t, "two prune attempts", func() bool { return store.prunes() >= 2 })
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestJanitorDefaults(t *testing.T) {
	janitor := NewJanitor(&fakeStore{}, 0, 0)
	if janitor.retention != 90*24*time.Hour {
		t.Errorf("retention = %v, want 90 days", janitor.retention)
	}
	if janitor.interval != 6*time.Hour {
		t.Errorf("interval = %v, want 6h", janitor.interval)
	}
	if got := janitor.String(); got != "audit-janitor" {
		t.Errorf("String() = %q, want audit-janitor", got)
	}
}
