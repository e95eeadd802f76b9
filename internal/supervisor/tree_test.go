// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package supervisor

import (
	"context"
	"errors"
	"sync"
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

// mockService blocks until cancelled, optionally crashing first.
type mockService struct {
	name   string
	mu     sync.Mutex
	starts int
	fails  int
}

func (m *mockService) String() string { return m.name }

func (m *mockService) Serve(ctx context.Context) error {
	m.mu.Lock()
	m.starts++
	crash := m.fails > 0
	if crash {
		m.fails--
	}
	m.mu.Unlock()

	if crash {
		return errors.New("simulated crash")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockService) startCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

func TestTreeServesAllLayers(t *testing.T) {
	tree := NewTree(nil, DefaultTreeConfig())

	data := &mockService{name: "data-mock"}
	messaging := &mockService{name: "messaging-mock"}
	api := &mockService{name: "api-mock"}
	tree.AddDataService(data)
	tree.AddMessagingService(messaging)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	waitFor(t, "all layers running", func() bool {
		return data.startCount() >= 1 && messaging.startCount() >= 1 && api.startCount() >= 1
	})
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("tree stopped with %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop after cancel")
	}
}

func TestTreeRestartsCrashedService(t *testing.T) {
	tree := NewTree(nil, DefaultTreeConfig())

	svc := &mockService{name: "crashy", fails: 2}
	tree.AddMessagingService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	// Two crashes plus the run that sticks.
	waitFor(t, "service restarted after crashes", func() bool {
		return svc.startCount() >= 3
	})
	cancel()

	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop after cancel")
	}
}

func TestNewTreeAppliesDefaults(t *testing.T) {
	tree := NewTree(nil, TreeConfig{})

	want := DefaultTreeConfig()
	if tree.cfg != want {
		t.Errorf("cfg = %+v, want defaults %+v", tree.cfg, want)
	}
}

func TestDefaultTreeConfig(t *testing.T) {
	cfg := DefaultTreeConfig()
	if cfg.FailureThreshold != 5.0 || cfg.FailureDecay != 30.0 {
		t.Errorf("failure knobs = %v/%v, want 5/30", cfg.FailureThreshold, cfg.FailureDecay)
	}
	if cfg.FailureBackoff != 15*time.Second || cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("timing knobs = %v/%v, want 15s/10s", cfg.FailureBackoff, cfg.ShutdownTimeout)
	}
}
