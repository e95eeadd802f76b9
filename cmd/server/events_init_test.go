// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package main

import (
	"testing"

	"github.com/mototwist/mototwist/internal/config"
)

// TestNewEventBus_ChannelBackend tests the default in-process backend.
func TestNewEventBus_ChannelBackend(t *testing.T) {
	for _, backend := range []string{"", "channel"} {
		bus, err := newEventBus(&config.EventsConfig{Backend: backend})
		if err != nil {
			t.Fatalf("newEventBus(%q) returned error: %v", backend, err)
		}
		if bus == nil {
			t.Fatalf("newEventBus(%q) returned nil bus", backend)
		}
		if err := bus.Close(); err != nil {
			t.Errorf("Close() returned error: %v", err)
		}
	}
}

// TestNewEventBus_UnknownBackend tests that a typo in EVENTS_BACKEND
// fails startup instead of silently picking a default.
func TestNewEventBus_UnknownBackend(t *testing.T) {
	_, err := newEventBus(&config.EventsConfig{Backend: "kafka"})
	if err == nil {
		t.Fatal("expected error for unknown backend, got nil")
	}
}
