// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package events

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/mototwist/mototwist/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

func TestChannelBusPublishSubscribe(t *testing.T) {
	t.Parallel()

	bus := NewChannelBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}

	event := NewEvent(EventTwistAdded, 42)
	event.ActorID = "rider-1"
	event.TwistName = "Timmelsjoch"
	if err := bus.PublishEvent(ctx, event); err != nil {
		t.Fatalf("PublishEvent error: %v", err)
	}

	select {
	case msg := <-msgs:
		if msg.UUID != event.EventID {
			t.Errorf("message UUID = %q, want event ID %q", msg.UUID, event.EventID)
		}
		if got := msg.Metadata.Get("type"); got != EventTwistAdded {
			t.Errorf("type metadata = %q, want %q", got, EventTwistAdded)
		}
		if got := msg.Metadata.Get("actor_id"); got != "rider-1" {
			t.Errorf("actor_id metadata = %q, want rider-1", got)
		}

		got, err := DeserializeEvent(msg.Payload)
		if err != nil {
			t.Fatalf("DeserializeEvent error: %v", err)
		}
		if got.TwistID != 42 || got.TwistName != "Timmelsjoch" {
			t.Errorf("event = %d/%q, want 42/Timmelsjoch", got.TwistID, got.TwistName)
		}
		msg.Ack()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestChannelBusPreservesOrder(t *testing.T) {
	t.Parallel()

	bus := NewChannelBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}

	for i := int64(1); i <= 3; i++ {
		if err := bus.PublishEvent(ctx, NewEvent(EventTwistAdded, i)); err != nil {
			t.Fatalf("PublishEvent(%d) error: %v", i, err)
		}
	}

	for want := int64(1); want <= 3; want++ {
		select {
		case msg := <-msgs:
			event, err := DeserializeEvent(msg.Payload)
			if err != nil {
				t.Fatalf("DeserializeEvent error: %v", err)
			}
			if event.TwistID != want {
				t.Errorf("TwistID = %d, want %d", event.TwistID, want)
			}
			msg.Ack()
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", want)
		}
	}
}

func TestPublishEventRejectsInvalid(t *testing.T) {
	t.Parallel()

	bus := NewChannelBus()
	defer bus.Close()

	event := &Event{EventID: "no-type", TwistID: 1}
	if err := bus.PublishEvent(context.Background(), event); err == nil {
		t.Error("PublishEvent should reject an invalid event")
	}
}

func TestBusClose(t *testing.T) {
	t.Parallel()

	bus := NewChannelBus()
	if err := bus.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
}
