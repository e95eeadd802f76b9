// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package events

import (
	"errors"
	"testing"
	"time"
)

func TestNewEvent(t *testing.T) {
	t.Parallel()

	event := NewEvent(EventTwistAdded, 42)

	if event.EventID == "" {
		t.Error("Expected EventID to be set")
	}
	if event.Type != EventTwistAdded {
		t.Errorf("Type = %q, want %q", event.Type, EventTwistAdded)
	}
	if event.TwistID != 42 {
		t.Errorf("TwistID = %d, want 42", event.TwistID)
	}
	if event.Timestamp.IsZero() {
		t.Error("Expected Timestamp to be set")
	}
	if event.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp location = %v, want UTC", event.Timestamp.Location())
	}
	if event.SchemaVersion != SchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", event.SchemaVersion, SchemaVersion)
	}
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		event   *Event
		wantErr string
	}{
		{
			name: "valid event",
			event: &Event{
				EventID: "test-id",
				Type:    EventTwistAdded,
				TwistID: 1,
			},
		},
		{
			name: "missing event_id",
			event: &Event{
				Type:    EventTwistAdded,
				TwistID: 1,
			},
			wantErr: "event_id: required",
		},
		{
			name: "missing type",
			event: &Event{
				EventID: "test-id",
				TwistID: 1,
			},
			wantErr: "type: required",
		},
		{
			name: "zero twist_id",
			event: &Event{
				EventID: "test-id",
				Type:    EventTwistDeleted,
			},
			wantErr: "twist_id: must be positive",
		},
		{
			name: "negative twist_id",
			event: &Event{
				EventID: "test-id",
				Type:    EventTwistDeleted,
				TwistID: -3,
			},
			wantErr: "twist_id: must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.event.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error %q", tt.wantErr)
			}
			if err.Error() != tt.wantErr {
				t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestSerializeEventRejectsInvalid(t *testing.T) {
	t.Parallel()

	event := &Event{EventID: "test-id", TwistID: 4} // no type

	_, err := SerializeEvent(event)
	if err == nil {
		t.Fatal("SerializeEvent should reject an invalid event")
	}

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("error = %v, want *ValidationError", err)
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	t.Parallel()

	event := NewEvent(EventTwistRated, 7)
	event.ActorID = "rider-1"
	event.TwistName = "Stelvio Pass"
	event.Criterion = "fun"
	event.Score = 5

	data, err := SerializeEvent(event)
	if err != nil {
		t.Fatalf("SerializeEvent error: %v", err)
	}

	got, err := DeserializeEvent(data)
	if err != nil {
		t.Fatalf("DeserializeEvent error: %v", err)
	}

	if got.EventID != event.EventID {
		t.Errorf("EventID = %q, want %q", got.EventID, event.EventID)
	}
	if got.Type != EventTwistRated {
		t.Errorf("Type = %q, want %q", got.Type, EventTwistRated)
	}
	if got.ActorID != "rider-1" {
		t.Errorf("ActorID = %q, want rider-1", got.ActorID)
	}
	if got.Criterion != "fun" || got.Score != 5 {
		t.Errorf("rating = %q/%d, want fun/5", got.Criterion, got.Score)
	}
}

func TestDeserializeEventBackfillsSchemaVersion(t *testing.T) {
	t.Parallel()

	// A payload from before schema versioning.
	payload := []byte(`{"event_id":"legacy","type":"twist.added","twist_id":9}`)

	event, err := DeserializeEvent(payload)
	if err != nil {
		t.Fatalf("DeserializeEvent error: %v", err)
	}
	if event.SchemaVersion != SchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", event.SchemaVersion, SchemaVersion)
	}
}

func TestDeserializeEventRejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := DeserializeEvent([]byte("not json")); err == nil {
		t.Error("DeserializeEvent should reject malformed payloads")
	}
}
