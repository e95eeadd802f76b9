// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package events

import (
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the current event schema version. Increment on
// breaking changes to Event; consumers tolerate older versions.
const SchemaVersion = 1

// TopicTwists is the single subject all twist lifecycle events travel
// on. The GoChannel backend treats it as an exact topic name; the NATS
// backend uses it as the JetStream subject.
const TopicTwists = "twists.events"

// Event types. The values double as WebSocket signal names, so the
// forwarder can rebroadcast an event under its own type.
const (
	// EventTwistAdded is published after a new route is stored.
	EventTwistAdded = "twist.added"
	// EventTwistDeleted is published after a route is removed.
	EventTwistDeleted = "twist.deleted"
	// EventTwistRated is published after a rating is stored.
	EventTwistRated = "twist.rated"
)

// Event is the canonical twist lifecycle event. ActorID names the rider
// whose request produced the event; per-rider follow-ups (closing the
// creator's modal, showing the new layer) key off it.
type Event struct {
	SchemaVersion int       `json:"schema_version,omitempty"`
	EventID       string    `json:"event_id"`
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	ActorID       string    `json:"actor_id,omitempty"`
	TwistID       int64     `json:"twist_id"`
	TwistName     string    `json:"twist_name,omitempty"`

	// Rating details, set only for EventTwistRated.
	Criterion string `json:"criterion,omitempty"`
	Score     int    `json:"score,omitempty"`
}

// NewEvent creates an event with a unique ID, UTC timestamp, and the
// current schema version.
func NewEvent(eventType string, twistID int64) *Event {
	return &Event{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		Type:          eventType,
		Timestamp:     time.Now().UTC(),
		TwistID:       twistID,
	}
}

// Validate checks required fields and returns an error if any is missing.
func (e *Event) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "required"}
	}
	if e.Type == "" {
		return &ValidationError{Field: "type", Message: "required"}
	}
	if e.TwistID <= 0 {
		return &ValidationError{Field: "twist_id", Message: "must be positive"}
	}
	return nil
}

// EnsureSchemaVersion sets the schema version if the producer left it
// unset, so legacy payloads decode as version 1.
func (e *Event) EnsureSchemaVersion() {
	if e.SchemaVersion == 0 {
		e.SchemaVersion = SchemaVersion
	}
}

// ValidationError represents a field validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
