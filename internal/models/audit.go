// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package models

import "time"

// Audit event categories. Each category groups the actions of one
// security-relevant surface.
const (
	// AuditCategoryAuth covers login and logout outcomes.
	AuditCategoryAuth = "auth"

	// AuditCategoryAuthz covers authorization denials.
	AuditCategoryAuthz = "authz"

	// AuditCategoryTwist covers twist create/delete mutations.
	AuditCategoryTwist = "twist"

	// AuditCategoryRating covers rating create/delete mutations.
	AuditCategoryRating = "rating"

	// AuditCategoryUser covers user management mutations.
	AuditCategoryUser = "user"
)

// Audit event outcomes.
const (
	AuditOutcomeSuccess = "success"
	AuditOutcomeFailure = "failure"
	AuditOutcomeDenied  = "denied"
)

// AuditEvent is one row of the security audit trail: who did what to
// which resource, and how it went. Detail carries free-form context
// such as the denial reason or the twist name.
type AuditEvent struct {
	ID        string    `json:"id"`
	EventTime time.Time `json:"event_time"`
	Category  string    `json:"category"`
	Action    string    `json:"action"`
	Outcome   string    `json:"outcome"`
	ActorID   string    `json:"actor_id"`
	ActorName string    `json:"actor_name,omitempty"`
	Resource  string    `json:"resource,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}
