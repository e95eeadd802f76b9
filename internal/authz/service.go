// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package authz

import (
	"context"
	"errors"
	"time"

	"github.com/mototwist/mototwist/internal/auth"
	"github.com/mototwist/mototwist/internal/metrics"
	"github.com/mototwist/mototwist/internal/models"
)

var (
	// ErrPermissionDenied is returned when a subject may not touch a
	// resource it does not own.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrAdminRequired is returned when an operation needs the admin role.
	ErrAdminRequired = errors.New("admin role required")
)

// AuditSink receives authorization denials for the audit trail.
// *audit.Logger satisfies it; a nil sink disables denial auditing.
type AuditSink interface {
	RecordAuthzDenial(ctx context.Context, actorID, actorName, resource, action string)
}

// Service is the authorization decision point. It wraps the enforcer
// with decision metrics and denial auditing, and carries the ownership
// rules that path patterns cannot express.
type Service struct {
	enforcer *Enforcer
	sink     AuditSink
}

// NewService wires the enforcer to the audit sink. sink may be nil.
func NewService(enforcer *Enforcer, sink AuditSink) *Service {
	return &Service{enforcer: enforcer, sink: sink}
}

// CanAccess decides whether the subject may perform action on the
// resource path. A nil subject is always denied. Denials are recorded
// to the audit sink; every decision is recorded in metrics.
func (s *Service) CanAccess(ctx context.Context, subject *auth.Subject, resource, action string) (bool, error) {
	start := time.Now()

	if subject == nil {
		metrics.RecordAuthzDecision("anonymous", resource, action, false, time.Since(start))
		return false, nil
	}

	allowed, err := s.enforcer.EnforceWithRoles(subject.ID, subject.Roles, resource, action)
	if err != nil {
		metrics.RecordAuthzError("enforce")
		return false, err
	}

	metrics.RecordAuthzDecision(s.roleLabel(subject), resource, action, allowed, time.Since(start))
	if !allowed && s.sink != nil {
		s.sink.RecordAuthzDenial(ctx, subject.ID, subject.Username, resource, action)
	}
	return allowed, nil
}

// IsAdmin reports whether the subject carries the admin role.
func (s *Service) IsAdmin(subject *auth.Subject) bool {
	return subject != nil && subject.HasRole(models.RoleAdmin)
}

// RequireAdmin returns ErrAdminRequired unless the subject is an admin.
func (s *Service) RequireAdmin(subject *auth.Subject) error {
	if !s.IsAdmin(subject) {
		return ErrAdminRequired
	}
	return nil
}

// RequireOwnerOrAdmin returns ErrPermissionDenied unless the subject
// owns the resource or is an admin. Twist and rating deletion run
// through here after the path-level policy check.
func (s *Service) RequireOwnerOrAdmin(subject *auth.Subject, ownerID string) error {
	if subject == nil {
		return ErrPermissionDenied
	}
	if subject.ID == ownerID || s.IsAdmin(subject) {
		return nil
	}
	return ErrPermissionDenied
}

// InvalidateSubject drops the subject's cached decisions. Called after
// an admin changes a rider's role.
func (s *Service) InvalidateSubject(subjectID string) {
	s.enforcer.InvalidateSubject(subjectID)
}

// Policy returns the active policy rules for the admin API.
func (s *Service) Policy() [][]string {
	return s.enforcer.GetPolicy()
}

// GroupingPolicy returns the active role inheritance rules.
func (s *Service) GroupingPolicy() [][]string {
	return s.enforcer.GetGroupingPolicy()
}

// ReloadPolicy re-reads an external policy file on demand.
func (s *Service) ReloadPolicy() error {
	return s.enforcer.LoadPolicy()
}

// roleLabel returns the subject's primary role for metric labels.
func (s *Service) roleLabel(subject *auth.Subject) string {
	if role := subject.Role(); role != "" {
		return role
	}
	if role := s.enforcer.DefaultRole(); role != "" {
		return role
	}
	return "none"
}

// Close releases the enforcer.
func (s *Service) Close() {
	s.enforcer.Close()
}
