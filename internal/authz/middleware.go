// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package authz

import (
	"net/http"

	"github.com/mototwist/mototwist/internal/auth"
	"github.com/mototwist/mototwist/internal/logging"
)

// Middleware enforces the RBAC policy on incoming requests. It runs
// after auth.Middleware.RequireAuth, which puts the Subject in the
// request context.
type Middleware struct {
	service *Service
}

// NewMiddleware creates authorization middleware around the service.
func NewMiddleware(service *Service) *Middleware {
	return &Middleware{service: service}
}

// Authorize enforces the policy against the request path, deriving the
// action from the HTTP method. Suitable for router.Use on an API
// subtree.
func (m *Middleware) Authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.enforce(w, r, next, r.URL.Path, methodToAction(r.Method))
	})
}

// Require enforces a fixed object and action regardless of the request
// path. Used for routes whose path does not name the protected
// resource, such as the WebSocket upgrade.
func (m *Middleware) Require(object, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.enforce(w, r, next, object, action)
		})
	}
}

func (m *Middleware) enforce(w http.ResponseWriter, r *http.Request, next http.Handler, object, action string) {
	subject := auth.SubjectFromContext(r.Context())
	if subject == nil {
		http.Error(w, "Forbidden: no authentication context", http.StatusForbidden)
		return
	}

	allowed, err := m.service.CanAccess(r.Context(), subject, object, action)
	if err != nil {
		logging.Error().
			Err(err).
			Str("subject", subject.ID).
			Str("object", object).
			Str("action", action).
			Msg("Authorization error")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if !allowed {
		http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
		return
	}

	next.ServeHTTP(w, r)
}

// methodToAction maps HTTP methods to policy actions.
func methodToAction(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return "read"
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return "write"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}
