// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/mototwist/mototwist/internal/logging"
)

// contextKey is unexported so only this package can place subjects in
// a context.
type contextKey string

const subjectContextKey contextKey = "auth_subject"

// ContextWithSubject returns a context carrying the subject. Handlers
// under RequireAuth never need this; it exists for tests and for the
// WebSocket upgrade path, which authenticates before hijacking.
func ContextWithSubject(ctx context.Context, subject *Subject) context.Context {
	return context.WithValue(ctx, subjectContextKey, subject)
}

// SubjectFromContext retrieves the authenticated subject, or nil when
// the request never passed RequireAuth.
func SubjectFromContext(ctx context.Context) *Subject {
	subject, ok := ctx.Value(subjectContextKey).(*Subject)
	if !ok {
		return nil
	}
	return subject
}

// Middleware enforces authentication on chi routes. Every mode has an
// Authenticator (mode none uses LocalAuthenticator), so handlers below
// RequireAuth can rely on SubjectFromContext being non-nil.
type Middleware struct {
	authenticator Authenticator
	challenge     string
}

// NewMiddleware creates auth middleware around an authenticator.
func NewMiddleware(authenticator Authenticator) (*Middleware, error) {
	if authenticator == nil {
		return nil, errors.New("authenticator is required")
	}

	m := &Middleware{authenticator: authenticator}
	if basic, ok := authenticator.(*BasicAuthenticator); ok {
		m.challenge = basic.GetWWWAuthenticateHeader()
	}
	return m, nil
}

// RequireAuth authenticates the request and stores the Subject in the
// request context.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, err := m.authenticator.Authenticate(r.Context(), r)
		if err != nil {
			m.handleAuthError(w, err)
			return
		}

		ctx := ContextWithSubject(r.Context(), subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authenticate runs the configured authenticator directly. The
// WebSocket upgrade handler uses it before hijacking the connection.
func (m *Middleware) Authenticate(ctx context.Context, r *http.Request) (*Subject, error) {
	return m.authenticator.Authenticate(ctx, r)
}

// handleAuthError maps authentication failures to HTTP responses.
func (m *Middleware) handleAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoCredentials):
		if m.challenge != "" {
			w.Header().Set("WWW-Authenticate", m.challenge)
		}
		http.Error(w, "Unauthorized: authentication required", http.StatusUnauthorized)

	case errors.Is(err, ErrInvalidCredentials):
		logging.Warn().Str("authenticator", m.authenticator.Name()).Msg("Authentication failed")
		if m.challenge != "" {
			w.Header().Set("WWW-Authenticate", m.challenge)
		}
		http.Error(w, "Unauthorized: invalid credentials", http.StatusUnauthorized)

	case errors.Is(err, ErrExpiredCredentials):
		http.Error(w, "Unauthorized: credentials expired", http.StatusUnauthorized)

	case errors.Is(err, ErrAuthenticatorUnavailable):
		logging.Error().Err(err).Msg("Authentication backend unavailable")
		http.Error(w, "Service unavailable: authentication unavailable", http.StatusServiceUnavailable)

	default:
		logging.Error().Err(err).Msg("Authentication failed")
		http.Error(w, "Unauthorized: authentication failed", http.StatusUnauthorized)
	}
}
