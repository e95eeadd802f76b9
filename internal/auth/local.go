// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/mototwist/mototwist/internal/database"
	"github.com/mototwist/mototwist/internal/logging"
	"github.com/mototwist/mototwist/internal/models"
)

// LocalAuthenticator serves auth mode none: every request authenticates
// as the bootstrapped admin without presenting credentials. Only meant
// for single-rider installs on trusted networks.
type LocalAuthenticator struct {
	users         UserStore
	adminUsername string

	mu     sync.RWMutex
	cached *Subject
}

// NewLocalAuthenticator creates the mode-none authenticator. The admin
// row is resolved lazily on first request so bootstrap can run first.
func NewLocalAuthenticator(users UserStore, adminUsername string) *LocalAuthenticator {
	return &LocalAuthenticator{
		users:         users,
		adminUsername: adminUsername,
	}
}

// Authenticate returns the local admin subject regardless of request
// contents.
func (a *LocalAuthenticator) Authenticate(ctx context.Context, r *http.Request) (*Subject, error) {
	a.mu.RLock()
	cached := a.cached
	a.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	subject, err := a.resolve(ctx)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.cached = subject
	a.mu.Unlock()
	return subject, nil
}

// resolve looks up the configured admin row. When no admin exists (no
// bootstrap credentials configured), a synthetic "local" identity is
// used so the instance still works; its twists carry author_id "local".
func (a *LocalAuthenticator) resolve(ctx context.Context) (*Subject, error) {
	if a.adminUsername != "" {
		user, err := a.users.GetUserByUsername(ctx, a.adminUsername)
		if err == nil {
			return SubjectFromUser(user, AuthModeNone), nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, ErrAuthenticatorUnavailable
		}
	}

	logging.Warn().Msg("Auth mode none without a bootstrapped admin; using synthetic local identity")
	return &Subject{
		ID:         "local",
		Username:   "local",
		Roles:      []string{models.RoleAdmin},
		Issuer:     "local",
		AuthMethod: AuthModeNone,
	}, nil
}

// Name returns the authenticator name.
func (a *LocalAuthenticator) Name() string {
	return string(AuthModeNone)
}

// Compile-time interface checks.
var (
	_ Authenticator = (*JWTAuthenticator)(nil)
	_ Authenticator = (*BasicAuthenticator)(nil)
	_ Authenticator = (*SessionAuthenticator)(nil)
	_ Authenticator = (*LocalAuthenticator)(nil)
)
