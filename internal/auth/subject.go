// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package auth

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// AuthMode represents the authentication strategy.
type AuthMode string

const (
	// AuthModeNone disables authentication. Every request acts as the
	// bootstrapped admin.
	AuthModeNone AuthMode = "none"

	// AuthModeBasic uses HTTP Basic Authentication against the users table.
	AuthModeBasic AuthMode = "basic"

	// AuthModeJWT uses JWT bearer tokens issued by the login endpoint.
	AuthModeJWT AuthMode = "jwt"

	// AuthModeOIDC uses OpenID Connect with a session cookie.
	AuthModeOIDC AuthMode = "oidc"
)

// ParseAuthMode converts a string to AuthMode.
func ParseAuthMode(s string) (AuthMode, error) {
	switch s {
	case "none":
		return AuthModeNone, nil
	case "basic":
		return AuthModeBasic, nil
	case "jwt", "":
		return AuthModeJWT, nil
	case "oidc":
		return AuthModeOIDC, nil
	default:
		return "", errors.New("invalid auth mode: " + s)
	}
}

// String returns the string representation of AuthMode.
func (m AuthMode) String() string {
	return string(m)
}

// Standard authentication errors.
var (
	// ErrNoCredentials indicates no credentials were provided.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrInvalidCredentials indicates credentials were invalid.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrExpiredCredentials indicates credentials have expired.
	ErrExpiredCredentials = errors.New("credentials expired")

	// ErrAuthenticatorUnavailable indicates the auth backend is unreachable.
	ErrAuthenticatorUnavailable = errors.New("authenticator unavailable")
)

// Authenticator extracts and validates credentials from a request.
// Implementations must be safe for concurrent use.
type Authenticator interface {
	// Authenticate returns the Subject for the request's credentials.
	// It returns ErrNoCredentials when the request carries none,
	// ErrInvalidCredentials or ErrExpiredCredentials when it carries
	// bad ones, and ErrAuthenticatorUnavailable when the backing store
	// cannot be reached.
	Authenticate(ctx context.Context, r *http.Request) (*Subject, error)

	// Name returns the authenticator's name for logging.
	Name() string
}

// Subject is an authenticated rider, normalized across auth modes.
type Subject struct {
	// ID is the rider's UUID from the users table. Twists, ratings and
	// the visible-set store all key on this value.
	ID string `json:"id"`

	// Username is the human-readable login name.
	Username string `json:"username"`

	// Email is the rider's email address when the provider supplies one.
	Email string `json:"email,omitempty"`

	// EmailVerified reports the OIDC email_verified claim.
	EmailVerified bool `json:"email_verified,omitempty"`

	// Roles contains the rider's roles ("rider", "admin"). The
	// authorization layer enforces them.
	Roles []string `json:"roles,omitempty"`

	// Groups contains OIDC group memberships, when mapped.
	Groups []string `json:"groups,omitempty"`

	// Issuer identifies the auth source: "local" for jwt/basic/none,
	// the provider's issuer URL for oidc.
	Issuer string `json:"issuer,omitempty"`

	// AuthMethod records how the subject authenticated.
	AuthMethod AuthMode `json:"auth_method"`

	// IssuedAt and ExpiresAt are Unix timestamps from the token or
	// session, zero when the mode has no expiry.
	IssuedAt  int64 `json:"issued_at,omitempty"`
	ExpiresAt int64 `json:"expires_at,omitempty"`

	// SessionID is set for session-backed subjects (oidc).
	SessionID string `json:"session_id,omitempty"`
}

// HasRole checks whether the subject carries a specific role.
func (s *Subject) HasRole(role string) bool {
	if role == "" {
		return false
	}
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole checks whether the subject carries any of the given roles.
func (s *Subject) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if s.HasRole(role) {
			return true
		}
	}
	return false
}

// Role returns the subject's primary role, or "" when it has none.
func (s *Subject) Role() string {
	if len(s.Roles) == 0 {
		return ""
	}
	return s.Roles[0]
}

// IsExpired checks whether the authentication has expired.
func (s *Subject) IsExpired() bool {
	if s.ExpiresAt == 0 {
		return false
	}
	return time.Now().Unix() > s.ExpiresAt
}
