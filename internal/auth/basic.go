// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/mototwist/mototwist/internal/database"
	"github.com/mototwist/mototwist/internal/models"
)

// bcryptCost balances hashing strength against login latency.
const bcryptCost = 12

// UserStore is the slice of the database layer the auth package needs.
// *database.DB satisfies it.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CountUsers(ctx context.Context) (int64, error)
	CreateUser(ctx context.Context, user *models.User) error
}

// HashPassword hashes a plaintext password for storage in the users
// table.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// timingPad is a throwaway bcrypt hash compared against when a login
// names an unknown rider, so lookup misses cost the same as mismatches.
var (
	timingPadOnce sync.Once
	timingPad     []byte
)

func timingPadHash() []byte {
	timingPadOnce.Do(func() {
		timingPad, _ = bcrypt.GenerateFromPassword([]byte("mototwist-timing-pad"), bcryptCost)
	})
	return timingPad
}

// VerifyCredentials checks a username/password pair against the users
// table. Returns ErrInvalidCredentials on any mismatch and
// ErrAuthenticatorUnavailable when the store cannot be queried.
func VerifyCredentials(ctx context.Context, users UserStore, username, password string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// Burn a comparison so absent riders are not distinguishable
			// from wrong passwords by response time.
			_ = bcrypt.CompareHashAndPassword(timingPadHash(), []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %s", ErrAuthenticatorUnavailable, err.Error())
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// BasicAuthenticator implements Authenticator for HTTP Basic requests.
// Every request costs a bcrypt comparison; the jwt mode is the better
// fit for browser traffic.
type BasicAuthenticator struct {
	users UserStore
}

// NewBasicAuthenticator creates a Basic authenticator over a user store.
func NewBasicAuthenticator(users UserStore) *BasicAuthenticator {
	return &BasicAuthenticator{users: users}
}

// Authenticate validates Basic credentials against the users table.
func (a *BasicAuthenticator) Authenticate(ctx context.Context, r *http.Request) (*Subject, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Basic ") {
		return nil, ErrNoCredentials
	}

	username, password, ok := r.BasicAuth()
	if !ok {
		return nil, ErrInvalidCredentials
	}

	user, err := VerifyCredentials(ctx, a.users, username, password)
	if err != nil {
		return nil, err
	}

	return SubjectFromUser(user, AuthModeBasic), nil
}

// Name returns the authenticator name.
func (a *BasicAuthenticator) Name() string {
	return string(AuthModeBasic)
}

// GetWWWAuthenticateHeader returns the challenge header sent with 401
// responses in basic mode.
func (a *BasicAuthenticator) GetWWWAuthenticateHeader() string {
	return `Basic realm="MotoTwist", charset="UTF-8"`
}

// SubjectFromUser builds a Subject from a users-table row.
func SubjectFromUser(user *models.User, method AuthMode) *Subject {
	return &Subject{
		ID:         user.ID,
		Username:   user.Username,
		Roles:      []string{user.Role},
		Issuer:     "local",
		AuthMethod: method,
	}
}
