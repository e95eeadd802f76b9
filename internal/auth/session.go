// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/mototwist/mototwist/internal/logging"
)

// Session-related errors.
var (
	// ErrSessionNotFound is returned when a session is not in the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when a session exists but has expired.
	ErrSessionExpired = errors.New("session expired")
)

// Session is an authenticated rider's server-side session. OIDC mode
// creates one per login; the session cookie carries only the ID.
type Session struct {
	// ID is the opaque session identifier stored in the cookie.
	ID string

	// UserID is the rider's UUID from the users table.
	UserID string

	// Username and Email mirror the users row at login time.
	Username string
	Email    string

	// Roles are the rider's roles for authorization.
	Roles []string

	// Groups are OIDC group memberships, when mapped.
	Groups []string

	// Provider is the auth mode that created the session.
	Provider string

	CreatedAt      time.Time
	ExpiresAt      time.Time
	LastAccessedAt time.Time

	// Metadata holds provider tokens (id_token for RP-initiated logout,
	// refresh_token when the provider issues one).
	Metadata map[string]string
}

// IsExpired returns true when the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Subject converts the session into a request Subject.
func (s *Session) Subject() *Subject {
	return &Subject{
		ID:         s.UserID,
		Username:   s.Username,
		Email:      s.Email,
		Roles:      s.Roles,
		Groups:     s.Groups,
		Issuer:     s.Provider,
		AuthMethod: AuthModeOIDC,
		IssuedAt:   s.CreatedAt.Unix(),
		ExpiresAt:  s.ExpiresAt.Unix(),
		SessionID:  s.ID,
	}
}

// clone deep-copies the session so stores never hand out shared state.
func (s *Session) clone() *Session {
	copied := &Session{
		ID:             s.ID,
		UserID:         s.UserID,
		Username:       s.Username,
		Email:          s.Email,
		Provider:       s.Provider,
		CreatedAt:      s.CreatedAt,
		ExpiresAt:      s.ExpiresAt,
		LastAccessedAt: s.LastAccessedAt,
	}
	if s.Roles != nil {
		copied.Roles = make([]string, len(s.Roles))
		copy(copied.Roles, s.Roles)
	}
	if s.Groups != nil {
		copied.Groups = make([]string, len(s.Groups))
		copy(copied.Groups, s.Groups)
	}
	if s.Metadata != nil {
		copied.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			copied.Metadata[k] = v
		}
	}
	return copied
}

// NewSession creates a session for a subject with the given lifetime.
func NewSession(subject *Subject, duration time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:             generateSessionID(),
		UserID:         subject.ID,
		Username:       subject.Username,
		Email:          subject.Email,
		Roles:          subject.Roles,
		Groups:         subject.Groups,
		Provider:       string(subject.AuthMethod),
		CreatedAt:      now,
		ExpiresAt:      now.Add(duration),
		LastAccessedAt: now,
	}
}

// generateSessionID generates a cryptographically secure session ID.
func generateSessionID() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		// rand.Read failing means the platform entropy source is broken;
		// a timestamp-derived ID at least stays unique per process.
		return hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(bytes)
}

// SessionStore is the storage backend for sessions. Implementations
// must be safe for concurrent use.
type SessionStore interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// Get retrieves a session by ID. Returns ErrSessionNotFound when
	// absent and ErrSessionExpired when present but past its expiry.
	Get(ctx context.Context, id string) (*Session, error)

	// Touch updates LastAccessedAt and extends the expiry.
	Touch(ctx context.Context, id string, newExpiry time.Time) error

	// Delete removes a session. Deleting an absent session is not an error.
	Delete(ctx context.Context, id string) error

	// DeleteByUserID removes all of a rider's sessions and returns the count.
	DeleteByUserID(ctx context.Context, userID string) (int, error)

	// CleanupExpired removes expired sessions and returns the count.
	CleanupExpired(ctx context.Context) (int, error)

	// Count returns the number of live sessions.
	Count(ctx context.Context) (int, error)
}

// MemorySessionStore keeps sessions in a map. Suitable for development
// and tests; production installs use the BadgerDB store so sessions
// survive restarts.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemorySessionStore creates an in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*Session),
	}
}

// Create stores a new session.
func (s *MemorySessionStore) Create(ctx context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session.clone()
	return nil
}

// Get retrieves a session by ID.
func (s *MemorySessionStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.IsExpired() {
		return nil, ErrSessionExpired
	}
	return session.clone(), nil
}

// Touch updates the session's last access time and extends its expiry.
func (s *MemorySessionStore) Touch(ctx context.Context, id string, newExpiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	session.LastAccessedAt = time.Now()
	session.ExpiresAt = newExpiry
	return nil
}

// Delete removes a session by ID.
func (s *MemorySessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// DeleteByUserID removes all sessions for a rider.
func (s *MemorySessionStore) DeleteByUserID(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, id)
			count++
		}
	}
	return count, nil
}

// CleanupExpired removes all expired sessions.
func (s *MemorySessionStore) CleanupExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, session := range s.sessions {
		if session.IsExpired() {
			delete(s.sessions, id)
			count++
		}
	}
	return count, nil
}

// Count returns the number of live sessions.
func (s *MemorySessionStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, session := range s.sessions {
		if !session.IsExpired() {
			count++
		}
	}
	return count, nil
}

// SessionJanitor periodically evicts expired sessions and OIDC states.
// It runs as a service under the supervision tree.
type SessionJanitor struct {
	sessions SessionStore
	states   StateStore
	interval time.Duration
}

// NewSessionJanitor creates a janitor over the given stores. Either
// store may be nil; the janitor skips it. A zero interval defaults to
// ten minutes.
func NewSessionJanitor(sessions SessionStore, states StateStore, interval time.Duration) *SessionJanitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &SessionJanitor{
		sessions: sessions,
		states:   states,
		interval: interval,
	}
}

// String names the janitor in supervisor logs.
func (j *SessionJanitor) String() string {
	return "session-janitor"
}

// Serve runs the cleanup loop until the context is cancelled.
func (j *SessionJanitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *SessionJanitor) sweep(ctx context.Context) {
	if j.sessions != nil {
		if n, err := j.sessions.CleanupExpired(ctx); err != nil {
			logging.Warn().Err(err).Msg("Session cleanup failed")
		} else if n > 0 {
			logging.Debug().Int("removed", n).Msg("Evicted expired sessions")
		}
	}
	if j.states != nil {
		if n, err := j.states.CleanupExpired(ctx); err != nil {
			logging.Warn().Err(err).Msg("OIDC state cleanup failed")
		} else if n > 0 {
			logging.Debug().Int("removed", n).Msg("Evicted expired OIDC states")
		}
	}
}

// SessionAuthenticator implements Authenticator for session cookies.
// OIDC mode uses it for every request after the callback completes.
type SessionAuthenticator struct {
	store      SessionStore
	cookieName string
	lifetime   time.Duration
}

// NewSessionAuthenticator creates a session authenticator. Each
// successful authentication slides the session expiry forward by the
// configured lifetime.
func NewSessionAuthenticator(store SessionStore, cookieName string, lifetime time.Duration) *SessionAuthenticator {
	return &SessionAuthenticator{
		store:      store,
		cookieName: cookieName,
		lifetime:   lifetime,
	}
}

// Authenticate resolves the session cookie to a Subject.
func (a *SessionAuthenticator) Authenticate(ctx context.Context, r *http.Request) (*Subject, error) {
	cookie, err := r.Cookie(a.cookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoCredentials
	}

	session, err := a.store.Get(ctx, cookie.Value)
	if err != nil {
		switch {
		case errors.Is(err, ErrSessionNotFound):
			return nil, ErrInvalidCredentials
		case errors.Is(err, ErrSessionExpired):
			return nil, ErrExpiredCredentials
		default:
			return nil, ErrAuthenticatorUnavailable
		}
	}

	// Sliding expiry. A failed touch is not fatal; the session was valid.
	if err := a.store.Touch(ctx, session.ID, time.Now().Add(a.lifetime)); err != nil {
		logging.Debug().Err(err).Msg("Session touch failed")
	}

	return session.Subject(), nil
}

// Name returns the authenticator name.
func (a *SessionAuthenticator) Name() string {
	return "session"
}

// CookieName returns the configured session cookie name.
func (a *SessionAuthenticator) CookieName() string {
	return a.cookieName
}
