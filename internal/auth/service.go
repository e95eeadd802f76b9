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
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/mototwist/mototwist/internal/config"
	"github.com/mototwist/mototwist/internal/database"
	"github.com/mototwist/mototwist/internal/logging"
	"github.com/mototwist/mototwist/internal/models"
)

// sessionMetaIDToken is the session metadata key holding the provider's
// ID token for RP-initiated logout.
const sessionMetaIDToken = "id_token"

// Service is the authentication composition root. It owns the
// mode-specific managers and stores and exposes the operations the API
// layer calls: login, the OIDC redirect pair, and logout.
type Service struct {
	mode  AuthMode
	users UserStore
	cfg   *config.SecurityConfig

	middleware *Middleware

	// jwt mode
	jwt *JWTManager

	// oidc mode
	sessions SessionStore
	states   StateStore
	flow     *OIDCFlow
	janitor  *SessionJanitor

	// badgerDB backs sessions and states when session_store=badger.
	// Owned by the service; closed by Close.
	badgerDB *badger.DB
}

// NewService builds the service for the configured auth mode. The
// context bounds OIDC discovery; other modes ignore it.
func NewService(ctx context.Context, cfg *config.SecurityConfig, users UserStore) (*Service, error) {
	mode, err := ParseAuthMode(cfg.AuthMode)
	if err != nil {
		return nil, err
	}

	s := &Service{
		mode:  mode,
		users: users,
		cfg:   cfg,
	}

	var authenticator Authenticator

	switch mode {
	case AuthModeNone:
		logging.Warn().Msg("AUTHENTICATION DISABLED: every request acts as the admin. Do not expose this instance beyond a trusted network.")
		authenticator = NewLocalAuthenticator(users, cfg.AdminUsername)

	case AuthModeJWT:
		manager, err := NewJWTManager(cfg)
		if err != nil {
			return nil, err
		}
		s.jwt = manager
		authenticator = NewJWTAuthenticator(manager)

	case AuthModeBasic:
		authenticator = NewBasicAuthenticator(users)

	case AuthModeOIDC:
		if err := s.initOIDC(ctx, cfg); err != nil {
			return nil, err
		}
		authenticator = NewSessionAuthenticator(s.sessions, s.cookieName(), s.sessionLifetime())
	}

	middleware, err := NewMiddleware(authenticator)
	if err != nil {
		s.closeBadger()
		return nil, err
	}
	s.middleware = middleware

	logging.Info().
		Str("mode", mode.String()).
		Msg("Authentication service initialized")

	return s, nil
}

// initOIDC opens the session/state stores and runs provider discovery.
func (s *Service) initOIDC(ctx context.Context, cfg *config.SecurityConfig) error {
	switch cfg.SessionStore {
	case "badger":
		if cfg.SessionStorePath == "" {
			return fmt.Errorf("session_store_path is required when session_store=badger")
		}
		opts := badger.DefaultOptions(cfg.SessionStorePath)
		opts.Logger = nil
		opts.SyncWrites = true
		opts.ValueLogFileSize = 16 << 20 // sessions are tiny; keep vlog files small
		db, err := badger.Open(opts)
		if err != nil {
			return fmt.Errorf("open session store: %w", err)
		}
		s.badgerDB = db
		s.sessions = NewBadgerSessionStore(db)
		s.states = NewBadgerStateStore(db)
	case "memory", "":
		s.sessions = NewMemorySessionStore()
		s.states = NewMemoryStateStore()
	default:
		return fmt.Errorf("invalid session_store %q (memory or badger)", cfg.SessionStore)
	}

	relyingParty, err := NewRelyingParty(ctx, cfg.OIDC)
	if err != nil {
		s.closeBadger()
		return err
	}
	s.flow = NewOIDCFlow(relyingParty, s.states, cfg.OIDC.PKCEEnabled)
	s.janitor = NewSessionJanitor(s.sessions, s.states, 10*time.Minute)

	return nil
}

// Mode returns the active auth mode.
func (s *Service) Mode() AuthMode {
	return s.mode
}

// Middleware returns the RequireAuth middleware for the active mode.
func (s *Service) Middleware() *Middleware {
	return s.middleware
}

// Janitor returns the session cleanup service for the supervision
// tree, or nil when the mode keeps no sessions.
func (s *Service) Janitor() *SessionJanitor {
	return s.janitor
}

// Login verifies a username/password pair and issues a bearer token.
// Only meaningful in jwt mode; other modes reject it.
func (s *Service) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	if s.mode != AuthModeJWT {
		return "", nil, fmt.Errorf("login endpoint disabled in auth mode %s", s.mode)
	}

	user, err := VerifyCredentials(ctx, s.users, username, password)
	if err != nil {
		return "", nil, err
	}

	token, err := s.jwt.GenerateToken(user)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	return token, user, nil
}

// BeginOIDC starts the authorization code flow and returns the
// provider redirect URL.
func (s *Service) BeginOIDC(ctx context.Context, postLoginRedirect string) (string, error) {
	if s.flow == nil {
		return "", fmt.Errorf("oidc flow disabled in auth mode %s", s.mode)
	}
	return s.flow.AuthorizationURL(ctx, postLoginRedirect)
}

// CompleteOIDC finishes the flow: it exchanges the callback code,
// provisions the rider into the users table when absent, and creates
// the server-side session. It returns the session and the post-login
// redirect captured at BeginOIDC; the caller sets the session cookie.
func (s *Service) CompleteOIDC(ctx context.Context, code, state string) (*Session, string, error) {
	if s.flow == nil {
		return nil, "", fmt.Errorf("oidc flow disabled in auth mode %s", s.mode)
	}

	result, err := s.flow.HandleCallback(ctx, code, state)
	if err != nil {
		return nil, "", err
	}

	user, err := s.ensureRider(ctx, result.Subject)
	if err != nil {
		return nil, "", err
	}

	// The users table is authoritative once the rider exists; the
	// provider's roles claim only shapes the first provisioning.
	subject := result.Subject
	subject.ID = user.ID
	subject.Username = user.Username
	subject.Roles = []string{user.Role}

	session := NewSession(subject, s.sessionLifetime())
	if result.IDToken != "" {
		session.Metadata = map[string]string{sessionMetaIDToken: result.IDToken}
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", fmt.Errorf("create session: %w", err)
	}

	logging.Info().
		Str("user", user.Username).
		Str("session", session.ID[:8]+"...").
		Msg("OIDC login complete")

	return session, result.PostLoginRedirect, nil
}

// ensureRider resolves the OIDC subject to a users row, creating one
// on first login. Provisioned riders have no password hash, so they
// cannot fall back to password login.
func (s *Service) ensureRider(ctx context.Context, subject *Subject) (*models.User, error) {
	user, err := s.users.GetUserByUsername(ctx, subject.Username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAuthenticatorUnavailable, err.Error())
	}

	role := models.RoleRider
	if subject.HasRole(models.RoleAdmin) {
		role = models.RoleAdmin
	}
	newUser := &models.User{
		Username: subject.Username,
		Name:     subject.Username,
		Role:     role,
	}
	if err := s.users.CreateUser(ctx, newUser); err != nil {
		// Two first logins can race; the loser re-reads the winner's row.
		if errors.Is(err, database.ErrDuplicateUsername) {
			return s.users.GetUserByUsername(ctx, subject.Username)
		}
		return nil, fmt.Errorf("provision rider: %w", err)
	}

	logging.Info().
		Str("user", newUser.Username).
		Str("role", newUser.Role).
		Msg("Provisioned OIDC rider")

	return newUser, nil
}

// Logout tears down the request's session and returns the provider's
// RP-initiated logout URL, or "" when there is nothing to redirect to.
// The caller expires the cookie. Logout in jwt/basic/none modes is a
// client-side concern and returns "".
func (s *Service) Logout(ctx context.Context, r *http.Request, postLogoutRedirect string) (string, error) {
	if s.sessions == nil {
		return "", nil
	}

	cookie, err := r.Cookie(s.cookieName())
	if err != nil || cookie.Value == "" {
		return "", nil
	}

	session, err := s.sessions.Get(ctx, cookie.Value)
	if err != nil {
		// Expired or unknown session; nothing to tear down.
		return "", nil //nolint:nilerr
	}

	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		return "", fmt.Errorf("delete session: %w", err)
	}

	logging.Info().Str("user", session.Username).Msg("Session logged out")

	return s.flow.LogoutURL(session.Metadata[sessionMetaIDToken], postLogoutRedirect), nil
}

// SessionCookie builds the session cookie. A negative maxAge expires it.
func (s *Service) SessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     s.cookieName(),
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cfg.OIDC.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Service) cookieName() string {
	if s.cfg.OIDC.CookieName != "" {
		return s.cfg.OIDC.CookieName
	}
	return "mototwist_session"
}

// sessionLifetime is the OIDC session lifetime. OIDC_SESSION_MAX_AGE
// overrides the global SESSION_TIMEOUT when set.
func (s *Service) sessionLifetime() time.Duration {
	if s.cfg.OIDC.SessionMaxAge > 0 {
		return s.cfg.OIDC.SessionMaxAge
	}
	return s.cfg.SessionTimeout
}

// Close releases the session store.
func (s *Service) Close() error {
	return s.closeBadger()
}

// RunGC runs value-log garbage collection for the badger-backed
// session store until no further rewrite is possible. It is a no-op
// for the memory store. The supervision tree ticks it through
// supervisor.BadgerGC.
func (s *Service) RunGC() error {
	if s.badgerDB == nil {
		return nil
	}
	for {
		err := s.badgerDB.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("session store GC: %w", err)
		}
	}
}

func (s *Service) closeBadger() error {
	if s.badgerDB == nil {
		return nil
	}
	err := s.badgerDB.Close()
	s.badgerDB = nil
	return err
}
