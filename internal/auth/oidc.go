// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/zitadel/oidc/v3/pkg/client/rp"
	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/mototwist/mototwist/internal/config"
	"github.com/mototwist/mototwist/internal/logging"
	"github.com/mototwist/mototwist/internal/models"
)

// OIDC flow errors.
var (
	// ErrStateNotFound is returned for a callback with an unknown state.
	ErrStateNotFound = errors.New("state not found")

	// ErrStateExpired is returned for a callback whose state outlived its TTL.
	ErrStateExpired = errors.New("state expired")

	// ErrInvalidState wraps state validation failures on the callback.
	ErrInvalidState = errors.New("invalid state parameter")

	// ErrTokenExchangeFailed wraps authorization-code exchange failures.
	ErrTokenExchangeFailed = errors.New("token exchange failed")
)

// stateTTL bounds how long a login redirect may sit unconsumed.
const stateTTL = 10 * time.Minute

// RelyingParty wraps the certified zitadel OIDC client with MotoTwist's
// claims mapping. Construction performs OIDC discovery against the
// issuer, so the context should carry a timeout.
type RelyingParty struct {
	rp  rp.RelyingParty
	cfg config.OIDCConfig
}

// NewRelyingParty creates the relying party and runs discovery.
func NewRelyingParty(ctx context.Context, cfg config.OIDCConfig) (*RelyingParty, error) {
	if cfg.IssuerURL == "" {
		return nil, fmt.Errorf("oidc issuer_url is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("oidc client_id is required")
	}
	if cfg.RedirectURL == "" {
		return nil, fmt.Errorf("oidc redirect_url is required")
	}

	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"openid", "profile", "email"}
	}
	hasOpenID := false
	for _, scope := range cfg.Scopes {
		if scope == "openid" {
			hasOpenID = true
			break
		}
	}
	if !hasOpenID {
		return nil, fmt.Errorf("oidc scopes must include %q", "openid")
	}
	if cfg.RolesClaim == "" {
		cfg.RolesClaim = "roles"
	}
	if len(cfg.DefaultRoles) == 0 {
		cfg.DefaultRoles = []string{models.RoleRider}
	}
	if len(cfg.UsernameClaims) == 0 {
		cfg.UsernameClaims = []string{"preferred_username", "name", "email"}
	}

	options := []rp.Option{
		rp.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	}

	relyingParty, err := rp.NewRelyingPartyOIDC(ctx,
		cfg.IssuerURL,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.RedirectURL,
		cfg.Scopes,
		options...,
	)
	if err != nil {
		return nil, fmt.Errorf("create relying party: %w", err)
	}

	return &RelyingParty{rp: relyingParty, cfg: cfg}, nil
}

// Issuer returns the provider's issuer URL.
func (z *RelyingParty) Issuer() string {
	return z.rp.Issuer()
}

// EndSessionEndpoint returns the provider's end_session_endpoint, or ""
// when the provider does not support RP-initiated logout.
func (z *RelyingParty) EndSessionEndpoint() string {
	return z.rp.GetEndSessionEndpoint()
}

// mapClaims converts verified ID-token claims into a Subject. The
// returned Subject carries the provider's sub as its ID; CompleteOIDC
// replaces it with the rider's users-table UUID during provisioning.
func (z *RelyingParty) mapClaims(claims *oidc.IDTokenClaims) *Subject {
	if claims == nil {
		return nil
	}

	subject := &Subject{
		ID:            claims.Subject,
		Email:         claims.Email,
		EmailVerified: bool(claims.EmailVerified),
		Issuer:        claims.Issuer,
		AuthMethod:    AuthModeOIDC,
	}

	if !claims.IssuedAt.AsTime().IsZero() {
		subject.IssuedAt = claims.IssuedAt.AsTime().Unix()
	}
	if !claims.Expiration.AsTime().IsZero() {
		subject.ExpiresAt = claims.Expiration.AsTime().Unix()
	}

	subject.Username = z.extractUsername(claims)
	if subject.Username == "" {
		subject.Username = subject.ID
	}

	subject.Roles = extractStringSlice(claims.Claims, z.cfg.RolesClaim)
	if len(subject.Roles) == 0 {
		subject.Roles = make([]string, len(z.cfg.DefaultRoles))
		copy(subject.Roles, z.cfg.DefaultRoles)
	}
	subject.Groups = extractStringSlice(claims.Claims, "groups")

	return subject
}

// extractUsername tries the configured claims in order and returns the
// first non-empty value.
func (z *RelyingParty) extractUsername(claims *oidc.IDTokenClaims) string {
	for _, claimName := range z.cfg.UsernameClaims {
		switch claimName {
		case "preferred_username":
			if claims.PreferredUsername != "" {
				return claims.PreferredUsername
			}
		case "name":
			if claims.Name != "" {
				return claims.Name
			}
		case "email":
			if claims.Email != "" {
				return claims.Email
			}
		case "nickname":
			if claims.Nickname != "" {
				return claims.Nickname
			}
		default:
			if claims.Claims != nil {
				if val, ok := claims.Claims[claimName].(string); ok && val != "" {
					return val
				}
			}
		}
	}
	return ""
}

// extractStringSlice reads a claim that providers variously encode as
// []string, []any or a bare string.
func extractStringSlice(claims map[string]interface{}, claimName string) []string {
	if claims == nil || claimName == "" {
		return nil
	}
	val, ok := claims[claimName]
	if !ok {
		return nil
	}

	switch v := val.(type) {
	case []string:
		result := make([]string, len(v))
		copy(result, v)
		return result
	case []interface{}:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		if len(result) == 0 {
			return nil
		}
		return result
	case string:
		return []string{v}
	default:
		return nil
	}
}

// StateData is the server-side record of one in-flight login redirect.
type StateData struct {
	// CodeVerifier is the PKCE verifier sent with the code exchange.
	CodeVerifier string

	// PostLoginRedirect is where the browser goes after the callback.
	PostLoginRedirect string

	// Nonce binds the ID token to this redirect.
	Nonce string

	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired checks whether the state has outlived its TTL.
func (s *StateData) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// StateStore stores in-flight OIDC states. Implementations must be
// safe for concurrent use.
type StateStore interface {
	// Store saves state data under the given key.
	Store(ctx context.Context, key string, state *StateData) error

	// Get retrieves state data. Returns ErrStateNotFound or ErrStateExpired.
	Get(ctx context.Context, key string) (*StateData, error)

	// Delete removes state data; called once a state is consumed.
	Delete(ctx context.Context, key string) error

	// CleanupExpired removes expired states and returns the count.
	CleanupExpired(ctx context.Context) (int, error)
}

// MemoryStateStore is the in-memory StateStore used with the memory
// session backend.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]*StateData
}

// NewMemoryStateStore creates an in-memory state store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]*StateData)}
}

// Store saves state data under the given key.
func (s *MemoryStateStore) Store(ctx context.Context, key string, state *StateData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *state
	s.states[key] = &stored
	return nil
}

// Get retrieves state data by key.
func (s *MemoryStateStore) Get(ctx context.Context, key string) (*StateData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[key]
	if !ok {
		return nil, ErrStateNotFound
	}
	if state.IsExpired() {
		return nil, ErrStateExpired
	}
	copied := *state
	return &copied, nil
}

// Delete removes state data by key.
func (s *MemoryStateStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, key)
	return nil
}

// CleanupExpired removes all expired states.
func (s *MemoryStateStore) CleanupExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for key, state := range s.states {
		if state.IsExpired() {
			delete(s.states, key)
			count++
		}
	}
	return count, nil
}

// TokenResult is the outcome of a completed code exchange.
type TokenResult struct {
	AccessToken       string
	RefreshToken      string
	IDToken           string
	ExpiresIn         int
	PostLoginRedirect string

	// Subject holds the claims mapped from the verified ID token.
	Subject *Subject
}

// OIDCFlow drives the authorization code flow with PKCE. State lives
// in a StateStore so the flow works across server restarts when the
// store is badger-backed.
type OIDCFlow struct {
	rp     *RelyingParty
	states StateStore
	pkce   bool
}

// NewOIDCFlow creates a flow over a relying party and state store.
func NewOIDCFlow(relyingParty *RelyingParty, states StateStore, pkce bool) *OIDCFlow {
	return &OIDCFlow{
		rp:     relyingParty,
		states: states,
		pkce:   pkce,
	}
}

// AuthorizationURL generates the provider redirect for a new login.
// It stores the state (with nonce and PKCE verifier) before returning,
// so a crash between redirect and callback invalidates the login.
func (f *OIDCFlow) AuthorizationURL(ctx context.Context, postLoginRedirect string) (string, error) {
	stateKey, err := generateSecureRandom(32)
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := generateSecureRandom(32)
	if err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	now := time.Now()
	stateData := &StateData{
		PostLoginRedirect: postLoginRedirect,
		Nonce:             nonce,
		CreatedAt:         now,
		ExpiresAt:         now.Add(stateTTL),
	}

	var opts []rp.AuthURLOpt
	if f.pkce {
		verifier, err := generateSecureRandom(32)
		if err != nil {
			return "", fmt.Errorf("generate code verifier: %w", err)
		}
		stateData.CodeVerifier = verifier
		opts = append(opts, rp.WithCodeChallenge(oidc.NewSHACodeChallenge(verifier)))
	}

	authURL := rp.AuthURL(stateKey, f.rp.rp, opts...)

	parsedURL, err := url.Parse(authURL)
	if err != nil {
		return "", fmt.Errorf("parse auth URL: %w", err)
	}
	query := parsedURL.Query()
	query.Set("nonce", nonce)
	parsedURL.RawQuery = query.Encode()
	authURL = parsedURL.String()

	if err := f.states.Store(ctx, stateKey, stateData); err != nil {
		return "", fmt.Errorf("store state: %w", err)
	}

	logging.Debug().
		Str("state", stateKey[:8]+"...").
		Bool("pkce", f.pkce).
		Msg("Generated OIDC authorization URL")

	return authURL, nil
}

// HandleCallback validates the state, exchanges the code for tokens,
// verifies the nonce and maps the ID-token claims.
func (f *OIDCFlow) HandleCallback(ctx context.Context, code, state string) (*TokenResult, error) {
	stateData, err := f.consumeState(ctx, state)
	if err != nil {
		return nil, err
	}

	var opts []rp.CodeExchangeOpt
	if stateData.CodeVerifier != "" {
		opts = append(opts, rp.WithCodeVerifier(stateData.CodeVerifier))
	}

	tokens, err := rp.CodeExchange[*oidc.IDTokenClaims](ctx, code, f.rp.rp, opts...)
	if err != nil {
		logging.Error().Err(err).Msg("OIDC token exchange failed")
		return nil, fmt.Errorf("%w: %s", ErrTokenExchangeFailed, err.Error())
	}

	result := &TokenResult{
		AccessToken:       tokens.AccessToken,
		RefreshToken:      tokens.RefreshToken,
		IDToken:           tokens.IDToken,
		PostLoginRedirect: stateData.PostLoginRedirect,
	}
	if !tokens.Expiry.IsZero() {
		result.ExpiresIn = int(time.Until(tokens.Expiry).Seconds())
	}

	if tokens.IDTokenClaims == nil {
		return nil, fmt.Errorf("%w: no ID token claims", ErrInvalidCredentials)
	}
	if stateData.Nonce != "" && tokens.IDTokenClaims.Nonce != stateData.Nonce {
		logging.Warn().Msg("OIDC nonce mismatch")
		return nil, fmt.Errorf("%w: nonce mismatch", ErrInvalidCredentials)
	}

	result.Subject = f.rp.mapClaims(tokens.IDTokenClaims)

	logging.Info().
		Str("user", result.Subject.Username).
		Int("expires_in", result.ExpiresIn).
		Msg("OIDC token exchange successful")

	return result, nil
}

// consumeState validates the state and deletes it so a replayed
// callback fails.
func (f *OIDCFlow) consumeState(ctx context.Context, state string) (*StateData, error) {
	stateData, err := f.states.Get(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, err.Error())
	}

	if err := f.states.Delete(ctx, state); err != nil {
		logging.Warn().Err(err).Msg("Failed to delete consumed OIDC state")
	}

	return stateData, nil
}

// LogoutURL builds the provider's RP-initiated logout redirect, or
// returns "" when the provider lacks an end_session_endpoint.
func (f *OIDCFlow) LogoutURL(idToken, postLogoutRedirect string) string {
	endpoint := f.rp.EndSessionEndpoint()
	if endpoint == "" {
		return ""
	}

	parsedURL, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	query := parsedURL.Query()
	if idToken != "" {
		query.Set("id_token_hint", idToken)
	}
	if postLogoutRedirect != "" {
		query.Set("post_logout_redirect_uri", postLogoutRedirect)
	}
	parsedURL.RawQuery = query.Encode()
	return parsedURL.String()
}

// generateSecureRandom returns URL-safe random material for states,
// nonces and PKCE verifiers.
func generateSecureRandom(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
