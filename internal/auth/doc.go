// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

/*
Package auth implements authentication for the MotoTwist API.

Four modes are supported, selected by security.auth_mode:

  - jwt: riders log in with username/password against the users table
    and receive an HS256 bearer token (golang-jwt/jwt/v5). The token
    carries the rider's UUID, username and role.
  - basic: HTTP Basic credentials are verified against the users table
    with bcrypt on every request.
  - oidc: the certified zitadel/oidc/v3 relying party runs the
    authorization code flow with PKCE. Callback state lives in a
    StateStore, authenticated riders in a SessionStore; both have
    in-memory and BadgerDB-backed implementations. First-time OIDC
    riders are provisioned into the users table so twists and ratings
    can reference them.
  - none: every request acts as the bootstrapped admin. Intended for
    single-rider installs on trusted networks only; the server logs a
    loud warning at startup.

# Key Components

Service is the composition root: it parses the mode, builds the
matching Authenticator, opens the session/state stores, and exposes
the login, OIDC flow and logout operations the API layer calls.

Authenticator is the per-request strategy interface. Each mode
contributes one implementation (JWTAuthenticator, BasicAuthenticator,
SessionAuthenticator); all of them produce a *Subject.

Middleware wraps chi routes. It runs the configured Authenticator
and stores the resulting Subject in the request context, where
handlers and the authorization layer read it via SubjectFromContext.

# Identity

A Subject's ID is always the rider's UUID from the users table, never
a provider-specific identifier. Twists, ratings and the visible-set
store key on that UUID, so all modes resolve to a users row before a
request reaches a handler.

See Also:
  - internal/authz for role enforcement on top of the Subject
  - internal/database for the users table the subjects resolve against
*/
package auth
