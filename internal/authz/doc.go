// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

// Package authz enforces role-based access control with Casbin.
//
// Every authenticated request carries an auth.Subject whose roles come
// from the users table (or, for OIDC, from the provider's role claim at
// first login). This package decides whether that subject may touch a
// given path with a given action.
//
// # Model
//
// Requests are (subject, object, action) triples matched against an
// RBAC model with role inheritance:
//
//	[request_definition]
//	r = sub, obj, act
//
//	[policy_definition]
//	p = sub, obj, act
//
//	[role_definition]
//	g = _, _
//
//	[policy_effect]
//	e = some(where (p.eft == allow))
//
//	[matchers]
//	m = g(r.sub, p.sub) && keyMatch(r.obj, p.obj) && r.act == p.act
//
// Objects are request paths; keyMatch gives glob-style patterns such as
// /api/v1/twists* covering /api/v1/twists/{id}/ratings. Actions are
// read, write and delete, derived from the HTTP method.
//
// # Roles
//
// Two roles ship embedded in policy.csv:
//
//   - rider: browse the catalog, capture and create twists, rate
//     routes, manage their own visible set, hold a map socket.
//   - admin: inherits rider and additionally manages users, policy and
//     the audit trail.
//
// Ownership is not expressible in path patterns, so owner-or-admin
// rules (twist and rating deletion) live in Service.RequireOwnerOrAdmin
// and are called from the handlers after the path-level check passes.
//
// # Policy sources
//
// The model and policy embed into the binary. CASBIN_MODEL_PATH and
// CASBIN_POLICY_PATH switch to external files; with CASBIN_AUTO_RELOAD
// the policy file is re-read every CASBIN_RELOAD_INTERVAL, so role
// grants can change without a restart.
//
// # Usage
//
//	enforcer, err := authz.NewEnforcer(&cfg.Security.Casbin)
//	service := authz.NewService(enforcer, auditLogger)
//	router.Use(authMiddleware.RequireAuth, authz.NewMiddleware(service).Authorize)
//
// Decisions are cached per (subject, object, action) for CacheTTL and
// surface in the authz_* Prometheus metrics.
package authz
