// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

/*
Package api provides the HTTP surface of MotoTwist: the versioned JSON
API under /api/v1, the WebSocket endpoint, Prometheus metrics, Swagger
documentation and the static map page.

Key Components:

  - Handler: holds every dependency the endpoint handlers need (database,
    capture manager, layer manager, auth/authz services, audit logger,
    event bus) and implements the handler methods, split across files by
    domain (handlers_twists.go, handlers_capture.go, ...).
  - Router: builds the chi route tree with per-group middleware stacks
    (rate limits, security headers, Prometheus instrumentation,
    authentication, authorization).
  - ChiMiddleware: CORS and rate limiting built on go-chi/cors and
    go-chi/httprate, with per-endpoint-class limits.

API Categories:

  - Health: /api/v1/health{,/live,/ready} - unauthenticated probes
  - Auth: /api/v1/auth/* - login, OIDC flow, logout, identity
  - Twists: /api/v1/twists* - catalog listing, name suggestions, create,
    geometry, delete, ratings
  - Map: /api/v1/map/* - per-rider visibility state and map page config
  - Capture: /api/v1/capture* - the interactive route capture session
  - Admin: /api/v1/users*, /api/v1/audit - rider management, audit trail
  - Realtime: /ws - map commands and UI signals
  - Observability: /metrics, /swagger/*

Usage:

	handler := api.NewHandler(deps)
	router := api.NewRouter(handler, authMW, authzMW)
	http.ListenAndServe(cfg.Server.ListenAddr(), router.Routes())

All responses use the models.APIResponse envelope. Errors carry a stable
machine-readable code next to the human-readable message.

Thread Safety: Handler methods are stateless apart from the injected
dependencies, which are all safe for concurrent use.
*/
package api
