// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

/*
Package main is the entry point for the MotoTwist server application.

MotoTwist is a self-hosted catalog of motorcycle routes ("twists"). Riders
draw routes on an interactive map through a capture session that snaps
waypoints to roads via OSRM, store and rate them, and toggle which routes
are rendered on their map, with the choice persisted across page loads.

# Application Architecture

The server implements a layered architecture with Suture v4 process
supervision:

	RootSupervisor ("mototwist")
	├── DataSupervisor ("data-layer")
	│   ├── Session janitor (badger/memory session expiry)
	│   ├── Audit janitor (retention pruning)
	│   ├── Badger GC (visible-set store, sessions)
	│   ├── Capture manager (idle session sweeper)
	│   └── Backup scheduler (optional)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocket Hub (map commands and UI signals)
	│   └── Event Forwarder (domain events → UI fan-out)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (Chi router with middleware stack)

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Logging: zerolog with JSON/console output modes
 3. Database: DuckDB catalog (users, twists, ratings, audit trail)
 4. Visibility store: BadgerDB per-rider visible-set persistence
 5. Routing: OSRM client behind a gobreaker circuit breaker
 6. WebSocket Hub + capture/layer engines wired through its bridge
 7. Event bus: in-process channel, or NATS JetStream with -tags nats
 8. Authentication: JWT, Basic Auth, OIDC, or no-auth mode
 9. Authorization: Casbin RBAC (rider/admin)
 10. Supervisor Tree: Suture v4 process supervision

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest
priority wins):

	Priority: Environment variables > Config file > Defaults

Core environment variables:

	# Server
	HTTP_PORT=8000
	LOG_LEVEL=info               # trace, debug, info, warn, error
	LOG_FORMAT=json              # json or console

	# Authentication (choose one mode)
	AUTH_MODE=jwt                # jwt, basic, oidc, or none
	MOTOTWIST_SECRET_KEY=<32+ chars>
	MOTOTWIST_ADMIN_USERNAME=admin
	MOTOTWIST_ADMIN_PASSWORD=<password>

	# Routing service
	OSRM_URL=https://router.project-osrm.org

	# Capture
	TWIST_SIMPLIFICATION_TOLERANCE_M=25m
	CAPTURE_SESSION_TTL=30m

	# State
	DATABASE_PATH=/data/mototwist.duckdb
	VISIBILITY_STORE_PATH=/data/state

# Build Tags

Optional build tags enable additional functionality:

	go build -tags "nats" ./cmd/server      # NATS JetStream event bus
	go build -tags "integration" ./...      # testcontainers suites

# Signal Handling

The server handles graceful shutdown on SIGINT and SIGTERM: the HTTP
server stops accepting connections and drains in-flight requests (10s
timeout), supervised services stop layer by layer, then the event bus,
auth stores, visibility store and database close in reverse order of
construction.
*/
package main
