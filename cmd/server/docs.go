// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

// Package main provides the MotoTwist HTTP server
//
// MotoTwist is a self-hosted catalog of motorcycle routes with an
// interactive map, road-snapped route capture, and per-criterion ratings.
//
// @title MotoTwist API
// @version 1.0
// @description Self-hosted motorcycle route catalog with interactive map authoring
// @description
// @description ## Features
// @description
// @description - **Route Capture**: Click-to-draw route authoring with OSRM road snapping
// @description - **Visible-Set Persistence**: Per-rider map visibility that survives reloads
// @description - **Ratings**: Paved and unpaved criteria sets, 1-5 scale
// @description - **Real-time Updates**: WebSocket map commands and UI signals
// @description
// @description ## Authentication
// @description
// @description Most endpoints require authentication. In JWT mode, use
// @description `/api/v1/auth/login` to obtain a token delivered as an HTTP-only cookie.
// @description
// @description ## Error Responses
// @description
// @description All error responses follow this format:
// @description ```json
// @description {
// @description   "status": "error",
// @description   "data": null,
// @description   "error": {
// @description     "code": "ERROR_CODE",
// @description     "message": "Human-readable error message",
// @description     "details": {}
// @description   },
// @description   "metadata": {
// @description     "timestamp": "2026-08-26T12:34:56Z"
// @description   }
// @description }
// @description ```
//
// @contact.name GitHub Repository
// @contact.url https://github.com/mototwist/mototwist/issues
//
// @license.name AGPL-3.0-or-later
// @license.url https://www.gnu.org/licenses/agpl-3.0.html
//
// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
//
// @securityDefinitions.apikey BearerAuth
// @in cookie
// @name token
// @description JWT token stored in HTTP-only cookie. Obtain via /api/v1/auth/login endpoint.
//
// @tag.name Twists
// @tag.description Route catalog: listing, creation, geometry, deletion
//
// @tag.name Capture
// @tag.description Interactive route capture sessions with road-snapped geometry
//
// @tag.name Map
// @tag.description Map configuration and per-rider visibility state
//
// @tag.name Ratings
// @tag.description Per-twist rating criteria
//
// @tag.name Auth
// @tag.description Authentication and session management endpoints
//
// @tag.name Realtime
// @tag.description WebSocket connection for map commands and UI signals
//
// @tag.name Admin
// @tag.description Administrative operations (users, audit trail, performance)
package main
