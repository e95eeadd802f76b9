// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mototwist/mototwist/internal/audit"
	"github.com/mototwist/mototwist/internal/auth"
	"github.com/mototwist/mototwist/internal/authz"
	"github.com/mototwist/mototwist/internal/cache"
	"github.com/mototwist/mototwist/internal/capture"
	"github.com/mototwist/mototwist/internal/config"
	"github.com/mototwist/mototwist/internal/database"
	"github.com/mototwist/mototwist/internal/events"
	"github.com/mototwist/mototwist/internal/logging"
	"github.com/mototwist/mototwist/internal/maplayers"
	"github.com/mototwist/mototwist/internal/middleware"
	"github.com/mototwist/mototwist/internal/models"
	"github.com/mototwist/mototwist/internal/routing"
	"github.com/mototwist/mototwist/internal/visstore"
	ws "github.com/mototwist/mototwist/internal/websocket"
)

// HandlerDeps bundles everything the endpoint handlers touch. All fields
// except DB and Config may be nil; handlers for the missing subsystem
// respond 503 instead of panicking.
type HandlerDeps struct {
	DB      *database.DB
	Config  *config.Config
	Routing routing.Router
	Capture *capture.Manager
	Layers  *maplayers.Manager
	Visible *visstore.Store
	WSHub   *ws.Hub
	Auth    *auth.Service
	Authz   *authz.Service
	Audit   *audit.Logger
	Bus     *events.Bus
}

// Handler implements the HTTP endpoints. Methods are split across files
// by domain:
//   - handlers_health.go: liveness/readiness probes
//   - handlers_auth.go: login, OIDC flow, logout, identity
//   - handlers_twists.go: catalog listing, create, geometry, delete
//   - handlers_suggest.go: twist name autocomplete
//   - handlers_ratings.go: per-twist rating criteria
//   - handlers_map.go: visibility state and map page config
//   - handlers_capture.go: the route capture session
//   - handlers_users.go: admin rider management
//   - handlers_audit.go: admin audit trail listing
//   - handlers_websocket.go: the /ws upgrade
type Handler struct {
	db        *database.DB
	config    *config.Config
	routing   routing.Router
	capture   *capture.Manager
	layers    *maplayers.Manager
	visible   *visstore.Store
	wsHub     *ws.Hub
	auth      *auth.Service
	authz     *authz.Service
	audit     *audit.Logger
	bus       *events.Bus
	listCache cache.Cacher
	suggest   *cache.Trie
	perfMon   *middleware.PerformanceMonitor
	startTime time.Time
}

// NewHandler creates the API handler from its dependency bundle. The
// handler initializes a performance monitor tracking the last 1000
// requests for the admin performance endpoint, the catalog query cache
// (eviction strategy per API_CACHE_BACKEND, disabled when API_CACHE_TTL
// is zero) and the twist name autocomplete trie.
func NewHandler(deps HandlerDeps) *Handler {
	h := &Handler{
		db:        deps.DB,
		config:    deps.Config,
		routing:   deps.Routing,
		capture:   deps.Capture,
		layers:    deps.Layers,
		visible:   deps.Visible,
		wsHub:     deps.WSHub,
		auth:      deps.Auth,
		authz:     deps.Authz,
		audit:     deps.Audit,
		bus:       deps.Bus,
		suggest:   cache.NewTrieWithOptions(false, maxSuggestions),
		perfMon:   middleware.NewPerformanceMonitor(1000),
		startTime: time.Now(),
	}
	if deps.Config != nil && deps.Config.API.CacheTTL > 0 {
		h.listCache = cache.NewCacher(cache.CacheConfig{
			Type: cache.CacheType(deps.Config.API.CacheBackend),
			TTL:  deps.Config.API.CacheTTL,
		})
	}
	return h
}

// invalidateListCache drops every cached catalog page. Called whenever
// a write changes what any list response could contain; ratings count
// because the rated filter depends on them.
func (h *Handler) invalidateListCache() {
	if h.listCache != nil {
		h.listCache.Clear()
	}
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout against slow-client attacks.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins. Browser
// WebSockets always send Origin, so an empty header is rejected rather
// than treated as same-origin.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	if h.config == nil {
		return true
	}

	for _, allowed := range h.config.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().
		Str("origin", sanitizeLogValue(origin)).
		Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// viewerFromSubject converts the authenticated subject into the user
// shape the database layer filters by. Returns nil for nil subjects so
// unauthenticated paths degrade to the public view.
func viewerFromSubject(s *auth.Subject) *models.User {
	if s == nil {
		return nil
	}
	return &models.User{
		ID:       s.ID,
		Username: s.Username,
		Name:     s.Username,
		Role:     s.Role(),
	}
}

// requireSubject extracts the authenticated subject or writes a 401. The
// auth middleware normally guarantees presence; this guards handlers
// mounted without it by mistake.
func requireSubject(w http.ResponseWriter, r *http.Request) (*auth.Subject, bool) {
	subject := auth.SubjectFromContext(r.Context())
	if subject == nil {
		respondError(w, http.StatusUnauthorized, "AUTH_REQUIRED", "Authentication required", nil)
		return nil, false
	}
	return subject, true
}

// requireDB responds 503 when the database is unavailable.
func (h *Handler) requireDB(w http.ResponseWriter) bool {
	if h.db == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_ERROR", "Database not available", nil)
		return false
	}
	return true
}
