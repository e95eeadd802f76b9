// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package api

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/mototwist/mototwist/internal/auth"
	"github.com/mototwist/mototwist/internal/authz"
	"github.com/mototwist/mototwist/internal/middleware"
)

// staticDir is where the map page assets are deployed.
const staticDir = "./web/static"

// chiMiddleware adapts http.HandlerFunc middleware to chi's
// func(http.Handler) http.Handler, so the in-house middleware
// (RequestID, Compression, PrometheusMetrics) works with r.Use().
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Router assembles the HTTP route tree around the handler and the
// authentication/authorization middleware.
type Router struct {
	handler       *Handler
	auth          *auth.Middleware
	authz         *authz.Middleware
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. CORS origins and the default rate limit
// come from the handler's security configuration.
func NewRouter(handler *Handler, authMW *auth.Middleware, authzMW *authz.Middleware) *Router {
	var sec *ChiMiddleware
	if handler.config != nil {
		sec = NewChiMiddlewareFromConfig(&handler.config.Security)
	} else {
		sec = NewChiMiddleware(nil)
	}

	return &Router{
		handler:       handler,
		auth:          authMW,
		authz:         authzMW,
		chiMiddleware: sec,
	}
}

// Routes configures the complete route tree.
//
// Layout:
//   - /api/v1/health/* - unauthenticated probes, permissive limit
//   - /api/v1/auth/* - login and OIDC flow, strict limits
//   - /api/v1/capture/* - authenticated, generous limit (interactive)
//   - /api/v1/* - authenticated catalog/map/admin endpoints
//   - /ws - authenticated WebSocket upgrade
//   - /metrics, /swagger/* - observability
//   - /* - static map page, must be last
func (router *Router) Routes() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order. CORS is global
	// so OPTIONS preflight requests resolve before any auth check.
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	// Health probes.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// Authentication endpoints. Login gets the strictest limit.
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitAuth())
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		r.With(router.chiMiddleware.RateLimitLogin()).Post("/login", router.handler.Login)
		r.Get("/oidc/login", router.handler.OIDCBegin)
		r.Get("/oidc/callback", router.handler.OIDCCallback)
		r.Post("/logout", router.handler.Logout)
	})

	// Capture session endpoints. Separate group because dragging a
	// waypoint fires a request per drag step, which the default API
	// limit would throttle.
	r.Route("/api/v1/capture", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitCapture())
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(chiMiddleware(middleware.Compression))
		r.Use(router.handler.perfMon.Middleware)
		r.Use(router.auth.RequireAuth)
		r.Use(router.authz.Authorize)

		r.Get("/", router.handler.CaptureSnapshot)
		r.Post("/start", router.handler.StartCapture)
		r.Post("/waypoints", router.handler.AddCaptureWaypoint)
		r.Patch("/waypoints/{index}", router.handler.UpdateCaptureWaypoint)
		r.Delete("/waypoints/{index}", router.handler.RemoveCaptureWaypoint)
		r.Post("/finalize", router.handler.FinalizeCapture)
		r.Post("/cancel", router.handler.CancelCapture)
	})

	// Core API endpoints. Everything here requires authentication and
	// passes the authorization policy; write verbs add a tighter limit.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(chiMiddleware(middleware.Compression))
		r.Use(router.handler.perfMon.Middleware)
		r.Use(router.auth.RequireAuth)
		r.Use(router.authz.Authorize)

		write := router.chiMiddleware.RateLimitWrite()

		r.Get("/auth/me", router.handler.Me)

		r.Route("/twists", func(r chi.Router) {
			r.Get("/", router.handler.ListTwists)
			r.Get("/suggest", router.handler.SuggestTwists)
			r.With(write).Post("/", router.handler.CreateTwist)
			r.Get("/{id}/geometry", router.handler.TwistGeometry)
			r.With(write).Delete("/{id}", router.handler.DeleteTwist)

			r.Get("/{id}/ratings", router.handler.ListRatings)
			r.With(write).Post("/{id}/ratings", router.handler.CreateRating)
			r.With(write).Delete("/{id}/ratings/{ratingID}", router.handler.DeleteRating)
		})

		r.Route("/map", func(r chi.Router) {
			r.Get("/config", router.handler.MapConfig)
			r.Get("/visibility", router.handler.GetVisibility)
			r.Post("/visibility", router.handler.SetVisibility)
			r.Post("/visibility/apply", router.handler.ApplyVisibility)
		})

		// Admin surface: the authorization policy grants /api/v1/users,
		// /api/v1/audit and /api/v1/performance to the admin role only.
		r.Route("/users", func(r chi.Router) {
			r.Get("/", router.handler.ListUsers)
			r.With(write).Post("/", router.handler.CreateUser)
			r.With(write).Patch("/{id}", router.handler.UpdateUser)
			r.With(write).Delete("/{id}", router.handler.DeleteUser)
		})
		r.Get("/audit", router.handler.ListAuditEvents)
		r.Get("/performance", router.handler.PerformanceStats)
	})

	// Realtime map commands and UI signals.
	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitCustom(RateLimitWebSocket))
		r.Use(router.auth.RequireAuth)
		r.Use(router.authz.Require("/ws", "read"))
		r.Get("/ws", router.handler.WebSocket)
	})

	// Observability.
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	// Static map page. Must be last; catches all unmatched routes.
	r.Group(func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.Compression))
		r.Get("/*", router.serveStaticOrIndex)
	})

	return r
}

// serveStaticOrIndex serves static map page assets, falling back to
// index.html so map deep links resolve client-side.
func (router *Router) serveStaticOrIndex(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case strings.HasSuffix(path, ".js") || strings.HasSuffix(path, ".css"):
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	case strings.HasSuffix(path, ".png") || strings.HasSuffix(path, ".svg") ||
		strings.HasSuffix(path, ".webp") || strings.HasSuffix(path, ".jpg"):
		w.Header().Set("Cache-Control", "public, max-age=604800")
	default:
		w.Header().Set("Cache-Control", "public, max-age=300")
	}

	if path != "/" && fileExists(path) {
		http.FileServer(http.Dir(staticDir)).ServeHTTP(w, r)
		return
	}

	http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
}

// fileExists checks whether a static asset exists (and is not a
// directory) under the static root.
func fileExists(path string) bool {
	f, err := http.Dir(staticDir).Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return !stat.IsDir()
}
