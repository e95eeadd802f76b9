// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package api

import (
	"net/http"
	"time"

	"github.com/mototwist/mototwist/internal/models"
)

// version is reported by the health endpoint.
const version = "1.0.0"

// Health handles health check requests
//
// @Summary Get system health status
// @Description Returns health status including database connectivity, OSRM routing connectivity and uptime
// @Tags Health
// @Accept json
// @Produce json
// @Success 200 {object} models.APIResponse "Health status retrieved successfully"
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbConnected := h.db != nil && h.db.Ping(ctx) == nil
	routingConnected := h.routing != nil && h.routing.Ping(ctx) == nil

	// The catalog serves without OSRM; only a dead database degrades the
	// whole service. A dead router degrades capture only.
	status := "healthy"
	if !dbConnected || !routingConnected {
		status = "degraded"
	}

	health := map[string]interface{}{
		"status":             status,
		"version":            version,
		"database_connected": dbConnected,
		"routing_connected":  routingConnected,
		"uptime":             time.Since(h.startTime).Seconds(),
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   health,
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// HealthLive handles liveness probe requests (Kubernetes-style).
// Returns 200 OK if the process is alive, regardless of dependencies.
//
// @Summary Liveness probe
// @Description Returns 200 OK if the process is alive, regardless of external dependencies
// @Tags Health
// @Accept json
// @Produce json
// @Success 200 {object} models.APIResponse "Service is alive"
// @Router /health/live [get]
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"alive":  true,
			"uptime": time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// HealthReady handles readiness probe requests (Kubernetes-style).
// Ready means the database answers; OSRM being down degrades capture but
// the catalog still serves, so it does not gate readiness.
//
// @Summary Readiness probe
// @Description Returns 200 OK when the service is ready to handle traffic, 503 otherwise
// @Tags Health
// @Accept json
// @Produce json
// @Success 200 {object} models.APIResponse "Service is ready"
// @Failure 503 {object} models.APIResponse "Service is not ready"
// @Router /health/ready [get]
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbConnected := h.db != nil && h.db.Ping(ctx) == nil
	routingConnected := h.routing != nil && h.routing.Ping(ctx) == nil
	ready := dbConnected

	statusCode := http.StatusOK
	status := "ready"
	if !ready {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	respondJSON(w, statusCode, &models.APIResponse{
		Status: status,
		Data: map[string]interface{}{
			"database_connected": dbConnected,
			"routing_connected":  routingConnected,
			"ready_to_serve":     ready,
			"uptime":             time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// PerformanceStats returns per-endpoint latency statistics from the
// in-process performance monitor. Admin only.
//
// @Summary Get endpoint performance statistics
// @Description Returns per-endpoint request counts and latency percentiles from the last 1000 requests
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.APIResponse "Performance statistics retrieved successfully"
// @Failure 401 {object} models.APIResponse "Unauthorized"
// @Failure 403 {object} models.APIResponse "Forbidden"
// @Router /performance [get]
func (h *Handler) PerformanceStats(w http.ResponseWriter, r *http.Request) {
	stats := h.perfMon.GetStats()

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   stats,
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}
