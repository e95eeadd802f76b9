// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/mototwist/mototwist/internal/database"
	"github.com/mototwist/mototwist/internal/models"
)

// MapConfig tells the map page where its tiles come from and where to
// center before any layer is shown.
//
// @Summary Get map configuration
// @Description Returns the OSM tile URL template and the default map center and zoom
// @Tags Map
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.APIResponse "Map configuration retrieved successfully"
// @Failure 401 {object} models.APIResponse "Unauthorized"
// @Router /map/config [get]
func (h *Handler) MapConfig(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireSubject(w, r); !ok {
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]any{
			"osm_url":           h.config.Map.OSMURL,
			"default_latitude":  h.config.Map.DefaultLatitude,
			"default_longitude": h.config.Map.DefaultLongitude,
			"default_zoom":      h.config.Map.DefaultZoom,
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// GetVisibility returns the rider's persisted visible-set. stored reports
// whether a set was ever materialized; a rider who hid every twist gets
// an empty list with stored true, a rider who never toggled gets stored
// false.
//
// @Summary Get stored visibility
// @Description Returns the twist ids in the rider's persisted visible-set
// @Tags Map
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.APIResponse "Visible-set retrieved successfully"
// @Failure 401 {object} models.APIResponse "Unauthorized"
// @Failure 503 {object} models.APIResponse "Visibility store unavailable"
// @Router /map/visibility [get]
func (h *Handler) GetVisibility(w http.ResponseWriter, r *http.Request) {
	subject, ok := requireSubject(w, r)
	if !ok {
		return
	}
	if h.visible == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_ERROR", "Visibility store not available", nil)
		return
	}

	ids, stored, err := h.visible.Get(r.Context(), subject.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "SERVICE_ERROR", "Failed to load visibility state", err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]any{
			"ids":    ids,
			"stored": stored,
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// SetVisibility shows or hides one twist on the rider's map and persists
// the change. The first show of a twist fetches and caches its geometry;
// later shows reattach the cached layer.
//
// @Summary Set twist visibility
// @Description Shows or hides a twist layer, optionally focusing the map on it, and persists the visible-set membership
// @Tags Map
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param visibility body SetVisibilityRequest true "Visibility change"
// @Success 200 {object} models.APIResponse "Visibility updated successfully"
// @Failure 400 {object} models.APIResponse "Invalid request body"
// @Failure 401 {object} models.APIResponse "Unauthorized"
// @Failure 404 {object} models.APIResponse "Twist not found"
// @Failure 503 {object} models.APIResponse "Layer manager unavailable"
// @Router /map/visibility [post]
func (h *Handler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	subject, ok := requireSubject(w, r)
	if !ok {
		return
	}
	if h.layers == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_ERROR", "Layer manager not available", nil)
		return
	}

	var req SetVisibilityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	if err := h.layers.SetVisibility(r.Context(), subject.ID, req.TwistID, *req.Visible, req.Focus); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "twist not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "SERVICE_ERROR", "Failed to update visibility", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]any{
			"twist_id": req.TwistID,
			"visible":  *req.Visible,
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// ApplyVisibility replays the rider's stored visible-set over the twist
// ids currently listed on their catalog page. The map page calls this on
// the twists.loaded signal.
//
// @Summary Apply stored visibility
// @Description Shows listed twists that are in the stored visible-set and hides the rest
// @Tags Map
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param apply body ApplyVisibilityRequest true "Listed twist ids"
// @Success 200 {object} models.APIResponse "Stored visibility applied"
// @Failure 400 {object} models.APIResponse "Invalid request body"
// @Failure 401 {object} models.APIResponse "Unauthorized"
// @Failure 503 {object} models.APIResponse "Layer manager unavailable"
// @Router /map/visibility/apply [post]
func (h *Handler) ApplyVisibility(w http.ResponseWriter, r *http.Request) {
	subject, ok := requireSubject(w, r)
	if !ok {
		return
	}
	if h.layers == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_ERROR", "Layer manager not available", nil)
		return
	}

	var req ApplyVisibilityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	if err := h.layers.ApplyStoredVisibility(r.Context(), subject.ID, req.IDs); err != nil {
		respondError(w, http.StatusInternalServerError, "SERVICE_ERROR", "Failed to apply stored visibility", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]int{
			"applied": len(req.IDs),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}
