// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/mototwist/mototwist/internal/cache"
	"github.com/mototwist/mototwist/internal/capture"
	"github.com/mototwist/mototwist/internal/events"
	"github.com/mototwist/mototwist/internal/geo"
	"github.com/mototwist/mototwist/internal/logging"
	"github.com/mototwist/mototwist/internal/models"
	ws "github.com/mototwist/mototwist/internal/websocket"
)

// ListTwists returns a filtered, paginated catalog page.
//
// @Summary List twists
// @Description Returns the route catalog filtered by search, ownership, rating and visibility, ordered by distance when center coordinates are given
// @Tags Twists
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Results per page"
// @Param search query string false "Substring match on the twist name"
// @Param ownership query string false "own or all" Enums(own, all)
// @Param rated query string false "rated, unrated or all" Enums(rated, unrated, all)
// @Param visibility query string false "visible, hidden or all" Enums(visible, hidden, all)
// @Param center_lat query number false "Map center latitude for distance ordering"
// @Param center_lng query number false "Map center longitude for distance ordering"
// @Success 200 {object} models.APIResponse "Catalog page retrieved successfully"
// @Failure 400 {object} models.APIResponse "Invalid query parameters"
// @Failure 401 {object} models.APIResponse "Unauthorized"
// @Failure 500 {object} models.APIResponse "Internal server error"
// @Router /twists [get]
func (h *Handler) ListTwists(w http.ResponseWriter, r *http.Request) {
	subject, ok := requireSubject(w, r)
	if !ok {
		return
	}
	if !h.requireDB(w) {
		return
	}

	params := ListTwistsParams{
		Page:       getIntParam(r, "page", 1),
		PageSize:   getIntParam(r, "page_size", h.config.API.DefaultPageSize),
		Search:     r.URL.Query().Get("search"),
		Ownership:  models.OwnershipAll,
		Rated:      models.RatedAll,
		Visibility: models.VisibilityAll,
	}
	if v := r.URL.Query().Get("ownership"); v != "" {
		params.Ownership = v
	}
	if v := r.URL.Query().Get("rated"); v != "" {
		params.Rated = v
	}
	if v := r.URL.Query().Get("visibility"); v != "" {
		params.Visibility = v
	}

	if apiErr := validateRequest(&params); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}
	if params.PageSize > h.config.API.MaxPageSize {
		params.PageSize = h.config.API.MaxPageSize
	}

	filter := models.TwistFilter{
		Search:     params.Search,
		Ownership:  params.Ownership,
		Rated:      params.Rated,
		Visibility: params.Visibility,
		Page:       params.Page,
		PageSize:   params.PageSize,
	}

	centerLat, hasLat := getFloatParam(r, "center_lat")
	centerLng, hasLng := getFloatParam(r, "center_lng")
	if hasLat != hasLng {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"center_lat and center_lng must be supplied together", nil)
		return
	}
	if hasLat {
		center := models.LatLng{Lat: centerLat, Lng: centerLng}
		if !center.Valid() {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
				"center coordinates out of range", nil)
			return
		}
		filter.Center = &center
	}

	if h.visible != nil {
		ids, found, err := h.visible.Get(r.Context(), subject.ID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "SERVICE_ERROR",
				"Failed to load visibility state", err)
			return
		}
		if found {
			filter.VisibleIDs = ids
		}
	}

	// The viewer is part of the key: ownership and rated filters read
	// differently per rider even for identical query strings.
	var cacheKey string
	if h.listCache != nil {
		cacheKey = cache.GenerateKey("twists.list", struct {
			Filter   models.TwistFilter
			ViewerID string
		}{filter, subject.ID})
		if cached, found := h.listCache.Get(cacheKey); found {
			if result, ok := cached.(*models.TwistsResponse); ok {
				respondJSON(w, http.StatusOK, &models.APIResponse{
					Status: "success",
					Data:   result,
					Metadata: models.Metadata{
						Timestamp: time.Now(),
					},
				})
				h.signalTwistsLoaded(subject.ID, result)
				return
			}
		}
	}

	start := time.Now()
	result, err := h.db.ListTwists(r.Context(), filter, viewerFromSubject(subject))
	if err != nil {
		respondDBError(w, "twists", err)
		return
	}

	if h.listCache != nil {
		h.listCache.Set(cacheKey, result)
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   result,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})

	h.signalTwistsLoaded(subject.ID, result)
}

// signalTwistsLoaded tells this rider's map page which ids are on
// screen, so it can ask for its stored visibility to be applied to
// exactly those layers.
func (h *Handler) signalTwistsLoaded(userID string, result *models.TwistsResponse) {
	if h.wsHub == nil {
		return
	}
	ids := make([]int64, 0, len(result.Twists))
	for _, t := range result.Twists {
		ids = append(ids, t.ID)
	}
	h.wsHub.SendSignal(userID, ws.SignalTwistsLoaded, map[string]any{"ids": ids})
}

// CreateTwist stores a new twist. When the caller has a finalized capture
// session its waypoints and geometry replace whatever the body carried;
// that is the browser flow. Direct API clients supply both inline.
//
// @Summary Create a twist
// @Description Stores a new route from the finalized capture session or from inline waypoints and geometry
// @Tags Twists
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param twist body CreateTwistRequest true "Twist to create"
// @Success 201 {object} models.APIResponse "Twist created successfully"
// @Failure 400 {object} models.APIResponse "Invalid request body"
// @Failure 401 {object} models.APIResponse "Unauthorized"
// @Failure 409 {object} models.APIResponse "No finalized capture and no inline route"
// @Failure 500 {object} models.APIResponse "Internal server error"
// @Router /twists [post]
func (h *Handler) CreateTwist(w http.ResponseWriter, r *http.Request) {
	subject, ok := requireSubject(w, r)
	if !ok {
		return
	}
	if !h.requireDB(w) {
		return
	}

	var req CreateTwistRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	waypoints := req.waypointModels()
	geometry := req.geometryModels()
	fromCapture := false

	if h.capture != nil {
		payload, err := h.capture.Payload(subject.ID)
		switch {
		case err == nil:
			waypoints = payload.Waypoints
			geometry = payload.RouteGeometry
			fromCapture = true
		case errors.Is(err, capture.ErrNotCapturing), errors.Is(err, capture.ErrNotFinalized):
			// No finalized session; the inline body stands on its own.
		default:
			respondError(w, http.StatusInternalServerError, "CAPTURE_ERROR",
				"Failed to read capture session", err)
			return
		}
	}

	if len(waypoints) < 2 || len(geometry) < 2 {
		respondError(w, http.StatusConflict, "NO_ROUTE",
			"Creating a twist needs a finalized capture session or at least two waypoints with route geometry", nil)
		return
	}

	// Tolerance syntax is checked at config load.
	toleranceM, _ := h.config.Capture.ToleranceMeters()
	geometry = geo.Simplify(geometry, toleranceM)
	waypoints = geo.SnapWaypointsToRoute(waypoints, geometry)

	twist := &models.Twist{
		AuthorID:                 subject.ID,
		Name:                     req.Name,
		IsPaved:                  *req.IsPaved,
		Waypoints:                waypoints,
		RouteGeometry:            geometry,
		SimplificationToleranceM: toleranceM,
	}

	if err := h.db.InsertTwist(r.Context(), twist); err != nil {
		respondDBError(w, "twist", err)
		return
	}

	if fromCapture {
		h.capture.Consume(subject.ID)
	}

	h.invalidateListCache()
	h.suggestInsert(twist.Name, twist.ID)

	if h.bus != nil {
		event := events.NewEvent(events.EventTwistAdded, twist.ID)
		event.ActorID = subject.ID
		event.TwistName = twist.Name
		if err := h.bus.PublishEvent(r.Context(), event); err != nil {
			logging.Warn().Err(err).Int64("twist_id", twist.ID).Msg("Failed to publish twist.added event")
		}
	}

	if h.audit != nil {
		h.audit.RecordTwistCreated(r.Context(), subject.ID, subject.Username, strconv.FormatInt(twist.ID, 10), twist.Name)
	}

	respondJSON(w, http.StatusCreated, &models.APIResponse{
		Status: "success",
		Data:   twist,
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// TwistGeometry serves the draw-the-layer payload for one twist.
//
// @Summary Get twist geometry
// @Description Returns the polyline and named markers for one twist, fetched once per layer lifetime
// @Tags Twists
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Twist ID"
// @Success 200 {object} models.APIResponse "Geometry retrieved successfully"
// @Failure 400 {object} models.APIResponse "Invalid twist ID"
// @Failure 401 {object} models.APIResponse "Unauthorized"
// @Failure 404 {object} models.APIResponse "Twist not found"
// @Router /twists/{id}/geometry [get]
func (h *Handler) TwistGeometry(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireSubject(w, r); !ok {
		return
	}
	if !h.requireDB(w) {
		return
	}

	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}

	geometry, err := h.db.GetTwistGeometry(r.Context(), id)
	if err != nil {
		respondDBError(w, "twist", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   geometry,
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// DeleteTwist removes a twist. Only the author or an admin may delete;
// ratings go with it and every rider's map drops the layer through the
// twist.deleted event.
//
// @Summary Delete a twist
// @Description Deletes a twist and its ratings; author or admin only
// @Tags Twists
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Twist ID"
// @Success 200 {object} models.APIResponse "Twist deleted successfully"
// @Failure 400 {object} models.APIResponse "Invalid twist ID"
// @Failure 401 {object} models.APIResponse "Unauthorized"
// @Failure 403 {object} models.APIResponse "Not the author"
// @Failure 404 {object} models.APIResponse "Twist not found"
// @Router /twists/{id} [delete]
func (h *Handler) DeleteTwist(w http.ResponseWriter, r *http.Request) {
	subject, ok := requireSubject(w, r)
	if !ok {
		return
	}
	if !h.requireDB(w) {
		return
	}

	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}

	twist, err := h.db.GetTwist(r.Context(), id)
	if err != nil {
		respondDBError(w, "twist", err)
		return
	}

	if h.authz != nil {
		if err := h.authz.RequireOwnerOrAdmin(subject, twist.AuthorID); err != nil {
			respondError(w, http.StatusForbidden, "FORBIDDEN",
				"Only the author or an admin can delete a twist", nil)
			return
		}
	}

	if err := h.db.DeleteTwist(r.Context(), id); err != nil {
		respondDBError(w, "twist", err)
		return
	}

	h.invalidateListCache()
	h.suggestRemove(twist.Name, id)

	if h.bus != nil {
		event := events.NewEvent(events.EventTwistDeleted, id)
		event.ActorID = subject.ID
		event.TwistName = twist.Name
		if err := h.bus.PublishEvent(r.Context(), event); err != nil {
			logging.Warn().Err(err).Int64("twist_id", id).Msg("Failed to publish twist.deleted event")
		}
	}

	if h.audit != nil {
		h.audit.RecordTwistDeleted(r.Context(), subject.ID, subject.Username, strconv.FormatInt(id, 10), twist.Name)
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]int64{
			"id": id,
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}
