// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/mototwist/mototwist/internal/capture"
	"github.com/mototwist/mototwist/internal/models"
)

// requireCapture rejects with 503 when the capture manager is not wired.
func (h *Handler) requireCapture(w http.ResponseWriter) bool {
	if h.capture == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_ERROR", "Capture not available", nil)
		return false
	}
	return true
}

// respondCaptureError maps capture session errors onto HTTP statuses.
// State conflicts are 409 so clients can distinguish "wrong time" from
// "bad input".
func respondCaptureError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, capture.ErrNotCapturing):
		respondError(w, http.StatusConflict, "CAPTURE_ERROR", "No capture session in progress", nil)
	case errors.Is(err, capture.ErrAlreadyCapturing):
		respondError(w, http.StatusConflict, "CAPTURE_ERROR", "A capture session is already in progress", nil)
	case errors.Is(err, capture.ErrNotFinalized):
		respondError(w, http.StatusConflict, "CAPTURE_ERROR", "Capture session is not finalized", nil)
	case errors.Is(err, capture.ErrNoValidRoute):
		respondError(w, http.StatusConflict, "CAPTURE_ERROR", "Finalizing needs at least two waypoints and a routed geometry", nil)
	case errors.Is(err, capture.ErrWaypointIndex):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "waypoint index out of range", nil)
	case errors.Is(err, capture.ErrInvalidCoordinate):
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "coordinate out of WGS84 bounds", nil)
	default:
		respondError(w, http.StatusInternalServerError, "CAPTURE_ERROR", "Capture operation failed", err)
	}
}

func respondCaptureSnapshot(w http.ResponseWriter, snap capture.Snapshot) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   snap,
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// CaptureSnapshot returns the rider's current capture session state. A
// rider with no session gets the idle snapshot rather than an error, so
// the map page can render its initial controls from one call.
//
// @Summary Get capture session state
// @Description Returns the current capture session snapshot, or the idle snapshot when no session exists
// @Tags Capture
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.APIResponse "Session snapshot"
// @Failure 401 {object} models.APIResponse "Unauthorized"
// @Router /capture [get]
func (h *Handler) CaptureSnapshot(w http.ResponseWriter, r *http.Request) {
	subject, ok := requireSubject(w, r)
	if !ok {
		return
	}
	if !h.requireCapture(w) {
		return
	}

	respondCaptureSnapshot(w, h.capture.Snapshot(subject.ID))
}

// StartCapture opens a capture session for the rider.
//
// @Summary Start capturing a route
// @Description Opens the rider's capture session; only one session per rider may be active
// @Tags Capture
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.APIResponse "Session started"
// @Failure 401 {object} models.APIResponse "Unauthorized"
// @Failure 409 {object} models.APIResponse "Session already in progress"
// @Router /capture/start [post]
func (h *Handler) StartCapture(w http.ResponseWriter, r *http.Request) {
	subject, ok := requireSubject(w, r)
	if !ok {
		return
	}
	if !h.requireCapture(w) {
		return
	}

	snap, err := h.capture.Start(r.Context(), subject.ID)
	if err != nil {
		respondCaptureError(w, err)
		return
	}
	respondCaptureSnapshot(w, snap)
}

// AddCaptureWaypoint appends a waypoint to the session. Routing to the
// new waypoint happens asynchronously; the snapshot returned here still
// carries the previous geometry and the routed update arrives over the
// WebSocket.
//
// @Summary Add a capture waypoint
// @Description Appends a waypoint at the given coordinates; the routed geometry update is pushed over the WebSocket
// @Tags Capture
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param waypoint body AddWaypointRequest true "Waypoint coordinates"
// @Success 200 {object} models.APIResponse "Waypoint added"
// @Failure 400 {object} models.APIResponse "Invalid coordinates"
// @Failure 401 {object} models.APIResponse "Unauthorized"
// @Failure 409 {object} models.APIResponse "No session in progress"
// @Router /capture/waypoints [post]
func (h *Handler) AddCaptureWaypoint(w http.ResponseWriter, r *http.Request) {
	subject, ok := requireSubject(w, r)
	if !ok {
		return
	}
	if !h.requireCapture(w) {
		return
	}

	var req AddWaypointRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	snap, err := h.capture.AddWaypoint(r.Context(), subject.ID, *req.Lat, *req.Lng)
	if err != nil {
		respondCaptureError(w, err)
		return
	}
	respondCaptureSnapshot(w, snap)
}

// UpdateCaptureWaypoint handles both waypoint edit shapes from the map
// page: a drag sends lat+lng (a move, which recomputes the route), a
// rename or suppress toggle sends name or suppressed (an edit, which
// never does). A request carrying both applies the move first.
//
// @Summary Update a capture waypoint
// @Description Moves a waypoint (lat+lng) or edits its name or suppression flag
// @Tags Capture
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param index path int true "Waypoint index"
// @Param waypoint body UpdateWaypointRequest true "Fields to change"
// @Success 200 {object} models.APIResponse "Waypoint updated"
// @Failure 400 {object} models.APIResponse "Invalid request body"
// @Failure 401 {object} models.APIResponse "Unauthorized"
// @Failure 404 {object} models.APIResponse "Waypoint index out of range"
// @Failure 409 {object} models.APIResponse "No session in progress"
// @Router /capture/waypoints/{index} [patch]
func (h *Handler) UpdateCaptureWaypoint(w http.ResponseWriter, r *http.Request) {
	subject, ok := requireSubject(w, r)
	if !ok {
		return
	}
	if !h.requireCapture(w) {
		return
	}

	index, ok := pathInt(w, r, "index")
	if !ok {
		return
	}

	var req UpdateWaypointRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}
	if !req.isMove() && !req.isEdit() {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"update needs lat+lng, name, or suppressed", nil)
		return
	}

	var (
		snap capture.Snapshot
		err  error
	)
	if req.isMove() {
		snap, err = h.capture.MoveWaypoint(r.Context(), subject.ID, index, *req.Lat, *req.Lng)
		if err != nil {
			respondCaptureError(w, err)
			return
		}
	}
	if req.isEdit() {
		// Fill the untouched field from the current waypoint.
		name, suppressed := "", false
		if current := h.capture.Snapshot(subject.ID); index >= 0 && index < len(current.Waypoints) {
			name = current.Waypoints[index].Name
			suppressed = current.Waypoints[index].Suppressed
		}
		if req.Name != nil {
			name = *req.Name
		}
		if req.Suppressed != nil {
			suppressed = *req.Suppressed
		}
		snap, err = h.capture.UpdateWaypoint(subject.ID, index, name, suppressed)
		if err != nil {
			respondCaptureError(w, err)
			return
		}
	}
	respondCaptureSnapshot(w, snap)
}

// RemoveCaptureWaypoint deletes the waypoint at index and recomputes the
// route through the remaining ones.
//
// @Summary Remove a capture waypoint
// @Description Deletes the waypoint at the given index; the recomputed geometry is pushed over the WebSocket
// @Tags Capture
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param index path int true "Waypoint index"
// @Success 200 {object} models.APIResponse "Waypoint removed"
// @Failure 401 {object} models.APIResponse "Unauthorized"
// @Failure 404 {object} models.APIResponse "Waypoint index out of range"
// @Failure 409 {object} models.APIResponse "No session in progress"
// @Router /capture/waypoints/{index} [delete]
func (h *Handler) RemoveCaptureWaypoint(w http.ResponseWriter, r *http.Request) {
	subject, ok := requireSubject(w, r)
	if !ok {
		return
	}
	if !h.requireCapture(w) {
		return
	}

	index, ok := pathInt(w, r, "index")
	if !ok {
		return
	}

	snap, err := h.capture.RemoveWaypoint(r.Context(), subject.ID, index)
	if err != nil {
		respondCaptureError(w, err)
		return
	}
	respondCaptureSnapshot(w, snap)
}

// FinalizeCapture locks the session for saving. The response carries the
// count of unnamed, non-suppressed waypoints so the save dialog can warn
// the rider before they commit.
//
// @Summary Finalize the capture session
// @Description Locks the session; the snapshot plus the unnamed waypoint count feed the save dialog
// @Tags Capture
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.APIResponse "Session finalized"
// @Failure 401 {object} models.APIResponse "Unauthorized"
// @Failure 409 {object} models.APIResponse "No session or no valid route"
// @Router /capture/finalize [post]
func (h *Handler) FinalizeCapture(w http.ResponseWriter, r *http.Request) {
	subject, ok := requireSubject(w, r)
	if !ok {
		return
	}
	if !h.requireCapture(w) {
		return
	}

	snap, unnamed, err := h.capture.Finalize(subject.ID)
	if err != nil {
		respondCaptureError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]any{
			"snapshot":          snap,
			"unnamed_waypoints": unnamed,
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// CancelCapture aborts the session. Cancelling with no session in
// progress is a no-op, so the map page's escape handler can call it
// blindly.
//
// @Summary Cancel the capture session
// @Description Aborts the rider's capture session; idempotent
// @Tags Capture
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.APIResponse "Session cancelled"
// @Failure 401 {object} models.APIResponse "Unauthorized"
// @Router /capture/cancel [post]
func (h *Handler) CancelCapture(w http.ResponseWriter, r *http.Request) {
	subject, ok := requireSubject(w, r)
	if !ok {
		return
	}
	if !h.requireCapture(w) {
		return
	}

	if err := h.capture.Cancel(r.Context(), subject.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "CAPTURE_ERROR", "Failed to cancel capture session", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]bool{
			"cancelled": true,
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}
