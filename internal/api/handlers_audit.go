// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package api

import (
	"net/http"
	"time"

	"github.com/mototwist/mototwist/internal/database"
	"github.com/mototwist/mototwist/internal/models"
)

// ListAuditEvents returns the security audit trail, newest first.
//
// @Summary List audit events
// @Description Returns audit trail entries filtered by category and actor, newest first
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param category query string false "Event category" Enums(auth, authz, twist, rating, user)
// @Param actor_id query string false "Filter by acting user ID"
// @Param limit query int false "Maximum rows (default 100, max 1000)"
// @Success 200 {object} models.APIResponse "Audit events retrieved successfully"
// @Failure 401 {object} models.APIResponse "Unauthorized"
// @Failure 403 {object} models.APIResponse "Forbidden"
// @Router /audit [get]
func (h *Handler) ListAuditEvents(w http.ResponseWriter, r *http.Request) {
	if !h.requireDB(w) {
		return
	}

	filter := database.AuditFilter{
		Category: r.URL.Query().Get("category"),
		ActorID:  r.URL.Query().Get("actor_id"),
		Limit:    getIntParam(r, "limit", 100),
	}
	if filter.Limit < 1 || filter.Limit > 1000 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be between 1 and 1000", nil)
		return
	}

	start := time.Now()
	events, err := h.db.ListAuditEvents(r.Context(), filter)
	if err != nil {
		respondDBError(w, "audit events", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]any{
			"events": events,
			"count":  len(events),
		},
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}
