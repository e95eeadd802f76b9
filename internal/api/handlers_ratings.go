// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mototwist/mototwist/internal/events"
	"github.com/mototwist/mototwist/internal/logging"
	"github.com/mototwist/mototwist/internal/models"
)

// ListRatings returns every rating for one twist plus the criteria
// descriptions for its surface class.
//
// @Summary List ratings for a twist
// @Description Returns all ratings with author names and the criteria set matching the twist's surface class
// @Tags Ratings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Twist ID"
// @Success 200 {object} models.APIResponse "Ratings retrieved successfully"
// @Failure 400 {object} models.APIResponse "Invalid twist ID"
// @Failure 401 {object} models.APIResponse "Unauthorized"
// @Failure 404 {object} models.APIResponse "Twist not found"
// @Router /twists/{id}/ratings [get]
func (h *Handler) ListRatings(w http.ResponseWriter, r *http.Request) {
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

	isPaved, err := h.db.TwistIsPaved(r.Context(), id)
	if err != nil {
		respondDBError(w, "twist", err)
		return
	}

	start := time.Now()
	result, err := h.db.ListRatings(r.Context(), id, isPaved, viewerFromSubject(subject))
	if err != nil {
		respondDBError(w, "ratings", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   result,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// CreateRating stores a rating for one twist. The criteria map must carry
// exactly the criteria set for the twist's surface class, each scored
// 1..5; the database layer knows nothing about which set is which, so the
// cross-check happens here.
//
// @Summary Rate a twist
// @Description Stores a rating whose criteria must match the twist's surface class exactly, every score 1..5
// @Tags Ratings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Twist ID"
// @Param rating body CreateRatingRequest true "Criteria scores"
// @Success 201 {object} models.APIResponse "Rating created successfully"
// @Failure 400 {object} models.APIResponse "Invalid criteria"
// @Failure 401 {object} models.APIResponse "Unauthorized"
// @Failure 404 {object} models.APIResponse "Twist not found"
// @Router /twists/{id}/ratings [post]
func (h *Handler) CreateRating(w http.ResponseWriter, r *http.Request) {
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

	isPaved, err := h.db.TwistIsPaved(r.Context(), id)
	if err != nil {
		respondDBError(w, "twist", err)
		return
	}

	var req CreateRatingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}
	if err := models.ValidateCriteria(isPaved, req.Criteria); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	var ratingID int64
	if isPaved {
		rating := &models.PavedRating{
			TwistID:    id,
			AuthorID:   subject.ID,
			Traffic:    req.Criteria["traffic"],
			Scenery:    req.Criteria["scenery"],
			Pavement:   req.Criteria["pavement"],
			Twistyness: req.Criteria["twistyness"],
			Intensity:  req.Criteria["intensity"],
		}
		if err := h.db.InsertPavedRating(r.Context(), rating); err != nil {
			respondDBError(w, "rating", err)
			return
		}
		ratingID = rating.ID
	} else {
		rating := &models.UnpavedRating{
			TwistID:            id,
			AuthorID:           subject.ID,
			Traffic:            req.Criteria["traffic"],
			Scenery:            req.Criteria["scenery"],
			SurfaceConsistency: req.Criteria["surface_consistency"],
			Technicality:       req.Criteria["technicality"],
			Flow:               req.Criteria["flow"],
		}
		if err := h.db.InsertUnpavedRating(r.Context(), rating); err != nil {
			respondDBError(w, "rating", err)
			return
		}
		ratingID = rating.ID
	}

	// Catalog pages filter on rated/unrated, so rating writes stale them.
	h.invalidateListCache()

	if h.bus != nil {
		event := events.NewEvent(events.EventTwistRated, id)
		event.ActorID = subject.ID
		if err := h.bus.PublishEvent(r.Context(), event); err != nil {
			logging.Warn().Err(err).Int64("twist_id", id).Msg("Failed to publish twist.rated event")
		}
	}

	if h.audit != nil {
		h.audit.RecordRatingAdded(r.Context(), subject.ID, subject.Username, strconv.FormatInt(id, 10), strconv.FormatInt(ratingID, 10))
	}

	respondJSON(w, http.StatusCreated, &models.APIResponse{
		Status: "success",
		Data: map[string]int64{
			"id":       ratingID,
			"twist_id": id,
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// DeleteRating removes one rating. Author or admin only.
//
// @Summary Delete a rating
// @Description Deletes one rating from a twist; rating author or admin only
// @Tags Ratings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Twist ID"
// @Param ratingID path int true "Rating ID"
// @Success 200 {object} models.APIResponse "Rating deleted successfully"
// @Failure 400 {object} models.APIResponse "Invalid ID"
// @Failure 401 {object} models.APIResponse "Unauthorized"
// @Failure 403 {object} models.APIResponse "Not the author"
// @Failure 404 {object} models.APIResponse "Rating not found"
// @Router /twists/{id}/ratings/{ratingID} [delete]
func (h *Handler) DeleteRating(w http.ResponseWriter, r *http.Request) {
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
	ratingID, ok := pathInt64(w, r, "ratingID")
	if !ok {
		return
	}

	isPaved, err := h.db.TwistIsPaved(r.Context(), id)
	if err != nil {
		respondDBError(w, "twist", err)
		return
	}

	authorID, err := h.db.RatingAuthorID(r.Context(), ratingID, isPaved)
	if err != nil {
		respondDBError(w, "rating", err)
		return
	}

	if h.authz != nil {
		if err := h.authz.RequireOwnerOrAdmin(subject, authorID); err != nil {
			respondError(w, http.StatusForbidden, "FORBIDDEN",
				"Only the rating's author or an admin can delete it", nil)
			return
		}
	}

	if err := h.db.DeleteRating(r.Context(), id, ratingID, isPaved); err != nil {
		respondDBError(w, "rating", err)
		return
	}

	h.invalidateListCache()

	if h.audit != nil {
		h.audit.RecordRatingDeleted(r.Context(), subject.ID, subject.Username, strconv.FormatInt(id, 10), strconv.FormatInt(ratingID, 10))
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]int64{
			"id":       ratingID,
			"twist_id": id,
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}
