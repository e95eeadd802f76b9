// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/mototwist/mototwist/internal/models"
)

// maxSuggestions caps the autocomplete response size.
const maxSuggestions = 20

// TwistSuggestion is one autocomplete match for the catalog search box.
type TwistSuggestion struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SeedSuggestions loads every twist name into the autocomplete trie.
// Called once at startup; afterwards the twist create and delete
// handlers keep the index current. Returns the number of names loaded.
func (h *Handler) SeedSuggestions(ctx context.Context) (int, error) {
	if h.db == nil || h.suggest == nil {
		return 0, nil
	}
	names, err := h.db.TwistNames(ctx)
	if err != nil {
		return 0, err
	}
	for _, tn := range names {
		h.suggest.InsertWithData(tn.Name, tn.ID)
	}
	return len(names), nil
}

// suggestInsert records a new twist name in the autocomplete index.
func (h *Handler) suggestInsert(name string, id int64) {
	if h.suggest != nil {
		h.suggest.InsertWithData(name, id)
	}
}

// suggestRemove drops a twist name from the autocomplete index, but
// only when the index still points at the deleted twist. Two twists may
// share a name; the survivor keeps the entry.
func (h *Handler) suggestRemove(name string, id int64) {
	if h.suggest == nil {
		return
	}
	data, ok := h.suggest.Search(name)
	if !ok {
		return
	}
	if storedID, ok := data.(int64); ok && storedID == id {
		h.suggest.Delete(name)
	}
}

// SuggestTwists returns twist names matching a prefix, for the catalog
// search box. Served from the in-memory trie, never the database.
//
// @Summary Suggest twist names
// @Description Returns up to limit twist names starting with the given prefix, case-insensitively
// @Tags Twists
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param q query string true "Name prefix"
// @Param limit query int false "Maximum suggestions (default 10, max 20)"
// @Success 200 {object} models.APIResponse "Suggestions retrieved successfully"
// @Failure 400 {object} models.APIResponse "Missing prefix"
// @Failure 401 {object} models.APIResponse "Unauthorized"
// @Router /twists/suggest [get]
func (h *Handler) SuggestTwists(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireSubject(w, r); !ok {
		return
	}

	prefix := r.URL.Query().Get("q")
	if prefix == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"Query parameter q is required", nil)
		return
	}

	limit := getIntParam(r, "limit", 10)
	if limit < 1 {
		limit = 1
	}
	if limit > maxSuggestions {
		limit = maxSuggestions
	}

	suggestions := []TwistSuggestion{}
	if h.suggest != nil {
		for _, match := range h.suggest.AutocompleteWithLimit(prefix, limit) {
			s := TwistSuggestion{Name: match.Value}
			if id, ok := match.Data.(int64); ok {
				s.ID = id
			}
			suggestions = append(suggestions, s)
		}
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   suggestions,
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}
