// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mototwist/mototwist/internal/auth"
	"github.com/mototwist/mototwist/internal/database"
	"github.com/mototwist/mototwist/internal/logging"
	"github.com/mototwist/mototwist/internal/models"
)

// User management is admin-only; the route policy keeps riders out
// before these handlers run.

// ListUsers returns every rider account.
//
// @Summary List users
// @Description Returns all rider accounts without password hashes
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.APIResponse "Users retrieved successfully"
// @Failure 401 {object} models.APIResponse "Unauthorized"
// @Failure 403 {object} models.APIResponse "Forbidden"
// @Router /users [get]
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if !h.requireDB(w) {
		return
	}

	users, err := h.db.ListUsers(r.Context())
	if err != nil {
		respondDBError(w, "users", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]any{
			"users": users,
			"count": len(users),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// CreateUser provisions a rider account with a bcrypt-hashed password.
//
// @Summary Create a user
// @Description Creates a rider account; role defaults to rider when omitted
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param user body CreateUserRequest true "Account to create"
// @Success 201 {object} models.APIResponse "User created successfully"
// @Failure 400 {object} models.APIResponse "Invalid request body"
// @Failure 401 {object} models.APIResponse "Unauthorized"
// @Failure 403 {object} models.APIResponse "Forbidden"
// @Failure 409 {object} models.APIResponse "Username taken"
// @Router /users [post]
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	subject, ok := requireSubject(w, r)
	if !ok {
		return
	}
	if !h.requireDB(w) {
		return
	}

	var req CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	role := req.Role
	if role == "" {
		role = h.config.Security.BasicAuthDefaultRole
	}
	if role == "" {
		role = models.RoleRider
	}

	user := &models.User{
		Username:     req.Username,
		Name:         req.Name,
		PasswordHash: hash,
		Role:         role,
	}
	if err := h.db.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, database.ErrDuplicateUsername) {
			respondError(w, http.StatusConflict, "DUPLICATE_USERNAME",
				fmt.Sprintf("username %q is taken", req.Username), nil)
			return
		}
		respondDBError(w, "user", err)
		return
	}

	if h.audit != nil {
		h.audit.RecordUserChange(r.Context(), "create", subject.ID, subject.Username,
			user.ID, "username="+user.Username+" role="+user.Role)
	}

	respondJSON(w, http.StatusCreated, &models.APIResponse{
		Status: "success",
		Data:   user,
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// UpdateUser changes a rider's role, password, or both. A role change
// invalidates the rider's cached authorization decisions immediately.
//
// @Summary Update a user
// @Description Changes a rider's role and/or password
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param user body UpdateUserRequest true "Fields to change"
// @Success 200 {object} models.APIResponse "User updated successfully"
// @Failure 400 {object} models.APIResponse "Invalid request body"
// @Failure 401 {object} models.APIResponse "Unauthorized"
// @Failure 403 {object} models.APIResponse "Forbidden"
// @Failure 404 {object} models.APIResponse "User not found"
// @Router /users/{id} [patch]
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	subject, ok := requireSubject(w, r)
	if !ok {
		return
	}
	if !h.requireDB(w) {
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "missing user id", nil)
		return
	}

	var req UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}
	if req.Role == nil && req.Password == nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "nothing to update", nil)
		return
	}

	// An admin demoting themselves is one misclick from a locked-out
	// install, so the last admin action on your own account is refused.
	if req.Role != nil && id == subject.ID && *req.Role != models.RoleAdmin {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "cannot demote your own account", nil)
		return
	}

	var changed []string

	if req.Role != nil {
		if err := h.db.UpdateUserRole(r.Context(), id, *req.Role); err != nil {
			respondDBError(w, "user", err)
			return
		}
		if h.authz != nil {
			h.authz.InvalidateSubject(id)
		}
		changed = append(changed, "role="+*req.Role)
	}

	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		if err := h.db.UpdateUserPassword(r.Context(), id, hash); err != nil {
			respondDBError(w, "user", err)
			return
		}
		changed = append(changed, "password")
	}

	if h.audit != nil {
		h.audit.RecordUserChange(r.Context(), "update", subject.ID, subject.Username,
			id, strings.Join(changed, " "))
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]any{
			"id":      id,
			"changed": changed,
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// DeleteUser removes a rider account. Their twists and ratings stay in
// the catalog; per-rider map state and cached authorization go with the
// account.
//
// @Summary Delete a user
// @Description Deletes a rider account, keeping their twists and ratings
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} models.APIResponse "User deleted successfully"
// @Failure 400 {object} models.APIResponse "Deleting your own account"
// @Failure 401 {object} models.APIResponse "Unauthorized"
// @Failure 403 {object} models.APIResponse "Forbidden"
// @Failure 404 {object} models.APIResponse "User not found"
// @Router /users/{id} [delete]
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	subject, ok := requireSubject(w, r)
	if !ok {
		return
	}
	if !h.requireDB(w) {
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "missing user id", nil)
		return
	}
	if id == subject.ID {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "cannot delete your own account", nil)
		return
	}

	user, err := h.db.GetUserByID(r.Context(), id)
	if err != nil {
		respondDBError(w, "user", err)
		return
	}

	if err := h.db.DeleteUser(r.Context(), id); err != nil {
		respondDBError(w, "user", err)
		return
	}

	// Per-rider state outside the users table.
	if h.visible != nil {
		if err := h.visible.DeleteUser(r.Context(), id); err != nil {
			logging.Warn().Err(err).Str("user_id", id).Msg("Failed to drop visible-set for deleted user")
		}
	}
	if h.layers != nil {
		h.layers.Forget(id)
	}
	if h.authz != nil {
		h.authz.InvalidateSubject(id)
	}

	if h.audit != nil {
		h.audit.RecordUserChange(r.Context(), "delete", subject.ID, subject.Username,
			id, "username="+user.Username)
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]string{
			"id": id,
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}
