// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

// This file holds the request validation structs with
// go-playground/validator tags. Incoming bodies and query parameters are
// decoded into these shapes and validated before any domain logic runs.
//
// The validation tags follow the go-playground/validator v10 syntax:
//   - required: field must be present and non-zero
//   - min,max: numeric or string length bounds
//   - oneof: value must be one of the specified options
//   - latitude,longitude: geographic coordinate validation
//   - dive: apply the following tags to each slice element
//   - omitempty: skip validation if field is empty/zero
//
// Coordinate fields use pointers where zero is a legal value (the
// equator and the prime meridian are real places), so "required" can
// distinguish absent from zero.
package api

import "github.com/mototwist/mototwist/internal/models"

// ListTwistsParams represents the validated query parameters for
// GET /twists.
//
// Fields:
//   - Page: 1-based page number
//   - PageSize: results per page (capped by config separately)
//   - Search: case-insensitive substring match on the twist name
//   - Ownership: "own" restricts to the caller's twists
//   - Rated: filter by whether the caller has rated the twist
//   - Visibility: filter against the caller's persisted visible-set
type ListTwistsParams struct {
	Page       int    `validate:"min=1"`
	PageSize   int    `validate:"min=1,max=1000"`
	Search     string `validate:"omitempty,max=200"`
	Ownership  string `validate:"oneof=own all"`
	Rated      string `validate:"oneof=rated unrated all"`
	Visibility string `validate:"oneof=visible hidden all"`
}

// WaypointPayload is one waypoint in a create request body.
type WaypointPayload struct {
	Lat  *float64 `json:"lat" validate:"required,latitude"`
	Lng  *float64 `json:"lng" validate:"required,longitude"`
	Name string   `json:"name" validate:"omitempty,max=100"`
}

// PointPayload is one geometry vertex in a create request body.
type PointPayload struct {
	Lat *float64 `json:"lat" validate:"required,latitude"`
	Lng *float64 `json:"lng" validate:"required,longitude"`
}

// CreateTwistRequest represents the request body for POST /twists.
//
// Waypoints and RouteGeometry are optional: when the caller has a
// finalized capture session its payload replaces both fields before
// validation, which is the normal browser flow. Direct API clients may
// supply them inline instead.
type CreateTwistRequest struct {
	Name          string            `json:"name" validate:"required,min=1,max=200"`
	IsPaved       *bool             `json:"is_paved" validate:"required"`
	Waypoints     []WaypointPayload `json:"waypoints" validate:"omitempty,min=2,dive"`
	RouteGeometry []PointPayload    `json:"route_geometry" validate:"omitempty,min=2,dive"`
}

// waypointModels converts the request waypoints into the storage shape.
func (req *CreateTwistRequest) waypointModels() []models.Waypoint {
	waypoints := make([]models.Waypoint, 0, len(req.Waypoints))
	for _, wp := range req.Waypoints {
		waypoints = append(waypoints, models.Waypoint{Lat: *wp.Lat, Lng: *wp.Lng, Name: wp.Name})
	}
	return waypoints
}

// geometryModels converts the request geometry into the storage shape.
func (req *CreateTwistRequest) geometryModels() []models.LatLng {
	geometry := make([]models.LatLng, 0, len(req.RouteGeometry))
	for _, pt := range req.RouteGeometry {
		geometry = append(geometry, models.LatLng{Lat: *pt.Lat, Lng: *pt.Lng})
	}
	return geometry
}

// CreateRatingRequest represents the request body for
// POST /twists/{id}/ratings. Criteria keys depend on the twist's
// pavement type and are checked against the matching criteria set.
type CreateRatingRequest struct {
	Criteria map[string]int `json:"criteria" validate:"required,min=1"`
}

// SetVisibilityRequest represents the request body for
// POST /map/visibility.
type SetVisibilityRequest struct {
	TwistID int64 `json:"twist_id" validate:"required,min=1"`
	Visible *bool `json:"visible" validate:"required"`
	Focus   bool  `json:"focus"`
}

// ApplyVisibilityRequest represents the request body for
// POST /map/visibility/apply. IDs are the twist ids currently listed on
// the caller's page; persisted visibility is applied to each.
type ApplyVisibilityRequest struct {
	IDs []int64 `json:"ids" validate:"omitempty,dive,min=1"`
}

// AddWaypointRequest represents the request body for
// POST /capture/waypoints.
type AddWaypointRequest struct {
	Lat *float64 `json:"lat" validate:"required,latitude"`
	Lng *float64 `json:"lng" validate:"required,longitude"`
}

// UpdateWaypointRequest represents the request body for
// PATCH /capture/waypoints/{index}. Two edits share the verb: moving a
// waypoint (both coordinates present, triggers a geometry recompute) and
// editing its marker fields (name/suppressed, local only).
type UpdateWaypointRequest struct {
	Lat        *float64 `json:"lat" validate:"omitempty,latitude"`
	Lng        *float64 `json:"lng" validate:"omitempty,longitude"`
	Name       *string  `json:"name" validate:"omitempty,max=100"`
	Suppressed *bool    `json:"suppressed"`
}

// isMove reports whether the request carries a coordinate change.
func (req *UpdateWaypointRequest) isMove() bool {
	return req.Lat != nil && req.Lng != nil
}

// isEdit reports whether the request carries a marker-field change.
func (req *UpdateWaypointRequest) isEdit() bool {
	return req.Name != nil || req.Suppressed != nil
}

// LoginRequestValidation represents the validated request body for the
// /auth/login endpoint. Named differently from models.LoginRequest to
// avoid conflicts.
type LoginRequestValidation struct {
	Username   string `validate:"required,min=1,max=100"`
	Password   string `validate:"required,min=1,max=200"`
	RememberMe bool
}

// CreateUserRequest represents the request body for POST /users
// (admin only).
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Password string `json:"password" validate:"required,min=8,max=200"`
	Role     string `json:"role" validate:"omitempty,oneof=rider admin"`
}

// UpdateUserRequest represents the request body for PATCH /users/{id}
// (admin only). Both fields are optional; present fields are applied.
type UpdateUserRequest struct {
	Role     *string `json:"role" validate:"omitempty,oneof=rider admin"`
	Password *string `json:"password" validate:"omitempty,min=8,max=200"`
}
