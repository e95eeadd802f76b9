// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package maplayers

import (
	"github.com/mototwist/mototwist/internal/models"
)

// MarkerRole tells the map client how to style a waypoint marker.
type MarkerRole string

const (
	// RoleStart marks the first named waypoint of a route.
	RoleStart MarkerRole = "start"
	// RoleEnd marks the last named waypoint of a route.
	RoleEnd MarkerRole = "end"
	// RoleStartEnd marks the sole named waypoint of a single-marker route.
	RoleStartEnd MarkerRole = "start_end"
	// RoleIntermediate marks every named waypoint between start and end.
	RoleIntermediate MarkerRole = "intermediate"
)

// Marker is a single named waypoint pin on a rendered layer.
type Marker struct {
	Lat  float64    `json:"lat"`
	Lng  float64    `json:"lng"`
	Name string     `json:"name"`
	Role MarkerRole `json:"role"`
}

// Layer is a fully materialized route layer: the polyline plus the marker
// pins derived from the route's named waypoints. Layers are built once per
// route id and cached until the route is deleted.
type Layer struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	IsPaved  bool            `json:"is_paved"`
	Polyline []models.LatLng `json:"polyline"`
	Markers  []Marker        `json:"markers"`
}

// MarkerRoles assigns a role to each of n markers by position: the first is
// the start, the last is the end, a sole marker is the combined start/end,
// and everything in between is intermediate. Roles depend only on position,
// so they are recomputed whenever the marker count changes.
func MarkerRoles(n int) []MarkerRole {
	if n <= 0 {
		return nil
	}
	roles := make([]MarkerRole, n)
	if n == 1 {
		roles[0] = RoleStartEnd
		return roles
	}
	roles[0] = RoleStart
	for i := 1; i < n-1; i++ {
		roles[i] = RoleIntermediate
	}
	roles[n-1] = RoleEnd
	return roles
}

// buildLayer converts fetched route geometry into a renderable layer.
// Unnamed waypoints are shaping points and get no marker; roles are
// assigned over the named waypoints that remain.
func buildLayer(geom *models.TwistGeometry) *Layer {
	named := make([]models.Waypoint, 0, len(geom.Waypoints))
	for _, wp := range geom.Waypoints {
		if wp.Name != "" {
			named = append(named, wp)
		}
	}

	roles := MarkerRoles(len(named))
	markers := make([]Marker, len(named))
	for i, wp := range named {
		markers[i] = Marker{
			Lat:  wp.Lat,
			Lng:  wp.Lng,
			Name: wp.Name,
			Role: roles[i],
		}
	}

	return &Layer{
		ID:       geom.ID,
		Name:     geom.Name,
		IsPaved:  geom.IsPaved,
		Polyline: geom.RouteGeometry,
		Markers:  markers,
	}
}
