// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package geo

import (
	"math"
	"strconv"

	"github.com/mototwist/mototwist/internal/cache"
	"github.com/mototwist/mototwist/internal/models"
)

// gridSnapThreshold is the route size above which snapping builds a spatial
// index over the vertices instead of scanning every segment per waypoint.
const gridSnapThreshold = 512

// snapGridCellKm is the index cell size. Road polylines have sub-100m
// vertex spacing, so half-kilometer cells keep candidate sets small.
const snapGridCellKm = 0.5

// SnapWaypointsToRoute maps waypoints onto a route polyline:
//
//   - The first waypoint is pinned to the first route point.
//   - The last waypoint is pinned to the last route point.
//   - Intermediate waypoints move to the nearest point on the line.
//
// Routing engines place the computed road geometry near, not through, the
// requested via points; snapping makes the stored waypoints sit exactly on
// the stored geometry so map markers don't float beside the route.
//
// The input slice is not modified. Waypoint names carry over unchanged.
// With no geometry or fewer than two waypoints there is nothing to snap
// and the input is returned as-is.
func SnapWaypointsToRoute(waypoints []models.Waypoint, route []models.LatLng) []models.Waypoint {
	if len(route) == 0 || len(waypoints) < 2 {
		return waypoints
	}

	snapped := make([]models.Waypoint, len(waypoints))
	copy(snapped, waypoints)

	first := route[0]
	snapped[0].Lat = first.Lat
	snapped[0].Lng = first.Lng

	last := route[len(route)-1]
	end := len(snapped) - 1
	snapped[end].Lat = last.Lat
	snapped[end].Lng = last.Lng

	if len(snapped) > 2 {
		var index *cache.SpatialHashGrid
		if len(route) >= gridSnapThreshold {
			index = buildRouteIndex(route)
		}

		for i := 1; i < end; i++ {
			point := nearestPointOnRoute(snapped[i].LatLng(), route, index)
			snapped[i].Lat = point.Lat
			snapped[i].Lng = point.Lng
		}
	}

	return snapped
}

// buildRouteIndex indexes route vertices by position for snap-candidate
// lookups.
func buildRouteIndex(route []models.LatLng) *cache.SpatialHashGrid {
	grid := cache.NewSpatialHashGrid(snapGridCellKm)
	for i, v := range route {
		grid.Insert(strconv.Itoa(i), v.Lat, v.Lng, i)
	}
	return grid
}

// nearestPointOnRoute returns the closest point on any route segment to p.
// With an index it only projects onto the segments adjacent to the nearest
// vertex; without one (or if the index finds nothing in range) it scans
// every segment.
func nearestPointOnRoute(p models.LatLng, route []models.LatLng, index *cache.SpatialHashGrid) models.LatLng {
	if len(route) == 1 {
		return route[0]
	}

	if index != nil {
		if point, ok := nearestViaIndex(p, route, index); ok {
			return point
		}
	}

	point, _ := scanSegments(p, route, 0, len(route)-1)
	return point
}

// maxSnapRadiusKm bounds the nearest-vertex search. Waypoints come from
// the same routing request as the geometry, so the nearest vertex is
// normally within the first cell.
const maxSnapRadiusKm = 64

// nearestViaIndex resolves the nearest point using the vertex grid: the
// nearest indexed vertex anchors the scan, and only its adjacent segments
// get exact point-to-segment checks. Reports false when no vertex lies
// within the maximum search radius, in which case the caller falls back
// to a full scan.
func nearestViaIndex(p models.LatLng, route []models.LatLng, index *cache.SpatialHashGrid) (models.LatLng, bool) {
	entry := index.QueryNearest(p.Lat, p.Lng, maxSnapRadiusKm)
	if entry == nil {
		return models.LatLng{}, false
	}

	i, ok := entry.Data.(int)
	if !ok {
		return models.LatLng{}, false
	}

	// Each vertex touches at most two segments
	lo := i - 1
	if lo < 0 {
		lo = 0
	}
	hi := i + 1
	if hi > len(route)-1 {
		hi = len(route) - 1
	}

	point, _ := scanSegments(p, route, lo, hi)
	return point, true
}

// scanSegments projects p onto every segment in route[first..last] and
// returns the closest projection with its degree-space distance.
func scanSegments(p models.LatLng, route []models.LatLng, first, last int) (models.LatLng, float64) {
	best := route[first]
	bestDist := math.MaxFloat64

	for i := first; i < last; i++ {
		point, dist := pointToSegment(p, route[i], route[i+1])
		if dist < bestDist {
			best = point
			bestDist = dist
		}
	}

	// Single-point span: distance to the vertex itself
	if first == last {
		bestDist = math.Hypot(p.Lat-route[first].Lat, p.Lng-route[first].Lng)
	}

	return best, bestDist
}

// pointToSegment returns the nearest point on segment a..b to p and its
// distance, computed in planar degree space.
func pointToSegment(p, a, b models.LatLng) (models.LatLng, float64) {
	dx := b.Lat - a.Lat
	dy := b.Lng - a.Lng

	if dx == 0 && dy == 0 {
		return a, math.Hypot(p.Lat-a.Lat, p.Lng-a.Lng)
	}

	t := ((p.Lat-a.Lat)*dx + (p.Lng-a.Lng)*dy) / (dx*dx + dy*dy)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	nearest := models.LatLng{
		Lat: a.Lat + t*dx,
		Lng: a.Lng + t*dy,
	}

	return nearest, math.Hypot(p.Lat-nearest.Lat, p.Lng-nearest.Lng)
}
