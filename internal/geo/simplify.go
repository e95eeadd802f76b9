// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package geo

import (
	"math"

	"github.com/mototwist/mototwist/internal/models"
)

// Simplify reduces a route polyline with the Douglas-Peucker algorithm.
// toleranceM is the maximum deviation in meters a removed point may have
// from the simplified line; it is converted to degrees at ~111132 m/deg.
//
// OSRM returns road geometry at full resolution, often thousands of points
// for an afternoon ride. Stored geometry only needs to look right on a map,
// so points within tolerance of the simplified line are dropped before the
// route is persisted.
//
// The first and last points are always kept. Routes with fewer than 3
// points are returned unchanged. A non-positive tolerance disables
// simplification.
func Simplify(route []models.LatLng, toleranceM float64) []models.LatLng {
	if len(route) < 3 || toleranceM <= 0 {
		return route
	}

	epsilon := toleranceM / MetersPerDegree

	keep := make([]bool, len(route))
	keep[0] = true
	keep[len(route)-1] = true

	// Iterative Douglas-Peucker: explicit stack instead of recursion so
	// degenerate geometries cannot exhaust the call stack.
	type span struct{ first, last int }
	stack := []span{{0, len(route) - 1}}

	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		// Find the point farthest from the chord first..last
		maxDist := 0.0
		maxIdx := -1
		for i := s.first + 1; i < s.last; i++ {
			d := perpendicularDistance(route[i], route[s.first], route[s.last])
			if d > maxDist {
				maxDist = d
				maxIdx = i
			}
		}

		if maxIdx >= 0 && maxDist > epsilon {
			keep[maxIdx] = true
			stack = append(stack, span{s.first, maxIdx}, span{maxIdx, s.last})
		}
	}

	simplified := make([]models.LatLng, 0, len(route))
	for i, k := range keep {
		if k {
			simplified = append(simplified, route[i])
		}
	}
	return simplified
}

// perpendicularDistance returns the distance in degrees from point p to the
// line segment a..b, computed in planar degree space.
func perpendicularDistance(p, a, b models.LatLng) float64 {
	dx := b.Lat - a.Lat
	dy := b.Lng - a.Lng

	// Degenerate segment: distance to the point itself
	if dx == 0 && dy == 0 {
		return math.Hypot(p.Lat-a.Lat, p.Lng-a.Lng)
	}

	// Project p onto the segment, clamped to its endpoints
	t := ((p.Lat-a.Lat)*dx + (p.Lng-a.Lng)*dy) / (dx*dx + dy*dy)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	nearestLat := a.Lat + t*dx
	nearestLng := a.Lng + t*dy

	return math.Hypot(p.Lat-nearestLat, p.Lng-nearestLng)
}
