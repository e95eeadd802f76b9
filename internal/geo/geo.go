// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package geo

import (
	"math"

	"github.com/mototwist/mototwist/internal/models"
)

// EarthRadius is the WGS84 semi-major axis in meters.
const EarthRadius = 6378137.0

// MetersPerDegree approximates one degree of latitude in meters. Tolerances
// configured in meters are converted to degrees with this factor before
// simplification.
const MetersPerDegree = 111132.0

// DegreesToRadians converts degrees to radians.
func DegreesToRadians(d float64) float64 {
	return d * math.Pi / 180.0
}

// HaversineDistance returns the great-circle distance between two
// coordinates in meters.
func HaversineDistance(a, b models.LatLng) float64 {
	lat1 := DegreesToRadians(a.Lat)
	lng1 := DegreesToRadians(a.Lng)
	lat2 := DegreesToRadians(b.Lat)
	lng2 := DegreesToRadians(b.Lng)

	dLat := lat2 - lat1
	dLng := lng2 - lng1

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadius * c
}

// RouteDistance returns the total length of a polyline in meters.
func RouteDistance(route []models.LatLng) float64 {
	var total float64
	for i := 1; i < len(route); i++ {
		total += HaversineDistance(route[i-1], route[i])
	}
	return total
}
