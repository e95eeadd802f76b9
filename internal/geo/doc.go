// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

// Package geo implements the geometry operations applied to a route before
// it is stored: waypoint snapping and polyline simplification, plus the
// haversine distance helpers the catalog uses for map-center ordering.
//
// All coordinates are WGS84 degrees. Simplification and snapping operate in
// raw degree space with a flat meters-per-degree approximation, which keeps
// results stable for road-scale routes and matches how route tolerances are
// configured ("25m").
package geo
