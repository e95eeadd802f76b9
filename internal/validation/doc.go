// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

/*
Package validation provides request validation using go-playground/validator/v10.

All HTTP request bodies pass through ValidateStruct before any handler logic
runs; the resulting RequestValidationError maps onto the API's
VALIDATION_ERROR response envelope.

# Validated Shapes

  - Twist creation: name bounds, surface class enum, waypoint coordinates
    (latitude/longitude tags, dive for slices), geometry length
  - Catalog listing: page/page_size bounds, filter enums
    (ownership, rated, visibility), optional map-center coordinates
  - Capture operations: waypoint coordinates, waypoint index bounds
  - Ratings: criteria keys and 1..5 value bounds (complemented by
    models.ValidateCriteria for the per-surface criteria sets)

# Error Format

A single failed field produces:

	{
	  "code": "VALIDATION_ERROR",
	  "message": "Lat must be a valid latitude (-90 to 90)",
	  "details": {"field": "Lat", "tag": "latitude", "value": 123.4}
	}

Multiple failures are joined with per-field details under details.fields.

# Thread Safety

The validator singleton is created under sync.Once and is safe for
concurrent use; validator.Validate caches struct metadata internally.
*/
package validation
