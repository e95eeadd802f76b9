// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

// Package testinfra manages Docker containers for integration tests
// via testcontainers-go. Everything here builds only under the
// integration tag:
//
//	go test -tags integration ./...
//
// The OSRM container runs a real osrm-backend against a small
// OpenStreetMap extract, preprocessing it inside the container, so
// routing-client tests exercise the actual wire format instead of a
// fake server:
//
//	testinfra.SkipIfNoDocker(t)
//	osrm, err := testinfra.NewOSRMContainer(ctx,
//		testinfra.WithPBF(os.Getenv("OSRM_TEST_PBF")))
//	if err != nil {
//		t.Fatal(err)
//	}
//	defer testinfra.CleanupContainer(t, ctx, osrm.Container)
//	// osrm.URL speaks the OSRM v1 HTTP API
//
// Tests skip gracefully when Docker is unavailable, so the plain unit
// suite never needs it. First runs download the osrm-backend image
// and preprocess the extract; both are cached afterwards. The
// Geofabrik Monaco extract (~3 MB) preprocesses in a few seconds and
// covers the default test coordinates.
package testinfra
