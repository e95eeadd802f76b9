// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

// Package cache provides the in-memory data structures that keep the
// catalog responsive without round-tripping to DuckDB or OSRM.
//
// # Structures
//
// Cache (TTL) and LFUCache back the catalog query cache: twist list
// responses are cached per filter-hash and invalidated whenever a twist
// is created or deleted. The Cacher interface lets the API layer switch
// between the two strategies via configuration.
//
// LRUCache holds recent OSRM geometry responses keyed by a hash of the
// ordered waypoint coordinates. Capture sessions re-request the same
// waypoint sets often (a rider drags a waypoint and drags it back), so a
// small bounded cache avoids repeat routing calls for identical inputs.
//
// SpatialHashGrid buckets coordinates into grid cells for O(k) proximity
// lookups. The geo package builds a grid over route vertices to find
// snap candidates on long geometries instead of scanning every segment.
//
// MinHeap is a timestamp-ordered heap with O(1) key lookup. The capture
// session manager uses it to expire idle sessions: each session is
// pushed with its last-activity time and the janitor pops everything
// older than the configured idle limit.
//
// Trie powers twist-name autocomplete for the catalog search box.
//
// # Choosing a query cache
//
//	// Standard TTL cache (default)
//	c := cache.NewCacher(cache.CacheConfig{Type: cache.CacheTypeTTL, TTL: 5 * time.Minute})
//
//	// LFU for skewed access (a few popular twists dominate reads)
//	c := cache.NewCacher(cache.CacheConfig{Type: cache.CacheTypeLFU, TTL: 5 * time.Minute, Capacity: 10000})
//
// All structures are safe for concurrent use.
package cache
