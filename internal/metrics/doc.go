// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package instruments the whole binary with the Prometheus client library,
exposing metrics for performance, errors, and system health.

# Overview

The package provides metrics for:
  - HTTP request latency and throughput
  - DuckDB query performance
  - OSRM routing client outcomes, retries and circuit breaker state
  - Layer cache hit/miss/eviction rates and geometry fetches
  - Route capture session lifecycle and geometry recomputation outcomes
  - Persisted visible-set store operations
  - WebSocket connection counts and domain event bus throughput

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8000/metrics

# Usage Example

Basic setup in main.go:

	import (
	    "github.com/mototwist/mototwist/internal/metrics"
	    "github.com/prometheus/client_golang/prometheus/promhttp"
	)

	func main() {
	    http.Handle("/metrics", promhttp.Handler())

	    metrics.RecordAPIRequest("GET", "/api/v1/twists", "200", 23*time.Millisecond)
	    metrics.RecordDBQuery("SELECT", "twists", 5*time.Millisecond, nil)
	    metrics.RecordRoutingRequest("success", 3, 180*time.Millisecond)
	}

# Thread Safety

All metric recording functions are thread-safe and designed for concurrent use
from multiple goroutines. The Prometheus client library handles synchronization
internally.

# Cardinality Management

To prevent high cardinality issues:

  - Endpoint labels are normalized (no query parameters, no path ids)
  - Error types are mapped to a fixed vocabulary before labeling
  - User- and Twist-specific labels are avoided

Example PromQL queries:

	# Layer cache hit rate
	rate(layer_cache_hits_total[5m]) /
	  (rate(layer_cache_hits_total[5m]) + rate(layer_cache_misses_total[5m]))

	# OSRM p95 latency
	histogram_quantile(0.95, rate(osrm_request_duration_seconds_bucket[5m]))

	# Share of capture geometry updates lost to supersede-cancellation
	rate(capture_geometry_updates_total{result="superseded"}[5m])

# See Also

  - internal/middleware: HTTP middleware with metrics integration
  - internal/database: Database metrics recording
  - internal/routing: OSRM client metrics recording
  - https://prometheus.io/docs/practices/naming/: Metric naming conventions
*/
package metrics
