// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

/*
Package middleware provides HTTP middleware components for the application.

This package implements infrastructure middleware for compression, performance
monitoring, request ID tracking, and Prometheus metrics integration. These
components work alongside the authentication middleware to create a complete
middleware stack for HTTP request processing.

Key Components:

  - Compression: Gzip compression for route geometry payloads
  - Performance Monitor: Request latency tracking with percentile calculations
  - Request ID: UUID-based request tracking for distributed tracing
  - Prometheus Metrics: HTTP request/response instrumentation with
    normalized endpoint labels (Twist ids never become label values)

Middleware Stack:

The typical middleware stack for an endpoint is:

	http.HandleFunc("/api/v1/twists",
	    auth.CORS(                            // Layer 1: CORS headers
	        auth.RateLimit(                   // Layer 2: Rate limiting
	            middleware.PrometheusMetrics( // Layer 3: Metrics
	                middleware.Compression(   // Layer 4: Gzip
	                    middleware.RequestID( // Layer 5: Request tracking
	                        handler,          // Layer 6: Business logic
	                    ),
	                ),
	            ),
	        ),
	    ),
	)

With the chi router the same stack is composed through r.Use; see
internal/api for the production wiring.

Usage Example - Request ID:

	http.HandleFunc("/api/v1/twists",
	    middleware.RequestID(handler),
	)

	func handler(w http.ResponseWriter, r *http.Request) {
	    requestID := middleware.GetRequestID(r.Context())
	    logging.Ctx(r.Context()).Info().Msg("processing request")
	}

Thread Safety:

All middleware components are thread-safe:
  - Compression uses pooled per-request gzip writers
  - Performance monitor uses sync.RWMutex
  - Request ID uses context.Context (immutable)
  - Prometheus metrics use atomic operations

See Also:

  - internal/auth: Authentication middleware
  - internal/api: HTTP handlers wrapped by middleware
  - internal/metrics: Prometheus metrics definitions
*/
package middleware
