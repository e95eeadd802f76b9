// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package metrics

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - Database query performance (DuckDB)
// - API endpoint latency and throughput
// - OSRM routing client outcomes and circuit breaker state
// - Layer cache efficiency and geometry fetches
// - Capture session lifecycle
// - WebSocket connections and event bus throughput

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets, // 0.005s, 0.01s, 0.025s, 0.05s, 0.1s, 0.25s, 0.5s, 1s, 2.5s, 5s, 10s
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	DBConnectionPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "duckdb_connection_pool_size",
			Help: "Current number of database connections in use",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}, // Optimized for API latency
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// OSRM Routing Client Metrics
	RoutingRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "osrm_request_duration_seconds",
			Help:    "Duration of OSRM route requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RoutingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osrm_requests_total",
			Help: "Total number of OSRM route requests",
		},
		[]string{"result"}, // "success", "failure", "cancelled", "rejected"
	)

	RoutingRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "osrm_request_retries_total",
			Help: "Total number of OSRM request retry attempts",
		},
	)

	RoutingWaypointCount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "osrm_request_waypoints",
			Help:    "Number of waypoints per OSRM route request",
			Buckets: []float64{2, 3, 5, 8, 13, 21, 34, 55},
		},
	)

	// Layer Cache Metrics
	LayerCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "layer_cache_hits_total",
			Help: "Total number of layer cache hits (show served without a geometry fetch)",
		},
	)

	LayerCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "layer_cache_misses_total",
			Help: "Total number of layer cache misses (geometry fetch required)",
		},
	)

	LayerCacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "layer_cache_evictions_total",
			Help: "Total number of layer cache evictions",
		},
		[]string{"reason"}, // "deleted", "fetch_failed"
	)

	LayerCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "layer_cache_entries",
			Help: "Current number of materialized route layers",
		},
	)

	GeometryFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geometry_fetch_duration_seconds",
			Help:    "Duration of route geometry fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	GeometryFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geometry_fetch_errors_total",
			Help: "Total number of route geometry fetch failures",
		},
		[]string{"error_type"}, // "not_found", "database", "decode"
	)

	// Visible-Set Store Metrics
	VisibleSetOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visible_set_operations_total",
			Help: "Total number of persisted visible-set store operations",
		},
		[]string{"operation"}, // "add", "remove", "load", "save", "clear"
	)

	VisibleSetSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "visible_set_ids",
			Help: "Number of route ids in the most recently loaded visible-set",
		},
	)

	// Capture Session Metrics
	CaptureSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "capture_sessions_active",
			Help: "Current number of capturing route sessions",
		},
	)

	CaptureSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capture_sessions_total",
			Help: "Total number of capture sessions by terminal outcome",
		},
		[]string{"outcome"}, // "finalized", "cancelled", "collapsed"
	)

	CaptureGeometryUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capture_geometry_updates_total",
			Help: "Total number of capture geometry recomputations",
		},
		[]string{"result"}, // "applied", "superseded", "failed", "skipped"
	)

	CaptureWaypointCount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "capture_finalized_waypoints",
			Help:    "Number of waypoints in finalized capture sessions",
			Buckets: []float64{2, 3, 5, 8, 13, 21, 34, 55},
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Domain Event Bus Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of domain events published",
		},
		[]string{"type"},
	)

	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_delivered_total",
			Help: "Total number of domain events delivered to subscribers",
		},
		[]string{"type"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_dropped_total",
			Help: "Total number of domain events dropped (decode or handler failure)",
		},
		[]string{"type", "reason"},
	)

	// Authorization Metrics
	AuthzDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"role", "resource", "action", "decision"},
	)

	AuthzDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_denied_total",
			Help: "Total number of denied authorization requests",
		},
		[]string{"role", "resource", "action"},
	)

	AuthzDecisionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authz_decision_duration_seconds",
			Help:    "Authorization decision latency in seconds",
			Buckets: []float64{.00001, .0001, .001, .01, .1},
		},
		[]string{"role"},
	)

	AuthzCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authz_cache_hits_total",
			Help: "Total number of authorization cache hits",
		},
	)

	AuthzCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authz_cache_misses_total",
			Help: "Total number of authorization cache misses",
		},
	)

	AuthzErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_errors_total",
			Help: "Total number of authorization errors",
		},
		[]string{"error_type"},
	)

	// Audit Trail Metrics
	AuditEventsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_written_total",
			Help: "Total number of audit events written to the store",
		},
		[]string{"category", "outcome"},
	)

	AuditEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_events_dropped_total",
			Help: "Total number of audit events dropped because the buffer was full",
		},
	)

	AuditWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_write_errors_total",
			Help: "Total number of audit events that failed to persist",
		},
	)

	// Backup Metrics
	BackupSnapshots = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_snapshots_total",
			Help: "Total number of database snapshot attempts",
		},
		[]string{"outcome"}, // "success", "failure"
	)

	BackupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "backup_snapshot_duration_seconds",
			Help:    "Time taken to write a database snapshot",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
	)

	BackupLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "backup_last_success_timestamp_seconds",
			Help: "Unix time of the last successful snapshot",
		},
	)

	BackupSnapshotsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backup_snapshots_pruned_total",
			Help: "Total number of snapshots removed by retention pruning",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRoutingRequest records an OSRM route request outcome.
// result is one of "success", "failure", "cancelled", "rejected".
func RecordRoutingRequest(result string, waypoints int, duration time.Duration) {
	RoutingRequests.WithLabelValues(result).Inc()
	RoutingWaypointCount.Observe(float64(waypoints))
	// Cancelled requests report a truncated duration that would skew the
	// latency distribution, so only completed calls are observed.
	if result == "success" || result == "failure" {
		RoutingRequestDuration.Observe(duration.Seconds())
	}
}

// RecordLayerCacheHit records a show request served from the layer cache.
func RecordLayerCacheHit() {
	LayerCacheHits.Inc()
}

// RecordLayerCacheMiss records a show request that required a geometry fetch.
func RecordLayerCacheMiss() {
	LayerCacheMisses.Inc()
}

// RecordLayerEviction records a layer cache eviction.
// reason is "deleted" or "fetch_failed".
func RecordLayerEviction(reason string) {
	LayerCacheEvictions.WithLabelValues(reason).Inc()
}

// RecordGeometryFetch records a route geometry fetch outcome.
func RecordGeometryFetch(duration time.Duration, err error) {
	GeometryFetchDuration.Observe(duration.Seconds())
	if err != nil {
		errorType := "database"
		errorMsg := err.Error()
		switch {
		case contains(errorMsg, "not found"):
			errorType = "not_found"
		case contains(errorMsg, "decode"), contains(errorMsg, "unmarshal"):
			errorType = "decode"
		}
		GeometryFetchErrors.WithLabelValues(errorType).Inc()
	}
}

// RecordVisibleSetOp records a visible-set store operation.
func RecordVisibleSetOp(operation string) {
	VisibleSetOps.WithLabelValues(operation).Inc()
}

// RecordCaptureOutcome records a capture session reaching a terminal state.
// outcome is "finalized", "cancelled", "collapsed" or "expired".
func RecordCaptureOutcome(outcome string, waypoints int) {
	CaptureSessionsTotal.WithLabelValues(outcome).Inc()
	if outcome == "finalized" {
		CaptureWaypointCount.Observe(float64(waypoints))
	}
}

// RecordCaptureGeometryUpdate records one capture geometry recomputation.
// result is "applied", "superseded", "failed" or "skipped".
func RecordCaptureGeometryUpdate(result string) {
	CaptureGeometryUpdates.WithLabelValues(result).Inc()
}

// TrackCaptureSession tracks the active capture session gauge.
func TrackCaptureSession(inc bool) {
	if inc {
		CaptureSessionsActive.Inc()
	} else {
		CaptureSessionsActive.Dec()
	}
}

// RecordEventPublished records a domain event publication.
func RecordEventPublished(eventType string) {
	EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventDelivered records a domain event delivery to a subscriber.
func RecordEventDelivered(eventType string) {
	EventsDelivered.WithLabelValues(eventType).Inc()
}

// RecordEventDropped records a domain event that could not be handled.
// reason is "decode_failed", "unknown_type" or "sink_error".
func RecordEventDropped(eventType, reason string) {
	EventsDropped.WithLabelValues(eventType, reason).Inc()
}

// RecordAuthzDecision records an authorization decision. The resource
// path is normalized (IDs replaced with *) to bound label cardinality.
func RecordAuthzDecision(role, resource, action string, allowed bool, duration time.Duration) {
	pattern := normalizeResource(resource)
	decision := "allowed"
	if !allowed {
		decision = "denied"
		AuthzDenied.WithLabelValues(role, pattern, action).Inc()
	}
	AuthzDecisions.WithLabelValues(role, pattern, action, decision).Inc()
	AuthzDecisionDuration.WithLabelValues(role).Observe(duration.Seconds())
}

// RecordAuthzCacheHit records an authorization decision served from cache.
func RecordAuthzCacheHit() {
	AuthzCacheHits.Inc()
}

// RecordAuthzCacheMiss records an authorization decision that missed the cache.
func RecordAuthzCacheMiss() {
	AuthzCacheMisses.Inc()
}

// RecordAuthzError records an authorization enforcement error.
func RecordAuthzError(errorType string) {
	AuthzErrors.WithLabelValues(errorType).Inc()
}

// RecordAuditEvent records an audit event written to the store.
func RecordAuditEvent(category, outcome string) {
	AuditEventsWritten.WithLabelValues(category, outcome).Inc()
}

// RecordAuditDropped records an audit event lost to a full buffer.
func RecordAuditDropped() {
	AuditEventsDropped.Inc()
}

// RecordAuditWriteError records an audit event that failed to persist.
func RecordAuditWriteError() {
	AuditWriteErrors.Inc()
}

// RecordBackup records the outcome of a database snapshot attempt.
func RecordBackup(duration time.Duration, err error) {
	if err != nil {
		BackupSnapshots.WithLabelValues("failure").Inc()
		return
	}
	BackupSnapshots.WithLabelValues("success").Inc()
	BackupDuration.Observe(duration.Seconds())
	BackupLastSuccess.SetToCurrentTime()
}

// RecordBackupPruned counts snapshots removed by retention pruning.
func RecordBackupPruned(n int) {
	if n > 0 {
		BackupSnapshotsPruned.Add(float64(n))
	}
}

// normalizeResource replaces path segments that look like identifiers
// (UUIDs or bare numbers) with * so metric labels stay low-cardinality.
func normalizeResource(resource string) string {
	parts := strings.Split(resource, "/")
	changed := false
	for i, part := range parts {
		if looksLikeID(part) {
			parts[i] = "*"
			changed = true
		}
	}
	if !changed {
		return resource
	}
	return strings.Join(parts, "/")
}

func looksLikeID(segment string) bool {
	if segment == "" {
		return false
	}
	if _, err := uuid.Parse(segment); err == nil {
		return true
	}
	for _, r := range segment {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Helper function to check if string contains substring
func contains(s, substr string) bool {
	return len(s) >= len(substr) && s[:len(substr)] == substr
}
