// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPrometheusMetrics_CapturesStatusCode(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
	}{
		{
			name: "explicit 200",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "implicit 200 via write",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("ok"))
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := PrometheusMetrics(tt.handler)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/twists", nil)
			rec := httptest.NewRecorder()

			wrapped(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "static path unchanged",
			path: "/api/v1/twists",
			want: "/api/v1/twists",
		},
		{
			name: "numeric twist id",
			path: "/api/v1/twists/42",
			want: "/api/v1/twists/{id}",
		},
		{
			name: "numeric id with suffix",
			path: "/api/v1/twists/42/geometry",
			want: "/api/v1/twists/{id}/geometry",
		},
		{
			name: "rating path",
			path: "/api/v1/twists/1234/ratings",
			want: "/api/v1/twists/{id}/ratings",
		},
		{
			name: "capture waypoint index",
			path: "/api/v1/capture/waypoints/3",
			want: "/api/v1/capture/waypoints/{id}",
		},
		{
			name: "root path",
			path: "/",
			want: "/",
		},
		{
			name: "health endpoint",
			path: "/health",
			want: "/health",
		},
		{
			name: "multiple numeric segments",
			path: "/api/v1/twists/7/ratings/12",
			want: "/api/v1/twists/{id}/ratings/{id}",
		},
		{
			name: "mixed alphanumeric segment preserved",
			path: "/api/v1/twists/abc123",
			want: "/api/v1/twists/abc123",
		},
		{
			name: "empty path",
			path: "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePath(tt.path)
			if got != tt.want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestMetricsResponseWriter_DefaultStatus(t *testing.T) {
	// A handler that never calls WriteHeader should report 200
	rec := httptest.NewRecorder()
	mrw := &metricsResponseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	if mrw.statusCode != http.StatusOK {
		t.Errorf("Expected default status 200, got %d", mrw.statusCode)
	}

	mrw.WriteHeader(http.StatusTeapot)
	if mrw.statusCode != http.StatusTeapot {
		t.Errorf("Expected status 418 after WriteHeader, got %d", mrw.statusCode)
	}
}

func BenchmarkNormalizePath(b *testing.B) {
	paths := []string{
		"/api/v1/twists",
		"/api/v1/twists/42/geometry",
		"/api/v1/capture/waypoints/3",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = NormalizePath(paths[i%len(paths)])
	}
}
