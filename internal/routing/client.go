// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package routing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/mototwist/mototwist/internal/cache"
	"github.com/mototwist/mototwist/internal/config"
	"github.com/mototwist/mototwist/internal/metrics"
	"github.com/mototwist/mototwist/internal/models"
)

// maxErrorBodySize limits how much of an error response body is read for
// error reporting, preventing unbounded allocation on large error pages.
const maxErrorBodySize = 64 * 1024 // 64KB

// routeCacheSize bounds the LRU response cache. Route geometry for a
// waypoint set doesn't change between identical requests, so repeated
// drags back to a previous position are served without a round trip.
const routeCacheSize = 256

// routeCacheTTL expires cached geometry. OSRM data updates rarely; an
// hour keeps a capture session snappy without serving stale roads for
// long-running processes.
const routeCacheTTL = time.Hour

// ErrTooFewWaypoints is returned when a route is requested for fewer than
// two waypoints. Callers clear existing geometry instead of routing.
var ErrTooFewWaypoints = errors.New("route requires at least 2 waypoints")

// ErrNoRoute is returned when OSRM cannot connect the waypoints (e.g. a
// point in the ocean or across a ferry-less gap).
var ErrNoRoute = errors.New("no route found between waypoints")

// Router computes road-snapped geometry over an ordered waypoint sequence.
//
// Implemented by Client for direct OSRM access and by CircuitBreakerRouter
// for production use. Route returns geometry in (lat, lng) order.
type Router interface {
	Route(ctx context.Context, waypoints []models.LatLng) ([]models.LatLng, error)
	Ping(ctx context.Context) error
}

// Client is the OSRM HTTP client.
//
// Features:
//   - configurable request timeout
//   - automatic retry with exponential backoff on HTTP 429
//   - Retry-After header support (RFC 6585)
//   - outbound rate limiting via x/time/rate
//   - LRU response cache keyed by the waypoint sequence
//
// Thread Safety: safe for concurrent use.
type Client struct {
	baseURL        string
	client         *http.Client
	maxRetries     int
	retryBaseDelay time.Duration
	limiter        *rate.Limiter
	routeCache     *cache.LRUCache
}

// NewClient creates an OSRM client from the routing configuration.
func NewClient(cfg *config.RoutingConfig) *Client {
	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = int(rps)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	retryDelay := cfg.RetryBaseDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.OSRMURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: retryDelay,
		limiter:        rate.NewLimiter(rate.Limit(rps), burst),
		routeCache:     cache.NewLRUCache(routeCacheSize, routeCacheTTL),
	}
}

// osrmResponse is the top-level OSRM route service response.
type osrmResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Routes  []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Geometry osrmGeometry `json:"geometry"`
	Distance float64      `json:"distance"`
	Duration float64      `json:"duration"`
}

// osrmGeometry is a GeoJSON LineString: coordinates in (lng, lat) order.
type osrmGeometry struct {
	Type        string      `json:"type"`
	Coordinates [][]float64 `json:"coordinates"`
}

// Route requests road-snapped geometry connecting the waypoints in order.
//
// The returned coordinates are in (lat, lng) order, reordered from OSRM's
// GeoJSON (lng, lat). Identical waypoint sequences are served from the
// response cache. A cancelled context surfaces as context.Canceled through
// the returned error chain.
func (c *Client) Route(ctx context.Context, waypoints []models.LatLng) ([]models.LatLng, error) {
	if len(waypoints) < 2 {
		return nil, ErrTooFewWaypoints
	}
	for i, w := range waypoints {
		if !w.Valid() {
			return nil, fmt.Errorf("waypoint %d out of WGS84 bounds: (%f, %f)", i, w.Lat, w.Lng)
		}
	}

	cacheKey := cache.GenerateKey("route", waypoints)
	if cached, ok := c.routeCache.Get(cacheKey); ok {
		if geometry, ok := cached.([]models.LatLng); ok {
			metrics.RecordRoutingRequest("cache_hit", len(waypoints), 0)
			return geometry, nil
		}
	}

	// Pace outbound requests. Wait returns the context error on cancel.
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	geometry, err := c.fetchRoute(ctx, waypoints)
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			metrics.RecordRoutingRequest("cancelled", len(waypoints), duration)
		} else {
			metrics.RecordRoutingRequest("failure", len(waypoints), duration)
		}
		return nil, err
	}

	c.routeCache.Add(cacheKey, geometry)
	metrics.RecordRoutingRequest("success", len(waypoints), duration)

	return geometry, nil
}

// fetchRoute performs the OSRM request and decodes the geometry.
func (c *Client) fetchRoute(ctx context.Context, waypoints []models.LatLng) ([]models.LatLng, error) {
	reqURL := c.buildRouteURL(waypoints)

	resp, err := c.doRequestWithRateLimit(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("route request failed: %w", err)
	}
	defer resp.Body.Close()

	// OSRM reports routing errors (NoRoute, InvalidQuery) with non-200
	// statuses and a JSON body carrying code/message; decode those before
	// falling back to a raw body error.
	if resp.StatusCode != http.StatusOK {
		var osrmErr osrmResponse
		body := readBodyForError(resp.Body)
		if decodeErr := json.Unmarshal(body, &osrmErr); decodeErr == nil && osrmErr.Code != "" {
			if osrmErr.Code == "NoRoute" {
				return nil, ErrNoRoute
			}
			return nil, fmt.Errorf("routing service error %s: %s", osrmErr.Code, osrmErr.Message)
		}
		return nil, fmt.Errorf("route request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode route response: %w", err)
	}

	if result.Code != "Ok" {
		if result.Code == "NoRoute" {
			return nil, ErrNoRoute
		}
		msg := result.Message
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("routing service error %s: %s", result.Code, msg)
	}

	if len(result.Routes) == 0 {
		return nil, ErrNoRoute
	}

	return reorderGeometry(result.Routes[0].Geometry.Coordinates)
}

// buildRouteURL formats the OSRM route request. Coordinates go on the wire
// in (lng, lat) order, semicolon-separated.
func (c *Client) buildRouteURL(waypoints []models.LatLng) string {
	var sb strings.Builder
	sb.WriteString(c.baseURL)
	sb.WriteString("/route/v1/driving/")

	for i, w := range waypoints {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(strconv.FormatFloat(w.Lng, 'f', -1, 64))
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatFloat(w.Lat, 'f', -1, 64))
	}

	sb.WriteString("?overview=full&geometries=geojson")
	return sb.String()
}

// reorderGeometry converts GeoJSON (lng, lat) pairs to models.LatLng.
func reorderGeometry(coordinates [][]float64) ([]models.LatLng, error) {
	geometry := make([]models.LatLng, 0, len(coordinates))
	for i, pair := range coordinates {
		if len(pair) < 2 {
			return nil, fmt.Errorf("malformed coordinate pair at index %d", i)
		}
		geometry = append(geometry, models.LatLng{
			Lat: pair[1],
			Lng: pair[0],
		})
	}
	return geometry, nil
}

// doRequestWithRateLimit performs an HTTP request with automatic rate limit
// handling. Implements exponential backoff for HTTP 429 responses (1s, 2s,
// 4s, 8s, 16s), honoring Retry-After when the server sends one. The context
// is used for cancellation during backoff waits.
func (c *Client) doRequestWithRateLimit(ctx context.Context, reqURL string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		// Check context before attempting request
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		// Success - return response
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		// Rate limited (HTTP 429) - close body and retry with backoff
		_ = resp.Body.Close()

		// Last attempt - return error
		if attempt == c.maxRetries {
			lastErr = fmt.Errorf("rate limit exceeded after %d retries (HTTP 429)", c.maxRetries)
			break
		}

		metrics.RoutingRetries.Inc()

		// Exponential backoff delay: 1s, 2s, 4s, 8s, 16s
		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))

		// Check for Retry-After header (RFC 6585)
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}

		// Use cancellable wait instead of time.Sleep
		select {
		case <-time.After(delay):
			// Continue to next attempt
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// Ping verifies connectivity to the routing service with a nearest-road
// lookup, the cheapest OSRM call that exercises the full request path.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	// Stephansplatz, Vienna. Any mapped coordinate works.
	reqURL := c.baseURL + "/nearest/v1/driving/16.3725,48.2083?number=1"

	resp, err := c.doRequestWithRateLimit(ctx, reqURL)
	if err != nil {
		return fmt.Errorf("failed to ping routing service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("routing service ping failed with status: %d", resp.StatusCode)
	}

	return nil
}

// CacheStats exposes response cache counters for the health endpoint.
func (c *Client) CacheStats() (hits, misses int64, size int) {
	return c.routeCache.Stats()
}

// readBodyForError reads the response body for error reporting (max 64KB).
// Returns the body content or a placeholder message if reading fails.
func readBodyForError(r io.Reader) []byte {
	limitedReader := io.LimitReader(r, maxErrorBodySize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}
