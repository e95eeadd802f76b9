// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package routing

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/mototwist/mototwist/internal/config"
	"github.com/mototwist/mototwist/internal/logging"
	"github.com/mototwist/mototwist/internal/metrics"
	"github.com/mototwist/mototwist/internal/models"
)

// CircuitBreakerRouter wraps a Router with a circuit breaker so a dead or
// overloaded routing service fails fast instead of stacking up timeouts.
//
// DETERMINISM NOTE: the breaker uses real time (via sony/gobreaker) for its
// interval and timeout calculations. The timing governs recovery, not data
// integrity; unit tests should exercise the wrapped Router directly.
type CircuitBreakerRouter struct {
	router Router
	cb     *gobreaker.CircuitBreaker[[]models.LatLng]
	name   string
}

// NewCircuitBreakerRouter creates the production routing client:
// an OSRM Client wrapped in a circuit breaker.
//
// Breaker configuration:
//   - Max 3 concurrent requests in half-open state
//   - 1 minute measurement window
//   - 2 minute timeout before attempting recovery
//   - Opens after 60% failure rate with minimum 10 requests
//   - Cancelled requests (superseded capture edits) never count as failures
func NewCircuitBreakerRouter(cfg *config.RoutingConfig) *CircuitBreakerRouter {
	return newCircuitBreakerRouter(NewClient(cfg))
}

func newCircuitBreakerRouter(router Router) *CircuitBreakerRouter {
	cbName := "osrm-routing"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[[]models.LatLng](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		// Opens when failure rate >= 60% with minimum 10 requests
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6

			if shouldTrip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening routing circuit")
			}

			return shouldTrip
		},

		// A capture session cancelling its own superseded request says
		// nothing about routing service health.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return errors.Is(err, context.Canceled)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().
				Str("from", fromStr).
				Str("to", toStr).
				Msg("[CIRCUIT BREAKER] Routing state transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &CircuitBreakerRouter{
		router: router,
		cb:     cb,
		name:   cbName,
	}
}

// execute wraps a routing call with circuit breaker protection.
func (r *CircuitBreakerRouter) execute(fn func() ([]models.LatLng, error)) ([]models.LatLng, error) {
	result, err := r.cb.Execute(fn)

	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			metrics.CircuitBreakerRequests.WithLabelValues(r.name, "rejected").Inc()
			logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Routing request rejected")
		case errors.Is(err, context.Canceled):
			// Superseded capture edit; neither success nor failure.
		default:
			metrics.CircuitBreakerRequests.WithLabelValues(r.name, "failure").Inc()
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(r.name, "success").Inc()
	return result, nil
}

// Route computes road-snapped geometry with circuit breaker protection.
func (r *CircuitBreakerRouter) Route(ctx context.Context, waypoints []models.LatLng) ([]models.LatLng, error) {
	return r.execute(func() ([]models.LatLng, error) {
		return r.router.Route(ctx, waypoints)
	})
}

// Ping verifies routing service connectivity with circuit breaker protection.
func (r *CircuitBreakerRouter) Ping(ctx context.Context) error {
	_, err := r.execute(func() ([]models.LatLng, error) {
		return nil, r.router.Ping(ctx)
	})
	return err
}

// State exposes the breaker state for the health endpoint.
func (r *CircuitBreakerRouter) State() gobreaker.State {
	return r.cb.State()
}

// stateToFloat converts circuit breaker state to a numeric gauge value.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to a log label.
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
