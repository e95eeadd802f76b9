// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package capture

import (
	"context"
	"sync"
	"time"

	"github.com/mototwist/mototwist/internal/cache"
	"github.com/mototwist/mototwist/internal/logging"
	"github.com/mototwist/mototwist/internal/metrics"
	"github.com/mototwist/mototwist/internal/routing"
)

// defaultSessionTTL applies when the configured TTL is non-positive.
const defaultSessionTTL = 30 * time.Minute

// Manager keys capture sessions by user and enforces the
// one-session-per-rider invariant. It is the capture canceler the layer
// manager collapses sessions through, and a suture service whose Serve
// loop expires sessions nobody has touched for the TTL.
type Manager struct {
	router   routing.Router
	notifier Notifier
	view     View
	ttl      time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	idle     *cache.MinHeap[*Session]
}

// NewManager creates a capture session manager. Sessions untouched for ttl
// are cancelled by the janitor.
func NewManager(router routing.Router, notifier Notifier, view View, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Manager{
		router:   router,
		notifier: notifier,
		view:     view,
		ttl:      ttl,
		sessions: make(map[string]*Session),
		idle:     cache.NewMinHeap[*Session](0),
	}
}

// Start opens a capture session for the rider. Residue from an unconsumed
// finalize is discarded; a session that is still capturing is an error.
func (m *Manager) Start(ctx context.Context, userID string) (Snapshot, error) {
	m.mu.Lock()
	if existing, ok := m.sessions[userID]; ok {
		if existing.State() == StateCapturing {
			m.mu.Unlock()
			return Snapshot{}, ErrAlreadyCapturing
		}
		delete(m.sessions, userID)
		m.idle.Remove(userID)
	}

	s := &Session{
		userID:   userID,
		router:   m.router,
		notifier: m.notifier,
		view:     m.view,
		state:    StateCapturing,
	}
	m.sessions[userID] = s
	m.idle.Push(userID, s, time.Now())
	m.mu.Unlock()

	metrics.TrackCaptureSession(true)
	logging.Info().Str("user_id", userID).Msg("Capture session started")

	snap := s.Snapshot()
	s.pushView(snap)
	return snap, nil
}

// AddWaypoint appends a waypoint to the rider's session.
func (m *Manager) AddWaypoint(ctx context.Context, userID string, lat, lng float64) (Snapshot, error) {
	s, err := m.session(userID)
	if err != nil {
		return Snapshot{}, err
	}
	return s.AddWaypoint(ctx, lat, lng)
}

// MoveWaypoint updates the coordinate of the rider's waypoint at index.
func (m *Manager) MoveWaypoint(ctx context.Context, userID string, index int, lat, lng float64) (Snapshot, error) {
	s, err := m.session(userID)
	if err != nil {
		return Snapshot{}, err
	}
	return s.MoveWaypoint(ctx, index, lat, lng)
}

// UpdateWaypoint sets name and suppressed flag of the waypoint at index.
func (m *Manager) UpdateWaypoint(userID string, index int, name string, suppressed bool) (Snapshot, error) {
	s, err := m.session(userID)
	if err != nil {
		return Snapshot{}, err
	}
	return s.UpdateWaypoint(index, name, suppressed)
}

// RemoveWaypoint deletes the rider's waypoint at index.
func (m *Manager) RemoveWaypoint(ctx context.Context, userID string, index int) (Snapshot, error) {
	s, err := m.session(userID)
	if err != nil {
		return Snapshot{}, err
	}
	return s.RemoveWaypoint(ctx, index)
}

// Finalize validates and finalizes the rider's session. The int return is
// the unnamed non-suppressed waypoint count (warning, never blocking).
func (m *Manager) Finalize(userID string) (Snapshot, int, error) {
	s, err := m.session(userID)
	if err != nil {
		return Snapshot{}, 0, err
	}

	snap, unnamed, err := s.Finalize()
	if err != nil {
		return Snapshot{}, 0, err
	}

	metrics.TrackCaptureSession(false)
	metrics.RecordCaptureOutcome("finalized", len(snap.Waypoints))
	logging.Info().
		Str("user_id", userID).
		Int("waypoints", len(snap.Waypoints)).
		Int("unnamed", unnamed).
		Msg("Capture session finalized")
	return snap, unnamed, nil
}

// Payload returns the finalized capture result for the rider.
func (m *Manager) Payload(userID string) (Payload, error) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	m.mu.Unlock()
	if !ok {
		return Payload{}, ErrNotCapturing
	}
	return s.Payload()
}

// Consume drops the rider's finalized session after its payload has been
// merged into a successful twist create. No-op otherwise.
func (m *Manager) Consume(userID string) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if ok && s.State() == StateFinalized {
		delete(m.sessions, userID)
		m.idle.Remove(userID)
	} else {
		ok = false
	}
	m.mu.Unlock()

	if ok {
		s.pushView(idleSnapshot())
	}
}

// Cancel aborts the rider's session: in-flight routing is cancelled,
// waypoints and geometry are cleared, the view resets. Idempotent; calling
// it with no session in progress is a no-op.
func (m *Manager) Cancel(ctx context.Context, userID string) error {
	return m.end(userID, "cancelled")
}

// Collapse cancels like Cancel but records the collapse outcome. Invoked
// when a created route arrives for the rider: a created route and an
// in-progress capture must never coexist.
func (m *Manager) Collapse(ctx context.Context, userID string) error {
	return m.end(userID, "collapsed")
}

// Snapshot returns the rider's session snapshot, or an idle snapshot when
// no session exists.
func (m *Manager) Snapshot(userID string) Snapshot {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	m.mu.Unlock()
	if !ok {
		return idleSnapshot()
	}
	return s.Snapshot()
}

// Len returns the number of tracked sessions, finalized ones included.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ExpireIdle cancels every session untouched for longer than the TTL and
// returns how many were expired.
func (m *Manager) ExpireIdle() int {
	cutoff := time.Now().Add(-m.ttl)

	m.mu.Lock()
	entries := m.idle.PopBefore(cutoff)
	for _, e := range entries {
		delete(m.sessions, e.Key)
	}
	m.mu.Unlock()

	for _, e := range entries {
		wasCapturing, snap := e.Value.end()
		if wasCapturing {
			metrics.TrackCaptureSession(false)
			metrics.RecordCaptureOutcome("expired", 0)
		}
		e.Value.pushView(snap)
		logging.Info().
			Str("user_id", e.Key).
			Dur("ttl", m.ttl).
			Msg("Idle capture session expired")
	}

	return len(entries)
}

// Serve runs the idle-session janitor until ctx is cancelled. It satisfies
// suture.Service so the manager slots into the supervisor tree.
func (m *Manager) Serve(ctx context.Context) error {
	ticker := time.NewTicker(m.sweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.ExpireIdle()
		}
	}
}

// String names the manager in supervisor logs.
func (m *Manager) String() string {
	return "capture-janitor"
}

func (m *Manager) sweepInterval() time.Duration {
	interval := m.ttl / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	return interval
}

// session looks up the rider's session and refreshes its idle timestamp.
func (m *Manager) session(userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		return nil, ErrNotCapturing
	}
	m.idle.Update(userID, time.Now())
	return s, nil
}

// end drops the rider's session and cancels it with the given outcome.
func (m *Manager) end(userID, outcome string) error {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if ok {
		delete(m.sessions, userID)
		m.idle.Remove(userID)
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}

	wasCapturing, snap := s.end()
	if wasCapturing {
		metrics.TrackCaptureSession(false)
		metrics.RecordCaptureOutcome(outcome, 0)
	}
	s.pushView(snap)
	logging.Info().
		Str("user_id", userID).
		Str("outcome", outcome).
		Msg("Capture session ended")
	return nil
}
