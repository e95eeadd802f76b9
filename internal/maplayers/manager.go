// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

// Package maplayers manages materialized route layers and per-rider layer
// visibility. A layer is built from route geometry at most once per route
// id and cached for the life of the process; showing and hiding a route
// only attaches or detaches the cached layer on the rider's map view.
// Hiding never evicts. Eviction happens when the route is deleted or when
// a geometry fetch fails partway, so a later show can retry cleanly.
//
// The manager enforces two invariants. A layer is never attached for a
// route the rider does not currently have visible, even when a fetch
// completes after the rider hid the route. And no two fetches for the same
// route id are ever in flight at once: cache presence gates the fetch, and
// concurrent misses for one id share a single flight.
package maplayers

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mototwist/mototwist/internal/logging"
	"github.com/mototwist/mototwist/internal/metrics"
	"github.com/mototwist/mototwist/internal/models"
)

// GeometryProvider fetches the canonical geometry for a route. It is
// satisfied by *database.DB.
type GeometryProvider interface {
	GetTwistGeometry(ctx context.Context, id int64) (*models.TwistGeometry, error)
}

// VisibleStore persists per-rider visible-set membership. It is satisfied
// by *visstore.Store.
type VisibleStore interface {
	Get(ctx context.Context, userID string) ([]int64, bool, error)
	SetVisible(ctx context.Context, userID string, twistID int64, visible bool) error
	RemoveTwist(ctx context.Context, twistID int64) (int, error)
}

// Renderer delivers map commands to a rider's connected clients. Calls
// must not block; the websocket hub queues per client and drops slow ones.
type Renderer interface {
	AttachLayer(userID string, layer *Layer)
	DetachLayer(userID string, routeID int64)
	FocusRoute(userID string, routeID int64)
	UpdateEye(userID string, routeID int64, visible bool)
}

// Notifier surfaces user-facing messages, typically as flash banners.
type Notifier interface {
	Notify(userID, level, message string)
}

// CaptureCanceler abandons a rider's in-progress capture session. It is
// satisfied by *capture.Manager.
type CaptureCanceler interface {
	Collapse(ctx context.Context, userID string) error
}

// Manager owns the shared layer cache and each rider's attachment state.
type Manager struct {
	geo      GeometryProvider
	store    VisibleStore
	renderer Renderer
	notifier Notifier
	capture  CaptureCanceler

	// flights deduplicates concurrent geometry fetches per route id.
	flights singleflight.Group

	mu       sync.Mutex
	layers   map[int64]*Layer
	visible  map[string]map[int64]bool // rider -> ids the rider wants shown
	attached map[string]map[int64]bool // rider -> ids actually on the map
}

type nopRenderer struct{}

func (nopRenderer) AttachLayer(string, *Layer)    {}
func (nopRenderer) DetachLayer(string, int64)     {}
func (nopRenderer) FocusRoute(string, int64)      {}
func (nopRenderer) UpdateEye(string, int64, bool) {}

// NewManager creates a layer manager. renderer, notifier and canceler may
// be nil, in which case the corresponding side effects are skipped.
func NewManager(geo GeometryProvider, store VisibleStore, renderer Renderer, notifier Notifier, canceler CaptureCanceler) *Manager {
	if renderer == nil {
		renderer = nopRenderer{}
	}
	return &Manager{
		geo:      geo,
		store:    store,
		renderer: renderer,
		notifier: notifier,
		capture:  canceler,
		layers:   make(map[int64]*Layer),
		visible:  make(map[string]map[int64]bool),
		attached: make(map[string]map[int64]bool),
	}
}

// SetVisibility shows or hides a route on the rider's map and persists the
// new visible-set membership. Showing attaches the cached layer, fetching
// and building it first if this is the id's first show. Hiding detaches
// the layer but keeps the cache entry. focus is honored only on show.
func (m *Manager) SetVisibility(ctx context.Context, userID string, routeID int64, visible, focus bool) error {
	if visible {
		return m.show(ctx, userID, routeID, focus, true)
	}
	return m.hide(ctx, userID, routeID, true)
}

// ApplyStoredVisibility replays the rider's persisted visible set over the
// routes currently listed: members are shown, everything else is hidden.
// It never writes to the store, so a rider who has never toggled anything
// keeps an unmaterialized set. Fetch failures are notified per route and
// do not stop the replay.
func (m *Manager) ApplyStoredVisibility(ctx context.Context, userID string, listedIDs []int64) error {
	ids, _, err := m.store.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("load visible set for %s: %w", userID, err)
	}

	member := make(map[int64]bool, len(ids))
	for _, id := range ids {
		member[id] = true
	}

	for _, id := range listedIDs {
		if member[id] {
			if err := m.show(ctx, userID, id, false, false); err != nil {
				logging.Warn().Err(err).
					Str("user_id", userID).
					Int64("twist_id", id).
					Msg("Stored visibility apply skipped route")
			}
		} else {
			_ = m.hide(ctx, userID, id, false)
		}
	}
	return nil
}

// OnRouteAdded reacts to the rider saving a new route: any in-progress
// capture is collapsed, the route joins the rider's visible set, and the
// layer is shown and focused.
func (m *Manager) OnRouteAdded(ctx context.Context, userID string, routeID int64) error {
	if m.capture != nil {
		if err := m.capture.Collapse(ctx, userID); err != nil {
			logging.Warn().Err(err).Str("user_id", userID).Msg("Capture collapse on route add failed")
		}
	}
	return m.show(ctx, userID, routeID, true, true)
}

// OnRouteDeleted purges a deleted route everywhere: visible-set membership
// is removed for every rider, the layer is detached from every map it was
// on, and the cache entry is evicted. Calling it again for the same id is
// a no-op.
func (m *Manager) OnRouteDeleted(ctx context.Context, routeID int64) error {
	affected, err := m.store.RemoveTwist(ctx, routeID)
	if err != nil {
		return fmt.Errorf("purge visible sets for twist %d: %w", routeID, err)
	}

	m.mu.Lock()
	_, hadLayer := m.layers[routeID]
	delete(m.layers, routeID)
	metrics.LayerCacheSize.Set(float64(len(m.layers)))
	var detach []string
	for userID, set := range m.attached {
		if set[routeID] {
			delete(set, routeID)
			detach = append(detach, userID)
		}
	}
	for _, set := range m.visible {
		delete(set, routeID)
	}
	m.mu.Unlock()

	if hadLayer {
		metrics.RecordLayerEviction("deleted")
	}
	for _, userID := range detach {
		m.renderer.DetachLayer(userID, routeID)
	}

	if hadLayer || affected > 0 {
		logging.Info().
			Int64("twist_id", routeID).
			Int("riders_affected", affected).
			Int("maps_detached", len(detach)).
			Msg("Route layer purged")
	}
	return nil
}

// Forget drops a rider's in-memory visibility and attachment state, for
// example when their last client disconnects. Persisted membership is
// untouched; the next ApplyStoredVisibility rebuilds the map state.
func (m *Manager) Forget(userID string) {
	m.mu.Lock()
	delete(m.visible, userID)
	delete(m.attached, userID)
	m.mu.Unlock()
}

// CachedLayers reports how many layers are currently materialized.
func (m *Manager) CachedLayers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.layers)
}

func (m *Manager) show(ctx context.Context, userID string, routeID int64, focus, persist bool) error {
	if persist {
		if err := m.store.SetVisible(ctx, userID, routeID, true); err != nil {
			return fmt.Errorf("persist visibility for twist %d: %w", routeID, err)
		}
	}

	m.mu.Lock()
	m.markLocked(m.visible, userID, routeID, true)
	layer, cached := m.layers[routeID]
	alreadyAttached := cached && m.attached[userID][routeID]
	if cached {
		m.markLocked(m.attached, userID, routeID, true)
	}
	m.mu.Unlock()

	// The eye icon tracks membership, not fetch success, so it flips as
	// soon as the set is updated.
	m.renderer.UpdateEye(userID, routeID, true)

	if cached {
		metrics.RecordLayerCacheHit()
		if !alreadyAttached {
			m.renderer.AttachLayer(userID, layer)
		}
		if focus {
			m.renderer.FocusRoute(userID, routeID)
		}
		return nil
	}

	metrics.RecordLayerCacheMiss()
	layer, err := m.fetch(ctx, routeID)
	if err != nil {
		m.notify(userID, "error", "Failed to load route geometry")
		return err
	}

	m.mu.Lock()
	// The rider may have hidden the route while the fetch was in flight.
	// The layer stays cached for later, but it must not reach the map.
	if !m.visible[userID][routeID] {
		m.mu.Unlock()
		return nil
	}
	m.markLocked(m.attached, userID, routeID, true)
	m.mu.Unlock()

	m.renderer.AttachLayer(userID, layer)
	if focus {
		m.renderer.FocusRoute(userID, routeID)
	}
	return nil
}

func (m *Manager) hide(ctx context.Context, userID string, routeID int64, persist bool) error {
	if persist {
		if err := m.store.SetVisible(ctx, userID, routeID, false); err != nil {
			return fmt.Errorf("persist visibility for twist %d: %w", routeID, err)
		}
	}

	m.mu.Lock()
	m.markLocked(m.visible, userID, routeID, false)
	wasAttached := m.attached[userID][routeID]
	m.markLocked(m.attached, userID, routeID, false)
	m.mu.Unlock()

	if wasAttached {
		m.renderer.DetachLayer(userID, routeID)
	}
	m.renderer.UpdateEye(userID, routeID, false)
	return nil
}

// fetch loads and caches the layer for routeID. Concurrent callers for the
// same id share one flight and one cache write.
func (m *Manager) fetch(ctx context.Context, routeID int64) (*Layer, error) {
	v, err, _ := m.flights.Do(strconv.FormatInt(routeID, 10), func() (any, error) {
		start := time.Now()
		geom, err := m.geo.GetTwistGeometry(ctx, routeID)
		metrics.RecordGeometryFetch(time.Since(start), err)
		if err != nil {
			// Nothing was cached, so the next show retries from scratch.
			metrics.RecordLayerEviction("fetch_failed")
			logging.Warn().Err(err).Int64("twist_id", routeID).Msg("Route geometry fetch failed")
			return nil, fmt.Errorf("fetch geometry for twist %d: %w", routeID, err)
		}

		layer := buildLayer(geom)
		m.mu.Lock()
		m.layers[routeID] = layer
		metrics.LayerCacheSize.Set(float64(len(m.layers)))
		m.mu.Unlock()
		return layer, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Layer), nil
}

// markLocked sets or clears set[userID][routeID], pruning empty per-rider
// maps. Callers hold m.mu.
func (m *Manager) markLocked(set map[string]map[int64]bool, userID string, routeID int64, on bool) {
	inner := set[userID]
	if on {
		if inner == nil {
			inner = make(map[int64]bool)
			set[userID] = inner
		}
		inner[routeID] = true
		return
	}
	if inner == nil {
		return
	}
	delete(inner, routeID)
	if len(inner) == 0 {
		delete(set, userID)
	}
}

func (m *Manager) notify(userID, level, message string) {
	if m.notifier != nil {
		m.notifier.Notify(userID, level, message)
	}
}
