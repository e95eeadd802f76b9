// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package websocket

import (
	"github.com/mototwist/mototwist/internal/capture"
	"github.com/mototwist/mototwist/internal/maplayers"
)

// Bridge adapts the hub to the command interfaces the map layer manager
// and the capture engine push through. Every method is a non-blocking
// signal send targeted at one rider's connections, so callers may hold
// their own locks.
type Bridge struct {
	hub *Hub
}

// NewBridge wraps the hub for the map layer manager and capture engine.
func NewBridge(hub *Hub) *Bridge {
	return &Bridge{hub: hub}
}

var (
	_ maplayers.Renderer = (*Bridge)(nil)
	_ maplayers.Notifier = (*Bridge)(nil)
	_ capture.View       = (*Bridge)(nil)
	_ capture.Notifier   = (*Bridge)(nil)
)

type routePayload struct {
	ID int64 `json:"id"`
}

type eyePayload struct {
	ID      int64 `json:"id"`
	Visible bool  `json:"visible"`
}

type flashPayload struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// AttachLayer draws a materialized route layer on the rider's map.
func (b *Bridge) AttachLayer(userID string, layer *maplayers.Layer) {
	b.hub.SendSignal(userID, SignalLayerAttach, layer)
}

// DetachLayer removes a route layer from the rider's map.
func (b *Bridge) DetachLayer(userID string, routeID int64) {
	b.hub.SendSignal(userID, SignalLayerDetach, routePayload{ID: routeID})
}

// FocusRoute pans the rider's map to a route's bounds.
func (b *Bridge) FocusRoute(userID string, routeID int64) {
	b.hub.SendSignal(userID, SignalMapFocus, routePayload{ID: routeID})
}

// UpdateEye flips the route list's eye icon for one route.
func (b *Bridge) UpdateEye(userID string, routeID int64, visible bool) {
	b.hub.SendSignal(userID, SignalEyeUpdate, eyePayload{ID: routeID, Visible: visible})
}

// Notify shows a transient flash banner on the rider's page.
func (b *Bridge) Notify(userID, level, message string) {
	b.hub.SendSignal(userID, SignalFlash, flashPayload{Level: level, Message: message})
}

// CaptureUpdate pushes the rider's current capture session snapshot.
func (b *Bridge) CaptureUpdate(userID string, snap capture.Snapshot) {
	b.hub.SendSignal(userID, SignalCaptureState, snap)
}
