// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package api

import (
	"net/http"

	"github.com/mototwist/mototwist/internal/logging"
	ws "github.com/mototwist/mototwist/internal/websocket"
)

// WebSocket upgrades the connection and hands it to the hub. Everything
// the map page reacts to in real time arrives here: twist lifecycle
// signals, layer attach/detach commands, capture view updates, flashes.
//
// @Summary Open the realtime socket
// @Description Upgrades to a WebSocket delivering twist lifecycle signals, map layer commands and capture updates
// @Tags Realtime
// @Security BearerAuth
// @Success 101 {string} string "Switching protocols"
// @Failure 401 {object} models.APIResponse "Unauthorized"
// @Failure 503 {object} models.APIResponse "Hub unavailable"
// @Router /ws [get]
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_ERROR", "WebSocket service not available", nil)
		return
	}

	subject, ok := requireSubject(w, r)
	if !ok {
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the handshake error to the client.
		logging.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(h.wsHub, conn, subject.ID)
	h.wsHub.Register <- client
	client.Start()

	logging.Debug().
		Str("user_id", subject.ID).
		Str("remote_addr", sanitizeLogValue(r.RemoteAddr)).
		Msg("WebSocket client connected")
}
