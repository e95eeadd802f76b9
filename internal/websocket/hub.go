// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/mototwist/mototwist/internal/logging"
	"github.com/mototwist/mototwist/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was canceled.
	// This is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	// This may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Signal names pushed to the browser. The twist lifecycle signals reuse
// the domain event type strings, so the event forwarder can rebroadcast
// an event under its own type.
const (
	SignalTwistsLoaded = "twists.loaded"
	SignalTwistAdded   = "twist.added"
	SignalTwistDeleted = "twist.deleted"
	SignalTwistRated   = "twist.rated"
	SignalModalClose   = "modal.close"
	SignalFlash        = "flash"
	SignalLayerAttach  = "layer.attach"
	SignalLayerDetach  = "layer.detach"
	SignalMapFocus     = "map.focus"
	SignalEyeUpdate    = "eye.update"
	SignalCaptureState = "capture.state"
)

// Control message types exchanged with the browser.
const (
	MessageTypePing = "ping"
	MessageTypePong = "pong"
)

// Message represents a WebSocket message.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// directMessage targets every connection belonging to one rider.
type directMessage struct {
	userID  string
	message Message
}

// Presence is told when a rider's last connection goes away, so
// per-rider map attachment state does not outlive the session.
// *maplayers.Manager satisfies it.
type Presence interface {
	Forget(userID string)
}

// Hub maintains the set of active clients and fans signals out to them,
// either to every connection or to a single rider's connections.
type Hub struct {
	clients    map[*Client]bool
	byUser     map[string]map[*Client]bool
	broadcast  chan Message
	direct     chan directMessage
	Register   chan *Client
	Unregister chan *Client
	presence   Presence
	mu         sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		direct:     make(chan directMessage, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		byUser:     make(map[string]map[*Client]bool),
	}
}

// SetPresence registers the observer of rider departures. Call before
// Serve; the hub invokes it from its run loop without holding locks.
func (h *Hub) SetPresence(p Presence) {
	h.presence = p
}

// String identifies the hub in supervisor logs.
func (h *Hub) String() string { return "websocket-hub" }

// Serve runs the hub until ctx is canceled, then closes every client and
// returns ctx.Err(). Designed for suture supervision: a restart starts
// from an empty client set and riders reconnect.
//
// DETERMINISM: Uses priority-based selection to ensure predictable behavior:
// - Priority 1: Context cancellation (shutdown)
// - Priority 2: Client lifecycle events (Register/Unregister)
// - Priority 3: Broadcast and direct signals
// This ensures client state is always consistent before signals fan out.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		// Priority 1: Check for shutdown (highest priority, non-blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: Handle client lifecycle events (non-blocking check)
		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		// Priority 3: Handle signals or wait for any event (blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.addClient(client)

		case client := <-h.Unregister:
			h.removeClient(client)

		case message := <-h.broadcast:
			h.broadcastToClients(message)

		case dm := <-h.direct:
			h.sendToUser(dm.userID, dm.message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	conns := h.byUser[client.userID]
	if conns == nil {
		conns = make(map[*Client]bool)
		h.byUser[client.userID] = conns
	}
	conns[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().
		Str("user_id", client.userID).
		Int("total_clients", total).
		Msg("websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	forget, removed := h.dropClientLocked(client)
	total := len(h.clients)
	h.mu.Unlock()

	if !removed {
		return
	}
	metrics.WSConnections.Set(float64(total))
	if forget != "" {
		h.forgetAll([]string{forget})
	}
	logging.Info().
		Str("user_id", client.userID).
		Int("total_clients", total).
		Msg("websocket client disconnected")
}

// dropClientLocked removes the client from both indexes and closes its
// send channel. It reports the rider to forget when this was their last
// connection. Callers must hold h.mu.
func (h *Hub) dropClientLocked(client *Client) (forget string, removed bool) {
	if _, ok := h.clients[client]; !ok {
		return "", false
	}
	delete(h.clients, client)
	close(client.send)

	conns := h.byUser[client.userID]
	delete(conns, client)
	if len(conns) == 0 {
		delete(h.byUser, client.userID)
		forget = client.userID
	}
	return forget, true
}

func (h *Hub) forgetAll(userIDs []string) {
	if h.presence == nil {
		return
	}
	for _, userID := range userIDs {
		h.presence.Forget(userID)
	}
}

// sortedClients snapshots a client set ordered by client id.
// DETERMINISM: Sorting by the monotonically assigned id gives every
// fan-out a consistent delivery and eviction order. Callers must hold h.mu.
func sortedClients(set map[*Client]bool) []*Client {
	clients := make([]*Client, 0, len(set))
	for client := range set {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// broadcastToClients sends a message to all connected clients in a
// deterministic order. A client whose send buffer is full is evicted:
// a reader that far behind is not answering pings either.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	clients := sortedClients(h.clients)
	forgets, dropped := h.deliverLocked(clients, message)
	total := len(h.clients)
	h.mu.Unlock()

	h.afterEviction(message.Type, forgets, dropped, total)
}

// sendToUser sends a message to every connection one rider has open.
func (h *Hub) sendToUser(userID string, message Message) {
	h.mu.Lock()
	clients := sortedClients(h.byUser[userID])
	forgets, dropped := h.deliverLocked(clients, message)
	total := len(h.clients)
	h.mu.Unlock()

	h.afterEviction(message.Type, forgets, dropped, total)
}

// deliverLocked queues the message on each client, evicting clients whose
// send buffer is full. Callers must hold h.mu.
func (h *Hub) deliverLocked(clients []*Client, message Message) (forgets []string, dropped int) {
	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			if forget, ok := h.dropClientLocked(client); ok {
				dropped++
				if forget != "" {
					forgets = append(forgets, forget)
				}
			}
		}
	}
	return forgets, dropped
}

func (h *Hub) afterEviction(signal string, forgets []string, dropped, total int) {
	if dropped == 0 {
		return
	}
	metrics.WSConnections.Set(float64(total))
	metrics.WSErrors.WithLabelValues("slow_client").Add(float64(dropped))
	h.forgetAll(forgets)
	logging.Warn().
		Int("evicted", dropped).
		Str("signal", signal).
		Msg("evicted slow websocket clients")
}

// closeAllClients closes all connected clients in id order. Called during
// shutdown to ensure clean termination.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	clients := sortedClients(h.clients)
	var forgets []string
	for _, client := range clients {
		if forget, ok := h.dropClientLocked(client); ok && forget != "" {
			forgets = append(forgets, forget)
		}
	}
	h.mu.Unlock()

	metrics.WSConnections.Set(0)
	h.forgetAll(forgets)
	logging.Info().Msg("closed all websocket clients during shutdown")
}

// logGracefulShutdown closes all clients and logs structured shutdown
// information. ctx.Err() is NOT logged as an error because cancellation
// is expected behavior during graceful shutdown.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

// getShutdownReason determines the shutdown reason from the context error.
func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.Canceled:
		return ShutdownReasonContextCanceled
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// BroadcastSignal queues a signal for every connected client. It never
// blocks; when the hub's queue is full the signal is dropped with a
// warning, since every signal is advisory and the page can refetch.
func (h *Hub) BroadcastSignal(signal string, data any) {
	message := Message{Type: signal, Data: data}

	select {
	case h.broadcast <- message:
	default:
		metrics.WSErrors.WithLabelValues("broadcast_full").Inc()
		logging.Warn().Str("signal", signal).Msg("broadcast channel full, dropping signal")
	}
}

// SendSignal queues a signal for one rider's connections. Sends to
// riders with no open connection are silently absorbed by the run loop.
func (h *Hub) SendSignal(userID, signal string, data any) {
	if userID == "" {
		return
	}
	dm := directMessage{userID: userID, message: Message{Type: signal, Data: data}}

	select {
	case h.direct <- dm:
	default:
		metrics.WSErrors.WithLabelValues("direct_full").Inc()
		logging.Warn().
			Str("signal", signal).
			Str("user_id", userID).
			Msg("direct channel full, dropping signal")
	}
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetUserCount returns the number of distinct riders connected.
func (h *Hub) GetUserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser)
}

// MarshalMessage converts a message to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
