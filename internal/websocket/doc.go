// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

/*
Package websocket pushes map commands and UI signals to connected map
pages in real time.

This package implements the server half of the map page's live channel
using the gorilla/websocket library with a hub-client architecture. The
catalog is multi-rider: a signal is either broadcast to every connection
(route added, route deleted, rating stored) or targeted at one rider's
connections (layer attach/detach, map focus, eye icon, flash banners,
capture snapshots, modal close).

Key Components:

  - Hub: central broker that owns the client set, indexed per rider
  - Client: one WebSocket connection with read/write goroutines
  - Bridge: adapts the hub to the command interfaces of the map layer
    manager and the capture engine
  - Message: typed envelope {type, data} serialized as JSON

Signal Flow:

Domain events reach the hub through the event forwarder
(internal/events), which rebroadcasts each event under its type string.
Interactive map and capture commands skip the bus entirely: the layer
manager and capture engine call the Bridge, which enqueues a targeted
signal. All sends are non-blocking; a client whose send buffer is full
is evicted rather than allowed to stall the fan-out.

Each client has two goroutines:

  - readPump: reads from the connection, answers ping messages
  - writePump: writes queued signals, sends protocol pings

Connection Lifecycle:

 1. The API handler upgrades the HTTP request and registers the client.
 2. The hub indexes the client under its rider id.
 3. Signals fan out in deterministic client-id order.
 4. On disconnect the hub unregisters the client; when a rider's last
    connection is gone the hub tells the presence observer, so per-rider
    map attachment state does not outlive the session.

Thread Safety:

The hub serializes lifecycle and fan-out through its run loop and guards
the client maps with a mutex. Clients never share mutable state.

Configuration:

  - writeWait: 10 seconds per message write
  - pongWait: 60 seconds before a silent peer is considered dead
  - pingPeriod: 90% of pongWait
  - maxMessageSize: 512 KB

See Also:

  - github.com/gorilla/websocket: underlying WebSocket library
  - internal/api: upgrade endpoint and origin checking
  - internal/events: domain event forwarder feeding the hub
*/
package websocket
