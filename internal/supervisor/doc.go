// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

// Package supervisor runs the server's long-lived services under a
// suture v4 supervision tree.
//
// The tree has three layers so failures stay contained:
//
//	mototwist
//	├── data-layer        session janitor, audit janitor,
//	│                     badger GC, backup scheduler
//	├── messaging-layer   event forwarder, websocket hub
//	└── api-layer         http server
//
// A crashing forwarder restarts inside the messaging layer without
// touching the HTTP listener; a wedged janitor cannot take down the
// hub. Services that stop with an error are restarted with
// exponential backoff per TreeConfig; services that return nil stay
// stopped.
//
// Components that already satisfy suture.Service (the hub, the
// forwarder, the janitors, the backup scheduler) are added directly.
// HTTPService and BadgerGC adapt the two pieces that don't: the
// blocking http.Server and BadgerDB's value-log garbage collection.
//
// Supervisor events are logged through sutureslog into the
// application's zerolog output via logging.NewSlogLogger.
package supervisor
