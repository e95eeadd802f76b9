// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/mototwist/mototwist/internal/logging"
	"github.com/mototwist/mototwist/internal/metrics"
	"github.com/mototwist/mototwist/internal/websocket"
)

// Subscriber is the bus side the forwarder consumes. *Bus satisfies it.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan *message.Message, error)
}

// RouteSink receives route lifecycle changes so per-rider map state can
// follow the catalog. *maplayers.Manager satisfies it.
type RouteSink interface {
	OnRouteAdded(ctx context.Context, userID string, routeID int64) error
	OnRouteDeleted(ctx context.Context, routeID int64) error
}

// SignalSender pushes UI signals to connected clients. *websocket.Hub
// satisfies it. Implementations must not block.
type SignalSender interface {
	BroadcastSignal(signal string, data any)
	SendSignal(userID, signal string, data any)
}

// Forwarder subscribes to the twist event stream and fans each event out
// to the WebSocket hub and the map layer manager. Delivery to the UI is
// at most once: every message is acked regardless of sink outcome,
// because a reconnecting browser reloads the full catalog anyway.
type Forwarder struct {
	sub     Subscriber
	layers  RouteSink
	signals SignalSender
}

// NewForwarder wires the event stream to its UI sinks.
func NewForwarder(sub Subscriber, layers RouteSink, signals SignalSender) *Forwarder {
	return &Forwarder{sub: sub, layers: layers, signals: signals}
}

// String identifies the forwarder in supervisor logs.
func (f *Forwarder) String() string { return "event-forwarder" }

// Serve consumes the event stream until ctx is canceled. A closed
// subscription channel while the context is still live is an error, so
// the supervisor restarts the forwarder with a fresh subscription.
func (f *Forwarder) Serve(ctx context.Context) error {
	msgs, err := f.sub.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicTwists, err)
	}

	logging.Info().
		Str("component", "event-forwarder").
		Str("topic", TopicTwists).
		Msg("Event forwarder started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("event subscription closed")
			}
			f.handle(ctx, msg)
		}
	}
}

func (f *Forwarder) handle(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	ev, err := DeserializeEvent(msg.Payload)
	if err != nil {
		metrics.RecordEventDropped(msg.Metadata.Get("type"), "decode_failed")
		logging.Warn().
			Err(err).
			Str("message_uuid", msg.UUID).
			Msg("Dropping undecodable event")
		return
	}

	switch ev.Type {
	case EventTwistAdded:
		f.signals.BroadcastSignal(ev.Type, ev)
		if ev.ActorID != "" {
			// The actor's add-route modal closes as soon as the event
			// lands, and their map picks the new route up immediately.
			f.signals.SendSignal(ev.ActorID, websocket.SignalModalClose, nil)
			if err := f.layers.OnRouteAdded(ctx, ev.ActorID, ev.TwistID); err != nil {
				metrics.RecordEventDropped(ev.Type, "sink_error")
				logging.Warn().
					Err(err).
					Int64("twist_id", ev.TwistID).
					Str("actor_id", ev.ActorID).
					Msg("Map layer sink rejected added route")
			}
		}
	case EventTwistDeleted:
		f.signals.BroadcastSignal(ev.Type, ev)
		if err := f.layers.OnRouteDeleted(ctx, ev.TwistID); err != nil {
			metrics.RecordEventDropped(ev.Type, "sink_error")
			logging.Warn().
				Err(err).
				Int64("twist_id", ev.TwistID).
				Msg("Map layer sink rejected deleted route")
		}
	case EventTwistRated:
		f.signals.BroadcastSignal(ev.Type, ev)
	default:
		metrics.RecordEventDropped(ev.Type, "unknown_type")
		logging.Warn().
			Str("event_type", ev.Type).
			Str("event_id", ev.EventID).
			Msg("Dropping event of unknown type")
		return
	}

	metrics.RecordEventDelivered(ev.Type)
}
