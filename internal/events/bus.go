// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/mototwist/mototwist/internal/metrics"
)

// NATSConfig holds the settings for the NATS-backed bus. It mirrors the
// events section of the application config so the events package does
// not depend on the config package.
type NATSConfig struct {
	// URL is the NATS server to connect to. Ignored when Embedded is set,
	// because the embedded server supplies its own client URL.
	URL string
	// Embedded runs an in-process NATS JetStream server.
	Embedded bool
	// StoreDir is the JetStream storage directory for the embedded server.
	StoreDir string
}

// Bus is a publisher/subscriber pair sharing one transport. The channel
// backend uses a single GoChannel for both sides; the NATS backend holds
// separate Watermill publisher and subscriber connections.
type Bus struct {
	pub     message.Publisher
	sub     message.Subscriber
	closeFn func() error
}

// NewChannelBus creates the in-process bus. Events are delivered to
// subscribers on the same instance only; there is no persistence, so
// events published before Subscribe are not replayed.
func NewChannelBus() *Bus {
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, NewWatermillLogger())
	return &Bus{pub: ch, sub: ch, closeFn: ch.Close}
}

// PublishEvent validates, serializes, and publishes an event on the
// twists subject. The message UUID is the event ID, so JetStream
// deduplication works across redeliveries.
func (b *Bus) PublishEvent(ctx context.Context, event *Event) error {
	data, err := SerializeEvent(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(event.EventID, data)
	msg.Metadata.Set("type", event.Type)
	if event.ActorID != "" {
		msg.Metadata.Set("actor_id", event.ActorID)
	}
	msg.SetContext(ctx)

	if err := b.pub.Publish(TopicTwists, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	metrics.RecordEventPublished(event.Type)
	return nil
}

// Subscribe returns the stream of twist event messages. The channel is
// closed when ctx is canceled or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.sub.Subscribe(ctx, TopicTwists)
}

// Close shuts down the underlying transport.
func (b *Bus) Close() error {
	if b.closeFn == nil {
		return nil
	}
	return b.closeFn()
}
