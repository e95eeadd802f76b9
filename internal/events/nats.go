// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

//go:build nats

package events

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"

	"github.com/mototwist/mototwist/internal/logging"
)

const (
	natsReconnectWait = 2 * time.Second
	natsAckWait       = 30 * time.Second
	natsMaxDeliver    = 5
)

// startEmbeddedServer boots an in-process NATS JetStream server for
// single-instance deployments without an external broker. It listens on
// a real TCP port so external tooling can still attach.
func startEmbeddedServer(cfg NATSConfig) (*server.Server, error) {
	opts := &server.Options{
		ServerName: "mototwist-events",
		JetStream:  true,
		StoreDir:   cfg.StoreDir,
		DontListen: false,
		MaxPayload: 8 * 1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	ns.ConfigureLogger()
	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within timeout")
	}
	return ns, nil
}

func natsOptions(logger watermill.LoggerAdapter) []natsgo.Option {
	return []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(natsReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}
}

// NewNATSBus connects a publisher/subscriber pair to NATS JetStream,
// starting an embedded server first when cfg.Embedded is set. The twists
// subject has no wildcard, so both sides auto-provision the stream.
func NewNATSBus(cfg NATSConfig) (*Bus, error) {
	logger := NewWatermillLogger()

	var ns *server.Server
	url := cfg.URL
	if cfg.Embedded {
		var err error
		if ns, err = startEmbeddedServer(cfg); err != nil {
			return nil, err
		}
		url = ns.ClientURL()
	}

	shutdownServer := func() {
		if ns != nil {
			ns.Shutdown()
			ns.WaitForShutdown()
		}
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOptions(logger),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		shutdownServer()
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:            url,
		NatsOptions:    natsOptions(logger),
		Unmarshaler:    &wmNats.NATSMarshaler{},
		AckWaitTimeout: natsAckWait,
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			AckAsync:      false,
			DurablePrefix: "mototwist-forwarder",
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.DeliverNew(),
				natsgo.MaxDeliver(natsMaxDeliver),
				natsgo.AckWait(natsAckWait),
			},
		},
	}, logger)
	if err != nil {
		_ = pub.Close()
		shutdownServer()
		return nil, fmt.Errorf("create NATS subscriber: %w", err)
	}

	logging.Info().
		Str("url", url).
		Bool("embedded", ns != nil).
		Msg("NATS event bus connected")

	closeFn := func() error {
		pubErr := pub.Close()
		subErr := sub.Close()
		shutdownServer()
		if pubErr != nil {
			return pubErr
		}
		return subErr
	}
	return &Bus{pub: pub, sub: sub, closeFn: closeFn}, nil
}
