/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus bridges the in-process event bus onto NATS so multiple
// instances see each other's run lifecycle events.
package eventbus

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/tunabrain/internal/events"
)

const subjectPrefix = "tunabrain.events."

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL           string
	Token         string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		MaxReconnects: -1, // unlimited
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NATSBus mirrors every published event onto a NATS subject and feeds events
// from other nodes into the local in-process bus. Local delivery never
// depends on the NATS connection being up.
type NATSBus struct {
	conn   *nats.Conn
	local  *events.Bus
	logger zerolog.Logger
	nodeID string

	mu     sync.Mutex
	remote map[events.EventType]*nats.Subscription
}

// natsMessage is the wire envelope for events crossing nodes.
type natsMessage struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

// NewNATSBus connects to NATS and wraps local onto it.
func NewNATSBus(cfg NATSConfig, local *events.Bus, logger zerolog.Logger) (*NATSBus, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.Name("tunabrain"),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	host, _ := os.Hostname()
	bus := &NATSBus{
		conn:   conn,
		local:  local,
		logger: logger.With().Str("component", "nats_bus").Logger(),
		nodeID: fmt.Sprintf("%s-%s", host, uuid.NewString()[:8]),
		remote: make(map[events.EventType]*nats.Subscription),
	}

	bus.logger.Info().Str("url", cfg.URL).Str("node_id", bus.nodeID).Msg("NATS event bus connected")
	return bus, nil
}

// Subscribe registers a local subscriber and ensures events of this type
// published by other nodes are relayed into the local bus.
func (nb *NATSBus) Subscribe(eventType events.EventType) events.Subscriber {
	sub := nb.local.Subscribe(eventType)

	nb.mu.Lock()
	defer nb.mu.Unlock()
	if _, exists := nb.remote[eventType]; exists {
		return sub
	}

	subject := subjectPrefix + string(eventType)
	natsSub, err := nb.conn.Subscribe(subject, func(msg *nats.Msg) {
		var decoded natsMessage
		if err := json.Unmarshal(msg.Data, &decoded); err != nil {
			nb.logger.Error().Err(err).Str("subject", msg.Subject).Msg("malformed NATS event")
			return
		}
		// Skip our own messages; they were already delivered locally.
		if decoded.NodeID == nb.nodeID {
			return
		}
		nb.local.Publish(decoded.EventType, decoded.Payload)
	})
	if err != nil {
		nb.logger.Error().Err(err).Str("subject", subject).Msg("NATS subscribe failed")
		return sub
	}
	nb.remote[eventType] = natsSub
	return sub
}

// Publish delivers locally and mirrors the event to NATS.
func (nb *NATSBus) Publish(eventType events.EventType, payload events.Payload) {
	nb.local.Publish(eventType, payload)

	data, err := json.Marshal(natsMessage{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    nb.nodeID,
		MessageID: uuid.NewString(),
	})
	if err != nil {
		nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("marshal NATS event")
		return
	}

	if err := nb.conn.Publish(subjectPrefix+string(eventType), data); err != nil {
		nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("publish to NATS")
	}
}

// Unsubscribe removes a local subscriber. The NATS-side subscription stays
// up until Close since other local subscribers may remain.
func (nb *NATSBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	nb.local.Unsubscribe(eventType, sub)
}

// Close drains the NATS connection.
func (nb *NATSBus) Close() error {
	nb.mu.Lock()
	for eventType, natsSub := range nb.remote {
		if err := natsSub.Unsubscribe(); err != nil {
			nb.logger.Debug().Err(err).Str("event_type", string(eventType)).Msg("NATS unsubscribe failed")
		}
	}
	nb.remote = make(map[events.EventType]*nats.Subscription)
	nb.mu.Unlock()

	return nb.conn.Drain()
}
