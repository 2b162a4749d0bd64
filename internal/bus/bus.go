// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

// Package bus carries events from their producers (tournament server
// connector, control API, match scheduler) to the processor over an
// in-process Watermill Pub/Sub. A single topic and a single consumer
// keep the original strict arrival-order processing.
package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/marionlk/stagehand/internal/events"
	"github.com/marionlk/stagehand/internal/metrics"
)

// TopicEvents is the single inbound event topic.
const TopicEvents = "events"

const defaultBuffer = 256

// Bus wraps the in-process Pub/Sub with event encoding and close-once
// semantics.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// New creates a bus with the given queue buffer. A non-positive buffer
// falls back to the default.
func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	logger := NewLoggerAdapter()
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: int64(buffer),
		}, logger),
		logger: logger,
	}
}

// Publish encodes an event and places it on the queue.
func (b *Bus) Publish(ctx context.Context, event *events.Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("bus is closed")
	}
	b.mu.RUnlock()

	data, err := events.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := message.NewMessage(event.ID, data)
	msg.Metadata.Set("type", event.Type)
	msg.SetContext(ctx)

	if err := b.pubsub.Publish(TopicEvents, msg); err != nil {
		return fmt.Errorf("publish event %s: %w", event.ID, err)
	}

	metrics.RecordEventPublished(event.Type)
	return nil
}

// Subscriber exposes the queue for the processor's router.
func (b *Bus) Subscriber() message.Subscriber {
	return b.pubsub
}

// Logger exposes the Watermill logger so the router shares it.
func (b *Bus) Logger() watermill.LoggerAdapter {
	return b.logger
}

// Open reports whether the bus still accepts publishes.
func (b *Bus) Open() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.closed
}

// Close shuts the queue down. Pending messages already handed to the
// subscriber are still delivered.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	return b.pubsub.Close()
}
