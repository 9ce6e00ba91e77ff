// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package bus provides the in-process event bus connecting the telemetry
// pipeline to its streaming consumers.
//
// Producers (log store, metrics recorder, anomaly detector, backup
// orchestrator) publish StreamEvents on topics; SSE handlers and the
// socket hub subscribe. Delivery is best-effort: a subscriber whose
// buffer is full loses the event rather than stalling the producer.
package bus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/amadalihammoud/brimu-telemetry/pkg/logging"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
)

// DefaultBufferSize is the per-subscriber channel depth when the caller
// passes zero.
const DefaultBufferSize = 64

// =============================================================================
// Bus
// =============================================================================

// subscriber is one registered consumer of a topic.
type subscriber struct {
	id int64
	ch chan datatypes.StreamEvent
}

// Bus is a topic-based fan-out event bus.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Publish never blocks; events
// that do not fit a subscriber's buffer are dropped and counted.
type Bus struct {
	mu     sync.RWMutex
	subs   map[datatypes.StreamTopic][]*subscriber
	nextID int64
	closed bool

	dropped atomic.Int64

	log *logging.Logger
}

// New creates an empty bus.
func New(log *logging.Logger) *Bus {
	return &Bus{
		subs: make(map[datatypes.StreamTopic][]*subscriber),
		log:  log,
	}
}

// Subscribe registers a consumer on topic with the given buffer depth.
//
// # Outputs
//
// Returns the receive channel and an unsubscribe function. The channel
// is closed by unsubscribe (or Close); callers must not close it.
// Unsubscribe is idempotent.
func (b *Bus) Subscribe(topic datatypes.StreamTopic, buffer int) (<-chan datatypes.StreamEvent, func()) {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{
		id: b.nextID,
		ch: make(chan datatypes.StreamEvent, buffer),
	}
	b.nextID++

	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	b.subs[topic] = append(b.subs[topic], sub)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() { b.remove(topic, sub.id) })
	}
	return sub.ch, unsubscribe
}

// Publish delivers an event to every subscriber of the topic.
//
// The event envelope's Topic and Timestamp are set here so producers
// only supply the payload. Slow subscribers lose the event.
func (b *Bus) Publish(topic datatypes.StreamTopic, payload any) {
	event := datatypes.StreamEvent{
		Topic:     topic,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs[topic] {
		select {
		case sub.ch <- event:
		default:
			b.dropped.Add(1)
			if b.log != nil {
				b.log.Warn("event bus subscriber buffer full, dropping event",
					"topic", string(topic), "subscriber", sub.id)
			}
		}
	}
}

// Dropped returns the lifetime count of events lost to full buffers.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// SubscriberCount returns the number of active subscribers on a topic.
func (b *Bus) SubscriberCount(topic datatypes.StreamTopic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Close shuts down the bus and closes every subscriber channel.
// Subsequent Publish calls are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, sub := range subs {
			close(sub.ch)
		}
	}
	b.subs = make(map[datatypes.StreamTopic][]*subscriber)
}

// remove detaches one subscriber and closes its channel.
func (b *Bus) remove(topic datatypes.StreamTopic, id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	subs := b.subs[topic]
	for i, sub := range subs {
		if sub.id == id {
			b.subs[topic] = append(subs[:i], subs[i+1:]...)
			close(sub.ch)
			return
		}
	}
}
