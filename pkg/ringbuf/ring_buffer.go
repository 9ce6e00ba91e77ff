// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ringbuf provides a bounded FIFO buffer for telemetry data.
//
// # Description
//
// Buffer is a fixed-capacity circular buffer that silently evicts the
// oldest item when full. Eviction is never an error: the telemetry
// pipeline treats buffer overflow as expected steady-state behavior,
// and a dropped counter is kept for observability.
//
// # Thread Safety
//
// All operations are safe for concurrent use from multiple goroutines.
package ringbuf

import (
	"sync"
	"sync/atomic"
)

// Buffer is a thread-safe, fixed-size circular buffer.
//
// # Description
//
// Items are appended at the tail and evicted from the head. When the
// buffer is at capacity, Push overwrites the oldest item and increments
// the dropped counter. Iteration order (ToSlice, Filter) is always
// insertion order, oldest first.
//
// # Use Cases
//
//   - Log entry retention where recent entries matter most
//   - Bounded anomaly and alert histories
//   - Metric sample windows
//
// # Limitations
//
//   - Capacity is fixed at creation
//   - Memory for the full capacity is allocated up front
type Buffer[T any] struct {
	items    []T
	head     int
	tail     int
	size     int
	capacity int
	dropped  int64
	mu       sync.Mutex
}

// New creates a buffer holding up to capacity items.
//
// Panics if capacity <= 0; a zero-capacity telemetry buffer is a
// programming error, not a runtime condition.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		panic("ringbuf: capacity must be positive")
	}
	return &Buffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Push adds an item, evicting the oldest if the buffer is full.
//
// # Outputs
//
//   - bool: true if an item was evicted to make room.
func (b *Buffer[T]) Push(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	evicted := false
	if b.size == b.capacity {
		b.head = (b.head + 1) % b.capacity
		b.size--
		atomic.AddInt64(&b.dropped, 1)
		evicted = true
	}

	b.items[b.tail] = item
	b.tail = (b.tail + 1) % b.capacity
	b.size++
	return evicted
}

// Pop removes and returns the oldest item.
//
// Returns the zero value and false if the buffer is empty.
func (b *Buffer[T]) Pop() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		var zero T
		return zero, false
	}

	item := b.items[b.head]
	var zero T
	b.items[b.head] = zero // clear reference for GC
	b.head = (b.head + 1) % b.capacity
	b.size--
	return item, true
}

// ToSlice returns a snapshot of all items, oldest first.
//
// The buffer is not modified. Returns nil if empty.
func (b *Buffer[T]) ToSlice() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		return nil
	}

	out := make([]T, b.size)
	idx := b.head
	for i := 0; i < b.size; i++ {
		out[i] = b.items[idx]
		idx = (idx + 1) % b.capacity
	}
	return out
}

// Filter removes every item for which keep returns false.
//
// # Description
//
// Retained items keep their relative order and are compacted to the
// start of the ring. Used by the event store's cleanup pass to drop
// entries older than a cutoff.
//
// # Outputs
//
//   - int: number of items removed.
func (b *Buffer[T]) Filter(keep func(T) bool) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		return 0
	}

	kept := make([]T, 0, b.size)
	idx := b.head
	for i := 0; i < b.size; i++ {
		if keep(b.items[idx]) {
			kept = append(kept, b.items[idx])
		}
		idx = (idx + 1) % b.capacity
	}

	removed := b.size - len(kept)
	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	copy(b.items, kept)
	b.head = 0
	b.tail = len(kept) % b.capacity
	b.size = len(kept)
	return removed
}

// Len returns the current number of items.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int {
	return b.capacity // immutable, no lock needed
}

// Dropped returns the total number of items evicted since creation
// (or since the last Clear). Lock-free read.
func (b *Buffer[T]) Dropped() int64 {
	return atomic.LoadInt64(&b.dropped)
}

// Clear removes all items and resets the dropped counter.
func (b *Buffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.head = 0
	b.tail = 0
	b.size = 0
	atomic.StoreInt64(&b.dropped, 0)
}
