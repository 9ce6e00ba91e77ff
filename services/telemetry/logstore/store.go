// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logstore implements the ring-buffered event store.
//
// The store is the central sink for structured log entries. Recording
// never blocks and never fails; search and analytics read a consistent
// snapshot; eviction past capacity is silent FIFO.
package logstore

import (
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amadalihammoud/brimu-telemetry/pkg/logging"
	"github.com/amadalihammoud/brimu-telemetry/pkg/ringbuf"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/bus"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/observability"
)

// DefaultCapacity is the ring size when the caller passes zero.
const DefaultCapacity = 10000

// defaultSearchLimit applies when a filter has no explicit limit.
const defaultSearchLimit = 100

// slowRequestMs is the duration above which an entry is tagged "slow".
const slowRequestMs = 1000

// RecordHook observes every entry after it is stored. Hooks run
// synchronously on the recording goroutine and must be fast; the
// pattern matcher registers one.
type RecordHook func(entry datatypes.LogEntry)

// =============================================================================
// Store
// =============================================================================

// Store is the ring-buffered event store.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Search and Analytics operate
// on a snapshot taken under the lock; they never observe a partially
// recorded entry.
type Store struct {
	mu    sync.RWMutex
	ring  *ringbuf.Buffer[datatypes.LogEntry]
	hooks []RecordHook

	events *bus.Bus
	log    *logging.Logger
}

// New creates a store with the given capacity. The bus and logger may
// be nil; recording then skips publication.
func New(capacity int, events *bus.Bus, log *logging.Logger) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		ring:   ringbuf.New[datatypes.LogEntry](capacity),
		events: events,
		log:    log,
	}
}

// AddHook registers a synchronous per-entry observer. Not safe to call
// concurrently with Record; wire hooks during startup.
func (s *Store) AddHook(h RecordHook) {
	s.hooks = append(s.hooks, h)
}

// Record stores a new entry and returns its ID.
//
// # Description
//
// The store assigns ID, timestamp, fingerprint, and derived tags.
// Error-level entries capture a stack trace. Overflow evicts the oldest
// entry silently. A panicking hook is recovered and logged so a bad
// observer cannot lose the entry or crash the producer.
func (s *Store) Record(level datatypes.LogLevel, message string, ctx datatypes.EntryContext) string {
	entry := datatypes.LogEntry{
		ID:          uuid.NewString(),
		Timestamp:   time.Now(),
		Level:       level,
		Message:     message,
		Context:     ctx,
		Fingerprint: Fingerprint(ctx.Module, message),
		Tags:        deriveTags(level, ctx),
	}
	if level == datatypes.LogLevelError {
		entry.Stack = string(debug.Stack())
	}

	s.mu.Lock()
	s.ring.Push(entry)
	s.mu.Unlock()

	observability.LogEntriesTotal.WithLabelValues(string(level)).Inc()

	for _, h := range s.hooks {
		s.runHook(h, entry)
	}
	if s.events != nil {
		s.events.Publish(datatypes.TopicLogs, entry)
	}
	return entry.ID
}

func (s *Store) runHook(h RecordHook, entry datatypes.LogEntry) {
	defer func() {
		if r := recover(); r != nil && s.log != nil {
			s.log.Error("log store hook panicked", "panic", r)
		}
	}()
	h(entry)
}

// deriveTags labels an entry from its context for filtered search.
func deriveTags(level datatypes.LogLevel, ctx datatypes.EntryContext) []string {
	var tags []string
	if ctx.DurationMs > slowRequestMs {
		tags = append(tags, "slow")
	}
	switch {
	case ctx.StatusCode >= 500:
		tags = append(tags, "server-error")
	case ctx.StatusCode >= 400:
		tags = append(tags, "client-error")
	}
	if level == datatypes.LogLevelError && ctx.Module != "" {
		tags = append(tags, "module:"+ctx.Module)
	}
	return tags
}

// =============================================================================
// Search
// =============================================================================

// Search returns entries matching the filter, newest first.
//
// Pure and side-effect free: the returned slice is a copy. A zero-value
// filter returns the most recent entries up to the default limit.
func (s *Store) Search(filter datatypes.SearchFilter) []datatypes.LogEntry {
	s.mu.RLock()
	all := s.ring.ToSlice() // oldest first
	s.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > datatypes.MaxSearchLimit {
		limit = datatypes.MaxSearchLimit
	}

	var out []datatypes.LogEntry
	skipped := 0
	for i := len(all) - 1; i >= 0; i-- {
		if !matches(&all[i], &filter) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, all[i])
		if len(out) >= limit {
			break
		}
	}
	return out
}

func matches(e *datatypes.LogEntry, f *datatypes.SearchFilter) bool {
	if len(f.Levels) > 0 {
		found := false
		for _, l := range f.Levels {
			if e.Level == l {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	if f.UserID != "" && e.Context.UserID != f.UserID {
		return false
	}
	if f.CorrelationID != "" && e.Context.RequestID != f.CorrelationID {
		return false
	}
	if f.TextContains != "" &&
		!strings.Contains(strings.ToLower(e.Message), strings.ToLower(f.TextContains)) {
		return false
	}
	for _, tag := range f.Tags {
		if !e.HasTag(tag) {
			return false
		}
	}
	return true
}

// =============================================================================
// Cleanup & Analytics
// =============================================================================

// Cleanup removes entries strictly older than the cutoff and returns
// the removed count.
func (s *Store) Cleanup(olderThan time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ring.Filter(func(e datatypes.LogEntry) bool {
		return !e.Timestamp.Before(olderThan)
	})
}

// Len returns the number of retained entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ring.Len()
}

// Analytics summarizes entries recorded within the trailing window.
//
// topN bounds the TopErrors and TopModules tables; zero means 10.
func (s *Store) Analytics(window time.Duration, topN int) datatypes.LogAnalytics {
	if topN <= 0 {
		topN = 10
	}
	cutoff := time.Now().Add(-window)

	s.mu.RLock()
	all := s.ring.ToSlice()
	dropped := s.ring.Dropped()
	s.mu.RUnlock()

	summary := datatypes.LogAnalytics{
		ByLevel:       make(map[datatypes.LogLevel]int),
		BufferDropped: dropped,
		GeneratedAt:   time.Now(),
	}

	type group struct {
		count  int
		sample string
	}
	errGroups := make(map[string]*group)
	modCounts := make(map[string]int)

	for i := range all {
		e := &all[i]
		if window > 0 && e.Timestamp.Before(cutoff) {
			continue
		}
		summary.Total++
		summary.ByLevel[e.Level]++
		if e.Context.Module != "" {
			modCounts[e.Context.Module]++
		}
		if e.Level == datatypes.LogLevelError {
			g := errGroups[e.Fingerprint]
			if g == nil {
				g = &group{}
				errGroups[e.Fingerprint] = g
			}
			g.count++
			g.sample = e.Message // iteration is oldest-first, keeps newest
		}
	}

	if summary.Total > 0 {
		summary.ErrorRate = float64(summary.ByLevel[datatypes.LogLevelError]) / float64(summary.Total)
	}

	for fp, g := range errGroups {
		summary.TopErrors = append(summary.TopErrors, datatypes.FingerprintCount{
			Fingerprint: fp, Count: g.count, Sample: g.sample,
		})
	}
	sort.Slice(summary.TopErrors, func(i, j int) bool {
		if summary.TopErrors[i].Count != summary.TopErrors[j].Count {
			return summary.TopErrors[i].Count > summary.TopErrors[j].Count
		}
		return summary.TopErrors[i].Fingerprint < summary.TopErrors[j].Fingerprint
	})
	if len(summary.TopErrors) > topN {
		summary.TopErrors = summary.TopErrors[:topN]
	}

	for m, c := range modCounts {
		summary.TopModules = append(summary.TopModules, datatypes.ModuleCount{Module: m, Count: c})
	}
	sort.Slice(summary.TopModules, func(i, j int) bool {
		if summary.TopModules[i].Count != summary.TopModules[j].Count {
			return summary.TopModules[i].Count > summary.TopModules[j].Count
		}
		return summary.TopModules[i].Module < summary.TopModules[j].Module
	})
	if len(summary.TopModules) > topN {
		summary.TopModules = summary.TopModules[:topN]
	}

	return summary
}
