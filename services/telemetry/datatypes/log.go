// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the telemetry core.
//
// This file contains log entry types for the ring-buffered event store.
// For metric types see metrics.go, for health types see health.go.
package datatypes

import (
	"time"
)

// =============================================================================
// Log Levels
// =============================================================================

// LogLevel is the severity of a log entry.
//
// Levels mirror the application logger's vocabulary, ordered from most
// to least severe. LevelAll is a pattern-matching wildcard, never a
// level an entry itself carries.
type LogLevel string

const (
	// LogLevelError indicates an operation failure.
	LogLevelError LogLevel = "error"

	// LogLevelWarn indicates a recoverable problem.
	LogLevelWarn LogLevel = "warn"

	// LogLevelInfo indicates a normal operational event.
	LogLevelInfo LogLevel = "info"

	// LogLevelHTTP indicates a request lifecycle event.
	LogLevelHTTP LogLevel = "http"

	// LogLevelVerbose indicates detailed operational tracing.
	LogLevelVerbose LogLevel = "verbose"

	// LogLevelDebug indicates development troubleshooting output.
	LogLevelDebug LogLevel = "debug"

	// LogLevelSilly is the most granular trace level.
	LogLevelSilly LogLevel = "silly"

	// LogLevelAll is a wildcard used by pattern registrations to match
	// entries of any level.
	LogLevelAll LogLevel = "all"
)

// ValidLogLevel reports whether l is a level an entry may carry.
func ValidLogLevel(l LogLevel) bool {
	switch l {
	case LogLevelError, LogLevelWarn, LogLevelInfo, LogLevelHTTP,
		LogLevelVerbose, LogLevelDebug, LogLevelSilly:
		return true
	}
	return false
}

// =============================================================================
// Entry Context
// =============================================================================

// EntryContext carries structured context attached to a log entry.
//
// # Description
//
// The hot fields consumed by search, analytics, and fingerprinting are
// typed; everything else callers attach travels in Extra. This keeps
// type safety for the fields the pipeline actually reads while staying
// open for arbitrary caller metadata.
type EntryContext struct {
	// Module is the producing subsystem (e.g. "orders", "payments").
	// Used as the fingerprint prefix.
	Module string `json:"module,omitempty"`

	// UserID identifies the acting user, if any.
	UserID string `json:"userId,omitempty"`

	// RequestID correlates entries belonging to one request.
	RequestID string `json:"requestId,omitempty"`

	// Endpoint is the request path (e.g. "/api/orders").
	Endpoint string `json:"endpoint,omitempty"`

	// Method is the HTTP method for request-scoped entries.
	Method string `json:"method,omitempty"`

	// StatusCode is the response status for request-scoped entries.
	StatusCode int `json:"statusCode,omitempty"`

	// DurationMs is the operation duration in milliseconds.
	DurationMs float64 `json:"durationMs,omitempty"`

	// IP is the client address for request-scoped entries.
	IP string `json:"ip,omitempty"`

	// Extra holds the long tail of caller-supplied key-value context.
	Extra map[string]any `json:"extra,omitempty"`
}

// =============================================================================
// Log Entry
// =============================================================================

// LogEntry is a single structured record in the event store.
//
// # Description
//
// Entries are immutable once created. The store assigns ID, Timestamp,
// Fingerprint, and Tags at record time; eviction from the ring buffer is
// silent and expected.
type LogEntry struct {
	// ID is a unique identifier (UUID v4).
	ID string `json:"id"`

	// Timestamp is when the entry was recorded.
	Timestamp time.Time `json:"timestamp"`

	// Level is the entry severity.
	Level LogLevel `json:"level"`

	// Message is the log message as produced.
	Message string `json:"message"`

	// Context is the structured context attached by the producer.
	Context EntryContext `json:"context"`

	// Fingerprint groups entries whose messages differ only in variable
	// data (digits, UUIDs, emails). Derived at record time.
	Fingerprint string `json:"fingerprint"`

	// Tags are derived labels used for filtered search (e.g. "slow",
	// "client-error", "server-error").
	Tags []string `json:"tags,omitempty"`

	// Stack is the captured stack trace; error-level entries only.
	Stack string `json:"stack,omitempty"`
}

// HasTag reports whether the entry carries the given tag.
func (e *LogEntry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// =============================================================================
// Search & Analytics
// =============================================================================

// SearchFilter selects entries from the event store.
//
// All fields are optional; zero values are ignored. Fields combine with
// AND logic. Results are newest-first.
type SearchFilter struct {
	// Levels restricts results to the given levels.
	Levels []LogLevel `json:"levels,omitempty"`

	// From excludes entries before this time.
	From time.Time `json:"from,omitempty"`

	// To excludes entries after this time.
	To time.Time `json:"to,omitempty"`

	// UserID matches Context.UserID exactly.
	UserID string `json:"userId,omitempty"`

	// CorrelationID matches Context.RequestID exactly.
	CorrelationID string `json:"correlationId,omitempty"`

	// TextContains matches the message, case-insensitive.
	TextContains string `json:"textContains,omitempty"`

	// Tags requires every listed tag to be present.
	Tags []string `json:"tags,omitempty"`

	// Limit caps the result count (default 100).
	Limit int `json:"limit,omitempty"`

	// Offset skips the first N matches (for paging).
	Offset int `json:"offset,omitempty"`
}

// FingerprintCount is one row of the top-errors analytics table.
type FingerprintCount struct {
	// Fingerprint is the normalized message signature.
	Fingerprint string `json:"fingerprint"`

	// Count is the number of entries sharing the fingerprint.
	Count int `json:"count"`

	// Sample is the message of the most recent entry in the group.
	Sample string `json:"sample"`
}

// ModuleCount is one row of the per-module analytics table.
type ModuleCount struct {
	Module string `json:"module"`
	Count  int    `json:"count"`
}

// LogAnalytics summarizes the event store over a trailing window.
type LogAnalytics struct {
	// Total is the number of entries in the window.
	Total int `json:"total"`

	// ByLevel counts entries per level.
	ByLevel map[LogLevel]int `json:"byLevel"`

	// ErrorRate is the proportion of error-level entries (0..1).
	ErrorRate float64 `json:"errorRate"`

	// TopErrors lists the most frequent error fingerprints, descending.
	TopErrors []FingerprintCount `json:"topErrors"`

	// TopModules lists the busiest producing modules, descending.
	TopModules []ModuleCount `json:"topModules"`

	// BufferDropped is the lifetime count of evicted entries.
	BufferDropped int64 `json:"bufferDropped"`

	// GeneratedAt is when the summary was computed.
	GeneratedAt time.Time `json:"generatedAt"`
}

// ExportFormat selects the wire format for exportLogs.
type ExportFormat string

const (
	// ExportJSON emits a single JSON array.
	ExportJSON ExportFormat = "json"

	// ExportCSV emits RFC 4180 style rows; embedded quotes are doubled.
	ExportCSV ExportFormat = "csv"

	// ExportNDJSON emits one JSON object per line (Elasticsearch bulk
	// document style).
	ExportNDJSON ExportFormat = "elasticsearch-ndjson"
)
