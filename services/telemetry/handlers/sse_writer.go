// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
)

// =============================================================================
// Interface Definition
// =============================================================================

// SSEWriter defines the contract for writing Server-Sent Events to
// HTTP responses.
//
// # Description
//
// SSEWriter abstracts SSE serialization from HTTP response mechanics
// so streaming handlers stay testable. Implementations handle the SSE
// wire format (event: type\ndata: json\n\n) internally and flush after
// every write.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; a tail handler
// writes bus events and heartbeats from different goroutines.
type SSEWriter interface {
	// WriteEvent writes one stream event, typed by its topic.
	WriteEvent(event datatypes.StreamEvent) error

	// WriteError writes an error event. The message must already be
	// sanitized for the client.
	WriteError(errMsg string) error

	// WriteDone writes the final event before the stream closes.
	WriteDone(reason string) error

	// WriteKeepAlive sends an SSE comment to keep intermediaries from
	// timing the connection out.
	WriteKeepAlive() error
}

// =============================================================================
// Implementation
// =============================================================================

// sseWriter implements SSEWriter over an http.ResponseWriter.
//
// # Limitations
//
//   - Requires http.Flusher support
//   - Cannot be reused across requests
type sseWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

var _ SSEWriter = (*sseWriter)(nil)

// NewSSEWriter creates a writer for the given ResponseWriter. The
// caller must set SSE headers first via SetSSEHeaders.
func NewSSEWriter(w http.ResponseWriter) (SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}
	return &sseWriter{writer: w, flusher: flusher}, nil
}

// WriteEvent writes one stream event in SSE format.
func (w *sseWriter) WriteEvent(event datatypes.StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprintf(w.writer, "event: %s\ndata: %s\n\n", event.Topic, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// WriteError writes an error event.
func (w *sseWriter) WriteError(errMsg string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprintf(w.writer, "event: error\ndata: %q\n\n", errMsg); err != nil {
		return fmt.Errorf("write error event: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// WriteDone writes the final event.
func (w *sseWriter) WriteDone(reason string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprintf(w.writer, "event: done\ndata: %q\n\n", reason); err != nil {
		return fmt.Errorf("write done event: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// WriteKeepAlive sends an SSE comment line.
func (w *sseWriter) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprintf(w.writer, ": ping\n\n"); err != nil {
		return fmt.Errorf("write keepalive: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// SetSSEHeaders configures response headers for SSE streaming. Must be
// called before any body write.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}
