// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/observability"
)

const (
	// keepAliveInterval spaces SSE comments so proxies keep the
	// connection open.
	keepAliveInterval = 30 * time.Second

	// maxStreamDuration caps a single tail session. Clients are
	// expected to reconnect.
	maxStreamDuration = 30 * time.Minute
)

// StreamLogs handles GET /api/telemetry/stream/logs.
func (h *Handlers) StreamLogs(c *gin.Context) {
	h.streamTopic(c, datatypes.TopicLogs)
}

// StreamMetrics handles GET /api/telemetry/stream/metrics.
func (h *Handlers) StreamMetrics(c *gin.Context) {
	h.streamTopic(c, datatypes.TopicMetrics)
}

// StreamAnomalies handles GET /api/telemetry/stream/anomalies.
func (h *Handlers) StreamAnomalies(c *gin.Context) {
	h.streamTopic(c, datatypes.TopicAnomalies)
}

// StreamAlerts handles GET /api/telemetry/stream/alerts.
func (h *Handlers) StreamAlerts(c *gin.Context) {
	h.streamTopic(c, datatypes.TopicAlerts)
}

// StreamBackupProgress handles GET /api/telemetry/stream/backups.
func (h *Handlers) StreamBackupProgress(c *gin.Context) {
	h.streamTopic(c, datatypes.TopicBackupProgress)
}

// streamTopic tails one bus topic over SSE until the client
// disconnects, the session cap elapses, or the bus closes.
func (h *Handlers) streamTopic(c *gin.Context, topic datatypes.StreamTopic) {
	SetSSEHeaders(c.Writer)
	writer, err := NewSSEWriter(c.Writer)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	events, unsubscribe := h.Events.Subscribe(topic, 0)
	defer unsubscribe()

	observability.SSESessions.Inc()
	defer observability.SSESessions.Dec()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()
	deadline := time.NewTimer(maxStreamDuration)
	defer deadline.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-deadline.C:
			_ = writer.WriteDone("session limit reached")
			return
		case <-keepAlive.C:
			if err := writer.WriteKeepAlive(); err != nil {
				return
			}
		case event, ok := <-events:
			if !ok {
				_ = writer.WriteDone("stream closed")
				return
			}
			if err := writer.WriteEvent(event); err != nil {
				return
			}
		}
	}
}

// NotificationSocket handles GET /api/telemetry/ws. It upgrades the
// connection and registers it with the socket hub. The user identity
// comes from the userId query param; category subscriptions arrive as
// frames on the socket itself.
func (h *Handlers) NotificationSocket(c *gin.Context) {
	userID := c.Query("userId")
	if err := h.Hub.HandleUpgrade(c.Writer, c.Request, userID); err != nil {
		// Upgrade failures already wrote the HTTP error response.
		if h.Log != nil {
			h.Log.Warn("websocket upgrade failed", "error", err.Error())
		}
	}
}
