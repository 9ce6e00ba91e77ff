// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/audit"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/logstore"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/metrics"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/observability"
)

// BlockedIPGuard rejects requests from IPs the threat tracker has
// blocked. Runs before everything else so blocked clients never reach
// a handler.
func BlockedIPGuard(tracker *audit.Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tracker != nil && tracker.IsBlocked(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access blocked"})
			return
		}
		c.Next()
	}
}

// RequestTelemetry records every request into the log store and the
// performance recorder, and observes request duration for Prometheus.
//
// Requests to the streaming endpoints are skipped for the recorder;
// their duration is the client's connection lifetime, not a service
// latency.
func RequestTelemetry(store *logstore.Store, recorder *metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)
		durationMs := float64(duration) / float64(time.Millisecond)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		observability.HTTPRequestDuration.
			WithLabelValues(route, strconv.Itoa(status)).
			Observe(duration.Seconds())

		streaming := c.GetHeader("Accept") == "text/event-stream" ||
			c.IsWebsocket()
		if recorder != nil && !streaming {
			recorder.RecordRequest(route, c.Request.Method, durationMs, status)
		}

		if store != nil {
			level := datatypes.LogLevelHTTP
			if status >= http.StatusInternalServerError {
				level = datatypes.LogLevelError
			} else if status >= http.StatusBadRequest {
				level = datatypes.LogLevelWarn
			}
			store.Record(level,
				fmt.Sprintf("%s %s %d", c.Request.Method, route, status),
				datatypes.EntryContext{
					Module:     "http",
					RequestID:  c.GetHeader("X-Request-Id"),
					Endpoint:   route,
					Method:     c.Request.Method,
					StatusCode: status,
					DurationMs: durationMs,
					IP:         c.ClientIP(),
				})
		}
	}
}
