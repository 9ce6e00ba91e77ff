// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers exposes the telemetry admin and streaming HTTP API.
package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amadalihammoud/brimu-telemetry/pkg/logging"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/anomaly"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/audit"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/backup"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/bus"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/health"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/logstore"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/metrics"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/notify"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/patterns"
)

// Handlers bundles the telemetry subsystems behind the HTTP API.
type Handlers struct {
	Store      *logstore.Store
	Matcher    *patterns.Matcher
	Recorder   *metrics.Recorder
	Detector   *anomaly.Detector
	Health     *health.Orchestrator
	Dispatcher *notify.Dispatcher
	Tracker    *audit.Tracker
	Backups    *backup.Orchestrator
	Events     *bus.Bus
	Hub        *notify.SocketHub
	Log        *logging.Logger
}

// errorResponse is the uniform error envelope.
func errorResponse(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// =============================================================================
// Logs
// =============================================================================

// RecordLog handles POST /api/telemetry/logs.
func (h *Handlers) RecordLog(c *gin.Context) {
	var req datatypes.RecordLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	// The loglevel tag admits the "all" wildcard for pattern
	// registrations; an entry must carry a concrete level.
	if !datatypes.ValidLogLevel(datatypes.LogLevel(req.Level)) {
		errorResponse(c, http.StatusBadRequest, "level must be a concrete log level")
		return
	}

	ctx := datatypes.EntryContext{Module: req.Module, Extra: req.Context}
	if v, ok := req.Context["userId"].(string); ok {
		ctx.UserID = v
	}
	if v, ok := req.Context["requestId"].(string); ok {
		ctx.RequestID = v
	}
	if v, ok := req.Context["endpoint"].(string); ok {
		ctx.Endpoint = v
	}

	id := h.Store.Record(datatypes.LogLevel(req.Level), req.Message, ctx)
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// SearchLogs handles GET /api/telemetry/logs.
func (h *Handlers) SearchLogs(c *gin.Context) {
	filter, err := searchFilterFromQuery(c)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	entries := h.Store.Search(filter)
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

// ExportLogs handles GET /api/telemetry/logs/export.
func (h *Handlers) ExportLogs(c *gin.Context) {
	filter, err := searchFilterFromQuery(c)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	format := datatypes.ExportFormat(c.DefaultQuery("format", string(datatypes.ExportJSON)))
	switch format {
	case datatypes.ExportJSON:
		c.Header("Content-Type", "application/json")
		c.Header("Content-Disposition", `attachment; filename="logs.json"`)
	case datatypes.ExportCSV:
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", `attachment; filename="logs.csv"`)
	case datatypes.ExportNDJSON:
		c.Header("Content-Type", "application/x-ndjson")
		c.Header("Content-Disposition", `attachment; filename="logs.ndjson"`)
	default:
		errorResponse(c, http.StatusBadRequest, "unknown export format: "+string(format))
		return
	}

	if _, err := h.Store.Export(c.Writer, format, filter); err != nil {
		// Headers may be gone already; log instead of rewriting status.
		if h.Log != nil {
			h.Log.Error("log export failed", "error", err.Error())
		}
	}
}

// LogAnalytics handles GET /api/telemetry/logs/analytics.
func (h *Handlers) LogAnalytics(c *gin.Context) {
	window, err := time.ParseDuration(c.DefaultQuery("window", "24h"))
	if err != nil || window <= 0 {
		errorResponse(c, http.StatusBadRequest, "invalid window")
		return
	}
	topN, _ := strconv.Atoi(c.DefaultQuery("top", "10"))
	c.JSON(http.StatusOK, h.Store.Analytics(window, topN))
}

// CleanupLogs handles DELETE /api/telemetry/logs.
func (h *Handlers) CleanupLogs(c *gin.Context) {
	olderThan := c.Query("olderThan")
	cutoff, err := time.Parse(time.RFC3339, olderThan)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "olderThan must be RFC 3339")
		return
	}
	removed := h.Store.Cleanup(cutoff)
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// searchFilterFromQuery parses the shared log filter query params.
func searchFilterFromQuery(c *gin.Context) (datatypes.SearchFilter, error) {
	var filter datatypes.SearchFilter

	if levels := c.Query("levels"); levels != "" {
		for _, l := range strings.Split(levels, ",") {
			filter.Levels = append(filter.Levels, datatypes.LogLevel(strings.TrimSpace(l)))
		}
	}
	if from := c.Query("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return filter, err
		}
		filter.From = t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return filter, err
		}
		filter.To = t
	}
	filter.UserID = c.Query("userId")
	filter.CorrelationID = c.Query("correlationId")
	filter.TextContains = c.Query("q")
	if tags := c.Query("tags"); tags != "" {
		filter.Tags = strings.Split(tags, ",")
	}
	filter.Limit, _ = strconv.Atoi(c.Query("limit"))
	filter.Offset, _ = strconv.Atoi(c.Query("offset"))
	return filter, nil
}

// =============================================================================
// Metrics
// =============================================================================

// RecordMetric handles POST /api/telemetry/metrics.
func (h *Handlers) RecordMetric(c *gin.Context) {
	var req datatypes.RecordMetricRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	m := h.Recorder.Record(req.Metric, req.Value, req.Unit, req.Endpoint, req.Method, req.Meta)
	c.JSON(http.StatusCreated, m)
}

// SearchMetrics handles GET /api/telemetry/metrics.
func (h *Handlers) SearchMetrics(c *gin.Context) {
	var filter datatypes.MetricFilter
	filter.Metric = c.Query("metric")
	filter.Endpoint = c.Query("endpoint")
	filter.Severity = datatypes.Severity(c.Query("severity"))
	filter.Limit, _ = strconv.Atoi(c.Query("limit"))
	if from := c.Query("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, "from must be RFC 3339")
			return
		}
		filter.From = t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, "to must be RFC 3339")
			return
		}
		filter.To = t
	}

	samples := h.Recorder.Query(filter)
	c.JSON(http.StatusOK, gin.H{"samples": samples, "count": len(samples)})
}

// PerformanceAnalytics handles GET /api/telemetry/metrics/analytics.
func (h *Handlers) PerformanceAnalytics(c *gin.Context) {
	window := datatypes.AggregationWindow(c.DefaultQuery("window", string(datatypes.WindowDay)))
	if _, ok := window.Duration(); !ok {
		errorResponse(c, http.StatusBadRequest, "window must be one of 1h, 24h, 7d")
		return
	}
	topN, _ := strconv.Atoi(c.DefaultQuery("top", "10"))
	payload := h.Recorder.Analytics(window, topN)
	payload.Anomalies = h.Detector.History(20)
	c.JSON(http.StatusOK, payload)
}

// Anomalies handles GET /api/telemetry/anomalies.
func (h *Handlers) Anomalies(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list := h.Detector.History(limit)
	c.JSON(http.StatusOK, gin.H{"anomalies": list, "count": len(list)})
}
