// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes mounts the telemetry API on the given engine.
//
// Layout:
//
//	/metrics                      Prometheus scrape endpoint
//	/api/telemetry/logs           event store
//	/api/telemetry/metrics        performance samples
//	/api/telemetry/patterns       pattern alerting
//	/api/telemetry/thresholds     severity thresholds
//	/api/telemetry/anomalies      statistical detections
//	/api/telemetry/health         check orchestration
//	/api/telemetry/notifications  delivery fan-out
//	/api/telemetry/security       threat tracking
//	/api/telemetry/backups        archive runs
//	/api/telemetry/stream/*       SSE tails
//	/api/telemetry/ws             notification websocket
func RegisterRoutes(r *gin.Engine, h *Handlers) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/telemetry")

	api.POST("/logs", h.RecordLog)
	api.GET("/logs", h.SearchLogs)
	api.DELETE("/logs", h.CleanupLogs)
	api.GET("/logs/export", h.ExportLogs)
	api.GET("/logs/analytics", h.LogAnalytics)

	api.POST("/metrics", h.RecordMetric)
	api.GET("/metrics", h.SearchMetrics)
	api.GET("/metrics/analytics", h.PerformanceAnalytics)

	api.POST("/patterns", h.RegisterPattern)
	api.GET("/patterns", h.ListPatterns)
	api.DELETE("/patterns/:id", h.RemovePattern)
	api.PATCH("/patterns/:id", h.EnablePattern)

	api.GET("/thresholds", h.GetThresholds)
	api.PUT("/thresholds/:metric", h.SetThreshold)

	api.GET("/anomalies", h.Anomalies)

	api.GET("/health", h.HealthStatus)
	api.POST("/health/run", h.RunHealthChecks)

	api.POST("/notifications", h.SendNotification)
	api.GET("/notifications", h.ListNotifications)
	api.POST("/notifications/:id/read", h.MarkNotificationRead)

	api.GET("/security/threats", h.ListThreats)
	api.GET("/security/threats/:ip", h.GetThreat)
	api.POST("/security/block", h.BlockIP)
	api.POST("/security/unblock", h.UnblockIP)

	api.POST("/backups", h.TriggerBackup)
	api.GET("/backups/history", h.BackupHistory)

	api.GET("/stream/logs", h.StreamLogs)
	api.GET("/stream/metrics", h.StreamMetrics)
	api.GET("/stream/anomalies", h.StreamAnomalies)
	api.GET("/stream/alerts", h.StreamAlerts)
	api.GET("/stream/backups", h.StreamBackupProgress)

	api.GET("/ws", h.NotificationSocket)
}
