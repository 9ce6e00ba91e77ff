// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amadalihammoud/brimu-telemetry/pkg/validation"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/patterns"
)

// =============================================================================
// Patterns
// =============================================================================

// RegisterPattern handles POST /api/telemetry/patterns.
func (h *Handlers) RegisterPattern(c *gin.Context) {
	var req datatypes.RegisterPatternRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	p := datatypes.Pattern{
		ID:            req.ID,
		Kind:          datatypes.PatternKind(req.Kind),
		Expression:    req.Expression,
		Level:         datatypes.LogLevel(req.Level),
		Threshold:     req.Threshold,
		WindowSeconds: req.WindowSeconds,
		Action:        datatypes.PatternAction(req.Action),
		Severity:      datatypes.Severity(req.Severity),
		Description:   req.Description,
		Enabled:       true,
	}
	if err := h.Matcher.Register(p); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, patterns.ErrPatternExists) {
			status = http.StatusConflict
		}
		errorResponse(c, status, err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": p.ID})
}

// ListPatterns handles GET /api/telemetry/patterns.
func (h *Handlers) ListPatterns(c *gin.Context) {
	list := h.Matcher.List()
	c.JSON(http.StatusOK, gin.H{"patterns": list, "count": len(list)})
}

// RemovePattern handles DELETE /api/telemetry/patterns/:id.
func (h *Handlers) RemovePattern(c *gin.Context) {
	if !h.Matcher.Remove(c.Param("id")) {
		errorResponse(c, http.StatusNotFound, "pattern not found")
		return
	}
	c.Status(http.StatusNoContent)
}

// EnablePattern handles PATCH /api/telemetry/patterns/:id.
func (h *Handlers) EnablePattern(c *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if !h.Matcher.SetEnabled(c.Param("id"), *req.Enabled) {
		errorResponse(c, http.StatusNotFound, "pattern not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "enabled": *req.Enabled})
}

// =============================================================================
// Thresholds
// =============================================================================

// GetThresholds handles GET /api/telemetry/thresholds.
func (h *Handlers) GetThresholds(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"thresholds": h.Recorder.Thresholds()})
}

// SetThreshold handles PUT /api/telemetry/thresholds/:metric.
func (h *Handlers) SetThreshold(c *gin.Context) {
	metric := c.Param("metric")
	if err := validation.ValidateMetricName(metric); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	var req datatypes.SetThresholdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	th := datatypes.Threshold{Warning: req.Warning, Critical: req.Critical}
	h.Recorder.SetThreshold(metric, th)
	c.JSON(http.StatusOK, gin.H{"metric": metric, "threshold": th})
}

// =============================================================================
// Health
// =============================================================================

// HealthStatus handles GET /api/telemetry/health. It returns the last
// observed check results without re-running anything.
func (h *Handlers) HealthStatus(c *gin.Context) {
	report := h.Health.Report()
	status := http.StatusOK
	if report.Status == datatypes.HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// RunHealthChecks handles POST /api/telemetry/health/run. All checks
// execute immediately in parallel.
func (h *Handlers) RunHealthChecks(c *gin.Context) {
	report := h.Health.RunAll(c.Request.Context())
	status := http.StatusOK
	if report.Status == datatypes.HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// =============================================================================
// Notifications
// =============================================================================

// SendNotification handles POST /api/telemetry/notifications.
func (h *Handlers) SendNotification(c *gin.Context) {
	var req datatypes.SendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	channels := make([]datatypes.ChannelType, 0, len(req.Channels))
	for _, ch := range req.Channels {
		channels = append(channels, datatypes.ChannelType(ch))
	}

	var (
		n       datatypes.Notification
		results []datatypes.DeliveryResult
		err     error
	)
	if req.TemplateID != "" {
		n, results, err = h.Dispatcher.SendTemplate(c.Request.Context(), req.TemplateID, req.Vars, channels, req.Target)
	} else {
		n = datatypes.Notification{
			Title:    req.Title,
			Body:     req.Body,
			Category: req.Category,
			Priority: datatypes.Priority(req.Priority),
			Channels: channels,
			Target:   req.Target,
		}
		if req.TTLSeconds > 0 {
			n.ExpiresAt = time.Now().Add(time.Duration(req.TTLSeconds) * time.Second)
		}
		n, results, err = h.Dispatcher.Send(c.Request.Context(), n)
	}
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"notification": n, "deliveries": results})
}

// ListNotifications handles GET /api/telemetry/notifications.
func (h *Handlers) ListNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	unreadOnly := c.Query("unread") == "true"
	list, err := h.Dispatcher.List(limit, unreadOnly)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list, "count": len(list)})
}

// MarkNotificationRead handles POST /api/telemetry/notifications/:id/read.
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	userID := c.Query("userId")
	if err := h.Dispatcher.MarkRead(c.Param("id"), userID); err != nil {
		errorResponse(c, http.StatusNotFound, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "read": true, "readBy": userID})
}

// =============================================================================
// Security
// =============================================================================

// ListThreats handles GET /api/telemetry/security/threats.
func (h *Handlers) ListThreats(c *gin.Context) {
	profiles := h.Tracker.Profiles()
	c.JSON(http.StatusOK, gin.H{"threats": profiles, "count": len(profiles)})
}

// GetThreat handles GET /api/telemetry/security/threats/:ip.
func (h *Handlers) GetThreat(c *gin.Context) {
	profile, ok := h.Tracker.Profile(c.Param("ip"))
	if !ok {
		errorResponse(c, http.StatusNotFound, "no threat profile for ip")
		return
	}
	c.JSON(http.StatusOK, profile)
}

// BlockIP handles POST /api/telemetry/security/block.
func (h *Handlers) BlockIP(c *gin.Context) {
	var req datatypes.BlockIPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	profile, err := h.Tracker.Block(req.IP, req.Reason)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UnblockIP handles POST /api/telemetry/security/unblock.
func (h *Handlers) UnblockIP(c *gin.Context) {
	var req datatypes.BlockIPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	wasBlocked, err := h.Tracker.Unblock(req.IP)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"ip": req.IP, "wasBlocked": wasBlocked})
}

// =============================================================================
// Backups
// =============================================================================

// TriggerBackup handles POST /api/telemetry/backups.
func (h *Handlers) TriggerBackup(c *gin.Context) {
	var req datatypes.TriggerBackupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	run, err := h.Backups.Run(c.Request.Context(), datatypes.BackupCadence(req.Cadence), "manual")
	if err != nil {
		status := http.StatusInternalServerError
		if run.Status == "" {
			// Rejected before starting, e.g. same cadence already running.
			status = http.StatusConflict
		}
		errorResponse(c, status, err.Error())
		return
	}
	c.JSON(http.StatusCreated, run)
}

// BackupHistory handles GET /api/telemetry/backups/history.
func (h *Handlers) BackupHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs := h.Backups.History(limit)
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}
