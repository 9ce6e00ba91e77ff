// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Security Limits
// =============================================================================

const (
	// MaxMessageLength bounds caller-supplied log messages.
	MaxMessageLength = 8192

	// MaxTemplateLength bounds notification template bodies.
	MaxTemplateLength = 4096

	// MaxSearchLimit bounds a single search/export response.
	MaxSearchLimit = 10000

	// MaxPatternThreshold bounds pattern trigger thresholds.
	MaxPatternThreshold = 100000
)

var telemetryValidate *validator.Validate

func init() {
	telemetryValidate = validator.New()
	// The request structs declare their rules under the `binding` tag (shared
	// with gin), so the standalone engine must read that tag too.
	telemetryValidate.SetTagName("binding")

	// Gin resolves binding tags through its own engine, so the custom
	// enum validations must land there too.
	engines := []*validator.Validate{telemetryValidate}
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		engines = append(engines, v)
	}

	// Register enum validations used by the request structs below.
	must := func(tag string, fn validator.Func) {
		for _, eng := range engines {
			if err := eng.RegisterValidation(tag, fn); err != nil {
				panic(fmt.Sprintf("datatypes: registering %q validation: %v", tag, err))
			}
		}
	}

	must("loglevel", func(fl validator.FieldLevel) bool {
		v := LogLevel(fl.Field().String())
		return v == LogLevelAll || ValidLogLevel(v)
	})
	must("patternkind", func(fl validator.FieldLevel) bool {
		k := PatternKind(fl.Field().String())
		return k == PatternRegex || k == PatternSubstring
	})
	must("priority", func(fl validator.FieldLevel) bool {
		switch Priority(fl.Field().String()) {
		case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
			return true
		}
		return false
	})
	must("channeltype", func(fl validator.FieldLevel) bool {
		switch ChannelType(fl.Field().String()) {
		case ChannelEmail, ChannelWebhook, ChannelSocket, ChannelSMS, ChannelPush:
			return true
		}
		return false
	})
	must("cadence", func(fl validator.FieldLevel) bool {
		switch BackupCadence(fl.Field().String()) {
		case CadenceDaily, CadenceWeekly, CadenceMonthly:
			return true
		}
		return false
	})
}

// =============================================================================
// Request DTOs
// =============================================================================

// RecordLogRequest is the body of POST /api/telemetry/logs.
type RecordLogRequest struct {
	Level   string         `json:"level" binding:"required,loglevel"`
	Message string         `json:"message" binding:"required,max=8192"`
	Module  string         `json:"module,omitempty" binding:"max=128"`
	Context map[string]any `json:"context,omitempty"`
}

// Validate applies the struct validations beyond gin's binding step.
func (r *RecordLogRequest) Validate() error {
	return telemetryValidate.Struct(r)
}

// RegisterPatternRequest is the body of POST /api/telemetry/patterns.
type RegisterPatternRequest struct {
	ID            string `json:"id" binding:"required,max=64"`
	Kind          string `json:"kind" binding:"required,patternkind"`
	Expression    string `json:"expression" binding:"required,max=1024"`
	Level         string `json:"level,omitempty" binding:"omitempty,loglevel"`
	Threshold     int    `json:"threshold" binding:"required,min=1,max=100000"`
	WindowSeconds int    `json:"windowSeconds,omitempty" binding:"min=0,max=86400"`
	Action        string `json:"action,omitempty" binding:"omitempty,oneof=alert count ignore"`
	Severity      string `json:"severity,omitempty" binding:"omitempty,oneof=normal warning critical"`
	Description   string `json:"description,omitempty" binding:"max=512"`
}

// Validate applies the struct validations beyond gin's binding step.
func (r *RegisterPatternRequest) Validate() error {
	return telemetryValidate.Struct(r)
}

// SetThresholdRequest is the body of PUT /api/telemetry/thresholds/:metric.
type SetThresholdRequest struct {
	Warning  float64 `json:"warning" binding:"required"`
	Critical float64 `json:"critical" binding:"required,gtfield=Warning"`
}

// SendNotificationRequest is the body of POST /api/telemetry/notifications.
type SendNotificationRequest struct {
	Title      string            `json:"title" binding:"required,max=256"`
	Body       string            `json:"body,omitempty" binding:"max=4096"`
	TemplateID string            `json:"templateId,omitempty" binding:"max=64"`
	Vars       map[string]string `json:"vars,omitempty"`
	Category   string            `json:"category,omitempty" binding:"max=64"`
	Priority   string            `json:"priority,omitempty" binding:"omitempty,priority"`
	Channels   []string          `json:"channels" binding:"required,min=1,dive,channeltype"`
	Target     string            `json:"target,omitempty" binding:"max=256"`
	TTLSeconds int               `json:"ttlSeconds,omitempty" binding:"min=0"`
}

// Validate applies the struct validations beyond gin's binding step.
func (r *SendNotificationRequest) Validate() error {
	return telemetryValidate.Struct(r)
}

// BlockIPRequest is the body of POST /api/telemetry/security/block.
type BlockIPRequest struct {
	IP     string `json:"ip" binding:"required,max=64"`
	Reason string `json:"reason,omitempty" binding:"max=256"`
}

// RecordMetricRequest is the body of POST /api/telemetry/metrics.
type RecordMetricRequest struct {
	Metric   string         `json:"metric" binding:"required,max=64"`
	Value    float64        `json:"value" binding:"required"`
	Unit     string         `json:"unit,omitempty" binding:"max=16"`
	Endpoint string         `json:"endpoint,omitempty" binding:"max=256"`
	Method   string         `json:"method,omitempty" binding:"max=8"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// TriggerBackupRequest is the body of POST /api/telemetry/backups.
type TriggerBackupRequest struct {
	Cadence string `json:"cadence" binding:"required,cadence"`
}

// Validate applies the struct validations beyond gin's binding step.
func (r *TriggerBackupRequest) Validate() error {
	return telemetryValidate.Struct(r)
}
