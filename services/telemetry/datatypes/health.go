// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"time"
)

// =============================================================================
// Health States
// =============================================================================

// HealthState is the outcome of a single health check run.
type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
)

// Score maps a state to its contribution to the weighted system score.
func (s HealthState) Score() float64 {
	switch s {
	case HealthHealthy:
		return 100
	case HealthDegraded:
		return 60
	default:
		return 0
	}
}

// =============================================================================
// Check Results
// =============================================================================

// HealthCheckResult is the recorded outcome of one check execution.
type HealthCheckResult struct {
	// Name identifies the registered check.
	Name string `json:"name"`

	// State is the check outcome.
	State HealthState `json:"state"`

	// Message is the human-readable status detail.
	Message string `json:"message,omitempty"`

	// Critical marks checks whose failure makes the whole system
	// unhealthy regardless of the weighted score.
	Critical bool `json:"critical"`

	// DurationMs is how long the check took to run.
	DurationMs float64 `json:"durationMs"`

	// CheckedAt is when the check ran.
	CheckedAt time.Time `json:"checkedAt"`

	// Details holds check-specific measurements (e.g. heap bytes,
	// disk free percentage).
	Details map[string]any `json:"details,omitempty"`
}

// HealthReport is the aggregate health snapshot of the system.
type HealthReport struct {
	// Status is the overall state derived from the weighted score and
	// the critical-check override.
	Status HealthState `json:"status"`

	// Score is the weighted average in 0..100. Critical checks carry
	// double weight.
	Score float64 `json:"score"`

	// Checks lists the most recent result per registered check.
	Checks []HealthCheckResult `json:"checks"`

	// UptimeSeconds is process uptime at report time.
	UptimeSeconds float64 `json:"uptimeSeconds"`

	// GeneratedAt is when the report was assembled.
	GeneratedAt time.Time `json:"generatedAt"`
}
