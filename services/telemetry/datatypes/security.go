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
// Threat Tracking
// =============================================================================

// ThreatEventType classifies a recorded security observation.
type ThreatEventType string

const (
	ThreatAuthFailure     ThreatEventType = "auth_failure"
	ThreatRateLimit       ThreatEventType = "rate_limit"
	ThreatSuspiciousInput ThreatEventType = "suspicious_input"
	ThreatBlockedAccess   ThreatEventType = "blocked_access"
)

// ThreatEvent is one recorded security observation for an IP.
type ThreatEvent struct {
	// Type classifies the observation.
	Type ThreatEventType `json:"type"`

	// Timestamp is when the observation was recorded.
	Timestamp time.Time `json:"timestamp"`

	// Detail is a short description of what was observed.
	Detail string `json:"detail,omitempty"`

	// Endpoint is the request path involved, if any.
	Endpoint string `json:"endpoint,omitempty"`
}

// ThreatLevel ranks an IP's accumulated threat score.
type ThreatLevel string

const (
	ThreatLow      ThreatLevel = "low"
	ThreatMedium   ThreatLevel = "medium"
	ThreatHigh     ThreatLevel = "high"
	ThreatCritical ThreatLevel = "critical"
)

// ThreatProfile is the accumulated record for one source IP.
//
// Profiles persist to disk as JSON so blocks survive restarts. Score
// decays are not applied retroactively; the score reflects events as
// they were recorded.
type ThreatProfile struct {
	// IP is the canonical source address.
	IP string `json:"ip"`

	// Score accumulates weighted event points.
	Score int `json:"score"`

	// Level is derived from Score at update time.
	Level ThreatLevel `json:"level"`

	// Blocked marks IPs denied access.
	Blocked bool `json:"blocked"`

	// BlockedAt is when the block was applied, if any.
	BlockedAt time.Time `json:"blockedAt,omitempty"`

	// BlockReason describes why the block was applied.
	BlockReason string `json:"blockReason,omitempty"`

	// Events is the recent observation history, newest last, capped.
	Events []ThreatEvent `json:"events,omitempty"`

	// FirstSeen is when the IP was first observed.
	FirstSeen time.Time `json:"firstSeen"`

	// LastSeen is when the IP was most recently observed.
	LastSeen time.Time `json:"lastSeen"`
}
