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
// Stream Events
// =============================================================================

// StreamTopic names an internal event bus topic.
type StreamTopic string

const (
	TopicLogs           StreamTopic = "logs"
	TopicMetrics        StreamTopic = "metrics"
	TopicAnomalies      StreamTopic = "anomalies"
	TopicAlerts         StreamTopic = "alerts"
	TopicBackupProgress StreamTopic = "backup_progress"
	TopicHealth         StreamTopic = "health"
)

// StreamEvent is the envelope published on the event bus and relayed
// to SSE and socket subscribers.
type StreamEvent struct {
	// Topic is the bus topic the event was published on.
	Topic StreamTopic `json:"topic"`

	// Timestamp is publish time.
	Timestamp time.Time `json:"timestamp"`

	// Payload is the topic-specific body (LogEntry, PerformanceMetric,
	// Anomaly, PatternAlert, BackupProgress, HealthReport).
	Payload any `json:"payload"`
}
