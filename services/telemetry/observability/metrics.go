// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability exposes the telemetry service's own Prometheus
// metrics.
//
// These are metrics about the pipeline itself (entries recorded,
// alerts fired, deliveries attempted), distinct from the application
// performance metrics the pipeline stores.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LogEntriesTotal counts entries recorded into the event store.
	LogEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "brimu",
		Subsystem: "telemetry",
		Name:      "log_entries_total",
		Help:      "Log entries recorded into the event store, by level.",
	}, []string{"level"})

	// MetricSamplesTotal counts recorded performance samples.
	MetricSamplesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "brimu",
		Subsystem: "telemetry",
		Name:      "metric_samples_total",
		Help:      "Performance metric samples recorded, by metric and severity.",
	}, []string{"metric", "severity"})

	// PatternAlertsTotal counts fired pattern alerts.
	PatternAlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "brimu",
		Subsystem: "telemetry",
		Name:      "pattern_alerts_total",
		Help:      "Pattern alerts fired, by pattern id.",
	}, []string{"pattern"})

	// AnomaliesTotal counts detected anomalies.
	AnomaliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "brimu",
		Subsystem: "telemetry",
		Name:      "anomalies_total",
		Help:      "Anomalies detected, by metric and severity.",
	}, []string{"metric", "severity"})

	// NotificationDeliveriesTotal counts channel delivery attempts.
	NotificationDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "brimu",
		Subsystem: "telemetry",
		Name:      "notification_deliveries_total",
		Help:      "Notification delivery attempts, by channel and outcome.",
	}, []string{"channel", "outcome"})

	// HealthScore gauges the current weighted health score.
	HealthScore = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "brimu",
		Subsystem: "telemetry",
		Name:      "health_score",
		Help:      "Current weighted health score (0-100).",
	})

	// BackupDuration observes backup run durations.
	BackupDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "brimu",
		Subsystem: "telemetry",
		Name:      "backup_duration_seconds",
		Help:      "Backup run duration, by cadence and status.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"cadence", "status"})

	// SSESessions gauges currently open streaming sessions.
	SSESessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "brimu",
		Subsystem: "telemetry",
		Name:      "sse_sessions",
		Help:      "Currently open SSE streaming sessions.",
	})

	// HTTPRequestDuration observes handled request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "brimu",
		Subsystem: "telemetry",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency, by route and status class.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "status"})
)
