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
// Severity
// =============================================================================

// Severity classifies a metric sample against its threshold.
type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// =============================================================================
// Metric Samples
// =============================================================================

// PerformanceMetric is a single recorded measurement.
type PerformanceMetric struct {
	// ID is a unique identifier (UUID v4).
	ID string `json:"id"`

	// Timestamp is when the sample was recorded.
	Timestamp time.Time `json:"timestamp"`

	// Metric is the measurement name (e.g. "response_time").
	Metric string `json:"metric"`

	// Value is the measured quantity.
	Value float64 `json:"value"`

	// Unit is the measurement unit ("ms", "bytes", "percent").
	Unit string `json:"unit,omitempty"`

	// Endpoint scopes the sample to a request path; empty means global.
	Endpoint string `json:"endpoint,omitempty"`

	// Method is the HTTP method for endpoint-scoped samples.
	Method string `json:"method,omitempty"`

	// Severity is the threshold classification assigned at record time.
	Severity Severity `json:"severity"`

	// Meta holds caller-supplied extra dimensions.
	Meta map[string]any `json:"meta,omitempty"`
}

// Threshold defines the warning and critical bounds for a metric.
//
// A sample classifies as critical when value >= Critical, warning when
// value >= Warning, otherwise normal. Bounds are inclusive.
type Threshold struct {
	Warning  float64 `json:"warning"`
	Critical float64 `json:"critical"`
}

// Classify returns the severity of a value against the threshold.
func (t Threshold) Classify(value float64) Severity {
	switch {
	case value >= t.Critical:
		return SeverityCritical
	case value >= t.Warning:
		return SeverityWarning
	default:
		return SeverityNormal
	}
}

// =============================================================================
// Profiles & Aggregation
// =============================================================================

// PerformanceProfile is the running summary for one endpoint+method pair.
type PerformanceProfile struct {
	// Endpoint is the request path.
	Endpoint string `json:"endpoint"`

	// Method is the HTTP method.
	Method string `json:"method"`

	// Count is the number of requests observed.
	Count int `json:"count"`

	// TotalMs accumulates response time for the average.
	TotalMs float64 `json:"totalMs"`

	// AvgMs is TotalMs / Count.
	AvgMs float64 `json:"avgMs"`

	// MinMs is the fastest observed response.
	MinMs float64 `json:"minMs"`

	// MaxMs is the slowest observed response.
	MaxMs float64 `json:"maxMs"`

	// ErrorCount is the number of 4xx/5xx responses.
	ErrorCount int `json:"errorCount"`

	// ErrorRate is ErrorCount / Count.
	ErrorRate float64 `json:"errorRate"`

	// LastSeen is the timestamp of the most recent request.
	LastSeen time.Time `json:"lastSeen"`
}

// MetricStats is the aggregation of one metric over a window.
type MetricStats struct {
	Metric string  `json:"metric"`
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Avg    float64 `json:"avg"`
	P50    float64 `json:"p50"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`

	// WarningCount is samples classified warning in the window.
	WarningCount int `json:"warningCount"`

	// CriticalCount is samples classified critical in the window.
	CriticalCount int `json:"criticalCount"`
}

// AggregationWindow names a trailing aggregation period.
type AggregationWindow string

const (
	WindowHour AggregationWindow = "1h"
	WindowDay  AggregationWindow = "24h"
	WindowWeek AggregationWindow = "7d"
)

// Duration returns the trailing period the window covers.
func (w AggregationWindow) Duration() (time.Duration, bool) {
	switch w {
	case WindowHour:
		return time.Hour, true
	case WindowDay:
		return 24 * time.Hour, true
	case WindowWeek:
		return 7 * 24 * time.Hour, true
	}
	return 0, false
}

// TrendPoint is one sample of a downsampled time series.
type TrendPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// PerformanceAnalytics is the full analytics payload for the metrics API.
type PerformanceAnalytics struct {
	Window      AggregationWindow       `json:"window"`
	Stats       map[string]MetricStats  `json:"stats"`
	Profiles    []PerformanceProfile    `json:"profiles"`
	SlowestOps  []PerformanceProfile    `json:"slowestOps"`
	Anomalies   []Anomaly               `json:"anomalies,omitempty"`
	Thresholds  map[string]Threshold    `json:"thresholds"`

	// StatusCounts is the response histogram by status class
	// ("2xx".."5xx") over the window.
	StatusCounts map[string]int `json:"statusCounts"`

	// ErrorRate is the share of windowed requests with status >= 400.
	ErrorRate float64 `json:"errorRate"`

	// MemoryTrend is the windowed memory_usage series downsampled to at
	// most 20 points.
	MemoryTrend []TrendPoint `json:"memoryTrend,omitempty"`

	GeneratedAt time.Time `json:"generatedAt"`
}

// MetricFilter selects samples from the recorder.
type MetricFilter struct {
	Metric   string    `json:"metric,omitempty"`
	Endpoint string    `json:"endpoint,omitempty"`
	Severity Severity  `json:"severity,omitempty"`
	From     time.Time `json:"from,omitempty"`
	To       time.Time `json:"to,omitempty"`
	Limit    int       `json:"limit,omitempty"`
}

// =============================================================================
// Anomalies
// =============================================================================

// Impact ranks how far an anomalous value sits from its baseline.
type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

// Anomaly records a statistically unusual metric sample.
type Anomaly struct {
	// ID is a unique identifier (UUID v4).
	ID string `json:"id"`

	// Timestamp is when the anomaly was detected.
	Timestamp time.Time `json:"timestamp"`

	// Metric is the affected measurement name.
	Metric string `json:"metric"`

	// Endpoint scopes the anomaly to the sample's request path; empty
	// means global.
	Endpoint string `json:"endpoint,omitempty"`

	// Value is the anomalous sample value.
	Value float64 `json:"value"`

	// BaselineMean is the series mean at detection time.
	BaselineMean float64 `json:"baselineMean"`

	// BaselineStdDev is the series standard deviation at detection time.
	BaselineStdDev float64 `json:"baselineStdDev"`

	// ZScore is |value - mean| / stddev.
	ZScore float64 `json:"zScore"`

	// Severity is warning for z > 2, critical for z > 3.
	Severity Severity `json:"severity"`

	// Impact estimates operational effect from the z-score magnitude.
	Impact Impact `json:"impact"`

	// Direction is "above" or "below" the baseline.
	Direction string `json:"direction"`

	// Suggestion is a human-readable remediation hint.
	Suggestion string `json:"suggestion,omitempty"`
}
