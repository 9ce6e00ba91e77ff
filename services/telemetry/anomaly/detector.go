// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package anomaly implements z-score anomaly detection over metric
// series.
//
// The detector keeps a bounded per-metric-per-endpoint history and
// compares each new sample against the mean and standard deviation of
// that history. The baseline is everything still in the window: old
// samples influence the expected value until evicted by the series
// cap. That staleness is intended; the baseline is not recency
// weighted.
package anomaly

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amadalihammoud/brimu-telemetry/pkg/logging"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/bus"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/observability"
)

const (
	// MinSamples is the history size required before detection runs.
	MinSamples = 10

	// DefaultSeriesCap bounds each baseline history.
	DefaultSeriesCap = 1000

	// DefaultHistoryCap bounds the retained anomaly records.
	DefaultHistoryCap = 500

	warningZ  = 2.0
	criticalZ = 3.0
	highZ     = 4.0
)

// AnomalyFunc receives detected anomalies. The notification dispatcher
// registers one for critical anomalies.
type AnomalyFunc func(a datatypes.Anomaly)

// =============================================================================
// Detector
// =============================================================================

// Detector flags metric samples that deviate from their baseline.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Detector struct {
	mu        sync.Mutex
	series    map[string][]float64
	history   []datatypes.Anomaly
	seriesCap int
	histCap   int

	onAnomaly AnomalyFunc
	events    *bus.Bus
	log       *logging.Logger
}

// New creates a detector. Bus and logger may be nil.
func New(seriesCap, historyCap int, events *bus.Bus, log *logging.Logger) *Detector {
	if seriesCap <= 0 {
		seriesCap = DefaultSeriesCap
	}
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	return &Detector{
		series:    make(map[string][]float64),
		seriesCap: seriesCap,
		histCap:   historyCap,
		events:    events,
		log:       log,
	}
}

// SetAnomalyFunc wires the anomaly consumer. Call during startup.
func (d *Detector) SetAnomalyFunc(fn AnomalyFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onAnomaly = fn
}

// Observe evaluates one sample against its baseline and then folds it
// into the baseline. Intended as a metrics recorder SampleHook.
func (d *Detector) Observe(m datatypes.PerformanceMetric) {
	key := m.Metric + ":" + m.Endpoint

	d.mu.Lock()
	baseline := d.series[key]
	var detected *datatypes.Anomaly
	if len(baseline) >= MinSamples {
		if a := evaluate(m, baseline); a != nil {
			detected = a
			d.history = append(d.history, *a)
			if len(d.history) > d.histCap {
				d.history = d.history[len(d.history)-d.histCap:]
			}
		}
	}

	baseline = append(baseline, m.Value)
	if len(baseline) > d.seriesCap {
		baseline = baseline[len(baseline)-d.seriesCap:]
	}
	d.series[key] = baseline
	fn := d.onAnomaly
	d.mu.Unlock()

	if detected == nil {
		return
	}
	observability.AnomaliesTotal.
		WithLabelValues(detected.Metric, string(detected.Severity)).Inc()
	if d.log != nil {
		d.log.Warn("anomaly detected",
			"metric", detected.Metric, "value", detected.Value,
			"zscore", detected.ZScore, "severity", string(detected.Severity))
	}
	if d.events != nil {
		d.events.Publish(datatypes.TopicAnomalies, *detected)
	}
	if fn != nil {
		fn(*detected)
	}
}

// History returns retained anomalies, newest first, up to limit
// (zero means all).
func (d *Detector) History(limit int) []datatypes.Anomaly {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]datatypes.Anomaly, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, d.history[i])
	}
	return out
}

// =============================================================================
// Statistics
// =============================================================================

// evaluate computes the z-score of a sample against its baseline and
// returns an anomaly record if it crosses the warning line.
func evaluate(m datatypes.PerformanceMetric, baseline []float64) *datatypes.Anomaly {
	mean, stddev := meanStdDev(baseline)
	if stddev == 0 {
		// A flat baseline makes every deviation infinite; skip rather
		// than alert on the first jitter.
		return nil
	}

	z := math.Abs(m.Value-mean) / stddev
	if z <= warningZ {
		return nil
	}

	severity := datatypes.SeverityWarning
	if z > criticalZ {
		severity = datatypes.SeverityCritical
	}

	impact := datatypes.ImpactLow
	switch {
	case z > highZ:
		impact = datatypes.ImpactHigh
	case z > criticalZ:
		impact = datatypes.ImpactMedium
	}

	direction := "above"
	if m.Value < mean {
		direction = "below"
	}

	return &datatypes.Anomaly{
		ID:             uuid.NewString(),
		Timestamp:      time.Now(),
		Metric:         m.Metric,
		Endpoint:       m.Endpoint,
		Value:          m.Value,
		BaselineMean:   mean,
		BaselineStdDev: stddev,
		ZScore:         z,
		Severity:       severity,
		Impact:         impact,
		Direction:      direction,
		Suggestion:     suggestion(m.Metric, direction),
	}
}

// meanStdDev computes the mean and population standard deviation.
func meanStdDev(values []float64) (mean, stddev float64) {
	n := float64(len(values))
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / n

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / n)
}

// suggestion maps a metric and deviation direction to a remediation
// hint for the alert body.
func suggestion(metric, direction string) string {
	switch metric {
	case "response_time":
		if direction == "above" {
			return "Response times are elevated. Check database query plans, upstream dependencies, and recent deployments."
		}
		return "Response times dropped sharply. Verify handlers are not short-circuiting or returning cached errors."
	case "memory_usage":
		if direction == "above" {
			return "Memory usage is climbing. Look for leaks in long-lived caches and inspect heap growth between GC cycles."
		}
		return "Memory usage fell unexpectedly. Confirm workers and caches are still running."
	case "cpu_usage":
		if direction == "above" {
			return "CPU usage spiked. Profile hot paths and check for runaway loops or expensive background jobs."
		}
		return "CPU usage fell unexpectedly. Confirm traffic is still reaching the service."
	case "error_rate":
		if direction == "above" {
			return "Error rate is elevated. Review recent error fingerprints and roll back suspect deployments."
		}
		return "Error rate fell below its baseline. Confirm errors are still being reported and not silently dropped."
	}
	return fmt.Sprintf("Metric %q deviates %s its baseline. Review recent changes affecting it.", metric, direction)
}
