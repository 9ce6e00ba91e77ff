// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package metrics implements the performance metrics recorder and
// aggregator.
//
// Samples land in bounded per-key series ("metric:endpoint", or
// "metric:global" when unscoped), each classified against a static
// threshold at record time. Aggregation computes percentiles and rates
// over trailing windows; per-endpoint profiles roll continuously and
// never reset.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amadalihammoud/brimu-telemetry/pkg/logging"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/bus"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/observability"
)

// DefaultSeriesCap bounds each per-key series; the oldest sample is
// evicted past the cap.
const DefaultSeriesCap = 1000

// globalScope is the series key suffix for unscoped samples.
const globalScope = "global"

// SampleHook observes every recorded sample synchronously. The anomaly
// detector registers one.
type SampleHook func(m datatypes.PerformanceMetric)

// Sink receives samples for external persistence. Implementations must
// not block the recording path.
type Sink interface {
	Write(m datatypes.PerformanceMetric)
	Close() error
}

// defaultThresholds are the stock classification bounds, overridable
// per metric at runtime.
func defaultThresholds() map[string]datatypes.Threshold {
	return map[string]datatypes.Threshold{
		"response_time": {Warning: 500, Critical: 2000},
		"memory_usage":  {Warning: 75, Critical: 90},
		"cpu_usage":     {Warning: 70, Critical: 90},
		"error_rate":    {Warning: 0.05, Critical: 0.15},
	}
}

// =============================================================================
// Recorder
// =============================================================================

// Recorder is the metrics store.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Recorder struct {
	mu         sync.RWMutex
	series     map[string][]datatypes.PerformanceMetric
	profiles   map[string]*datatypes.PerformanceProfile
	thresholds map[string]datatypes.Threshold
	seriesCap  int
	hooks      []SampleHook

	sink   Sink
	events *bus.Bus
	log    *logging.Logger

	now func() time.Time
}

// New creates a recorder with default thresholds. Bus, logger, and sink
// may be nil.
func New(seriesCap int, events *bus.Bus, log *logging.Logger) *Recorder {
	if seriesCap <= 0 {
		seriesCap = DefaultSeriesCap
	}
	return &Recorder{
		series:     make(map[string][]datatypes.PerformanceMetric),
		profiles:   make(map[string]*datatypes.PerformanceProfile),
		thresholds: defaultThresholds(),
		seriesCap:  seriesCap,
		events:     events,
		log:        log,
		now:        time.Now,
	}
}

// statusClass buckets a status code into "2xx".."5xx" ("other" for
// anything outside 100-599).
func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	case code >= 100 && code < 200:
		return "1xx"
	default:
		return "other"
	}
}

// SetSink attaches an external persistence sink. Call during startup.
func (r *Recorder) SetSink(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = s
}

// AddHook registers a synchronous sample observer. Wire during startup.
func (r *Recorder) AddHook(h SampleHook) {
	r.hooks = append(r.hooks, h)
}

// Record stores one sample and returns it with severity assigned.
//
// Recording never fails: unknown metrics classify as normal, overflow
// evicts the oldest sample of the same key.
func (r *Recorder) Record(metric string, value float64, unit, endpoint, method string, meta map[string]any) datatypes.PerformanceMetric {
	r.mu.Lock()
	m := datatypes.PerformanceMetric{
		ID:        uuid.NewString(),
		Timestamp: r.now(),
		Metric:    metric,
		Value:     value,
		Unit:      unit,
		Endpoint:  endpoint,
		Method:    method,
		Severity:  datatypes.SeverityNormal,
		Meta:      meta,
	}
	if th, ok := r.thresholds[metric]; ok {
		m.Severity = th.Classify(value)
	}

	key := seriesKey(metric, endpoint)
	s := append(r.series[key], m)
	if len(s) > r.seriesCap {
		s = s[len(s)-r.seriesCap:]
	}
	r.series[key] = s
	sink := r.sink
	r.mu.Unlock()

	observability.MetricSamplesTotal.WithLabelValues(metric, string(m.Severity)).Inc()

	for _, h := range r.hooks {
		h(m)
	}
	if sink != nil {
		sink.Write(m)
	}
	if r.events != nil {
		r.events.Publish(datatypes.TopicMetrics, m)
	}
	if m.Severity == datatypes.SeverityCritical && r.log != nil {
		r.log.Warn("metric sample classified critical",
			"metric", metric, "value", value, "endpoint", endpoint)
	}
	return m
}

// RecordRequest updates the endpoint profile and records the
// response_time sample for one handled request.
func (r *Recorder) RecordRequest(endpoint, method string, durationMs float64, statusCode int) {
	r.mu.Lock()
	key := endpoint + " " + method
	p, ok := r.profiles[key]
	if !ok {
		p = &datatypes.PerformanceProfile{Endpoint: endpoint, Method: method, MinMs: durationMs}
		r.profiles[key] = p
	}
	p.Count++
	p.TotalMs += durationMs
	p.AvgMs = p.TotalMs / float64(p.Count)
	if durationMs < p.MinMs {
		p.MinMs = durationMs
	}
	if durationMs > p.MaxMs {
		p.MaxMs = durationMs
	}
	if statusCode >= 400 {
		p.ErrorCount++
	}
	p.ErrorRate = float64(p.ErrorCount) / float64(p.Count)
	p.LastSeen = r.now()
	r.mu.Unlock()

	// The status code rides along so windowed aggregation can rebuild
	// the response histogram from the samples alone.
	r.Record("response_time", durationMs, "ms", endpoint, method, map[string]any{"statusCode": statusCode})
}

// =============================================================================
// Thresholds
// =============================================================================

// SetThreshold replaces the classification bounds for a metric.
func (r *Recorder) SetThreshold(metric string, th datatypes.Threshold) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.thresholds[metric] = th
}

// Threshold returns the bounds for a metric, if configured.
func (r *Recorder) Threshold(metric string) (datatypes.Threshold, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	th, ok := r.thresholds[metric]
	return th, ok
}

// Thresholds returns a copy of all configured bounds.
func (r *Recorder) Thresholds() map[string]datatypes.Threshold {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]datatypes.Threshold, len(r.thresholds))
	for k, v := range r.thresholds {
		out[k] = v
	}
	return out
}

// =============================================================================
// Queries
// =============================================================================

// seriesKey builds the per-key series identifier.
func seriesKey(metric, endpoint string) string {
	if endpoint == "" {
		endpoint = globalScope
	}
	return metric + ":" + endpoint
}

// Series returns a copy of one series, oldest first.
func (r *Recorder) Series(metric, endpoint string) []datatypes.PerformanceMetric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.series[seriesKey(metric, endpoint)]
	out := make([]datatypes.PerformanceMetric, len(s))
	copy(out, s)
	return out
}

// Query returns samples matching the filter, newest first.
func (r *Recorder) Query(f datatypes.MetricFilter) []datatypes.PerformanceMetric {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	r.mu.RLock()
	var all []datatypes.PerformanceMetric
	for _, s := range r.series {
		for i := range s {
			m := &s[i]
			if f.Metric != "" && m.Metric != f.Metric {
				continue
			}
			if f.Endpoint != "" && m.Endpoint != f.Endpoint {
				continue
			}
			if f.Severity != "" && m.Severity != f.Severity {
				continue
			}
			if !f.From.IsZero() && m.Timestamp.Before(f.From) {
				continue
			}
			if !f.To.IsZero() && m.Timestamp.After(f.To) {
				continue
			}
			all = append(all, *m)
		}
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

// Profiles returns a copy of every endpoint profile, busiest first.
func (r *Recorder) Profiles() []datatypes.PerformanceProfile {
	r.mu.RLock()
	out := make([]datatypes.PerformanceProfile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, *p)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// Close releases the sink, if any.
func (r *Recorder) Close() error {
	r.mu.Lock()
	sink := r.sink
	r.sink = nil
	r.mu.Unlock()
	if sink != nil {
		return sink.Close()
	}
	return nil
}
