// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package metrics

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
)

// Percentile computes the p-th percentile of values by rank.
//
// # Description
//
// The input is sorted ascending and the value at index
// ceil(p/100*n)-1 (clamped to the slice) is returned. For
// [10,20,30,40,50]: p50 is 30, p95 and p99 are 50. Returns 0 for an
// empty series.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Aggregate computes per-metric statistics over a trailing window.
//
// Samples from all endpoints of the same metric pool together. An
// unknown window name yields an empty result.
func (r *Recorder) Aggregate(window datatypes.AggregationWindow) map[string]datatypes.MetricStats {
	out := make(map[string]datatypes.MetricStats)
	d, ok := window.Duration()
	if !ok {
		return out
	}
	cutoff := r.now().Add(-d)

	type acc struct {
		values   []float64
		sum      float64
		min, max float64
		warn     int
		crit     int
	}
	accs := make(map[string]*acc)

	r.mu.RLock()
	for _, s := range r.series {
		for i := range s {
			m := &s[i]
			if m.Timestamp.Before(cutoff) {
				continue
			}
			a := accs[m.Metric]
			if a == nil {
				a = &acc{min: m.Value, max: m.Value}
				accs[m.Metric] = a
			}
			a.values = append(a.values, m.Value)
			a.sum += m.Value
			if m.Value < a.min {
				a.min = m.Value
			}
			if m.Value > a.max {
				a.max = m.Value
			}
			switch m.Severity {
			case datatypes.SeverityWarning:
				a.warn++
			case datatypes.SeverityCritical:
				a.crit++
			}
		}
	}
	r.mu.RUnlock()

	for metric, a := range accs {
		out[metric] = datatypes.MetricStats{
			Metric:        metric,
			Count:         len(a.values),
			Min:           a.min,
			Max:           a.max,
			Avg:           a.sum / float64(len(a.values)),
			P50:           Percentile(a.values, 50),
			P95:           Percentile(a.values, 95),
			P99:           Percentile(a.values, 99),
			WarningCount:  a.warn,
			CriticalCount: a.crit,
		}
	}
	return out
}

// Analytics assembles the full performance payload for the admin API.
//
// slowestN bounds the slowest-operations table; zero means 5.
func (r *Recorder) Analytics(window datatypes.AggregationWindow, slowestN int) datatypes.PerformanceAnalytics {
	if slowestN <= 0 {
		slowestN = 5
	}

	profiles := r.Profiles()
	slowest := make([]datatypes.PerformanceProfile, len(profiles))
	copy(slowest, profiles)
	sort.Slice(slowest, func(i, j int) bool { return slowest[i].AvgMs > slowest[j].AvgMs })
	if len(slowest) > slowestN {
		slowest = slowest[:slowestN]
	}

	statusCounts, errorRate := r.requestStats(window)
	return datatypes.PerformanceAnalytics{
		Window:       window,
		Stats:        r.Aggregate(window),
		Profiles:     profiles,
		SlowestOps:   slowest,
		Thresholds:   r.Thresholds(),
		StatusCounts: statusCounts,
		ErrorRate:    errorRate,
		MemoryTrend:  r.memoryTrend(window),
		GeneratedAt:  time.Now(),
	}
}

// requestStats rebuilds the status class histogram and error rate from
// the response_time samples inside the window.
func (r *Recorder) requestStats(window datatypes.AggregationWindow) (map[string]int, float64) {
	counts := make(map[string]int)
	d, ok := window.Duration()
	if !ok {
		return counts, 0
	}
	cutoff := r.now().Add(-d)

	var total, errored int
	r.mu.RLock()
	for _, s := range r.series {
		for i := range s {
			m := &s[i]
			if m.Metric != "response_time" || m.Timestamp.Before(cutoff) {
				continue
			}
			code, ok := m.Meta["statusCode"].(int)
			if !ok {
				continue
			}
			counts[statusClass(code)]++
			total++
			if code >= 400 {
				errored++
			}
		}
	}
	r.mu.RUnlock()

	if total == 0 {
		return counts, 0
	}
	return counts, float64(errored) / float64(total)
}

// maxTrendPoints bounds the downsampled memory trend.
const maxTrendPoints = 20

// memoryTrend pools memory_usage samples in the window, ordered by
// time, downsampled by stride to at most maxTrendPoints.
func (r *Recorder) memoryTrend(window datatypes.AggregationWindow) []datatypes.TrendPoint {
	d, ok := window.Duration()
	if !ok {
		return nil
	}
	cutoff := r.now().Add(-d)

	var points []datatypes.TrendPoint
	r.mu.RLock()
	for key, s := range r.series {
		if !strings.HasPrefix(key, "memory_usage:") {
			continue
		}
		for i := range s {
			if s[i].Timestamp.Before(cutoff) {
				continue
			}
			points = append(points, datatypes.TrendPoint{
				Timestamp: s[i].Timestamp,
				Value:     s[i].Value,
			})
		}
	}
	r.mu.RUnlock()

	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })
	if len(points) <= maxTrendPoints {
		return points
	}

	stride := float64(len(points)) / float64(maxTrendPoints)
	out := make([]datatypes.TrendPoint, 0, maxTrendPoints)
	for i := 0; i < maxTrendPoints; i++ {
		out = append(out, points[int(float64(i)*stride)])
	}
	return out
}
