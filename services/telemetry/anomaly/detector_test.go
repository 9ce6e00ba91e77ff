// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package anomaly

import (
	"math"
	"testing"

	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
)

func sample(metric string, value float64) datatypes.PerformanceMetric {
	return datatypes.PerformanceMetric{Metric: metric, Value: value}
}

// feed observes values without expecting detections.
func feed(d *Detector, metric string, values ...float64) {
	for _, v := range values {
		d.Observe(sample(metric, v))
	}
}

func TestDetector_ZeroStdDevGuard(t *testing.T) {
	d := New(0, 0, nil, nil)
	var detected []datatypes.Anomaly
	d.SetAnomalyFunc(func(a datatypes.Anomaly) { detected = append(detected, a) })

	for i := 0; i < 10; i++ {
		d.Observe(sample("response_time", 100))
	}
	d.Observe(sample("response_time", 100))
	if len(detected) != 0 {
		t.Errorf("flat baseline produced %d anomalies, want 0", len(detected))
	}

	// Even a wildly different value is skipped on a flat baseline.
	d2 := New(0, 0, nil, nil)
	d2.SetAnomalyFunc(func(a datatypes.Anomaly) { detected = append(detected, a) })
	feed(d2, "response_time", 100, 100, 100, 100, 100, 100, 100, 100, 100, 100)
	d2.Observe(sample("response_time", 9000))
	if len(detected) != 0 {
		t.Errorf("zero-stddev guard failed, %d anomalies", len(detected))
	}
}

func TestDetector_MinSamples(t *testing.T) {
	d := New(0, 0, nil, nil)
	var count int
	d.SetAnomalyFunc(func(datatypes.Anomaly) { count++ })

	// 9 baseline points is below the minimum; no detection runs.
	feed(d, "response_time", 90, 110, 95, 105, 100, 92, 108, 97, 103)
	d.Observe(sample("response_time", 10000))
	if count != 0 {
		t.Errorf("detection ran below minimum history, %d anomalies", count)
	}
}

func TestDetector_CriticalAnomaly(t *testing.T) {
	d := New(0, 0, nil, nil)
	var detected []datatypes.Anomaly
	d.SetAnomalyFunc(func(a datatypes.Anomaly) { detected = append(detected, a) })

	// Baseline with mean 100, population stddev 10.
	feed(d, "response_time", 90, 110, 90, 110, 90, 110, 90, 110, 90, 110)
	d.Observe(sample("response_time", 135)) // z = 3.5

	if len(detected) != 1 {
		t.Fatalf("anomalies = %d, want 1", len(detected))
	}
	a := detected[0]
	if math.Abs(a.ZScore-3.5) > 1e-9 {
		t.Errorf("ZScore = %v, want 3.5", a.ZScore)
	}
	if a.Severity != datatypes.SeverityCritical {
		t.Errorf("Severity = %v, want critical", a.Severity)
	}
	if a.Impact != datatypes.ImpactMedium {
		t.Errorf("Impact = %v, want medium", a.Impact)
	}
	if a.Direction != "above" {
		t.Errorf("Direction = %v, want above", a.Direction)
	}
	if a.BaselineMean != 100 || math.Abs(a.BaselineStdDev-10) > 1e-9 {
		t.Errorf("baseline = mean %v stddev %v", a.BaselineMean, a.BaselineStdDev)
	}
	if a.Suggestion == "" {
		t.Error("Suggestion empty")
	}
}

func TestDetector_WarningAnomaly(t *testing.T) {
	d := New(0, 0, nil, nil)
	var detected []datatypes.Anomaly
	d.SetAnomalyFunc(func(a datatypes.Anomaly) { detected = append(detected, a) })

	feed(d, "memory_usage", 90, 110, 90, 110, 90, 110, 90, 110, 90, 110)
	d.Observe(sample("memory_usage", 125)) // z = 2.5

	if len(detected) != 1 {
		t.Fatalf("anomalies = %d, want 1", len(detected))
	}
	if detected[0].Severity != datatypes.SeverityWarning {
		t.Errorf("Severity = %v, want warning", detected[0].Severity)
	}
	if detected[0].Impact != datatypes.ImpactLow {
		t.Errorf("Impact = %v, want low", detected[0].Impact)
	}
}

func TestDetector_HighImpact(t *testing.T) {
	d := New(0, 0, nil, nil)
	var detected []datatypes.Anomaly
	d.SetAnomalyFunc(func(a datatypes.Anomaly) { detected = append(detected, a) })

	feed(d, "cpu_usage", 90, 110, 90, 110, 90, 110, 90, 110, 90, 110)
	d.Observe(sample("cpu_usage", 145)) // z = 4.5

	if len(detected) != 1 {
		t.Fatal("no anomaly detected")
	}
	if detected[0].Impact != datatypes.ImpactHigh {
		t.Errorf("Impact = %v, want high", detected[0].Impact)
	}
}

func TestDetector_BelowBaseline(t *testing.T) {
	d := New(0, 0, nil, nil)
	var detected []datatypes.Anomaly
	d.SetAnomalyFunc(func(a datatypes.Anomaly) { detected = append(detected, a) })

	feed(d, "response_time", 90, 110, 90, 110, 90, 110, 90, 110, 90, 110)
	d.Observe(sample("response_time", 65)) // z = 3.5 below

	if len(detected) != 1 {
		t.Fatal("no anomaly detected")
	}
	if detected[0].Direction != "below" {
		t.Errorf("Direction = %v, want below", detected[0].Direction)
	}
}

func TestDetector_EndpointCarried(t *testing.T) {
	d := New(0, 0, nil, nil)
	var detected []datatypes.Anomaly
	d.SetAnomalyFunc(func(a datatypes.Anomaly) { detected = append(detected, a) })

	// Ten ordinary response times for one endpoint, then a huge spike.
	for i := 0; i < 10; i++ {
		d.Observe(datatypes.PerformanceMetric{
			Metric: "response_time", Endpoint: "/api/orders", Method: "GET",
			Value: 95 + float64(i%2)*10,
		})
	}
	d.Observe(datatypes.PerformanceMetric{
		Metric: "response_time", Endpoint: "/api/orders", Method: "GET", Value: 500,
	})

	if len(detected) != 1 {
		t.Fatalf("anomalies = %d, want 1", len(detected))
	}
	a := detected[0]
	if a.Endpoint != "/api/orders" {
		t.Errorf("Endpoint = %q, want /api/orders", a.Endpoint)
	}
	if a.Metric != "response_time" || a.Value != 500 {
		t.Errorf("record = %s %v", a.Metric, a.Value)
	}
	if a.Severity != datatypes.SeverityCritical || a.Direction != "above" {
		t.Errorf("classification = %v/%v", a.Severity, a.Direction)
	}
	if a.Suggestion == "" {
		t.Error("Suggestion empty")
	}
}

func TestDetector_SuggestionNeverEmpty(t *testing.T) {
	metrics := []string{"response_time", "memory_usage", "cpu_usage", "error_rate", "queue_depth"}
	for _, metric := range metrics {
		for _, direction := range []string{"above", "below"} {
			if s := suggestion(metric, direction); s == "" {
				t.Errorf("suggestion(%q, %q) is empty", metric, direction)
			}
		}
	}
}

func TestDetector_SeriesIsolation(t *testing.T) {
	d := New(0, 0, nil, nil)
	var count int
	d.SetAnomalyFunc(func(datatypes.Anomaly) { count++ })

	// Two endpoints with different baselines must not mix.
	for i := 0; i < 10; i++ {
		d.Observe(datatypes.PerformanceMetric{Metric: "response_time", Endpoint: "/slow", Value: 1000 + float64(i%2)*20})
		d.Observe(datatypes.PerformanceMetric{Metric: "response_time", Endpoint: "/fast", Value: 10 + float64(i%2)})
	}
	// Normal for /slow, would be wildly anomalous for /fast.
	d.Observe(datatypes.PerformanceMetric{Metric: "response_time", Endpoint: "/slow", Value: 1010})
	if count != 0 {
		t.Errorf("cross-endpoint contamination, %d anomalies", count)
	}
}

func TestDetector_History(t *testing.T) {
	d := New(0, 2, nil, nil)
	feed(d, "response_time", 90, 110, 90, 110, 90, 110, 90, 110, 90, 110)
	d.Observe(sample("response_time", 135))
	feed(d, "memory_usage", 90, 110, 90, 110, 90, 110, 90, 110, 90, 110)
	d.Observe(sample("memory_usage", 135))
	feed(d, "cpu_usage", 90, 110, 90, 110, 90, 110, 90, 110, 90, 110)
	d.Observe(sample("cpu_usage", 135))

	// Capacity 2: oldest record evicted, newest first on read.
	hist := d.History(0)
	if len(hist) != 2 {
		t.Fatalf("history len = %d, want 2", len(hist))
	}
	if hist[0].Metric != "cpu_usage" || hist[1].Metric != "memory_usage" {
		t.Errorf("history order = %s, %s", hist[0].Metric, hist[1].Metric)
	}
	if got := d.History(1); len(got) != 1 || got[0].Metric != "cpu_usage" {
		t.Errorf("limited history = %+v", got)
	}
}

func TestMeanStdDev(t *testing.T) {
	mean, stddev := meanStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if mean != 5 {
		t.Errorf("mean = %v, want 5", mean)
	}
	if stddev != 2 {
		t.Errorf("stddev = %v, want 2", stddev)
	}
	if m, s := meanStdDev(nil); m != 0 || s != 0 {
		t.Errorf("empty series = %v, %v", m, s)
	}
}
