// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"testing"
	"time"
)

func TestThreshold_Classify(t *testing.T) {
	th := Threshold{Warning: 500, Critical: 2000}

	tests := []struct {
		name  string
		value float64
		want  Severity
	}{
		{"well below", 100, SeverityNormal},
		{"just below warning", 499.99, SeverityNormal},
		{"at warning", 500, SeverityWarning},
		{"between", 1500, SeverityWarning},
		{"at critical", 2000, SeverityCritical},
		{"above critical", 9000, SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := th.Classify(tt.value); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestHealthState_Score(t *testing.T) {
	if got := HealthHealthy.Score(); got != 100 {
		t.Errorf("healthy score = %v, want 100", got)
	}
	if got := HealthDegraded.Score(); got != 60 {
		t.Errorf("degraded score = %v, want 60", got)
	}
	if got := HealthUnhealthy.Score(); got != 0 {
		t.Errorf("unhealthy score = %v, want 0", got)
	}
}

func TestBackupCadence_RetentionCount(t *testing.T) {
	tests := []struct {
		cadence BackupCadence
		want    int
	}{
		{CadenceDaily, 7},
		{CadenceWeekly, 4},
		{CadenceMonthly, 3},
	}
	for _, tt := range tests {
		if got := tt.cadence.RetentionCount(); got != tt.want {
			t.Errorf("%s retention = %d, want %d", tt.cadence, got, tt.want)
		}
	}
}

func TestNotification_Expired(t *testing.T) {
	now := time.Now()
	n := Notification{ExpiresAt: now.Add(-time.Minute)}
	if !n.Expired(now) {
		t.Error("past expiry not reported")
	}
	n.ExpiresAt = now.Add(time.Minute)
	if n.Expired(now) {
		t.Error("future expiry reported expired")
	}
	n.ExpiresAt = time.Time{}
	if n.Expired(now) {
		t.Error("zero expiry reported expired")
	}
}

func TestAggregationWindow_Duration(t *testing.T) {
	if d, ok := WindowDay.Duration(); !ok || d != 24*time.Hour {
		t.Errorf("WindowDay.Duration() = %v, %v", d, ok)
	}
	if _, ok := AggregationWindow("2h").Duration(); ok {
		t.Error("unknown window accepted")
	}
}

func TestValidLogLevel(t *testing.T) {
	if !ValidLogLevel(LogLevelHTTP) {
		t.Error("http rejected")
	}
	if ValidLogLevel(LogLevelAll) {
		t.Error("wildcard accepted as entry level")
	}
	if ValidLogLevel(LogLevel("fatal")) {
		t.Error("unknown level accepted")
	}
}

func TestRecordLogRequest_Validate(t *testing.T) {
	ok := RecordLogRequest{Level: "error", Message: "boom"}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
	bad := RecordLogRequest{Level: "fatal", Message: "boom"}
	if err := bad.Validate(); err == nil {
		t.Error("invalid level accepted")
	}
}

func TestRegisterPatternRequest_Validate(t *testing.T) {
	ok := RegisterPatternRequest{
		ID:         "db-errors",
		Kind:       "substring",
		Expression: "connection refused",
		Threshold:  5,
	}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
	bad := ok
	bad.Kind = "glob"
	if err := bad.Validate(); err == nil {
		t.Error("invalid kind accepted")
	}
}
