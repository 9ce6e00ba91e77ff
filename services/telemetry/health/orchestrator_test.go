// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package health

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
)

func staticCheck(state datatypes.HealthState) CheckFunc {
	return func(ctx context.Context) Outcome {
		return Outcome{State: state, Message: string(state)}
	}
}

func TestOrchestrator_RunAllAndReport(t *testing.T) {
	o := New(nil, nil)
	o.Register("a", false, time.Minute, time.Second, staticCheck(datatypes.HealthHealthy))
	o.Register("b", false, time.Minute, time.Second, staticCheck(datatypes.HealthHealthy))

	report := o.RunAll(context.Background())
	if report.Status != datatypes.HealthHealthy {
		t.Errorf("Status = %v, want healthy", report.Status)
	}
	if report.Score != 100 {
		t.Errorf("Score = %v, want 100", report.Score)
	}
	if len(report.Checks) != 2 {
		t.Errorf("Checks len = %d, want 2", len(report.Checks))
	}
	// Results are sorted by name.
	if report.Checks[0].Name != "a" || report.Checks[1].Name != "b" {
		t.Errorf("check order = %s, %s", report.Checks[0].Name, report.Checks[1].Name)
	}
}

func TestOrchestrator_CriticalOverride(t *testing.T) {
	o := New(nil, nil)
	// Many healthy checks keep the numeric score high; one failing
	// critical check must still force unhealthy.
	for _, name := range []string{"h1", "h2", "h3", "h4", "h5", "h6"} {
		o.Register(name, false, time.Minute, time.Second, staticCheck(datatypes.HealthHealthy))
	}
	o.Register("db", true, time.Minute, time.Second, staticCheck(datatypes.HealthUnhealthy))

	report := o.RunAll(context.Background())
	if report.Status != datatypes.HealthUnhealthy {
		t.Errorf("Status = %v, want unhealthy (critical override)", report.Status)
	}
	// Score: 6*100 + 2*0 over weight 8 = 75, above the unhealthy line.
	if report.Score != 75 {
		t.Errorf("Score = %v, want 75", report.Score)
	}
}

func TestOrchestrator_ScoreLadder(t *testing.T) {
	tests := []struct {
		name     string
		states   []datatypes.HealthState
		want     datatypes.HealthState
	}{
		{"all healthy", []datatypes.HealthState{datatypes.HealthHealthy, datatypes.HealthHealthy}, datatypes.HealthHealthy},
		{"one degraded", []datatypes.HealthState{datatypes.HealthHealthy, datatypes.HealthDegraded}, datatypes.HealthDegraded},
		{"half unhealthy", []datatypes.HealthState{datatypes.HealthHealthy, datatypes.HealthUnhealthy}, datatypes.HealthUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New(nil, nil)
			for i, s := range tt.states {
				o.Register(string(rune('a'+i)), false, time.Minute, time.Second, staticCheck(s))
			}
			report := o.RunAll(context.Background())
			if report.Status != tt.want {
				t.Errorf("Status = %v (score %v), want %v", report.Status, report.Score, tt.want)
			}
		})
	}
}

func TestOrchestrator_Timeout(t *testing.T) {
	o := New(nil, nil)
	o.Register("stuck", false, time.Minute, 50*time.Millisecond, func(ctx context.Context) Outcome {
		select {
		case <-time.After(5 * time.Second):
		case <-ctx.Done():
		}
		return Outcome{State: datatypes.HealthHealthy}
	})

	report := o.RunAll(context.Background())
	if len(report.Checks) != 1 {
		t.Fatalf("Checks len = %d, want 1", len(report.Checks))
	}
	if report.Checks[0].State != datatypes.HealthUnhealthy {
		t.Errorf("timed-out check state = %v, want unhealthy", report.Checks[0].State)
	}
	if report.Checks[0].Message != ErrCheckTimeout.Error() {
		t.Errorf("Message = %q", report.Checks[0].Message)
	}
}

func TestOrchestrator_PanicRecovered(t *testing.T) {
	o := New(nil, nil)
	o.Register("panics", false, time.Minute, time.Second, func(ctx context.Context) Outcome {
		panic("boom")
	})

	report := o.RunAll(context.Background())
	if report.Checks[0].State != datatypes.HealthUnhealthy {
		t.Errorf("panicking check state = %v, want unhealthy", report.Checks[0].State)
	}
}

func TestOrchestrator_CriticalFailureCallback(t *testing.T) {
	o := New(nil, nil)
	var fired []string
	o.SetCriticalFailureFunc(func(r datatypes.HealthCheckResult) {
		fired = append(fired, r.Name)
	})

	o.Register("db", true, time.Minute, time.Second, staticCheck(datatypes.HealthUnhealthy))
	o.Register("cache", false, time.Minute, time.Second, staticCheck(datatypes.HealthUnhealthy))

	o.RunAll(context.Background())
	if len(fired) != 1 || fired[0] != "db" {
		t.Errorf("critical failure callback fired for %v, want [db]", fired)
	}
}

func TestOrchestrator_EmptyReport(t *testing.T) {
	o := New(nil, nil)
	report := o.Report()
	if report.Status != datatypes.HealthHealthy || report.Score != 100 {
		t.Errorf("empty report = %v/%v, want healthy/100", report.Status, report.Score)
	}
}

func TestOrchestrator_Scheduling(t *testing.T) {
	o := New(nil, nil)
	ran := make(chan struct{}, 10)
	o.Register("fast", false, 20*time.Millisecond, time.Second, func(ctx context.Context) Outcome {
		select {
		case ran <- struct{}{}:
		default:
		}
		return Outcome{State: datatypes.HealthHealthy}
	})

	o.Start()
	defer o.Stop()

	// Runs immediately and again on the interval.
	for i := 0; i < 2; i++ {
		select {
		case <-ran:
		case <-time.After(2 * time.Second):
			t.Fatalf("check run %d never happened", i+1)
		}
	}
}

func TestOrchestrator_Unregister(t *testing.T) {
	o := New(nil, nil)
	o.Register("x", false, time.Minute, time.Second, staticCheck(datatypes.HealthHealthy))
	if !o.Unregister("x") {
		t.Error("Unregister returned false for known check")
	}
	if o.Unregister("x") {
		t.Error("Unregister returned true for unknown check")
	}
}

func TestBuiltinChecks(t *testing.T) {
	// The pure-runtime builtins must succeed on any host.
	ctx := context.Background()

	if out := MemoryCheck()(ctx); out.State == "" {
		t.Error("MemoryCheck returned empty state")
	}
	if out := GoroutineCheck()(ctx); out.State != datatypes.HealthHealthy {
		t.Errorf("GoroutineCheck = %v, want healthy", out.State)
	}
	if out := CPULoadCheck()(ctx); out.State == "" {
		t.Error("CPULoadCheck returned empty state")
	}
	if out := ProcessCheck()(ctx); out.State != datatypes.HealthHealthy {
		t.Errorf("ProcessCheck = %v, want healthy", out.State)
	}
	if out := DiskSpaceCheck(t.TempDir())(ctx); out.State == "" {
		t.Error("DiskSpaceCheck returned empty state")
	}
	if out := EventStoreCheck(nil)(ctx); out.State != datatypes.HealthUnhealthy {
		t.Error("nil store not reported unhealthy")
	}
	if out := EventBusCheck(nil)(ctx); out.State != datatypes.HealthUnhealthy {
		t.Error("nil bus not reported unhealthy")
	}
}

func TestFilesystemCheck(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	out := FilesystemCheck(dir)(ctx)
	if out.State != datatypes.HealthHealthy {
		t.Fatalf("round-trip in temp dir = %v (%s), want healthy", out.State, out.Message)
	}
	if _, err := os.Stat(dir + "/.health-probe"); !os.IsNotExist(err) {
		t.Error("probe file left behind")
	}

	if out := FilesystemCheck(dir + "/missing")(ctx); out.State != datatypes.HealthUnhealthy {
		t.Errorf("round-trip in missing dir = %v, want unhealthy", out.State)
	}
}
