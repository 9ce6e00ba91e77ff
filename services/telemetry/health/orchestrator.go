// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package health implements the health check orchestrator.
//
// Named checks register with an interval, timeout, and criticality.
// Each runs on its own schedule; results aggregate into a weighted
// 0-100 score. A failing critical check makes the whole system
// unhealthy regardless of the score.
package health

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amadalihammoud/brimu-telemetry/pkg/logging"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/bus"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/observability"
)

const (
	// DefaultInterval applies when a registration passes zero.
	DefaultInterval = 30 * time.Second

	// DefaultTimeout applies when a registration passes zero.
	DefaultTimeout = 5 * time.Second

	// criticalWeight doubles a critical check's share of the score.
	criticalWeight = 2.0

	// Score boundaries for the overall status ladder.
	unhealthyBelow = 70.0
	degradedBelow  = 85.0
)

// ErrCheckTimeout marks a probe that outlived its timeout budget. The
// orchestrator records such checks as unhealthy with this message; the
// wording is part of the admin API surface.
var ErrCheckTimeout = errors.New("Check execution failed")

// Outcome is what a check function reports.
type Outcome struct {
	State   datatypes.HealthState
	Message string
	Details map[string]any
}

// CheckFunc is one health probe. It must respect ctx; a probe that
// outlives its timeout is recorded as unhealthy.
type CheckFunc func(ctx context.Context) Outcome

// CriticalFailureFunc receives results of failing critical checks.
type CriticalFailureFunc func(result datatypes.HealthCheckResult)

// registration is one named check plus its latest result.
type registration struct {
	name     string
	fn       CheckFunc
	interval time.Duration
	timeout  time.Duration
	critical bool

	last    datatypes.HealthCheckResult
	hasLast bool
}

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator schedules registered checks and aggregates their
// results.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Register and Start are
// meant for startup; registering after Start does not schedule the new
// check until a restart.
type Orchestrator struct {
	mu     sync.Mutex
	checks map[string]*registration

	onCriticalFailure CriticalFailureFunc

	startedAt time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	running   bool

	events *bus.Bus
	log    *logging.Logger
}

// New creates an orchestrator. Bus and logger may be nil.
func New(events *bus.Bus, log *logging.Logger) *Orchestrator {
	return &Orchestrator{
		checks:    make(map[string]*registration),
		startedAt: time.Now(),
		events:    events,
		log:       log,
	}
}

// SetCriticalFailureFunc wires the critical-failure consumer.
func (o *Orchestrator) SetCriticalFailureFunc(fn CriticalFailureFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onCriticalFailure = fn
}

// Register adds a named check. Zero interval or timeout take defaults.
// Re-registering a name replaces the previous check.
func (o *Orchestrator) Register(name string, critical bool, interval, timeout time.Duration, fn CheckFunc) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.checks[name] = &registration{
		name: name, fn: fn,
		interval: interval, timeout: timeout, critical: critical,
	}
}

// Unregister removes a check. Returns false for an unknown name.
func (o *Orchestrator) Unregister(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.checks[name]; !ok {
		return false
	}
	delete(o.checks, name)
	return true
}

// Start launches one scheduling goroutine per registered check. Each
// check runs immediately, then on its own interval.
func (o *Orchestrator) Start() {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return
	}
	o.running = true
	o.stopChan = make(chan struct{})
	regs := make([]*registration, 0, len(o.checks))
	for _, reg := range o.checks {
		regs = append(regs, reg)
	}
	o.mu.Unlock()

	for _, reg := range regs {
		o.wg.Add(1)
		go o.schedule(reg)
	}
	if o.log != nil {
		o.log.Info("health orchestrator started", "checks", len(regs))
	}
}

// Stop halts scheduling and waits for in-flight checks to record.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	close(o.stopChan)
	o.mu.Unlock()

	o.wg.Wait()
}

func (o *Orchestrator) schedule(reg *registration) {
	defer o.wg.Done()

	o.runCheck(reg)
	ticker := time.NewTicker(reg.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			o.runCheck(reg)
		case <-o.stopChan:
			return
		}
	}
}

// =============================================================================
// Execution
// =============================================================================

// runCheck executes one check with its timeout and records the result.
func (o *Orchestrator) runCheck(reg *registration) {
	ctx, cancel := context.WithTimeout(context.Background(), reg.timeout)
	defer cancel()

	start := time.Now()
	outcome := execute(ctx, reg)
	elapsed := time.Since(start)

	result := datatypes.HealthCheckResult{
		Name:       reg.name,
		State:      outcome.State,
		Message:    outcome.Message,
		Critical:   reg.critical,
		DurationMs: float64(elapsed) / float64(time.Millisecond),
		CheckedAt:  time.Now(),
		Details:    outcome.Details,
	}

	o.mu.Lock()
	reg.last = result
	reg.hasLast = true
	fn := o.onCriticalFailure
	o.mu.Unlock()

	if result.State == datatypes.HealthUnhealthy {
		if o.log != nil {
			o.log.Warn("health check unhealthy",
				"check", reg.name, "critical", reg.critical, "message", result.Message)
		}
		if reg.critical && fn != nil {
			fn(result)
		}
	}
}

// execute runs the probe, converting panics and timeouts to unhealthy.
func execute(ctx context.Context, reg *registration) Outcome {
	done := make(chan Outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Outcome{State: datatypes.HealthUnhealthy, Message: "Check execution failed"}
			}
		}()
		done <- reg.fn(ctx)
	}()

	select {
	case out := <-done:
		if out.State == "" {
			out.State = datatypes.HealthUnhealthy
		}
		return out
	case <-ctx.Done():
		return Outcome{State: datatypes.HealthUnhealthy, Message: ErrCheckTimeout.Error()}
	}
}

// RunAll executes every registered check once, in parallel, and
// returns the assembled report. Used by the on-demand health API.
func (o *Orchestrator) RunAll(ctx context.Context) datatypes.HealthReport {
	o.mu.Lock()
	regs := make([]*registration, 0, len(o.checks))
	for _, reg := range o.checks {
		regs = append(regs, reg)
	}
	o.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	for _, reg := range regs {
		reg := reg
		g.Go(func() error {
			o.runCheck(reg)
			return nil
		})
	}
	_ = g.Wait() // runCheck never returns an error; failures land in results

	return o.Report()
}

// =============================================================================
// Aggregation
// =============================================================================

// Report assembles the weighted health snapshot from the latest
// results. Checks that have never run are excluded from the score.
func (o *Orchestrator) Report() datatypes.HealthReport {
	o.mu.Lock()
	results := make([]datatypes.HealthCheckResult, 0, len(o.checks))
	for _, reg := range o.checks {
		if reg.hasLast {
			results = append(results, reg.last)
		}
	}
	o.mu.Unlock()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	report := datatypes.HealthReport{
		Checks:        results,
		UptimeSeconds: time.Since(o.startedAt).Seconds(),
		GeneratedAt:   time.Now(),
	}

	var weightSum, scoreSum float64
	criticalFailure := false
	for i := range results {
		w := 1.0
		if results[i].Critical {
			w = criticalWeight
			if results[i].State == datatypes.HealthUnhealthy {
				criticalFailure = true
			}
		}
		weightSum += w
		scoreSum += w * results[i].State.Score()
	}

	if weightSum == 0 {
		report.Status = datatypes.HealthHealthy
		report.Score = 100
	} else {
		report.Score = scoreSum / weightSum
		switch {
		case criticalFailure, report.Score < unhealthyBelow:
			report.Status = datatypes.HealthUnhealthy
		case report.Score < degradedBelow:
			report.Status = datatypes.HealthDegraded
		default:
			report.Status = datatypes.HealthHealthy
		}
	}

	observability.HealthScore.Set(report.Score)

	if o.events != nil {
		o.events.Publish(datatypes.TopicHealth, report)
	}
	return report
}
