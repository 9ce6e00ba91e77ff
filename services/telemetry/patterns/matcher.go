// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package patterns implements the log-stream pattern matcher.
//
// Registered patterns watch every entry flowing through the event
// store. When a pattern accumulates its threshold of matches it fires
// an alert, resets its counter, and enters a cooldown that suppresses
// repeat alerts.
//
// The accumulation window is deliberately not a rolling window: the
// counter resets when the window ages out or the threshold fires, so a
// burst split across a window boundary can go unalerted. Downstream
// consumers rely on this exact behavior to bound alert volume.
package patterns

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amadalihammoud/brimu-telemetry/pkg/logging"
	"github.com/amadalihammoud/brimu-telemetry/pkg/validation"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/bus"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/observability"
)

// DefaultCooldown is the minimum interval between alerts for one
// pattern.
const DefaultCooldown = 60 * time.Second

// ErrPatternExists is returned by Register for a duplicate pattern ID.
var ErrPatternExists = errors.New("pattern already registered")

// AlertFunc receives fired alerts. The notification dispatcher
// registers one; alerts also go to the event bus regardless.
type AlertFunc func(alert datatypes.PatternAlert)

// patternState is one registration plus its mutable counters.
type patternState struct {
	def datatypes.Pattern
	re  *regexp.Regexp // nil for substring patterns

	count         int
	windowStart   time.Time
	lastTriggered time.Time
	totalTriggers int
	suppressed    int
}

// =============================================================================
// Matcher
// =============================================================================

// Matcher evaluates log entries against registered patterns.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Evaluate holds the lock for
// the duration of one entry's matching pass; patterns are expected to
// stay in the tens, not thousands.
type Matcher struct {
	mu       sync.Mutex
	patterns map[string]*patternState
	cooldown time.Duration

	onAlert AlertFunc
	events  *bus.Bus
	log     *logging.Logger

	now func() time.Time // swapped in tests
}

// New creates a matcher with the default cooldown. The bus and logger
// may be nil.
func New(events *bus.Bus, log *logging.Logger) *Matcher {
	return &Matcher{
		patterns: make(map[string]*patternState),
		cooldown: DefaultCooldown,
		events:   events,
		log:      log,
		now:      time.Now,
	}
}

// SetAlertFunc wires the alert consumer. Call during startup.
func (m *Matcher) SetAlertFunc(fn AlertFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAlert = fn
}

// Register adds a pattern. Regex expressions compile here so malformed
// input fails synchronously at the API boundary.
//
// # Outputs
//
// Returns an error for an invalid ID, a duplicate ID, a bad expression,
// or a non-positive threshold.
func (m *Matcher) Register(p datatypes.Pattern) error {
	if err := validation.ValidateIdentifier(p.ID); err != nil {
		return err
	}
	if p.Threshold <= 0 {
		return fmt.Errorf("pattern %q: threshold must be positive, got %d", p.ID, p.Threshold)
	}
	if p.Level == "" {
		p.Level = datatypes.LogLevelAll
	}
	if p.Severity == "" {
		p.Severity = datatypes.SeverityWarning
	}
	if p.Action == "" {
		p.Action = datatypes.ActionAlert
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.now()
	}
	p.Enabled = true

	var re *regexp.Regexp
	if p.Kind == datatypes.PatternRegex {
		var err error
		re, err = validation.ValidateRegex(p.Expression)
		if err != nil {
			return fmt.Errorf("pattern %q: %w", p.ID, err)
		}
	} else if p.Expression == "" {
		return fmt.Errorf("pattern %q: expression cannot be empty", p.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.patterns[p.ID]; exists {
		return fmt.Errorf("pattern %q: %w", p.ID, ErrPatternExists)
	}
	m.patterns[p.ID] = &patternState{def: p, re: re}
	if m.log != nil {
		m.log.Info("pattern registered", "id", p.ID, "kind", string(p.Kind), "threshold", p.Threshold)
	}
	return nil
}

// Remove deletes a registration. Returns false if the ID is unknown.
func (m *Matcher) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.patterns[id]; !ok {
		return false
	}
	delete(m.patterns, id)
	return true
}

// SetEnabled toggles matching for a pattern without losing its state.
func (m *Matcher) SetEnabled(id string, enabled bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.patterns[id]
	if !ok {
		return false
	}
	st.def.Enabled = enabled
	return true
}

// List returns the live status of every registration, unordered.
func (m *Matcher) List() []datatypes.PatternStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]datatypes.PatternStatus, 0, len(m.patterns))
	for _, st := range m.patterns {
		out = append(out, datatypes.PatternStatus{
			Pattern:       st.def,
			CurrentCount:  st.count,
			LastTriggered: st.lastTriggered,
			TotalTriggers: st.totalTriggers,
		})
	}
	return out
}

// =============================================================================
// Evaluation
// =============================================================================

// Evaluate runs one entry through every enabled pattern.
//
// Intended as a log store RecordHook: it must never panic and never
// block on downstream consumers.
func (m *Matcher) Evaluate(entry datatypes.LogEntry) {
	var fired []datatypes.PatternAlert

	m.mu.Lock()
	now := m.now()
	for _, st := range m.patterns {
		if !st.def.Enabled || st.def.Action == datatypes.ActionIgnore {
			continue
		}
		if !matchesPattern(st, &entry) {
			continue
		}
		if alert, ok := m.bump(st, &entry, now); ok {
			fired = append(fired, alert)
		}
	}
	m.mu.Unlock()

	// Dispatch outside the lock so a slow consumer cannot stall
	// evaluation of subsequent entries.
	for i := range fired {
		observability.PatternAlertsTotal.WithLabelValues(fired[i].PatternID).Inc()
		if m.events != nil {
			m.events.Publish(datatypes.TopicAlerts, fired[i])
		}
		if m.onAlert != nil {
			m.onAlert(fired[i])
		}
	}
}

// bump advances one pattern's counter and reports a fired alert.
// Caller holds m.mu.
func (m *Matcher) bump(st *patternState, entry *datatypes.LogEntry, now time.Time) (datatypes.PatternAlert, bool) {
	window := time.Duration(st.def.WindowSeconds) * time.Second
	if st.count == 0 {
		st.windowStart = now
	} else if window > 0 && now.Sub(st.windowStart) > window {
		// Window aged out with the threshold unmet. The partial count
		// is discarded, not slid.
		st.count = 0
		st.windowStart = now
	}
	st.count++

	if st.count < st.def.Threshold {
		return datatypes.PatternAlert{}, false
	}

	// Threshold reached. The counter resets whether or not the alert
	// is suppressed by the cooldown.
	matchCount := st.count
	st.count = 0

	if !st.lastTriggered.IsZero() && now.Sub(st.lastTriggered) < m.cooldown {
		st.suppressed++
		if m.log != nil {
			m.log.Debug("pattern alert suppressed by cooldown", "id", st.def.ID)
		}
		return datatypes.PatternAlert{}, false
	}

	st.lastTriggered = now
	st.totalTriggers++

	// A count action tracks triggers without alerting anyone.
	if st.def.Action == datatypes.ActionCount {
		return datatypes.PatternAlert{}, false
	}
	return datatypes.PatternAlert{
		ID:          uuid.NewString(),
		PatternID:   st.def.ID,
		Timestamp:   now,
		MatchCount:  matchCount,
		Severity:    st.def.Severity,
		Sample:      entry.Message,
		Description: st.def.Description,
	}, true
}

// matchesPattern applies the level gate and content match.
func matchesPattern(st *patternState, entry *datatypes.LogEntry) bool {
	if st.def.Level != datatypes.LogLevelAll && st.def.Level != entry.Level {
		return false
	}
	if st.re != nil {
		return st.re.MatchString(entry.Message)
	}
	return strings.Contains(strings.ToLower(entry.Message), strings.ToLower(st.def.Expression))
}
