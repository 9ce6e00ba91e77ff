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
// Pattern Registrations
// =============================================================================

// PatternKind selects the matching strategy for a registration.
type PatternKind string

const (
	// PatternRegex matches the message against a compiled expression.
	PatternRegex PatternKind = "regex"

	// PatternSubstring matches case-insensitive containment.
	PatternSubstring PatternKind = "substring"
)

// PatternAction selects what a threshold crossing does.
type PatternAction string

const (
	// ActionAlert dispatches a PatternAlert to the bus and consumers.
	ActionAlert PatternAction = "alert"

	// ActionCount advances the trigger counters without alerting.
	ActionCount PatternAction = "count"

	// ActionIgnore suspends the pattern's side effects entirely.
	ActionIgnore PatternAction = "ignore"
)

// Pattern is a registered log-stream watch rule.
//
// When Threshold matching entries accumulate, the pattern fires its
// action and the counter resets. A cooldown suppresses repeat firings.
type Pattern struct {
	// ID identifies the registration.
	ID string `json:"id"`

	// Kind selects the matching strategy.
	Kind PatternKind `json:"kind"`

	// Expression is the regex source or substring to match.
	Expression string `json:"expression"`

	// Level restricts matching to one level; LogLevelAll matches any.
	Level LogLevel `json:"level"`

	// Threshold is the match count that triggers the action.
	Threshold int `json:"threshold"`

	// WindowSeconds bounds how long matches accumulate before the
	// counter ages out. Zero means no window.
	WindowSeconds int `json:"windowSeconds,omitempty"`

	// Action is what a threshold crossing does; empty means ActionAlert.
	Action PatternAction `json:"action"`

	// Severity is attached to the fired alert.
	Severity Severity `json:"severity"`

	// Description is shown in alerts and listings.
	Description string `json:"description,omitempty"`

	// Enabled gates matching; disabled patterns retain state.
	Enabled bool `json:"enabled"`

	// CreatedAt is when the pattern was registered.
	CreatedAt time.Time `json:"createdAt"`
}

// PatternAlert is emitted when a pattern's threshold is reached.
type PatternAlert struct {
	// ID is a unique identifier (UUID v4).
	ID string `json:"id"`

	// PatternID is the firing registration.
	PatternID string `json:"patternId"`

	// Timestamp is when the threshold was crossed.
	Timestamp time.Time `json:"timestamp"`

	// MatchCount is the counter value at firing (equals Threshold).
	MatchCount int `json:"matchCount"`

	// Severity is copied from the registration.
	Severity Severity `json:"severity"`

	// Sample is the message of the entry that crossed the threshold.
	Sample string `json:"sample"`

	// Description is copied from the registration.
	Description string `json:"description,omitempty"`
}

// PatternStatus is the live state of one registration for listings.
type PatternStatus struct {
	Pattern Pattern `json:"pattern"`

	// CurrentCount is matches accumulated since the last firing.
	CurrentCount int `json:"currentCount"`

	// LastTriggered is the most recent firing time; zero if never.
	LastTriggered time.Time `json:"lastTriggered,omitempty"`

	// TotalTriggers is the lifetime firing count.
	TotalTriggers int `json:"totalTriggers"`
}
