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
// Backup Schedules & Runs
// =============================================================================

// BackupCadence names a recurring backup schedule.
type BackupCadence string

const (
	CadenceDaily   BackupCadence = "daily"
	CadenceWeekly  BackupCadence = "weekly"
	CadenceMonthly BackupCadence = "monthly"
)

// RetentionCount returns how many completed runs of the cadence are
// kept before pruning.
func (c BackupCadence) RetentionCount() int {
	switch c {
	case CadenceDaily:
		return 7
	case CadenceWeekly:
		return 4
	default:
		return 3
	}
}

// BackupStatus is the lifecycle state of a run.
type BackupStatus string

const (
	BackupRunning   BackupStatus = "running"
	BackupCompleted BackupStatus = "completed"
	BackupFailed    BackupStatus = "failed"
)

// BackupRun records one backup execution.
type BackupRun struct {
	// ID is a unique identifier (UUID v4).
	ID string `json:"id"`

	// Cadence is the schedule that produced the run.
	Cadence BackupCadence `json:"cadence"`

	// Status is the lifecycle state.
	Status BackupStatus `json:"status"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"startedAt"`

	// FinishedAt is when the run completed or failed.
	FinishedAt time.Time `json:"finishedAt,omitempty"`

	// Path is where the archive was written.
	Path string `json:"path,omitempty"`

	// SizeBytes is the archive size on success.
	SizeBytes int64 `json:"sizeBytes,omitempty"`

	// Error describes the failure, if any.
	Error string `json:"error,omitempty"`

	// Trigger is "scheduled" or "manual".
	Trigger string `json:"trigger"`
}

// BackupProgress is a streamed progress event for a running backup.
type BackupProgress struct {
	RunID string `json:"runId"`

	// Stage names the current phase ("snapshot", "compress", "verify").
	Stage string `json:"stage"`

	// Percent is completion in 0..100.
	Percent float64 `json:"percent"`

	// Message is a human-readable progress line.
	Message string `json:"message,omitempty"`

	// Timestamp is when the progress was reported.
	Timestamp time.Time `json:"timestamp"`
}
