// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package backup

import (
	"time"

	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
)

// Run times per cadence, local time. Staggered so the three schedules
// never overlap on the same night.
const (
	dailyHour   = 2
	weeklyHour  = 3
	monthlyHour = 4
)

// weeklyDay is the day of week for the weekly run.
const weeklyDay = time.Sunday

// NextRun computes the first trigger time strictly after now for a
// cadence.
//
// # Description
//
// Daily runs at 02:00, weekly on Sunday at 03:00, monthly on the first
// at 04:00. Trigger times are computed explicitly from the calendar
// rather than parsed from a cron string, so the schedule is inspectable
// and testable as plain time arithmetic.
func NextRun(cadence datatypes.BackupCadence, now time.Time) time.Time {
	switch cadence {
	case datatypes.CadenceDaily:
		next := time.Date(now.Year(), now.Month(), now.Day(), dailyHour, 0, 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next

	case datatypes.CadenceWeekly:
		next := time.Date(now.Year(), now.Month(), now.Day(), weeklyHour, 0, 0, 0, now.Location())
		daysAhead := (int(weeklyDay) - int(next.Weekday()) + 7) % 7
		next = next.AddDate(0, 0, daysAhead)
		if !next.After(now) {
			next = next.AddDate(0, 0, 7)
		}
		return next

	case datatypes.CadenceMonthly:
		next := time.Date(now.Year(), now.Month(), 1, monthlyHour, 0, 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 1, 0)
		}
		return next
	}
	// Unknown cadence: far future, effectively never.
	return now.AddDate(100, 0, 0)
}
