// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/bus"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
)

func TestNextRun(t *testing.T) {
	loc := time.UTC

	tests := []struct {
		name    string
		cadence datatypes.BackupCadence
		now     time.Time
		want    time.Time
	}{
		{
			"daily before 02:00",
			datatypes.CadenceDaily,
			time.Date(2026, 8, 31, 1, 0, 0, 0, loc),
			time.Date(2026, 8, 31, 2, 0, 0, 0, loc),
		},
		{
			"daily after 02:00 rolls to tomorrow",
			datatypes.CadenceDaily,
			time.Date(2026, 8, 31, 9, 0, 0, 0, loc),
			time.Date(2026, 9, 1, 2, 0, 0, 0, loc),
		},
		{
			"weekly lands on Sunday 03:00",
			datatypes.CadenceWeekly,
			// 2026-08-31 is a Monday.
			time.Date(2026, 8, 31, 9, 0, 0, 0, loc),
			time.Date(2026, 9, 6, 3, 0, 0, 0, loc),
		},
		{
			"weekly on Sunday before 03:00 runs same day",
			datatypes.CadenceWeekly,
			time.Date(2026, 9, 6, 1, 0, 0, 0, loc),
			time.Date(2026, 9, 6, 3, 0, 0, 0, loc),
		},
		{
			"monthly rolls to the first",
			datatypes.CadenceMonthly,
			time.Date(2026, 8, 31, 9, 0, 0, 0, loc),
			time.Date(2026, 9, 1, 4, 0, 0, 0, loc),
		},
		{
			"monthly on the first before 04:00",
			datatypes.CadenceMonthly,
			time.Date(2026, 9, 1, 1, 0, 0, 0, loc),
			time.Date(2026, 9, 1, 4, 0, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextRun(tt.cadence, tt.now)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.After(tt.now), "next run must be strictly in the future")
		})
	}
}

// fixture creates a data dir with a few files and an orchestrator
// writing into a sibling backup dir.
func fixture(t *testing.T, events *bus.Bus) (*Orchestrator, string) {
	t.Helper()
	root := t.TempDir()
	dataDir := filepath.Join(root, "data")
	backupDir := filepath.Join(root, "backups")
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "a.json"), []byte(`{"a":1}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "sub", "b.log"), []byte("line\n"), 0o600))

	return New(dataDir, backupDir, nil, events, nil), backupDir
}

func TestOrchestrator_Run(t *testing.T) {
	o, backupDir := fixture(t, nil)

	run, err := o.Run(context.Background(), datatypes.CadenceDaily, "manual")
	require.NoError(t, err)
	assert.Equal(t, datatypes.BackupCompleted, run.Status)
	assert.Equal(t, "manual", run.Trigger)
	assert.Greater(t, run.SizeBytes, int64(0))
	assert.FileExists(t, run.Path)
	assert.Contains(t, run.Path, backupDir)

	hist := o.History(0)
	require.Len(t, hist, 1)
	assert.Equal(t, run.ID, hist[0].ID)
}

func TestOrchestrator_ProgressEvents(t *testing.T) {
	events := bus.New(nil)
	defer events.Close()
	ch, unsub := events.Subscribe(datatypes.TopicBackupProgress, 100)
	defer unsub()

	o, _ := fixture(t, events)
	_, err := o.Run(context.Background(), datatypes.CadenceDaily, "manual")
	require.NoError(t, err)

	var stages []string
	var lastPercent float64
drain:
	for {
		select {
		case ev := <-ch:
			p := ev.Payload.(datatypes.BackupProgress)
			stages = append(stages, p.Stage)
			lastPercent = p.Percent
		default:
			break drain
		}
	}
	assert.Contains(t, stages, "snapshot")
	assert.Contains(t, stages, "compress")
	assert.Contains(t, stages, "done")
	assert.Equal(t, 100.0, lastPercent)
}

func TestOrchestrator_ConcurrentSameCadenceRejected(t *testing.T) {
	o, _ := fixture(t, nil)
	o.mu.Lock()
	o.active[datatypes.CadenceDaily] = true
	o.mu.Unlock()

	_, err := o.Run(context.Background(), datatypes.CadenceDaily, "manual")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestOrchestrator_Retention(t *testing.T) {
	o, backupDir := fixture(t, nil)
	require.NoError(t, os.MkdirAll(backupDir, 0o755))

	// Seed more weekly archives than the retention policy keeps.
	for i := 0; i < 6; i++ {
		name := filepath.Join(backupDir, "weekly-2026010"+string(rune('0'+i))+"-000000.tar.gz")
		require.NoError(t, os.WriteFile(name, []byte("old"), 0o600))
	}

	_, err := o.Run(context.Background(), datatypes.CadenceWeekly, "manual")
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(backupDir, "weekly-*.tar.gz"))
	require.NoError(t, err)
	assert.Len(t, matches, datatypes.CadenceWeekly.RetentionCount())
}

func TestOrchestrator_HistoryPersistence(t *testing.T) {
	o, backupDir := fixture(t, nil)
	_, err := o.Run(context.Background(), datatypes.CadenceDaily, "manual")
	require.NoError(t, err)

	o2 := New(o.dataDir, backupDir, nil, nil, nil)
	hist := o2.History(0)
	require.Len(t, hist, 1)
	assert.Equal(t, datatypes.BackupCompleted, hist[0].Status)
}

func TestOrchestrator_MissingDataDirFails(t *testing.T) {
	root := t.TempDir()
	o := New(filepath.Join(root, "nope"), filepath.Join(root, "backups"), nil, nil, nil)

	run, err := o.Run(context.Background(), datatypes.CadenceDaily, "manual")
	require.Error(t, err)
	assert.Equal(t, datatypes.BackupFailed, run.Status)
	assert.NotEmpty(t, run.Error)

	// Failed runs still land in history.
	require.Len(t, o.History(0), 1)
}
