// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package backup implements the scheduled backup orchestrator.
//
// Three independent schedules (daily, weekly, monthly) archive the
// data directory into tar.gz files, stream progress over the event
// bus, enforce per-cadence retention, and record run history as JSON.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amadalihammoud/brimu-telemetry/pkg/logging"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/bus"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/notify"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/observability"
)

// maxHistory caps retained run records across all cadences.
const maxHistory = 100

// historyFile is the run-history filename inside the backup directory.
const historyFile = "backup_history.json"

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator runs and schedules backups.
//
// # Thread Safety
//
// All methods are safe for concurrent use. At most one run per cadence
// executes at a time; concurrent manual triggers of the same cadence
// are rejected.
type Orchestrator struct {
	dataDir   string
	backupDir string

	mu      sync.Mutex
	history []datatypes.BackupRun
	active  map[datatypes.BackupCadence]bool

	dispatcher *notify.Dispatcher
	events     *bus.Bus
	log        *logging.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	now func() time.Time
}

// New creates an orchestrator and loads prior run history. Dispatcher,
// bus, and logger may be nil.
func New(dataDir, backupDir string, dispatcher *notify.Dispatcher, events *bus.Bus, log *logging.Logger) *Orchestrator {
	o := &Orchestrator{
		dataDir:    dataDir,
		backupDir:  backupDir,
		active:     make(map[datatypes.BackupCadence]bool),
		dispatcher: dispatcher,
		events:     events,
		log:        log,
		stopChan:   make(chan struct{}),
		now:        time.Now,
	}
	o.loadHistory()
	return o
}

// Start launches one scheduling goroutine per cadence.
func (o *Orchestrator) Start() {
	for _, c := range []datatypes.BackupCadence{
		datatypes.CadenceDaily, datatypes.CadenceWeekly, datatypes.CadenceMonthly,
	} {
		o.wg.Add(1)
		go o.schedule(c)
	}
	if o.log != nil {
		o.log.Info("backup orchestrator started", "backupDir", o.backupDir)
	}
}

// Stop halts scheduling. An in-flight run finishes.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() { close(o.stopChan) })
	o.wg.Wait()
}

func (o *Orchestrator) schedule(cadence datatypes.BackupCadence) {
	defer o.wg.Done()
	for {
		next := NextRun(cadence, o.now())
		timer := time.NewTimer(next.Sub(o.now()))
		select {
		case <-timer.C:
			if _, err := o.Run(context.Background(), cadence, "scheduled"); err != nil && o.log != nil {
				o.log.Error("scheduled backup failed", "cadence", string(cadence), "error", err.Error())
			}
		case <-o.stopChan:
			timer.Stop()
			return
		}
	}
}

// =============================================================================
// Running
// =============================================================================

// Run executes one backup now.
//
// # Outputs
//
// Returns the completed (or failed) run record. A second run of the
// same cadence while one is active is an error; other cadences may
// run concurrently.
func (o *Orchestrator) Run(ctx context.Context, cadence datatypes.BackupCadence, trigger string) (datatypes.BackupRun, error) {
	o.mu.Lock()
	if o.active[cadence] {
		o.mu.Unlock()
		return datatypes.BackupRun{}, fmt.Errorf("%s backup already running", cadence)
	}
	o.active[cadence] = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.active[cadence] = false
		o.mu.Unlock()
	}()

	run := datatypes.BackupRun{
		ID:        uuid.NewString(),
		Cadence:   cadence,
		Status:    datatypes.BackupRunning,
		StartedAt: o.now(),
		Trigger:   trigger,
	}
	o.progress(run.ID, "snapshot", 0, "starting "+string(cadence)+" backup")

	path, size, err := o.archive(ctx, run.ID, cadence)
	run.FinishedAt = o.now()
	if err != nil {
		run.Status = datatypes.BackupFailed
		run.Error = err.Error()
	} else {
		run.Status = datatypes.BackupCompleted
		run.Path = path
		run.SizeBytes = size
		o.progress(run.ID, "retention", 95, "pruning old archives")
		o.prune(cadence)
		o.progress(run.ID, "done", 100, "backup complete")
	}

	observability.BackupDuration.
		WithLabelValues(string(cadence), string(run.Status)).
		Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())

	o.recordRun(run)
	o.announce(run)
	if err != nil {
		return run, fmt.Errorf("%s backup: %w", cadence, err)
	}
	return run, nil
}

// archive writes the tar.gz and returns its path and size.
func (o *Orchestrator) archive(ctx context.Context, runID string, cadence datatypes.BackupCadence) (string, int64, error) {
	if err := os.MkdirAll(o.backupDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("creating backup dir: %w", err)
	}

	name := fmt.Sprintf("%s-%s.tar.gz", cadence, o.now().Format("20060102-150405"))
	path := filepath.Join(o.backupDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("creating archive: %w", err)
	}
	defer f.Close()

	gzw := gzip.NewWriter(f)
	tw := tar.NewWriter(gzw)

	// Count files first so progress percentages mean something.
	var files []string
	err = filepath.Walk(o.dataDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() && !strings.HasPrefix(p, o.backupDir) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return "", 0, fmt.Errorf("scanning data dir: %w", err)
	}
	o.progress(runID, "compress", 10, fmt.Sprintf("archiving %d files", len(files)))

	for i, p := range files {
		select {
		case <-ctx.Done():
			return "", 0, ctx.Err()
		default:
		}
		if err := addToTar(tw, o.dataDir, p); err != nil {
			return "", 0, err
		}
		if len(files) > 0 && i%10 == 0 {
			pct := 10 + float64(i)/float64(len(files))*80
			o.progress(runID, "compress", pct, filepath.Base(p))
		}
	}

	if err := tw.Close(); err != nil {
		return "", 0, fmt.Errorf("finalizing tar: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return "", 0, fmt.Errorf("finalizing gzip: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", 0, fmt.Errorf("syncing archive: %w", err)
	}

	st, err := os.Stat(path)
	if err != nil {
		return "", 0, fmt.Errorf("stating archive: %w", err)
	}
	return path, st.Size(), nil
}

func addToTar(tw *tar.Writer, root, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stating %s: %w", path, err)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return fmt.Errorf("relativizing %s: %w", path, err)
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("tar header for %s: %w", path, err)
	}
	hdr.Name = filepath.ToSlash(rel)
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing tar header for %s: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("archiving %s: %w", path, err)
	}
	return nil
}

// prune enforces the cadence's retention policy on archive files.
func (o *Orchestrator) prune(cadence datatypes.BackupCadence) {
	pattern := filepath.Join(o.backupDir, string(cadence)+"-*.tar.gz")
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) <= cadence.RetentionCount() {
		return
	}
	// Timestamped names sort chronologically.
	sort.Strings(matches)
	for _, stale := range matches[:len(matches)-cadence.RetentionCount()] {
		if err := os.Remove(stale); err != nil && o.log != nil {
			o.log.Warn("pruning old backup failed", "path", stale, "error", err.Error())
		}
	}
}

// =============================================================================
// History, Progress, Announcements
// =============================================================================

// History returns run records, newest first.
func (o *Orchestrator) History(limit int) []datatypes.BackupRun {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := len(o.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]datatypes.BackupRun, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, o.history[i])
	}
	return out
}

func (o *Orchestrator) recordRun(run datatypes.BackupRun) {
	o.mu.Lock()
	o.history = append(o.history, run)
	if len(o.history) > maxHistory {
		o.history = o.history[len(o.history)-maxHistory:]
	}
	snapshot := make([]datatypes.BackupRun, len(o.history))
	copy(snapshot, o.history)
	o.mu.Unlock()

	o.persistHistory(snapshot)
}

func (o *Orchestrator) progress(runID, stage string, percent float64, message string) {
	if o.events == nil {
		return
	}
	o.events.Publish(datatypes.TopicBackupProgress, datatypes.BackupProgress{
		RunID:     runID,
		Stage:     stage,
		Percent:   percent,
		Message:   message,
		Timestamp: o.now(),
	})
}

// announce notifies operators about the run outcome.
func (o *Orchestrator) announce(run datatypes.BackupRun) {
	if o.dispatcher == nil {
		return
	}
	n := datatypes.Notification{
		Category: "backup",
		Channels: []datatypes.ChannelType{datatypes.ChannelSocket},
		Data:     map[string]any{"runId": run.ID, "cadence": run.Cadence},
	}
	if run.Status == datatypes.BackupCompleted {
		n.Title = fmt.Sprintf("%s backup completed", run.Cadence)
		n.Body = fmt.Sprintf("Archive %s (%d bytes)", filepath.Base(run.Path), run.SizeBytes)
		n.Priority = datatypes.PriorityLow
	} else {
		n.Title = fmt.Sprintf("%s backup FAILED", run.Cadence)
		n.Body = run.Error
		n.Priority = datatypes.PriorityHigh
		n.Channels = append(n.Channels, datatypes.ChannelEmail)
	}
	if _, _, err := o.dispatcher.Send(context.Background(), n); err != nil && o.log != nil {
		o.log.Error("announcing backup result failed", "error", err.Error())
	}
}

// loadHistory restores run records. Best-effort; a missing or corrupt
// file starts empty.
func (o *Orchestrator) loadHistory() {
	data, err := os.ReadFile(filepath.Join(o.backupDir, historyFile))
	if err != nil {
		return
	}
	var history []datatypes.BackupRun
	if err := json.Unmarshal(data, &history); err != nil {
		if o.log != nil {
			o.log.Warn("backup history corrupt, starting empty", "error", err.Error())
		}
		return
	}
	o.mu.Lock()
	o.history = history
	o.mu.Unlock()
}

func (o *Orchestrator) persistHistory(history []datatypes.BackupRun) {
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return
	}
	path := filepath.Join(o.backupDir, historyFile)
	tmp := path + ".tmp"
	if err := os.MkdirAll(o.backupDir, 0o755); err != nil {
		return
	}
	if err := os.WriteFile(tmp, data, 0o600); err == nil {
		if err := os.Rename(tmp, path); err != nil && o.log != nil {
			o.log.Error("persisting backup history failed", "error", err.Error())
		}
	}
}
