// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/amadalihammoud/brimu-telemetry/pkg/logging"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
)

// ThresholdApplier receives reloaded threshold maps. The metrics
// recorder satisfies this with SetThreshold.
type ThresholdApplier interface {
	SetThreshold(metric string, th datatypes.Threshold)
}

// Watcher hot-reloads the thresholds section on config file changes.
type Watcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchThresholds starts watching path and applies its thresholds to
// the applier on every change. Invalid intermediate saves are logged
// and skipped; the previous thresholds stay active.
//
// The parent directory is watched rather than the file itself so
// editors that replace the file (rename-over-write) keep triggering.
func WatchThresholds(path string, applier ThresholdApplier, log *logging.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	w := &Watcher{watcher: fw, done: make(chan struct{})}
	target := filepath.Clean(path)

	go func() {
		defer close(w.done)
		for {
			select {
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					if log != nil {
						log.Warn("config reload failed, keeping previous thresholds", "error", err.Error())
					}
					continue
				}
				for metric, th := range cfg.Thresholds {
					applier.SetThreshold(metric, th)
				}
				if log != nil {
					log.Info("thresholds reloaded", "count", len(cfg.Thresholds))
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				if log != nil {
					log.Warn("config watcher error", "error", err.Error())
				}
			}
		}
	}()
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
