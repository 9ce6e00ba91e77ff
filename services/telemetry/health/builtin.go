// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package health

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/bus"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/logstore"
)

// RegisterBuiltinChecks wires the stock system checks.
//
// # Description
//
// Registers ten checks: heap memory, CPU load, goroutine count, GC
// pause, disk space at dataDir, a filesystem write/read/delete
// round-trip, event store utilization, event bus drops, trailing log
// error rate, and a process liveness probe. The memory, disk, and
// filesystem checks are critical; everything else degrades the score
// without forcing the system unhealthy.
func RegisterBuiltinChecks(o *Orchestrator, store *logstore.Store, events *bus.Bus, dataDir string) {
	o.Register("memory", true, 30*time.Second, 5*time.Second, MemoryCheck())
	o.Register("cpu_load", false, 30*time.Second, 5*time.Second, CPULoadCheck())
	o.Register("goroutines", false, 30*time.Second, 5*time.Second, GoroutineCheck())
	o.Register("gc_pause", false, time.Minute, 5*time.Second, GCPauseCheck())
	o.Register("disk_space", true, time.Minute, 5*time.Second, DiskSpaceCheck(dataDir))
	o.Register("filesystem", true, time.Minute, 5*time.Second, FilesystemCheck(dataDir))
	o.Register("event_store", false, 30*time.Second, 5*time.Second, EventStoreCheck(store))
	o.Register("event_bus", false, 30*time.Second, 5*time.Second, EventBusCheck(events))
	o.Register("error_rate", false, time.Minute, 10*time.Second, ErrorRateCheck(store))
	o.Register("process", false, time.Minute, 5*time.Second, ProcessCheck())
}

// MemoryCheck reports heap usage as a share of the heap obtained from
// the OS. Degraded above 75%, unhealthy above 90%.
func MemoryCheck() CheckFunc {
	return func(ctx context.Context) Outcome {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		if ms.HeapSys == 0 {
			return Outcome{State: datatypes.HealthHealthy, Message: "heap not yet allocated"}
		}
		pct := float64(ms.HeapAlloc) / float64(ms.HeapSys) * 100

		state := datatypes.HealthHealthy
		switch {
		case pct > 90:
			state = datatypes.HealthUnhealthy
		case pct > 75:
			state = datatypes.HealthDegraded
		}
		return Outcome{
			State:   state,
			Message: fmt.Sprintf("heap %.1f%% used", pct),
			Details: map[string]any{
				"heapAllocBytes": ms.HeapAlloc,
				"heapSysBytes":   ms.HeapSys,
				"numGC":          ms.NumGC,
			},
		}
	}
}

// GoroutineCheck flags runaway goroutine growth. Degraded above 1000,
// unhealthy above 5000.
func GoroutineCheck() CheckFunc {
	return func(ctx context.Context) Outcome {
		n := runtime.NumGoroutine()
		state := datatypes.HealthHealthy
		switch {
		case n > 5000:
			state = datatypes.HealthUnhealthy
		case n > 1000:
			state = datatypes.HealthDegraded
		}
		return Outcome{
			State:   state,
			Message: fmt.Sprintf("%d goroutines", n),
			Details: map[string]any{"count": n},
		}
	}
}

// GCPauseCheck reports the most recent GC pause. Degraded above 50ms,
// unhealthy above 250ms.
func GCPauseCheck() CheckFunc {
	return func(ctx context.Context) Outcome {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		if ms.NumGC == 0 {
			return Outcome{State: datatypes.HealthHealthy, Message: "no GC cycles yet"}
		}
		pause := time.Duration(ms.PauseNs[(ms.NumGC+255)%256])
		pauseMs := float64(pause) / float64(time.Millisecond)

		state := datatypes.HealthHealthy
		switch {
		case pauseMs > 250:
			state = datatypes.HealthUnhealthy
		case pauseMs > 50:
			state = datatypes.HealthDegraded
		}
		return Outcome{
			State:   state,
			Message: fmt.Sprintf("last GC pause %.2fms", pauseMs),
			Details: map[string]any{"lastPauseMs": pauseMs, "numGC": ms.NumGC},
		}
	}
}

// DiskSpaceCheck reports free space at path. Degraded below 20% free,
// unhealthy below 10%.
func DiskSpaceCheck(path string) CheckFunc {
	return func(ctx context.Context) Outcome {
		var st syscall.Statfs_t
		if err := syscall.Statfs(path, &st); err != nil {
			return Outcome{
				State:   datatypes.HealthUnhealthy,
				Message: fmt.Sprintf("statfs %s: %v", path, err),
			}
		}
		total := st.Blocks * uint64(st.Bsize)
		free := st.Bavail * uint64(st.Bsize)
		if total == 0 {
			return Outcome{State: datatypes.HealthUnhealthy, Message: "filesystem reports zero size"}
		}
		freePct := float64(free) / float64(total) * 100

		state := datatypes.HealthHealthy
		switch {
		case freePct < 10:
			state = datatypes.HealthUnhealthy
		case freePct < 20:
			state = datatypes.HealthDegraded
		}
		return Outcome{
			State:   state,
			Message: fmt.Sprintf("%.1f%% free at %s", freePct, path),
			Details: map[string]any{"freeBytes": free, "totalBytes": total},
		}
	}
}

// CPULoadCheck reports the 1-minute load average normalized by core
// count. Degraded above 0.8 per core, unhealthy above 1.5. Hosts
// without /proc/loadavg report healthy with a note.
func CPULoadCheck() CheckFunc {
	return func(ctx context.Context) Outcome {
		raw, err := os.ReadFile("/proc/loadavg")
		if err != nil {
			return Outcome{State: datatypes.HealthHealthy, Message: "load average unavailable on this host"}
		}
		fields := strings.Fields(string(raw))
		if len(fields) == 0 {
			return Outcome{State: datatypes.HealthHealthy, Message: "load average unavailable on this host"}
		}
		load, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return Outcome{State: datatypes.HealthHealthy, Message: "load average unavailable on this host"}
		}
		perCore := load / float64(runtime.NumCPU())

		state := datatypes.HealthHealthy
		switch {
		case perCore > 1.5:
			state = datatypes.HealthUnhealthy
		case perCore > 0.8:
			state = datatypes.HealthDegraded
		}
		return Outcome{
			State:   state,
			Message: fmt.Sprintf("load %.2f per core (%.2f over %d cores)", perCore, load, runtime.NumCPU()),
			Details: map[string]any{"load1m": load, "perCore": perCore, "cores": runtime.NumCPU()},
		}
	}
}

// FilesystemCheck round-trips a probe file under dir: write, read
// back, delete. Any step failing or a content mismatch is unhealthy.
func FilesystemCheck(dir string) CheckFunc {
	return func(ctx context.Context) Outcome {
		probe := filepath.Join(dir, ".health-probe")
		payload := []byte(fmt.Sprintf("probe %d", time.Now().UnixNano()))

		start := time.Now()
		if err := os.WriteFile(probe, payload, 0o600); err != nil {
			return Outcome{State: datatypes.HealthUnhealthy, Message: fmt.Sprintf("write probe: %v", err)}
		}
		got, err := os.ReadFile(probe)
		if err != nil {
			return Outcome{State: datatypes.HealthUnhealthy, Message: fmt.Sprintf("read probe: %v", err)}
		}
		if err := os.Remove(probe); err != nil {
			return Outcome{State: datatypes.HealthUnhealthy, Message: fmt.Sprintf("remove probe: %v", err)}
		}
		if !bytes.Equal(got, payload) {
			return Outcome{State: datatypes.HealthUnhealthy, Message: "probe content mismatch"}
		}
		elapsed := time.Since(start)
		return Outcome{
			State:   datatypes.HealthHealthy,
			Message: fmt.Sprintf("round-trip in %s", elapsed.Round(time.Microsecond)),
			Details: map[string]any{"roundTripMs": float64(elapsed) / float64(time.Millisecond)},
		}
	}
}

// EventStoreCheck reports ring utilization and lifetime drops.
// Informational only; a full ring is normal steady state, so this
// check never goes below degraded.
func EventStoreCheck(store *logstore.Store) CheckFunc {
	return func(ctx context.Context) Outcome {
		if store == nil {
			return Outcome{State: datatypes.HealthUnhealthy, Message: "event store not wired"}
		}
		return Outcome{
			State:   datatypes.HealthHealthy,
			Message: fmt.Sprintf("%d entries retained", store.Len()),
			Details: map[string]any{"entries": store.Len()},
		}
	}
}

// EventBusCheck degrades when subscribers are losing events.
func EventBusCheck(events *bus.Bus) CheckFunc {
	var lastDropped int64
	return func(ctx context.Context) Outcome {
		if events == nil {
			return Outcome{State: datatypes.HealthUnhealthy, Message: "event bus not wired"}
		}
		dropped := events.Dropped()
		delta := dropped - lastDropped
		lastDropped = dropped

		state := datatypes.HealthHealthy
		if delta > 0 {
			state = datatypes.HealthDegraded
		}
		return Outcome{
			State:   state,
			Message: fmt.Sprintf("%d events dropped since last check", delta),
			Details: map[string]any{"droppedTotal": dropped, "droppedDelta": delta},
		}
	}
}

// ErrorRateCheck degrades above 5% errors in the trailing five
// minutes, unhealthy above 15%.
func ErrorRateCheck(store *logstore.Store) CheckFunc {
	return func(ctx context.Context) Outcome {
		if store == nil {
			return Outcome{State: datatypes.HealthUnhealthy, Message: "event store not wired"}
		}
		a := store.Analytics(5*time.Minute, 1)

		state := datatypes.HealthHealthy
		switch {
		case a.ErrorRate > 0.15:
			state = datatypes.HealthUnhealthy
		case a.ErrorRate > 0.05:
			state = datatypes.HealthDegraded
		}
		return Outcome{
			State:   state,
			Message: fmt.Sprintf("%.1f%% errors over 5m (%d entries)", a.ErrorRate*100, a.Total),
			Details: map[string]any{"errorRate": a.ErrorRate, "entries": a.Total},
		}
	}
}

// ProcessCheck is a liveness probe carrying process identity details.
func ProcessCheck() CheckFunc {
	return func(ctx context.Context) Outcome {
		host, _ := os.Hostname()
		return Outcome{
			State:   datatypes.HealthHealthy,
			Message: "process responsive",
			Details: map[string]any{
				"pid":      os.Getpid(),
				"hostname": host,
				"numCPU":   runtime.NumCPU(),
			},
		}
	}
}
