// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package audit implements security threat tracking per source IP.
//
// Observations accumulate a weighted score per IP; crossing the
// critical line auto-blocks the address and raises a security
// notification. Profiles persist to a JSON file so blocks survive
// restarts; loading is best-effort and a corrupt file starts empty.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/amadalihammoud/brimu-telemetry/pkg/logging"
	"github.com/amadalihammoud/brimu-telemetry/pkg/validation"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/notify"
)

const (
	// maxEventsPerProfile caps a profile's retained observation history.
	maxEventsPerProfile = 50

	// Score levels.
	mediumScore   = 30
	highScore     = 60
	criticalScore = 100
)

// eventWeights maps observation types to score points.
var eventWeights = map[datatypes.ThreatEventType]int{
	datatypes.ThreatAuthFailure:     10,
	datatypes.ThreatRateLimit:       5,
	datatypes.ThreatSuspiciousInput: 20,
	datatypes.ThreatBlockedAccess:   2,
}

// =============================================================================
// Tracker
// =============================================================================

// Tracker maintains threat profiles keyed by source IP.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Persistence runs inline on
// mutation; the file is small and rewritten atomically.
type Tracker struct {
	mu       sync.Mutex
	profiles map[string]*datatypes.ThreatProfile
	path     string

	dispatcher *notify.Dispatcher
	log        *logging.Logger
}

// New creates a tracker persisting to path and loads any existing
// state. An empty path disables persistence. The dispatcher may be
// nil; blocks then go unannounced.
func New(path string, dispatcher *notify.Dispatcher, log *logging.Logger) *Tracker {
	t := &Tracker{
		profiles:   make(map[string]*datatypes.ThreatProfile),
		path:       path,
		dispatcher: dispatcher,
		log:        log,
	}
	t.load()
	return t
}

// RecordEvent records one observation for an IP and applies scoring.
//
// # Outputs
//
// Returns the updated profile. An invalid IP is an error; everything
// else (including the auto-block side effects) is handled internally.
func (t *Tracker) RecordEvent(ip string, eventType datatypes.ThreatEventType, detail, endpoint string) (datatypes.ThreatProfile, error) {
	canonical, err := validation.ValidateIP(ip)
	if err != nil {
		return datatypes.ThreatProfile{}, err
	}
	now := time.Now()

	t.mu.Lock()
	p := t.profiles[canonical]
	if p == nil {
		p = &datatypes.ThreatProfile{
			IP: canonical, Level: datatypes.ThreatLow, FirstSeen: now,
		}
		t.profiles[canonical] = p
	}
	p.LastSeen = now
	p.Score += eventWeights[eventType]
	p.Level = levelFor(p.Score)
	p.Events = append(p.Events, datatypes.ThreatEvent{
		Type: eventType, Timestamp: now, Detail: detail, Endpoint: endpoint,
	})
	if len(p.Events) > maxEventsPerProfile {
		p.Events = p.Events[len(p.Events)-maxEventsPerProfile:]
	}

	autoBlock := p.Level == datatypes.ThreatCritical && !p.Blocked
	if autoBlock {
		p.Blocked = true
		p.BlockedAt = now
		p.BlockReason = fmt.Sprintf("threat score %d reached critical", p.Score)
	}
	snapshot := *p
	t.mu.Unlock()

	t.persist()

	if autoBlock {
		if t.log != nil {
			t.log.Warn("IP auto-blocked", "ip", canonical, "score", snapshot.Score)
		}
		t.announceBlock(snapshot)
	}
	return snapshot, nil
}

// Block manually blocks an IP with a reason.
func (t *Tracker) Block(ip, reason string) (datatypes.ThreatProfile, error) {
	canonical, err := validation.ValidateIP(ip)
	if err != nil {
		return datatypes.ThreatProfile{}, err
	}
	now := time.Now()

	t.mu.Lock()
	p := t.profiles[canonical]
	if p == nil {
		p = &datatypes.ThreatProfile{
			IP: canonical, Level: datatypes.ThreatLow, FirstSeen: now, LastSeen: now,
		}
		t.profiles[canonical] = p
	}
	p.Blocked = true
	p.BlockedAt = now
	if reason == "" {
		reason = "manually blocked"
	}
	p.BlockReason = reason
	snapshot := *p
	t.mu.Unlock()

	t.persist()
	t.announceBlock(snapshot)
	return snapshot, nil
}

// Unblock clears a block. Returns false for an unknown or unblocked IP.
func (t *Tracker) Unblock(ip string) (bool, error) {
	canonical, err := validation.ValidateIP(ip)
	if err != nil {
		return false, err
	}

	t.mu.Lock()
	p := t.profiles[canonical]
	if p == nil || !p.Blocked {
		t.mu.Unlock()
		return false, nil
	}
	p.Blocked = false
	p.BlockedAt = time.Time{}
	p.BlockReason = ""
	t.mu.Unlock()

	t.persist()
	return true, nil
}

// IsBlocked reports whether an IP is currently denied. Unparseable
// addresses report false; the request layer rejects those earlier.
func (t *Tracker) IsBlocked(ip string) bool {
	canonical, err := validation.ValidateIP(ip)
	if err != nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.profiles[canonical]
	return p != nil && p.Blocked
}

// Profile returns one profile by IP.
func (t *Tracker) Profile(ip string) (datatypes.ThreatProfile, bool) {
	canonical, err := validation.ValidateIP(ip)
	if err != nil {
		return datatypes.ThreatProfile{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.profiles[canonical]
	if p == nil {
		return datatypes.ThreatProfile{}, false
	}
	return *p, true
}

// Profiles returns every profile, highest score first.
func (t *Tracker) Profiles() []datatypes.ThreatProfile {
	t.mu.Lock()
	out := make([]datatypes.ThreatProfile, 0, len(t.profiles))
	for _, p := range t.profiles {
		out = append(out, *p)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].IP < out[j].IP
	})
	return out
}

// levelFor maps a score to its threat level.
func levelFor(score int) datatypes.ThreatLevel {
	switch {
	case score >= criticalScore:
		return datatypes.ThreatCritical
	case score >= highScore:
		return datatypes.ThreatHigh
	case score >= mediumScore:
		return datatypes.ThreatMedium
	default:
		return datatypes.ThreatLow
	}
}

// announceBlock raises a security notification for a new block.
func (t *Tracker) announceBlock(p datatypes.ThreatProfile) {
	if t.dispatcher == nil {
		return
	}
	_, _, err := t.dispatcher.Send(context.Background(), datatypes.Notification{
		Title:    fmt.Sprintf("IP %s blocked", p.IP),
		Body:     fmt.Sprintf("Reason: %s (score %d, level %s)", p.BlockReason, p.Score, p.Level),
		Category: "security",
		Priority: datatypes.PriorityHigh,
		Channels: []datatypes.ChannelType{datatypes.ChannelSocket, datatypes.ChannelEmail},
		Data:     map[string]any{"ip": p.IP, "score": p.Score},
	})
	if err != nil && t.log != nil {
		t.log.Error("announcing IP block failed", "ip", p.IP, "error", err.Error())
	}
}

// =============================================================================
// Persistence
// =============================================================================

// load reads the profile file. Missing or corrupt files start empty.
func (t *Tracker) load() {
	if t.path == "" {
		return
	}
	data, err := os.ReadFile(t.path)
	if err != nil {
		if !os.IsNotExist(err) && t.log != nil {
			t.log.Warn("reading threat profiles failed, starting empty", "error", err.Error())
		}
		return
	}
	var profiles []datatypes.ThreatProfile
	if err := json.Unmarshal(data, &profiles); err != nil {
		if t.log != nil {
			t.log.Warn("threat profile file corrupt, starting empty", "error", err.Error())
		}
		return
	}
	t.mu.Lock()
	for i := range profiles {
		p := profiles[i]
		t.profiles[p.IP] = &p
	}
	t.mu.Unlock()
}

// persist writes the profile file via rename for atomicity.
func (t *Tracker) persist() {
	if t.path == "" {
		return
	}
	t.mu.Lock()
	profiles := make([]datatypes.ThreatProfile, 0, len(t.profiles))
	for _, p := range t.profiles {
		profiles = append(profiles, *p)
	}
	t.mu.Unlock()

	sort.Slice(profiles, func(i, j int) bool { return profiles[i].IP < profiles[j].IP })
	data, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		if t.log != nil {
			t.log.Error("encoding threat profiles failed", "error", err.Error())
		}
		return
	}

	tmp := t.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err == nil {
		err = os.WriteFile(tmp, data, 0o600)
		if err == nil {
			err = os.Rename(tmp, t.path)
		}
	}
	if err != nil && t.log != nil {
		t.log.Error("persisting threat profiles failed", "error", err.Error())
	}
}
