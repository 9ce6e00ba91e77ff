// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package notify implements the notification dispatcher.
//
// A logical notification fans out to one or more channels (socket,
// email, webhook, SMS, push) concurrently. Channels fail independently:
// one channel's error or panic never blocks delivery on the others,
// and Send succeeds as long as the notification was accepted.
package notify

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amadalihammoud/brimu-telemetry/pkg/logging"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/observability"
)

// channelTimeout bounds one delivery attempt.
const channelTimeout = 15 * time.Second

// Channel is one delivery mechanism.
type Channel interface {
	Type() datatypes.ChannelType
	Send(ctx context.Context, n datatypes.Notification) error
}

// Store persists notifications for in-app listing and read tracking.
type Store interface {
	Put(n datatypes.Notification) error
	Get(id string) (datatypes.Notification, bool, error)
	Update(n datatypes.Notification) error
	List(limit int, unreadOnly bool) ([]datatypes.Notification, error)
	Delete(id string) error
	SweepExpired(now time.Time) (int, error)
	Close() error
}

// =============================================================================
// Dispatcher
// =============================================================================

// Dispatcher routes notifications to their channels.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Channels and templates are
// registered during startup and read-locked afterwards.
type Dispatcher struct {
	mu        sync.RWMutex
	channels  map[datatypes.ChannelType]Channel
	templates map[string]datatypes.NotificationTemplate

	store Store
	log   *logging.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a dispatcher. The store may be nil for fire-and-forget
// use; persistence calls are then skipped.
func New(store Store, log *logging.Logger) *Dispatcher {
	return &Dispatcher{
		channels:  make(map[datatypes.ChannelType]Channel),
		templates: make(map[string]datatypes.NotificationTemplate),
		store:     store,
		log:       log,
		stopChan:  make(chan struct{}),
	}
}

// RegisterChannel adds or replaces a delivery channel.
func (d *Dispatcher) RegisterChannel(ch Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels[ch.Type()] = ch
}

// RegisterTemplate adds or replaces a message template.
func (d *Dispatcher) RegisterTemplate(t datatypes.NotificationTemplate) error {
	if t.ID == "" {
		return fmt.Errorf("template id cannot be empty")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.templates[t.ID] = t
	return nil
}

// =============================================================================
// Sending
// =============================================================================

// Send accepts a notification, persists it, and fans it out.
//
// # Description
//
// Delivery runs concurrently per channel with panic recovery; a
// failing channel is recorded in its DeliveryResult while the others
// proceed. Send blocks until every channel attempt finishes.
//
// # Outputs
//
// Returns the stored notification (with assigned ID) and one result
// per requested channel. The error is non-nil only when the
// notification itself is unacceptable, never for channel failures.
func (d *Dispatcher) Send(ctx context.Context, n datatypes.Notification) (datatypes.Notification, []datatypes.DeliveryResult, error) {
	if n.Title == "" {
		return n, nil, fmt.Errorf("notification title cannot be empty")
	}
	if len(n.Channels) == 0 {
		return n, nil, fmt.Errorf("notification needs at least one channel")
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.Priority == "" {
		n.Priority = datatypes.PriorityNormal
	}
	if n.Category == "" {
		n.Category = "system"
	}

	if d.store != nil {
		if err := d.store.Put(n); err != nil && d.log != nil {
			// Persistence is best-effort; delivery still proceeds.
			d.log.Error("persisting notification failed", "id", n.ID, "error", err.Error())
		}
	}

	results := make([]datatypes.DeliveryResult, len(n.Channels))
	var wg sync.WaitGroup
	for i, ct := range n.Channels {
		wg.Add(1)
		go func(i int, ct datatypes.ChannelType) {
			defer wg.Done()
			results[i] = d.deliver(ctx, ct, n)
		}(i, ct)
	}
	wg.Wait()

	for i := range results {
		outcome := "ok"
		if !results[i].OK {
			outcome = "failed"
		}
		observability.NotificationDeliveriesTotal.
			WithLabelValues(string(results[i].Channel), outcome).Inc()
		if !results[i].OK && d.log != nil {
			d.log.Warn("notification channel delivery failed",
				"id", n.ID, "channel", string(results[i].Channel), "error", results[i].Error)
		}
	}
	return n, results, nil
}

// deliver runs one channel attempt with timeout and panic isolation.
func (d *Dispatcher) deliver(ctx context.Context, ct datatypes.ChannelType, n datatypes.Notification) (result datatypes.DeliveryResult) {
	result = datatypes.DeliveryResult{Channel: ct, AttemptedAt: time.Now()}
	defer func() {
		if r := recover(); r != nil {
			result.OK = false
			result.Error = fmt.Sprintf("channel panicked: %v", r)
		}
	}()

	d.mu.RLock()
	ch, ok := d.channels[ct]
	d.mu.RUnlock()
	if !ok {
		result.Error = fmt.Sprintf("channel %q not configured", ct)
		return result
	}

	cctx, cancel := context.WithTimeout(ctx, channelTimeout)
	defer cancel()
	if err := ch.Send(cctx, n); err != nil {
		result.Error = err.Error()
		return result
	}
	result.OK = true
	return result
}

// SendTemplate renders a registered template and sends the result.
func (d *Dispatcher) SendTemplate(ctx context.Context, templateID string, vars map[string]string, channels []datatypes.ChannelType, target string) (datatypes.Notification, []datatypes.DeliveryResult, error) {
	d.mu.RLock()
	t, ok := d.templates[templateID]
	d.mu.RUnlock()
	if !ok {
		return datatypes.Notification{}, nil, fmt.Errorf("template %q not registered", templateID)
	}

	return d.Send(ctx, datatypes.Notification{
		Title:    RenderTemplate(t.Title, vars),
		Body:     RenderTemplate(t.Body, vars),
		Category: t.Category,
		Priority: t.Priority,
		Channels: channels,
		Target:   target,
	})
}

// templateVarRe matches {{name}} slots, with optional inner spaces.
var templateVarRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// RenderTemplate substitutes {{var}} slots from vars. Unknown slots
// are left intact so missing data stays visible in the message.
func RenderTemplate(text string, vars map[string]string) string {
	return templateVarRe.ReplaceAllStringFunc(text, func(m string) string {
		name := templateVarRe.FindStringSubmatch(m)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}

// =============================================================================
// Read Tracking & Expiry
// =============================================================================

// MarkRead flags a notification as seen by userID. Marking an
// already-read notification overwrites the read timestamp and reader.
func (d *Dispatcher) MarkRead(id, userID string) error {
	if d.store == nil {
		return fmt.Errorf("notification store not configured")
	}
	n, ok, err := d.store.Get(id)
	if err != nil {
		return fmt.Errorf("loading notification %q: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("notification %q not found", id)
	}
	n.Read = true
	n.ReadAt = time.Now()
	n.ReadBy = userID
	return d.store.Update(n)
}

// List returns stored notifications, newest first.
func (d *Dispatcher) List(limit int, unreadOnly bool) ([]datatypes.Notification, error) {
	if d.store == nil {
		return nil, nil
	}
	return d.store.List(limit, unreadOnly)
}

// StartSweeper launches the periodic expired-notification sweep.
func (d *Dispatcher) StartSweeper(interval time.Duration) {
	if d.store == nil {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				removed, err := d.store.SweepExpired(time.Now())
				if err != nil && d.log != nil {
					d.log.Error("notification sweep failed", "error", err.Error())
				} else if removed > 0 && d.log != nil {
					d.log.Debug("swept expired notifications", "removed", removed)
				}
			case <-d.stopChan:
				return
			}
		}
	}()
}

// Stop halts the sweeper and closes the store.
func (d *Dispatcher) Stop() error {
	d.stopOnce.Do(func() { close(d.stopChan) })
	d.wg.Wait()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}
