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
// Channels & Priorities
// =============================================================================

// ChannelType identifies a notification delivery mechanism.
type ChannelType string

const (
	ChannelEmail   ChannelType = "email"
	ChannelWebhook ChannelType = "webhook"
	ChannelSocket  ChannelType = "socket"
	ChannelSMS     ChannelType = "sms"
	ChannelPush    ChannelType = "push"
)

// Priority orders notifications for display and delivery urgency.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ChannelConfig is the runtime configuration of one delivery channel.
type ChannelConfig struct {
	// Type identifies the channel.
	Type ChannelType `json:"type"`

	// Enabled gates delivery; disabled channels are skipped silently.
	Enabled bool `json:"enabled"`

	// Settings holds channel-specific options (SMTP host, webhook URL,
	// rate limits). Keys are channel-defined.
	Settings map[string]string `json:"settings,omitempty"`
}

// =============================================================================
// Notifications
// =============================================================================

// Notification is a message queued for delivery and in-app display.
type Notification struct {
	// ID is a unique identifier (UUID v4).
	ID string `json:"id"`

	// CreatedAt is when the notification was accepted.
	CreatedAt time.Time `json:"createdAt"`

	// Title is the short headline.
	Title string `json:"title"`

	// Body is the rendered message text.
	Body string `json:"body"`

	// Category groups notifications ("system", "security", "backup",
	// "performance"). Socket subscribers filter on it.
	Category string `json:"category"`

	// Priority orders delivery urgency.
	Priority Priority `json:"priority"`

	// Channels lists the delivery mechanisms to attempt.
	Channels []ChannelType `json:"channels"`

	// Target is the recipient identifier; meaning is channel-specific
	// (email address, user ID for socket delivery).
	Target string `json:"target,omitempty"`

	// Read marks the notification as seen by the recipient.
	Read bool `json:"read"`

	// ReadAt is when the notification was marked read.
	ReadAt time.Time `json:"readAt,omitempty"`

	// ReadBy is the user who marked the notification read.
	ReadBy string `json:"readBy,omitempty"`

	// ExpiresAt is when the notification becomes eligible for sweep.
	// Zero means no expiry.
	ExpiresAt time.Time `json:"expiresAt,omitempty"`

	// Data holds structured payload for machine consumers.
	Data map[string]any `json:"data,omitempty"`
}

// Expired reports whether the notification has passed its expiry.
func (n *Notification) Expired(now time.Time) bool {
	return !n.ExpiresAt.IsZero() && now.After(n.ExpiresAt)
}

// DeliveryResult records the outcome of one channel attempt.
type DeliveryResult struct {
	Channel ChannelType `json:"channel"`
	OK      bool        `json:"ok"`
	Error   string      `json:"error,omitempty"`

	// AttemptedAt is when the attempt was made.
	AttemptedAt time.Time `json:"attemptedAt"`
}

// NotificationTemplate is a reusable message shape with {{var}} slots.
type NotificationTemplate struct {
	// ID identifies the template.
	ID string `json:"id"`

	// Title is the headline with {{var}} placeholders.
	Title string `json:"title"`

	// Body is the message text with {{var}} placeholders.
	Body string `json:"body"`

	// Category is applied to notifications rendered from the template.
	Category string `json:"category"`

	// Priority is applied to notifications rendered from the template.
	Priority Priority `json:"priority"`
}
