// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
)

// WebhookConfig holds settings for the webhook channel.
type WebhookConfig struct {
	// URL is the default endpoint; a notification Target starting with
	// "http" overrides it per delivery.
	URL string

	// Secret, when set, is sent as the X-Telemetry-Secret header.
	Secret string

	// RatePerMinute caps outbound posts; zero means 60.
	RatePerMinute int
}

// WebhookChannel posts notification JSON to an HTTP endpoint.
//
// A token-bucket limiter protects the receiver from alert storms;
// deliveries beyond the rate fail fast instead of queueing.
type WebhookChannel struct {
	cfg     WebhookConfig
	client  *http.Client
	limiter *rate.Limiter
}

var _ Channel = (*WebhookChannel)(nil)

// NewWebhookChannel creates the channel.
func NewWebhookChannel(cfg WebhookConfig) (*WebhookChannel, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook channel: URL not configured")
	}
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	return &WebhookChannel{
		cfg:     cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
	}, nil
}

// Type implements Channel.
func (c *WebhookChannel) Type() datatypes.ChannelType {
	return datatypes.ChannelWebhook
}

// Send implements Channel.
func (c *WebhookChannel) Send(ctx context.Context, n datatypes.Notification) error {
	if !c.limiter.Allow() {
		return fmt.Errorf("webhook channel: rate limit exceeded")
	}

	url := c.cfg.URL
	if len(n.Target) > 4 && n.Target[:4] == "http" {
		url = n.Target
	}

	payload, err := json.Marshal(map[string]any{
		"id":        n.ID,
		"title":     n.Title,
		"body":      n.Body,
		"category":  n.Category,
		"priority":  n.Priority,
		"createdAt": n.CreatedAt,
		"data":      n.Data,
	})
	if err != nil {
		return fmt.Errorf("webhook channel: encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("webhook channel: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Secret != "" {
		req.Header.Set("X-Telemetry-Secret", c.cfg.Secret)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook channel: posting to %s: %w", url, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook channel: %s returned %d", url, resp.StatusCode)
	}
	return nil
}
