// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
)

// EmailConfig holds SMTP settings for the email channel.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// DefaultTo receives notifications that carry no explicit target
	// (alert and health emails).
	DefaultTo string
}

// sendMailFunc matches smtp.SendMail; swapped in tests.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailChannel delivers notifications over SMTP.
type EmailChannel struct {
	cfg      EmailConfig
	sendMail sendMailFunc
}

var _ Channel = (*EmailChannel)(nil)

// NewEmailChannel creates the channel. Host and From must be set.
func NewEmailChannel(cfg EmailConfig) (*EmailChannel, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("email channel: SMTP host not configured")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("email channel: sender address not configured")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &EmailChannel{cfg: cfg, sendMail: smtp.SendMail}, nil
}

// Type implements Channel.
func (c *EmailChannel) Type() datatypes.ChannelType {
	return datatypes.ChannelEmail
}

// Send implements Channel.
func (c *EmailChannel) Send(ctx context.Context, n datatypes.Notification) error {
	to := n.Target
	if to == "" {
		to = c.cfg.DefaultTo
	}
	if to == "" {
		return fmt.Errorf("email channel: no recipient for notification %q", n.ID)
	}

	var auth smtp.Auth
	if c.cfg.Username != "" {
		auth = smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
	}

	msg := buildEmail(c.cfg.From, to, n)
	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)

	// smtp.SendMail has no context hook; run it aside so the channel
	// timeout still applies.
	errCh := make(chan error, 1)
	go func() { errCh <- c.sendMail(addr, auth, c.cfg.From, []string{to}, msg) }()
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("sending email to %s: %w", to, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sending email to %s: %w", to, ctx.Err())
	}
}

// buildEmail assembles a plain-text RFC 5322 message.
func buildEmail(from, to string, n datatypes.Notification) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: [%s] %s\r\n", strings.ToUpper(string(n.Priority)), n.Title)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(n.Body)
	if n.Category != "" {
		fmt.Fprintf(&b, "\r\n\r\nCategory: %s\r\n", n.Category)
	}
	return []byte(b.String())
}
