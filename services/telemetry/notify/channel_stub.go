// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package notify

import (
	"context"

	"github.com/amadalihammoud/brimu-telemetry/pkg/logging"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
)

// LogOnlyChannel records deliveries in the application log without an
// external provider. SMS and push registrations use it until a real
// gateway is configured, so dispatch plumbing stays exercised either
// way.
type LogOnlyChannel struct {
	channelType datatypes.ChannelType
	log         *logging.Logger
}

var _ Channel = (*LogOnlyChannel)(nil)

// NewLogOnlyChannel creates a stub for the given channel type.
func NewLogOnlyChannel(t datatypes.ChannelType, log *logging.Logger) *LogOnlyChannel {
	return &LogOnlyChannel{channelType: t, log: log}
}

// Type implements Channel.
func (c *LogOnlyChannel) Type() datatypes.ChannelType {
	return c.channelType
}

// Send implements Channel.
func (c *LogOnlyChannel) Send(ctx context.Context, n datatypes.Notification) error {
	if c.log != nil {
		c.log.Info("notification delivered to log-only channel",
			"channel", string(c.channelType),
			"id", n.ID,
			"title", n.Title,
			"priority", string(n.Priority))
	}
	return nil
}
