// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/amadalihammoud/brimu-telemetry/pkg/logging"
	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
)

const (
	socketWriteWait  = 10 * time.Second
	socketPongWait   = 60 * time.Second
	socketPingPeriod = 54 * time.Second
	socketSendBuffer = 32
)

var socketUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The telemetry socket is same-origin in production; the admin UI
	// proxies through the API host.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// socketClient is one connected websocket consumer.
type socketClient struct {
	conn       *websocket.Conn
	send       chan []byte
	userID     string
	categories map[string]bool // empty means all categories
	mu         sync.Mutex
}

// subscribeMessage is the client-to-server control frame.
type subscribeMessage struct {
	Action     string   `json:"action"`
	Categories []string `json:"categories"`
}

// wantsCategory applies the client's subscription filter.
func (c *socketClient) wantsCategory(category string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.categories) == 0 {
		return true
	}
	return c.categories[category]
}

// =============================================================================
// Hub
// =============================================================================

// SocketHub fans notifications out to connected websocket clients.
//
// Clients subscribe to categories; a notification with a Target only
// reaches clients authenticated as that user.
type SocketHub struct {
	mu      sync.RWMutex
	clients map[*socketClient]bool
	log     *logging.Logger
}

var _ Channel = (*SocketHub)(nil)

// NewSocketHub creates an empty hub.
func NewSocketHub(log *logging.Logger) *SocketHub {
	return &SocketHub{
		clients: make(map[*socketClient]bool),
		log:     log,
	}
}

// Type implements Channel.
func (h *SocketHub) Type() datatypes.ChannelType {
	return datatypes.ChannelSocket
}

// Send implements Channel by broadcasting to matching clients. A hub
// with no connected clients is not an error; the notification simply
// has no live audience.
func (h *SocketHub) Send(ctx context.Context, n datatypes.Notification) error {
	payload, err := json.Marshal(map[string]any{
		"type":         "notification",
		"notification": n,
	})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if n.Target != "" && c.userID != n.Target {
			continue
		}
		if !c.wantsCategory(n.Category) {
			continue
		}
		select {
		case c.send <- payload:
		default:
			// Slow consumer; drop rather than stall the broadcast.
		}
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *SocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleUpgrade upgrades an HTTP request to a websocket session. The
// userID comes from the caller's authentication layer and may be
// empty for anonymous dashboards.
func (h *SocketHub) HandleUpgrade(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := socketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &socketClient{
		conn:       conn,
		send:       make(chan []byte, socketSendBuffer),
		userID:     userID,
		categories: make(map[string]bool),
	}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
	return nil
}

// readPump consumes control frames (subscriptions) until disconnect.
func (h *SocketHub) readPump(c *socketClient) {
	defer h.drop(c)

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(socketPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(socketPongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg subscribeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Action == "subscribe" {
			c.mu.Lock()
			c.categories = make(map[string]bool, len(msg.Categories))
			for _, cat := range msg.Categories {
				c.categories[cat] = true
			}
			c.mu.Unlock()
		}
	}
}

// writePump drains the send buffer and keeps the connection alive.
func (h *SocketHub) writePump(c *socketClient) {
	ticker := time.NewTicker(socketPingPeriod)
	defer func() {
		ticker.Stop()
		h.drop(c)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drop detaches a client; safe to call from both pumps.
func (h *SocketHub) drop(c *socketClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}

// Close disconnects every client.
func (h *SocketHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		c.conn.Close()
		delete(h.clients, c)
	}
}
