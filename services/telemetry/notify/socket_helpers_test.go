// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package notify

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialWebsocket(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", url, err)
	}
	return conn
}

func readJSONFrame(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading frame: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decoding frame: %v\n%s", err, data)
	}
}

func writeJSONFrame(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("encoding frame: %v", err)
	}
	conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("writing frame: %v", err)
	}
}

// waitForClients polls until the hub sees n connected clients.
func waitForClients(t *testing.T, hub *SocketHub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("hub never reached %d clients (have %d)", n, hub.ClientCount())
}

// waitForSubscription polls until some client subscribed to category.
func waitForSubscription(t *testing.T, hub *SocketHub, category string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.RLock()
		for c := range hub.clients {
			c.mu.Lock()
			subscribed := c.categories[category]
			c.mu.Unlock()
			if subscribed {
				hub.mu.RUnlock()
				return
			}
		}
		hub.mu.RUnlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no client subscribed to %q", category)
}
