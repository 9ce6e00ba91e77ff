// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
)

// fakeChannel records deliveries and optionally fails or panics.
type fakeChannel struct {
	channelType datatypes.ChannelType
	fail        error
	panics      bool

	mu   sync.Mutex
	sent []datatypes.Notification
}

func (f *fakeChannel) Type() datatypes.ChannelType { return f.channelType }

func (f *fakeChannel) Send(ctx context.Context, n datatypes.Notification) error {
	if f.panics {
		panic("channel exploded")
	}
	if f.fail != nil {
		return f.fail
	}
	f.mu.Lock()
	f.sent = append(f.sent, n)
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestDispatcher_FanOut(t *testing.T) {
	d := New(nil, nil)
	email := &fakeChannel{channelType: datatypes.ChannelEmail}
	socket := &fakeChannel{channelType: datatypes.ChannelSocket}
	d.RegisterChannel(email)
	d.RegisterChannel(socket)

	n, results, err := d.Send(context.Background(), datatypes.Notification{
		Title:    "Disk almost full",
		Channels: []datatypes.ChannelType{datatypes.ChannelEmail, datatypes.ChannelSocket},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, datatypes.PriorityNormal, n.Priority)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.OK, "channel %s failed: %s", r.Channel, r.Error)
	}
	assert.Equal(t, 1, email.count())
	assert.Equal(t, 1, socket.count())
}

func TestDispatcher_ChannelIsolation(t *testing.T) {
	d := New(nil, nil)
	failing := &fakeChannel{channelType: datatypes.ChannelEmail, fail: errors.New("smtp down")}
	healthy := &fakeChannel{channelType: datatypes.ChannelSocket}
	d.RegisterChannel(failing)
	d.RegisterChannel(healthy)

	_, results, err := d.Send(context.Background(), datatypes.Notification{
		Title:    "test",
		Channels: []datatypes.ChannelType{datatypes.ChannelEmail, datatypes.ChannelSocket},
	})
	require.NoError(t, err, "Send must succeed despite a failing channel")
	require.Len(t, results, 2)

	byChannel := map[datatypes.ChannelType]datatypes.DeliveryResult{}
	for _, r := range results {
		byChannel[r.Channel] = r
	}
	assert.False(t, byChannel[datatypes.ChannelEmail].OK)
	assert.Contains(t, byChannel[datatypes.ChannelEmail].Error, "smtp down")
	assert.True(t, byChannel[datatypes.ChannelSocket].OK)
	assert.Equal(t, 1, healthy.count(), "healthy channel must still deliver")
}

func TestDispatcher_PanicIsolation(t *testing.T) {
	d := New(nil, nil)
	d.RegisterChannel(&fakeChannel{channelType: datatypes.ChannelEmail, panics: true})
	healthy := &fakeChannel{channelType: datatypes.ChannelSocket}
	d.RegisterChannel(healthy)

	_, results, err := d.Send(context.Background(), datatypes.Notification{
		Title:    "test",
		Channels: []datatypes.ChannelType{datatypes.ChannelEmail, datatypes.ChannelSocket},
	})
	require.NoError(t, err)
	byChannel := map[datatypes.ChannelType]datatypes.DeliveryResult{}
	for _, r := range results {
		byChannel[r.Channel] = r
	}
	assert.False(t, byChannel[datatypes.ChannelEmail].OK)
	assert.Contains(t, byChannel[datatypes.ChannelEmail].Error, "panicked")
	assert.Equal(t, 1, healthy.count())
}

func TestDispatcher_UnconfiguredChannel(t *testing.T) {
	d := New(nil, nil)
	_, results, err := d.Send(context.Background(), datatypes.Notification{
		Title:    "test",
		Channels: []datatypes.ChannelType{datatypes.ChannelSMS},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].OK)
	assert.Contains(t, results[0].Error, "not configured")
}

func TestDispatcher_Validation(t *testing.T) {
	d := New(nil, nil)
	_, _, err := d.Send(context.Background(), datatypes.Notification{
		Channels: []datatypes.ChannelType{datatypes.ChannelEmail},
	})
	assert.Error(t, err, "empty title must be rejected")

	_, _, err = d.Send(context.Background(), datatypes.Notification{Title: "x"})
	assert.Error(t, err, "no channels must be rejected")
}

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name string
		text string
		vars map[string]string
		want string
	}{
		{"simple", "Hello {{name}}", map[string]string{"name": "ops"}, "Hello ops"},
		{"spaces", "Value: {{ value }}", map[string]string{"value": "42"}, "Value: 42"},
		{"repeated", "{{x}} and {{x}}", map[string]string{"x": "a"}, "a and a"},
		{"unknown kept", "Hi {{missing}}", nil, "Hi {{missing}}"},
		{"no slots", "plain", map[string]string{"a": "b"}, "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderTemplate(tt.text, tt.vars))
		})
	}
}

func TestDispatcher_SendTemplate(t *testing.T) {
	d := New(nil, nil)
	sock := &fakeChannel{channelType: datatypes.ChannelSocket}
	d.RegisterChannel(sock)

	require.NoError(t, d.RegisterTemplate(datatypes.NotificationTemplate{
		ID:       "backup-done",
		Title:    "Backup {{cadence}} finished",
		Body:     "Archive size: {{size}}",
		Category: "backup",
		Priority: datatypes.PriorityLow,
	}))

	n, results, err := d.SendTemplate(context.Background(), "backup-done",
		map[string]string{"cadence": "daily", "size": "12MB"},
		[]datatypes.ChannelType{datatypes.ChannelSocket}, "")
	require.NoError(t, err)
	assert.Equal(t, "Backup daily finished", n.Title)
	assert.Equal(t, "Archive size: 12MB", n.Body)
	assert.Equal(t, "backup", n.Category)
	assert.True(t, results[0].OK)

	_, _, err = d.SendTemplate(context.Background(), "nope", nil,
		[]datatypes.ChannelType{datatypes.ChannelSocket}, "")
	assert.Error(t, err)
}

func TestDispatcher_StoreLifecycle(t *testing.T) {
	store, err := OpenBadgerStore("", nil)
	require.NoError(t, err)
	d := New(store, nil)
	defer d.Stop()
	sock := &fakeChannel{channelType: datatypes.ChannelSocket}
	d.RegisterChannel(sock)

	n, _, err := d.Send(context.Background(), datatypes.Notification{
		Title:    "persisted",
		Channels: []datatypes.ChannelType{datatypes.ChannelSocket},
	})
	require.NoError(t, err)

	list, err := d.List(10, false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, n.ID, list[0].ID)
	assert.False(t, list[0].Read)

	require.NoError(t, d.MarkRead(n.ID, "u-42"))
	list, err = d.List(10, true)
	require.NoError(t, err)
	assert.Empty(t, list, "read notification still listed as unread")

	got, ok, err := store.Get(n.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Read)
	assert.False(t, got.ReadAt.IsZero())
	assert.Equal(t, "u-42", got.ReadBy)

	// Re-marking overwrites the reader rather than erroring.
	require.NoError(t, d.MarkRead(n.ID, "u-7"))
	got, _, err = store.Get(n.ID)
	require.NoError(t, err)
	assert.Equal(t, "u-7", got.ReadBy)

	assert.Error(t, d.MarkRead("missing-id", "u-42"))
}

func TestBadgerStore_SweepExpired(t *testing.T) {
	store, err := OpenBadgerStore("", nil)
	require.NoError(t, err)
	defer store.Close()

	now := time.Now()
	require.NoError(t, store.Put(datatypes.Notification{
		ID: "expired", Title: "old", CreatedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(time.Minute), // alive in badger, expired per sweep clock below
	}))
	require.NoError(t, store.Put(datatypes.Notification{
		ID: "fresh", Title: "new", CreatedAt: now,
	}))

	removed, err := store.SweepExpired(now.Add(2 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, ok, err := store.Get("expired")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = store.Get("fresh")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBadgerStore_ListOrderAndLimit(t *testing.T) {
	store, err := OpenBadgerStore("", nil)
	require.NoError(t, err)
	defer store.Close()

	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Put(datatypes.Notification{
			ID: id, Title: id, CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	list, err := store.List(2, false)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].ID, "newest first")
	assert.Equal(t, "b", list[1].ID)
}
