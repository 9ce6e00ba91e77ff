// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bus

import (
	"testing"
	"time"

	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := New(nil)
	defer b.Close()

	ch, unsub := b.Subscribe(datatypes.TopicLogs, 4)
	defer unsub()

	b.Publish(datatypes.TopicLogs, "payload-1")
	b.Publish(datatypes.TopicMetrics, "wrong-topic")

	select {
	case ev := <-ch:
		if ev.Topic != datatypes.TopicLogs {
			t.Errorf("Topic = %v, want %v", ev.Topic, datatypes.TopicLogs)
		}
		if ev.Payload != "payload-1" {
			t.Errorf("Payload = %v, want payload-1", ev.Payload)
		}
		if ev.Timestamp.IsZero() {
			t.Error("Timestamp not set")
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	select {
	case ev := <-ch:
		t.Fatalf("received event from wrong topic: %+v", ev)
	default:
	}
}

func TestBus_DropsWhenFull(t *testing.T) {
	b := New(nil)
	defer b.Close()

	ch, unsub := b.Subscribe(datatypes.TopicLogs, 1)
	defer unsub()

	b.Publish(datatypes.TopicLogs, 1)
	b.Publish(datatypes.TopicLogs, 2) // buffer full, dropped

	if got := b.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
	ev := <-ch
	if ev.Payload != 1 {
		t.Errorf("Payload = %v, want 1", ev.Payload)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New(nil)
	defer b.Close()

	ch, unsub := b.Subscribe(datatypes.TopicAnomalies, 1)
	if got := b.SubscriberCount(datatypes.TopicAnomalies); got != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", got)
	}

	unsub()
	unsub() // idempotent

	if got := b.SubscriberCount(datatypes.TopicAnomalies); got != 0 {
		t.Errorf("SubscriberCount after unsub = %d, want 0", got)
	}
	if _, open := <-ch; open {
		t.Error("channel still open after unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	b.Publish(datatypes.TopicAnomalies, "late")
}

func TestBus_Close(t *testing.T) {
	b := New(nil)
	ch, _ := b.Subscribe(datatypes.TopicHealth, 1)

	b.Close()
	b.Close() // idempotent

	if _, open := <-ch; open {
		t.Error("channel still open after Close")
	}

	// Subscribe after close returns a closed channel.
	ch2, unsub := b.Subscribe(datatypes.TopicHealth, 1)
	unsub()
	if _, open := <-ch2; open {
		t.Error("post-close subscription channel open")
	}

	b.Publish(datatypes.TopicHealth, "ignored")
}

func TestBus_ConcurrentPublish(t *testing.T) {
	b := New(nil)
	defer b.Close()

	ch, unsub := b.Subscribe(datatypes.TopicMetrics, 1000)
	defer unsub()

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				b.Publish(datatypes.TopicMetrics, j)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
		default:
			if received != 1000 {
				t.Errorf("received %d events, want 1000", received)
			}
			return
		}
	}
}
