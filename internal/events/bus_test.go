/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "testing"

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventRunStarted)

	bus.Publish(EventRunStarted, Payload{"run_id": "r1"})

	select {
	case payload := <-sub:
		if payload["run_id"] != "r1" {
			t.Errorf("payload = %+v", payload)
		}
	default:
		t.Fatal("no payload delivered")
	}
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventSlotCommitted)

	// Channel capacity is 8; extra publishes must not block.
	for i := 0; i < 20; i++ {
		bus.Publish(EventSlotCommitted, Payload{"i": i})
	}
	if len(sub) != 8 {
		t.Errorf("buffered = %d, want 8", len(sub))
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventRunCompleted)
	bus.Unsubscribe(EventRunCompleted, sub)

	if _, ok := <-sub; ok {
		t.Error("channel not closed")
	}

	// Publishing after unsubscribe must not panic.
	bus.Publish(EventRunCompleted, Payload{})
}
