package events

import (
	"sync"
	"testing"
)

func TestBusDispatchesInPublishOrder(t *testing.T) {
	bus := NewEventBus(16)

	var mu sync.Mutex
	var got []EventType
	bus.SubscribeAll(func(e Event) {
		mu.Lock()
		got = append(got, e.Type)
		mu.Unlock()
	})

	want := []EventType{EventTypeSessionStarted, EventTypeHuntTargetFound, EventTypeHuntAttacked, EventTypeSessionStopped}
	for _, typ := range want {
		bus.Publish(New(typ, "test", nil))
	}
	bus.Stop()

	if len(got) != len(want) {
		t.Fatalf("Expected %d events, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewEventBus(4)
	defer bus.Stop()

	id := bus.Subscribe(EventTypeError, func(Event) {})
	if n := bus.GetSubscriberCount(EventTypeError); n != 1 {
		t.Fatalf("Expected 1 subscriber, got %d", n)
	}
	bus.Unsubscribe(id)
	if n := bus.GetSubscriberCount(EventTypeError); n != 0 {
		t.Fatalf("Expected 0 subscribers after unsubscribe, got %d", n)
	}
}

func TestBusRecoversFromHandlerPanic(t *testing.T) {
	bus := NewEventBus(4)

	called := false
	bus.Subscribe(EventTypeError, func(Event) { panic("boom") })
	bus.Subscribe(EventTypeError, func(Event) { called = true })

	bus.Publish(New(EventTypeError, "test", nil))
	bus.Stop()

	if !called {
		t.Error("Expected second handler to run after first panicked")
	}

	// Publishing after Stop must not block.
	bus.Publish(New(EventTypeError, "test", nil))
	bus.Stop()
}
