package events

import (
	"testing"
	"time"

	"github.com/videobridge/capturehal/internal/hal"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan DeviceAvailableEvent, 1)

	unsub := bus.Subscribe(func(e DeviceAvailableEvent) {
		received <- e
	})
	defer unsub()

	ev := DeviceAvailableEvent{
		DeviceInfo: hal.DeviceInfo{DeviceID: 1, Type: hal.DeviceTypeHDMI, PortID: 2},
		Timestamp:  "2026-01-27T10:30:00Z",
	}
	bus.Publish(ev)

	got := <-received
	if got.DeviceID != ev.DeviceID || got.PortID != ev.PortID {
		t.Errorf("expected device %d port %d, got %+v", ev.DeviceID, ev.PortID, got)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan FirstFrameCapturedEvent, 1)
	received2 := make(chan FirstFrameCapturedEvent, 1)

	unsub1 := bus.Subscribe(func(e FirstFrameCapturedEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(e FirstFrameCapturedEvent) {
		received2 <- e
	})
	defer unsub2()

	bus.Publish(FirstFrameCapturedEvent{DeviceID: 1, StreamID: 20})

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan StreamDetachedEvent, 1)

	unsub := bus.Subscribe(func(e StreamDetachedEvent) {
		received <- e
	})

	bus.Publish(StreamDetachedEvent{DeviceID: 1, StreamID: 20})
	<-received

	unsub()

	bus.Publish(StreamDetachedEvent{DeviceID: 1, StreamID: 21})
	select {
	case <-received:
		t.Fatal("should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	availableReceived := make(chan bool, 1)
	attachedReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ DeviceAvailableEvent) {
		availableReceived <- true
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(_ StreamAttachedEvent) {
		attachedReceived <- true
	})
	defer unsub2()

	bus.Publish(DeviceAvailableEvent{DeviceInfo: hal.DeviceInfo{DeviceID: 1}})
	<-availableReceived

	select {
	case <-attachedReceived:
		t.Fatal("stream subscriber should not receive device events")
	case <-time.After(10 * time.Millisecond):
	}

	bus.Publish(StreamAttachedEvent{DeviceID: 1, StreamID: 20})
	<-attachedReceived

	select {
	case <-availableReceived:
		t.Fatal("device subscriber should not receive stream events")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 8)

	unsub := SubscribeToChannel[StreamDetachedEvent](bus, ch)
	defer unsub()

	bus.Publish(StreamDetachedEvent{DeviceID: 1, StreamID: 20})

	select {
	case got := <-ch:
		ev, ok := got.(StreamDetachedEvent)
		if !ok {
			t.Fatalf("unexpected payload type %T", got)
		}
		if ev.StreamID != 20 {
			t.Errorf("expected stream 20, got %d", ev.StreamID)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}
