package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher for event broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(DeviceAvailableEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event's Publish is generic, so dispatch per concrete type.
	switch e := ev.(type) {
	case DeviceAvailableEvent:
		event.Publish(b.dispatcher, e)
	case DeviceUnavailableEvent:
		event.Publish(b.dispatcher, e)
	case StreamConfigsChangedEvent:
		event.Publish(b.dispatcher, e)
	case StreamAttachedEvent:
		event.Publish(b.dispatcher, e)
	case StreamDetachedEvent:
		event.Publish(b.dispatcher, e)
	case FirstFrameCapturedEvent:
		event.Publish(b.dispatcher, e)
	case CaptureFailedEvent:
		event.Publish(b.dispatcher, e)
	case CaptureStatsEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function. The handler's
// parameter type determines which events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e DeviceAvailableEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(DeviceAvailableEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceUnavailableEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamConfigsChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamAttachedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamDetachedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FirstFrameCapturedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CaptureFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CaptureStatsEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
