package hal

import (
	"log/slog"
	"sync/atomic"
)

// eventQueueDepth bounds the dispatcher queue. Hardware events are rare;
// hitting the bound means the consumer is wedged, and dropping is preferable
// to blocking the driver's callback goroutine.
const eventQueueDepth = 64

// dispatcher re-executes driver notifications on a single consumer
// goroutine. Tasks are immutable event values; the registry is never touched
// from a driver goroutine.
type dispatcher struct {
	handler func(DeviceEvent)
	logger  *slog.Logger
	queue   chan DeviceEvent
	quit    chan struct{}
	done    chan struct{}
	dropped atomic.Uint64
}

func newDispatcher(handler func(DeviceEvent), logger *slog.Logger) *dispatcher {
	d := &dispatcher{
		handler: handler,
		logger:  logger,
		queue:   make(chan DeviceEvent, eventQueueDepth),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case <-d.quit:
			return
		case ev := <-d.queue:
			d.handler(ev)
		}
	}
}

// enqueue hands one driver event to the consumer. Never blocks: events are
// dropped with an error log when the queue is full.
func (d *dispatcher) enqueue(ev DeviceEvent) {
	select {
	case d.queue <- ev:
	default:
		d.dropped.Add(1)
		d.logger.Error("event queue full, dropping driver event",
			"kind", ev.Kind.String(), "device", ev.DeviceID)
	}
}

// stop terminates the consumer goroutine and waits for it to exit. Events
// still queued are discarded.
func (d *dispatcher) stop() {
	close(d.quit)
	<-d.done
}

func (d *dispatcher) droppedCount() uint64 {
	return d.dropped.Load()
}
