package exporters

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/videobridge/capturehal/internal/events"
	"github.com/videobridge/capturehal/internal/metrics"
)

// EventPublisher is the bus surface the exporter needs.
type EventPublisher interface {
	Publish(ev events.Event)
}

// StatsExporter periodically publishes per-stream capture counters to the
// event bus for SSE clients.
type StatsExporter struct {
	eventBus EventPublisher
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewStatsExporter creates an exporter publishing once per second.
func NewStatsExporter(eventBus EventPublisher) *StatsExporter {
	return &StatsExporter{
		eventBus: eventBus,
		interval: time.Second,
	}
}

// Start begins the export loop.
func (s *StatsExporter) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run()
}

// Stop stops the exporter and waits for the goroutine to finish.
func (s *StatsExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *StatsExporter) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.publishStats()
		}
	}
}

func (s *StatsExporter) publishStats() {
	for key, m := range metrics.GetAllStreamMetrics() {
		s.eventBus.Publish(events.CaptureStatsEvent{
			EventType:       "capture_stats",
			DeviceID:        key.DeviceID,
			StreamID:        key.StreamID,
			Captures:        strconv.FormatUint(m.Captures, 10),
			Failures:        strconv.FormatUint(m.Failures, 10),
			FramesPresented: strconv.FormatUint(m.FramesPresented, 10),
		})
	}
}

// GetEventTypes returns event types for SSE endpoint registration.
func GetEventTypes() map[string]any {
	return map[string]any{
		"capture-stats": events.CaptureStatsEvent{},
	}
}
