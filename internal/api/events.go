package api

import (
	"context"
	"maps"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/videobridge/capturehal/internal/events"
	"github.com/videobridge/capturehal/internal/metrics/exporters"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time event stream for device lifecycle, attachment changes, and capture activity",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func() map[string]any {
		eventTypes := map[string]any{
			"device-available":       events.DeviceAvailableEvent{},
			"device-unavailable":     events.DeviceUnavailableEvent{},
			"stream-configs-changed": events.StreamConfigsChangedEvent{},
			"stream-attached":        events.StreamAttachedEvent{},
			"stream-detached":        events.StreamDetachedEvent{},
			"first-frame-captured":   events.FirstFrameCapturedEvent{},
			"capture-failed":         events.CaptureFailedEvent{},
		}
		maps.Copy(eventTypes, exporters.GetEventTypes())
		return eventTypes
	}(), func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 10)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.DeviceAvailableEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DeviceUnavailableEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StreamConfigsChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StreamAttachedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StreamDetachedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.FirstFrameCapturedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CaptureFailedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CaptureStatsEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Replay the current device set so a client joining late still
		// sees every device without a second request.
		for _, info := range s.service.Devices() {
			if err := send.Data(events.DeviceAvailableEvent{
				DeviceInfo: info,
				Timestamp:  time.Now().UTC().Format(time.RFC3339),
			}); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
