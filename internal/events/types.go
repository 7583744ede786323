package events

import "github.com/videobridge/capturehal/internal/hal"

// Event type constants for kelindar/event.
const (
	TypeDeviceAvailable uint32 = iota + 1
	TypeDeviceUnavailable
	TypeStreamConfigsChanged
	TypeStreamAttached
	TypeStreamDetached
	TypeFirstFrameCaptured
	TypeCaptureFailed
	TypeCaptureStats
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// DeviceAvailableEvent is published when a capture device appears.
type DeviceAvailableEvent struct {
	hal.DeviceInfo
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceAvailableEvent.
func (e DeviceAvailableEvent) Type() uint32 { return TypeDeviceAvailable }

// DeviceUnavailableEvent is published when a capture device disappears.
// Any streams open on the device have already been torn down.
type DeviceUnavailableEvent struct {
	DeviceID  int    `json:"device_id" example:"1" doc:"Device identifier"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceUnavailableEvent.
func (e DeviceUnavailableEvent) Type() uint32 { return TypeDeviceUnavailable }

// StreamConfigsChangedEvent is published when a device renegotiates its
// stream list, typically on a cable plug or unplug. Consumers must re-query
// the configs and re-attach any surfaces they still want.
type StreamConfigsChangedEvent struct {
	DeviceID    int    `json:"device_id" example:"1" doc:"Device identifier"`
	CableStatus string `json:"cable_status" example:"connected" doc:"Cable status after the change"`
	Timestamp   string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamConfigsChangedEvent.
func (e StreamConfigsChangedEvent) Type() uint32 { return TypeStreamConfigsChanged }

// StreamAttachedEvent is published when a surface is bound to a stream.
type StreamAttachedEvent struct {
	DeviceID   int    `json:"device_id" example:"1" doc:"Device identifier"`
	StreamID   int    `json:"stream_id" example:"20" doc:"Stream identifier"`
	StreamType string `json:"stream_type" example:"buffer_producer" doc:"Stream delivery type"`
	Timestamp  string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamAttachedEvent.
func (e StreamAttachedEvent) Type() uint32 { return TypeStreamAttached }

// StreamDetachedEvent is published when a stream is released.
type StreamDetachedEvent struct {
	DeviceID  int    `json:"device_id" example:"1" doc:"Device identifier"`
	StreamID  int    `json:"stream_id" example:"20" doc:"Stream identifier"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamDetachedEvent.
func (e StreamDetachedEvent) Type() uint32 { return TypeStreamDetached }

// FirstFrameCapturedEvent is published once per attachment, when the first
// frame of a buffer-producer stream reaches the surface.
type FirstFrameCapturedEvent struct {
	DeviceID  int    `json:"device_id" example:"1" doc:"Device identifier"`
	StreamID  int    `json:"stream_id" example:"20" doc:"Stream identifier"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FirstFrameCapturedEvent.
func (e FirstFrameCapturedEvent) Type() uint32 { return TypeFirstFrameCaptured }

// CaptureFailedEvent is published when a capture worker hits a fatal error
// and stops.
type CaptureFailedEvent struct {
	DeviceID  int    `json:"device_id" example:"1" doc:"Device identifier"`
	StreamID  int    `json:"stream_id" example:"20" doc:"Stream identifier"`
	Error     string `json:"error" example:"buffer dequeue failed" doc:"Error description"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureFailedEvent.
func (e CaptureFailedEvent) Type() uint32 { return TypeCaptureFailed }

// CaptureStatsEvent carries periodic per-stream capture counters.
type CaptureStatsEvent struct {
	EventType       string `json:"type" example:"capture_stats" doc:"Event discriminator"`
	DeviceID        int    `json:"device_id" example:"1" doc:"Device identifier"`
	StreamID        int    `json:"stream_id" example:"20" doc:"Stream identifier"`
	Captures        string `json:"captures" example:"1800" doc:"Capture requests issued"`
	Failures        string `json:"failures" example:"2" doc:"Failed captures"`
	FramesPresented string `json:"frames_presented" example:"1798" doc:"Frames queued to the surface"`
}

// Type returns the event type identifier for CaptureStatsEvent.
func (e CaptureStatsEvent) Type() uint32 { return TypeCaptureStats }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2026-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"hal" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
