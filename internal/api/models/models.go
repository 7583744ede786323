// Package models holds the request and response shapes of the HTTP API.
package models

import (
	"github.com/videobridge/capturehal/internal/bridge"
	"github.com/videobridge/capturehal/internal/hal"
)

// HealthData is the health check payload.
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status detail"`
}

// HealthResponse is the HTTP response for the health check.
type HealthResponse struct {
	Body HealthData
}

// VersionData is the build metadata payload.
type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"a1b2c3d" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2026-01-27T10:00:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"1234" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24" doc:"Go toolchain version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target platform"`
}

// VersionResponse is the HTTP response for version information.
type VersionResponse struct {
	Body VersionData
}

// DeviceListData enumerates the announced capture devices.
type DeviceListData struct {
	Devices []hal.DeviceInfo `json:"devices" doc:"Announced capture devices"`
	Count   int              `json:"count" example:"2" doc:"Number of devices"`
}

// DeviceListResponse is the HTTP response for device enumeration.
type DeviceListResponse struct {
	Body DeviceListData
}

// DeviceResponse is the HTTP response for one device.
type DeviceResponse struct {
	Body hal.DeviceInfo
}

// StreamConfigsData enumerates a device's capture configurations.
type StreamConfigsData struct {
	DeviceID int                `json:"device_id" example:"1" doc:"Device identifier"`
	Configs  []hal.StreamConfig `json:"configs" doc:"Available stream configurations"`
	Count    int                `json:"count" example:"2" doc:"Number of configurations"`
}

// StreamConfigsResponse is the HTTP response for stream configuration
// enumeration.
type StreamConfigsResponse struct {
	Body StreamConfigsData
}

// AttachmentListData enumerates active surface bindings.
type AttachmentListData struct {
	Attachments []bridge.Attachment `json:"attachments" doc:"Active surface bindings"`
	Count       int                 `json:"count" example:"1" doc:"Number of bindings"`
}

// AttachmentListResponse is the HTTP response for attachment enumeration.
type AttachmentListResponse struct {
	Body AttachmentListData
}

// AttachmentResponse is the HTTP response for a single attachment.
type AttachmentResponse struct {
	Body bridge.Attachment
}

// LogEntryData is one formatted log line from the in-memory history.
type LogEntryData struct {
	Timestamp string         `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Log timestamp"`
	Level     string         `json:"level" example:"info" doc:"Log level"`
	Module    string         `json:"module" example:"session" doc:"Originating module"`
	Message   string         `json:"message" example:"stream attached" doc:"Log message"`
	Attrs     map[string]any `json:"attrs,omitempty" doc:"Structured attributes"`
}

// LogHistoryData is the buffered log history payload.
type LogHistoryData struct {
	Entries []LogEntryData `json:"entries" doc:"Buffered log entries, oldest first"`
	Count   int            `json:"count" example:"120" doc:"Number of entries"`
}

// LogHistoryResponse is the HTTP response for the log history.
type LogHistoryResponse struct {
	Body LogHistoryData
}
