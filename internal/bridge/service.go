// Package bridge is the service layer between the capture session and the
// outward-facing surfaces. It owns the driver session, caches announced
// devices, creates surfaces for attachments, and republishes session
// notifications onto the event bus.
package bridge

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/videobridge/capturehal/internal/events"
	"github.com/videobridge/capturehal/internal/hal"
	"github.com/videobridge/capturehal/internal/logging"
	"github.com/videobridge/capturehal/internal/metrics"
)

// SurfaceFactory creates the presentation surface for one attachment.
type SurfaceFactory func(deviceID, streamID int) hal.Surface

// Attachment describes one active surface binding.
type Attachment struct {
	DeviceID   int    `json:"device_id" doc:"Device identifier"`
	StreamID   int    `json:"stream_id" doc:"Stream identifier"`
	StreamType string `json:"stream_type" doc:"Frame delivery model"`
	AttachedAt string `json:"attached_at" doc:"Attachment timestamp"`
}

type attachKey struct {
	deviceID int
	streamID int
}

type attachment struct {
	surface    hal.Surface
	streamType hal.StreamType
	attachedAt time.Time
}

// Service wires the capture session to the event bus and metrics.
type Service struct {
	logger  *slog.Logger
	bus     *events.Bus
	factory SurfaceFactory
	session *hal.Session

	mu          sync.Mutex
	devices     map[int]hal.DeviceInfo
	attachments map[attachKey]*attachment
}

// New opens a capture session on the driver and returns the service. The
// service itself is the session's notification sink.
func New(driver hal.Driver, bus *events.Bus, factory SurfaceFactory) (*Service, error) {
	s := &Service{
		logger:      logging.GetLogger("bridge"),
		bus:         bus,
		factory:     factory,
		devices:     make(map[int]hal.DeviceInfo),
		attachments: make(map[attachKey]*attachment),
	}

	session, err := hal.Open(meteredDriver{driver}, s)
	if err != nil {
		return nil, err
	}
	s.session = session
	return s, nil
}

// Close shuts the session down and releases all attachments.
func (s *Service) Close() error {
	err := s.session.Close()

	s.mu.Lock()
	for key, att := range s.attachments {
		closeSurface(att.surface)
		metrics.DeleteStreamMetrics(key.deviceID, key.streamID)
	}
	s.attachments = make(map[attachKey]*attachment)
	s.mu.Unlock()
	return err
}

// Devices returns the currently announced devices, ordered by id.
func (s *Service) Devices() []hal.DeviceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]hal.DeviceInfo, 0, len(s.devices))
	for _, info := range s.devices {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// Device returns one announced device.
func (s *Service) Device(deviceID int) (hal.DeviceInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.devices[deviceID]
	return info, ok
}

// StreamConfigs enumerates the current capture configurations of a device.
func (s *Service) StreamConfigs(deviceID int) []hal.StreamConfig {
	return s.session.StreamConfigs(deviceID)
}

// Attach creates a surface for the stream and binds it.
func (s *Service) Attach(deviceID, streamID int) error {
	streamType := hal.StreamType(0)
	for _, cfg := range s.session.StreamConfigs(deviceID) {
		if cfg.StreamID == streamID {
			streamType = cfg.Type
			break
		}
	}

	surface := meteredSurface{
		Surface:  s.factory(deviceID, streamID),
		deviceID: deviceID,
		streamID: streamID,
	}
	if err := s.session.AddOrUpdateStream(deviceID, streamID, surface); err != nil {
		closeSurface(surface.Surface)
		return err
	}

	s.mu.Lock()
	s.attachments[attachKey{deviceID, streamID}] = &attachment{
		surface:    surface,
		streamType: streamType,
		attachedAt: time.Now(),
	}
	s.mu.Unlock()

	s.logger.Info("stream attached", "device", deviceID, "stream", streamID, "type", streamType.String())
	s.bus.Publish(events.StreamAttachedEvent{
		DeviceID:   deviceID,
		StreamID:   streamID,
		StreamType: streamType.String(),
		Timestamp:  timestamp(),
	})
	return nil
}

// Detach releases the stream and its surface.
func (s *Service) Detach(deviceID, streamID int) error {
	if err := s.session.RemoveStream(deviceID, streamID); err != nil {
		return err
	}
	s.forgetAttachment(attachKey{deviceID, streamID})

	s.logger.Info("stream detached", "device", deviceID, "stream", streamID)
	s.bus.Publish(events.StreamDetachedEvent{
		DeviceID:  deviceID,
		StreamID:  streamID,
		Timestamp: timestamp(),
	})
	return nil
}

// Attachments lists active surface bindings ordered by device then stream.
func (s *Service) Attachments() []Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Attachment, 0, len(s.attachments))
	for key, att := range s.attachments {
		out = append(out, Attachment{
			DeviceID:   key.deviceID,
			StreamID:   key.streamID,
			StreamType: att.streamType.String(),
			AttachedAt: att.attachedAt.UTC().Format(time.RFC3339),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DeviceID != out[j].DeviceID {
			return out[i].DeviceID < out[j].DeviceID
		}
		return out[i].StreamID < out[j].StreamID
	})
	return out
}

// ActiveWorkers reports the running capture worker count.
func (s *Service) ActiveWorkers() int {
	return s.session.ActiveWorkers()
}

// EventsDropped reports the session's dropped event counter.
func (s *Service) EventsDropped() uint64 {
	return s.session.EventsDropped()
}

// OnDeviceAvailable implements hal.Notifier.
func (s *Service) OnDeviceAvailable(info hal.DeviceInfo) {
	s.mu.Lock()
	s.devices[info.DeviceID] = info
	s.mu.Unlock()

	s.logger.Info("device available", "device", info.DeviceID, "type", info.Type.String())
	s.bus.Publish(events.DeviceAvailableEvent{
		DeviceInfo: info,
		Timestamp:  timestamp(),
	})
}

// OnDeviceUnavailable implements hal.Notifier.
func (s *Service) OnDeviceUnavailable(deviceID int) {
	s.mu.Lock()
	delete(s.devices, deviceID)
	s.mu.Unlock()
	s.dropDeviceAttachments(deviceID)

	s.logger.Info("device unavailable", "device", deviceID)
	s.bus.Publish(events.DeviceUnavailableEvent{
		DeviceID:  deviceID,
		Timestamp: timestamp(),
	})
}

// OnStreamConfigsChanged implements hal.Notifier. The session has already
// torn down the device's streams; surfaces must be re-attached.
func (s *Service) OnStreamConfigsChanged(deviceID int, cable hal.CableStatus) {
	s.mu.Lock()
	if info, ok := s.devices[deviceID]; ok {
		info.CableStatus = cable
		s.devices[deviceID] = info
	}
	s.mu.Unlock()
	s.dropDeviceAttachments(deviceID)

	s.logger.Info("stream configurations changed", "device", deviceID, "cable", cable.String())
	s.bus.Publish(events.StreamConfigsChangedEvent{
		DeviceID:    deviceID,
		CableStatus: cable.String(),
		Timestamp:   timestamp(),
	})
}

// OnFirstFrameCaptured implements hal.Notifier.
func (s *Service) OnFirstFrameCaptured(deviceID, streamID int) {
	s.logger.Info("first frame captured", "device", deviceID, "stream", streamID)
	s.bus.Publish(events.FirstFrameCapturedEvent{
		DeviceID:  deviceID,
		StreamID:  streamID,
		Timestamp: timestamp(),
	})
}

// OnCaptureFailed implements hal.Notifier. The worker is already dead; the
// attachment stays so callers can detach and re-attach explicitly.
func (s *Service) OnCaptureFailed(deviceID, streamID int, err error) {
	s.logger.Error("capture failed", "device", deviceID, "stream", streamID, "error", err)
	s.bus.Publish(events.CaptureFailedEvent{
		DeviceID:  deviceID,
		StreamID:  streamID,
		Error:     err.Error(),
		Timestamp: timestamp(),
	})
}

func (s *Service) dropDeviceAttachments(deviceID int) {
	s.mu.Lock()
	var dropped []attachKey
	for key, att := range s.attachments {
		if key.deviceID == deviceID {
			closeSurface(att.surface)
			dropped = append(dropped, key)
			delete(s.attachments, key)
		}
	}
	s.mu.Unlock()

	for _, key := range dropped {
		metrics.DeleteStreamMetrics(key.deviceID, key.streamID)
	}
}

func (s *Service) forgetAttachment(key attachKey) {
	s.mu.Lock()
	att, ok := s.attachments[key]
	if ok {
		delete(s.attachments, key)
	}
	s.mu.Unlock()

	if ok {
		closeSurface(att.surface)
		metrics.DeleteStreamMetrics(key.deviceID, key.streamID)
	}
}

// closeSurface releases surfaces that support closing.
func closeSurface(surface hal.Surface) {
	if ms, ok := surface.(meteredSurface); ok {
		surface = ms.Surface
	}
	if closer, ok := surface.(interface{ Close() }); ok {
		closer.Close()
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
