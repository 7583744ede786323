// Package hal bridges a hardware capture driver to presentation surfaces.
//
// A Session owns the connection registry for one driver: it opens and closes
// driver streams, binds sideband sources or capture workers to surfaces, and
// serializes asynchronous driver notifications onto a single consumer
// goroutine before they mutate the registry.
package hal

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/videobridge/capturehal/internal/logging"
)

// connection is the mutable binding between a stream and a consumer surface.
// It holds exactly one of a sideband handle or a capture worker once a
// surface has been attached.
type connection struct {
	surface    Surface
	streamType StreamType
	sideband   SidebandHandle
	worker     *captureWorker
}

// Session is one open bridge onto a capture driver. Its lifetime spans
// Open to Close; closing clears the driver callback and releases every
// connection.
type Session struct {
	driver Driver
	sink   Notifier
	logger *slog.Logger

	dispatcher *dispatcher

	// streamMu serializes stream (re)configuration so slow driver calls in
	// AddOrUpdateStream/RemoveStream never block unrelated device events.
	streamMu sync.Mutex

	// mu guards connections and closed. Lock order: streamMu before mu.
	mu          sync.Mutex
	connections map[int]map[int]*connection
	closed      bool
}

// Open connects to the driver: installs the asynchronous callback and starts
// the event consumer. The sink receives device lifecycle and first-frame
// notifications.
func Open(driver Driver, sink Notifier) (*Session, error) {
	s := &Session{
		driver:      driver,
		sink:        sink,
		logger:      logging.GetLogger("hal"),
		connections: make(map[int]map[int]*connection),
	}
	s.dispatcher = newDispatcher(s.handleDeviceEvent, s.logger)
	if err := driver.SetCallback(s); err != nil {
		s.dispatcher.stop()
		return nil, NewError(ErrCodeDriverError, "installing driver callback failed", err)
	}
	return s, nil
}

// Close clears the driver callback, stops the event consumer and tears down
// every connection. Safe to call more than once.
func (s *Session) Close() error {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	deviceIDs := make([]int, 0, len(s.connections))
	for id := range s.connections {
		deviceIDs = append(deviceIDs, id)
	}
	s.mu.Unlock()

	if err := s.driver.SetCallback(nil); err != nil {
		s.logger.Warn("clearing driver callback failed", "error", err)
	}
	s.dispatcher.stop()

	for _, deviceID := range deviceIDs {
		s.teardownDeviceLocked(deviceID)
		s.mu.Lock()
		delete(s.connections, deviceID)
		s.mu.Unlock()
	}
	return nil
}

// NotifyDeviceEvent implements DriverCallback. It may be called from any
// driver goroutine; handling happens on the session's consumer goroutine.
func (s *Session) NotifyDeviceEvent(ev DeviceEvent) {
	s.dispatcher.enqueue(ev)
}

// NotifyCaptured implements DriverCallback. Completion signals go straight
// to the owning worker, which serializes under its own lock.
func (s *Session) NotifyCaptured(res CaptureResult) {
	s.onCaptured(res.DeviceID, res.StreamID, res.Seq, res.Succeeded)
}

// AddOrUpdateStream attaches (or swaps) the surface for a stream. The first
// attach resolves the stream's delivery type from the driver's current
// configurations and opens the stream: sideband streams bind the returned
// handle to the surface, buffer-producer streams start a capture worker.
// Re-attaching the same surface is a no-op.
func (s *Session) AddOrUpdateStream(deviceID, streamID int, surface Surface) error {
	if surface == nil {
		return NewError(ErrCodeBadValue, "nil surface", nil)
	}

	s.streamMu.Lock()
	defer s.streamMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	streams, ok := s.connections[deviceID]
	if !ok {
		s.mu.Unlock()
		return NewError(ErrCodeNotFound, fmt.Sprintf("unknown device %d", deviceID), nil)
	}
	conn, ok := streams[streamID]
	if !ok {
		conn = &connection{}
		streams[streamID] = conn
	}
	s.mu.Unlock()

	if conn.surface == surface {
		return nil
	}

	// Detach the old surface first.
	if conn.surface != nil {
		if conn.streamType == StreamTypeIndependentVideoSource {
			if err := conn.surface.SetSidebandSource(nil); err != nil {
				s.logger.Warn("clearing sideband source failed",
					"device", deviceID, "stream", streamID, "error", err)
			}
		}
		s.mu.Lock()
		conn.surface = nil
		s.mu.Unlock()
	}

	if conn.sideband == nil && conn.worker == nil {
		if err := s.openConnection(conn, deviceID, streamID); err != nil {
			return err
		}
	}

	s.mu.Lock()
	conn.surface = surface
	worker := conn.worker
	sideband := conn.sideband
	s.mu.Unlock()

	switch {
	case sideband != nil:
		if err := surface.SetSidebandSource(sideband); err != nil {
			return NewError(ErrCodeBadValue, "binding sideband source to surface failed", err)
		}
	case worker != nil:
		worker.setSurface(surface)
	}
	s.logger.Info("stream attached",
		"device", deviceID, "stream", streamID, "type", conn.streamType.String())
	return nil
}

// openConnection resolves the stream type from the driver's current
// configurations and opens the stream. Caller holds streamMu.
func (s *Session) openConnection(conn *connection, deviceID, streamID int) error {
	configs, err := s.driver.StreamConfigs(deviceID)
	if err != nil {
		return NewError(ErrCodeDriverError,
			fmt.Sprintf("enumerating stream configs for device %d failed", deviceID), err)
	}
	var config *StreamConfig
	for i := range configs {
		if configs[i].StreamID == streamID {
			config = &configs[i]
			break
		}
	}
	if config == nil {
		return NewError(ErrCodeNotFound,
			fmt.Sprintf("device %d has no stream %d", deviceID, streamID), nil)
	}

	source, err := s.driver.OpenStream(deviceID, streamID)
	if err != nil {
		return NewError(ErrCodeDriverError,
			fmt.Sprintf("opening stream %d on device %d failed", streamID, deviceID), err)
	}
	if source == nil {
		return NewError(ErrCodeDriverError, "driver returned no stream source", nil)
	}

	switch config.Type {
	case StreamTypeIndependentVideoSource:
		if source.Sideband == nil {
			return NewError(ErrCodeDriverError, "driver returned no sideband handle", nil)
		}
		s.mu.Lock()
		conn.streamType = config.Type
		conn.sideband = source.Sideband
		s.mu.Unlock()
	case StreamTypeBufferProducer:
		worker := newCaptureWorker(s.driver, deviceID, streamID, source.Producer, s.logger, s.sink.OnCaptureFailed)
		s.mu.Lock()
		conn.streamType = config.Type
		conn.worker = worker
		s.mu.Unlock()
	default:
		return NewError(ErrCodeDriverError,
			fmt.Sprintf("stream %d has unknown type %d", streamID, int(config.Type)), nil)
	}
	return nil
}

// RemoveStream detaches the surface, shuts down the worker or sideband
// binding, and closes the driver stream.
func (s *Session) RemoveStream(deviceID, streamID int) error {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.mu.Unlock()

	return s.removeStreamLocked(deviceID, streamID)
}

// removeStreamLocked tears one connection down. Caller holds streamMu.
// In-flight captures are cancelled and settled before the driver stream is
// closed.
func (s *Session) removeStreamLocked(deviceID, streamID int) error {
	s.mu.Lock()
	streams, ok := s.connections[deviceID]
	if !ok {
		s.mu.Unlock()
		return NewError(ErrCodeNotFound, fmt.Sprintf("unknown device %d", deviceID), nil)
	}
	conn, ok := streams[streamID]
	if !ok {
		s.mu.Unlock()
		return NewError(ErrCodeNotFound,
			fmt.Sprintf("no connection for stream %d on device %d", streamID, deviceID), nil)
	}
	if conn.surface == nil {
		s.mu.Unlock()
		return nil
	}
	surface := conn.surface
	worker := conn.worker
	sideband := conn.sideband
	streamType := conn.streamType
	conn.surface = nil
	conn.worker = nil
	conn.sideband = nil
	s.mu.Unlock()

	if streamType == StreamTypeIndependentVideoSource {
		if err := surface.SetSidebandSource(nil); err != nil {
			s.logger.Warn("clearing sideband source failed",
				"device", deviceID, "stream", streamID, "error", err)
		}
	}
	if worker != nil {
		worker.shutdown()
	}
	if sideband != nil {
		if err := sideband.Release(); err != nil {
			s.logger.Warn("releasing sideband handle failed",
				"device", deviceID, "stream", streamID, "error", err)
		}
	}

	s.mu.Lock()
	if streams, ok := s.connections[deviceID]; ok {
		delete(streams, streamID)
	}
	s.mu.Unlock()

	if err := s.driver.CloseStream(deviceID, streamID); err != nil {
		return NewError(ErrCodeBadValue,
			fmt.Sprintf("closing stream %d on device %d failed", streamID, deviceID), err)
	}
	s.logger.Info("stream removed", "device", deviceID, "stream", streamID)
	return nil
}

// StreamConfigs queries the driver's current configurations for a device.
// Driver errors are logged and yield an empty list; this call never fails.
func (s *Session) StreamConfigs(deviceID int) []StreamConfig {
	configs, err := s.driver.StreamConfigs(deviceID)
	if err != nil {
		s.logger.Error("enumerating stream configs failed", "device", deviceID, "error", err)
		return nil
	}
	return configs
}

// ActiveWorkers reports how many buffer-producer workers are running.
func (s *Session) ActiveWorkers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, streams := range s.connections {
		for _, conn := range streams {
			if conn.worker != nil {
				n++
			}
		}
	}
	return n
}

// EventsDropped reports how many driver events were discarded because the
// consumer queue was full.
func (s *Session) EventsDropped() uint64 {
	return s.dispatcher.droppedCount()
}

// handleDeviceEvent dispatches one driver notification by kind. Runs on the
// dispatcher's consumer goroutine.
func (s *Session) handleDeviceEvent(ev DeviceEvent) {
	switch ev.Kind {
	case EventDeviceAvailable:
		s.onDeviceAvailable(ev.Info)
	case EventDeviceUnavailable:
		s.onDeviceUnavailable(ev.DeviceID)
	case EventStreamConfigsChanged:
		s.onStreamConfigsChanged(ev.DeviceID, ev.CableStatus)
	default:
		s.logger.Error("unrecognized driver event", "kind", int(ev.Kind))
	}
}

func (s *Session) onDeviceAvailable(info DeviceInfo) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if _, ok := s.connections[info.DeviceID]; !ok {
		s.connections[info.DeviceID] = make(map[int]*connection)
	}
	s.mu.Unlock()

	s.logger.Info("device available",
		"device", info.DeviceID, "type", info.Type.String(), "cable", info.CableStatus.String())
	s.sink.OnDeviceAvailable(sanitizeDeviceInfo(info))
}

func (s *Session) onDeviceUnavailable(deviceID int) {
	s.streamMu.Lock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.streamMu.Unlock()
		return
	}
	s.mu.Unlock()
	s.teardownDeviceLocked(deviceID)
	s.mu.Lock()
	delete(s.connections, deviceID)
	s.mu.Unlock()
	s.streamMu.Unlock()

	s.logger.Info("device unavailable", "device", deviceID)
	s.sink.OnDeviceUnavailable(deviceID)
}

func (s *Session) onStreamConfigsChanged(deviceID int, cable CableStatus) {
	s.streamMu.Lock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.streamMu.Unlock()
		return
	}
	s.mu.Unlock()
	// Force re-negotiation of every stream, but keep the device entry.
	s.teardownDeviceLocked(deviceID)
	s.streamMu.Unlock()

	s.logger.Info("stream configurations changed", "device", deviceID, "cable", cable.String())
	s.sink.OnStreamConfigsChanged(deviceID, cable)
}

// teardownDeviceLocked removes every stream of a device. Caller holds
// streamMu.
func (s *Session) teardownDeviceLocked(deviceID int) {
	s.mu.Lock()
	streams := s.connections[deviceID]
	streamIDs := make([]int, 0, len(streams))
	for id := range streams {
		streamIDs = append(streamIDs, id)
	}
	s.mu.Unlock()

	for _, streamID := range streamIDs {
		if err := s.removeStreamLocked(deviceID, streamID); err != nil {
			s.logger.Warn("removing stream during device teardown failed",
				"device", deviceID, "stream", streamID, "error", err)
		}
	}
}

// onCaptured forwards a completion signal to the owning worker. A missing
// worker is a hardware race after teardown and only logged. The first
// completed request of a stream (seq 0) additionally notifies the sink.
func (s *Session) onCaptured(deviceID, streamID int, seq uint32, succeeded bool) {
	s.mu.Lock()
	var worker *captureWorker
	if streams, ok := s.connections[deviceID]; ok {
		if conn, ok := streams[streamID]; ok {
			worker = conn.worker
		}
	}
	s.mu.Unlock()

	if worker == nil {
		s.logger.Warn("capture completion for torn-down stream",
			"device", deviceID, "stream", streamID, "seq", seq)
		return
	}
	worker.onCaptured(seq, succeeded)
	if seq == 0 {
		s.sink.OnFirstFrameCaptured(deviceID, streamID)
	}
}

// sanitizeDeviceInfo zeroes descriptor fields that are meaningless for the
// device's type before the info leaves the bridge.
func sanitizeDeviceInfo(info DeviceInfo) DeviceInfo {
	if info.Type != DeviceTypeHDMI {
		info.PortID = 0
	}
	if info.AudioType == AudioNone {
		info.AudioAddress = ""
	}
	return info
}
