package hal

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

type captureRequest struct {
	deviceID int
	streamID int
	seq      uint32
	buf      Buffer
}

// fakeDriver records every driver call and lets tests deliver completion
// signals through the installed callback.
type fakeDriver struct {
	mu         sync.Mutex
	cb         DriverCallback
	configs    map[int][]StreamConfig
	configsErr error
	openErr    error
	closeErr   error
	source     func(deviceID, streamID int) *StreamSource

	// completeOnCancel makes CancelCapture deliver a failed completion for
	// the cancelled sequence, as real hardware does.
	completeOnCancel bool

	calls    []string
	requests []captureRequest
}

func (d *fakeDriver) SetCallback(cb DriverCallback) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cb = cb
	return nil
}

func (d *fakeDriver) StreamConfigs(deviceID int) ([]StreamConfig, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, fmt.Sprintf("configs %d", deviceID))
	if d.configsErr != nil {
		return nil, d.configsErr
	}
	return d.configs[deviceID], nil
}

func (d *fakeDriver) OpenStream(deviceID, streamID int) (*StreamSource, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, fmt.Sprintf("open %d/%d", deviceID, streamID))
	if d.openErr != nil {
		return nil, d.openErr
	}
	if d.source == nil {
		return nil, fmt.Errorf("no source configured")
	}
	return d.source(deviceID, streamID), nil
}

func (d *fakeDriver) CloseStream(deviceID, streamID int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, fmt.Sprintf("close %d/%d", deviceID, streamID))
	return d.closeErr
}

func (d *fakeDriver) RequestCapture(deviceID, streamID int, buf Buffer, seq uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, fmt.Sprintf("capture %d/%d seq=%d", deviceID, streamID, seq))
	d.requests = append(d.requests, captureRequest{deviceID, streamID, seq, buf})
	return nil
}

func (d *fakeDriver) CancelCapture(deviceID, streamID int, seq uint32) error {
	d.mu.Lock()
	d.calls = append(d.calls, fmt.Sprintf("cancel %d/%d seq=%d", deviceID, streamID, seq))
	cb := d.cb
	complete := d.completeOnCancel
	d.mu.Unlock()
	if complete && cb != nil {
		go cb.NotifyCaptured(CaptureResult{DeviceID: deviceID, StreamID: streamID, Seq: seq, Succeeded: false})
	}
	return nil
}

func (d *fakeDriver) callLog() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	copy(out, d.calls)
	return out
}

func (d *fakeDriver) callCount(prefix string) int {
	n := 0
	for _, c := range d.callLog() {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (d *fakeDriver) requestCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.requests)
}

func (d *fakeDriver) lastRequest() (captureRequest, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.requests) == 0 {
		return captureRequest{}, false
	}
	return d.requests[len(d.requests)-1], true
}

func (d *fakeDriver) callback() DriverCallback {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cb
}

type fakeSideband struct {
	mu       sync.Mutex
	released bool
}

func (h *fakeSideband) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.released = true
	return nil
}

func (h *fakeSideband) isReleased() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

type fakeBuffer struct {
	id uint64
}

func (b *fakeBuffer) ID() uint64 { return b.id }

// fakeSurface hands out buffers without blocking and records every call so
// tests can assert geometry propagation and single-buffer ownership.
type fakeSurface struct {
	mu             sync.Mutex
	usage          uint64
	width, height  int
	format         PixelFormat
	sideband       SidebandHandle
	sidebandSets   []SidebandHandle
	nextID         uint64
	queued         []Buffer
	outstanding    int
	maxOutstanding int
	dequeueErr     error
	queueErr       error
}

func (s *fakeSurface) SetUsage(usage uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = usage
	return nil
}

func (s *fakeSurface) SetBufferDimensions(width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
	return nil
}

func (s *fakeSurface) SetBufferFormat(format PixelFormat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.format = format
	return nil
}

func (s *fakeSurface) DequeueBuffer() (Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dequeueErr != nil {
		return nil, s.dequeueErr
	}
	s.nextID++
	s.outstanding++
	if s.outstanding > s.maxOutstanding {
		s.maxOutstanding = s.outstanding
	}
	return &fakeBuffer{id: s.nextID}, nil
}

func (s *fakeSurface) QueueBuffer(buf Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queueErr != nil {
		return s.queueErr
	}
	s.outstanding--
	s.queued = append(s.queued, buf)
	return nil
}

func (s *fakeSurface) SetSidebandSource(handle SidebandHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sideband = handle
	s.sidebandSets = append(s.sidebandSets, handle)
	return nil
}

func (s *fakeSurface) queuedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queued)
}

func (s *fakeSurface) currentSideband() SidebandHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sideband
}

func (s *fakeSurface) geometry() (uint64, int, int, PixelFormat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage, s.width, s.height, s.format
}

func (s *fakeSurface) maxLiveBuffers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxOutstanding
}

type firstFrame struct {
	deviceID int
	streamID int
}

type configsChange struct {
	deviceID int
	cable    CableStatus
}

type captureFailure struct {
	deviceID int
	streamID int
	err      error
}

// recordingSink captures every outbound notification.
type recordingSink struct {
	mu             sync.Mutex
	available      []DeviceInfo
	unavailable    []int
	configsChanged []configsChange
	firstFrames    []firstFrame
	failures       []captureFailure
}

func (r *recordingSink) OnDeviceAvailable(info DeviceInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.available = append(r.available, info)
}

func (r *recordingSink) OnDeviceUnavailable(deviceID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unavailable = append(r.unavailable, deviceID)
}

func (r *recordingSink) OnStreamConfigsChanged(deviceID int, cable CableStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configsChanged = append(r.configsChanged, configsChange{deviceID, cable})
}

func (r *recordingSink) OnFirstFrameCaptured(deviceID, streamID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.firstFrames = append(r.firstFrames, firstFrame{deviceID, streamID})
}

func (r *recordingSink) OnCaptureFailed(deviceID, streamID int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, captureFailure{deviceID, streamID, err})
}

func (r *recordingSink) failureCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.failures)
}

func (r *recordingSink) lastFailure() (captureFailure, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.failures) == 0 {
		return captureFailure{}, false
	}
	return r.failures[len(r.failures)-1], true
}

func (r *recordingSink) availableCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.available)
}

func (r *recordingSink) unavailableCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.unavailable)
}

func (r *recordingSink) configsChangedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.configsChanged)
}

func (r *recordingSink) firstFrameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.firstFrames)
}
