package sim

import (
	"sync"
	"testing"
	"time"

	"github.com/videobridge/capturehal/internal/config"
	"github.com/videobridge/capturehal/internal/hal"
)

func testProfiles() []config.DeviceProfile {
	return []config.DeviceProfile{
		{
			ID:        1,
			Type:      "hdmi",
			Port:      2,
			Connected: true,
			FrameRate: 200,
			Streams: []config.StreamProfile{
				{ID: 10, Type: "sideband", MaxWidth: 1920, MaxHeight: 1080},
				{ID: 20, Type: "buffer_producer", MaxWidth: 1280, MaxHeight: 720},
			},
		},
		{
			ID:      2,
			Type:    "composite",
			Streams: []config.StreamProfile{{ID: 10, Type: "sideband", MaxWidth: 720, MaxHeight: 576}},
		},
	}
}

// recorder collects driver callback traffic for assertions.
type recorder struct {
	mu      sync.Mutex
	events  []hal.DeviceEvent
	results []hal.CaptureResult
}

func (r *recorder) NotifyDeviceEvent(ev hal.DeviceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) NotifyCaptured(res hal.CaptureResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recorder) eventCount(kind hal.DeviceEventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) lastResult() (hal.CaptureResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.results) == 0 {
		return hal.CaptureResult{}, false
	}
	return r.results[len(r.results)-1], true
}

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

func TestSetCallbackAnnouncesDevices(t *testing.T) {
	driver := NewDriver(testProfiles())
	rec := &recorder{}

	if err := driver.SetCallback(rec); err != nil {
		t.Fatalf("SetCallback failed: %v", err)
	}
	if got := rec.eventCount(hal.EventDeviceAvailable); got != 2 {
		t.Errorf("expected 2 device announcements, got %d", got)
	}
}

func TestStreamConfigs(t *testing.T) {
	driver := NewDriver(testProfiles())

	configs, err := driver.StreamConfigs(1)
	if err != nil {
		t.Fatalf("StreamConfigs failed: %v", err)
	}
	if len(configs) != 2 {
		t.Fatalf("expected 2 configs, got %d", len(configs))
	}
	if configs[1].Type != hal.StreamTypeBufferProducer || configs[1].MaxWidth != 1280 {
		t.Errorf("unexpected config: %+v", configs[1])
	}

	if _, err := driver.StreamConfigs(99); err == nil {
		t.Error("expected error for unknown device")
	}
}

func TestOpenStreamSources(t *testing.T) {
	driver := NewDriver(testProfiles())

	sideband, err := driver.OpenStream(1, 10)
	if err != nil {
		t.Fatalf("OpenStream sideband failed: %v", err)
	}
	if sideband.Type != hal.StreamTypeIndependentVideoSource || sideband.Sideband == nil {
		t.Errorf("expected sideband source, got %+v", sideband)
	}

	producer, err := driver.OpenStream(1, 20)
	if err != nil {
		t.Fatalf("OpenStream producer failed: %v", err)
	}
	if producer.Type != hal.StreamTypeBufferProducer {
		t.Errorf("expected producer source, got %+v", producer)
	}
	if producer.Producer.Width != 1280 || producer.Producer.Height != 720 || producer.Producer.Format != hal.FormatNV12 {
		t.Errorf("unexpected producer params: %+v", producer.Producer)
	}

	if _, err := driver.OpenStream(1, 10); err == nil {
		t.Error("expected error opening a stream twice")
	}
	if _, err := driver.OpenStream(1, 99); err == nil {
		t.Error("expected error for unknown stream")
	}
}

func TestRequestCaptureCompletes(t *testing.T) {
	driver := NewDriver(testProfiles())
	rec := &recorder{}
	_ = driver.SetCallback(rec)

	if _, err := driver.OpenStream(1, 20); err != nil {
		t.Fatal(err)
	}
	if err := driver.RequestCapture(1, 20, buffer{id: 0}, 0); err != nil {
		t.Fatalf("RequestCapture failed: %v", err)
	}

	waitFor(t, func() bool {
		res, ok := rec.lastResult()
		return ok && res.Seq == 0
	}, "capture completion")

	res, _ := rec.lastResult()
	if !res.Succeeded || res.DeviceID != 1 || res.StreamID != 20 {
		t.Errorf("unexpected completion: %+v", res)
	}
}

func TestCaptureFailsWhenDisconnected(t *testing.T) {
	driver := NewDriver(testProfiles())
	rec := &recorder{}
	_ = driver.SetCallback(rec)

	// Device 2 has no cable connected.
	if _, err := driver.OpenStream(2, 10); err != nil {
		t.Fatal(err)
	}
	if err := driver.RequestCapture(2, 10, buffer{id: 0}, 0); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		_, ok := rec.lastResult()
		return ok
	}, "capture completion")

	if res, _ := rec.lastResult(); res.Succeeded {
		t.Error("capture should fail while disconnected")
	}
}

func TestCancelCaptureSignalsFailure(t *testing.T) {
	profiles := testProfiles()
	profiles[0].FrameRate = 1 // slow clock so cancel wins the race
	driver := NewDriver(profiles)
	rec := &recorder{}
	_ = driver.SetCallback(rec)

	if _, err := driver.OpenStream(1, 20); err != nil {
		t.Fatal(err)
	}
	if err := driver.RequestCapture(1, 20, buffer{id: 0}, 7); err != nil {
		t.Fatal(err)
	}
	if err := driver.CancelCapture(1, 20, 7); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		res, ok := rec.lastResult()
		return ok && res.Seq == 7
	}, "cancelled completion")

	if res, _ := rec.lastResult(); res.Succeeded {
		t.Error("cancelled capture must complete as failed")
	}
}

func TestPlugUnplugEvents(t *testing.T) {
	driver := NewDriver(nil)
	rec := &recorder{}
	_ = driver.SetCallback(rec)

	driver.Plug(config.DeviceProfile{ID: 5, Type: "hdmi", Connected: true})
	if got := rec.eventCount(hal.EventDeviceAvailable); got != 1 {
		t.Errorf("expected 1 available event, got %d", got)
	}

	driver.SetCableStatus(5, false)
	if got := rec.eventCount(hal.EventStreamConfigsChanged); got != 1 {
		t.Errorf("expected 1 configs-changed event, got %d", got)
	}

	driver.Unplug(5)
	if got := rec.eventCount(hal.EventDeviceUnavailable); got != 1 {
		t.Errorf("expected 1 unavailable event, got %d", got)
	}
	if len(driver.DeviceIDs()) != 0 {
		t.Error("device should be gone after unplug")
	}

	// Unplugging twice is a no-op.
	driver.Unplug(5)
	if got := rec.eventCount(hal.EventDeviceUnavailable); got != 1 {
		t.Errorf("expected no extra unavailable events, got %d", got)
	}
}

func TestSurfaceCycle(t *testing.T) {
	s := NewSurface()

	if err := s.SetUsage(producerUsage); err != nil {
		t.Fatal(err)
	}
	if err := s.SetBufferDimensions(1280, 720); err != nil {
		t.Fatal(err)
	}
	if err := s.SetBufferFormat(hal.FormatNV12); err != nil {
		t.Fatal(err)
	}

	usage, w, h, format := s.Geometry()
	if usage != producerUsage || w != 1280 || h != 720 || format != hal.FormatNV12 {
		t.Errorf("unexpected geometry: %#x %dx%d %d", usage, w, h, format)
	}

	buf, err := s.DequeueBuffer()
	if err != nil {
		t.Fatalf("DequeueBuffer failed: %v", err)
	}
	if err := s.QueueBuffer(buf); err != nil {
		t.Fatalf("QueueBuffer failed: %v", err)
	}
	if s.FramesPresented() != 1 {
		t.Errorf("FramesPresented = %d, want 1", s.FramesPresented())
	}
}

func TestSurfaceDequeueBlocksUntilQueue(t *testing.T) {
	s := NewSurface()

	// Drain the pool.
	var held []hal.Buffer
	for i := 0; i < surfacePoolSize; i++ {
		buf, err := s.DequeueBuffer()
		if err != nil {
			t.Fatal(err)
		}
		held = append(held, buf)
	}

	got := make(chan hal.Buffer, 1)
	go func() {
		buf, err := s.DequeueBuffer()
		if err == nil {
			got <- buf
		}
	}()

	select {
	case <-got:
		t.Fatal("dequeue should block while the pool is empty")
	case <-time.After(50 * time.Millisecond):
	}

	if err := s.QueueBuffer(held[0]); err != nil {
		t.Fatal(err)
	}
	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("dequeue did not wake after queue")
	}
}

func TestSurfaceCloseUnblocksDequeue(t *testing.T) {
	s := NewSurface()
	for i := 0; i < surfacePoolSize; i++ {
		if _, err := s.DequeueBuffer(); err != nil {
			t.Fatal(err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := s.DequeueBuffer()
		errCh <- err
	}()

	s.Close()
	select {
	case err := <-errCh:
		if err == nil {
			t.Error("dequeue on a closed surface must fail")
		}
	case <-time.After(time.Second):
		t.Fatal("close did not unblock dequeue")
	}

	if err := s.QueueBuffer(buffer{id: 0}); err == nil {
		t.Error("queue on a closed surface must fail")
	}
}

func TestSidebandRelease(t *testing.T) {
	h := &Sideband{deviceID: 1, streamID: 10}
	if h.Released() {
		t.Fatal("fresh handle should not be released")
	}
	if err := h.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if !h.Released() {
		t.Error("handle should report released")
	}
	if err := h.Release(); err == nil {
		t.Error("double release must fail")
	}
}
