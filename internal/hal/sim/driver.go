// Package sim provides a software capture driver backed by a configured
// device table. It stands in for real capture hardware during development
// and in tests: captures complete on a frame clock, and devices can be
// plugged and unplugged at runtime.
package sim

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/videobridge/capturehal/internal/config"
	"github.com/videobridge/capturehal/internal/hal"
	"github.com/videobridge/capturehal/internal/logging"
)

const (
	defaultFrameRate = 60
	producerUsage    = uint64(0x0300)
)

// Driver is a simulated hal.Driver.
type Driver struct {
	logger *slog.Logger

	mu      sync.Mutex
	cb      hal.DriverCallback
	devices map[int]*device
}

type device struct {
	info          hal.DeviceInfo
	configs       []hal.StreamConfig
	frameInterval time.Duration
	open          map[int]*openStream
}

type openStream struct {
	cfg     hal.StreamConfig
	pending map[uint32]*time.Timer
}

// NewDriver builds a driver from device profiles. Devices are announced to
// the callback once one is installed.
func NewDriver(profiles []config.DeviceProfile) *Driver {
	d := &Driver{
		logger:  logging.GetLogger("sim"),
		devices: make(map[int]*device),
	}
	for _, p := range profiles {
		d.devices[p.ID] = deviceFromProfile(p)
	}
	return d
}

func deviceFromProfile(p config.DeviceProfile) *device {
	rate := p.FrameRate
	if rate <= 0 {
		rate = defaultFrameRate
	}

	cable := hal.CableStatusDisconnected
	if p.Connected {
		cable = hal.CableStatusConnected
	}

	dev := &device{
		info: hal.DeviceInfo{
			DeviceID:    p.ID,
			Type:        parseDeviceType(p.Type),
			PortID:      p.Port,
			CableStatus: cable,
		},
		frameInterval: time.Second / time.Duration(rate),
		open:          make(map[int]*openStream),
	}
	for _, s := range p.Streams {
		dev.configs = append(dev.configs, hal.StreamConfig{
			StreamID:  s.ID,
			Type:      parseStreamType(s.Type),
			MaxWidth:  s.MaxWidth,
			MaxHeight: s.MaxHeight,
		})
	}
	return dev
}

func parseDeviceType(s string) hal.DeviceType {
	switch s {
	case "tuner":
		return hal.DeviceTypeTuner
	case "composite":
		return hal.DeviceTypeComposite
	case "svideo":
		return hal.DeviceTypeSVideo
	case "component":
		return hal.DeviceTypeComponent
	case "vga":
		return hal.DeviceTypeVGA
	case "dvi":
		return hal.DeviceTypeDVI
	case "hdmi":
		return hal.DeviceTypeHDMI
	case "displayport":
		return hal.DeviceTypeDisplayPort
	default:
		return hal.DeviceTypeOther
	}
}

func parseStreamType(s string) hal.StreamType {
	if s == "buffer_producer" {
		return hal.StreamTypeBufferProducer
	}
	return hal.StreamTypeIndependentVideoSource
}

// SetCallback installs the callback and announces every known device to it.
func (d *Driver) SetCallback(cb hal.DriverCallback) error {
	d.mu.Lock()
	d.cb = cb
	var announce []hal.DeviceEvent
	if cb != nil {
		for _, dev := range d.devices {
			announce = append(announce, hal.DeviceEvent{
				Kind:     hal.EventDeviceAvailable,
				DeviceID: dev.info.DeviceID,
				Info:     dev.info,
			})
		}
	}
	d.mu.Unlock()

	for _, ev := range announce {
		cb.NotifyDeviceEvent(ev)
	}
	return nil
}

// StreamConfigs enumerates the configured streams of a device.
func (d *Driver) StreamConfigs(deviceID int) ([]hal.StreamConfig, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dev, ok := d.devices[deviceID]
	if !ok {
		return nil, fmt.Errorf("device %d not present", deviceID)
	}
	out := make([]hal.StreamConfig, len(dev.configs))
	copy(out, dev.configs)
	return out, nil
}

// OpenStream opens a stream and returns its source.
func (d *Driver) OpenStream(deviceID, streamID int) (*hal.StreamSource, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dev, ok := d.devices[deviceID]
	if !ok {
		return nil, fmt.Errorf("device %d not present", deviceID)
	}
	if _, exists := dev.open[streamID]; exists {
		return nil, fmt.Errorf("stream %d/%d already open", deviceID, streamID)
	}

	var cfg *hal.StreamConfig
	for i := range dev.configs {
		if dev.configs[i].StreamID == streamID {
			cfg = &dev.configs[i]
			break
		}
	}
	if cfg == nil {
		return nil, fmt.Errorf("stream %d/%d not configured", deviceID, streamID)
	}

	dev.open[streamID] = &openStream{
		cfg:     *cfg,
		pending: make(map[uint32]*time.Timer),
	}

	source := &hal.StreamSource{Type: cfg.Type}
	switch cfg.Type {
	case hal.StreamTypeIndependentVideoSource:
		source.Sideband = &Sideband{deviceID: deviceID, streamID: streamID}
	case hal.StreamTypeBufferProducer:
		source.Producer = hal.ProducerParams{
			Usage:  producerUsage,
			Width:  cfg.MaxWidth,
			Height: cfg.MaxHeight,
			Format: hal.FormatNV12,
		}
	}

	d.logger.Debug("stream opened", "device", deviceID, "stream", streamID, "type", cfg.Type.String())
	return source, nil
}

// CloseStream releases a stream and abandons its in-flight captures.
func (d *Driver) CloseStream(deviceID, streamID int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	dev, ok := d.devices[deviceID]
	if !ok {
		return fmt.Errorf("device %d not present", deviceID)
	}
	st, ok := dev.open[streamID]
	if !ok {
		return fmt.Errorf("stream %d/%d not open", deviceID, streamID)
	}
	for _, timer := range st.pending {
		timer.Stop()
	}
	delete(dev.open, streamID)
	d.logger.Debug("stream closed", "device", deviceID, "stream", streamID)
	return nil
}

// RequestCapture schedules a completion on the device frame clock. Capture
// succeeds only while the cable is connected.
func (d *Driver) RequestCapture(deviceID, streamID int, _ hal.Buffer, seq uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	dev, ok := d.devices[deviceID]
	if !ok {
		return fmt.Errorf("device %d not present", deviceID)
	}
	st, ok := dev.open[streamID]
	if !ok {
		return fmt.Errorf("stream %d/%d not open", deviceID, streamID)
	}

	succeed := dev.info.CableStatus == hal.CableStatusConnected
	st.pending[seq] = time.AfterFunc(dev.frameInterval, func() {
		d.completeCapture(deviceID, streamID, seq, succeed)
	})
	return nil
}

// CancelCapture abandons a pending capture and signals a failed completion
// for it so waiters settle.
func (d *Driver) CancelCapture(deviceID, streamID int, seq uint32) error {
	d.mu.Lock()
	dev, ok := d.devices[deviceID]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("device %d not present", deviceID)
	}
	st, open := dev.open[streamID]
	var stopped bool
	if open {
		if timer, pending := st.pending[seq]; pending {
			stopped = timer.Stop()
			delete(st.pending, seq)
		}
	}
	d.mu.Unlock()

	// If the timer already fired, the real completion is on its way.
	if stopped {
		go d.completeCapture(deviceID, streamID, seq, false)
	}
	return nil
}

func (d *Driver) completeCapture(deviceID, streamID int, seq uint32, succeeded bool) {
	d.mu.Lock()
	cb := d.cb
	if dev, ok := d.devices[deviceID]; ok {
		if st, open := dev.open[streamID]; open {
			delete(st.pending, seq)
		}
	}
	d.mu.Unlock()

	if cb != nil {
		cb.NotifyCaptured(hal.CaptureResult{
			DeviceID:  deviceID,
			StreamID:  streamID,
			Seq:       seq,
			Succeeded: succeeded,
		})
	}
}

// Plug adds a device at runtime and announces it.
func (d *Driver) Plug(profile config.DeviceProfile) {
	dev := deviceFromProfile(profile)

	d.mu.Lock()
	d.devices[profile.ID] = dev
	cb := d.cb
	d.mu.Unlock()

	d.logger.Info("device plugged", "device", profile.ID, "type", dev.info.Type.String())
	if cb != nil {
		cb.NotifyDeviceEvent(hal.DeviceEvent{
			Kind:     hal.EventDeviceAvailable,
			DeviceID: profile.ID,
			Info:     dev.info,
		})
	}
}

// Unplug removes a device at runtime and announces its departure.
func (d *Driver) Unplug(deviceID int) {
	d.mu.Lock()
	dev, ok := d.devices[deviceID]
	if ok {
		for _, st := range dev.open {
			for _, timer := range st.pending {
				timer.Stop()
			}
		}
		delete(d.devices, deviceID)
	}
	cb := d.cb
	d.mu.Unlock()

	if !ok {
		return
	}
	d.logger.Info("device unplugged", "device", deviceID)
	if cb != nil {
		cb.NotifyDeviceEvent(hal.DeviceEvent{
			Kind:     hal.EventDeviceUnavailable,
			DeviceID: deviceID,
		})
	}
}

// SetCableStatus flips the cable state of a device and announces a stream
// configuration change, mirroring what HDMI receivers do on plug events.
func (d *Driver) SetCableStatus(deviceID int, connected bool) {
	status := hal.CableStatusDisconnected
	if connected {
		status = hal.CableStatusConnected
	}

	d.mu.Lock()
	dev, ok := d.devices[deviceID]
	if ok {
		dev.info.CableStatus = status
	}
	cb := d.cb
	d.mu.Unlock()

	if !ok {
		return
	}
	d.logger.Info("cable status changed", "device", deviceID, "status", status.String())
	if cb != nil {
		cb.NotifyDeviceEvent(hal.DeviceEvent{
			Kind:        hal.EventStreamConfigsChanged,
			DeviceID:    deviceID,
			CableStatus: status,
		})
	}
}

// DeviceIDs returns the ids of the currently present devices.
func (d *Driver) DeviceIDs() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]int, 0, len(d.devices))
	for id := range d.devices {
		ids = append(ids, id)
	}
	return ids
}

// Sideband is the driver-side endpoint handed out for independent video
// source streams.
type Sideband struct {
	deviceID int
	streamID int

	mu       sync.Mutex
	released bool
}

// Release implements hal.SidebandHandle.
func (s *Sideband) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return fmt.Errorf("sideband %d/%d already released", s.deviceID, s.streamID)
	}
	s.released = true
	return nil
}

// Released reports whether the handle has been released.
func (s *Sideband) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}
