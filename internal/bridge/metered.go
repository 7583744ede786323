package bridge

import (
	"github.com/videobridge/capturehal/internal/hal"
	"github.com/videobridge/capturehal/internal/metrics"
)

// meteredDriver counts capture requests and failed completions without
// changing driver behavior. Failures are observed by wrapping the callback
// the session installs.
type meteredDriver struct {
	hal.Driver
}

func (d meteredDriver) SetCallback(cb hal.DriverCallback) error {
	if cb == nil {
		return d.Driver.SetCallback(nil)
	}
	return d.Driver.SetCallback(meteredCallback{inner: cb})
}

func (d meteredDriver) RequestCapture(deviceID, streamID int, buf hal.Buffer, seq uint32) error {
	metrics.IncCaptureRequest(deviceID, streamID)
	return d.Driver.RequestCapture(deviceID, streamID, buf, seq)
}

type meteredCallback struct {
	inner hal.DriverCallback
}

func (c meteredCallback) NotifyDeviceEvent(ev hal.DeviceEvent) {
	c.inner.NotifyDeviceEvent(ev)
}

func (c meteredCallback) NotifyCaptured(res hal.CaptureResult) {
	if !res.Succeeded {
		metrics.IncCaptureFailure(res.DeviceID, res.StreamID)
	}
	c.inner.NotifyCaptured(res)
}

// meteredSurface counts queued buffers as presented frames.
type meteredSurface struct {
	hal.Surface
	deviceID int
	streamID int
}

func (s meteredSurface) QueueBuffer(buf hal.Buffer) error {
	if err := s.Surface.QueueBuffer(buf); err != nil {
		return err
	}
	metrics.IncFramePresented(s.deviceID, s.streamID)
	return nil
}
