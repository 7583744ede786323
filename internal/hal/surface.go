package hal

// PixelFormat identifies the pixel layout of capture buffers.
type PixelFormat uint32

// Common capture formats.
const (
	FormatRGBA8888 PixelFormat = 1
	FormatYUV420   PixelFormat = 2
	FormatNV12     PixelFormat = 3
)

// Buffer is one video buffer dequeued from a Surface. While a capture is in
// flight the owning worker holds the only live reference.
type Buffer interface {
	// ID identifies the buffer within its surface's pool.
	ID() uint64
}

// SidebandHandle is the driver-side endpoint of an independent video source
// stream. Binding it to a surface lets the driver push frames directly.
type SidebandHandle interface {
	// Release frees the handle. The handle must not be bound to any surface
	// when released.
	Release() error
}

// Surface is the presentation target for a stream. The same surface value
// may be swapped between connections by the caller; all worker access is
// mediated by the worker's lock.
type Surface interface {
	// SetUsage declares the buffer usage bits before the first dequeue.
	SetUsage(usage uint64) error

	// SetBufferDimensions fixes the buffer geometry before the first dequeue.
	SetBufferDimensions(width, height int) error

	// SetBufferFormat fixes the pixel format before the first dequeue.
	SetBufferFormat(format PixelFormat) error

	// DequeueBuffer hands out the next free buffer. It blocks under the
	// surface's own flow control until one is available.
	DequeueBuffer() (Buffer, error)

	// QueueBuffer returns a filled buffer for presentation.
	QueueBuffer(buf Buffer) error

	// SetSidebandSource binds a driver-pushed source to the surface, or
	// clears the binding when handle is nil.
	SetSidebandSource(handle SidebandHandle) error
}

// Notifier is the application-level sink for bridge events. Calls originate
// on the session's consumer goroutine (device lifecycle) or on driver
// completion delivery (first frame); OnCaptureFailed runs on the dying
// worker's goroutine. Implementations should return quickly.
type Notifier interface {
	OnDeviceAvailable(info DeviceInfo)
	OnDeviceUnavailable(deviceID int)
	OnStreamConfigsChanged(deviceID int, cable CableStatus)
	OnFirstFrameCaptured(deviceID, streamID int)

	// OnCaptureFailed reports a capture worker that hit a fatal surface or
	// driver error and stopped. err carries the WORKER_FATAL code.
	OnCaptureFailed(deviceID, streamID int, err error)
}
