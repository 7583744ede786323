package hal

// DeviceType identifies the physical connector class of a capture device.
type DeviceType int

// Device types reported by capture drivers.
const (
	DeviceTypeTuner DeviceType = iota + 1
	DeviceTypeComposite
	DeviceTypeSVideo
	DeviceTypeComponent
	DeviceTypeVGA
	DeviceTypeDVI
	DeviceTypeHDMI
	DeviceTypeDisplayPort
	DeviceTypeOther
)

// String returns the human-readable device type name.
func (t DeviceType) String() string {
	switch t {
	case DeviceTypeTuner:
		return "tuner"
	case DeviceTypeComposite:
		return "composite"
	case DeviceTypeSVideo:
		return "svideo"
	case DeviceTypeComponent:
		return "component"
	case DeviceTypeVGA:
		return "vga"
	case DeviceTypeDVI:
		return "dvi"
	case DeviceTypeHDMI:
		return "hdmi"
	case DeviceTypeDisplayPort:
		return "displayport"
	default:
		return "other"
	}
}

// CableStatus reports physical connector presence. Only meaningful for
// connector-based device types such as HDMI.
type CableStatus int

// Cable connection states.
const (
	CableStatusUnknown CableStatus = iota
	CableStatusConnected
	CableStatusDisconnected
)

// String returns the human-readable cable status.
func (s CableStatus) String() string {
	switch s {
	case CableStatusConnected:
		return "connected"
	case CableStatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// AudioType describes the audio routing a device exposes. The bridge carries
// it through to the sink but never interprets it.
type AudioType int

// Audio routing types.
const (
	AudioNone AudioType = iota
	AudioBuiltin
	AudioHDMI
	AudioSPDIF
)

// DeviceInfo describes one capture device as announced by the driver.
type DeviceInfo struct {
	DeviceID     int         `json:"device_id" doc:"Driver-assigned device identifier"`
	Type         DeviceType  `json:"type" doc:"Connector class of the device"`
	PortID       int         `json:"port_id,omitempty" doc:"HDMI port number, HDMI devices only"`
	CableStatus  CableStatus `json:"cable_status" doc:"Physical cable presence"`
	AudioType    AudioType   `json:"audio_type,omitempty" doc:"Audio routing type"`
	AudioAddress string      `json:"audio_address,omitempty" doc:"Audio routing address, empty when audio type is none"`
}

// StreamType selects how frames travel from the driver to the surface.
type StreamType int

const (
	// StreamTypeIndependentVideoSource means the driver pushes frames
	// directly through a sideband handle bound to the surface.
	StreamTypeIndependentVideoSource StreamType = iota + 1

	// StreamTypeBufferProducer means the bridge pulls buffers from the
	// surface, hands them to the driver for filling, and queues them back.
	StreamTypeBufferProducer
)

// String returns the stream type name.
func (t StreamType) String() string {
	switch t {
	case StreamTypeIndependentVideoSource:
		return "independent_video_source"
	case StreamTypeBufferProducer:
		return "buffer_producer"
	default:
		return "unknown"
	}
}

// StreamConfig is one capture configuration enumerated from a driver.
// Configurations are queried on demand and never cached.
type StreamConfig struct {
	StreamID  int        `json:"stream_id" doc:"Stream identifier, scoped to the device"`
	Type      StreamType `json:"type" doc:"Frame delivery model for the stream"`
	MaxWidth  int        `json:"max_width" doc:"Maximum capture width in pixels"`
	MaxHeight int        `json:"max_height" doc:"Maximum capture height in pixels"`
}

// ProducerParams carries the buffer geometry a buffer-producer stream needs
// applied to its surface before the first dequeue.
type ProducerParams struct {
	Usage  uint64
	Width  int
	Height int
	Format PixelFormat
}

// StreamSource is what OpenStream hands back. Exactly one of Sideband or
// Producer is meaningful, selected by Type.
type StreamSource struct {
	Type     StreamType
	Sideband SidebandHandle
	Producer ProducerParams
}

// DeviceEventKind tags asynchronous driver notifications.
type DeviceEventKind int

// Driver notification kinds.
const (
	EventDeviceAvailable DeviceEventKind = iota + 1
	EventDeviceUnavailable
	EventStreamConfigsChanged
)

// String returns the event kind name.
func (k DeviceEventKind) String() string {
	switch k {
	case EventDeviceAvailable:
		return "device_available"
	case EventDeviceUnavailable:
		return "device_unavailable"
	case EventStreamConfigsChanged:
		return "stream_configs_changed"
	default:
		return "unknown"
	}
}

// DeviceEvent is one asynchronous driver notification. Info is fully
// populated for device-available; the other kinds use DeviceID and, for
// configuration changes, CableStatus.
type DeviceEvent struct {
	Kind        DeviceEventKind
	DeviceID    int
	CableStatus CableStatus
	Info        DeviceInfo
}

// CaptureResult is the driver's completion signal for one capture request.
type CaptureResult struct {
	DeviceID  int
	StreamID  int
	Seq       uint32
	Succeeded bool
}

// DriverCallback receives asynchronous driver signals. NotifyDeviceEvent may
// be invoked from any driver goroutine; the session serializes handling onto
// its own consumer. NotifyCaptured goes straight to the owning worker, which
// is safe under the worker's lock.
type DriverCallback interface {
	NotifyDeviceEvent(ev DeviceEvent)
	NotifyCaptured(res CaptureResult)
}

// Driver is the hardware capture driver boundary. Implementations must allow
// RequestCapture and CancelCapture to be called with a worker lock held, so
// both are expected to be non-blocking fire-and-forget calls whose outcome
// arrives through NotifyCaptured.
type Driver interface {
	// SetCallback installs or clears (nil) the asynchronous callback.
	SetCallback(cb DriverCallback) error

	// StreamConfigs enumerates the current capture configurations of a
	// device.
	StreamConfigs(deviceID int) ([]StreamConfig, error)

	// OpenStream configures a stream and returns its source. For sideband
	// streams the returned handle is owned by the caller until released.
	OpenStream(deviceID, streamID int) (*StreamSource, error)

	// CloseStream releases the driver-side stream state.
	CloseStream(deviceID, streamID int) error

	// RequestCapture asks the driver to fill buf and signal completion with
	// the given sequence number.
	RequestCapture(deviceID, streamID int, buf Buffer, seq uint32) error

	// CancelCapture asks the driver to abandon an outstanding request. The
	// driver still signals completion (failed) for the cancelled sequence.
	CancelCapture(deviceID, streamID int, seq uint32) error
}
