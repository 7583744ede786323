package sim

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/videobridge/capturehal/internal/hal"
)

// surfacePoolSize is how many buffers a surface hands out before dequeue
// blocks waiting for a queue.
const surfacePoolSize = 4

// Surface is a software implementation of hal.Surface. Queued buffers are
// counted as presented and immediately recycled into the free pool.
type Surface struct {
	mu       sync.Mutex
	usage    uint64
	width    int
	height   int
	format   hal.PixelFormat
	sideband hal.SidebandHandle
	closed   bool

	free      chan hal.Buffer
	closeCh   chan struct{}
	presented atomic.Uint64
}

// NewSurface creates a surface with a full buffer pool.
func NewSurface() *Surface {
	s := &Surface{
		free:    make(chan hal.Buffer, surfacePoolSize),
		closeCh: make(chan struct{}),
	}
	for i := 0; i < surfacePoolSize; i++ {
		s.free <- buffer{id: uint64(i)}
	}
	return s
}

type buffer struct {
	id uint64
}

// ID implements hal.Buffer.
func (b buffer) ID() uint64 { return b.id }

// SetUsage implements hal.Surface.
func (s *Surface) SetUsage(usage uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = usage
	return nil
}

// SetBufferDimensions implements hal.Surface.
func (s *Surface) SetBufferDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid buffer dimensions %dx%d", width, height)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width = width
	s.height = height
	return nil
}

// SetBufferFormat implements hal.Surface.
func (s *Surface) SetBufferFormat(format hal.PixelFormat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.format = format
	return nil
}

// DequeueBuffer implements hal.Surface. Blocks until a buffer is free or
// the surface is closed.
func (s *Surface) DequeueBuffer() (hal.Buffer, error) {
	select {
	case buf := <-s.free:
		return buf, nil
	case <-s.closeCh:
		return nil, fmt.Errorf("surface closed")
	}
}

// QueueBuffer implements hal.Surface.
func (s *Surface) QueueBuffer(buf hal.Buffer) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return fmt.Errorf("surface closed")
	}

	s.presented.Add(1)
	select {
	case s.free <- buf:
		return nil
	default:
		return fmt.Errorf("buffer %d queued twice", buf.ID())
	}
}

// SetSidebandSource implements hal.Surface.
func (s *Surface) SetSidebandSource(handle hal.SidebandHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("surface closed")
	}
	s.sideband = handle
	return nil
}

// Close unblocks pending dequeues and refuses further queues.
func (s *Surface) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.closeCh)
}

// FramesPresented returns how many buffers have been queued.
func (s *Surface) FramesPresented() uint64 {
	return s.presented.Load()
}

// Geometry returns the configured usage, dimensions and format.
func (s *Surface) Geometry() (usage uint64, width, height int, format hal.PixelFormat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage, s.width, s.height, s.format
}

// SidebandSource returns the currently bound sideband handle, if any.
func (s *Surface) SidebandSource() hal.SidebandHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sideband
}
