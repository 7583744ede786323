package hal

import (
	"log/slog"
	"sync"
	"time"
)

// bufferState is the worker's position in the capture cycle.
type bufferState int

const (
	// stateReleased means no buffer is held.
	stateReleased bufferState = iota
	// stateCapturing means a buffer has been dequeued and handed to the
	// driver, awaiting completion.
	stateCapturing
	// stateCaptured means the driver signaled completion and the buffer is
	// ready to present.
	stateCaptured
)

// String returns the buffer state name.
func (s bufferState) String() string {
	switch s {
	case stateCapturing:
		return "capturing"
	case stateCaptured:
		return "captured"
	default:
		return "released"
	}
}

const (
	// waitSlice bounds each individual wait so the loop can re-check its
	// surface and shutdown flag.
	waitSlice = time.Second

	// surfaceSwapTimeout bounds the total time setSurface waits for an
	// in-flight capture to settle after cancellation.
	surfaceSwapTimeout = 5 * time.Second
)

// captureWorker runs the pull-capture cycle for one buffer-producer stream:
// dequeue a buffer from the surface, hand it to the driver, wait for
// completion, queue it back for presentation. At most one live buffer exists
// at a time and the worker owns it exclusively.
//
// All mutable state is guarded by mu. wake is closed and re-armed on every
// state change, standing in for a condition variable broadcast so waiters
// can use bounded timeouts.
type captureWorker struct {
	driver   Driver
	deviceID int
	streamID int
	producer ProducerParams
	logger   *slog.Logger
	onFatal  func(deviceID, streamID int, err error)

	mu       sync.Mutex
	wake     chan struct{}
	surface  Surface
	buffer   Buffer
	state    bufferState
	seq      uint32 // sequence of the last issued capture request
	nextSeq  uint32
	closing  bool
	fatalErr error
	done     chan struct{}
}

// newCaptureWorker starts the capture loop goroutine. The worker has no
// surface yet; the caller attaches one with setSurface. onFatal (optional)
// fires once if the loop dies on a surface or driver error.
func newCaptureWorker(driver Driver, deviceID, streamID int, producer ProducerParams, logger *slog.Logger, onFatal func(deviceID, streamID int, err error)) *captureWorker {
	w := &captureWorker{
		driver:   driver,
		deviceID: deviceID,
		streamID: streamID,
		producer: producer,
		logger:   logger,
		onFatal:  onFatal,
		wake:     make(chan struct{}),
		done:     make(chan struct{}),
		state:    stateReleased,
	}
	go w.run()
	return w
}

func (w *captureWorker) run() {
	defer close(w.done)
	for w.loopOnce() {
	}
	w.mu.Lock()
	err := w.fatalErr
	w.mu.Unlock()
	if err != nil && w.onFatal != nil {
		w.onFatal(w.deviceID, w.streamID, err)
	}
	w.logger.Debug("capture worker stopped", "device", w.deviceID, "stream", w.streamID)
}

// loopOnce runs one iteration of the capture cycle. Returning false stops
// the worker; surface and driver errors are fatal for this worker only.
func (w *captureWorker) loopOnce() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closing {
		return false
	}
	if w.surface == nil {
		// Timing out here is expected; retry until a surface arrives.
		w.waitLocked(waitSlice)
		return true
	}
	for w.state == stateCapturing && !w.closing {
		w.waitLocked(waitSlice)
	}
	if w.state == stateCaptured {
		if err := w.surface.QueueBuffer(w.buffer); err != nil {
			w.fatalErr = NewError(ErrCodeWorkerFatal, "queueing buffer to surface failed", err)
			w.logger.Error("capture worker dying",
				"device", w.deviceID, "stream", w.streamID, "error", w.fatalErr)
			return false
		}
		w.buffer = nil
		w.state = stateReleased
	}
	if w.buffer == nil && !w.closing && w.surface != nil {
		buf, err := w.surface.DequeueBuffer()
		if err != nil {
			w.fatalErr = NewError(ErrCodeWorkerFatal, "dequeueing buffer from surface failed", err)
			w.logger.Error("capture worker dying",
				"device", w.deviceID, "stream", w.streamID, "error", w.fatalErr)
			return false
		}
		w.buffer = buf
		w.state = stateCapturing
		w.seq = w.nextSeq
		w.nextSeq++
		if err := w.driver.RequestCapture(w.deviceID, w.streamID, buf, w.seq); err != nil {
			w.fatalErr = NewError(ErrCodeWorkerFatal, "capture request rejected by driver", err)
			w.logger.Error("capture worker dying",
				"device", w.deviceID, "stream", w.streamID, "seq", w.seq, "error", w.fatalErr)
			w.buffer = nil
			w.state = stateReleased
			return false
		}
	}
	return true
}

// setSurface swaps the presentation target. An in-flight capture is
// cancelled and waited out before the swap, so no completion can race a
// swapped-in surface. A nil surface detaches.
func (w *captureWorker) setSurface(s Surface) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.setSurfaceLocked(s)
}

func (w *captureWorker) setSurfaceLocked(s Surface) {
	if s == w.surface {
		return
	}

	if w.state == stateCapturing {
		if err := w.driver.CancelCapture(w.deviceID, w.streamID, w.seq); err != nil {
			w.logger.Warn("cancelling in-flight capture failed",
				"device", w.deviceID, "stream", w.streamID, "seq", w.seq, "error", err)
		}
		deadline := time.Now().Add(surfaceSwapTimeout)
		for w.state == stateCapturing {
			if !time.Now().Before(deadline) {
				w.logger.Error("timed out waiting for in-flight capture to settle",
					"device", w.deviceID, "stream", w.streamID, "seq", w.seq)
				break
			}
			w.waitLocked(waitSlice)
		}
	}
	w.buffer = nil
	w.state = stateReleased

	w.surface = s
	if s != nil {
		w.configureSurfaceLocked(s)
	}
	w.broadcastLocked()
}

// configureSurfaceLocked propagates the stream's buffer geometry to a newly
// attached surface before its first dequeue.
func (w *captureWorker) configureSurfaceLocked(s Surface) {
	if err := s.SetUsage(w.producer.Usage); err != nil {
		w.logger.Error("setting surface usage failed",
			"device", w.deviceID, "stream", w.streamID, "error", err)
		return
	}
	if err := s.SetBufferDimensions(w.producer.Width, w.producer.Height); err != nil {
		w.logger.Error("setting surface dimensions failed",
			"device", w.deviceID, "stream", w.streamID, "error", err)
		return
	}
	if err := s.SetBufferFormat(w.producer.Format); err != nil {
		w.logger.Error("setting surface format failed",
			"device", w.deviceID, "stream", w.streamID, "error", err)
	}
}

// onCaptured handles the driver's completion signal. Stale or duplicate
// signals are logged and ignored; hardware races after cancellation are
// expected.
func (w *captureWorker) onCaptured(seq uint32, succeeded bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	defer w.broadcastLocked()

	if seq != w.seq {
		w.logger.Warn("capture completion with unexpected sequence",
			"device", w.deviceID, "stream", w.streamID, "expected", w.seq, "actual", seq)
		return
	}
	if w.state != stateCapturing {
		w.logger.Warn("capture completion in unexpected state",
			"device", w.deviceID, "stream", w.streamID, "state", w.state.String())
		return
	}
	if succeeded {
		w.state = stateCaptured
	} else {
		w.buffer = nil
		w.state = stateReleased
	}
}

// shutdown detaches the surface, cancelling any in-flight capture, and joins
// the loop goroutine. Safe to call more than once.
func (w *captureWorker) shutdown() {
	w.mu.Lock()
	if w.closing {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.closing = true
	w.setSurfaceLocked(nil)
	w.broadcastLocked()
	w.mu.Unlock()
	<-w.done
}

// waitLocked releases the lock, waits for the next broadcast or the timeout,
// and reacquires the lock. Returns true when woken by a broadcast.
func (w *captureWorker) waitLocked(d time.Duration) bool {
	ch := w.wake
	w.mu.Unlock()
	timer := time.NewTimer(d)
	defer timer.Stop()
	woken := false
	select {
	case <-ch:
		woken = true
	case <-timer.C:
	}
	w.mu.Lock()
	return woken
}

// broadcastLocked wakes every waiter and re-arms the wake channel.
func (w *captureWorker) broadcastLocked() {
	close(w.wake)
	w.wake = make(chan struct{})
}

// snapshot reports the current buffer state and last issued sequence.
func (w *captureWorker) snapshot() (bufferState, uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state, w.seq
}
