// Package metrics provides Prometheus metrics for the capture pipeline.
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	captureRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capturehal",
		Subsystem: "capture",
		Name:      "requests_total",
		Help:      "Capture requests issued to the driver",
	}, []string{"device", "stream"})

	captureFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capturehal",
		Subsystem: "capture",
		Name:      "failures_total",
		Help:      "Capture requests that completed unsuccessfully",
	}, []string{"device", "stream"})

	framesPresented = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capturehal",
		Subsystem: "capture",
		Name:      "frames_presented_total",
		Help:      "Filled buffers queued back to their surface",
	}, []string{"device", "stream"})

	activeWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "capturehal",
		Subsystem: "session",
		Name:      "active_workers",
		Help:      "Capture workers currently running",
	})

	droppedEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "capturehal",
		Subsystem: "session",
		Name:      "dropped_events",
		Help:      "Driver events dropped by the session dispatcher",
	})

	// Local cache for the SSE exporter.
	streamCache   = make(map[StreamKey]*StreamMetrics)
	streamCacheMu sync.RWMutex
)

// StreamKey identifies a stream across the metrics cache.
type StreamKey struct {
	DeviceID int
	StreamID int
}

// StreamMetrics holds current counter values for a stream.
type StreamMetrics struct {
	Captures        uint64
	Failures        uint64
	FramesPresented uint64
}

func labels(key StreamKey) (string, string) {
	return strconv.Itoa(key.DeviceID), strconv.Itoa(key.StreamID)
}

// IncCaptureRequest counts one capture request for a stream.
func IncCaptureRequest(deviceID, streamID int) {
	key := StreamKey{deviceID, streamID}
	d, s := labels(key)
	captureRequests.WithLabelValues(d, s).Inc()
	updateCache(key, func(m *StreamMetrics) { m.Captures++ })
}

// IncCaptureFailure counts one failed capture for a stream.
func IncCaptureFailure(deviceID, streamID int) {
	key := StreamKey{deviceID, streamID}
	d, s := labels(key)
	captureFailures.WithLabelValues(d, s).Inc()
	updateCache(key, func(m *StreamMetrics) { m.Failures++ })
}

// IncFramePresented counts one frame queued to a surface.
func IncFramePresented(deviceID, streamID int) {
	key := StreamKey{deviceID, streamID}
	d, s := labels(key)
	framesPresented.WithLabelValues(d, s).Inc()
	updateCache(key, func(m *StreamMetrics) { m.FramesPresented++ })
}

// SetActiveWorkers records the current worker count.
func SetActiveWorkers(n int) {
	activeWorkers.Set(float64(n))
}

// SetDroppedEvents records the dispatcher drop counter.
func SetDroppedEvents(n uint64) {
	droppedEvents.Set(float64(n))
}

// DeleteStreamMetrics removes all metrics for a stream.
func DeleteStreamMetrics(deviceID, streamID int) {
	key := StreamKey{deviceID, streamID}
	d, s := labels(key)
	captureRequests.DeleteLabelValues(d, s)
	captureFailures.DeleteLabelValues(d, s)
	framesPresented.DeleteLabelValues(d, s)

	streamCacheMu.Lock()
	delete(streamCache, key)
	streamCacheMu.Unlock()
}

// GetStreamMetrics returns current counter values for a stream.
func GetStreamMetrics(deviceID, streamID int) *StreamMetrics {
	streamCacheMu.RLock()
	defer streamCacheMu.RUnlock()
	if m, ok := streamCache[StreamKey{deviceID, streamID}]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllStreamMetrics returns counters for every active stream.
func GetAllStreamMetrics() map[StreamKey]*StreamMetrics {
	streamCacheMu.RLock()
	defer streamCacheMu.RUnlock()
	result := make(map[StreamKey]*StreamMetrics, len(streamCache))
	for key, m := range streamCache {
		dup := *m
		result[key] = &dup
	}
	return result
}

func updateCache(key StreamKey, update func(*StreamMetrics)) {
	streamCacheMu.Lock()
	defer streamCacheMu.Unlock()
	m, ok := streamCache[key]
	if !ok {
		m = &StreamMetrics{}
		streamCache[key] = m
	}
	update(m)
}
