package metrics

import (
	"sync"
	"testing"
)

func TestStreamMetricsCache(t *testing.T) {
	DeleteStreamMetrics(1, 20)

	if m := GetStreamMetrics(1, 20); m != nil {
		t.Error("expected nil for unknown stream")
	}

	IncCaptureRequest(1, 20)
	IncCaptureRequest(1, 20)
	IncCaptureFailure(1, 20)
	IncFramePresented(1, 20)

	m := GetStreamMetrics(1, 20)
	if m == nil {
		t.Fatal("expected metrics after increments")
	}
	if m.Captures != 2 || m.Failures != 1 || m.FramesPresented != 1 {
		t.Errorf("unexpected counters: %+v", m)
	}

	// Returned values are copies.
	m.Captures = 999
	if got := GetStreamMetrics(1, 20); got.Captures != 2 {
		t.Error("GetStreamMetrics must return a copy")
	}

	DeleteStreamMetrics(1, 20)
	if m := GetStreamMetrics(1, 20); m != nil {
		t.Error("expected nil after delete")
	}
}

func TestGetAllStreamMetrics(t *testing.T) {
	DeleteStreamMetrics(1, 10)
	DeleteStreamMetrics(2, 20)

	IncCaptureRequest(1, 10)
	IncCaptureRequest(2, 20)
	defer DeleteStreamMetrics(1, 10)
	defer DeleteStreamMetrics(2, 20)

	all := GetAllStreamMetrics()
	if all[StreamKey{1, 10}] == nil || all[StreamKey{2, 20}] == nil {
		t.Errorf("expected both streams present, got %v", all)
	}
}

func TestConcurrentUpdates(t *testing.T) {
	DeleteStreamMetrics(3, 30)
	defer DeleteStreamMetrics(3, 30)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				IncCaptureRequest(3, 30)
			}
		}()
	}
	wg.Wait()

	if m := GetStreamMetrics(3, 30); m.Captures != 1000 {
		t.Errorf("Captures = %d, want 1000", m.Captures)
	}
}
