package exporters

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/videobridge/capturehal/internal/metrics"
)

func TestHTTPHandler(t *testing.T) {
	handler := HTTPHandler()
	if handler == nil {
		t.Fatal("expected non-nil handler")
	}

	// Emit a metric so there's something to export.
	metrics.IncCaptureRequest(9, 90)
	defer metrics.DeleteStreamMetrics(9, 90)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "capturehal_capture_requests_total") {
		t.Error("expected capture metrics in response")
	}
}

func TestSessionGaugeNames(t *testing.T) {
	metrics.SetActiveWorkers(3)
	metrics.SetDroppedEvents(7)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	HTTPHandler().ServeHTTP(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "capturehal_session_active_workers 3") {
		t.Error("expected active workers gauge in response")
	}
	// Gauges carry no _total suffix; that suffix marks counters.
	if !strings.Contains(body, "capturehal_session_dropped_events 7") {
		t.Error("expected dropped events gauge in response")
	}
	if strings.Contains(body, "capturehal_session_dropped_events_total") {
		t.Error("dropped events gauge must not use a counter suffix")
	}
}
