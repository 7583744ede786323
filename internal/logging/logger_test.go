package logging

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func resetState() {
	mu.Lock()
	loggers = make(map[string]*slog.Logger)
	levels = make(map[string]*slog.LevelVar)
	initialized = false
	cfg = Config{}
	history = nil
	callback = nil
	mu.Unlock()
}

func TestModuleLevelOverride(t *testing.T) {
	resetState()

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"hal": "debug",
			"api": "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"hal", true, true, true},
		{"api", false, false, true},
		{"other", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()

			if got := handler.Enabled(context.Background(), slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("module %q: Debug enabled = %v, want %v", tt.module, got, tt.wantDebug)
			}
			if got := handler.Enabled(context.Background(), slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("module %q: Info enabled = %v, want %v", tt.module, got, tt.wantInfo)
			}
			if got := handler.Enabled(context.Background(), slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("module %q: Warn enabled = %v, want %v", tt.module, got, tt.wantWarn)
			}
		})
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetState()

	before := GetLogger("worker")
	if before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger created before Initialize should default to info level")
	}

	Initialize(Config{
		Level:   "info",
		Format:  "text",
		Modules: map[string]string{"worker": "debug"},
	})

	after := GetLogger("worker")
	if before != after {
		t.Error("logger should be cached across Initialize")
	}
	if !before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("cached logger should pick up the configured level after Initialize")
	}
}

func TestApplyLevelsChangesExistingLoggers(t *testing.T) {
	resetState()
	Initialize(Config{Level: "info", Format: "text"})

	handler := GetLogger("hal").Handler()
	if handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("hal logger should start at info level")
	}

	ApplyLevels(Config{
		Level:   "info",
		Modules: map[string]string{"hal": "debug"},
	})

	if !handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("ApplyLevels should raise the hal logger to debug")
	}
}

func TestFanoutWritesOnce(t *testing.T) {
	var buf bytes.Buffer

	debugHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	infoHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(newFanout(debugHandler, infoHandler)).With("module", "test")
	logger.Debug("debug only message")

	output := buf.String()
	if count := strings.Count(output, "debug only message"); count != 1 {
		t.Errorf("expected 1 debug message, got %d. Output: %s", count, output)
	}
}

func TestFanoutPropagatesAttrs(t *testing.T) {
	var a, b bytes.Buffer

	handler := newFanout(
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelInfo}),
	).WithAttrs([]slog.Attr{slog.String("module", "hal")})

	slog.New(handler).Info("stream opened")

	for name, out := range map[string]string{"first": a.String(), "second": b.String()} {
		if !strings.Contains(out, "module=hal") {
			t.Errorf("%s sink missing attached attrs: %q", name, out)
		}
	}
}

func TestBufferHandlerRecordsEntries(t *testing.T) {
	resetState()
	Initialize(Config{Level: "info", Format: "text"})

	var seen []LogEntry
	SetLogCallback(func(entry LogEntry) { seen = append(seen, entry) })
	t.Cleanup(func() { SetLogCallback(nil) })

	lv := &slog.LevelVar{}
	logger := slog.New(NewBufferHandler(lv)).With("module", "hal")
	logger.Info("stream opened", "device", 1)

	entries := GetBuffer().ReadAll()
	if len(entries) != 1 {
		t.Fatalf("expected 1 buffered entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Module != "hal" || entry.Message != "stream opened" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.Attributes["device"] != int64(1) {
		t.Errorf("expected device attribute, got %v", entry.Attributes)
	}
	if len(seen) != 1 {
		t.Errorf("expected callback for the entry, got %d calls", len(seen))
	}
}

func TestRingBufferWrapsAround(t *testing.T) {
	rb := NewRingBuffer(3)
	for i := 0; i < 5; i++ {
		rb.Write(LogEntry{Message: fmt.Sprintf("entry-%d", i), Timestamp: time.Now()})
	}

	entries := rb.ReadAll()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries after wraparound, got %d", len(entries))
	}
	for i, want := range []string{"entry-2", "entry-3", "entry-4"} {
		if entries[i].Message != want {
			t.Errorf("entry %d = %q, want %q", i, entries[i].Message, want)
		}
	}
	if rb.Count() != 3 {
		t.Errorf("Count() = %d, want 3", rb.Count())
	}
}

func TestParseLevelValues(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		ok    bool
	}{
		{"debug", slog.LevelDebug, true},
		{"DEBUG", slog.LevelDebug, true},
		{"info", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"invalid", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseLevel(tt.input)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("parseLevel(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFormatLogLine(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	line := FormatLogLine(LogEntry{
		Timestamp:  ts,
		Level:      "warn",
		Module:     "hal",
		Message:    "capture cancelled",
		Attributes: map[string]any{"device": 1, "stream": 20},
	})

	for _, want := range []string{"[WARN]", "[hal]", "capture cancelled", "device=1", "stream=20"} {
		if !strings.Contains(line, want) {
			t.Errorf("formatted line missing %q: %s", want, line)
		}
	}
}
