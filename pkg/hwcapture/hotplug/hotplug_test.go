//go:build linux

package hotplug

import (
	"reflect"
	"testing"
)

func TestParseUEvent(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected *Event
	}{
		{
			name:     "empty input",
			input:    []byte{},
			expected: nil,
		},
		{
			name:     "no separator",
			input:    []byte("invalid"),
			expected: nil,
		},
		{
			name:     "missing action",
			input:    []byte("@/devices/foo"),
			expected: nil,
		},
		{
			name:  "video device added",
			input: []byte("add@/devices/platform/hdmirx/video0\x00SUBSYSTEM=video4linux\x00DEVNAME=video0\x00"),
			expected: &Event{
				Action:    "add",
				KObj:      "/devices/platform/hdmirx/video0",
				Subsystem: "video4linux",
				DevName:   "video0",
				Env: map[string]string{
					"SUBSYSTEM": "video4linux",
					"DEVNAME":   "video0",
				},
			},
		},
		{
			name:  "drm connector change",
			input: []byte("change@/devices/platform/display\x00SUBSYSTEM=drm\x00DEVPATH=/devices/platform/display\x00HOTPLUG=1\x00CONNECTOR=32\x00"),
			expected: &Event{
				Action:    "change",
				KObj:      "/devices/platform/display",
				Subsystem: "drm",
				DevPath:   "/devices/platform/display",
				Env: map[string]string{
					"SUBSYSTEM": "drm",
					"DEVPATH":   "/devices/platform/display",
					"HOTPLUG":   "1",
					"CONNECTOR": "32",
				},
			},
		},
		{
			name:  "malformed pairs skipped",
			input: []byte("remove@/devices/usb/1-1\x00SUBSYSTEM=usb\x00NOEQUALS\x00=novalue\x00"),
			expected: &Event{
				Action:    "remove",
				KObj:      "/devices/usb/1-1",
				Subsystem: "usb",
				Env: map[string]string{
					"SUBSYSTEM": "usb",
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseUEvent(tt.input)
			if tt.expected == nil {
				if got != nil {
					t.Fatalf("expected nil, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected event, got nil")
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("got %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestParseUEventSkipsLibudevHeader(t *testing.T) {
	// udev relays carry a binary header before the uevent text.
	raw := append([]byte("libudev\x00"), []byte("add@/devices/platform/hdmirx\x00SUBSYSTEM=video4linux\x00")...)

	got := ParseUEvent(raw)
	if got == nil {
		t.Fatal("expected event, got nil")
	}
	if got.Action != ActionAdd || got.Subsystem != SubsystemVideo4Linux {
		t.Errorf("got %+v", got)
	}
}

func TestSubsystemFilterBookkeeping(t *testing.T) {
	m := &Monitor{filters: make(map[string]struct{})}
	m.AddSubsystemFilter(SubsystemVideo4Linux)
	m.AddSubsystemFilter(SubsystemDRM)

	if len(m.filters) != 2 {
		t.Fatalf("filter count = %d, want 2", len(m.filters))
	}
	if _, ok := m.filters[SubsystemDRM]; !ok {
		t.Error("drm filter missing")
	}
}
