//go:build !linux

// Package hotplug watches kernel device events over netlink without cgo.
// Netlink uevents are Linux-only; this stub keeps other platforms building.
package hotplug

import (
	"context"
	"errors"
)

// ErrUnsupported is returned on platforms without netlink uevents.
var ErrUnsupported = errors.New("hotplug monitoring requires linux")

// Uevent action values relevant to capture hardware.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionChange = "change"
	ActionBind   = "bind"
	ActionUnbind = "unbind"
)

// Subsystems that carry capture connector events.
const (
	SubsystemVideo4Linux = "video4linux"
	SubsystemDRM         = "drm"
	SubsystemUSB         = "usb"
)

// Event is one parsed kernel uevent.
type Event struct {
	Action    string
	KObj      string
	Subsystem string
	DevType   string
	DevName   string
	DevPath   string
	Env       map[string]string
}

// Monitor is unavailable on this platform.
type Monitor struct{}

// NewMonitor always fails on non-linux platforms.
func NewMonitor() (*Monitor, error) {
	return nil, ErrUnsupported
}

// AddSubsystemFilter is a no-op on this platform.
func (m *Monitor) AddSubsystemFilter(string) {}

// Close is a no-op on this platform.
func (m *Monitor) Close() error { return nil }

// Run always fails on non-linux platforms.
func (m *Monitor) Run(context.Context, chan<- Event) error {
	return ErrUnsupported
}
