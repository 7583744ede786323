// Package devices maps kernel hotplug events onto the capture driver. Each
// configured device profile names the kernel device node it corresponds to;
// uevents for that node plug, unplug, or change the driver-side device.
package devices

import (
	"context"
	"log/slog"
	"sync"

	"github.com/videobridge/capturehal/internal/config"
	"github.com/videobridge/capturehal/internal/logging"
	"github.com/videobridge/capturehal/pkg/hwcapture/hotplug"
)

// Actions is the driver surface the monitor drives.
type Actions interface {
	Plug(profile config.DeviceProfile)
	Unplug(deviceID int)
	SetCableStatus(deviceID int, connected bool)
}

// Monitor translates kernel uevents into driver device lifecycle calls.
type Monitor struct {
	logger   *slog.Logger
	actions  Actions
	profiles map[string]config.DeviceProfile

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor builds a monitor for the given device profiles. Profiles are
// matched to uevents by device node name, so a profile named "video0"
// follows the kernel's video0 node.
func NewMonitor(profiles []config.DeviceProfile, actions Actions) *Monitor {
	byName := make(map[string]config.DeviceProfile, len(profiles))
	for _, p := range profiles {
		byName[p.Name] = p
	}
	return &Monitor{
		logger:   logging.GetLogger("devices"),
		actions:  actions,
		profiles: byName,
	}
}

// Start begins watching kernel uevents. It returns an error when the
// netlink socket cannot be opened, which includes non-linux platforms.
func (m *Monitor) Start(ctx context.Context) error {
	mon, err := hotplug.NewMonitor()
	if err != nil {
		return err
	}
	mon.AddSubsystemFilter(hotplug.SubsystemVideo4Linux)
	mon.AddSubsystemFilter(hotplug.SubsystemDRM)

	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	eventCh := make(chan hotplug.Event, 16)
	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		defer mon.Close()
		if err := mon.Run(ctx, eventCh); err != nil && ctx.Err() == nil {
			m.logger.Error("hotplug monitor stopped", "error", err)
		}
	}()
	go func() {
		defer m.wg.Done()
		for event := range eventCh {
			m.handleEvent(event)
		}
	}()

	m.logger.Info("hotplug monitoring started", "profiles", len(m.profiles))
	return nil
}

// Stop halts event processing and waits for the watcher goroutines.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		m.wg.Wait()
	}
}

func (m *Monitor) handleEvent(event hotplug.Event) {
	profile, ok := m.matchProfile(event)
	if !ok {
		return
	}

	switch event.Action {
	case hotplug.ActionAdd:
		m.logger.Info("device node appeared", "name", profile.Name, "device", profile.ID)
		m.actions.Plug(profile)
	case hotplug.ActionRemove:
		m.logger.Info("device node removed", "name", profile.Name, "device", profile.ID)
		m.actions.Unplug(profile.ID)
	case hotplug.ActionChange:
		// DRM connector changes report the new link state in STATE.
		state, ok := event.Env["STATE"]
		if !ok {
			return
		}
		connected := state == "connected"
		m.logger.Info("connector state changed", "name", profile.Name, "device", profile.ID, "connected", connected)
		m.actions.SetCableStatus(profile.ID, connected)
	}
}

func (m *Monitor) matchProfile(event hotplug.Event) (config.DeviceProfile, bool) {
	name := event.DevName
	if name == "" {
		name = event.Env["CONNECTOR_NAME"]
	}
	profile, ok := m.profiles[name]
	return profile, ok
}
