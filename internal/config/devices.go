package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// StreamProfile describes one stream a simulated device offers.
type StreamProfile struct {
	ID        int    `toml:"id" json:"id"`
	Type      string `toml:"type" json:"type"` // sideband or buffer_producer
	MaxWidth  int    `toml:"max_width" json:"max_width"`
	MaxHeight int    `toml:"max_height" json:"max_height"`
}

// DeviceProfile describes a simulated capture device.
type DeviceProfile struct {
	ID        int             `toml:"id" json:"id"`
	Name      string          `toml:"name,omitempty" json:"name,omitempty"`
	Type      string          `toml:"type" json:"type"` // hdmi, component, composite, tuner, other
	Port      int             `toml:"port,omitempty" json:"port,omitempty"`
	Connected bool            `toml:"connected" json:"connected"`
	FrameRate int             `toml:"frame_rate,omitempty" json:"frame_rate,omitempty"`
	Streams   []StreamProfile `toml:"streams" json:"streams"`

	CreatedAt time.Time `toml:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt time.Time `toml:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// DeviceTable is the on-disk device definition file for the simulated
// driver.
type DeviceTable struct {
	Version int             `toml:"version" json:"version"`
	Devices []DeviceProfile `toml:"devices" json:"devices"`
}

// DeviceManager loads and persists the simulated device table.
type DeviceManager struct {
	path  string
	table *DeviceTable
}

// NewDeviceManager creates a manager for the given table file.
func NewDeviceManager(path string) *DeviceManager {
	if path == "" {
		path = "devices.toml"
	}
	return &DeviceManager{
		path:  path,
		table: &DeviceTable{Version: 1},
	}
}

// Load reads the device table from disk. A missing file leaves the table
// empty.
func (m *DeviceManager) Load() error {
	if _, err := os.Stat(m.path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("failed to read device table: %w", err)
	}
	if err := toml.Unmarshal(data, m.table); err != nil {
		return fmt.Errorf("failed to parse device table: %w", err)
	}
	if m.table.Version == 0 {
		m.table.Version = 1
	}
	return nil
}

// Save writes the device table to disk.
func (m *DeviceManager) Save() error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(m.table)
	if err != nil {
		return fmt.Errorf("failed to marshal device table: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write device table: %w", err)
	}
	return nil
}

// AddDevice appends or replaces a device profile and persists the table.
func (m *DeviceManager) AddDevice(profile DeviceProfile) error {
	if profile.ID <= 0 {
		return fmt.Errorf("device id must be positive")
	}
	if profile.Type == "" {
		return fmt.Errorf("device type cannot be empty")
	}

	now := time.Now()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	for i, existing := range m.table.Devices {
		if existing.ID == profile.ID {
			profile.CreatedAt = existing.CreatedAt
			m.table.Devices[i] = profile
			return m.Save()
		}
	}
	m.table.Devices = append(m.table.Devices, profile)
	return m.Save()
}

// RemoveDevice deletes a device profile and persists the table.
func (m *DeviceManager) RemoveDevice(id int) error {
	for i, existing := range m.table.Devices {
		if existing.ID == id {
			m.table.Devices = append(m.table.Devices[:i], m.table.Devices[i+1:]...)
			return m.Save()
		}
	}
	return fmt.Errorf("device %d not found", id)
}

// GetDevice returns the profile for a device id.
func (m *DeviceManager) GetDevice(id int) (DeviceProfile, bool) {
	for _, d := range m.table.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return DeviceProfile{}, false
}

// Devices returns all device profiles.
func (m *DeviceManager) Devices() []DeviceProfile {
	return m.table.Devices
}

// ConnectedDevices returns profiles whose cable is connected.
func (m *DeviceManager) ConnectedDevices() []DeviceProfile {
	var out []DeviceProfile
	for _, d := range m.table.Devices {
		if d.Connected {
			out = append(out, d)
		}
	}
	return out
}

// LoadDeviceTable reads a device table without a manager, for the config
// watcher's reload path.
func LoadDeviceTable(path string) (DeviceTable, error) {
	var table DeviceTable
	data, err := os.ReadFile(path)
	if err != nil {
		return table, err
	}
	if err := toml.Unmarshal(data, &table); err != nil {
		return table, err
	}
	return table, nil
}
