package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/videobridge/capturehal/cmd"
	"github.com/videobridge/capturehal/internal/api"
	"github.com/videobridge/capturehal/internal/bridge"
	"github.com/videobridge/capturehal/internal/config"
	"github.com/videobridge/capturehal/internal/devices"
	"github.com/videobridge/capturehal/internal/events"
	"github.com/videobridge/capturehal/internal/hal"
	"github.com/videobridge/capturehal/internal/hal/sim"
	"github.com/videobridge/capturehal/internal/logging"
	"github.com/videobridge/capturehal/internal/metrics/collectors"
	"github.com/videobridge/capturehal/internal/metrics/exporters"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Device settings
	DeviceTable string `help:"Device table file" default:"devices.toml" toml:"devices.table_file" env:"DEVICES_TABLE_FILE"`
	Hotplug     bool   `help:"Follow kernel hotplug events" default:"true" toml:"devices.hotplug" env:"DEVICES_HOTPLUG"`

	// Metrics settings
	MetricsEnabled bool `help:"Expose Prometheus metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`
	StatsSSE       bool `help:"Publish capture stats over SSE" default:"true" toml:"metrics.sse_enabled" env:"METRICS_SSE_ENABLED"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingHAL     string `help:"Capture session logging level" default:"info" toml:"logging.hal" env:"LOGGING_HAL"`
	LoggingWorker  string `help:"Capture worker logging level" default:"info" toml:"logging.worker" env:"LOGGING_WORKER"`
	LoggingSim     string `help:"Simulated driver logging level" default:"info" toml:"logging.sim" env:"LOGGING_SIM"`
	LoggingBridge  string `help:"Bridge service logging level" default:"info" toml:"logging.bridge" env:"LOGGING_BRIDGE"`
	LoggingDevices string `help:"Hotplug monitor logging level" default:"info" toml:"logging.devices" env:"LOGGING_DEVICES"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"hal":     opts.LoggingHAL,
				"worker":  opts.LoggingWorker,
				"sim":     opts.LoggingSim,
				"bridge":  opts.LoggingBridge,
				"devices": opts.LoggingDevices,
				"api":     opts.LoggingAPI,
			},
		})
		logger := logging.GetLogger("main")

		// Device table holds the simulated hardware inventory.
		deviceManager := config.NewDeviceManager(opts.DeviceTable)
		if loadErr := deviceManager.Load(); loadErr != nil {
			logger.Warn("Failed to load device table", "error", loadErr)
		}
		profiles := deviceManager.Devices()

		driver := sim.NewDriver(profiles)
		eventBus := events.New()

		service, err := bridge.New(driver, eventBus, func(deviceID, streamID int) hal.Surface {
			return sim.NewSurface()
		})
		if err != nil {
			logger.Error("Failed to open capture session", "error", err)
			os.Exit(1)
		}

		monitor := devices.NewMonitor(profiles, driver)

		collector := collectors.NewSessionCollector(service)
		var statsExporter *exporters.StatsExporter
		if opts.StatsSSE {
			statsExporter = exporters.NewStatsExporter(eventBus)
		}

		// Reconcile the driver when the device table file changes on disk.
		tableWatcher := config.NewConfigWatcher(
			opts.DeviceTable,
			config.LoadDeviceTable,
			logging.GetLogger("devices"),
		)
		tableWatcher.OnReload(func(table config.DeviceTable) {
			reconcileDevices(driver, table)
		})

		// Live log level changes from the config file, no restart needed.
		logWatcher := config.NewConfigWatcher(
			opts.Config,
			func(path string) (logging.Config, error) {
				return config.LoadLoggingConfig(path), nil
			},
			logging.GetLogger("main"),
		)
		logWatcher.OnReload(logging.ApplyLevels)

		apiOpts := &api.Options{
			AuthUsername: opts.AuthUsername,
			AuthPassword: opts.AuthPassword,
			Service:      service,
			EventBus:     eventBus,
		}
		if opts.MetricsEnabled {
			apiOpts.PrometheusHandler = exporters.HTTPHandler()
		}
		server := api.NewServer(apiOpts)

		hooks.OnStart(func() {
			collector.Start(context.Background())
			if statsExporter != nil {
				statsExporter.Start(context.Background())
			}

			if opts.Hotplug {
				if startErr := monitor.Start(context.Background()); startErr != nil {
					logger.Warn("Hotplug monitoring unavailable", "error", startErr)
				}
			}
			if startErr := tableWatcher.Start(); startErr != nil {
				logger.Warn("Device table watching unavailable", "error", startErr)
			}
			if startErr := logWatcher.Start(); startErr != nil {
				logger.Warn("Config watching unavailable", "error", startErr)
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			logWatcher.Stop()
			tableWatcher.Stop()
			monitor.Stop()
			if statsExporter != nil {
				statsExporter.Stop()
			}
			collector.Stop()

			if closeErr := service.Close(); closeErr != nil {
				logger.Error("Error closing capture session", "error", closeErr)
			}
		})
	})

	cli.Root().AddCommand(cmd.CreateProbeCmd())

	cli.Run()
}

// reconcileDevices applies a freshly loaded device table to the running
// driver: new and changed profiles are plugged, vanished ones unplugged.
func reconcileDevices(driver *sim.Driver, table config.DeviceTable) {
	wanted := make(map[int]config.DeviceProfile, len(table.Devices))
	for _, profile := range table.Devices {
		wanted[profile.ID] = profile
	}

	for _, id := range driver.DeviceIDs() {
		if _, ok := wanted[id]; !ok {
			driver.Unplug(id)
		}
	}
	for _, profile := range wanted {
		driver.Plug(profile)
	}
}
