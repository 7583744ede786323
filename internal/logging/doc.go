// Package logging provides structured logging with per-module log level
// configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Logs to both when both are available
//
// A fixed-size ring buffer additionally records recent entries for the
// /api/logs endpoint and the SSE log stream.
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"hal": "debug",  // Per-module overrides
//			"api": "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("hal")
//	logger.Info("stream opened", "device", deviceID, "stream", streamID)
//
// Add contextual attributes:
//
//	logger := logging.GetLogger("worker").With("device", deviceID)
//	logger.Debug("capture requested") // includes device in all logs
//
// # Viewing Logs
//
// When running as a systemd service or on a system with journald:
//
//	journalctl -t capturehal              # All capturehal logs
//	journalctl -t capturehal -f           # Follow live
//	journalctl -t capturehal -p err       # Errors only
//
// Filter by structured fields:
//
//	journalctl -t capturehal MODULE=hal
//	journalctl -t capturehal DEVICE=1
//
// # Configuration
//
// Log levels can be set globally or per-module. Module-specific levels
// override the global level for that module only.
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	hal = "debug"
//	api = "warn"
package logging
