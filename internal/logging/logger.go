package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const historySize = 1000

// Logger is the subset of *slog.Logger the rest of the codebase relies on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

var (
	mu          sync.RWMutex
	cfg         Config
	initialized bool
	globalLevel = &slog.LevelVar{}
	loggers     = make(map[string]*slog.Logger)
	levels      = make(map[string]*slog.LevelVar)
	history     *RingBuffer
	callback    LogCallback
)

// Initialize sets up the logging system. Loggers handed out before
// Initialize are rebuilt so they pick up the configured outputs.
func Initialize(config Config) {
	mu.Lock()
	defer mu.Unlock()

	cfg = config
	initialized = true
	history = NewRingBuffer(historySize)
	globalLevel.Set(levelFor(config, ""))

	for module, lv := range levels {
		lv.Set(levelFor(config, module))
		loggers[module] = slog.New(newHandler(config.Format, lv)).With("module", module)
	}

	slog.SetDefault(slog.New(newHandler(config.Format, globalLevel)))
}

// ApplyLevels re-applies log levels from config at runtime without
// rebuilding handlers. Used when the config file changes on disk.
func ApplyLevels(config Config) {
	mu.Lock()
	defer mu.Unlock()

	cfg.Level = config.Level
	cfg.Modules = config.Modules
	globalLevel.Set(levelFor(config, ""))
	for module, lv := range levels {
		lv.Set(levelFor(config, module))
	}
}

// GetLogger returns a logger for the specified module, creating it if needed.
func GetLogger(module string) *slog.Logger {
	mu.RLock()
	if logger, ok := loggers[module]; ok {
		mu.RUnlock()
		return logger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if logger, ok := loggers[module]; ok {
		return logger
	}

	lv := &slog.LevelVar{}
	format := "text"
	if initialized {
		lv.Set(levelFor(cfg, module))
		format = cfg.Format
	} else {
		lv.Set(slog.LevelInfo)
	}

	logger := slog.New(newHandler(format, lv)).With("module", module)
	loggers[module] = logger
	levels[module] = lv
	return logger
}

// GetBuffer returns the ring buffer holding recent log entries, or nil
// before Initialize has run.
func GetBuffer() *RingBuffer {
	mu.RLock()
	defer mu.RUnlock()
	return history
}

// SetLogCallback registers a callback invoked for every new log entry.
// Used to publish log events without creating import cycles.
func SetLogCallback(cb LogCallback) {
	mu.Lock()
	defer mu.Unlock()
	callback = cb
}

// levelFor resolves the effective level for a module, falling back to the
// global level and then to info. Call with mu held or with a local config.
func levelFor(config Config, module string) slog.Level {
	if module != "" {
		if s, ok := config.Modules[module]; ok {
			if l, ok := parseLevel(s); ok {
				return l
			}
		}
	}
	if l, ok := parseLevel(config.Level); ok {
		return l
	}
	return slog.LevelInfo
}

// newHandler builds the output chain for one logger: stdout when connected,
// journald when running under systemd, and always the ring buffer.
func newHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdout slog.Handler
	if format == "json" {
		stdout = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdout = slog.NewTextHandler(os.Stdout, opts)
	}

	var handlers []slog.Handler
	if stdoutUsable() {
		handlers = append(handlers, stdout)
	}
	if journalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	// The buffer handler checks for the buffer at write time, so it is
	// safe to install before Initialize allocates one.
	handlers = append(handlers, NewBufferHandler(level))

	switch len(handlers) {
	case 0:
		return stdout
	case 1:
		return handlers[0]
	default:
		return newFanout(handlers...)
	}
}

// stdoutUsable reports whether stdout goes somewhere useful: a terminal,
// pipe, socket, or regular file.
func stdoutUsable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return (mode&os.ModeCharDevice) != 0 || (mode&os.ModeNamedPipe) != 0 || (mode&os.ModeSocket) != 0 || mode.IsRegular()
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return 0, false
	}
}

// bufferSink returns the current buffer and callback for the buffer handler.
func bufferSink() (*RingBuffer, LogCallback) {
	mu.RLock()
	defer mu.RUnlock()
	return history, callback
}
