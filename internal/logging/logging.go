// Package logging configures the process-wide structured logger. Log files
// rotate via lumberjack; when no log directory is configured everything is
// discarded so library consumers stay silent by default.
package logging

import (
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Component names for per-subsystem loggers.
const (
	CompDiscovery = "discovery"
	CompStore     = "store"
	CompSection   = "section"
	CompWatch     = "watch"
	CompCLI       = "cli"
)

// Config holds logging configuration.
type Config struct {
	// LogDir is the directory for log files. Empty discards all output.
	LogDir string

	// Level is the minimum level: "debug", "info", "warn", "error".
	Level string

	// MaxSizeMB is the max log size before rotation (default 10).
	MaxSizeMB int

	// MaxBackups is the number of rotated files to keep (default 3).
	MaxBackups int
}

var (
	globalMu     sync.RWMutex
	globalLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
)

// Init installs the global logger. Safe to call more than once; the last
// call wins.
func Init(cfg Config) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if cfg.LogDir == "" {
		globalLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

		return
	}

	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 10
	}

	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 3
	}

	level := slog.LevelInfo

	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	writer := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "mdt.log"),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}

	globalLogger = slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: level}))
}

// ForComponent returns the global logger tagged with a component name.
func ForComponent(name string) *slog.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()

	return globalLogger.With(slog.String("component", name))
}
