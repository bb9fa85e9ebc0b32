package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/tphakala/eas-monitor/internal/conf"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

// Add trace and fatal level names.
var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

var (
	mu               sync.RWMutex
	structuredLogger *slog.Logger
	level            = new(slog.LevelVar)
	fileWriter       *lumberjack.Logger
)

// replaceLevelNames maps the custom levels to their names.
func replaceLevelNames(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		lvl, ok := a.Value.Any().(slog.Level)
		if !ok {
			return a
		}
		label, exists := levelNames[lvl]
		if !exists {
			label = lvl.String()
		}
		a.Value = slog.StringValue(label)
	}
	return a
}

// Init initializes the logging system. Human-readable text goes to stderr;
// when cfg is enabled, JSON records are also written to a rotating file.
// Init may be called again to reconfigure outputs.
func Init(cfg conf.LogConfig, debug bool) error {
	mu.Lock()
	defer mu.Unlock()

	if debug {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceLevelNames}
	handlers := []slog.Handler{slog.NewTextHandler(os.Stderr, opts)}

	if fileWriter != nil {
		_ = fileWriter.Close()
		fileWriter = nil
	}
	if cfg.Enabled && cfg.Path != "" {
		w, err := newRotatingWriter(cfg)
		if err != nil {
			return err
		}
		fileWriter = w
		handlers = append(handlers, slog.NewJSONHandler(w, opts))
	}

	structuredLogger = slog.New(fanout(handlers))
	slog.SetDefault(structuredLogger)
	return nil
}

// InitWriter routes all logs to w as JSON, used by tests and the decode command.
func InitWriter(w io.Writer, lvl slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	level.Set(lvl)
	structuredLogger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level, ReplaceAttr: replaceLevelNames}))
	slog.SetDefault(structuredLogger)
}

// SetLevel sets the minimum logging level of every output.
func SetLevel(lvl slog.Level) {
	level.Set(lvl)
}

// Close flushes and closes the log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if fileWriter == nil {
		return nil
	}
	err := fileWriter.Close()
	fileWriter = nil
	return err
}

// ForService creates a new logger instance with the 'service' attribute added.
// Returns nil if Init() has not been called.
func ForService(serviceName string) *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if structuredLogger == nil {
		return nil
	}
	return structuredLogger.With("service", serviceName)
}

// Trace logs a trace message using the custom Trace level.
func Trace(msg string, args ...any) {
	slog.Log(context.TODO(), LevelTrace, msg, args...)
}

// Fatal logs a fatal message using the custom Fatal level and then exits.
func Fatal(msg string, args ...any) {
	slog.Log(context.TODO(), LevelFatal, msg, args...)
	_ = Close()
	os.Exit(1)
}

// NewFileLogger creates a logger writing JSON records to filePath with
// rotation taken from cfg. The returned function closes the file.
func NewFileLogger(filePath, serviceName string, lvl slog.Level, cfg conf.LogConfig) (*slog.Logger, func() error, error) {
	cfg.Path = filePath
	w, err := newRotatingWriter(cfg)
	if err != nil {
		return nil, nil, err
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl, ReplaceAttr: replaceLevelNames})
	logger := slog.New(handler).With("service", serviceName)
	return logger, w.Close, nil
}

// newRotatingWriter builds a lumberjack writer from cfg.
func newRotatingWriter(cfg conf.LogConfig) (*lumberjack.Logger, error) {
	// lumberjack does not create directories
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}
	}

	w := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    100, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}

	if sizeMB := int(cfg.MaxSize / (1024 * 1024)); sizeMB > 0 {
		w.MaxSize = sizeMB
	}

	switch cfg.Rotation {
	case conf.RotationDaily:
		w.MaxAge = 1
		w.MaxBackups = 30
	case conf.RotationWeekly:
		w.MaxAge = 7
		w.MaxBackups = 4
	case conf.RotationSize, "":
	default:
		slog.Warn("Unknown log rotation type in config, using size-based defaults", "configured_type", cfg.Rotation)
	}
	if cfg.MaxBackups > 0 {
		w.MaxBackups = cfg.MaxBackups
	}

	return w, nil
}
