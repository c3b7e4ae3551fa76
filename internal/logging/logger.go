// Package logging is the diagnostic file log. The TUI owns the terminal,
// so nothing here ever writes to stdout or stderr.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

var (
	// Logger is the global logger instance. It discards until Init runs.
	Logger = log.New(io.Discard)

	logFile *os.File
)

// Init opens dir/logs/tracklens-YYYY-MM-DD.log and points Logger at it.
func Init(dir, level, version string) error {
	logDir := filepath.Join(dir, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, fmt.Sprintf("tracklens-%s.log", time.Now().Format("2006-01-02")))
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	logFile = f

	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	Logger = log.NewWithOptions(f, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           lvl,
	})

	Logger.Info("tracklens started", "version", version)
	return nil
}

// Close closes the log file.
func Close() {
	Logger.Info("tracklens shutting down")
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	Logger = log.New(io.Discard)
}

// Info logs an info message
func Info(msg string, keyvals ...interface{}) { Logger.Info(msg, keyvals...) }

// Debug logs a debug message
func Debug(msg string, keyvals ...interface{}) { Logger.Debug(msg, keyvals...) }

// Warn logs a warning message
func Warn(msg string, keyvals ...interface{}) { Logger.Warn(msg, keyvals...) }

// Error logs an error message
func Error(msg string, keyvals ...interface{}) { Logger.Error(msg, keyvals...) }

// WithPrefix returns a logger with a prefix.
func WithPrefix(prefix string) *log.Logger { return Logger.WithPrefix(prefix) }
