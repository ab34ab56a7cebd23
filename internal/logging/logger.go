// Package logging provides centralized logging functionality for the application.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/segmentio/ksuid"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug for detailed troubleshooting information.
	LevelDebug LogLevel = "debug"
	// LevelInfo for general operational information.
	LevelInfo LogLevel = "info"
	// LevelWarn for potentially harmful situations.
	LevelWarn LogLevel = "warn"
	// LevelError for error events that might still allow the application to continue.
	LevelError LogLevel = "error"
)

// logRetention is how long rotated log files are kept on disk.
const logRetention = 14 * 24 * time.Hour

var (
	// defaultLogger is the default logger instance.
	defaultLogger *slog.Logger
)

// init initializes the default logger.
func init() {
	// Get log level from environment variable, default to "info"
	logLevelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = string(LevelInfo)
	}

	SetupLogger(os.Stdout, LogLevel(logLevelStr))
}

// Options configures the process-wide logger for a command run.
type Options struct {
	// Level is the minimum level written to every sink.
	Level LogLevel
	// Dir is where the daily log files go. Empty disables the file sink.
	Dir string
	// RunID is attached to every record. Empty generates a new one.
	RunID string
}

// Setup configures the default logger to write to stdout and, when opts.Dir is
// set, to a daily-rotated file in that directory. It returns the run ID stamped
// on every record and a closer for the file sink.
func Setup(opts Options) (string, io.Closer, error) {
	runID := opts.RunID
	if runID == "" {
		runID = NewRunID()
	}

	var (
		w      io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return "", nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		rl, err := rotatelogs.New(
			filepath.Join(opts.Dir, "onboard-%Y-%m-%d.log"),
			rotatelogs.WithLinkName(filepath.Join(opts.Dir, "onboard.log")),
			rotatelogs.WithRotationTime(24*time.Hour),
			rotatelogs.WithMaxAge(logRetention),
		)
		if err != nil {
			return "", nil, fmt.Errorf("failed to open log file: %w", err)
		}

		w = io.MultiWriter(os.Stdout, rl)
		closer = rl
	}

	SetupLogger(w, opts.Level)
	defaultLogger = defaultLogger.With("run_id", runID)
	slog.SetDefault(defaultLogger)

	return runID, closer, nil
}

// SetupLogger configures the logger with the specified output and level.
func SetupLogger(w io.Writer, level LogLevel) {
	var logLevel slog.Level
	switch level {
	case LevelDebug:
		logLevel = slog.LevelDebug
	case LevelInfo:
		logLevel = slog.LevelInfo
	case LevelWarn:
		logLevel = slog.LevelWarn
	case LevelError:
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewTextHandler(w, opts)
	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// NewRunID returns a sortable identifier for one command invocation.
func NewRunID() string {
	return ksuid.New().String()
}

// DefaultDir returns ~/.onboard/logs, or "" when the home directory is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".onboard", "logs")
}

// Debug logs a message at debug level.
func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

// Info logs a message at info level.
func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

// Warn logs a message at warn level.
func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

// Error logs a message at error level.
func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

// GetLogger returns the default logger.
func GetLogger() *slog.Logger {
	return defaultLogger
}

// MaskSensitive masks sensitive data for logging.
func MaskSensitive(value string) string {
	if value == "" {
		return "<not set>"
	}
	if len(value) <= 4 {
		return "<set>"
	}
	return value[:4] + "..." + strings.Repeat("*", 3)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
