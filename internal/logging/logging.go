package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

var (
	currentLevel LogLevel
	levelOnce    sync.Once

	fileSink   *lumberjack.Logger
	fileSinkMu sync.Mutex
)

// ParseLevel converts a level name into a LogLevel. The second return value
// is false when the name is not recognized.
func ParseLevel(name string) (LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

// initLevel initializes the log level from environment variables
func initLevel() {
	levelOnce.Do(func() {
		// DEBUG wins over LOG_LEVEL
		if debug := os.Getenv("DEBUG"); debug != "" {
			switch strings.ToLower(debug) {
			case "1", "true", "yes", "on":
				currentLevel = LevelDebug
				return
			}
		}

		currentLevel, _ = ParseLevel(os.Getenv("LOG_LEVEL"))
	})
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	initLevel()
	return currentLevel
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

// FileOptions configures the optional rotating log file.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// EnableFile mirrors all log output into a size-rotated file in addition to
// stderr. Calling it again replaces the previous file sink.
func EnableFile(opts FileOptions) error {
	if opts.Path == "" {
		return fmt.Errorf("log file path is empty")
	}

	fileSinkMu.Lock()
	defer fileSinkMu.Unlock()

	if fileSink != nil {
		if err := fileSink.Close(); err != nil {
			log.Printf("[WARN] failed to close previous log file: %v", err)
		}
	}

	fileSink = &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, fileSink))
	return nil
}

// Close flushes and closes the log file sink, if one is configured.
func Close() error {
	fileSinkMu.Lock()
	defer fileSinkMu.Unlock()

	if fileSink == nil {
		return nil
	}
	log.SetOutput(os.Stderr)
	err := fileSink.Close()
	fileSink = nil
	return err
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	if GetLevel() <= LevelDebug {
		log.Printf("[DEBUG] "+format, args...)
	}
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	if GetLevel() <= LevelInfo {
		log.Printf("[INFO] "+format, args...)
	}
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	if GetLevel() <= LevelWarn {
		log.Printf("[WARN] "+format, args...)
	}
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	if GetLevel() <= LevelError {
		log.Printf("[ERROR] "+format, args...)
	}
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	log.Fatalf("[FATAL] "+format, args...)
}

// Printf is a pass-through to log.Printf for messages that should always print
func Printf(format string, args ...interface{}) {
	log.Printf(format, args...)
}

// JobLogger prefixes every message with a job identifier so interleaved
// output from concurrent conversions can be told apart.
type JobLogger struct {
	prefix string
}

// Job returns a logger bound to the given job ID.
func Job(id string) JobLogger {
	return JobLogger{prefix: "[" + id + "] "}
}

// Debug logs a job-scoped debug message.
func (l JobLogger) Debug(format string, args ...interface{}) {
	Debug(l.prefix+format, args...)
}

// Info logs a job-scoped info message.
func (l JobLogger) Info(format string, args ...interface{}) {
	Info(l.prefix+format, args...)
}

// Warn logs a job-scoped warning.
func (l JobLogger) Warn(format string, args ...interface{}) {
	Warn(l.prefix+format, args...)
}

// Error logs a job-scoped error.
func (l JobLogger) Error(format string, args ...interface{}) {
	Error(l.prefix+format, args...)
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}
