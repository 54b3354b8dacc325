package logger

import (
	"fmt"
	"io"
	"os"
)

// LogLevel represents different log levels
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Logger provides leveled logging. All output goes to the error channel:
// stdout is reserved for the structured success payload.
type Logger struct {
	level   LogLevel
	verbose bool
	out     io.Writer
}

// NewLogger creates a new logger with specified level and verbose mode
func NewLogger(level string, verbose bool) *Logger {
	return &Logger{
		level:   parseLogLevel(level),
		verbose: verbose,
		out:     os.Stderr,
	}
}

// NewLoggerTo creates a logger writing to the given writer, used in tests
func NewLoggerTo(w io.Writer, level string, verbose bool) *Logger {
	l := NewLogger(level, verbose)
	l.out = w
	return l
}

// Debug logs debug information (only in debug mode)
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.level <= LevelDebug {
		l.log("DEBUG", fmt.Sprintf(format, args...))
	}
}

// Info logs informational messages (only in verbose mode)
func (l *Logger) Info(format string, args ...interface{}) {
	if l.verbose && l.level <= LevelInfo {
		l.log("INFO", fmt.Sprintf(format, args...))
	}
}

// Warn logs warning messages
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.level <= LevelWarn {
		l.log("WARN", fmt.Sprintf(format, args...))
	}
}

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	if l.level <= LevelError {
		l.log("ERROR", fmt.Sprintf(format, args...))
	}
}

// Progress logs step-by-step progress details (only in verbose mode)
func (l *Logger) Progress(emoji, format string, args ...interface{}) {
	if l.verbose {
		fmt.Fprintf(l.out, "%s %s\n", emoji, fmt.Sprintf(format, args...))
	}
}

// log outputs formatted log messages
func (l *Logger) log(level, message string) {
	fmt.Fprintf(l.out, "[%s] %s\n", level, message)
}

// parseLogLevel converts string level to LogLevel
func parseLogLevel(level string) LogLevel {
	switch level {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// DefaultLogger returns a default logger instance
func DefaultLogger() *Logger {
	return NewLogger("info", false)
}
